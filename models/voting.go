package models

import (
	"time"
)

// FinalizedBy records which authority produced the final winner set
const (
	FinalizedByNone  = "none"
	FinalizedByVotes = "votes"
	FinalizedByAI    = "ai"
)

// VotingSession is created when a match enters voting. Finalized is a one-way
// latch; VotesReceived never exceeds TotalVoters.
type VotingSession struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	MatchID       string    `gorm:"not null;uniqueIndex" json:"match_id"`
	TotalVoters   int       `gorm:"not null" json:"total_voters"`
	VotesReceived int       `gorm:"not null;default:0" json:"votes_received"`
	VotingEndTime time.Time `gorm:"not null" json:"voting_end_time"`

	Finalized        bool       `gorm:"not null;default:false" json:"finalized"`
	ConsensusReached bool       `gorm:"not null;default:false" json:"consensus_reached"`
	FinalizedBy      string     `gorm:"type:varchar(8);not null;default:'none'" json:"finalized_by"`
	FinalizedAt      *time.Time `json:"finalized_at,omitempty"`

	// Comma-separated canonical winner addresses; empty until finalized with
	// a non-empty result.
	FinalWinners string `gorm:"type:text" json:"final_winners"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Vote is at most one per (match, voter). VotedWinners holds the canonical
// ballot (lowercased, deduped, sorted, comma-joined).
type Vote struct {
	ID           string `gorm:"primaryKey" json:"id"`
	MatchID      string `gorm:"not null;index:idx_match_voter,unique" json:"match_id"`
	VoterAddress string `gorm:"not null;index:idx_match_voter,unique" json:"voter_address"`
	VotedWinners string `gorm:"type:text;not null" json:"voted_winners"`

	// AIAssisted marks a ballot the voter derived from an oracle analysis.
	// It still counts as exactly one ballot.
	AIAssisted bool `gorm:"default:false" json:"ai_assisted"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
