package models

import (
	"time"
)

// GameType mirrors the arena's match categories
type GameType string

const (
	GameTypeIndoor  GameType = "indoor"
	GameTypeOutdoor GameType = "outdoor"
	GameTypeOnline  GameType = "online"
	GameTypeOffline GameType = "offline"
	GameTypeHybrid  GameType = "hybrid"
)

// MatchStatus transitions are monotonic: created, active, voting, completed,
// with cancelled reachable from created/active only.
type MatchStatus string

const (
	MatchStatusCreated   MatchStatus = "created"
	MatchStatusActive    MatchStatus = "active"
	MatchStatusVoting    MatchStatus = "voting"
	MatchStatusCompleted MatchStatus = "completed"
	MatchStatusCancelled MatchStatus = "cancelled"
)

// Match is a single wagered competitive event. Amounts are token base units.
type Match struct {
	ID             string      `gorm:"primaryKey" json:"id"`
	CreatorAddress string      `gorm:"index;not null" json:"creator_address"`
	Title          string      `gorm:"not null" json:"title"`
	Description    string      `json:"description"`
	GameType       GameType    `gorm:"type:varchar(16);not null" json:"game_type"`
	Status         MatchStatus `gorm:"type:varchar(16);not null;default:'created';index" json:"status"`

	EntryStake       int64 `gorm:"not null" json:"entry_stake"`
	TotalPrizePool   int64 `gorm:"not null;default:0" json:"total_prize_pool"`
	ParticipantCount int   `gorm:"not null;default:0" json:"participant_count"`
	MaxParticipants  int   `gorm:"not null" json:"max_participants"`

	// Voting window
	VotingDurationSec int64      `gorm:"not null" json:"voting_duration_sec"`
	VotingStartTime   *time.Time `json:"voting_start_time,omitempty"`

	// AI verification report (hash of the oracle response, set once)
	AIReportHash      string `gorm:"type:varchar(64)" json:"ai_report_hash,omitempty"`
	AIReportSubmitted bool   `gorm:"default:false" json:"ai_report_submitted"`

	CreatedAt       time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CancelledReason string     `json:"cancelled_reason,omitempty"`

	// Relationships
	Participants []Participant `json:"participants,omitempty" gorm:"foreignKey:MatchID"`
}

// VotingEndTime derives the close of the voting window. Zero time until the
// voting phase has started.
func (m *Match) VotingEndTime() time.Time {
	if m.VotingStartTime == nil {
		return time.Time{}
	}
	return m.VotingStartTime.Add(time.Duration(m.VotingDurationSec) * time.Second)
}

// Participant rows are added on successful join, never removed. Network is a
// descriptive tag from the joiner's origin chain/client and carries no
// consensus or payout relevance.
type Participant struct {
	ID      string `gorm:"primaryKey" json:"id"`
	MatchID string `gorm:"not null;index:idx_match_participant,unique" json:"match_id"`
	Address string `gorm:"not null;index:idx_match_participant,unique" json:"address"`
	Network string `gorm:"type:varchar(64)" json:"network,omitempty"`

	JoinedAt time.Time `json:"joined_at" gorm:"autoCreateTime"`
}
