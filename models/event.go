package models

import (
	"time"
)

// Event names, matching the arena's public event vocabulary. Consumers key
// off these strings, so they must stay stable.
const (
	EventMatchCreated         = "MatchCreated"
	EventMatchStatusChanged   = "MatchStatusChanged"
	EventParticipantJoined    = "ParticipantJoined"
	EventVotingSessionCreated = "VotingSessionCreated"
	EventVoteCasted           = "VoteCasted"
	EventVotingFinalized      = "VotingFinalized"
	EventRewardPoolCreated    = "RewardPoolCreated"
	EventRewardsMinted        = "RewardsMinted"
	EventRewardsClaimed       = "RewardsClaimed"
	EventAIReportSubmitted    = "AIReportSubmitted"
	EventMatchCancelled       = "MatchCancelled"
)

// MatchEvent is the structured event log. Rows are appended in the same
// transaction as the state change they describe, then pushed to webhook
// consumers by the dispatcher worker.
type MatchEvent struct {
	ID      string `gorm:"primaryKey" json:"id"`
	MatchID string `gorm:"index" json:"match_id"`
	Name    string `gorm:"type:varchar(32);not null;index" json:"name"`
	Payload string `gorm:"type:text" json:"payload"`

	Dispatched   bool       `gorm:"not null;default:false;index" json:"dispatched"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
