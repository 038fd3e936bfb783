package models

import (
	"time"
)

// Relayed action types and statuses
const (
	ActionTypeStake        = "stake"
	ActionTypeStakeAndJoin = "stake_and_join"

	ActionStatusPending   = "pending"
	ActionStatusProcessed = "processed"
	ActionStatusFailed    = "failed"
)

// RelayedAction is one queued cross-chain action. ID is the client-supplied
// idempotency key: a replayed submission with the same ID is rejected, so the
// worker processes each action at most once.
type RelayedAction struct {
	ID      string `gorm:"primaryKey" json:"id"`
	Address string `gorm:"not null;index" json:"address"`
	MatchID string `gorm:"not null;index" json:"match_id"`
	Type    string `gorm:"type:varchar(24);not null" json:"type"`
	Amount  int64  `gorm:"not null" json:"amount"`
	ChainID int64  `json:"chain_id,omitempty"`
	Network string `gorm:"type:varchar(64)" json:"network,omitempty"`

	Status       string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	FailedReason string     `json:"failed_reason,omitempty"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`

	// Resulting stake record, once processed
	StakeRecordID string `json:"stake_record_id,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
