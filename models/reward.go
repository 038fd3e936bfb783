package models

import (
	"time"
)

// RewardPool earmarks a match's prize for distribution. Distributed is a
// one-way latch: once true, every winner has been credited exactly once.
type RewardPool struct {
	ID            string     `gorm:"primaryKey" json:"id"`
	MatchID       string     `gorm:"not null;uniqueIndex" json:"match_id"`
	TotalAmount   int64      `gorm:"not null" json:"total_amount"`
	WinnerCount   int        `gorm:"not null;default:0" json:"winner_count"`
	Distributed   bool       `gorm:"not null;default:false" json:"distributed"`
	DistributedAt *time.Time `json:"distributed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// RewardEntry is one winner's claimable credit for one match. Claimed flips
// once; claiming moves Amount onto the spendable account balance.
type RewardEntry struct {
	ID      string `gorm:"primaryKey" json:"id"`
	MatchID string `gorm:"not null;index:idx_match_winner,unique" json:"match_id"`
	Address string `gorm:"not null;index:idx_match_winner,unique;index" json:"address"`
	Amount  int64  `gorm:"not null" json:"amount"`

	Claimed   bool       `gorm:"not null;default:false" json:"claimed"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
