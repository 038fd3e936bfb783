package models

import (
	"time"
)

// UserAccount is the virtual token ledger for one address. Balance is
// spendable (stake, withdraw); reward credits live in RewardEntry until
// claimed. Balance never goes negative.
type UserAccount struct {
	Address     string `gorm:"primaryKey" json:"address"`
	Balance     int64  `gorm:"not null;default:0" json:"balance"`
	TotalEarned int64  `gorm:"not null;default:0" json:"total_earned"`

	RegisteredAt time.Time `json:"registered_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// StakeRecord status values
const (
	StakeStatusRecorded = "recorded"
	StakeStatusConsumed = "consumed"
	StakeStatusRefunded = "refunded"
)

// StakeRecord is the first phase of a stake-then-confirm join: the ledger has
// already been debited, and confirming the record joins the match without a
// second debit. ChainID is descriptive (origin network of a relayed stake).
type StakeRecord struct {
	ID      string `gorm:"primaryKey" json:"id"`
	Address string `gorm:"not null;index" json:"address"`
	MatchID string `gorm:"not null;index" json:"match_id"`
	Amount  int64  `gorm:"not null" json:"amount"`
	ChainID int64  `json:"chain_id,omitempty"`
	Status  string `gorm:"type:varchar(16);not null;default:'recorded'" json:"status"`

	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}
