package services

import (
	"encoding/json"
	"errors"
	"time"

	"match-arena-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// appendEvent writes one structured event row inside the caller's
// transaction, so the event exists if and only if the state change does.
func appendEvent(tx *gorm.DB, matchID, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.Create(&models.MatchEvent{
		ID:      uuid.NewString(),
		MatchID: matchID,
		Name:    name,
		Payload: string(data),
	}).Error
}

// creditBalance adds amount to an account's spendable balance, creating no
// account: callers guarantee the address is registered.
func creditBalance(tx *gorm.DB, address string, amount int64) error {
	res := tx.Model(&models.UserAccount{}).
		Where("address = ?", address).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotRegistered
	}
	return nil
}

// debitBalance subtracts amount, failing (not clamping) when the balance is
// short. The guarded UPDATE keeps the balance non-negative even under
// concurrent debits.
func debitBalance(tx *gorm.DB, address string, amount int64) error {
	var account models.UserAccount
	if err := tx.First(&account, "address = ?", address).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotRegistered
		}
		return err
	}
	res := tx.Model(&models.UserAccount{}).
		Where("address = ? AND balance >= ?", address, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}
