package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"match-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RelayerService queues cross-chain actions for asynchronous, serialized
// processing. Action IDs are idempotency keys: a replay is rejected at
// submission, and the worker marks each action processed or failed exactly
// once.
type RelayerService struct {
	DB *gorm.DB
}

func NewRelayerService(db *gorm.DB) *RelayerService {
	return &RelayerService{DB: db}
}

// SubmitActionParams is the relayed-action submission payload.
type SubmitActionParams struct {
	ActionID string `json:"action_id"`
	MatchID  string `json:"match_id"`
	Type     string `json:"type"`
	Amount   int64  `json:"amount"`
	ChainID  int64  `json:"chain_id"`
	Network  string `json:"network"`
}

func (s *RelayerService) SubmitAction(address string, p SubmitActionParams) (*models.RelayedAction, error) {
	if p.ActionID == "" {
		p.ActionID = uuid.NewString()
	}
	if p.Type != models.ActionTypeStake && p.Type != models.ActionTypeStakeAndJoin {
		return nil, fmt.Errorf("%w: unknown action type %q", ErrValidation, p.Type)
	}
	if p.MatchID == "" {
		return nil, fmt.Errorf("%w: match_id is required", ErrValidation)
	}
	if p.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	action := &models.RelayedAction{
		ID:      p.ActionID,
		Address: address,
		MatchID: p.MatchID,
		Type:    p.Type,
		Amount:  p.Amount,
		ChainID: p.ChainID,
		Network: p.Network,
		Status:  models.ActionStatusPending,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.RelayedAction
		if err := tx.First(&existing, "id = ?", p.ActionID).Error; err == nil {
			return ErrDuplicateAction
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(action).Error
	})
	if err != nil {
		return nil, err
	}
	return action, nil
}

func (s *RelayerService) GetAction(actionID string) (*models.RelayedAction, error) {
	var action models.RelayedAction
	if err := s.DB.First(&action, "id = ?", actionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActionNotFound
		}
		return nil, err
	}
	return &action, nil
}

func (s *RelayerService) GetUserActions(address string) ([]models.RelayedAction, error) {
	var actions []models.RelayedAction
	if err := s.DB.Where("address = ?", address).Order("created_at ASC").Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

// ProcessPendingActions drains the queue in submission order. It is called
// from a single worker goroutine, which is what serializes processing per
// match/user; processing itself is idempotent because each action row flips
// out of pending exactly once.
func (s *RelayerService) ProcessPendingActions(ctx context.Context) (int, error) {
	var pending []models.RelayedAction
	if err := s.DB.Where("status = ?", models.ActionStatusPending).
		Order("created_at ASC").Find(&pending).Error; err != nil {
		return 0, err
	}

	processed := 0
	for i := range pending {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		action := &pending[i]
		if err := s.processAction(action); err != nil {
			log.Printf("❌ Relayer action %s failed: %v", action.ID, err)
			s.markAction(action, models.ActionStatusFailed, err.Error(), "")
			continue
		}
		processed++
	}
	return processed, nil
}

// processAction applies one action in a single transaction: a failed join
// rolls the debit and the stake record back with it, so a failed action
// leaves the ledger untouched.
func (s *RelayerService) processAction(action *models.RelayedAction) error {
	var recordID string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		record, err := stakeForMatchTx(tx, action.Address, action.MatchID, action.Amount, action.ChainID)
		if err != nil {
			return err
		}
		recordID = record.ID
		if action.Type == models.ActionTypeStakeAndJoin {
			if _, err := confirmStakeAndJoinTx(tx, record.ID, action.Address, action.Network); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.markAction(action, models.ActionStatusProcessed, "", recordID)
	return nil
}

func (s *RelayerService) markAction(action *models.RelayedAction, status, reason, stakeRecordID string) {
	now := time.Now()
	err := s.DB.Model(action).Updates(map[string]any{
		"status":          status,
		"failed_reason":   reason,
		"processed_at":    &now,
		"stake_record_id": stakeRecordID,
	}).Error
	if err != nil {
		log.Printf("❌ Failed to mark relayer action %s as %s: %v", action.ID, status, err)
	}
}

// --- HTTP endpoints ---

func (s *RelayerService) SubmitActionEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	var p SubmitActionParams
	if err := c.BodyParser(&p); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	action, err := s.SubmitAction(address, p)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(action)
}

func (s *RelayerService) GetActionEndpoint(c *fiber.Ctx) error {
	action, err := s.GetAction(c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(action)
}

func (s *RelayerService) GetUserActionsEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	actions, err := s.GetUserActions(address)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(actions)
}
