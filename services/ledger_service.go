package services

import (
	"errors"
	"fmt"
	"log"

	"match-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewUserBonus is the fixed balance granted on first registration, in token
// base units.
const NewUserBonus int64 = 100

type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// RegisterUser creates the account and grants the one-time bonus. A second
// registration fails with no balance change.
func (s *LedgerService) RegisterUser(address string) (*models.UserAccount, error) {
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrValidation)
	}
	account := &models.UserAccount{
		Address: address,
		Balance: NewUserBonus,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.UserAccount
		if err := tx.First(&existing, "address = ?", address).Error; err == nil {
			return ErrAlreadyRegistered
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(account).Error
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *LedgerService) GetAccount(address string) (*models.UserAccount, error) {
	var account models.UserAccount
	if err := s.DB.First(&account, "address = ?", address).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, err
	}
	return &account, nil
}

// DepositTokens credits an external transfer onto the spendable balance.
func (s *LedgerService) DepositTokens(address string, amount int64) (*models.UserAccount, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		return creditBalance(tx, address, amount)
	})
	if err != nil {
		return nil, err
	}
	return s.GetAccount(address)
}

// WithdrawTokens debits the spendable balance for an external transfer out.
func (s *LedgerService) WithdrawTokens(address string, amount int64) (*models.UserAccount, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		return debitBalance(tx, address, amount)
	})
	if err != nil {
		return nil, err
	}
	return s.GetAccount(address)
}

// stakeForMatchTx debits the balance and records the stake in the caller's
// transaction, so a stake-and-join can run as one atomic operation.
func stakeForMatchTx(tx *gorm.DB, address, matchID string, amount, chainID int64) (*models.StakeRecord, error) {
	var match models.Match
	if err := tx.First(&match, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if match.Status != models.MatchStatusCreated {
		return nil, ErrMatchNotOpen
	}
	if err := debitBalance(tx, address, amount); err != nil {
		return nil, err
	}
	record := &models.StakeRecord{
		ID:      uuid.NewString(),
		Address: address,
		MatchID: matchID,
		Amount:  amount,
		ChainID: chainID,
		Status:  models.StakeStatusRecorded,
	}
	if err := tx.Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// StakeForMatch debits the balance and records the stake as phase one of a
// stake-then-confirm join. The record stays "recorded" until a confirm call
// consumes it or the match leaves the joinable state and releases it.
func (s *LedgerService) StakeForMatch(address, matchID string, amount, chainID int64) (*models.StakeRecord, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	var record *models.StakeRecord
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		record, err = stakeForMatchTx(tx, address, matchID, amount, chainID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *LedgerService) GetStake(stakeID string) (*models.StakeRecord, error) {
	var record models.StakeRecord
	if err := s.DB.First(&record, "id = ?", stakeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStakeNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (s *LedgerService) GetUserStakes(address string) ([]models.StakeRecord, error) {
	var records []models.StakeRecord
	if err := s.DB.Where("address = ?", address).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// --- HTTP endpoints ---

func (s *LedgerService) RegisterEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	account, err := s.RegisterUser(address)
	if err != nil {
		return respondErr(c, err)
	}
	log.Printf("✅ Registered %s with bonus %d", address, NewUserBonus)
	return c.Status(fiber.StatusCreated).JSON(account)
}

func (s *LedgerService) GetBalanceEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	account, err := s.GetAccount(address)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(account)
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

func (s *LedgerService) DepositEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	account, err := s.DepositTokens(address, req.Amount)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(account)
}

func (s *LedgerService) WithdrawEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	account, err := s.WithdrawTokens(address, req.Amount)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(account)
}

func (s *LedgerService) StakeEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	matchID := c.Params("id")
	var req struct {
		Amount  int64 `json:"amount"`
		ChainID int64 `json:"chain_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	record, err := s.StakeForMatch(address, matchID, req.Amount, req.ChainID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(record)
}

func (s *LedgerService) GetStakeEndpoint(c *fiber.Ctx) error {
	record, err := s.GetStake(c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(record)
}

func (s *LedgerService) GetUserStakesEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	records, err := s.GetUserStakes(address)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(records)
}
