package services

import (
	"errors"
	"strings"
	"time"

	"match-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RewardService struct {
	DB *gorm.DB
}

func NewRewardService(db *gorm.DB) *RewardService {
	return &RewardService{DB: db}
}

// distributeRewardsTx credits each winner's claimable balance with an equal
// share of the pool. Integer division leaves a remainder of at most
// len(winners)-1 tokens; those go one each to the earliest winners in
// canonical order, so credited amounts sum to the pool exactly. The
// Distributed latch makes a second distribution fail.
func distributeRewardsTx(tx *gorm.DB, match *models.Match, winners []string) error {
	if len(winners) == 0 {
		return ErrEmptyBallot
	}
	var pool models.RewardPool
	if err := tx.First(&pool, "match_id = ?", match.ID).Error; err != nil {
		return err
	}
	if pool.Distributed {
		return ErrRewardsDistributed
	}

	share := pool.TotalAmount / int64(len(winners))
	remainder := pool.TotalAmount % int64(len(winners))

	amounts := make(map[string]int64, len(winners))
	for i, w := range winners {
		amount := share
		if int64(i) < remainder {
			amount++
		}
		amounts[w] = amount
		entry := &models.RewardEntry{
			ID:      uuid.NewString(),
			MatchID: match.ID,
			Address: w,
			Amount:  amount,
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.UserAccount{}).
			Where("address = ?", w).
			Update("total_earned", gorm.Expr("total_earned + ?", amount)).Error; err != nil {
			return err
		}
	}

	now := time.Now()
	if err := tx.Model(&pool).Updates(map[string]any{
		"distributed":    true,
		"distributed_at": &now,
		"winner_count":   len(winners),
	}).Error; err != nil {
		return err
	}
	return appendEvent(tx, match.ID, models.EventRewardsMinted, fiber.Map{
		"match_id":     match.ID,
		"total_amount": pool.TotalAmount,
		"winner_count": len(winners),
		"amounts":      amounts,
	})
}

// ClaimRewards moves one match's unclaimed credit onto the caller's
// spendable balance. The claimed latch inside the transaction keeps a repeat
// claim from paying twice.
func (s *RewardService) ClaimRewards(matchID, address string) (int64, error) {
	address = strings.ToLower(address)
	var claimed int64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var entry models.RewardEntry
		err := tx.First(&entry, "match_id = ? AND address = ? AND claimed = ?", matchID, address, false).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNothingToClaim
			}
			return err
		}
		now := time.Now()
		res := tx.Model(&models.RewardEntry{}).
			Where("id = ? AND claimed = ?", entry.ID, false).
			Updates(map[string]any{"claimed": true, "claimed_at": &now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNothingToClaim
		}
		if err := creditBalance(tx, address, entry.Amount); err != nil {
			return err
		}
		claimed = entry.Amount
		return appendEvent(tx, matchID, models.EventRewardsClaimed, fiber.Map{
			"match_id": matchID,
			"address":  address,
			"amount":   entry.Amount,
		})
	})
	if err != nil {
		return 0, err
	}
	return claimed, nil
}

// ClaimAllRewards claims every unclaimed credit the address holds, across
// matches, in one transaction.
func (s *RewardService) ClaimAllRewards(address string) (int64, error) {
	address = strings.ToLower(address)
	var total int64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var entries []models.RewardEntry
		if err := tx.Where("address = ? AND claimed = ?", address, false).Find(&entries).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return ErrNothingToClaim
		}
		now := time.Now()
		for _, entry := range entries {
			res := tx.Model(&models.RewardEntry{}).
				Where("id = ? AND claimed = ?", entry.ID, false).
				Updates(map[string]any{"claimed": true, "claimed_at": &now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			if err := creditBalance(tx, address, entry.Amount); err != nil {
				return err
			}
			total += entry.Amount
			if err := appendEvent(tx, entry.MatchID, models.EventRewardsClaimed, fiber.Map{
				"match_id": entry.MatchID,
				"address":  address,
				"amount":   entry.Amount,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// --- Views ---

// GetRewardBalance sums the address's credited-but-unclaimed rewards.
func (s *RewardService) GetRewardBalance(address string) (int64, error) {
	var balance int64
	err := s.DB.Model(&models.RewardEntry{}).
		Where("address = ? AND claimed = ?", strings.ToLower(address), false).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&balance).Error
	return balance, err
}

func (s *RewardService) GetTotalEarned(address string) (int64, error) {
	var account models.UserAccount
	if err := s.DB.First(&account, "address = ?", strings.ToLower(address)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotRegistered
		}
		return 0, err
	}
	return account.TotalEarned, nil
}

func (s *RewardService) GetRewardPool(matchID string) (*models.RewardPool, error) {
	var pool models.RewardPool
	if err := s.DB.First(&pool, "match_id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &pool, nil
}

// --- HTTP endpoints ---

func (s *RewardService) ClaimMatchRewardsEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	amount, err := s.ClaimRewards(c.Params("id"), address)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "rewards claimed", "match_id": c.Params("id"), "amount": amount})
}

func (s *RewardService) ClaimAllRewardsEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	amount, err := s.ClaimAllRewards(address)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "rewards claimed", "amount": amount})
}

func (s *RewardService) GetRewardBalanceEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	balance, err := s.GetRewardBalance(address)
	if err != nil {
		return respondErr(c, err)
	}
	totalEarned, err := s.GetTotalEarned(address)
	if err != nil && !errors.Is(err, ErrNotRegistered) {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{
		"address":        address,
		"reward_balance": balance,
		"total_earned":   totalEarned,
	})
}

func (s *RewardService) GetRewardPoolEndpoint(c *fiber.Ctx) error {
	pool, err := s.GetRewardPool(c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(pool)
}
