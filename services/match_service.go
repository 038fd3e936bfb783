package services

import (
	"errors"
	"fmt"
	"time"

	"match-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MatchService struct {
	DB *gorm.DB
}

func NewMatchService(db *gorm.DB) *MatchService {
	return &MatchService{DB: db}
}

// CreateMatchParams carries the creator-supplied match definition.
type CreateMatchParams struct {
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	GameType          models.GameType `json:"game_type"`
	EntryStake        int64           `json:"entry_stake"`
	MaxParticipants   int             `json:"max_participants"`
	VotingDurationSec int64           `json:"voting_duration_sec"`
}

func validGameType(g models.GameType) bool {
	switch g {
	case models.GameTypeIndoor, models.GameTypeOutdoor, models.GameTypeOnline,
		models.GameTypeOffline, models.GameTypeHybrid:
		return true
	}
	return false
}

func (s *MatchService) CreateMatch(creator string, p CreateMatchParams) (*models.Match, error) {
	if p.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !validGameType(p.GameType) {
		return nil, fmt.Errorf("%w: unknown game type %q", ErrValidation, p.GameType)
	}
	if p.EntryStake <= 0 {
		return nil, fmt.Errorf("%w: entry_stake must be positive", ErrValidation)
	}
	if p.MaxParticipants < 2 {
		return nil, fmt.Errorf("%w: max_participants must be at least 2", ErrValidation)
	}
	if p.VotingDurationSec <= 0 {
		return nil, fmt.Errorf("%w: voting_duration_sec must be positive", ErrValidation)
	}

	match := &models.Match{
		ID:                uuid.NewString(),
		CreatorAddress:    creator,
		Title:             p.Title,
		Description:       p.Description,
		GameType:          p.GameType,
		Status:            models.MatchStatusCreated,
		EntryStake:        p.EntryStake,
		MaxParticipants:   p.MaxParticipants,
		VotingDurationSec: p.VotingDurationSec,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(match).Error; err != nil {
			return err
		}
		return appendEvent(tx, match.ID, models.EventMatchCreated, fiber.Map{
			"match_id":         match.ID,
			"creator":          creator,
			"title":            match.Title,
			"game_type":        match.GameType,
			"entry_stake":      match.EntryStake,
			"max_participants": match.MaxParticipants,
		})
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

func findMatchTx(tx *gorm.DB, matchID string) (*models.Match, error) {
	var match models.Match
	if err := tx.First(&match, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &match, nil
}

// joinGuardsTx rejects joins the roster cannot accept. Run before any money
// moves so the join error, not a balance error, is what the caller sees.
func joinGuardsTx(tx *gorm.DB, match *models.Match, address string) error {
	if match.Status != models.MatchStatusCreated {
		return ErrMatchNotOpen
	}
	var existing models.Participant
	err := tx.First(&existing, "match_id = ? AND address = ?", match.ID, address).Error
	if err == nil {
		return ErrAlreadyJoined
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if match.ParticipantCount >= match.MaxParticipants {
		return ErrMatchFull
	}
	return nil
}

// joinMatchTx records a participant and grows the prize pool. The caller has
// already collected the stake (direct debit or consumed stake record).
func joinMatchTx(tx *gorm.DB, match *models.Match, address, network string) error {
	if err := joinGuardsTx(tx, match, address); err != nil {
		return err
	}

	participant := &models.Participant{
		ID:      uuid.NewString(),
		MatchID: match.ID,
		Address: address,
		Network: network,
	}
	if err := tx.Create(participant).Error; err != nil {
		return err
	}

	match.ParticipantCount++
	match.TotalPrizePool += match.EntryStake
	if err := tx.Model(match).Updates(map[string]any{
		"participant_count": match.ParticipantCount,
		"total_prize_pool":  match.TotalPrizePool,
	}).Error; err != nil {
		return err
	}
	return appendEvent(tx, match.ID, models.EventParticipantJoined, fiber.Map{
		"match_id":          match.ID,
		"address":           address,
		"network":           network,
		"participant_count": match.ParticipantCount,
		"total_prize_pool":  match.TotalPrizePool,
	})
}

// JoinMatch is the direct join path: the entry stake is debited from the
// joiner's ledger balance atomically with the join.
func (s *MatchService) JoinMatch(matchID, address, network string) (*models.Match, error) {
	var match *models.Match
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		match, err = findMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		// Join guards run before the debit so "match full" surfaces as such
		// even for callers with no ledger account.
		if err := joinGuardsTx(tx, match, address); err != nil {
			return err
		}
		if err := debitBalance(tx, address, match.EntryStake); err != nil {
			return err
		}
		return joinMatchTx(tx, match, address, network)
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// confirmStakeAndJoinTx consumes a recorded stake (already debited) and joins
// the match without a second debit.
func confirmStakeAndJoinTx(tx *gorm.DB, verificationID, caller, network string) (*models.Match, error) {
	var record models.StakeRecord
	if err := tx.First(&record, "id = ?", verificationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStakeNotFound
		}
		return nil, err
	}
	if record.Address != caller {
		return nil, ErrNotParticipant
	}
	if record.Status != models.StakeStatusRecorded {
		return nil, ErrStakeConsumed
	}

	match, err := findMatchTx(tx, record.MatchID)
	if err != nil {
		return nil, err
	}
	if record.Amount != match.EntryStake {
		return nil, ErrStakeMismatch
	}
	if err := joinMatchTx(tx, match, caller, network); err != nil {
		return nil, err
	}

	now := time.Now()
	err = tx.Model(&record).Updates(map[string]any{
		"status":      models.StakeStatusConsumed,
		"consumed_at": &now,
	}).Error
	if err != nil {
		return nil, err
	}
	return match, nil
}

// ConfirmStakeAndJoinMatch is phase two of the cross-chain join.
func (s *MatchService) ConfirmStakeAndJoinMatch(verificationID, caller, network string) (*models.Match, error) {
	var match *models.Match
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		match, err = confirmStakeAndJoinTx(tx, verificationID, caller, network)
		return err
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// releaseRecordedStakesTx refunds and closes every still-recorded stake for
// the match. Called whenever the match leaves the joinable state, so a stake
// that was never confirmed cannot strand the staker's tokens.
func releaseRecordedStakesTx(tx *gorm.DB, matchID string) (int, error) {
	var pending []models.StakeRecord
	if err := tx.Where("match_id = ? AND status = ?", matchID, models.StakeStatusRecorded).
		Find(&pending).Error; err != nil {
		return 0, err
	}
	now := time.Now()
	for _, r := range pending {
		if err := creditBalance(tx, r.Address, r.Amount); err != nil {
			return 0, err
		}
		if err := tx.Model(&r).Updates(map[string]any{
			"status":      models.StakeStatusRefunded,
			"consumed_at": &now,
		}).Error; err != nil {
			return 0, err
		}
	}
	return len(pending), nil
}

func (s *MatchService) StartMatch(matchID, caller string) (*models.Match, error) {
	var match *models.Match
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		match, err = findMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		if match.CreatorAddress != caller {
			return ErrNotCreator
		}
		if match.Status != models.MatchStatusCreated {
			return ErrMatchNotOpen
		}
		if match.ParticipantCount < 2 {
			return ErrTooFewParticipants
		}

		// Starting closes the roster: recorded stakes that never confirmed
		// can no longer buy a seat, so release them now.
		if _, err := releaseRecordedStakesTx(tx, match.ID); err != nil {
			return err
		}

		now := time.Now()
		match.Status = models.MatchStatusActive
		match.StartedAt = &now
		if err := tx.Model(match).Updates(map[string]any{
			"status":     match.Status,
			"started_at": match.StartedAt,
		}).Error; err != nil {
			return err
		}
		return appendEvent(tx, match.ID, models.EventMatchStatusChanged, fiber.Map{
			"match_id": match.ID,
			"status":   match.Status,
		})
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// StartVotingPhase freezes the roster: the voting session's voter count and
// the reward pool amount are both fixed here.
func (s *MatchService) StartVotingPhase(matchID, caller string) (*models.Match, error) {
	var match *models.Match
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		match, err = findMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		if match.CreatorAddress != caller {
			return ErrNotCreator
		}
		if match.Status != models.MatchStatusActive {
			return ErrMatchNotActive
		}

		now := time.Now()
		match.Status = models.MatchStatusVoting
		match.VotingStartTime = &now
		if err := tx.Model(match).Updates(map[string]any{
			"status":            match.Status,
			"voting_start_time": match.VotingStartTime,
		}).Error; err != nil {
			return err
		}

		session := &models.VotingSession{
			ID:            uuid.NewString(),
			MatchID:       match.ID,
			TotalVoters:   match.ParticipantCount,
			VotingEndTime: match.VotingEndTime(),
			FinalizedBy:   models.FinalizedByNone,
		}
		if err := tx.Create(session).Error; err != nil {
			return err
		}

		pool := &models.RewardPool{
			ID:          uuid.NewString(),
			MatchID:     match.ID,
			TotalAmount: match.TotalPrizePool,
		}
		if err := tx.Create(pool).Error; err != nil {
			return err
		}

		var participants []models.Participant
		if err := tx.Where("match_id = ?", match.ID).Find(&participants).Error; err != nil {
			return err
		}
		addrs := make([]string, len(participants))
		for i, p := range participants {
			addrs[i] = p.Address
		}

		if err := appendEvent(tx, match.ID, models.EventMatchStatusChanged, fiber.Map{
			"match_id": match.ID,
			"status":   match.Status,
		}); err != nil {
			return err
		}
		if err := appendEvent(tx, match.ID, models.EventVotingSessionCreated, fiber.Map{
			"match_id":        match.ID,
			"participants":    addrs,
			"voting_end_time": session.VotingEndTime,
		}); err != nil {
			return err
		}
		return appendEvent(tx, match.ID, models.EventRewardPoolCreated, fiber.Map{
			"match_id":     match.ID,
			"total_amount": pool.TotalAmount,
		})
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// CancelMatch refunds every participant's stake exactly once and releases any
// unconsumed stake records for the match. The status guard makes a second
// cancel fail, so refunds cannot double-apply.
func (s *MatchService) CancelMatch(matchID, caller, reason string) (*models.Match, error) {
	var match *models.Match
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		match, err = findMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		if match.CreatorAddress != caller {
			return ErrNotCreator
		}
		if match.Status != models.MatchStatusCreated && match.Status != models.MatchStatusActive {
			return ErrMatchNotCancellable
		}

		var participants []models.Participant
		if err := tx.Where("match_id = ?", match.ID).Find(&participants).Error; err != nil {
			return err
		}
		for _, p := range participants {
			if err := creditBalance(tx, p.Address, match.EntryStake); err != nil {
				return err
			}
		}

		// Unconsumed stakes were debited but never joined; make those stakers
		// whole too.
		released, err := releaseRecordedStakesTx(tx, match.ID)
		if err != nil {
			return err
		}

		now := time.Now()
		match.Status = models.MatchStatusCancelled
		match.TotalPrizePool = 0
		match.CancelledAt = &now
		match.CancelledReason = reason
		if err := tx.Model(match).Updates(map[string]any{
			"status":           match.Status,
			"total_prize_pool": 0,
			"cancelled_at":     match.CancelledAt,
			"cancelled_reason": reason,
		}).Error; err != nil {
			return err
		}
		return appendEvent(tx, match.ID, models.EventMatchCancelled, fiber.Map{
			"match_id":           match.ID,
			"reason":             reason,
			"refunded_count":     len(participants),
			"released_stakes":    released,
			"refund_per_address": match.EntryStake,
		})
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// completeMatchTx moves a voting match to completed. Shared by the finalize
// success path and the explicit no-winner completion.
func completeMatchTx(tx *gorm.DB, match *models.Match) error {
	if match.Status != models.MatchStatusVoting {
		return ErrMatchNotVoting
	}
	match.Status = models.MatchStatusCompleted
	if err := tx.Model(match).Update("status", match.Status).Error; err != nil {
		return err
	}
	return appendEvent(tx, match.ID, models.EventMatchStatusChanged, fiber.Map{
		"match_id": match.ID,
		"status":   match.Status,
	})
}

// CompleteMatch closes out a match whose voting finalized without consensus
// and where no AI override followed ("no-winner completion"). Matches whose
// rewards were distributed are completed inline by the finalize paths.
func (s *MatchService) CompleteMatch(matchID, caller string) (*models.Match, error) {
	var match *models.Match
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		match, err = findMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		if match.CreatorAddress != caller {
			return ErrNotCreator
		}
		var session models.VotingSession
		if err := tx.First(&session, "match_id = ?", match.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoVotingSession
			}
			return err
		}
		if !session.Finalized {
			return ErrNotFinalized
		}
		return completeMatchTx(tx, match)
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// --- Views ---

func (s *MatchService) GetMatch(matchID string) (*models.Match, error) {
	var match models.Match
	err := s.DB.Preload("Participants").First(&match, "id = ?", matchID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &match, nil
}

func (s *MatchService) GetAllMatches() ([]models.Match, error) {
	var matches []models.Match
	if err := s.DB.Order("created_at DESC").Find(&matches).Error; err != nil {
		return nil, err
	}
	return matches, nil
}

// GetUserMatches lists matches the address created or joined.
func (s *MatchService) GetUserMatches(address string) ([]models.Match, error) {
	var matches []models.Match
	err := s.DB.
		Where("creator_address = ? OR id IN (?)", address,
			s.DB.Model(&models.Participant{}).Select("match_id").Where("address = ?", address)).
		Order("created_at DESC").
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (s *MatchService) GetMatchParticipants(matchID string) ([]models.Participant, error) {
	if _, err := s.GetMatch(matchID); err != nil {
		return nil, err
	}
	var participants []models.Participant
	if err := s.DB.Where("match_id = ?", matchID).Order("joined_at ASC").Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}

func (s *MatchService) MatchCounter() (int64, error) {
	var count int64
	if err := s.DB.Model(&models.Match{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// --- HTTP endpoints ---

func (s *MatchService) CreateMatchEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	var p CreateMatchParams
	if err := c.BodyParser(&p); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	match, err := s.CreateMatch(address, p)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(match)
}

func (s *MatchService) JoinMatchEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	var req struct {
		Network string `json:"network"`
	}
	// Body is optional: network is a descriptive tag only.
	_ = c.BodyParser(&req)
	match, err := s.JoinMatch(c.Params("id"), address, req.Network)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(match)
}

func (s *MatchService) ConfirmStakeAndJoinEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	var req struct {
		VerificationID string `json:"verification_id"`
		Network        string `json:"network"`
	}
	if err := c.BodyParser(&req); err != nil || req.VerificationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "verification_id is required"})
	}
	match, err := s.ConfirmStakeAndJoinMatch(req.VerificationID, address, req.Network)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(match)
}

func (s *MatchService) StartMatchEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	match, err := s.StartMatch(c.Params("id"), address)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(match)
}

func (s *MatchService) StartVotingEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	match, err := s.StartVotingPhase(c.Params("id"), address)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(match)
}

func (s *MatchService) CancelMatchEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.BodyParser(&req)
	match, err := s.CancelMatch(c.Params("id"), address, req.Reason)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(match)
}

func (s *MatchService) CompleteMatchEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	match, err := s.CompleteMatch(c.Params("id"), address)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(match)
}

func (s *MatchService) GetMatchEndpoint(c *fiber.Ctx) error {
	match, err := s.GetMatch(c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(match)
}

func (s *MatchService) GetAllMatchesEndpoint(c *fiber.Ctx) error {
	matches, err := s.GetAllMatches()
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(matches)
}

func (s *MatchService) GetUserMatchesEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	matches, err := s.GetUserMatches(address)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(matches)
}

func (s *MatchService) GetParticipantsEndpoint(c *fiber.Ctx) error {
	participants, err := s.GetMatchParticipants(c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(participants)
}

func (s *MatchService) MatchCounterEndpoint(c *fiber.Ctx) error {
	count, err := s.MatchCounter()
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"match_counter": count})
}
