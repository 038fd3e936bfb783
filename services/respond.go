package services

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
)

// respondErr maps domain errors onto HTTP statuses. The error text itself is
// the user-visible reason, so it is returned verbatim for known errors.
func respondErr(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrEmptyBallot),
		errors.Is(err, ErrInvalidWinner),
		errors.Is(err, ErrStakeMismatch),
		errors.Is(err, ErrTooFewParticipants),
		errors.Is(err, ErrInsufficientBalance):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, ErrNotCreator),
		errors.Is(err, ErrNotParticipant):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, ErrNotRegistered),
		errors.Is(err, ErrMatchNotFound),
		errors.Is(err, ErrNoVotingSession),
		errors.Is(err, ErrActionNotFound),
		errors.Is(err, ErrStakeNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, ErrAlreadyRegistered),
		errors.Is(err, ErrAlreadyJoined),
		errors.Is(err, ErrAlreadyVoted),
		errors.Is(err, ErrAlreadyFinalized),
		errors.Is(err, ErrNotFinalized),
		errors.Is(err, ErrConsensusReached),
		errors.Is(err, ErrReportSubmitted),
		errors.Is(err, ErrRewardsDistributed),
		errors.Is(err, ErrNothingToClaim),
		errors.Is(err, ErrDuplicateAction),
		errors.Is(err, ErrStakeConsumed),
		errors.Is(err, ErrMatchFull),
		errors.Is(err, ErrMatchNotOpen),
		errors.Is(err, ErrMatchNotActive),
		errors.Is(err, ErrMatchNotVoting),
		errors.Is(err, ErrMatchNotCancellable),
		errors.Is(err, ErrVotingClosed),
		errors.Is(err, ErrVotingNotFinalizable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, ErrOracleUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}

	log.Printf("❌ Internal error on %s: %v", c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}
