package services

import "errors"

// Domain errors. Handlers surface these messages verbatim, so keep them
// human-readable and distinct per failure path.
var (
	ErrValidation = errors.New("invalid request")

	// Ledger
	ErrNotRegistered       = errors.New("address is not registered")
	ErrAlreadyRegistered   = errors.New("address is already registered")
	ErrInsufficientBalance = errors.New("insufficient balance")

	// Match registry
	ErrMatchNotFound       = errors.New("match not found")
	ErrMatchFull           = errors.New("match is full")
	ErrMatchNotOpen        = errors.New("match is not open for joining")
	ErrAlreadyJoined       = errors.New("address already joined this match")
	ErrNotCreator          = errors.New("only the match creator can perform this action")
	ErrNotParticipant      = errors.New("address is not a participant of this match")
	ErrTooFewParticipants  = errors.New("match needs at least 2 participants to start")
	ErrMatchNotActive      = errors.New("match is not active")
	ErrMatchNotVoting      = errors.New("match is not in the voting phase")
	ErrMatchNotCancellable = errors.New("match can no longer be cancelled")

	// Voting
	ErrNoVotingSession      = errors.New("no voting session exists for this match")
	ErrVotingClosed         = errors.New("voting window has closed")
	ErrAlreadyVoted         = errors.New("address has already voted in this match")
	ErrEmptyBallot          = errors.New("ballot must name at least one winner")
	ErrInvalidWinner        = errors.New("ballot names an address that is not a participant")
	ErrVotingNotFinalizable = errors.New("voting cannot be finalized until all votes are in or the window expires")
	ErrAlreadyFinalized     = errors.New("voting has already been finalized")
	ErrNotFinalized         = errors.New("voting has not been finalized")
	ErrConsensusReached     = errors.New("consensus was reached by votes; AI override is not allowed")
	ErrReportSubmitted      = errors.New("an AI report was already submitted for this match")

	// Rewards
	ErrRewardsDistributed = errors.New("rewards have already been distributed for this match")
	ErrNothingToClaim     = errors.New("no unclaimed rewards")

	// AI oracle
	ErrOracleUnavailable = errors.New("AI oracle is not configured")

	// Relayer / stakes
	ErrDuplicateAction = errors.New("action with this id was already submitted")
	ErrActionNotFound  = errors.New("action not found")
	ErrStakeNotFound   = errors.New("stake record not found")
	ErrStakeConsumed   = errors.New("stake record was already consumed")
	ErrStakeMismatch   = errors.New("stake amount does not match the match entry stake")
)
