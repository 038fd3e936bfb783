package services

import (
	"testing"

	"match-arena-system/models"

	"github.com/stretchr/testify/assert"
)

func TestCreateMatchValidation(t *testing.T) {
	f := newFixture(t)
	f.register(t, "0xcreator", 0)

	valid := CreateMatchParams{
		Title:             "street futsal",
		GameType:          models.GameTypeOutdoor,
		EntryStake:        10,
		MaxParticipants:   4,
		VotingDurationSec: 3600,
	}

	cases := []struct {
		name   string
		mutate func(*CreateMatchParams)
	}{
		{"missing title", func(p *CreateMatchParams) { p.Title = "" }},
		{"unknown game type", func(p *CreateMatchParams) { p.GameType = "underwater" }},
		{"zero stake", func(p *CreateMatchParams) { p.EntryStake = 0 }},
		{"single participant cap", func(p *CreateMatchParams) { p.MaxParticipants = 1 }},
		{"zero voting window", func(p *CreateMatchParams) { p.VotingDurationSec = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			_, err := f.matches.CreateMatch("0xcreator", p)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	match, err := f.matches.CreateMatch("0xcreator", valid)
	assert.NoError(t, err)
	assert.Equal(t, models.MatchStatusCreated, match.Status)
	assert.Equal(t, int64(0), match.TotalPrizePool)
	assert.Contains(t, f.eventNames(t, match.ID), models.EventMatchCreated)
}

func TestJoinMatchGrowsPrizePool(t *testing.T) {
	f := newFixture(t)
	players := []string{"0xa", "0xb", "0xc", "0xd"}
	match := f.openMatch(t, players, 10)

	got, err := f.matches.GetMatch(match.ID)
	assert.NoError(t, err)
	assert.Equal(t, 4, got.ParticipantCount)
	assert.Equal(t, int64(40), got.TotalPrizePool)
	assert.Len(t, got.Participants, 4)

	for _, p := range players {
		assert.Equal(t, NewUserBonus, f.balance(t, p), "stake should be debited from %s", p)
	}
}

func TestJoinMatchGuards(t *testing.T) {
	f := newFixture(t)
	f.register(t, "0xlate", 0)
	match := f.openMatch(t, []string{"0xa", "0xb"}, 10)

	_, err := f.matches.JoinMatch(match.ID, "0xa", "base")
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	// openMatch caps the roster at its player count, so the match is full.
	_, err = f.matches.JoinMatch(match.ID, "0xlate", "base")
	assert.ErrorIs(t, err, ErrMatchFull)
	assert.Equal(t, NewUserBonus, f.balance(t, "0xlate"))

	// Roster guards run before any balance lookup: an unregistered wallet
	// hitting a full match is told the match is full.
	_, err = f.matches.JoinMatch(match.ID, "0xghost", "base")
	assert.ErrorIs(t, err, ErrMatchFull)

	open, err := f.matches.CreateMatch("0xa", CreateMatchParams{
		Title:             "open seat",
		GameType:          models.GameTypeOnline,
		EntryStake:        10,
		MaxParticipants:   3,
		VotingDurationSec: 600,
	})
	assert.NoError(t, err)
	_, err = f.matches.JoinMatch(open.ID, "0xghost", "base")
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, err = f.matches.JoinMatch("no-such-match", "0xlate", "base")
	assert.ErrorIs(t, err, ErrMatchNotFound)

	started := f.votingMatch(t, []string{"0xp1", "0xp2"}, 10)
	_, err = f.matches.JoinMatch(started.ID, "0xlate", "base")
	assert.ErrorIs(t, err, ErrMatchNotOpen)
}

func TestStartMatchReleasesRecordedStakes(t *testing.T) {
	f := newFixture(t)
	match := f.openMatch(t, []string{"0xa", "0xb"}, 10)

	f.register(t, "0xpending", 0)
	record, err := f.ledger.StakeForMatch("0xpending", match.ID, 10, 8453)
	assert.NoError(t, err)
	assert.Equal(t, NewUserBonus-10, f.balance(t, "0xpending"))

	// Starting closes the roster, so the unconfirmed stake is refunded
	// instead of stranding.
	_, err = f.matches.StartMatch(match.ID, "0xa")
	assert.NoError(t, err)
	assert.Equal(t, NewUserBonus, f.balance(t, "0xpending"))

	released, err := f.ledger.GetStake(record.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.StakeStatusRefunded, released.Status)
	assert.NotNil(t, released.ConsumedAt)

	// The released record can no longer buy a seat.
	_, err = f.matches.ConfirmStakeAndJoinMatch(record.ID, "0xpending", "base")
	assert.ErrorIs(t, err, ErrStakeConsumed)
	assert.Equal(t, NewUserBonus, f.balance(t, "0xpending"))
}

func TestJoinMatchInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	match := f.openMatch(t, []string{"0xa", "0xb"}, 10)
	_ = match

	f.register(t, "0xbroke", 0)
	f2 := f.matches
	big, err := f2.CreateMatch("0xa", CreateMatchParams{
		Title:             "high stakes",
		GameType:          models.GameTypeOnline,
		EntryStake:        NewUserBonus + 1,
		MaxParticipants:   2,
		VotingDurationSec: 600,
	})
	assert.NoError(t, err)

	_, err = f2.JoinMatch(big.ID, "0xbroke", "base")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, NewUserBonus, f.balance(t, "0xbroke"))
}

func TestStartMatchGuards(t *testing.T) {
	f := newFixture(t)
	f.register(t, "0xcreator", 0)
	match, err := f.matches.CreateMatch("0xcreator", CreateMatchParams{
		Title:             "duo bracket",
		GameType:          models.GameTypeOnline,
		EntryStake:        10,
		MaxParticipants:   4,
		VotingDurationSec: 600,
	})
	assert.NoError(t, err)

	_, err = f.matches.StartMatch(match.ID, "0xcreator")
	assert.ErrorIs(t, err, ErrTooFewParticipants)

	f.register(t, "0xa", 0)
	f.register(t, "0xb", 0)
	_, err = f.matches.JoinMatch(match.ID, "0xa", "base")
	assert.NoError(t, err)
	_, err = f.matches.JoinMatch(match.ID, "0xb", "base")
	assert.NoError(t, err)

	_, err = f.matches.StartMatch(match.ID, "0xa")
	assert.ErrorIs(t, err, ErrNotCreator)

	started, err := f.matches.StartMatch(match.ID, "0xcreator")
	assert.NoError(t, err)
	assert.Equal(t, models.MatchStatusActive, started.Status)
	assert.NotNil(t, started.StartedAt)

	_, err = f.matches.StartMatch(match.ID, "0xcreator")
	assert.ErrorIs(t, err, ErrMatchNotOpen)
}

func TestStartVotingPhaseFreezesSessionAndPool(t *testing.T) {
	f := newFixture(t)
	players := []string{"0xa", "0xb", "0xc"}
	match := f.openMatch(t, players, 10)

	_, err := f.matches.StartVotingPhase(match.ID, "0xa")
	assert.ErrorIs(t, err, ErrMatchNotActive)

	_, err = f.matches.StartMatch(match.ID, "0xa")
	assert.NoError(t, err)

	_, err = f.matches.StartVotingPhase(match.ID, "0xb")
	assert.ErrorIs(t, err, ErrNotCreator)

	voting, err := f.matches.StartVotingPhase(match.ID, "0xa")
	assert.NoError(t, err)
	assert.Equal(t, models.MatchStatusVoting, voting.Status)
	assert.NotNil(t, voting.VotingStartTime)

	session, err := f.voting.GetVotingSession(match.ID)
	assert.NoError(t, err)
	assert.Equal(t, 3, session.TotalVoters)
	assert.False(t, session.Finalized)
	assert.Equal(t, models.FinalizedByNone, session.FinalizedBy)

	pool, err := f.rewards.GetRewardPool(match.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(30), pool.TotalAmount)
	assert.False(t, pool.Distributed)

	names := f.eventNames(t, match.ID)
	assert.Contains(t, names, models.EventVotingSessionCreated)
	assert.Contains(t, names, models.EventRewardPoolCreated)
}

func TestCancelMatchRefundsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	players := []string{"0xa", "0xb", "0xc"}
	match := f.openMatch(t, players, 10)

	// A recorded-but-unconfirmed stake from a fourth wallet must be released.
	f.register(t, "0xpending", 0)
	record, err := f.ledger.StakeForMatch("0xpending", match.ID, 10, 1)
	assert.NoError(t, err)
	assert.Equal(t, NewUserBonus-10, f.balance(t, "0xpending"))

	_, err = f.matches.CancelMatch(match.ID, "0xb", "rained out")
	assert.ErrorIs(t, err, ErrNotCreator)

	cancelled, err := f.matches.CancelMatch(match.ID, "0xa", "rained out")
	assert.NoError(t, err)
	assert.Equal(t, models.MatchStatusCancelled, cancelled.Status)
	assert.Equal(t, int64(0), cancelled.TotalPrizePool)
	assert.Equal(t, "rained out", cancelled.CancelledReason)

	for _, p := range players {
		assert.Equal(t, NewUserBonus, f.balance(t, p))
	}
	assert.Equal(t, NewUserBonus, f.balance(t, "0xpending"))

	released, err := f.ledger.GetStake(record.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.StakeStatusRefunded, released.Status)

	// Second cancel fails on the status guard, so nothing refunds twice.
	_, err = f.matches.CancelMatch(match.ID, "0xa", "again")
	assert.ErrorIs(t, err, ErrMatchNotCancellable)
	assert.Equal(t, NewUserBonus, f.balance(t, "0xb"))
}

func TestCancelMatchRejectedOnceVoting(t *testing.T) {
	f := newFixture(t)
	match := f.votingMatch(t, []string{"0xa", "0xb"}, 10)

	_, err := f.matches.CancelMatch(match.ID, "0xa", "too late")
	assert.ErrorIs(t, err, ErrMatchNotCancellable)
}

func TestConfirmStakeAndJoinSingleDebit(t *testing.T) {
	f := newFixture(t)
	match := f.openMatch(t, []string{"0xa", "0xb"}, 10)
	_ = match
	f.register(t, "0xcross", 0)

	open, err := f.matches.CreateMatch("0xa", CreateMatchParams{
		Title:             "cross chain cup",
		GameType:          models.GameTypeHybrid,
		EntryStake:        10,
		MaxParticipants:   3,
		VotingDurationSec: 600,
	})
	assert.NoError(t, err)

	record, err := f.ledger.StakeForMatch("0xcross", open.ID, 10, 42161)
	assert.NoError(t, err)
	assert.Equal(t, NewUserBonus-10, f.balance(t, "0xcross"))

	joined, err := f.matches.ConfirmStakeAndJoinMatch(record.ID, "0xcross", "arbitrum")
	assert.NoError(t, err)
	assert.Equal(t, 1, joined.ParticipantCount)
	assert.Equal(t, int64(10), joined.TotalPrizePool)
	// Confirm consumes the stake record instead of debiting again.
	assert.Equal(t, NewUserBonus-10, f.balance(t, "0xcross"))

	consumed, err := f.ledger.GetStake(record.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.StakeStatusConsumed, consumed.Status)
	assert.NotNil(t, consumed.ConsumedAt)

	_, err = f.matches.ConfirmStakeAndJoinMatch(record.ID, "0xcross", "arbitrum")
	assert.ErrorIs(t, err, ErrStakeConsumed)
}

func TestConfirmStakeAndJoinGuards(t *testing.T) {
	f := newFixture(t)
	f.register(t, "0xcreator", 0)
	f.register(t, "0xcross", 100)
	f.register(t, "0xthief", 0)

	match, err := f.matches.CreateMatch("0xcreator", CreateMatchParams{
		Title:             "guarded",
		GameType:          models.GameTypeOnline,
		EntryStake:        25,
		MaxParticipants:   2,
		VotingDurationSec: 600,
	})
	assert.NoError(t, err)

	_, err = f.matches.ConfirmStakeAndJoinMatch("no-such-stake", "0xcross", "base")
	assert.ErrorIs(t, err, ErrStakeNotFound)

	// Staked amount below the entry stake cannot buy a seat.
	short, err := f.ledger.StakeForMatch("0xcross", match.ID, 10, 1)
	assert.NoError(t, err)
	_, err = f.matches.ConfirmStakeAndJoinMatch(short.ID, "0xcross", "base")
	assert.ErrorIs(t, err, ErrStakeMismatch)

	full, err := f.ledger.StakeForMatch("0xcross", match.ID, 25, 1)
	assert.NoError(t, err)

	// Only the staker can spend their stake record.
	_, err = f.matches.ConfirmStakeAndJoinMatch(full.ID, "0xthief", "base")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = f.matches.ConfirmStakeAndJoinMatch(full.ID, "0xcross", "base")
	assert.NoError(t, err)
}

func TestMatchViews(t *testing.T) {
	f := newFixture(t)
	f.openMatch(t, []string{"0xa", "0xb"}, 10)
	f.openMatch(t, []string{"0xc", "0xd"}, 15)

	all, err := f.matches.GetAllMatches()
	assert.NoError(t, err)
	assert.Len(t, all, 2)

	count, err := f.matches.MatchCounter()
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)

	mine, err := f.matches.GetUserMatches("0xa")
	assert.NoError(t, err)
	assert.Len(t, mine, 1)

	none, err := f.matches.GetUserMatches("0xnobody")
	assert.NoError(t, err)
	assert.Len(t, none, 0)

	_, err = f.matches.GetMatchParticipants("no-such-match")
	assert.ErrorIs(t, err, ErrMatchNotFound)
}
