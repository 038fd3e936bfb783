package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"match-arena-system/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Match{},
		&models.Participant{},
		&models.VotingSession{},
		&models.Vote{},
		&models.RewardPool{},
		&models.RewardEntry{},
		&models.UserAccount{},
		&models.StakeRecord{},
		&models.RelayedAction{},
		&models.MatchEvent{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

type fixture struct {
	db      *gorm.DB
	ledger  *LedgerService
	matches *MatchService
	voting  *VotingService
	rewards *RewardService
	relayer *RelayerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	matches := NewMatchService(db)
	return &fixture{
		db:      db,
		ledger:  ledger,
		matches: matches,
		voting:  NewVotingService(db),
		rewards: NewRewardService(db),
		relayer: NewRelayerService(db),
	}
}

// register creates an account and tops it up past the signup bonus.
func (f *fixture) register(t *testing.T, address string, extra int64) {
	t.Helper()
	if _, err := f.ledger.RegisterUser(address); err != nil {
		t.Fatalf("register %s: %v", address, err)
	}
	if extra > 0 {
		if _, err := f.ledger.DepositTokens(address, extra); err != nil {
			t.Fatalf("deposit %s: %v", address, err)
		}
	}
}

func (f *fixture) balance(t *testing.T, address string) int64 {
	t.Helper()
	account, err := f.ledger.GetAccount(address)
	if err != nil {
		t.Fatalf("get account %s: %v", address, err)
	}
	return account.Balance
}

// openMatch creates a match with the given players registered and joined.
// The first player is the creator.
func (f *fixture) openMatch(t *testing.T, players []string, stake int64) *models.Match {
	t.Helper()
	for _, p := range players {
		f.register(t, p, stake)
	}
	match, err := f.matches.CreateMatch(players[0], CreateMatchParams{
		Title:             "rooftop cup",
		GameType:          models.GameTypeOutdoor,
		EntryStake:        stake,
		MaxParticipants:   len(players),
		VotingDurationSec: 3600,
	})
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	for _, p := range players {
		if _, err := f.matches.JoinMatch(match.ID, p, "base"); err != nil {
			t.Fatalf("join %s: %v", p, err)
		}
	}
	return match
}

// votingMatch drives an open match through start and into the voting phase.
func (f *fixture) votingMatch(t *testing.T, players []string, stake int64) *models.Match {
	t.Helper()
	match := f.openMatch(t, players, stake)
	if _, err := f.matches.StartMatch(match.ID, players[0]); err != nil {
		t.Fatalf("start match: %v", err)
	}
	if _, err := f.matches.StartVotingPhase(match.ID, players[0]); err != nil {
		t.Fatalf("start voting: %v", err)
	}
	return match
}

// expireVoting pushes the session window into the past so finalize and
// late-vote paths can be exercised without sleeping.
func (f *fixture) expireVoting(t *testing.T, matchID string) {
	t.Helper()
	err := f.db.Model(&models.VotingSession{}).
		Where("match_id = ?", matchID).
		Update("voting_end_time", time.Now().Add(-time.Minute)).Error
	if err != nil {
		t.Fatalf("expire voting session: %v", err)
	}
}

func (f *fixture) eventNames(t *testing.T, matchID string) []string {
	t.Helper()
	var events []models.MatchEvent
	if err := f.db.Where("match_id = ?", matchID).Order("created_at ASC").Find(&events).Error; err != nil {
		t.Fatalf("load events: %v", err)
	}
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}
