package services

import (
	"log"
	"time"

	"match-arena-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartExpirySweep finalizes voting sessions whose window expired without a
// finalize call, so every match reaches a terminal decision even when no
// participant triggers it.
func (s *VotingService) StartExpirySweep() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: finalize expired, unfinalized sessions
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			var sessions []models.VotingSession
			now := time.Now()
			err := s.DB.Where("finalized = ? AND voting_end_time <= ?", false, now).
				Find(&sessions).Error
			if err != nil {
				log.Printf("[Sweep] DB error: %v", err)
				return
			}

			for _, session := range sessions {
				if _, err := s.FinalizeVoting(session.MatchID); err != nil {
					log.Printf("[Sweep] Failed to finalize voting for match %s: %v", session.MatchID, err)
				} else {
					log.Printf("✅ Auto-finalized expired voting for match %s", session.MatchID)
				}
			}
		}),
	)
}
