package workers

import (
	"context"
	"log"
	"time"

	"match-arena-system/services"
)

// PollRelayerActions drains the relayed-action queue on an interval. A
// single goroutine runs this loop, which serializes action processing and
// keeps a replayed or re-read action from being applied twice.
func PollRelayerActions(ctx context.Context, relayer *services.RelayerService, pollInterval time.Duration) {
	log.Println("Starting relayer action worker...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Relayer action worker stopped.")
			return
		case <-ticker.C:
			processed, err := relayer.ProcessPendingActions(ctx)
			if err != nil {
				log.Printf("❌ Error processing relayer actions: %v", err)
				continue
			}
			if processed > 0 {
				log.Printf("✅ Processed %d relayer action(s)", processed)
			}
		}
	}
}
