package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"match-arena-system/models"

	"gorm.io/gorm"
)

// WebhookDispatcher pushes match events to registered consumers, replacing
// client-side polling with a push channel. Events stay undispatched on
// delivery failure and are retried next tick.
type WebhookDispatcher struct {
	DB           *gorm.DB
	ConsumerURLs []string
	HTTPClient   *http.Client
}

func NewWebhookDispatcher(db *gorm.DB) *WebhookDispatcher {
	var urls []string
	for _, u := range strings.Split(os.Getenv("WEBHOOK_CONSUMER_URLS"), ",") {
		u = strings.TrimSpace(u)
		if u != "" {
			urls = append(urls, u)
		}
	}
	return &WebhookDispatcher{
		DB:           db,
		ConsumerURLs: urls,
		HTTPClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type eventEnvelope struct {
	ID        string          `json:"id"`
	MatchID   string          `json:"match_id"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// PollEvents delivers undispatched events in order until the context ends.
func PollEvents(ctx context.Context, d *WebhookDispatcher, pollInterval time.Duration) {
	if len(d.ConsumerURLs) == 0 {
		log.Println("⚠️  No webhook consumers configured — event dispatch disabled")
		return
	}
	log.Printf("Starting event dispatcher (%d consumer(s))...", len(d.ConsumerURLs))

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Event dispatcher stopped.")
			return
		case <-ticker.C:
			var events []models.MatchEvent
			err := d.DB.Where("dispatched = ?", false).
				Order("created_at ASC").Limit(100).
				Find(&events).Error
			if err != nil {
				log.Printf("❌ Error fetching undispatched events: %v", err)
				continue
			}
			if len(events) == 0 {
				continue
			}
			log.Printf("📤 Dispatching %d event(s) to %d consumer(s)...", len(events), len(d.ConsumerURLs))

			for i := range events {
				if !d.deliver(&events[i]) {
					// Keep ordering: stop this cycle on first failure and
					// retry the same window next tick.
					break
				}
				now := time.Now()
				if err := d.DB.Model(&events[i]).Updates(map[string]any{
					"dispatched":    true,
					"dispatched_at": &now,
				}).Error; err != nil {
					log.Printf("❌ Failed to mark event %s dispatched: %v", events[i].ID, err)
					break
				}
			}
		}
	}
}

// deliver posts one event to every consumer; all must accept it.
func (d *WebhookDispatcher) deliver(event *models.MatchEvent) bool {
	body, err := json.Marshal(eventEnvelope{
		ID:        event.ID,
		MatchID:   event.MatchID,
		Event:     event.Name,
		Payload:   json.RawMessage(event.Payload),
		Timestamp: event.CreatedAt,
	})
	if err != nil {
		log.Printf("❌ Failed to encode event %s: %v", event.ID, err)
		return false
	}

	for _, url := range d.ConsumerURLs {
		resp, err := d.HTTPClient.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Printf("❌ Webhook delivery to %s failed: %v", url, err)
			return false
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			log.Printf("❌ Webhook consumer %s returned status %d for event %s", url, resp.StatusCode, event.ID)
			return false
		}
	}
	return true
}
