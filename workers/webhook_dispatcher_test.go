package workers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"match-arena-system/models"

	"github.com/stretchr/testify/assert"
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
	if err := db.AutoMigrate(&models.MatchEvent{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedEvent(t *testing.T, db *gorm.DB, id, name string) *models.MatchEvent {
	t.Helper()
	event := &models.MatchEvent{
		ID:      id,
		MatchID: "match-1",
		Name:    name,
		Payload: `{"match_id":"match-1"}`,
	}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return event
}

func TestDeliverPostsEnvelopeToAllConsumers(t *testing.T) {
	db := newTestDB(t)

	var mu sync.Mutex
	var received []eventEnvelope
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var env eventEnvelope
		assert.NoError(t, json.Unmarshal(body, &env))
		mu.Lock()
		received = append(received, env)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	first := httptest.NewServer(handler)
	defer first.Close()
	second := httptest.NewServer(handler)
	defer second.Close()

	d := &WebhookDispatcher{
		DB:           db,
		ConsumerURLs: []string{first.URL, second.URL},
		HTTPClient:   &http.Client{Timeout: time.Second},
	}

	event := seedEvent(t, db, "evt-1", models.EventMatchCreated)
	assert.True(t, d.deliver(event))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received, 2)
	for _, env := range received {
		assert.Equal(t, "evt-1", env.ID)
		assert.Equal(t, "match-1", env.MatchID)
		assert.Equal(t, models.EventMatchCreated, env.Event)
	}
}

func TestDeliverFailsOnRejectingConsumer(t *testing.T) {
	db := newTestDB(t)

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer rejecting.Close()

	d := &WebhookDispatcher{
		DB:           db,
		ConsumerURLs: []string{ok.URL, rejecting.URL},
		HTTPClient:   &http.Client{Timeout: time.Second},
	}

	event := seedEvent(t, db, "evt-2", models.EventVoteCasted)
	assert.False(t, d.deliver(event))

	// Delivery failure leaves the event undispatched for the next tick.
	var stored models.MatchEvent
	assert.NoError(t, db.First(&stored, "id = ?", "evt-2").Error)
	assert.False(t, stored.Dispatched)
}

func TestDeliverFailsOnUnreachableConsumer(t *testing.T) {
	db := newTestDB(t)

	d := &WebhookDispatcher{
		DB:           db,
		ConsumerURLs: []string{"http://127.0.0.1:1/webhook"},
		HTTPClient:   &http.Client{Timeout: 200 * time.Millisecond},
	}

	event := seedEvent(t, db, "evt-3", models.EventRewardsClaimed)
	assert.False(t, d.deliver(event))
}

func TestNewWebhookDispatcherParsesConsumerList(t *testing.T) {
	db := newTestDB(t)

	t.Setenv("WEBHOOK_CONSUMER_URLS", " http://one/hook , http://two/hook ,")
	d := NewWebhookDispatcher(db)
	assert.Equal(t, []string{"http://one/hook", "http://two/hook"}, d.ConsumerURLs)

	t.Setenv("WEBHOOK_CONSUMER_URLS", "")
	empty := NewWebhookDispatcher(db)
	assert.Empty(t, empty.ConsumerURLs)
}
