package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/wlanscan/internal/config"
	"github.com/HerbHall/wlanscan/internal/scan"
	"github.com/HerbHall/wlanscan/pkg/models"
	"github.com/HerbHall/wlanscan/pkg/plugin"
	"github.com/HerbHall/wlanscan/pkg/plugin/plugintest"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func TestContract(t *testing.T) {
	plugintest.TestPluginContract(t, func() plugin.Plugin { return New() })
}

func TestSubscriptions_ReturnsExpectedTopics(t *testing.T) {
	m := New()
	if err := m.Init(context.Background(), plugin.Dependencies{Logger: zap.NewNop()}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	subs := m.Subscriptions()
	if len(subs) != 2 {
		t.Fatalf("Subscriptions() returned %d, want 2", len(subs))
	}

	topics := make(map[string]bool)
	for _, s := range subs {
		topics[s.Topic] = true
	}
	for _, topic := range []string{scan.TopicScanCompleted, scan.TopicScanFailed} {
		if !topics[topic] {
			t.Errorf("missing subscription for topic %q", topic)
		}
	}
}

func newModule(t *testing.T, settings map[string]any) *Module {
	t.Helper()
	v := viper.New()
	for k, val := range settings {
		v.Set(k, val)
	}
	m := New()
	if err := m.Init(context.Background(), plugin.Dependencies{
		Logger: zap.NewNop(),
		Config: config.New(v),
	}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return m
}

type receiver struct {
	mu       sync.Mutex
	received []WebhookPayload
	srv      *httptest.Server
}

func newReceiver(t *testing.T, status int) *receiver {
	t.Helper()
	rc := &receiver{}
	rc.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "wlanscan-webhook/") {
			t.Errorf("User-Agent = %q, want wlanscan-webhook/ prefix", ua)
		}
		var p WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		rc.mu.Lock()
		rc.received = append(rc.received, p)
		rc.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(rc.srv.Close)
	return rc
}

func (rc *receiver) count() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.received)
}

func endedEvent(topic string, status models.SessionStatus, nets ...models.NetworkSummary) plugin.Event {
	return plugin.Event{
		Topic:     topic,
		Source:    "scan",
		Timestamp: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Payload: scan.EndedEvent{
			Session:  models.SessionSummary{ID: "sess-1", Status: status, Inserted: len(nets)},
			Networks: nets,
		},
	}
}

func TestHandleEvent_DeliversWebhook(t *testing.T) {
	rc := newReceiver(t, http.StatusOK)
	m := newModule(t, map[string]any{"url": rc.srv.URL, "timeout": "5s"})

	m.handleEvent(context.Background(), endedEvent(scan.TopicScanCompleted, models.SessionCompleted,
		models.NetworkSummary{SSID: "office", RSSI: -57, Compatible: true},
		models.NetworkSummary{SSID: "office", RSSI: -48, Compatible: true},
		models.NetworkSummary{SSID: "guest", RSSI: -40},
	))

	if rc.count() != 1 {
		t.Fatalf("received %d webhooks, want 1", rc.count())
	}
	got := rc.received[0]
	if got.Event != scan.TopicScanCompleted {
		t.Errorf("event = %q, want %q", got.Event, scan.TopicScanCompleted)
	}
	if got.Source != "scan" {
		t.Errorf("source = %q, want scan", got.Source)
	}
	if got.Timestamp != "2026-01-15T10:30:00Z" {
		t.Errorf("timestamp = %q", got.Timestamp)
	}
	if got.Networks != 3 || got.Compatible != 2 {
		t.Errorf("networks/compatible = %d/%d, want 3/2", got.Networks, got.Compatible)
	}
	if got.Strongest == nil || got.Strongest.RSSI != -48 {
		t.Errorf("strongest = %+v, want the -48 dBm office BSS", got.Strongest)
	}
}

func TestHandleEvent_FailuresOnly(t *testing.T) {
	rc := newReceiver(t, http.StatusOK)
	m := newModule(t, map[string]any{"url": rc.srv.URL, "failures_only": true})

	m.handleEvent(context.Background(), endedEvent(scan.TopicScanCompleted, models.SessionCompleted))
	m.handleEvent(context.Background(), endedEvent(scan.TopicScanFailed, models.SessionFailed))

	if rc.count() != 1 {
		t.Fatalf("received %d webhooks, want 1", rc.count())
	}
	if rc.received[0].Session.Status != models.SessionFailed {
		t.Errorf("status = %q, want failed", rc.received[0].Session.Status)
	}
}

func TestHandleEvent_SkipsWhenDisabled(t *testing.T) {
	rc := newReceiver(t, http.StatusOK)
	m := newModule(t, map[string]any{"url": rc.srv.URL, "enabled": false})

	m.handleEvent(context.Background(), endedEvent(scan.TopicScanCompleted, models.SessionCompleted))

	if rc.count() != 0 {
		t.Error("expected webhook NOT to be called when disabled")
	}
}

func TestHandleEvent_SkipsForeignPayload(t *testing.T) {
	rc := newReceiver(t, http.StatusOK)
	m := newModule(t, map[string]any{"url": rc.srv.URL})

	m.handleEvent(context.Background(), plugin.Event{Topic: scan.TopicScanCompleted, Payload: "nope"})

	if rc.count() != 0 {
		t.Error("expected webhook NOT to be called for a foreign payload")
	}
}

func TestHandleEvent_SkipsWhenNoURL(t *testing.T) {
	m := New()
	if err := m.Init(context.Background(), plugin.Dependencies{Logger: zap.NewNop()}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// Should not panic when URL is empty.
	m.handleEvent(context.Background(), endedEvent(scan.TopicScanCompleted, models.SessionCompleted))
}

func TestHandleEvent_LogsOnServerError(t *testing.T) {
	rc := newReceiver(t, http.StatusInternalServerError)
	m := newModule(t, map[string]any{"url": rc.srv.URL})

	// Should not panic; warning is logged.
	m.handleEvent(context.Background(), endedEvent(scan.TopicScanFailed, models.SessionFailed))

	if rc.count() != 1 {
		t.Errorf("received %d webhooks, want 1", rc.count())
	}
}
