package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/wlanscan/internal/scan"
	"github.com/HerbHall/wlanscan/pkg/models"
	"github.com/HerbHall/wlanscan/pkg/plugin"
	"github.com/HerbHall/wlanscan/pkg/plugin/plugintest"
	"go.uber.org/zap"
)

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	msgs         []message
	disconnected bool
}

func (f *fakeClient) Publish(topic string, _ byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, message{topic: topic, retained: retained, payload: payload})
	return nil
}

func (f *fakeClient) IsConnected() bool { return f.connected }

func (f *fakeClient) Disconnect() {
	f.disconnected = true
	f.connected = false
}

func (f *fakeClient) take() []message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.msgs
	f.msgs = nil
	return out
}

type mapConfig map[string]any

func (c mapConfig) Unmarshal(target any) error {
	cfg := target.(*Config)
	if v, ok := c["broker_url"].(string); ok {
		cfg.BrokerURL = v
	}
	if v, ok := c["ha_discovery"].(bool); ok {
		cfg.HADiscovery = v
	}
	if v, ok := c["watch_ssids"].([]string); ok {
		cfg.WatchSSIDs = v
	}
	return nil
}

func (c mapConfig) Get(key string) any { return c[key] }

func (c mapConfig) GetString(key string) string {
	s, _ := c[key].(string)
	return s
}

func (c mapConfig) GetBool(key string) bool {
	b, _ := c[key].(bool)
	return b
}

func (c mapConfig) IsSet(key string) bool {
	_, ok := c[key]
	return ok
}

func (c mapConfig) GetInt(string) int                { return 0 }
func (c mapConfig) GetDuration(string) time.Duration { return 0 }
func (c mapConfig) Sub(string) plugin.Config         { return mapConfig{} }

func newTestModule(t *testing.T, cfg mapConfig) (*Module, *fakeClient) {
	t.Helper()
	fc := &fakeClient{connected: true}
	m := New()
	m.connect = func(Config, *zap.Logger) publisher { return fc }
	if err := m.Init(context.Background(), plugin.Dependencies{Logger: zap.NewNop(), Config: cfg}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return m, fc
}

func ended(status models.SessionStatus, nets ...models.NetworkSummary) plugin.Event {
	return plugin.Event{
		Topic: scan.TopicScanCompleted,
		Payload: scan.EndedEvent{
			Session:  models.SessionSummary{ID: "sess-1", Status: status},
			Networks: nets,
		},
	}
}

var (
	office = models.NetworkSummary{BSSID: "00:1a:2b:10:00:01", SSID: "office", RSSI: -48, Security: "WPA2", Compatible: true}
	guest  = models.NetworkSummary{BSSID: "00:1a:2b:10:00:03", SSID: "guest", RSSI: -62, Security: "Open"}
)

func TestContract(t *testing.T) {
	plugintest.TestPluginContract(t, func() plugin.Plugin { return New() })
}

func TestInfo_ReturnsCorrectMetadata(t *testing.T) {
	info := New().Info()

	if info.Name != "mqtt" {
		t.Errorf("Name = %q, want mqtt", info.Name)
	}
	if len(info.Dependencies) != 1 || info.Dependencies[0] != "scan" {
		t.Errorf("Dependencies = %v, want [scan]", info.Dependencies)
	}
	if info.APIVersion != plugin.APIVersionCurrent {
		t.Errorf("APIVersion = %d, want %d", info.APIVersion, plugin.APIVersionCurrent)
	}
}

func TestSubscriptions_ReturnsExpectedTopics(t *testing.T) {
	subs := New().Subscriptions()
	if len(subs) != 2 {
		t.Fatalf("Subscriptions() returned %d, want 2", len(subs))
	}
	if subs[0].Topic != scan.TopicScanCompleted || subs[1].Topic != scan.TopicScanFailed {
		t.Errorf("topics = %q, %q", subs[0].Topic, subs[1].Topic)
	}
}

func TestNoBroker_IsNoOp(t *testing.T) {
	m := New()
	called := false
	m.connect = func(Config, *zap.Logger) publisher { called = true; return &fakeClient{} }
	if err := m.Init(context.Background(), plugin.Dependencies{Logger: zap.NewNop()}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if called {
		t.Error("connect called without a broker URL")
	}
	m.handleScanEnded(context.Background(), ended(models.SessionCompleted, office))
	if h := m.Health(context.Background()); h.Status != "healthy" {
		t.Errorf("Health().Status = %q, want healthy", h.Status)
	}
}

func TestScanEnded_PublishesSessionAndNetworks(t *testing.T) {
	m, fc := newTestModule(t, mapConfig{"broker_url": "tcp://broker:1883"})

	m.handleScanEnded(context.Background(), ended(models.SessionCompleted, office, guest))

	msgs := fc.take()
	if len(msgs) != 3 {
		t.Fatalf("published %d messages, want 3", len(msgs))
	}
	if msgs[0].topic != "wlanscan/scan/completed" || msgs[0].retained {
		t.Errorf("session message = %q retained=%v", msgs[0].topic, msgs[0].retained)
	}
	if msgs[1].topic != "wlanscan/network/00_1a_2b_10_00_01" || !msgs[1].retained {
		t.Errorf("network message = %q retained=%v", msgs[1].topic, msgs[1].retained)
	}
	var got models.NetworkSummary
	if err := json.Unmarshal(msgs[1].payload, &got); err != nil {
		t.Fatalf("decode network: %v", err)
	}
	if got.SSID != "office" || got.RSSI != -48 {
		t.Errorf("network = %+v, want office at -48", got)
	}
	if h := m.Health(context.Background()); h.Details["networks"] != "2" {
		t.Errorf("Health().Details[networks] = %q, want 2", h.Details["networks"])
	}
}

func TestScanEnded_ClearsDepartedNetworks(t *testing.T) {
	m, fc := newTestModule(t, mapConfig{"broker_url": "tcp://broker:1883", "ha_discovery": true})

	m.handleScanEnded(context.Background(), ended(models.SessionCompleted, office, guest))
	first := fc.take()
	// session + 2 states + 2x2 discovery configs
	if len(first) != 7 {
		t.Fatalf("first scan published %d messages, want 7", len(first))
	}

	m.handleScanEnded(context.Background(), ended(models.SessionCompleted, office))
	second := fc.take()
	// session + office state + cleared guest state + 2 removal configs
	if len(second) != 5 {
		t.Fatalf("second scan published %d messages, want 5", len(second))
	}
	cleared := second[2]
	if cleared.topic != "wlanscan/network/00_1a_2b_10_00_03" || len(cleared.payload) != 0 || !cleared.retained {
		t.Errorf("cleared = %q payload=%q retained=%v", cleared.topic, cleared.payload, cleared.retained)
	}
	for _, msg := range second[3:] {
		if len(msg.payload) != 0 {
			t.Errorf("removal config %q has payload", msg.topic)
		}
	}
}

func TestScanEnded_FailedSessionKeepsNetworkState(t *testing.T) {
	m, fc := newTestModule(t, mapConfig{"broker_url": "tcp://broker:1883"})
	m.handleScanEnded(context.Background(), ended(models.SessionCompleted, office))
	fc.take()

	m.handleScanEnded(context.Background(), ended(models.SessionFailed))

	msgs := fc.take()
	if len(msgs) != 1 || msgs[0].topic != "wlanscan/scan/failed" {
		t.Fatalf("messages = %+v, want only the failed session", msgs)
	}
}

func TestScanEnded_WatchList(t *testing.T) {
	m, fc := newTestModule(t, mapConfig{"broker_url": "tcp://broker:1883", "watch_ssids": []string{"guest"}})

	m.handleScanEnded(context.Background(), ended(models.SessionCompleted, office, guest))

	msgs := fc.take()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(msgs))
	}
	if msgs[1].topic != "wlanscan/network/00_1a_2b_10_00_03" {
		t.Errorf("network topic = %q, want the guest BSS", msgs[1].topic)
	}
}

func TestScanEnded_IgnoresForeignPayload(t *testing.T) {
	m, fc := newTestModule(t, mapConfig{"broker_url": "tcp://broker:1883"})
	m.handleScanEnded(context.Background(), plugin.Event{Topic: scan.TopicScanCompleted, Payload: "nope"})
	if msgs := fc.take(); len(msgs) != 0 {
		t.Errorf("published %d messages, want 0", len(msgs))
	}
}

func TestStop_Disconnects(t *testing.T) {
	m, fc := newTestModule(t, mapConfig{"broker_url": "tcp://broker:1883"})
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !fc.disconnected {
		t.Error("Stop() did not disconnect")
	}
	if h := m.Health(context.Background()); h.Status != "degraded" {
		t.Errorf("Health().Status = %q, want degraded", h.Status)
	}
}
