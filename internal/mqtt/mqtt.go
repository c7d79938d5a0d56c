package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/HerbHall/wlanscan/internal/scan"
	"github.com/HerbHall/wlanscan/pkg/models"
	"github.com/HerbHall/wlanscan/pkg/plugin"
	"github.com/HerbHall/wlanscan/pkg/roles"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
)

var errPublishTimeout = errors.New("mqtt: publish timed out")

// publisher is the part of an MQTT client the module uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	IsConnected() bool
	Disconnect()
}

// Module implements the MQTT publisher plugin. It subscribes to scan
// session events via the event bus and publishes the session summary and
// per-network state to an MQTT broker, with optional Home Assistant
// auto-discovery.
type Module struct {
	logger  *zap.Logger
	cfg     Config
	watch   map[string]bool
	connect func(Config, *zap.Logger) publisher

	mu     sync.RWMutex
	client publisher
	// known holds the BSSIDs whose state is currently published.
	known map[string]bool
}

// New creates a new MQTT publisher plugin instance.
func New() *Module {
	return &Module{connect: connectPaho}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "mqtt",
		Version:      "0.1.0",
		Description:  "Publishes scan results to an MQTT broker",
		Dependencies: []string{"scan"},
		Roles:        []string{roles.RoleNotifier, roles.RoleIntegration},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return err
		}
	}
	if m.cfg.Timeout <= 0 {
		m.cfg.Timeout = DefaultConfig().Timeout
	}
	if m.cfg.TopicPrefix == "" {
		m.cfg.TopicPrefix = DefaultConfig().TopicPrefix
	}

	m.watch = nil
	if len(m.cfg.WatchSSIDs) > 0 {
		m.watch = make(map[string]bool, len(m.cfg.WatchSSIDs))
		for _, s := range m.cfg.WatchSSIDs {
			m.watch[s] = true
		}
	}
	m.known = make(map[string]bool)

	if m.cfg.BrokerURL == "" {
		m.logger.Warn("MQTT broker URL not configured; events will be dropped",
			zap.String("component", "mqtt"),
		)
	}

	m.logger.Info("mqtt module initialized",
		zap.String("broker_url", m.cfg.BrokerURL),
		zap.String("client_id", m.cfg.ClientID),
		zap.String("topic_prefix", m.cfg.TopicPrefix),
		zap.Uint8("qos", m.cfg.QoS),
		zap.Bool("ha_discovery", m.cfg.HADiscovery),
		zap.Int("watch_ssids", len(m.watch)),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	if m.cfg.BrokerURL == "" {
		m.logger.Info("mqtt module started (no-op: no broker configured)")
		return nil
	}
	client := m.connect(m.cfg, m.logger)
	m.mu.Lock()
	m.client = client
	m.mu.Unlock()
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect()
		m.logger.Info("mqtt disconnected")
	}
	return nil
}

// Subscriptions implements plugin.EventSubscriber.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: scan.TopicScanCompleted, Handler: m.handleScanEnded},
		{Topic: scan.TopicScanFailed, Handler: m.handleScanEnded},
	}
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if m.cfg.BrokerURL == "" {
		return plugin.HealthStatus{
			Status:  "healthy",
			Message: "no broker configured (no-op mode)",
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil || !m.client.IsConnected() {
		return plugin.HealthStatus{
			Status:  "degraded",
			Message: "not connected to MQTT broker",
		}
	}
	return plugin.HealthStatus{
		Status:  "healthy",
		Message: "connected to " + m.cfg.BrokerURL,
		Details: map[string]string{"networks": strconv.Itoa(len(m.known))},
	}
}

// sessionTopic maps a session status to an MQTT topic path.
func (m *Module) sessionTopic(status models.SessionStatus) string {
	return m.cfg.TopicPrefix + "/scan/" + string(status)
}

func (m *Module) watched(n *models.NetworkSummary) bool {
	return m.watch == nil || m.watch[n.SSID]
}

func (m *Module) handleScanEnded(_ context.Context, event plugin.Event) {
	ended, ok := event.Payload.(scan.EndedEvent)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil || !m.client.IsConnected() {
		return
	}

	if err := m.publishJSON(m.sessionTopic(ended.Session.Status), false, ended.Session); err != nil {
		m.logger.Warn("mqtt session publish failed",
			zap.String("session_id", ended.Session.ID),
			zap.Error(err),
		)
		return
	}

	// Network state is only refreshed after completed or aborted sessions.
	if ended.Session.Status == models.SessionFailed {
		return
	}

	seen := make(map[string]bool, len(ended.Networks))
	for i := range ended.Networks {
		n := &ended.Networks[i]
		if !m.watched(n) {
			continue
		}
		seen[n.BSSID] = true
		if err := m.publishJSON(NetworkTopic(m.cfg.TopicPrefix, n.BSSID), true, n); err != nil {
			m.logger.Warn("mqtt network publish failed", zap.String("bssid", n.BSSID), zap.Error(err))
			continue
		}
		if m.cfg.HADiscovery && !m.known[n.BSSID] {
			m.publishHADiscovery(BuildNetworkDiscoveryConfigs(n, m.cfg.TopicPrefix, m.cfg.HADiscoveryPrefix))
		}
		m.known[n.BSSID] = true
	}

	for bssid := range m.known {
		if seen[bssid] {
			continue
		}
		// Clear the retained state of networks that left the table.
		m.publish(NetworkTopic(m.cfg.TopicPrefix, bssid), true, nil)
		if m.cfg.HADiscovery {
			m.publishHADiscovery(BuildNetworkRemovalConfigs(bssid, m.cfg.HADiscoveryPrefix))
		}
		delete(m.known, bssid)
	}

	m.logger.Debug("mqtt scan published",
		zap.String("session_id", ended.Session.ID),
		zap.Int("networks", len(seen)),
	)
}

func (m *Module) publishJSON(topic string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.client.Publish(topic, m.cfg.QoS, retained, payload)
}

func (m *Module) publish(topic string, retained bool, payload []byte) {
	if err := m.client.Publish(topic, m.cfg.QoS, retained, payload); err != nil {
		m.logger.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// publishHADiscovery publishes a batch of HA discovery config payloads.
// Discovery configs are always retained so HA picks them up on restart.
func (m *Module) publishHADiscovery(configs []DiscoveryConfig) {
	for i := range configs {
		if err := m.client.Publish(configs[i].Topic, m.cfg.QoS, true, configs[i].Payload); err != nil {
			m.logger.Warn("ha discovery publish failed",
				zap.String("topic", configs[i].Topic),
				zap.Error(err),
			)
			continue
		}
		m.logger.Debug("ha discovery published",
			zap.String("topic", configs[i].Topic),
			zap.Bool("removal", len(configs[i].Payload) == 0),
		)
	}
}

// pahoClient adapts a paho client to publisher, waiting for each token.
type pahoClient struct {
	c       pahomqtt.Client
	timeout time.Duration
}

func (p *pahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.c.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return errPublishTimeout
	}
	return token.Error()
}

func (p *pahoClient) IsConnected() bool { return p.c.IsConnected() }
func (p *pahoClient) Disconnect()       { p.c.Disconnect(250) }

func connectPaho(cfg Config, logger *zap.Logger) publisher {
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(cfg.Timeout)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password) //nolint:gosec // G101: config field
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()

	switch {
	case !token.WaitTimeout(cfg.Timeout):
		logger.Warn("mqtt connection timed out; will reconnect in background")
	case token.Error() != nil:
		logger.Warn("mqtt connection failed; will reconnect in background",
			zap.Error(token.Error()),
		)
	default:
		logger.Info("mqtt connected to broker",
			zap.String("broker_url", cfg.BrokerURL),
		)
	}
	return &pahoClient{c: client, timeout: cfg.Timeout}
}
