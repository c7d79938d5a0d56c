// Package webhook posts a JSON notification to a configured URL whenever a
// scan session ends.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/HerbHall/wlanscan/internal/scan"
	"github.com/HerbHall/wlanscan/internal/version"
	"github.com/HerbHall/wlanscan/pkg/models"
	"github.com/HerbHall/wlanscan/pkg/plugin"
	"github.com/HerbHall/wlanscan/pkg/roles"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
)

// Config holds the webhook plugin configuration.
type Config struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Enabled bool          `mapstructure:"enabled"`
	// FailuresOnly suppresses notifications for completed and aborted
	// sessions.
	FailuresOnly bool `mapstructure:"failures_only"`
}

// DefaultConfig returns the webhook defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Enabled: true,
	}
}

// Module implements the Webhook notifier plugin.
type Module struct {
	logger *zap.Logger
	cfg    Config
	client *http.Client
}

// New creates a new Webhook plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "webhook",
		Version:      "0.1.0",
		Description:  "Sends HTTP POST notifications to a configurable webhook URL when scans end",
		Dependencies: []string{"scan"},
		Roles:        []string{roles.RoleNotifier},
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

	m.client = &http.Client{Timeout: m.cfg.Timeout}

	if m.cfg.URL == "" {
		m.logger.Warn("webhook URL not configured; notifications will be dropped",
			zap.String("component", "webhook"),
		)
	}

	m.logger.Info("webhook module initialized",
		zap.String("url", m.cfg.URL),
		zap.Duration("timeout", m.cfg.Timeout),
		zap.Bool("enabled", m.cfg.Enabled),
		zap.Bool("failures_only", m.cfg.FailuresOnly),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("webhook module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("webhook module stopped")
	return nil
}

// Subscriptions implements plugin.EventSubscriber.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: scan.TopicScanCompleted, Handler: m.handleEvent},
		{Topic: scan.TopicScanFailed, Handler: m.handleEvent},
	}
}

// WebhookPayload is the JSON body sent to the webhook URL.
type WebhookPayload struct {
	Event      string                 `json:"event"`
	Source     string                 `json:"source"`
	Timestamp  string                 `json:"timestamp"`
	Session    models.SessionSummary  `json:"session"`
	Networks   int                    `json:"networks"`
	Compatible int                    `json:"compatible"`
	Strongest  *models.NetworkSummary `json:"strongest,omitempty"`
}

func buildPayload(event plugin.Event, ended scan.EndedEvent) WebhookPayload {
	p := WebhookPayload{
		Event:     event.Topic,
		Source:    event.Source,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Session:   ended.Session,
		Networks:  len(ended.Networks),
	}
	for i := range ended.Networks {
		n := &ended.Networks[i]
		if !n.Compatible {
			continue
		}
		p.Compatible++
		if p.Strongest == nil || n.RSSI > p.Strongest.RSSI {
			p.Strongest = n
		}
	}
	return p
}

func (m *Module) handleEvent(ctx context.Context, event plugin.Event) {
	if !m.cfg.Enabled || m.cfg.URL == "" {
		return
	}
	ended, ok := event.Payload.(scan.EndedEvent)
	if !ok {
		return
	}
	if m.cfg.FailuresOnly && ended.Session.Status != models.SessionFailed {
		return
	}

	body, err := json.Marshal(buildPayload(event, ended))
	if err != nil {
		m.logger.Error("failed to marshal webhook payload",
			zap.String("topic", event.Topic),
			zap.Error(err),
		)
		return
	}

	m.send(ctx, body, event.Topic)
}

func (m *Module) send(ctx context.Context, body []byte, topic string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.URL, bytes.NewReader(body))
	if err != nil {
		m.logger.Error("failed to create webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "wlanscan-webhook/"+version.Short())

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Warn("webhook delivery failed",
			zap.String("url", m.cfg.URL),
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		m.logger.Warn("webhook endpoint returned error",
			zap.String("url", m.cfg.URL),
			zap.String("topic", topic),
			zap.Int("status_code", resp.StatusCode),
		)
		return
	}

	m.logger.Debug("webhook delivered",
		zap.String("topic", topic),
		zap.Int("status_code", resp.StatusCode),
	)
}
