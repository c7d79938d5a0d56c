// Package history persists the networks seen by each finished scan session
// and serves them back over HTTP.
package history

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/wlanscan/internal/scan"
	"github.com/HerbHall/wlanscan/pkg/models"
	"github.com/HerbHall/wlanscan/pkg/plugin"
	"github.com/HerbHall/wlanscan/pkg/roles"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.HTTPProvider    = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ roles.HistoryProvider  = (*Module)(nil)
)

// ErrNoStore is returned by Init when no database is configured.
var ErrNoStore = errors.New("history: a database store is required")

// schemaVersioner is implemented by stores that can report how far a
// plugin's migrations have run.
type schemaVersioner interface {
	SchemaVersion(ctx context.Context, pluginName string) (int, error)
}

// Module implements the scan history plugin.
type Module struct {
	logger *zap.Logger
	cfg    Config
	store  *Store

	mu        sync.Mutex
	saved     int
	schema    int
	lastError string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a history plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "history",
		Version:      "0.1.0",
		Description:  "Persists networks observed by finished scans",
		Dependencies: []string{"scan"},
		Roles:        []string{roles.RoleScanHistory},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal history config: %w", err)
		}
	}

	if deps.Store == nil {
		return ErrNoStore
	}
	if err := deps.Store.Migrate(ctx, "history", migrations()); err != nil {
		return fmt.Errorf("history migrations: %w", err)
	}
	m.store = NewStore(deps.Store)
	if sv, ok := deps.Store.(schemaVersioner); ok {
		v, err := sv.SchemaVersion(ctx, "history")
		if err != nil {
			return fmt.Errorf("history schema version: %w", err)
		}
		m.schema = v
	}

	m.logger.Info("history module initialized",
		zap.Duration("retention", m.cfg.Retention),
		zap.Duration("maintenance_interval", m.cfg.MaintenanceInterval),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	if m.cfg.Retention > 0 && m.cfg.MaintenanceInterval > 0 {
		m.startMaintenance()
	}
	m.logger.Info("history module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("history module stopped")
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := plugin.HealthStatus{
		Status:  "healthy",
		Details: map[string]string{
			"sessions_saved": strconv.Itoa(m.saved),
			"schema_version": strconv.Itoa(m.schema),
		},
	}
	if m.lastError != "" {
		status.Status = "degraded"
		status.Message = m.lastError
	}
	return status
}

// Subscriptions implements plugin.EventSubscriber.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: scan.TopicScanCompleted, Handler: m.handleScanEnded},
		{Topic: scan.TopicScanFailed, Handler: m.handleScanEnded},
	}
}

// Sightings implements roles.HistoryProvider.
func (m *Module) Sightings(ctx context.Context, q roles.SightingQuery) ([]models.Sighting, error) {
	return m.store.Sightings(ctx, q)
}

func (m *Module) handleScanEnded(ctx context.Context, event plugin.Event) {
	ended, ok := event.Payload.(scan.EndedEvent)
	if !ok {
		m.logger.Debug("ignored scan event: unexpected payload type",
			zap.String("topic", event.Topic), zap.String("source", event.Source))
		return
	}

	nets := ended.Networks
	if !m.cfg.IncludeHidden {
		kept := make([]models.NetworkSummary, 0, len(nets))
		for _, n := range nets {
			if !n.Hidden {
				kept = append(kept, n)
			}
		}
		nets = kept
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	err := m.store.SaveSession(ctx, ended.Session, nets)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.lastError = err.Error()
		m.logger.Warn("failed to save scan session",
			zap.String("session", ended.Session.ID), zap.Error(err))
		return
	}
	m.saved++
	m.lastError = ""
	m.logger.Debug("saved scan session",
		zap.String("session", ended.Session.ID), zap.Int("networks", len(nets)))
}

func (m *Module) startMaintenance() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.MaintenanceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.runMaintenance()
			}
		}
	}()
}

func (m *Module) runMaintenance() {
	ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
	defer cancel()

	deleted, err := m.store.DeleteOlderThan(ctx, time.Now().Add(-m.cfg.Retention))
	if err != nil {
		m.logger.Warn("failed to prune scan history", zap.Error(err))
		return
	}
	if deleted > 0 {
		m.logger.Info("pruned scan history", zap.Int64("sessions", deleted))
	}
}
