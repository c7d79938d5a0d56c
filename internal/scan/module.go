package scan

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/wlanscan/internal/bss"
	"github.com/HerbHall/wlanscan/internal/chanlist"
	"github.com/HerbHall/wlanscan/internal/compat"
	"github.com/HerbHall/wlanscan/internal/scantable"
	"github.com/HerbHall/wlanscan/pkg/models"
	"github.com/HerbHall/wlanscan/pkg/plugin"
	"github.com/HerbHall/wlanscan/pkg/roles"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
	_ roles.ScanProvider   = (*Module)(nil)
)

// Module is the scan service plugin. It owns the engine and its radio,
// publishes scan events and runs the optional background scan.
type Module struct {
	logger *zap.Logger
	cfg    Config
	bus    plugin.EventBus
	engine *Engine
	radio  Radio
	policy compat.Policy
	region string

	openRadio func(Config, *zap.Logger) (Radio, error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scan plugin instance.
func New() *Module {
	return &Module{openRadio: OpenRadio}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "scan",
		Version:     "0.1.0",
		Description: "Wi-Fi scan engine: channel planning, firmware scans and the scan table",
		Roles:       []string{roles.RoleScanner},
		Required:    true,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal scan config: %w", err)
		}
	}

	bc, err := m.cfg.builderConfig()
	if err != nil {
		return fmt.Errorf("scan config: %w", err)
	}
	opts, err := m.cfg.engineOptions()
	if err != nil {
		return fmt.Errorf("scan config: %w", err)
	}
	if m.policy, err = m.cfg.policy(); err != nil {
		return fmt.Errorf("scan policy: %w", err)
	}
	m.region = bc.Region.Name

	open := m.openRadio
	if open == nil {
		open = OpenRadio
	}
	if m.radio, err = open(m.cfg, m.logger.Named("radio")); err != nil {
		return err
	}

	builder := chanlist.NewBuilder(bc, m.logger.Named("chanlist"))
	m.engine = NewEngine(m.radio, builder, opts, m.logger.Named("orchestrator"))
	m.engine.SetHooks(m.hooks())

	m.logger.Info("scan module initialized",
		zap.String("radio", m.cfg.Radio),
		zap.String("region", m.region),
		zap.String("bands", bc.Bands.String()),
		zap.Bool("ext_scan", opts.Ext),
		zap.Int("table_size", m.engine.Table().Cap()),
		zap.Duration("background_interval", m.cfg.backgroundInterval()),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.cfg.TableSize < 0 {
		return fmt.Errorf("table_size must not be negative")
	}
	if m.cfg.MaxChanPerScan < 0 || m.cfg.MaxChanFiltered < 0 {
		return fmt.Errorf("channel batch sizes must not be negative")
	}
	if m.cfg.Radio == RadioPcap && m.cfg.PcapFile == "" {
		return fmt.Errorf("pcap_file is required for the pcap radio")
	}
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	if interval := m.cfg.backgroundInterval(); interval > 0 {
		m.wg.Add(1)
		go m.runBackground(interval)
	}
	m.logger.Info("scan module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	if m.engine != nil {
		if s := m.engine.Active(); s != nil {
			s.Abort()
		}
		m.engine.Wait()
	}
	if m.radio != nil {
		if err := m.radio.Close(); err != nil {
			m.logger.Warn("failed to close radio", zap.Error(err))
		}
	}
	m.logger.Info("scan module stopped")
	return nil
}

// Engine returns the module's scan engine.
func (m *Module) Engine() *Engine { return m.engine }

// Policy returns the configured compatibility policy.
func (m *Module) Policy() compat.Policy { return m.policy }

// -- roles.ScanProvider --

// Networks implements roles.ScanProvider.
func (m *Module) Networks(_ context.Context) ([]models.NetworkSummary, error) {
	return SummarizeAll(m.engine.TableSnapshot(), m.policy), nil
}

// BestNetwork implements roles.ScanProvider.
func (m *Module) BestNetwork(_ context.Context, ssid string) (*models.NetworkSummary, error) {
	rec, ok := m.engine.Table().BestMatch([]byte(ssid), nil, m.policy)
	if !ok {
		return nil, nil
	}
	n := Summarize(rec, m.policy)
	return &n, nil
}

// runContext is the parent of sessions started over HTTP. Sessions outlive
// the request that started them but not the module.
func (m *Module) runContext() context.Context {
	if m.ctx != nil {
		return m.ctx
	}
	return context.Background()
}

func (m *Module) runBackground(interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.backgroundScan()
		}
	}
}

func (m *Module) backgroundScan() {
	if m.engine.Active() != nil {
		m.logger.Debug("skipping background scan, a session is running")
		return
	}
	s, err := m.engine.Start(m.ctx, Request{KeepPrevious: true})
	if err != nil {
		m.logger.Debug("background scan not started", zap.Error(err))
		return
	}
	m.logger.Debug("background scan started", zap.String("session", s.ID))
}

// -- plugin.HealthChecker --

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if m.engine == nil {
		return plugin.HealthStatus{Status: "unhealthy", Message: "scan engine not initialized"}
	}
	details := map[string]string{
		"table_entries":       strconv.Itoa(m.engine.Table().Len()),
		"table_capacity":      strconv.Itoa(m.engine.Table().Cap()),
		"radio":               m.cfg.Radio,
		"region":              m.region,
		"background_interval": m.cfg.backgroundInterval().String(),
	}
	if s := m.engine.Active(); s != nil {
		details["active_session"] = s.ID
	}

	status := plugin.HealthStatus{Status: "healthy", Details: details}
	if sessions := m.engine.Sessions(); len(sessions) > 0 {
		last := sessions[len(sessions)-1]
		if last.Status() == models.SessionFailed {
			status.Status = "degraded"
			status.Message = "last scan failed: " + last.Err().Error()
		}
	}
	return status
}

// -- event publication --

func (m *Module) hooks() Hooks {
	return Hooks{
		OnStart: func(s *Session) {
			m.publish(TopicScanStarted, StartedEvent{
				SessionID:    s.ID,
				Filtered:     s.Request.Filtered(),
				Channels:     len(s.Request.Channels),
				KeepPrevious: s.Request.KeepPrevious,
			})
		},
		OnProgress: func(s *Session, p Progress) {
			m.publish(TopicScanProgress, ProgressEvent{
				SessionID: s.ID,
				Index:     p.Index,
				Total:     p.Total,
				Channels:  p.Channels,
				Found:     p.Found,
				Rescan:    p.Rescan,
			})
		},
		OnNetwork: func(s *Session, r *bss.Record, o scantable.Outcome) {
			m.publish(TopicScanNetwork, NetworkEvent{
				SessionID: s.ID,
				Outcome:   o.String(),
				Network:   Summarize(r, m.policy),
			})
		},
		OnEnd: func(s *Session) {
			topic := TopicScanCompleted
			if s.Status() == models.SessionFailed {
				topic = TopicScanFailed
			}
			m.publish(topic, EndedEvent{
				Session:  s.Summary(m.engine.Table().Len()),
				Networks: SummarizeAll(m.engine.TableSnapshot(), m.policy),
			})
		},
	}
}

func (m *Module) publish(topic string, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.PublishAsync(m.runContext(), plugin.Event{
		Topic:     topic,
		Source:    "scan",
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
