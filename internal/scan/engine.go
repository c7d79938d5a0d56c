// Package scan drives firmware scans: it builds the channel list, splits it
// into bounded sub-commands, feeds every result into the scan table and
// follows up hidden networks seen on passive channels with an active scan.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/wlanscan/internal/bss"
	"github.com/HerbHall/wlanscan/internal/chanlist"
	"github.com/HerbHall/wlanscan/internal/compat"
	"github.com/HerbHall/wlanscan/internal/fwcmd"
	"github.com/HerbHall/wlanscan/internal/scantable"
	"github.com/HerbHall/wlanscan/pkg/models"
)

var (
	// ErrScanTimeExceeded is returned when one sub-command would dwell
	// longer than the total scan time ceiling.
	ErrScanTimeExceeded = errors.New("scan: total scan time exceeded")
	// ErrTransport wraps a failure to issue a command or collect its
	// results.
	ErrTransport = errors.New("scan: transport failure")
	// ErrScanInProgress is returned by Start while another session runs.
	ErrScanInProgress = errors.New("scan: scan in progress")
	// ErrAborted is the terminal error of an aborted session.
	ErrAborted = errors.New("scan: aborted")
	// ErrNoChannels is returned when the request leaves nothing to scan.
	ErrNoChannels = errors.New("scan: no channels to scan")
	// ErrInvalidRequest is returned for requests outside the allowed bounds.
	ErrInvalidRequest = errors.New("scan: invalid request")
	// ErrUnknownSession is returned by Abort for an id it does not know.
	ErrUnknownSession = errors.New("scan: unknown session")
)

// Transport carries commands to the radio. Issue blocks until the command's
// response arrives; NextEvent blocks until the next unsolicited event.
// Implementations handle their own timeouts.
type Transport interface {
	Issue(ctx context.Context, cmd []byte) ([]byte, error)
	NextEvent(ctx context.Context) ([]byte, error)
}

// Options tunes the engine.
type Options struct {
	TableSize int
	// Ext selects extended scan commands with results delivered as events.
	Ext             bool
	MaxChanPerScan  int
	MaxChanFiltered int
	// MaxTotalScanTime caps the summed dwell of one sub-command.
	MaxTotalScanTime time.Duration
	// ChanGap is the firmware's off-channel gap between channels. When set,
	// batches shrink to MaxChanFiltered and sub-commands are paced.
	ChanGap      time.Duration
	SplitBeforeA bool
	// WPSSession drops results that do not advertise an active WPS session.
	WPSSession bool
	BSSMode    models.BSSMode
}

// DefaultOptions returns the firmware defaults.
func DefaultOptions() Options {
	return Options{
		TableSize:        scantable.DefaultCapacity,
		Ext:              true,
		MaxChanPerScan:   4,
		MaxChanFiltered:  3,
		MaxTotalScanTime: 30 * time.Second,
		SplitBeforeA:     true,
		BSSMode:          models.BSSModeInfra,
	}
}

// Progress describes one completed sub-command.
type Progress struct {
	Index    int
	Total    int
	Channels []uint8
	Found    int
	Rescan   bool
}

// Hooks are optional callbacks run on the session's goroutine.
type Hooks struct {
	OnStart    func(s *Session)
	OnProgress func(s *Session, p Progress)
	OnNetwork  func(s *Session, r *bss.Record, o scantable.Outcome)
	OnEnd      func(s *Session)
}

// maxSessions bounds the finished sessions kept for lookup.
const maxSessions = 32

// Engine owns the scan table and runs at most one session at a time.
type Engine struct {
	logger  *zap.Logger
	tr      Transport
	builder *chanlist.Builder
	parser  *bss.Parser
	table   *scantable.Table
	opts    Options
	hooks   Hooks
	now     func() time.Time

	// cmdMu keeps a single command outstanding on the transport.
	cmdMu sync.Mutex
	seq   uint16

	mu       sync.Mutex
	active   *Session
	sessions map[string]*Session
	order    []string

	wg sync.WaitGroup
}

// NewEngine returns an engine scanning over tr.
func NewEngine(tr Transport, builder *chanlist.Builder, opts Options, logger *zap.Logger) *Engine {
	if opts.MaxChanPerScan <= 0 {
		opts.MaxChanPerScan = 4
	}
	if opts.MaxChanFiltered <= 0 {
		opts.MaxChanFiltered = 3
	}
	if opts.MaxTotalScanTime <= 0 {
		opts.MaxTotalScanTime = 30 * time.Second
	}
	if opts.BSSMode == 0 {
		opts.BSSMode = models.BSSModeInfra
	}
	p := bss.NewParser(logger.Named("parser"))
	p.OnDefect = func(kind string) { parseErrorsTotal.WithLabelValues(kind).Inc() }
	return &Engine{
		logger:   logger,
		tr:       tr,
		builder:  builder,
		parser:   p,
		table:    scantable.New(opts.TableSize),
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// SetHooks installs callbacks. Call it before the first scan.
func (e *Engine) SetHooks(h Hooks) { e.hooks = h }

// Table returns the engine's scan table.
func (e *Engine) Table() *scantable.Table { return e.table }

// TableSnapshot returns copies of every live record.
func (e *Engine) TableSnapshot() []*bss.Record { return e.table.Snapshot() }

// IsCompatible classifies r under p.
func (e *Engine) IsCompatible(r *bss.Record, p compat.Policy) bool {
	return compat.IsCompatible(r, p)
}

// Scan runs req to completion and returns its session. An aborted session
// returns ErrAborted with its partial results left in the table.
func (e *Engine) Scan(ctx context.Context, req Request) (*Session, error) {
	s, err := e.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	<-s.Done()
	return s, s.Err()
}

// Start validates req and runs it in the background. Cancelling ctx aborts
// the session like Abort does.
func (e *Engine) Start(ctx context.Context, req Request) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	if e.active != nil {
		e.mu.Unlock()
		return nil, ErrScanInProgress
	}
	s := newSession(uuid.New().String(), req, e.now())
	e.active = s
	e.remember(s)
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx, s)
	}()
	return s, nil
}

func (e *Engine) remember(s *Session) {
	e.sessions[s.ID] = s
	e.order = append(e.order, s.ID)
	for len(e.order) > maxSessions {
		delete(e.sessions, e.order[0])
		e.order = e.order[1:]
	}
}

// Abort stops the session with the given id before its next sub-command.
func (e *Engine) Abort(id string) error {
	e.mu.Lock()
	s, ok := e.sessions[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownSession)
	}
	s.Abort()
	return nil
}

// Session returns a known session by id.
func (e *Engine) Session(id string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	return s, ok
}

// Sessions returns the remembered sessions, oldest first.
func (e *Engine) Sessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Session, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.sessions[id])
	}
	return out
}

// Active returns the running session, if any.
func (e *Engine) Active() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Wait blocks until every started session has ended.
func (e *Engine) Wait() { e.wg.Wait() }

func (e *Engine) run(ctx context.Context, s *Session) {
	start := e.now()
	log := e.logger.With(zap.String("session", s.ID))
	if e.hooks.OnStart != nil {
		e.hooks.OnStart(s)
	}

	req := s.Request
	if !req.KeepPrevious {
		e.table.Clear()
	}
	err := e.pass(ctx, s, &req)
	if err == nil {
		if rescan, ok := e.rescanRequest(&req); ok {
			log.Debug("rescanning hidden networks actively", zap.Int("channels", len(rescan.Channels)))
			s.markRescanned()
			err = e.pass(ctx, s, rescan)
		}
	}

	status := models.SessionCompleted
	switch {
	case err == nil:
	case errors.Is(err, ErrAborted):
		status = models.SessionAborted
	default:
		status = models.SessionFailed
		if errors.Is(err, ErrTransport) && !req.KeepPrevious {
			e.table.Clear()
		}
	}

	e.mu.Lock()
	e.active = nil
	e.mu.Unlock()

	scanDuration.Observe(e.now().Sub(start).Seconds())
	sessionsTotal.WithLabelValues(string(status)).Inc()
	tableEntries.Set(float64(e.table.Len()))
	if err != nil && status == models.SessionFailed {
		log.Warn("scan failed", zap.Error(err))
	} else {
		log.Info("scan finished", zap.String("status", string(status)), zap.Int("entries", e.table.Len()))
	}
	s.finish(status, err, e.now())
	if e.hooks.OnEnd != nil {
		e.hooks.OnEnd(s)
	}
}

// pass builds the channel list for req and issues its sub-commands in
// order. The abort flag is checked before each one.
func (e *Engine) pass(ctx context.Context, s *Session, req *Request) error {
	descs, err := e.builder.Build(req.chanlistRequest())
	if err != nil {
		return err
	}
	if len(descs) == 0 {
		return ErrNoChannels
	}

	gap := e.opts.ChanGap
	if req.ChanGap > 0 {
		gap = req.ChanGap
	}
	filtered := req.Filtered()
	limit := e.opts.MaxChanPerScan
	if filtered || gap > 0 {
		limit = e.opts.MaxChanFiltered
	}
	batches := Split(descs, SplitOptions{MaxChannels: limit, Isolate: !filtered, BeforeA: e.opts.SplitBeforeA})
	s.planned(len(batches))

	var pacer *rate.Limiter
	if gap > 0 {
		pacer = rate.NewLimiter(rate.Every(gap), 1)
	}

	for i, batch := range batches {
		if s.aborted() || ctx.Err() != nil {
			return ErrAborted
		}
		if d := Dwell(batch); d > e.opts.MaxTotalScanTime {
			return fmt.Errorf("sub-command %d dwells %s, ceiling %s: %w", i, d, e.opts.MaxTotalScanTime, ErrScanTimeExceeded)
		}
		if pacer != nil {
			if err := pacer.Wait(ctx); err != nil {
				return ErrAborted
			}
		}

		found, err := e.issue(ctx, s, req, e.command(req, batch, gap))
		if err != nil {
			if ctx.Err() != nil {
				return ErrAborted
			}
			return fmt.Errorf("sub-command %d: %w: %w", i, ErrTransport, err)
		}
		if e.hooks.OnProgress != nil {
			chans := make([]uint8, len(batch))
			for j, d := range batch {
				chans[j] = d.Channel
			}
			e.hooks.OnProgress(s, Progress{Index: i, Total: len(batches), Channels: chans, Found: found, Rescan: req.activeRescan})
		}
	}
	return nil
}

func (e *Engine) command(req *Request, batch []chanlist.Descriptor, gap time.Duration) *fwcmd.ScanCommand {
	mode := req.BSSMode
	if mode == 0 {
		mode = e.opts.BSSMode
	}
	cmd := &fwcmd.ScanCommand{
		Ext:       e.opts.Ext,
		BSSMode:   uint8(mode),
		SSIDs:     req.ssidTLVs(),
		NumProbes: req.NumProbes,
		RSSILow:   req.RSSILow,
		SNRLow:    req.SNRLow,
		Rates:     supportedRates(batch[0].Radio, e.builder.Config().Bands),
		Channels:  make([]fwcmd.ChanScanParam, len(batch)),
		ChanGap:   uint16(min(gap.Milliseconds(), 0xffff)),
	}
	if req.BSSID != nil {
		cmd.BSSID = *req.BSSID
	}
	for i, d := range batch {
		cmd.Channels[i] = d.Param()
	}
	return cmd
}

func (e *Engine) nextSeq() uint16 {
	e.seq++
	return e.seq
}

// issue sends one sub-command and stores its results. For extended scans
// it then consumes report events until one clears more_event.
func (e *Engine) issue(ctx context.Context, s *Session, req *Request, cmd *fwcmd.ScanCommand) (int, error) {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	seq := e.nextSeq()
	resp, err := e.tr.Issue(ctx, cmd.Encode(seq))
	if err != nil {
		return 0, err
	}
	s.sent()

	if !cmd.Ext {
		subCommandsTotal.WithLabelValues("legacy").Inc()
		sr, err := fwcmd.DecodeScanResponse(resp, seq)
		if err != nil {
			return 0, err
		}
		n := e.store(s, req, e.parser.ParseLegacy(sr), false)
		e.table.ApplyChannelStats(sr.ChanStats)
		return n, nil
	}

	subCommandsTotal.WithLabelValues("ext").Inc()
	if _, err := fwcmd.CheckResponse(resp, fwcmd.CmdScanExt, seq); err != nil {
		return 0, err
	}
	found := 0
	for {
		ev, err := e.tr.NextEvent(ctx)
		if err != nil {
			return found, err
		}
		rep, err := fwcmd.DecodeScanReport(ev)
		if errors.Is(err, fwcmd.ErrUnexpectedResponse) {
			e.logger.Debug("ignoring unrelated event", zap.Error(err))
			continue
		}
		if err != nil {
			parseErrorsTotal.WithLabelValues(bss.DefectMalformedFrame).Inc()
			e.logger.Debug("malformed scan report", zap.Error(err))
			// Without a readable header more_event is unknown; the
			// sub-command ends here.
			if rep == nil {
				return found, nil
			}
		} else {
			found += e.store(s, req, e.parser.ParseReport(rep), true)
			e.table.ApplyChannelStats(rep.ChanStats)
		}
		if !rep.MoreEvent {
			return found, nil
		}
	}
}

// store upserts recs and returns how many changed the table.
func (e *Engine) store(s *Session, req *Request, recs []*bss.Record, ext bool) int {
	n := 0
	for _, r := range recs {
		if e.opts.WPSSession && !wpsActive(r) {
			continue
		}
		if ext && !req.matchesSSID(r) {
			continue
		}
		res := e.table.Upsert(r)
		s.record(res.Outcome)
		upsertsTotal.WithLabelValues(res.Outcome.String()).Inc()
		if res.Outcome == scantable.Dropped {
			continue
		}
		n++
		if res.Evicted != nil {
			e.logger.Debug("evicted weakest network",
				zap.Stringer("bssid", res.Evicted.BSSID), zap.Int16("rssi", res.Evicted.RSSI))
		}
		if e.hooks.OnNetwork != nil {
			e.hooks.OnNetwork(s, r.Clone(), res.Outcome)
		}
	}
	return n
}
