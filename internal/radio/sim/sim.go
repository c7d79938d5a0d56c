// Package sim emulates the scan side of the radio firmware. It answers
// legacy and extended scan commands from a set of virtual access points,
// so the engine can run without hardware. The pcap and nl80211 radios feed
// their observations into it.
package sim

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/HerbHall/wlanscan/internal/fwcmd"
	"github.com/HerbHall/wlanscan/internal/ie"
	"github.com/HerbHall/wlanscan/pkg/models"
)

// ErrClosed is returned once the firmware has been closed.
var ErrClosed = errors.New("sim: firmware closed")

// AP is one virtual access point.
type AP struct {
	BSSID          [6]byte
	SSID           []byte
	Radio          models.RadioType
	Channel        uint8
	RSSI           int16 // dBm
	TSF            uint64
	BeaconInterval uint16
	Capability     uint16
	// Elements are appended after SSID, rates and DS parameter set.
	Elements []byte
	// Raw, when set, is a captured element list without its SSID element.
	// It replaces the generated rates, DS parameter set and Elements.
	Raw []byte
	// HideSSID blanks the SSID in beacons. The name is only revealed to an
	// active probe that asks for it.
	HideSSID bool
	// Noise and busy percentage reported for the AP's channel.
	Noise int8
	Busy  uint8
}

var apRates = []byte{0x82, 0x84, 0x8b, 0x96, 0x0c, 0x12, 0x18, 0x24}

// Body renders the descriptor without size or RSSI prefix.
func (a AP) Body(revealSSID bool) []byte {
	out := append(make([]byte, 0, 64+len(a.Elements)), a.BSSID[:]...)
	return a.appendRest(out, revealSSID)
}

// Descriptor renders the legacy size-prefixed descriptor.
func (a AP) Descriptor(revealSSID bool) []byte {
	body := append(make([]byte, 0, 64+len(a.Elements)), a.BSSID[:]...)
	body = append(body, byte(-a.RSSI))
	body = a.appendRest(body, revealSSID)
	out := binary.LittleEndian.AppendUint16(make([]byte, 0, 2+len(body)), uint16(len(body)))
	return append(out, body...)
}

func (a AP) appendRest(out []byte, revealSSID bool) []byte {
	interval := a.BeaconInterval
	if interval == 0 {
		interval = 100
	}
	capab := a.Capability
	if capab == 0 {
		capab = capESS
	}
	out = binary.LittleEndian.AppendUint64(out, a.TSF)
	out = binary.LittleEndian.AppendUint16(out, interval)
	out = binary.LittleEndian.AppendUint16(out, capab)
	ssid := a.SSID
	if a.HideSSID && !revealSSID {
		ssid = nil
	}
	out = ie.Append(out, ie.IDSSID, ssid)
	if a.Raw != nil {
		return append(out, a.Raw...)
	}
	out = ie.Append(out, ie.IDSupportedRates, apRates)
	out = ie.Append(out, ie.IDDSParamSet, []byte{a.Channel})
	return append(out, a.Elements...)
}

// Options tunes the emulator.
type Options struct {
	// PerEvent is the number of BSS entries per extended report event.
	PerEvent int
	// ChanStats adds a channel statistics TLV for every scanned channel.
	ChanStats bool
}

// Firmware is an in-memory scan firmware. It implements the engine's
// transport.
type Firmware struct {
	logger *zap.Logger
	opts   Options

	mu       sync.Mutex
	aps      []AP
	commands []*fwcmd.ScanCommand
	// FailOn, when set, is consulted for every decoded command. A non-nil
	// result is returned from Issue as a transport error.
	failOn func(n int, cmd *fwcmd.ScanCommand) error

	events chan []byte
	closed chan struct{}
	once   sync.Once
}

// New returns an emulator with no access points.
func New(opts Options, logger *zap.Logger) *Firmware {
	if opts.PerEvent <= 0 {
		opts.PerEvent = 4
	}
	return &Firmware{
		logger: logger,
		opts:   opts,
		events: make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

// SetAPs replaces the virtual access points.
func (f *Firmware) SetAPs(aps []AP) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aps = append([]AP(nil), aps...)
}

// AddAP adds or replaces (by BSSID) one access point.
func (f *Firmware) AddAP(ap AP) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.aps {
		if f.aps[i].BSSID == ap.BSSID {
			f.aps[i] = ap
			return
		}
	}
	f.aps = append(f.aps, ap)
}

// APs returns a copy of the access points.
func (f *Firmware) APs() []AP {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]AP(nil), f.aps...)
}

// FailOn installs a fault hook; n counts commands from zero.
func (f *Firmware) FailOn(fn func(n int, cmd *fwcmd.ScanCommand) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn = fn
}

// Commands returns every scan command received so far.
func (f *Firmware) Commands() []*fwcmd.ScanCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fwcmd.ScanCommand(nil), f.commands...)
}

// Close releases a caller blocked in NextEvent.
func (f *Firmware) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// Issue answers one command.
func (f *Firmware) Issue(ctx context.Context, cmd []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-f.closed:
		return nil, ErrClosed
	default:
	}

	sc, seq, err := fwcmd.DecodeScanCommand(cmd)
	if err != nil {
		h, _, herr := fwcmd.ReadHeader(cmd)
		if herr != nil {
			return nil, fmt.Errorf("sim: %w", herr)
		}
		f.logger.Debug("rejecting malformed command", zap.Error(err))
		return fwcmd.EncodeStatus(h.Command, h.SeqNum, fwcmd.ResultFailed), nil
	}

	f.mu.Lock()
	n := len(f.commands)
	f.commands = append(f.commands, sc)
	fail := f.failOn
	aps := append([]AP(nil), f.aps...)
	f.mu.Unlock()

	if fail != nil {
		if err := fail(n, sc); err != nil {
			return nil, err
		}
	}

	hits := match(sc, aps)
	f.logger.Debug("scan command",
		zap.Bool("ext", sc.Ext), zap.Int("channels", len(sc.Channels)), zap.Int("hits", len(hits)))

	var stats []fwcmd.ChanStat
	if f.opts.ChanStats {
		stats = channelStats(sc.Channels, aps)
	}
	if !sc.Ext {
		return legacyResponse(hits, stats).Encode(seq), nil
	}
	f.drain()
	f.queueReports(hits, stats)
	return fwcmd.EncodeStatus(fwcmd.CmdScanExt, seq, fwcmd.ResultOK), nil
}

// NextEvent returns the next queued report event.
func (f *Firmware) NextEvent(ctx context.Context) ([]byte, error) {
	select {
	case ev := <-f.events:
		return ev, nil
	case <-f.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type hit struct {
	ap     AP
	reveal bool
}

// match returns the access points heard by a command, in channel order.
// A hidden AP reveals its name only on an active channel probed for it.
func match(sc *fwcmd.ScanCommand, aps []AP) []hit {
	var out []hit
	var zero [6]byte
	for _, ch := range sc.Channels {
		for _, ap := range aps {
			if ap.Channel != ch.Channel || ap.Radio != ch.Radio {
				continue
			}
			if sc.BSSID != zero && sc.BSSID != ap.BSSID {
				continue
			}
			reveal := !ap.HideSSID
			if ap.HideSSID && !ch.Mode.Has(fwcmd.ModePassive) {
				reveal = probedFor(sc.SSIDs, ap.SSID)
			}
			out = append(out, hit{ap: ap, reveal: reveal})
		}
	}
	return out
}

func probedFor(filters []fwcmd.SSIDFilter, ssid []byte) bool {
	for _, f := range filters {
		if len(f.SSID) > 0 && bytes.Equal(f.SSID, ssid) {
			return true
		}
	}
	return false
}

func channelStats(chans []fwcmd.ChanScanParam, aps []AP) []fwcmd.ChanStat {
	out := make([]fwcmd.ChanStat, 0, len(chans))
	for _, ch := range chans {
		cs := fwcmd.ChanStat{
			Channel:     ch.Channel,
			BandConfig:  uint8(ch.Radio),
			Noise:       -95,
			CCADuration: ch.MaxTime,
		}
		for _, ap := range aps {
			if ap.Channel != ch.Channel || ap.Radio != ch.Radio {
				continue
			}
			cs.TotalNetworks++
			if ap.Noise != 0 {
				cs.Noise = ap.Noise
			}
			busy := uint16(uint32(ch.MaxTime) * uint32(ap.Busy) / 100)
			cs.CCABusy = max(cs.CCABusy, busy)
		}
		out = append(out, cs)
	}
	return out
}

func legacyResponse(hits []hit, stats []fwcmd.ChanStat) *fwcmd.ScanResponse {
	resp := &fwcmd.ScanResponse{ChanStats: stats}
	for _, h := range hits {
		if len(resp.ChanBands) == 255 {
			break
		}
		resp.Descriptors = append(resp.Descriptors, h.ap.Descriptor(h.reveal)...)
		resp.TSF = append(resp.TSF, h.ap.TSF)
		resp.ChanBands = append(resp.ChanBands, fwcmd.ChanBand{Radio: h.ap.Radio, Channel: h.ap.Channel})
	}
	resp.NumSets = uint8(len(resp.ChanBands))
	return resp
}

// drain drops reports left over from a command whose reader gave up.
func (f *Firmware) drain() {
	for {
		select {
		case <-f.events:
		default:
			return
		}
	}
}

// queueReports splits hits into report events. The last one clears
// more_event and carries the channel statistics. A scan that heard nothing
// still produces one empty report.
func (f *Firmware) queueReports(hits []hit, stats []fwcmd.ChanStat) {
	per := f.opts.PerEvent
	for start := 0; ; start += per {
		end := min(start+per, len(hits))
		rep := &fwcmd.ScanReport{MoreEvent: end < len(hits)}
		for _, h := range hits[start:end] {
			rep.Entries = append(rep.Entries, fwcmd.ReportEntry{
				Descriptor: h.ap.Body(h.reveal),
				Info: &fwcmd.ScanInfo{
					RSSI:    -h.ap.RSSI,
					Radio:   h.ap.Radio,
					Channel: h.ap.Channel,
					TSF:     h.ap.TSF,
				},
			})
		}
		if !rep.MoreEvent {
			rep.ChanStats = stats
		}
		f.events <- rep.Encode()
		if !rep.MoreEvent {
			return
		}
	}
}
