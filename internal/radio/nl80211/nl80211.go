// Package nl80211 drives a scan through the kernel's nl80211 interface and
// replays the resulting BSS list through the firmware emulator. The kernel
// scan runs at most once per refresh interval; every sub-command in that
// window is answered from the same BSS list.
package nl80211

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/HerbHall/wlanscan/internal/chanlist"
	"github.com/HerbHall/wlanscan/internal/ie"
	"github.com/HerbHall/wlanscan/internal/radio/sim"
)

// ErrUnsupported is returned on platforms without nl80211.
var ErrUnsupported = errors.New("nl80211: not supported on this platform")

// ErrNoInterface is returned when no station interface exists.
var ErrNoInterface = errors.New("nl80211: no station interface")

// DefaultRefresh is how long one kernel scan answers sub-commands.
const DefaultRefresh = 5 * time.Second

// Observation is one BSS reported by the kernel, independent of the
// netlink library's types.
type Observation struct {
	BSSID          [6]byte
	SSID           string
	FrequencyMHz   int
	SignalMBm      int
	BeaconInterval time.Duration
	// RSN is nil for open networks.
	RSN *ie.Security
}

// toAP converts an observation into an emulator access point. Frequencies
// outside the 2.4 and 5 GHz channel plans are skipped.
func toAP(o Observation) (sim.AP, bool) {
	ch, band := chanlist.ChannelFor(o.FrequencyMHz)
	if ch == 0 {
		return sim.AP{}, false
	}
	ap := sim.AP{
		BSSID:          o.BSSID,
		SSID:           []byte(o.SSID),
		Radio:          band.RadioType(),
		Channel:        ch,
		RSSI:           int16(o.SignalMBm / 100),
		BeaconInterval: uint16(o.BeaconInterval / (1024 * time.Microsecond)),
		Capability:     0x0001,
	}
	if o.RSN != nil {
		ap.Capability = sim.Protected()
		ap.Elements = sim.RSN(*o.RSN)
	}
	return ap, true
}

// isPermissionError checks whether the error is a permission-related error.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "operation not permitted")
}

// kernel is the part of the netlink client the radio uses.
type kernel interface {
	Scan(ctx context.Context) ([]Observation, error)
	Close() error
}

// Radio is a scan transport backed by the kernel.
type Radio struct {
	k       kernel
	fw      *sim.Firmware
	refresh time.Duration
	last    time.Time
	now     func() time.Time
}

func newRadio(k kernel, fw *sim.Firmware, refresh time.Duration) *Radio {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return &Radio{k: k, fw: fw, refresh: refresh, now: time.Now}
}

// Issue refreshes the BSS list when it is stale, then answers cmd.
func (r *Radio) Issue(ctx context.Context, cmd []byte) ([]byte, error) {
	if r.last.IsZero() || r.now().Sub(r.last) >= r.refresh {
		obs, err := r.k.Scan(ctx)
		if err != nil {
			return nil, err
		}
		aps := make([]sim.AP, 0, len(obs))
		for _, o := range obs {
			if ap, ok := toAP(o); ok {
				aps = append(aps, ap)
			}
		}
		r.fw.SetAPs(aps)
		r.last = r.now()
	}
	return r.fw.Issue(ctx, cmd)
}

// NextEvent returns the next report event.
func (r *Radio) NextEvent(ctx context.Context) ([]byte, error) {
	return r.fw.NextEvent(ctx)
}

// Close releases the netlink socket.
func (r *Radio) Close() error {
	_ = r.fw.Close()
	return r.k.Close()
}
