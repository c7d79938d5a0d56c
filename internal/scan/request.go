package scan

import (
	"bytes"
	"fmt"
	"time"

	"github.com/HerbHall/wlanscan/internal/bss"
	"github.com/HerbHall/wlanscan/internal/chanlist"
	"github.com/HerbHall/wlanscan/internal/fwcmd"
	"github.com/HerbHall/wlanscan/internal/ie"
	"github.com/HerbHall/wlanscan/pkg/models"
)

// MaxSSIDs is the most SSID filters one request may carry.
const MaxSSIDs = 10

// SSIDFilter selects networks by name. A zero MaxLen matches the name
// exactly; a non-zero MaxLen is a wildcard that matches any name starting
// with SSID.
type SSIDFilter struct {
	SSID   []byte
	MaxLen uint8
}

// Matches reports whether ssid satisfies the filter.
func (f SSIDFilter) Matches(ssid []byte) bool {
	if f.MaxLen == 0 {
		return bytes.Equal(f.SSID, ssid)
	}
	return len(ssid) <= int(f.MaxLen) && bytes.HasPrefix(ssid, f.SSID)
}

// Request is what a caller asks a scan to do. The zero value is a full
// region sweep that clears the table first.
type Request struct {
	BSSID    *bss.MAC
	SSIDs    []SSIDFilter
	Channels []chanlist.ChannelRequest
	BSSMode  models.BSSMode
	// NumProbes is the probe request count per active channel; zero uses
	// the firmware default.
	NumProbes uint16
	// RSSILow and SNRLow are firmware-side thresholds in positive dB;
	// zero disables them.
	RSSILow uint8
	SNRLow  uint8
	// ScanTime, when non-zero, is the dwell on every channel.
	ScanTime time.Duration
	// ChanGap overrides the configured gap between channels.
	ChanGap      time.Duration
	KeepPrevious bool

	// activeRescan marks the follow-up scan of hidden networks.
	activeRescan bool
}

// Validate checks the request's bounds.
func (r *Request) Validate() error {
	if len(r.SSIDs) > MaxSSIDs {
		return fmt.Errorf("%d ssid filters, at most %d: %w", len(r.SSIDs), MaxSSIDs, ErrInvalidRequest)
	}
	for _, f := range r.SSIDs {
		if len(f.SSID) > ie.MaxSSIDLen {
			return fmt.Errorf("ssid %q longer than %d bytes: %w", f.SSID, ie.MaxSSIDLen, ErrInvalidRequest)
		}
	}
	if len(r.Channels) > chanlist.MaxChannels {
		return fmt.Errorf("%d channels, at most %d: %w", len(r.Channels), chanlist.MaxChannels, ErrInvalidRequest)
	}
	return nil
}

// ssidFiltered reports whether any filter names an SSID. An empty filter
// is a broadcast probe and filters nothing.
func (r *Request) ssidFiltered() bool {
	for _, f := range r.SSIDs {
		if len(f.SSID) > 0 {
			return true
		}
	}
	return false
}

// Filtered reports whether the scan narrows results by SSID or BSSID.
func (r *Request) Filtered() bool {
	return r.ssidFiltered() || (r.BSSID != nil && !r.BSSID.IsZero())
}

// wpsActive reports whether rec advertises a WPS session in progress.
func wpsActive(rec *bss.Record) bool {
	return rec.WPS && rec.WPSSession != ie.WPSSessionNone
}

// matchesSSID applies the SSID filters to an extended scan result. Hidden
// networks pass so that the passive-result rescan can resolve them.
func (r *Request) matchesSSID(rec *bss.Record) bool {
	if !r.ssidFiltered() || rec.IsHidden() {
		return true
	}
	for _, f := range r.SSIDs {
		if len(f.SSID) > 0 && f.Matches(rec.SSID) {
			return true
		}
	}
	return false
}

func (r *Request) chanlistRequest() chanlist.Request {
	return chanlist.Request{
		Channels:     r.Channels,
		Filtered:     r.Filtered(),
		ScanTime:     r.ScanTime,
		ActiveRescan: r.activeRescan,
	}
}

func (r *Request) ssidTLVs() []fwcmd.SSIDFilter {
	out := make([]fwcmd.SSIDFilter, len(r.SSIDs))
	for i, f := range r.SSIDs {
		out[i] = fwcmd.SSIDFilter{SSID: f.SSID, MaxLen: f.MaxLen}
	}
	return out
}
