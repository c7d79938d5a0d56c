package scan

import (
	"time"

	"github.com/HerbHall/wlanscan/internal/bss"
	"github.com/HerbHall/wlanscan/internal/chanlist"
	"github.com/HerbHall/wlanscan/pkg/models"
)

// rescanDwell is the dwell of the follow-up active scan.
const rescanDwell = 100 * time.Millisecond

type chanKey struct {
	radio   models.RadioType
	channel uint8
}

// rescanRequest returns the active follow-up for hidden networks heard on
// channels that req scanned passively. It only fires for scans filtered by
// SSID, and never for a request that is itself a rescan.
func (e *Engine) rescanRequest(req *Request) (*Request, bool) {
	if req.activeRescan || !req.ssidFiltered() {
		return nil, false
	}

	seen := make(map[chanKey]bool)
	var chans []chanlist.ChannelRequest
	e.table.Each(func(_ int, r *bss.Record) bool {
		if !r.IsHidden() || r.Channel == 0 {
			return true
		}
		k := chanKey{radio: r.Band.RadioType(), channel: r.Channel}
		if seen[k] || !e.scannedPassively(req, k) {
			return true
		}
		seen[k] = true
		chans = append(chans, chanlist.ChannelRequest{
			Radio:   k.radio,
			Channel: k.channel,
			Type:    models.ScanTypeActive,
		})
		return len(chans) < chanlist.MaxChannels
	})
	if len(chans) == 0 {
		return nil, false
	}
	return &Request{
		BSSID:        req.BSSID,
		SSIDs:        req.SSIDs,
		Channels:     chans,
		BSSMode:      req.BSSMode,
		NumProbes:    req.NumProbes,
		ScanTime:     rescanDwell,
		KeepPrevious: true,
		activeRescan: true,
	}, true
}

// scannedPassively reports whether a channel was listened on rather than
// probed: the caller asked for it, the adapter default is passive for a
// region sweep, or the region restricts the channel.
func (e *Engine) scannedPassively(req *Request, k chanKey) bool {
	for _, c := range req.Channels {
		if c.Channel == k.channel && c.Radio == k.radio &&
			(c.Type == models.ScanTypePassive || c.Type == models.ScanTypePassiveToActive) {
			return true
		}
	}
	if len(req.Channels) == 0 && e.builder.Config().DefaultType == models.ScanTypePassive {
		return true
	}
	return e.builder.IsRestricted(k.radio, k.channel)
}
