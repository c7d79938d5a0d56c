package scantable

import (
	"github.com/HerbHall/wlanscan/internal/bss"
	"github.com/HerbHall/wlanscan/internal/compat"
	"github.com/HerbHall/wlanscan/pkg/models"
)

// BestMatch returns a copy of the strongest entry advertising ssid that the
// policy accepts. When bssid is non-nil only that BSS qualifies. Entries on
// an unknown channel are skipped; in infrastructure mode so are entries on
// a band the policy's band mask cannot use. In auto mode the security
// policy is not consulted.
func (t *Table) BestMatch(ssid []byte, bssid *bss.MAC, p compat.Policy) (*bss.Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	best := -1
	for i, s := range t.slots {
		if !t.isLive(i) || !bss.SameSSID(s.SSID, ssid) {
			continue
		}
		if bssid != nil && s.BSSID != *bssid {
			continue
		}
		if s.Channel == 0 || s.Frequency == 0 {
			continue
		}
		if p.BSSMode == models.BSSModeInfra && !p.Bands.Compatible(s.Band) {
			continue
		}
		if p.BSSMode != models.BSSModeAuto && !compat.IsCompatible(s, p) {
			continue
		}
		if best < 0 || s.RSSI > t.slots[best].RSSI {
			best = i
		}
	}
	if best < 0 {
		return nil, false
	}
	r := t.slots[best].Clone()
	compat.Apply(r, p)
	return r, true
}

// FindBSSID returns a copy of the first entry for bssid that the policy
// accepts, ignoring the SSID. Auto mode accepts any entry.
func (t *Table) FindBSSID(bssid bss.MAC, p compat.Policy) (*bss.Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, s := range t.slots {
		if !t.isLive(i) || s.BSSID != bssid {
			continue
		}
		if p.BSSMode == models.BSSModeInfra && !p.Bands.Compatible(s.Band) {
			continue
		}
		if p.BSSMode != models.BSSModeAuto && !compat.IsCompatible(s, p) {
			continue
		}
		r := s.Clone()
		compat.Apply(r, p)
		return r, true
	}
	return nil, false
}
