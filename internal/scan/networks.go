package scan

import (
	"strings"
	"time"

	"github.com/endobit/oui"

	"github.com/HerbHall/wlanscan/internal/bss"
	"github.com/HerbHall/wlanscan/internal/compat"
	"github.com/HerbHall/wlanscan/pkg/models"
)

// Vendor returns the registered manufacturer of a BSSID's OUI, or "" when
// the prefix is unknown or locally administered.
func Vendor(bssid bss.MAC) string {
	if bssid[0]&0x02 != 0 {
		return ""
	}
	return oui.Vendor(strings.ToLower(bssid.String()))
}

// signalQuality maps RSSI onto 0-100, -100 dBm and below being zero.
func signalQuality(rssi int16) float64 {
	q := 2 * (float64(rssi) + 100)
	return min(max(q, 0), 100)
}

// Summarize builds the API view of r with its verdict under p.
func Summarize(r *bss.Record, p compat.Policy) models.NetworkSummary {
	v := compat.Classify(r, p)
	out := models.NetworkSummary{
		BSSID:         r.BSSID.String(),
		SSID:          string(r.SSID),
		Hidden:        r.IsHidden(),
		Channel:       int(r.Channel),
		Band:          r.Band.RadioType().String(),
		Frequency:     r.Frequency,
		RSSI:          int(r.RSSI),
		Security:      compat.Describe(r),
		Mode:          r.Mode.String(),
		Vendor:        Vendor(r.BSSID),
		Compatible:    v.Compatible,
		Disable11n:    v.Disable11n,
		Reason:        v.Reason,
		BeaconPeriod:  int(r.BeaconPeriod),
		DTIM:          int(r.DTIMPeriod),
		HT:            r.HasHT(),
		VHT:           r.HasVHT(),
		HE:            r.HasHE(),
		SignalQuality: signalQuality(r.RSSI),
	}
	if out.Hidden {
		out.SSID = ""
	}
	if r.HasChannelStats {
		out.ChannelLoad = int(r.ChannelLoad)
		out.Noise = int(r.Noise)
	}
	if r.Role == bss.RoleNonTransmitted {
		out.Transmitter = r.Transmitter.String()
	}
	if !r.SeenAt.IsZero() {
		out.LastSeen = r.SeenAt.UTC().Format(time.RFC3339)
	}
	return out
}

// SummarizeAll converts a snapshot.
func SummarizeAll(recs []*bss.Record, p compat.Policy) []models.NetworkSummary {
	out := make([]models.NetworkSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, Summarize(r, p))
	}
	return out
}
