package chanlist

import "github.com/HerbHall/wlanscan/pkg/models"

// Frequency returns the center frequency in MHz of a channel on the given
// band, or 0 when the pair does not exist. 5 GHz channels 182 to 196 are
// the Japanese 4.9 GHz allocation.
func Frequency(channel uint8, band models.Band) int {
	ch := int(channel)
	switch {
	case ch == 0:
		return 0
	case band.Is5GHz() && ch >= 182 && ch <= 196:
		return 4000 + 5*ch
	case band.Is5GHz() && ch <= 177:
		return 5000 + 5*ch
	case band.Is5GHz():
		return 0
	case ch == 14:
		return 2484
	case ch <= 13:
		return 2407 + 5*ch
	}
	return 0
}

// ChannelFor converts a center frequency back to a channel and band. It
// returns 0, 0 for a frequency off the 2.4 and 5 GHz channel rasters.
func ChannelFor(freqMHz int) (uint8, models.Band) {
	switch {
	case freqMHz == 2484:
		return 14, models.BandG
	case freqMHz%5 != 0:
		return 0, 0
	case freqMHz >= 2412 && freqMHz <= 2472:
		return uint8((freqMHz - 2407) / 5), models.BandG
	case freqMHz >= 4910 && freqMHz <= 4980:
		return uint8((freqMHz - 4000) / 5), models.BandA
	case freqMHz >= 5005 && freqMHz <= 5885:
		return uint8((freqMHz - 5000) / 5), models.BandA
	}
	return 0, 0
}
