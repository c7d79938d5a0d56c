package scan

import "github.com/HerbHall/wlanscan/pkg/models"

var (
	ratesB  = []byte{0x82, 0x84, 0x8b, 0x96}
	ratesBG = []byte{0x82, 0x84, 0x8b, 0x96, 0x0c, 0x12, 0x18, 0x24, 0x30, 0x48, 0x60, 0x6c}
	ratesG  = []byte{0x8c, 0x12, 0x98, 0x24, 0xb0, 0x48, 0x60, 0x6c}
	ratesA  = ratesG
)

// supportedRates returns the rates advertised in a command for one radio.
// 2.4 GHz rates depend on whether OFDM is configured.
func supportedRates(radio models.RadioType, bands models.Band) []byte {
	if radio == models.RadioA {
		return ratesA
	}
	switch {
	case bands&models.BandB != 0 && bands&(models.BandG|models.BandGN) != 0:
		return ratesBG
	case bands&models.BandB != 0:
		return ratesB
	default:
		return ratesG
	}
}
