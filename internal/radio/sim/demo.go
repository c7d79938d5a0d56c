package sim

import (
	"github.com/HerbHall/wlanscan/internal/ie"
	"github.com/HerbHall/wlanscan/pkg/models"
)

// Capability bits used by the emulator.
const (
	capESS     uint16 = 0x0001
	capPrivacy uint16 = 0x0010
)

// RSN returns an encoded RSN element for sec.
func RSN(sec ie.Security) []byte {
	if sec.Version == 0 {
		sec.Version = 1
	}
	return ie.Append(nil, ie.IDRSN, ie.AppendSecurity(nil, sec))
}

// Protected returns the capability word of an infrastructure BSS with the
// privacy bit set.
func Protected() uint16 { return capESS | capPrivacy }

var htCap = ie.Append(nil, ie.IDHTCapabilities, make([]byte, 26))

// DemoAPs is the neighbourhood the emulator starts with when no capture or
// kernel radio is configured.
func DemoAPs() []AP {
	wpa2 := RSN(ie.Security{
		GroupCipher:     ie.CipherCCMP128,
		PairwiseCiphers: []ie.Suite{ie.CipherCCMP128},
		AKMs:            []ie.Suite{ie.AKMPSK},
	})
	tkip := RSN(ie.Security{
		GroupCipher:     ie.CipherTKIP,
		PairwiseCiphers: []ie.Suite{ie.CipherTKIP},
		AKMs:            []ie.Suite{ie.AKMPSK},
	})
	sae := RSN(ie.Security{
		GroupCipher:     ie.CipherCCMP128,
		PairwiseCiphers: []ie.Suite{ie.CipherCCMP128},
		AKMs:            []ie.Suite{ie.AKMSAE},
	})
	return []AP{
		{
			BSSID: [6]byte{0x00, 0x1a, 0x2b, 0x10, 0x00, 0x01}, SSID: []byte("office"),
			Channel: 1, RSSI: -48, Capability: Protected(), Elements: append(append([]byte(nil), wpa2...), htCap...),
			Busy: 35,
		},
		{
			BSSID: [6]byte{0x00, 0x1a, 0x2b, 0x10, 0x00, 0x02}, SSID: []byte("office"),
			Radio: models.RadioA, Channel: 36, RSSI: -57, Capability: Protected(), Elements: append(append([]byte(nil), wpa2...), htCap...),
			Busy: 10,
		},
		{
			BSSID: [6]byte{0x00, 0x1a, 0x2b, 0x10, 0x00, 0x03}, SSID: []byte("guest"),
			Channel: 6, RSSI: -62, Busy: 50,
		},
		{
			BSSID: [6]byte{0x00, 0x25, 0x9c, 0x20, 0x00, 0x01}, SSID: []byte("legacy-printer"),
			Channel: 11, RSSI: -74, Capability: Protected(), Elements: append(append([]byte(nil), tkip...), htCap...),
		},
		{
			BSSID: [6]byte{0x00, 0x25, 0x9c, 0x20, 0x00, 0x02}, SSID: []byte("lab"),
			Radio: models.RadioA, Channel: 100, RSSI: -66, Capability: Protected(), Elements: sae,
			HideSSID: true,
		},
	}
}
