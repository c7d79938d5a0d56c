// Package testutil provides shared fixtures for package tests: beacon
// builders that emit firmware descriptors, and an in-memory store.
package testutil

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/HerbHall/wlanscan/internal/ie"
	"github.com/HerbHall/wlanscan/internal/store"
)

// Beacon describes one beacon or probe response. Elements are rendered in
// the order SSID, rates, DS parameter set, then Extra.
type Beacon struct {
	BSSID          [6]byte
	SSID           []byte
	Channel        uint8
	RSSI           int16 // dBm
	TSF            uint64
	BeaconInterval uint16
	Capability     uint16
	Extra          []byte
}

// NewBeacon returns an open infrastructure beacon on channel 6, suitable
// for test fixtures. Override individual fields with options.
func NewBeacon(opts ...func(*Beacon)) Beacon {
	b := Beacon{
		BSSID:          [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		SSID:           []byte("test-network"),
		Channel:        6,
		RSSI:           -50,
		TSF:            1000,
		BeaconInterval: 100,
		Capability:     0x0001,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// WithBSSID sets the BSSID from its text form. It panics on a bad address.
func WithBSSID(mac string) func(*Beacon) {
	hw, err := net.ParseMAC(mac)
	if err != nil || len(hw) != 6 {
		panic("testutil: bad bssid " + mac)
	}
	return func(b *Beacon) { copy(b.BSSID[:], hw) }
}

// WithSSID sets the advertised SSID. An empty string hides the network.
func WithSSID(ssid string) func(*Beacon) {
	return func(b *Beacon) { b.SSID = []byte(ssid) }
}

// WithChannel sets the DS parameter set channel. Zero omits the element.
func WithChannel(ch uint8) func(*Beacon) {
	return func(b *Beacon) { b.Channel = ch }
}

// WithRSSI sets the received signal in dBm.
func WithRSSI(dbm int16) func(*Beacon) {
	return func(b *Beacon) { b.RSSI = dbm }
}

// WithPrivacy sets the capability privacy bit.
func WithPrivacy() func(*Beacon) {
	return func(b *Beacon) { b.Capability |= 0x0010 }
}

// WithIBSS marks the beacon as an ad-hoc network.
func WithIBSS() func(*Beacon) {
	return func(b *Beacon) { b.Capability = b.Capability&^0x0001 | 0x0002 }
}

// WithElement appends a raw element.
func WithElement(id uint8, data []byte) func(*Beacon) {
	return func(b *Beacon) { b.Extra = ie.Append(b.Extra, id, data) }
}

// WithRSN appends an RSN element and sets the privacy bit.
func WithRSN(group ie.Suite, pairwise []ie.Suite, akms ...ie.Suite) func(*Beacon) {
	body := ie.AppendSecurity(nil, ie.Security{
		Version:         1,
		GroupCipher:     group,
		PairwiseCiphers: pairwise,
		AKMs:            akms,
	})
	return func(b *Beacon) {
		b.Capability |= 0x0010
		b.Extra = ie.Append(b.Extra, ie.IDRSN, body)
	}
}

// WithWPA appends a WPA vendor element and sets the privacy bit.
func WithWPA(group ie.Suite, pairwise []ie.Suite, akms ...ie.Suite) func(*Beacon) {
	sec := ie.Security{Version: 1, GroupCipher: group, PairwiseCiphers: pairwise, AKMs: akms}
	body := ie.AppendSecurity(nil, sec)
	body = body[:len(body)-2] // WPA carries no capabilities field
	return func(b *Beacon) {
		b.Capability |= 0x0010
		b.Extra = ie.AppendVendor(b.Extra, ie.OUIMicrosoft, 1, body)
	}
}

// WithHT appends a minimal HT capabilities element.
func WithHT() func(*Beacon) {
	return WithElement(ie.IDHTCapabilities, make([]byte, 26))
}

// Elements renders the element list.
func (b Beacon) Elements() []byte {
	out := ie.Append(nil, ie.IDSSID, b.SSID)
	out = ie.Append(out, ie.IDSupportedRates, []byte{0x82, 0x84, 0x8b, 0x96, 0x0c, 0x12, 0x18, 0x24})
	if b.Channel != 0 {
		out = ie.Append(out, ie.IDDSParamSet, []byte{b.Channel})
	}
	return append(out, b.Extra...)
}

// Body renders the extended descriptor: BSSID, TSF, interval, capability
// and elements.
func (b Beacon) Body() []byte {
	out := append([]byte(nil), b.BSSID[:]...)
	return b.appendFixed(out)
}

// Descriptor renders the size-prefixed legacy descriptor, which carries
// the RSSI magnitude after the BSSID.
func (b Beacon) Descriptor() []byte {
	body := append([]byte(nil), b.BSSID[:]...)
	body = append(body, byte(-b.RSSI))
	body = b.appendFixed(body)
	out := binary.LittleEndian.AppendUint16(nil, uint16(len(body)))
	return append(out, body...)
}

func (b Beacon) appendFixed(out []byte) []byte {
	out = binary.LittleEndian.AppendUint64(out, b.TSF)
	out = binary.LittleEndian.AppendUint16(out, b.BeaconInterval)
	out = binary.LittleEndian.AppendUint16(out, b.Capability)
	return append(out, b.Elements()...)
}

// NewStore returns an in-memory SQLite store closed when the test ends.
func NewStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(":memory:", nil)
	if err != nil {
		t.Fatalf("store.New(:memory:): %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
