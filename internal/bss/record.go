// Package bss turns beacon and probe-response descriptors returned by the
// radio firmware into Network Records.
package bss

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"github.com/HerbHall/wlanscan/internal/ie"
	"github.com/HerbHall/wlanscan/pkg/models"
)

// MAC is a 6-byte hardware address stored by value.
type MAC [6]byte

func (m MAC) String() string { return net.HardwareAddr(m[:]).String() }

// IsZero reports whether every byte is zero.
func (m MAC) IsZero() bool { return m == MAC{} }

// ParseMAC parses a colon or dash separated EUI-48 address.
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, err
	}
	if len(hw) != 6 {
		return MAC{}, fmt.Errorf("bss: %q is not a 6-byte address", s)
	}
	var m MAC
	copy(m[:], hw)
	return m, nil
}

// Capability bits of the fixed beacon field.
const (
	CapESS           uint16 = 1 << 0
	CapIBSS          uint16 = 1 << 1
	CapPrivacy       uint16 = 1 << 4
	CapShortPreamble uint16 = 1 << 5
	CapSpectrumMgmt  uint16 = 1 << 8
	CapRadioMeasure  uint16 = 1 << 12
)

// Role says how a record relates to a Multiple BSSID set.
type Role uint8

const (
	RoleStandalone Role = iota
	RoleTransmitter
	RoleNonTransmitted
)

func (r Role) String() string {
	switch r {
	case RoleTransmitter:
		return "transmitted"
	case RoleNonTransmitted:
		return "nontransmitted"
	default:
		return "standalone"
	}
}

// OWEMode records which half of an OWE transition pair a BSS is.
type OWEMode uint8

const (
	OWENone OWEMode = iota
	// OWEOpen is the open BSS advertising its OWE partner.
	OWEOpen
	// OWEOnly is the protected BSS advertising its open partner.
	OWEOnly
)

// MaxRates bounds the combined supported and extended rate list.
const MaxRates = 14

// Record is one observed BSS. Every slice is owned by the record and never
// aliases a firmware buffer.
type Record struct {
	BSSID     MAC
	SSID      []byte
	Channel   uint8
	Band      models.Band
	Frequency int // MHz, 0 when the channel is unknown for the band
	RSSI      int16
	SeenAt    time.Time

	// TSF is the timestamp carried in the beacon. NetworkTSF is the
	// firmware's own TSF when the frame was received.
	TSF        uint64
	NetworkTSF uint64

	BeaconPeriod uint16
	DTIMPeriod   uint8
	ATIMWindow   uint16
	Capability   uint16
	Mode         models.BSSMode
	Privacy      bool

	Rates   []byte
	Country []byte

	StationCount uint16
	Utilization  uint8

	HTCap  []byte
	HTOp   []byte
	VHTCap []byte
	VHTOp  []byte
	HECap  []byte
	HEOp   []byte
	Coex   []byte
	ExtCap []byte
	RMCap  []byte

	// RSN holds the RSN element body. WPA holds the WPA vendor element
	// body after its OUI and type.
	RSN            []byte
	WPA            []byte
	RSNX           []byte
	WAPI           []byte
	MobilityDomain []byte
	WMM            []byte

	WPS                  bool
	WPSSelectedRegistrar bool
	WPSSession           ie.WPSSession
	MBOAssocDisallowed   bool

	OWE      OWEMode
	OWEBSSID MAC
	OWESSID  []byte

	Broadcom  bool
	Epigram   bool
	VendorIEs []byte

	MaxBSSIDIndicator uint8
	Role              Role
	Transmitter       MAC
	BSSIDIndex        uint8

	// Filled from channel statistics after the scan.
	ChannelLoad     uint8
	Noise           int8
	HasChannelStats bool

	// Set by the compatibility matcher, never by the parser.
	Disable11n bool
}

// IsHidden reports whether the SSID is empty or all zero bytes.
func (r *Record) IsHidden() bool { return ie.IsHiddenSSID(r.SSID) }

func (r *Record) HasHT() bool  { return len(r.HTCap) > 0 }
func (r *Record) HasVHT() bool { return len(r.VHTCap) > 0 }
func (r *Record) HasHE() bool  { return len(r.HECap) > 0 }
func (r *Record) HasRSN() bool { return len(r.RSN) > 0 }
func (r *Record) HasWPA() bool { return len(r.WPA) > 0 }

// Supports11k reports radio measurement support.
func (r *Record) Supports11k() bool { return len(r.RMCap) > 0 }

// Supports11v reports the BSS transition bit (extended capability 19).
func (r *Record) Supports11v() bool { return len(r.ExtCap) > 2 && r.ExtCap[2]&0x08 != 0 }

// Supports11r reports fast transition, advertised by a mobility domain.
func (r *Record) Supports11r() bool { return len(r.MobilityDomain) > 0 }

// Security parses the stored RSN element.
func (r *Record) Security() (ie.Security, error) { return ie.ParseRSN(r.RSN) }

// WPASecurity parses the stored WPA element.
func (r *Record) WPASecurity() (ie.Security, error) { return ie.ParseWPA(r.WPA) }

// SameSSID reports whether two SSIDs are byte-identical.
func SameSSID(a, b []byte) bool { return bytes.Equal(a, b) }

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	c.SSID = bytes.Clone(r.SSID)
	c.Rates = bytes.Clone(r.Rates)
	c.Country = bytes.Clone(r.Country)
	c.HTCap = bytes.Clone(r.HTCap)
	c.HTOp = bytes.Clone(r.HTOp)
	c.VHTCap = bytes.Clone(r.VHTCap)
	c.VHTOp = bytes.Clone(r.VHTOp)
	c.HECap = bytes.Clone(r.HECap)
	c.HEOp = bytes.Clone(r.HEOp)
	c.Coex = bytes.Clone(r.Coex)
	c.ExtCap = bytes.Clone(r.ExtCap)
	c.RMCap = bytes.Clone(r.RMCap)
	c.RSN = bytes.Clone(r.RSN)
	c.WPA = bytes.Clone(r.WPA)
	c.RSNX = bytes.Clone(r.RSNX)
	c.WAPI = bytes.Clone(r.WAPI)
	c.MobilityDomain = bytes.Clone(r.MobilityDomain)
	c.WMM = bytes.Clone(r.WMM)
	c.OWESSID = bytes.Clone(r.OWESSID)
	c.VendorIEs = bytes.Clone(r.VendorIEs)
	return &c
}
