package ie

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxSSIDLen is the longest SSID an element may carry.
const MaxSSIDLen = 32

// ErrBadLength is returned by Decode when an element's length is not valid
// for its type. Only that element is rejected.
var ErrBadLength = errors.New("ie: invalid element length")

// Info is the decoded form of one element. The concrete types below are the
// variants; consumers switch on them.
type Info interface {
	ElementID() uint8
}

type (
	// SSID is element 0. An empty or all-zero name marks a hidden network.
	SSID struct{ Name []byte }

	// Rates is element 1 or 50.
	Rates struct {
		Rates    []byte
		Extended bool
	}

	// FHParams is element 2.
	FHParams struct {
		DwellTime  uint16
		HopSet     uint8
		HopPattern uint8
		HopIndex   uint8
	}

	// DSParams is element 3.
	DSParams struct{ Channel uint8 }

	// CFParams is element 4.
	CFParams struct{ Raw []byte }

	// TIM is element 5.
	TIM struct {
		DTIMCount  uint8
		DTIMPeriod uint8
	}

	// IBSSParams is element 6.
	IBSSParams struct{ ATIMWindow uint16 }

	// Country is element 7.
	Country struct {
		Code     [3]byte
		Triplets []byte
	}

	// BSSLoad is element 11.
	BSSLoad struct {
		StationCount uint16
		Utilization  uint8
		AdmissionCap uint16
	}

	// HTCapabilities is element 45.
	HTCapabilities struct{ Raw []byte }

	// HTOperation is element 61.
	HTOperation struct {
		PrimaryChannel uint8
		Raw            []byte
	}

	// RSNElement is element 48. Use ParseRSN on Raw for the suite lists.
	RSNElement struct{ Raw []byte }

	// RSNX is element 244.
	RSNX struct{ Raw []byte }

	// MobilityDomain is element 54.
	MobilityDomain struct {
		MDID         uint16
		FTCapability uint8
		Raw          []byte
	}

	// WAPI is element 68.
	WAPI struct{ Raw []byte }

	// RMEnabledCaps is element 70 (802.11k).
	RMEnabledCaps struct{ Raw []byte }

	// MultipleBSSID is element 71. Subelements holds the profiles
	// undecoded; see ParseMultipleBSSID.
	MultipleBSSID struct {
		MaxIndicator uint8
		Subelements  []byte
	}

	// BSSCoexistence is element 72.
	BSSCoexistence struct{ Raw []byte }

	// ExtCapabilities is element 127 (802.11v bits live here).
	ExtCapabilities struct{ Raw []byte }

	// VHTCapabilities is element 191.
	VHTCapabilities struct{ Raw []byte }

	// VHTOperation is element 192.
	VHTOperation struct{ Raw []byte }

	// VHTTxPowerEnv is element 195.
	VHTTxPowerEnv struct{ Raw []byte }

	// OperatingMode is element 199.
	OperatingMode struct{ Mode uint8 }

	// HECapabilities is extension element 35.
	HECapabilities struct{ Raw []byte }

	// HEOperation is extension element 36.
	HEOperation struct{ Raw []byte }

	// Extension is any other element 255 payload.
	Extension struct {
		ExtID uint8
		Data  []byte
	}

	// Unknown is any element this package does not decode.
	Unknown struct {
		ID   uint8
		Data []byte
	}
)

func (SSID) ElementID() uint8 { return IDSSID }
func (r Rates) ElementID() uint8 {
	if r.Extended {
		return IDExtendedRates
	}
	return IDSupportedRates
}
func (FHParams) ElementID() uint8        { return IDFHParamSet }
func (DSParams) ElementID() uint8        { return IDDSParamSet }
func (CFParams) ElementID() uint8        { return IDCFParamSet }
func (TIM) ElementID() uint8             { return IDTIM }
func (IBSSParams) ElementID() uint8      { return IDIBSSParamSet }
func (Country) ElementID() uint8         { return IDCountry }
func (BSSLoad) ElementID() uint8         { return IDBSSLoad }
func (HTCapabilities) ElementID() uint8  { return IDHTCapabilities }
func (HTOperation) ElementID() uint8     { return IDHTOperation }
func (RSNElement) ElementID() uint8      { return IDRSN }
func (RSNX) ElementID() uint8            { return IDRSNX }
func (MobilityDomain) ElementID() uint8  { return IDMobilityDomain }
func (WAPI) ElementID() uint8            { return IDWAPI }
func (RMEnabledCaps) ElementID() uint8   { return IDRMEnabledCaps }
func (MultipleBSSID) ElementID() uint8   { return IDMultipleBSSID }
func (BSSCoexistence) ElementID() uint8  { return IDBSSCoexistence }
func (ExtCapabilities) ElementID() uint8 { return IDExtCapabilities }
func (VHTCapabilities) ElementID() uint8 { return IDVHTCapabilities }
func (VHTOperation) ElementID() uint8    { return IDVHTOperation }
func (VHTTxPowerEnv) ElementID() uint8   { return IDVHTTxPowerEnv }
func (OperatingMode) ElementID() uint8   { return IDOperatingMode }
func (HECapabilities) ElementID() uint8  { return IDExtension }
func (HEOperation) ElementID() uint8     { return IDExtension }
func (Extension) ElementID() uint8       { return IDExtension }
func (u Unknown) ElementID() uint8       { return u.ID }

// Decode converts a raw element into its typed variant. Slices in the
// result alias e.Data. Elements whose length is impossible for their type
// return an error wrapping ErrBadLength.
func Decode(e Element) (Info, error) {
	d := e.Data
	switch e.ID {
	case IDSSID:
		if len(d) > MaxSSIDLen {
			return nil, badLength(e)
		}
		return SSID{Name: d}, nil
	case IDSupportedRates, IDExtendedRates:
		return Rates{Rates: d, Extended: e.ID == IDExtendedRates}, nil
	case IDFHParamSet:
		if len(d) < 5 {
			return nil, badLength(e)
		}
		return FHParams{
			DwellTime:  binary.LittleEndian.Uint16(d),
			HopSet:     d[2],
			HopPattern: d[3],
			HopIndex:   d[4],
		}, nil
	case IDDSParamSet:
		if len(d) < 1 {
			return nil, badLength(e)
		}
		return DSParams{Channel: d[0]}, nil
	case IDCFParamSet:
		return CFParams{Raw: d}, nil
	case IDTIM:
		if len(d) < 2 {
			return nil, badLength(e)
		}
		return TIM{DTIMCount: d[0], DTIMPeriod: d[1]}, nil
	case IDIBSSParamSet:
		if len(d) < 2 {
			return nil, badLength(e)
		}
		return IBSSParams{ATIMWindow: binary.LittleEndian.Uint16(d)}, nil
	case IDCountry:
		if len(d) < 3 {
			return nil, badLength(e)
		}
		var c Country
		copy(c.Code[:], d[:3])
		c.Triplets = d[3:]
		return c, nil
	case IDBSSLoad:
		if len(d) < 5 {
			return nil, badLength(e)
		}
		return BSSLoad{
			StationCount: binary.LittleEndian.Uint16(d),
			Utilization:  d[2],
			AdmissionCap: binary.LittleEndian.Uint16(d[3:]),
		}, nil
	case IDHTCapabilities:
		return HTCapabilities{Raw: d}, nil
	case IDHTOperation:
		if len(d) < 1 {
			return nil, badLength(e)
		}
		return HTOperation{PrimaryChannel: d[0], Raw: d}, nil
	case IDRSN:
		return RSNElement{Raw: d}, nil
	case IDRSNX:
		return RSNX{Raw: d}, nil
	case IDMobilityDomain:
		if len(d) < 3 {
			return nil, badLength(e)
		}
		return MobilityDomain{MDID: binary.LittleEndian.Uint16(d), FTCapability: d[2], Raw: d}, nil
	case IDWAPI:
		return WAPI{Raw: d}, nil
	case IDRMEnabledCaps:
		return RMEnabledCaps{Raw: d}, nil
	case IDMultipleBSSID:
		if len(d) < 1 {
			return nil, badLength(e)
		}
		return MultipleBSSID{MaxIndicator: d[0], Subelements: d[1:]}, nil
	case IDBSSCoexistence:
		return BSSCoexistence{Raw: d}, nil
	case IDExtCapabilities:
		return ExtCapabilities{Raw: d}, nil
	case IDVHTCapabilities:
		return VHTCapabilities{Raw: d}, nil
	case IDVHTOperation:
		return VHTOperation{Raw: d}, nil
	case IDVHTTxPowerEnv:
		return VHTTxPowerEnv{Raw: d}, nil
	case IDOperatingMode:
		if len(d) < 1 {
			return nil, badLength(e)
		}
		return OperatingMode{Mode: d[0]}, nil
	case IDVendorSpecific:
		return ParseVendor(d)
	case IDExtension:
		if len(d) < 1 {
			return nil, badLength(e)
		}
		switch d[0] {
		case ExtIDHECapabilities:
			return HECapabilities{Raw: d[1:]}, nil
		case ExtIDHEOperation:
			return HEOperation{Raw: d[1:]}, nil
		}
		return Extension{ExtID: d[0], Data: d[1:]}, nil
	}
	return Unknown{ID: e.ID, Data: d}, nil
}

func badLength(e Element) error {
	return fmt.Errorf("element %d with %d bytes: %w", e.ID, len(e.Data), ErrBadLength)
}

// IsHiddenSSID reports whether name is empty or all zero bytes.
func IsHiddenSSID(name []byte) bool {
	for _, c := range name {
		if c != 0 {
			return false
		}
	}
	return true
}
