package ie

import (
	"encoding/binary"
	"fmt"
)

// VendorKind classifies a vendor-specific element by OUI and type.
type VendorKind uint8

const (
	VendorOther VendorKind = iota
	VendorWPA
	VendorWMM
	VendorWPS
	VendorOWETransition
	VendorMBO
	VendorBroadcom
	VendorEpigram
)

func (k VendorKind) String() string {
	switch k {
	case VendorWPA:
		return "wpa"
	case VendorWMM:
		return "wmm"
	case VendorWPS:
		return "wps"
	case VendorOWETransition:
		return "owe_transition"
	case VendorMBO:
		return "mbo"
	case VendorBroadcom:
		return "broadcom"
	case VendorEpigram:
		return "epigram"
	default:
		return "other"
	}
}

// Encoded sizes (header included) of the two WMM element forms. A WMM
// element of any other size is ignored.
const (
	WMMInfoLen  = 9
	WMMParamLen = 26
)

var (
	ouiBroadcom = [3]byte{0x00, 0x10, 0x18}
	ouiEpigram  = [3]byte{0x00, 0x90, 0x4c}
)

// Vendor is a vendor-specific element (ID 221).
type Vendor struct {
	OUI  [3]byte
	Type uint8
	Kind VendorKind
	// Body is the payload after the OUI and type bytes.
	Body []byte
	// Raw is the whole element payload, OUI included.
	Raw []byte
}

func (Vendor) ElementID() uint8 { return IDVendorSpecific }

// ParseVendor classifies the payload of a vendor-specific element.
func ParseVendor(d []byte) (Info, error) {
	if len(d) < 4 {
		return nil, badLength(Element{ID: IDVendorSpecific, Data: d})
	}
	v := Vendor{Type: d[3], Body: d[4:], Raw: d}
	copy(v.OUI[:], d[:3])
	switch {
	case v.OUI == OUIMicrosoft && v.Type == 1:
		v.Kind = VendorWPA
	case v.OUI == OUIMicrosoft && v.Type == 2:
		v.Kind = VendorWMM
	case v.OUI == OUIMicrosoft && v.Type == 4:
		v.Kind = VendorWPS
	case v.OUI == OUIWFA && v.Type == 0x1c:
		v.Kind = VendorOWETransition
	case v.OUI == OUIWFA && v.Type == 0x16:
		v.Kind = VendorMBO
	case v.OUI == ouiBroadcom && v.Type == 2:
		v.Kind = VendorBroadcom
	case v.OUI == ouiEpigram && (v.Type == 0x33 || v.Type == 0x34):
		v.Kind = VendorEpigram
	}
	return v, nil
}

// WMMValid reports whether a WMM element has one of the two accepted sizes.
func (v Vendor) WMMValid() bool {
	n := HeaderLen + len(v.Raw)
	return v.Kind == VendorWMM && (n == WMMInfoLen || n == WMMParamLen)
}

// WPA parses the body of a WPA element.
func (v Vendor) WPA() (Security, error) {
	return ParseWPA(v.Body)
}

// OWETransition is the payload of an OWE transition-mode element: the
// paired BSS that serves the other half of the transition.
type OWETransition struct {
	BSSID [6]byte
	SSID  []byte
}

// OWE parses the transition element. The SSID must be 1 to 32 bytes.
func (v Vendor) OWE() (OWETransition, error) {
	var t OWETransition
	if len(v.Body) < 7 {
		return t, fmt.Errorf("owe transition body %d bytes: %w", len(v.Body), ErrBadLength)
	}
	copy(t.BSSID[:], v.Body[:6])
	n := int(v.Body[6])
	if n == 0 || n > MaxSSIDLen || 7+n > len(v.Body) {
		return t, fmt.Errorf("owe transition ssid length %d: %w", n, ErrBadLength)
	}
	t.SSID = v.Body[7 : 7+n]
	return t, nil
}

// mboAttrAssocDisallowed is the MBO attribute that refuses new stations.
const mboAttrAssocDisallowed = 4

// MBOAssocDisallowed walks the MBO attributes and reports whether the AP
// refuses associations. A truncated attribute ends the walk.
func (v Vendor) MBOAssocDisallowed() bool {
	b := v.Body
	for len(b) >= 2 {
		id, n := b[0], int(b[1])
		if id == mboAttrAssocDisallowed {
			return true
		}
		if 2+n > len(b) {
			return false
		}
		b = b[2+n:]
	}
	return false
}

// WPSSession is the enrollment method an AP is currently advertising.
type WPSSession uint8

const (
	WPSSessionNone WPSSession = iota
	WPSSessionPIN
	WPSSessionPBC
)

func (s WPSSession) String() string {
	switch s {
	case WPSSessionPIN:
		return "pin"
	case WPSSessionPBC:
		return "pbc"
	default:
		return "none"
	}
}

// WPS attribute types (big-endian TLVs inside the WPS element).
const (
	wpsAttrDevicePasswordID  = 0x1012
	wpsAttrSelectedRegistrar = 0x1041

	wpsPasswordPIN = 0x0000
	wpsPasswordPBC = 0x0004
)

// WPSInfo is what the scan table keeps from a WPS element.
type WPSInfo struct {
	SelectedRegistrar bool
	Session           WPSSession
}

// WPS walks the WPS attributes. A session is only reported while a
// registrar is selected.
func (v Vendor) WPS() WPSInfo {
	var info WPSInfo
	pw := -1
	b := v.Body
	for len(b) >= 4 {
		typ := binary.BigEndian.Uint16(b)
		n := int(binary.BigEndian.Uint16(b[2:]))
		if 4+n > len(b) {
			break
		}
		val := b[4 : 4+n]
		switch typ {
		case wpsAttrSelectedRegistrar:
			info.SelectedRegistrar = n >= 1 && val[0] != 0
		case wpsAttrDevicePasswordID:
			if n >= 2 {
				pw = int(binary.BigEndian.Uint16(val))
			}
		}
		b = b[4+n:]
	}
	if info.SelectedRegistrar {
		switch pw {
		case wpsPasswordPBC:
			info.Session = WPSSessionPBC
		case wpsPasswordPIN:
			info.Session = WPSSessionPIN
		}
	}
	return info
}

// AppendVendor encodes a vendor element onto dst.
func AppendVendor(dst []byte, oui [3]byte, typ uint8, body []byte) []byte {
	data := make([]byte, 0, 4+len(body))
	data = append(data, oui[:]...)
	data = append(data, typ)
	data = append(data, body...)
	return Append(dst, IDVendorSpecific, data)
}
