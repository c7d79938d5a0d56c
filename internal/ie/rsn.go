package ie

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Suite is a 4-byte cipher or AKM selector packed as OUI<<8 | type.
type Suite uint32

// MakeSuite builds a Suite from an OUI and a type byte.
func MakeSuite(oui [3]byte, typ uint8) Suite {
	return Suite(uint32(oui[0])<<24 | uint32(oui[1])<<16 | uint32(oui[2])<<8 | uint32(typ))
}

// OUI returns the organisation identifier of the selector.
func (s Suite) OUI() [3]byte {
	return [3]byte{byte(s >> 24), byte(s >> 16), byte(s >> 8)}
}

// Type returns the selector type byte.
func (s Suite) Type() uint8 { return uint8(s) }

var (
	// OUIIEEE is the 802.11 OUI used by RSN selectors.
	OUIIEEE = [3]byte{0x00, 0x0f, 0xac}
	// OUIMicrosoft is used by the WPA, WMM and WPS vendor elements.
	OUIMicrosoft = [3]byte{0x00, 0x50, 0xf2}
	// OUIWFA is the Wi-Fi Alliance OUI used by OWE transition and MBO.
	OUIWFA = [3]byte{0x50, 0x6f, 0x9a}
)

// Cipher suites, expressed on the RSN OUI. WPA selectors are folded onto
// these by ParseWPA.
const (
	CipherUseGroup Suite = 0x000fac00
	CipherWEP40    Suite = 0x000fac01
	CipherTKIP     Suite = 0x000fac02
	CipherCCMP128  Suite = 0x000fac04
	CipherWEP104   Suite = 0x000fac05
	CipherGCMP128  Suite = 0x000fac08
	CipherGCMP256  Suite = 0x000fac09
	CipherCCMP256  Suite = 0x000fac0a
)

// AKM suites.
const (
	AKM8021X     Suite = 0x000fac01
	AKMPSK       Suite = 0x000fac02
	AKMFT8021X   Suite = 0x000fac03
	AKMFTPSK     Suite = 0x000fac04
	AKMPSK256    Suite = 0x000fac06
	AKMSAE       Suite = 0x000fac08
	AKMFTSAE     Suite = 0x000fac09
	AKMSuiteB    Suite = 0x000fac0b
	AKMSuiteB192 Suite = 0x000fac0c
	AKMOWE       Suite = 0x000fac12
)

// Limits taken from the fixed element buffers the scan table keeps. An RSN
// or WPA element larger than this is logged and dropped.
const (
	MaxRSNLen         = 62
	MaxMobilityDomain = 8
	MaxVendorStash    = 100
)

var (
	errShortSecurity   = errors.New("ie: security element too short")
	errSuiteListLength = errors.New("ie: suite count exceeds element")
)

// Security is the parsed content of an RSN element or WPA vendor element.
// Trailing optional fields that are absent keep their zero value.
type Security struct {
	Version         uint16
	GroupCipher     Suite
	PairwiseCiphers []Suite
	AKMs            []Suite
	Capabilities    uint16
}

// HasPairwise reports whether s is in the pairwise cipher list.
func (sec Security) HasPairwise(s Suite) bool {
	for _, c := range sec.PairwiseCiphers {
		if c == s {
			return true
		}
	}
	return false
}

// HasAKM reports whether s is in the AKM list.
func (sec Security) HasAKM(s Suite) bool {
	for _, a := range sec.AKMs {
		if a == s {
			return true
		}
	}
	return false
}

// HasAES reports whether any CCMP or GCMP cipher is offered pairwise.
func (sec Security) HasAES() bool {
	for _, c := range sec.PairwiseCiphers {
		switch c {
		case CipherCCMP128, CipherCCMP256, CipherGCMP128, CipherGCMP256:
			return true
		}
	}
	return false
}

// ParseRSN decodes the body of an RSN element (ID 48).
func ParseRSN(b []byte) (Security, error) {
	return parseSecurity(b, nil)
}

// ParseWPA decodes the body of a WPA vendor element that follows the
// OUI and type bytes. Selectors on the Microsoft OUI are rewritten onto the
// IEEE OUI so callers compare against one set of constants.
func ParseWPA(b []byte) (Security, error) {
	return parseSecurity(b, &OUIMicrosoft)
}

func parseSecurity(b []byte, fold *[3]byte) (Security, error) {
	var sec Security
	if len(b) < 2 {
		return sec, errShortSecurity
	}
	sec.Version = binary.LittleEndian.Uint16(b)
	b = b[2:]

	if len(b) < 4 {
		// Version only: defaults apply, group and pairwise CCMP for RSN.
		return sec, nil
	}
	sec.GroupCipher = readSuite(b, fold)
	b = b[4:]

	var err error
	if sec.PairwiseCiphers, b, err = readSuiteList(b, fold); err != nil {
		return sec, fmt.Errorf("pairwise: %w", err)
	}
	if sec.AKMs, b, err = readSuiteList(b, fold); err != nil {
		return sec, fmt.Errorf("akm: %w", err)
	}
	if len(b) >= 2 {
		sec.Capabilities = binary.LittleEndian.Uint16(b)
	}
	return sec, nil
}

func readSuite(b []byte, fold *[3]byte) Suite {
	s := Suite(binary.BigEndian.Uint32(b))
	if fold != nil && s.OUI() == *fold {
		s = MakeSuite(OUIIEEE, s.Type())
	}
	return s
}

func readSuiteList(b []byte, fold *[3]byte) ([]Suite, []byte, error) {
	if len(b) < 2 {
		return nil, b, nil
	}
	n := int(binary.LittleEndian.Uint16(b))
	b = b[2:]
	if n*4 > len(b) {
		return nil, b, errSuiteListLength
	}
	out := make([]Suite, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, readSuite(b[i*4:], fold))
	}
	return out, b[n*4:], nil
}

// AppendSecurity encodes sec as an RSN element body.
func AppendSecurity(dst []byte, sec Security) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, sec.Version)
	dst = binary.BigEndian.AppendUint32(dst, uint32(sec.GroupCipher))
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(sec.PairwiseCiphers)))
	for _, s := range sec.PairwiseCiphers {
		dst = binary.BigEndian.AppendUint32(dst, uint32(s))
	}
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(sec.AKMs)))
	for _, s := range sec.AKMs {
		dst = binary.BigEndian.AppendUint32(dst, uint32(s))
	}
	return binary.LittleEndian.AppendUint16(dst, sec.Capabilities)
}
