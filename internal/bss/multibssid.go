package bss

import (
	"bytes"
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/HerbHall/wlanscan/internal/ie"
)

// maxIndicator is the largest Multiple BSSID indicator a 6-byte BSSID can
// absorb in its last octet.
const maxIndicator = 8

// DeriveBSSID computes the BSSID of the member at idx of a Multiple BSSID
// set whose transmitted BSSID is ref. The low n bits of the last octet are
// replaced by (ref + idx) mod 2^n.
func DeriveBSSID(ref MAC, n, idx uint8) MAC {
	if n == 0 || n > maxIndicator {
		return ref
	}
	mask := byte(0xff >> (8 - n))
	out := ref
	out[5] = (ref[5] &^ mask) | ((ref[5] + idx) & mask)
	return out
}

// ExpandMultiBSSID synthesizes one record per nontransmitted profile in m.
// Each member inherits parent's fields; its BSSID is derived from the
// profile's index and its SSID, RSN, RSNX and extended capabilities come
// from the profile when present. A malformed profile is skipped.
func (p *Parser) ExpandMultiBSSID(parent *Record, m ie.MultipleBSSID) []*Record {
	n := m.MaxIndicator
	if n == 0 || n > maxIndicator {
		p.defect(DefectBadProfile, "multiple bssid indicator out of range",
			zap.Stringer("bssid", parent.BSSID), zap.Uint8("indicator", n))
		return nil
	}
	profiles, err := m.Profiles()
	if err != nil {
		p.defect(DefectTruncatedIE, "multiple bssid subelements truncated",
			zap.Stringer("bssid", parent.BSSID), zap.Error(err))
	}

	var out []*Record
	for i, prof := range profiles {
		child, ok := p.expandProfile(parent, n, prof)
		if !ok {
			p.defect(DefectBadProfile, "nontransmitted profile skipped",
				zap.Stringer("bssid", parent.BSSID), zap.Int("profile", i))
			continue
		}
		out = append(out, child)
	}
	return out
}

func (p *Parser) expandProfile(parent *Record, n uint8, prof []byte) (*Record, bool) {
	it := ie.Iterate(prof)
	if !it.Next() {
		return nil, false
	}
	first := it.Element()
	if first.ID != ie.IDNonTxBSSIDCap || len(first.Data) != 2 {
		return nil, false
	}

	child := parent.Clone()
	child.Role = RoleNonTransmitted
	child.Transmitter = parent.BSSID
	child.MaxBSSIDIndicator = n
	p.setCapability(child, binary.LittleEndian.Uint16(first.Data))

	haveIndex := false
	for it.Next() {
		e := it.Element()
		switch e.ID {
		case ie.IDMultiBSSIDIndex:
			idx, ok := ie.ParseMultiBSSIDIndex(e.Data)
			if !ok || idx.Index == 0 || idx.Index > ie.MaxBSSIDIndex {
				return nil, false
			}
			child.BSSIDIndex = idx.Index
			child.BSSID = DeriveBSSID(parent.BSSID, n, idx.Index)
			if idx.HasDTIMInfo {
				child.DTIMPeriod = idx.DTIMPeriod
			}
			haveIndex = true
		case ie.IDSSID:
			if len(e.Data) > ie.MaxSSIDLen {
				return nil, false
			}
			child.SSID = bytes.Clone(e.Data)
		case ie.IDRSN:
			if len(e.Data) <= ie.MaxRSNLen {
				child.RSN = bytes.Clone(e.Data)
			}
		case ie.IDRSNX:
			child.RSNX = bytes.Clone(e.Data)
		case ie.IDExtCapabilities:
			child.ExtCap = bytes.Clone(e.Data)
		}
	}
	if it.Err() != nil || !haveIndex {
		return nil, false
	}
	return child, true
}
