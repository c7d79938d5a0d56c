package fwcmd

import (
	"encoding/binary"
	"fmt"
)

// TLV types used by scan commands, responses and events.
const (
	TLVSSID         uint16 = 0x0000
	TLVRates        uint16 = 0x0001
	TLVChanList     uint16 = 0x0101
	TLVNumProbes    uint16 = 0x0102
	TLVRSSILow      uint16 = 0x0104
	TLVSNRLow       uint16 = 0x0105
	TLVPassthrough  uint16 = 0x010a
	TLVWildcardSSID uint16 = 0x0112
	TLVTSF          uint16 = 0x0113
	TLVBSSID        uint16 = 0x0123
	TLVChanBandList uint16 = 0x012a
	TLVBSSScanRsp   uint16 = 0x0156
	TLVBSSScanInfo  uint16 = 0x0157
	TLVScanChanGap  uint16 = 0x01c5
	TLVChannelStats uint16 = 0x01c6
)

// TLVHeaderLen is the size of a TLV's type and length fields.
const TLVHeaderLen = 4

// TLV is one type-length-value record. Value aliases the input buffer.
type TLV struct {
	Type  uint16
	Value []byte
}

// AppendTLV encodes a TLV onto dst.
func AppendTLV(dst []byte, typ uint16, value []byte) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, typ)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(value)))
	return append(dst, value...)
}

// NextTLV decodes the TLV at the front of b.
func NextTLV(b []byte) (TLV, []byte, error) {
	if len(b) < TLVHeaderLen {
		return TLV{}, b, fmt.Errorf("tlv header: %w", ErrShortBuffer)
	}
	typ := binary.LittleEndian.Uint16(b)
	n := int(binary.LittleEndian.Uint16(b[2:]))
	if n > len(b)-TLVHeaderLen {
		return TLV{}, b, fmt.Errorf("tlv %#04x length %d: %w", typ, n, ErrShortBuffer)
	}
	end := TLVHeaderLen + n
	return TLV{Type: typ, Value: b[TLVHeaderLen:end:end]}, b[end:], nil
}

// ForEachTLV calls fn for every TLV in b until fn returns false or the
// buffer ends. A truncated TLV stops the walk and is reported.
func ForEachTLV(b []byte, fn func(TLV) bool) error {
	for len(b) > 0 {
		t, rest, err := NextTLV(b)
		if err != nil {
			return err
		}
		if !fn(t) {
			return nil
		}
		b = rest
	}
	return nil
}
