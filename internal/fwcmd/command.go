package fwcmd

import (
	"encoding/binary"
	"fmt"

	"github.com/HerbHall/wlanscan/pkg/models"
)

// ChanScanMode carries the per-channel scan mode bits.
type ChanScanMode uint8

// Channel scan mode bits.
const (
	ModePassive ChanScanMode = 1 << iota
	ModeDisableChanFilter
	ModeMultiDomain
	ModeRspTimeout
	ModeHiddenSSIDReport
	ModeFirstChan
	ModePassiveToActive
)

// Has reports whether every bit of flag is set.
func (m ChanScanMode) Has(flag ChanScanMode) bool { return m&flag == flag }

// ChanScanParamLen is the encoded size of one ChanScanParam.
const ChanScanParamLen = 7

// ChanScanParam describes one channel of a scan command.
type ChanScanParam struct {
	Radio   models.RadioType
	Channel uint8
	Mode    ChanScanMode
	MinTime uint16 // ms
	MaxTime uint16 // ms
}

func (p ChanScanParam) appendTo(dst []byte) []byte {
	dst = append(dst, byte(p.Radio), p.Channel, byte(p.Mode))
	dst = binary.LittleEndian.AppendUint16(dst, p.MinTime)
	return binary.LittleEndian.AppendUint16(dst, p.MaxTime)
}

func decodeChanScanParams(v []byte) ([]ChanScanParam, error) {
	if len(v)%ChanScanParamLen != 0 {
		return nil, fmt.Errorf("channel list length %d: %w", len(v), ErrShortBuffer)
	}
	out := make([]ChanScanParam, 0, len(v)/ChanScanParamLen)
	for ; len(v) > 0; v = v[ChanScanParamLen:] {
		out = append(out, ChanScanParam{
			Radio:   models.RadioType(v[0]),
			Channel: v[1],
			Mode:    ChanScanMode(v[2]),
			MinTime: binary.LittleEndian.Uint16(v[3:]),
			MaxTime: binary.LittleEndian.Uint16(v[5:]),
		})
	}
	return out, nil
}

// SSIDFilter is one entry of a scan's SSID list. MaxLen zero asks for an
// exact match; a non-zero MaxLen is sent as a wildcard SSID TLV.
type SSIDFilter struct {
	SSID   []byte
	MaxLen uint8
}

// ScanCommand is the decoded form of a scan sub-command. Ext selects the
// extended command code and body layout.
type ScanCommand struct {
	Ext       bool
	BSSMode   uint8
	BSSID     [6]byte
	SSIDs     []SSIDFilter
	NumProbes uint16
	RSSILow   uint8
	SNRLow    uint8
	Rates     []byte
	Channels  []ChanScanParam
	ChanGap   uint16 // ms, zero omits the TLV
}

// Code returns the host command code for c.
func (c *ScanCommand) Code() uint16 {
	if c.Ext {
		return CmdScanExt
	}
	return CmdScan
}

// Encode frames c as a host command with sequence number seq.
//
// TLVs are written in a fixed order: SSIDs, probe count, thresholds, BSSID
// (extended only), rates, channel list, channel gap.
func (c *ScanCommand) Encode(seq uint16) []byte {
	var body []byte
	if c.Ext {
		body = make([]byte, 4, 256)
	} else {
		body = make([]byte, 0, 256)
		body = append(body, c.BSSMode)
		body = append(body, c.BSSID[:]...)
	}

	for _, f := range c.SSIDs {
		if f.MaxLen == 0 {
			body = AppendTLV(body, TLVSSID, f.SSID)
			continue
		}
		v := make([]byte, 0, 1+len(f.SSID))
		v = append(v, f.MaxLen)
		v = append(v, f.SSID...)
		body = AppendTLV(body, TLVWildcardSSID, v)
	}
	if c.NumProbes != 0 {
		body = AppendTLV(body, TLVNumProbes, binary.LittleEndian.AppendUint16(nil, c.NumProbes))
	}
	if c.RSSILow != 0 {
		body = AppendTLV(body, TLVRSSILow, []byte{c.RSSILow, 0})
	}
	if c.SNRLow != 0 {
		body = AppendTLV(body, TLVSNRLow, []byte{c.SNRLow, 0})
	}
	if c.Ext && c.BSSID != [6]byte{} {
		body = AppendTLV(body, TLVBSSID, c.BSSID[:])
	}
	if len(c.Rates) > 0 {
		body = AppendTLV(body, TLVRates, c.Rates)
	}
	if len(c.Channels) > 0 {
		v := make([]byte, 0, len(c.Channels)*ChanScanParamLen)
		for _, p := range c.Channels {
			v = p.appendTo(v)
		}
		body = AppendTLV(body, TLVChanList, v)
	}
	if c.ChanGap != 0 {
		body = AppendTLV(body, TLVScanChanGap, binary.LittleEndian.AppendUint16(nil, c.ChanGap))
	}
	return frame(c.Code(), seq, ResultOK, body)
}

// DecodeScanCommand parses a framed scan command. It is the firmware side
// of Encode.
func DecodeScanCommand(b []byte) (*ScanCommand, uint16, error) {
	h, body, err := ReadHeader(b)
	if err != nil {
		return nil, 0, err
	}
	c := &ScanCommand{}
	switch h.Command {
	case CmdScanExt:
		if len(body) < 4 {
			return nil, h.SeqNum, fmt.Errorf("scan ext body: %w", ErrShortBuffer)
		}
		c.Ext = true
		body = body[4:]
	case CmdScan:
		if len(body) < 7 {
			return nil, h.SeqNum, fmt.Errorf("scan body: %w", ErrShortBuffer)
		}
		c.BSSMode = body[0]
		copy(c.BSSID[:], body[1:7])
		body = body[7:]
	default:
		return nil, h.SeqNum, fmt.Errorf("command %#04x: %w", h.Command, ErrUnexpectedResponse)
	}

	var perr error
	err = ForEachTLV(body, func(t TLV) bool {
		switch t.Type {
		case TLVSSID:
			c.SSIDs = append(c.SSIDs, SSIDFilter{SSID: append([]byte(nil), t.Value...)})
		case TLVWildcardSSID:
			if len(t.Value) < 1 {
				perr = fmt.Errorf("wildcard ssid: %w", ErrShortBuffer)
				return false
			}
			c.SSIDs = append(c.SSIDs, SSIDFilter{
				MaxLen: t.Value[0],
				SSID:   append([]byte(nil), t.Value[1:]...),
			})
		case TLVBSSID:
			copy(c.BSSID[:], t.Value)
		case TLVNumProbes:
			if len(t.Value) >= 2 {
				c.NumProbes = binary.LittleEndian.Uint16(t.Value)
			}
		case TLVRSSILow:
			if len(t.Value) >= 1 {
				c.RSSILow = t.Value[0]
			}
		case TLVSNRLow:
			if len(t.Value) >= 1 {
				c.SNRLow = t.Value[0]
			}
		case TLVRates:
			c.Rates = append([]byte(nil), t.Value...)
		case TLVChanList:
			c.Channels, perr = decodeChanScanParams(t.Value)
			if perr != nil {
				return false
			}
		case TLVScanChanGap:
			if len(t.Value) >= 2 {
				c.ChanGap = binary.LittleEndian.Uint16(t.Value)
			}
		}
		return true
	})
	if err == nil {
		err = perr
	}
	return c, h.SeqNum, err
}
