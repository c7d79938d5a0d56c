package fwcmd

import (
	"encoding/binary"
	"fmt"

	"github.com/HerbHall/wlanscan/pkg/models"
)

// ChanBand names the channel a legacy response entry was received on.
type ChanBand struct {
	Radio   models.RadioType
	Channel uint8
}

// ChanStatLen is the encoded size of one ChanStat.
const ChanStatLen = 12

// ChanStat is the firmware's per-channel measurement from a scan.
type ChanStat struct {
	Channel       uint8
	BandConfig    uint8
	Flags         uint8
	Noise         int8
	TotalNetworks uint16
	CCADuration   uint16
	CCABusy       uint16
	MinRSS        uint8
	MaxRSS        uint8
}

// Load returns the channel busy percentage, zero when nothing was measured.
func (c ChanStat) Load() uint8 {
	if c.CCADuration == 0 {
		return 0
	}
	pct := uint32(c.CCABusy) * 100 / uint32(c.CCADuration)
	if pct > 100 {
		pct = 100
	}
	return uint8(pct)
}

func (c ChanStat) appendTo(dst []byte) []byte {
	dst = append(dst, c.Channel, c.BandConfig, c.Flags, byte(c.Noise))
	dst = binary.LittleEndian.AppendUint16(dst, c.TotalNetworks)
	dst = binary.LittleEndian.AppendUint16(dst, c.CCADuration)
	dst = binary.LittleEndian.AppendUint16(dst, c.CCABusy)
	return append(dst, c.MinRSS, c.MaxRSS)
}

func decodeChanStats(v []byte) []ChanStat {
	out := make([]ChanStat, 0, len(v)/ChanStatLen)
	for ; len(v) >= ChanStatLen; v = v[ChanStatLen:] {
		out = append(out, ChanStat{
			Channel:       v[0],
			BandConfig:    v[1],
			Flags:         v[2],
			Noise:         int8(v[3]),
			TotalNetworks: binary.LittleEndian.Uint16(v[4:]),
			CCADuration:   binary.LittleEndian.Uint16(v[6:]),
			CCABusy:       binary.LittleEndian.Uint16(v[8:]),
			MinRSS:        v[10],
			MaxRSS:        v[11],
		})
	}
	return out
}

func appendChanStats(dst []byte, stats []ChanStat) []byte {
	if len(stats) == 0 {
		return dst
	}
	v := make([]byte, 0, len(stats)*ChanStatLen)
	for _, s := range stats {
		v = s.appendTo(v)
	}
	return AppendTLV(dst, TLVChannelStats, v)
}

// ScanResponse is the legacy scan command response: a block of
// concatenated BSS descriptors followed by TLVs carrying one TSF and one
// channel/band pair per descriptor, plus optional channel statistics.
type ScanResponse struct {
	NumSets     uint8
	Descriptors []byte
	TSF         []uint64
	ChanBands   []ChanBand
	ChanStats   []ChanStat
}

// DecodeScanResponse parses a legacy scan response answering seq.
func DecodeScanResponse(b []byte, seq uint16) (*ScanResponse, error) {
	body, err := CheckResponse(b, CmdScan, seq)
	if err != nil {
		return nil, err
	}
	if len(body) < 3 {
		return nil, fmt.Errorf("scan response: %w", ErrShortBuffer)
	}
	size := int(binary.LittleEndian.Uint16(body))
	r := &ScanResponse{NumSets: body[2]}
	body = body[3:]
	if size > len(body) {
		return nil, fmt.Errorf("descriptor block %d of %d bytes: %w", size, len(body), ErrShortBuffer)
	}
	r.Descriptors = body[:size:size]

	// Trailing TLVs are best effort. A truncated one ends the walk and
	// leaves the descriptors usable.
	_ = ForEachTLV(body[size:], func(t TLV) bool {
		switch t.Type {
		case TLVTSF:
			for v := t.Value; len(v) >= 8; v = v[8:] {
				r.TSF = append(r.TSF, binary.LittleEndian.Uint64(v))
			}
		case TLVChanBandList:
			for v := t.Value; len(v) >= 2; v = v[2:] {
				r.ChanBands = append(r.ChanBands, ChanBand{Radio: models.RadioType(v[0]), Channel: v[1]})
			}
		case TLVChannelStats:
			r.ChanStats = append(r.ChanStats, decodeChanStats(t.Value)...)
		}
		return true
	})
	return r, nil
}

// Encode frames r as the response to a legacy scan command.
func (r *ScanResponse) Encode(seq uint16) []byte {
	body := make([]byte, 0, 3+len(r.Descriptors)+64)
	body = binary.LittleEndian.AppendUint16(body, uint16(len(r.Descriptors)))
	body = append(body, r.NumSets)
	body = append(body, r.Descriptors...)
	if len(r.TSF) > 0 {
		v := make([]byte, 0, 8*len(r.TSF))
		for _, t := range r.TSF {
			v = binary.LittleEndian.AppendUint64(v, t)
		}
		body = AppendTLV(body, TLVTSF, v)
	}
	if len(r.ChanBands) > 0 {
		v := make([]byte, 0, 2*len(r.ChanBands))
		for _, cb := range r.ChanBands {
			v = append(v, byte(cb.Radio), cb.Channel)
		}
		body = AppendTLV(body, TLVChanBandList, v)
	}
	body = appendChanStats(body, r.ChanStats)
	return frame(CmdScan|ResponseBit, seq, ResultOK, body)
}
