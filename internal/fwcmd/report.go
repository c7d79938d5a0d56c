package fwcmd

import (
	"encoding/binary"
	"fmt"

	"github.com/HerbHall/wlanscan/pkg/models"
)

// ReportHeaderLen is the size of the extended scan report event header.
const ReportHeaderLen = 11

// ScanInfoLen is the only accepted length of a BSS scan info TLV.
const ScanInfoLen = 16

// ScanInfo is the per-BSS measurement block of an extended report. RSSI
// is a magnitude: the signal is -RSSI dBm.
type ScanInfo struct {
	RSSI    int16
	ANPI    int16
	CCABusy uint8
	Radio   models.RadioType
	Channel uint8
	TSF     uint64
}

func (s ScanInfo) appendTo(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, uint16(s.RSSI))
	dst = binary.LittleEndian.AppendUint16(dst, uint16(s.ANPI))
	dst = append(dst, s.CCABusy, byte(s.Radio), s.Channel, 0)
	return binary.LittleEndian.AppendUint64(dst, s.TSF)
}

// ReportEntry is one BSS of an extended report. Descriptor starts at the
// BSSID and has no size or RSSI prefix. Info is nil when the firmware sent
// no scan info TLV for the entry.
type ReportEntry struct {
	Descriptor []byte
	Info       *ScanInfo
}

// ScanReport is one extended scan report event.
type ScanReport struct {
	EventID   uint16
	BSSIndex  uint8
	BSSType   uint8
	MoreEvent bool
	NumSets   uint8
	Entries   []ReportEntry
	ChanStats []ChanStat
}

// DecodeScanReport parses one extended scan report event. Parsing stops
// quietly at the first malformed scan info TLV or truncated TLV; entries
// gathered up to that point are returned. When the header is readable but
// buf_size overruns the event, the header fields (MoreEvent included) are
// returned together with the error so the caller can keep draining.
func DecodeScanReport(b []byte) (*ScanReport, error) {
	if len(b) < ReportHeaderLen {
		return nil, fmt.Errorf("report header: %w", ErrShortBuffer)
	}
	r := &ScanReport{
		EventID:   binary.LittleEndian.Uint16(b),
		BSSIndex:  b[2],
		BSSType:   b[3],
		MoreEvent: b[4] != 0,
		NumSets:   b[10],
	}
	if r.EventID != EventExtScanReport {
		return nil, fmt.Errorf("event %#04x: %w", r.EventID, ErrUnexpectedResponse)
	}
	size := int(binary.LittleEndian.Uint16(b[8:]))
	buf := b[ReportHeaderLen:]
	if size > len(buf) {
		return r, fmt.Errorf("report buffer %d of %d bytes: %w", size, len(buf), ErrShortBuffer)
	}

	_ = ForEachTLV(buf[:size], func(t TLV) bool {
		switch t.Type {
		case TLVBSSScanRsp:
			r.Entries = append(r.Entries, ReportEntry{Descriptor: t.Value})
		case TLVBSSScanInfo:
			if len(t.Value) != ScanInfoLen {
				return false
			}
			if len(r.Entries) == 0 {
				return true
			}
			v := t.Value
			r.Entries[len(r.Entries)-1].Info = &ScanInfo{
				RSSI:    int16(binary.LittleEndian.Uint16(v)),
				ANPI:    int16(binary.LittleEndian.Uint16(v[2:])),
				CCABusy: v[4],
				Radio:   models.RadioType(v[5]),
				Channel: v[6],
				TSF:     binary.LittleEndian.Uint64(v[8:]),
			}
		case TLVChannelStats:
			r.ChanStats = append(r.ChanStats, decodeChanStats(t.Value)...)
		}
		return true
	})
	return r, nil
}

// Encode serializes r as an event buffer.
func (r *ScanReport) Encode() []byte {
	var buf []byte
	for _, e := range r.Entries {
		buf = AppendTLV(buf, TLVBSSScanRsp, e.Descriptor)
		if e.Info != nil {
			buf = AppendTLV(buf, TLVBSSScanInfo, e.Info.appendTo(make([]byte, 0, ScanInfoLen)))
		}
	}
	buf = appendChanStats(buf, r.ChanStats)

	out := make([]byte, 0, ReportHeaderLen+len(buf))
	out = binary.LittleEndian.AppendUint16(out, EventExtScanReport)
	out = append(out, r.BSSIndex, r.BSSType)
	if r.MoreEvent {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = append(out, 0, 0, 0)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(buf)))
	out = append(out, byte(len(r.Entries)))
	return append(out, buf...)
}
