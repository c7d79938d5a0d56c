package bss

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/wlanscan/internal/chanlist"
	"github.com/HerbHall/wlanscan/internal/fwcmd"
	"github.com/HerbHall/wlanscan/internal/ie"
	"github.com/HerbHall/wlanscan/pkg/models"
)

// ErrMalformedFrame is returned when a descriptor cannot hold its fixed
// fields or its size prefix is inconsistent with the buffer.
var ErrMalformedFrame = errors.New("bss: malformed frame")

// Format selects the descriptor layout.
type Format uint8

const (
	// Legacy descriptors carry a one-byte RSSI magnitude after the BSSID.
	Legacy Format = iota
	// Extended descriptors carry RSSI in a separate scan info TLV.
	Extended
)

// fixedLen is the size of BSSID, TSF, beacon interval and capability.
const fixedLen = 6 + 8 + 2 + 2

// Defect kinds reported through Parser.OnDefect.
const (
	DefectTruncatedIE    = "truncated_ie"
	DefectBadLength      = "bad_length"
	DefectOversized      = "oversized_ie"
	DefectMalformedFrame = "malformed_frame"
	DefectBadProfile     = "bad_profile"
)

// Parser decodes descriptors. It is safe for concurrent use once OnDefect
// is set.
type Parser struct {
	logger *zap.Logger
	// OnDefect, when set, is called once per recovered wire defect.
	OnDefect func(kind string)
	// Now supplies observation timestamps.
	Now func() time.Time
}

// NewParser returns a Parser logging recovered defects at debug level.
func NewParser(logger *zap.Logger) *Parser {
	return &Parser{logger: logger, Now: time.Now}
}

func (p *Parser) defect(kind string, msg string, fields ...zap.Field) {
	p.logger.Debug(msg, append(fields, zap.String("defect", kind))...)
	if p.OnDefect != nil {
		p.OnDefect(kind)
	}
}

// ParseDescriptor reads one size-prefixed legacy descriptor from the front
// of b. It returns the records (the BSS itself followed by any synthesized
// Multiple BSSID members) and the bytes after the descriptor.
//
// A zero size or one that runs past the buffer returns ErrMalformedFrame
// with a nil rest: the caller cannot find the next boundary and must skip
// the remainder. Any other defect leaves rest usable.
func (p *Parser) ParseDescriptor(b []byte) ([]*Record, []byte, error) {
	if len(b) < 2 {
		return nil, nil, fmt.Errorf("size prefix: %w", ErrMalformedFrame)
	}
	size := int(binary.LittleEndian.Uint16(b))
	if size == 0 || size > len(b)-2 {
		return nil, nil, fmt.Errorf("descriptor size %d of %d bytes: %w", size, len(b)-2, ErrMalformedFrame)
	}
	body, rest := b[2:2+size], b[2+size:]
	recs, err := p.ParseBody(body, Legacy)
	return recs, rest, err
}

// ParseBody decodes a descriptor without its size prefix.
func (p *Parser) ParseBody(body []byte, f Format) ([]*Record, error) {
	need := fixedLen
	if f == Legacy {
		need++
	}
	if len(body) < need {
		return nil, fmt.Errorf("descriptor of %d bytes, need %d: %w", len(body), need, ErrMalformedFrame)
	}

	r := &Record{SeenAt: p.now()}
	copy(r.BSSID[:], body)
	off := 6
	if f == Legacy {
		r.RSSI = -int16(body[off])
		off++
	}
	r.TSF = binary.LittleEndian.Uint64(body[off:])
	r.BeaconPeriod = binary.LittleEndian.Uint16(body[off+8:])
	p.setCapability(r, binary.LittleEndian.Uint16(body[off+10:]))

	mbssid := p.applyElements(r, body[off+12:])
	recs := []*Record{r}
	for _, m := range mbssid {
		recs = append(recs, p.ExpandMultiBSSID(r, m)...)
	}
	if len(recs) > 1 {
		r.Role = RoleTransmitter
	}
	return recs, nil
}

func (p *Parser) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *Parser) setCapability(r *Record, c uint16) {
	r.Capability = c
	r.Privacy = c&CapPrivacy != 0
	if c&CapIBSS != 0 {
		r.Mode = models.BSSModeIBSS
	} else {
		r.Mode = models.BSSModeInfra
	}
}

// applyElements walks the element list and fills r. It returns any Multiple
// BSSID elements for expansion once the parent record is complete.
func (p *Parser) applyElements(r *Record, b []byte) []ie.MultipleBSSID {
	var (
		mbssid    []ie.MultipleBSSID
		ratesSeen bool
	)
	it := ie.Iterate(b)
	for it.Next() {
		e := it.Element()
		info, err := ie.Decode(e)
		if err != nil {
			p.defect(DefectBadLength, "element rejected",
				zap.Stringer("bssid", r.BSSID), zap.Uint8("id", e.ID), zap.Error(err))
			continue
		}
		switch v := info.(type) {
		case ie.SSID:
			r.SSID = bytes.Clone(v.Name)
		case ie.Rates:
			if !v.Extended {
				ratesSeen = true
				r.Rates = appendCapped(r.Rates[:0], v.Rates, MaxRates)
			} else if ratesSeen {
				r.Rates = appendCapped(r.Rates, v.Rates, MaxRates)
			}
		case ie.DSParams:
			r.Channel = v.Channel
		case ie.TIM:
			r.DTIMPeriod = v.DTIMPeriod
		case ie.IBSSParams:
			r.ATIMWindow = v.ATIMWindow
		case ie.Country:
			r.Country = bytes.Clone(e.Data)
		case ie.BSSLoad:
			r.StationCount, r.Utilization = v.StationCount, v.Utilization
		case ie.HTCapabilities:
			r.HTCap = bytes.Clone(v.Raw)
		case ie.HTOperation:
			r.HTOp = bytes.Clone(v.Raw)
		case ie.VHTCapabilities:
			r.VHTCap = bytes.Clone(v.Raw)
		case ie.VHTOperation:
			r.VHTOp = bytes.Clone(v.Raw)
		case ie.HECapabilities:
			r.HECap = bytes.Clone(v.Raw)
		case ie.HEOperation:
			r.HEOp = bytes.Clone(v.Raw)
		case ie.BSSCoexistence:
			r.Coex = bytes.Clone(v.Raw)
		case ie.ExtCapabilities:
			r.ExtCap = bytes.Clone(v.Raw)
		case ie.RMEnabledCaps:
			r.RMCap = bytes.Clone(v.Raw)
		case ie.RSNElement:
			if len(v.Raw) > ie.MaxRSNLen {
				p.defect(DefectOversized, "rsn element dropped",
					zap.Stringer("bssid", r.BSSID), zap.Int("len", len(v.Raw)))
				continue
			}
			r.RSN = bytes.Clone(v.Raw)
		case ie.RSNX:
			r.RSNX = bytes.Clone(v.Raw)
		case ie.WAPI:
			r.WAPI = bytes.Clone(v.Raw)
		case ie.MobilityDomain:
			if len(v.Raw) > ie.MaxMobilityDomain {
				p.defect(DefectOversized, "mobility domain dropped",
					zap.Stringer("bssid", r.BSSID), zap.Int("len", len(v.Raw)))
				continue
			}
			r.MobilityDomain = bytes.Clone(v.Raw)
		case ie.MultipleBSSID:
			r.MaxBSSIDIndicator = v.MaxIndicator
			mbssid = append(mbssid, v)
		case ie.Vendor:
			p.applyVendor(r, e, v)
		}
	}
	if err := it.Err(); err != nil {
		p.defect(DefectTruncatedIE, "element list truncated",
			zap.Stringer("bssid", r.BSSID), zap.Int("offset", it.Offset()), zap.Error(err))
	}
	return mbssid
}

func (p *Parser) applyVendor(r *Record, e ie.Element, v ie.Vendor) {
	switch v.Kind {
	case ie.VendorWPA:
		if len(v.Raw) > ie.MaxRSNLen {
			p.defect(DefectOversized, "wpa element dropped",
				zap.Stringer("bssid", r.BSSID), zap.Int("len", len(v.Raw)))
			return
		}
		r.WPA = bytes.Clone(v.Body)
	case ie.VendorWMM:
		if !v.WMMValid() {
			p.logger.Debug("wmm element ignored",
				zap.Stringer("bssid", r.BSSID), zap.Int("len", e.Len()))
			return
		}
		r.WMM = bytes.Clone(v.Raw)
	case ie.VendorWPS:
		info := v.WPS()
		r.WPS = true
		r.WPSSelectedRegistrar = info.SelectedRegistrar
		r.WPSSession = info.Session
	case ie.VendorOWETransition:
		t, err := v.OWE()
		if err != nil {
			p.defect(DefectBadLength, "owe transition element rejected",
				zap.Stringer("bssid", r.BSSID), zap.Error(err))
			return
		}
		r.OWEBSSID = MAC(t.BSSID)
		r.OWESSID = bytes.Clone(t.SSID)
		if r.Privacy {
			r.OWE = OWEOnly
		} else {
			r.OWE = OWEOpen
		}
	case ie.VendorMBO:
		r.MBOAssocDisallowed = v.MBOAssocDisallowed()
	case ie.VendorBroadcom:
		r.Broadcom = true
	case ie.VendorEpigram:
		r.Epigram = true
	default:
		if len(r.VendorIEs)+e.Len() <= ie.MaxVendorStash {
			r.VendorIEs = ie.Append(r.VendorIEs, e.ID, e.Data)
		}
	}
}

func appendCapped(dst, src []byte, limit int) []byte {
	room := limit - len(dst)
	if room <= 0 {
		return dst
	}
	if len(src) > room {
		src = src[:room]
	}
	return append(dst, src...)
}

// finish fills channel, band and frequency. Channel comes from the DS
// element and falls back to the firmware's report.
func finish(r *Record, radio models.RadioType, channel uint8) {
	if r.Channel == 0 {
		r.Channel = channel
	}
	r.Band = radio.Band()
	r.Frequency = chanlist.Frequency(r.Channel, r.Band)
}

// ParseLegacy decodes every descriptor of a legacy scan response. Defects
// in one descriptor skip only that descriptor; an inconsistent size prefix
// ends the response.
func (p *Parser) ParseLegacy(resp *fwcmd.ScanResponse) []*Record {
	var out []*Record
	buf := resp.Descriptors
	for idx := 0; idx < int(resp.NumSets) && len(buf) > 0; idx++ {
		recs, rest, err := p.ParseDescriptor(buf)
		if err != nil {
			p.defect(DefectMalformedFrame, "descriptor skipped", zap.Int("index", idx), zap.Error(err))
			if rest == nil {
				break
			}
			buf = rest
			continue
		}
		buf = rest

		radio, channel := models.RadioBG, uint8(0)
		if idx < len(resp.ChanBands) {
			radio, channel = resp.ChanBands[idx].Radio&0x03, resp.ChanBands[idx].Channel
		}
		for _, r := range recs {
			if idx < len(resp.TSF) {
				r.NetworkTSF = resp.TSF[idx]
			}
			finish(r, radio, channel)
		}
		out = append(out, recs...)
	}
	return out
}

// ParseReport decodes every entry of an extended scan report event.
func (p *Parser) ParseReport(rep *fwcmd.ScanReport) []*Record {
	var out []*Record
	for idx, entry := range rep.Entries {
		recs, err := p.ParseBody(entry.Descriptor, Extended)
		if err != nil {
			p.defect(DefectMalformedFrame, "report entry skipped", zap.Int("index", idx), zap.Error(err))
			continue
		}
		radio, channel := models.RadioBG, uint8(0)
		for _, r := range recs {
			if info := entry.Info; info != nil {
				r.RSSI = -info.RSSI
				r.NetworkTSF = info.TSF
				radio, channel = info.Radio, info.Channel
			}
			finish(r, radio, channel)
		}
		out = append(out, recs...)
	}
	return out
}
