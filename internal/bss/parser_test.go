package bss

import (
	"bytes"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/HerbHall/wlanscan/internal/fwcmd"
	"github.com/HerbHall/wlanscan/internal/ie"
	"github.com/HerbHall/wlanscan/internal/testutil"
	"github.com/HerbHall/wlanscan/pkg/models"
)

func newTestParser(defects *[]string) *Parser {
	p := NewParser(zap.NewNop())
	p.OnDefect = func(kind string) { *defects = append(*defects, kind) }
	return p
}

func TestParseDescriptor_Basic(t *testing.T) {
	var defects []string
	p := newTestParser(&defects)
	b := testutil.NewBeacon(testutil.WithRSSI(-61), testutil.WithChannel(11))

	recs, rest, err := p.ParseDescriptor(b.Descriptor())
	if err != nil {
		t.Fatalf("ParseDescriptor() error = %v", err)
	}
	if len(rest) != 0 {
		t.Errorf("rest = %d bytes, want 0", len(rest))
	}
	if len(recs) != 1 {
		t.Fatalf("len(recs) = %d, want 1", len(recs))
	}
	r := recs[0]
	if r.BSSID != MAC(b.BSSID) {
		t.Errorf("BSSID = %v, want %v", r.BSSID, MAC(b.BSSID))
	}
	if string(r.SSID) != "test-network" {
		t.Errorf("SSID = %q, want %q", r.SSID, "test-network")
	}
	if r.RSSI != -61 {
		t.Errorf("RSSI = %d, want -61", r.RSSI)
	}
	if r.Channel != 11 || r.BeaconPeriod != 100 || r.TSF != 1000 {
		t.Errorf("Channel=%d BeaconPeriod=%d TSF=%d", r.Channel, r.BeaconPeriod, r.TSF)
	}
	if r.Mode != models.BSSModeInfra || r.Privacy {
		t.Errorf("Mode=%v Privacy=%v, want infra/false", r.Mode, r.Privacy)
	}
	if len(defects) != 0 {
		t.Errorf("defects = %v, want none", defects)
	}
}

func TestParseDescriptor_RecordDoesNotAliasInput(t *testing.T) {
	p := NewParser(zap.NewNop())
	buf := testutil.NewBeacon().Descriptor()
	recs, _, err := p.ParseDescriptor(buf)
	if err != nil {
		t.Fatalf("ParseDescriptor() error = %v", err)
	}
	for i := range buf {
		buf[i] = 0
	}
	if string(recs[0].SSID) != "test-network" {
		t.Errorf("SSID after clobbering input = %q", recs[0].SSID)
	}
}

func TestParseDescriptor_Malformed(t *testing.T) {
	p := NewParser(zap.NewNop())
	tests := []struct {
		name     string
		in       []byte
		wantRest bool
	}{
		{"zero size", []byte{0, 0, 1, 2, 3}, false},
		{"size past end", []byte{50, 0, 1, 2, 3}, false},
		{"no prefix", []byte{1}, false},
		{"too short for fixed fields", append([]byte{4, 0, 1, 2, 3, 4}, 0xaa), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rest, err := p.ParseDescriptor(tt.in)
			if !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("ParseDescriptor() error = %v, want ErrMalformedFrame", err)
			}
			if (rest != nil) != tt.wantRest {
				t.Errorf("rest = %v, wantRest %v", rest, tt.wantRest)
			}
		})
	}
}

func TestParseBody_TruncatedElementsKeepPartial(t *testing.T) {
	var defects []string
	p := newTestParser(&defects)
	body := testutil.NewBeacon().Body()
	body = append(body, ie.IDRSN, 40, 1, 0) // claims 40 bytes, has 2

	recs, err := p.ParseBody(body, Extended)
	if err != nil {
		t.Fatalf("ParseBody() error = %v", err)
	}
	if string(recs[0].SSID) != "test-network" || recs[0].Channel != 6 {
		t.Errorf("partial record SSID=%q Channel=%d", recs[0].SSID, recs[0].Channel)
	}
	if recs[0].HasRSN() {
		t.Error("truncated RSN element was stored")
	}
	if len(defects) != 1 || defects[0] != DefectTruncatedIE {
		t.Errorf("defects = %v, want [%s]", defects, DefectTruncatedIE)
	}
}

func TestParseBody_Elements(t *testing.T) {
	tests := []struct {
		name  string
		opts  []func(*testutil.Beacon)
		check func(t *testing.T, r *Record)
	}{
		{
			name: "oversized ssid rejected, rest kept",
			opts: []func(*testutil.Beacon){
				testutil.WithSSID(""),
				testutil.WithElement(ie.IDSSID, bytes.Repeat([]byte{'x'}, 33)),
				testutil.WithElement(ie.IDTIM, []byte{0, 3, 0, 0}),
			},
			check: func(t *testing.T, r *Record) {
				if !r.IsHidden() {
					t.Errorf("SSID = %q, want hidden", r.SSID)
				}
				if r.DTIMPeriod != 3 {
					t.Errorf("DTIMPeriod = %d, want 3", r.DTIMPeriod)
				}
			},
		},
		{
			name: "rates capped",
			opts: []func(*testutil.Beacon){
				testutil.WithElement(ie.IDExtendedRates, []byte{1, 2, 3, 4, 5, 6, 7, 8}),
			},
			check: func(t *testing.T, r *Record) {
				if len(r.Rates) != MaxRates {
					t.Errorf("len(Rates) = %d, want %d", len(r.Rates), MaxRates)
				}
			},
		},
		{
			name: "oversized rsn dropped",
			opts: []func(*testutil.Beacon){
				testutil.WithElement(ie.IDRSN, make([]byte, ie.MaxRSNLen+1)),
			},
			check: func(t *testing.T, r *Record) {
				if r.HasRSN() {
					t.Error("oversized RSN stored")
				}
			},
		},
		{
			name: "rsn and ht kept",
			opts: []func(*testutil.Beacon){
				testutil.WithRSN(ie.CipherCCMP128, []ie.Suite{ie.CipherCCMP128}, ie.AKMPSK),
				testutil.WithHT(),
			},
			check: func(t *testing.T, r *Record) {
				sec, err := r.Security()
				if err != nil {
					t.Fatalf("Security() error = %v", err)
				}
				if !sec.HasAKM(ie.AKMPSK) || !r.HasHT() || !r.Privacy {
					t.Errorf("sec=%+v HT=%v Privacy=%v", sec, r.HasHT(), r.Privacy)
				}
			},
		},
		{
			name: "wpa vendor element",
			opts: []func(*testutil.Beacon){
				testutil.WithWPA(ie.CipherTKIP, []ie.Suite{ie.CipherTKIP}, ie.AKMPSK),
			},
			check: func(t *testing.T, r *Record) {
				sec, err := r.WPASecurity()
				if err != nil {
					t.Fatalf("WPASecurity() error = %v", err)
				}
				if !sec.HasPairwise(ie.CipherTKIP) {
					t.Errorf("WPA pairwise = %v, want TKIP", sec.PairwiseCiphers)
				}
			},
		},
		{
			name: "wmm wrong size ignored",
			opts: []func(*testutil.Beacon){
				func(b *testutil.Beacon) { b.Extra = ie.AppendVendor(b.Extra, ie.OUIMicrosoft, 2, []byte{0, 1, 0, 0}) },
			},
			check: func(t *testing.T, r *Record) {
				if r.WMM != nil {
					t.Errorf("WMM = %x, want nil", r.WMM)
				}
			},
		},
		{
			name: "wmm info element kept",
			opts: []func(*testutil.Beacon){
				func(b *testutil.Beacon) { b.Extra = ie.AppendVendor(b.Extra, ie.OUIMicrosoft, 2, []byte{0, 1, 0}) },
			},
			check: func(t *testing.T, r *Record) {
				if len(r.WMM) != ie.WMMInfoLen-ie.HeaderLen {
					t.Errorf("len(WMM) = %d, want %d", len(r.WMM), ie.WMMInfoLen-ie.HeaderLen)
				}
			},
		},
		{
			name: "owe transition on open bss",
			opts: []func(*testutil.Beacon){
				func(b *testutil.Beacon) {
					body := append([]byte{1, 2, 3, 4, 5, 6, 4}, "owe1"...)
					b.Extra = ie.AppendVendor(b.Extra, ie.OUIWFA, 0x1c, body)
				},
			},
			check: func(t *testing.T, r *Record) {
				if r.OWE != OWEOpen || string(r.OWESSID) != "owe1" {
					t.Errorf("OWE=%v OWESSID=%q", r.OWE, r.OWESSID)
				}
				if r.OWEBSSID != (MAC{1, 2, 3, 4, 5, 6}) {
					t.Errorf("OWEBSSID = %v", r.OWEBSSID)
				}
			},
		},
		{
			name: "mobility domain and 11k",
			opts: []func(*testutil.Beacon){
				testutil.WithElement(ie.IDMobilityDomain, []byte{0x34, 0x12, 0x01}),
				testutil.WithElement(ie.IDRMEnabledCaps, []byte{0x73, 0, 0, 0, 0}),
				testutil.WithElement(ie.IDExtCapabilities, []byte{0, 0, 0x08}),
			},
			check: func(t *testing.T, r *Record) {
				if !r.Supports11r() || !r.Supports11k() || !r.Supports11v() {
					t.Errorf("11r=%v 11k=%v 11v=%v", r.Supports11r(), r.Supports11k(), r.Supports11v())
				}
			},
		},
		{
			name: "vendor stash capped",
			opts: []func(*testutil.Beacon){
				func(b *testutil.Beacon) {
					for i := 0; i < 5; i++ {
						b.Extra = ie.AppendVendor(b.Extra, [3]byte{0xaa, 0xbb, byte(i)}, 1, make([]byte, 20))
					}
				},
			},
			check: func(t *testing.T, r *Record) {
				if len(r.VendorIEs) != 3*26 {
					t.Errorf("len(VendorIEs) = %d, want %d", len(r.VendorIEs), 3*26)
				}
			},
		},
		{
			name: "ibss",
			opts: []func(*testutil.Beacon){
				testutil.WithIBSS(),
				testutil.WithElement(ie.IDIBSSParamSet, []byte{0x0a, 0x00}),
			},
			check: func(t *testing.T, r *Record) {
				if r.Mode != models.BSSModeIBSS || r.ATIMWindow != 10 {
					t.Errorf("Mode=%v ATIMWindow=%d", r.Mode, r.ATIMWindow)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(zap.NewNop())
			recs, err := p.ParseBody(testutil.NewBeacon(tt.opts...).Body(), Extended)
			if err != nil {
				t.Fatalf("ParseBody() error = %v", err)
			}
			tt.check(t, recs[0])
		})
	}
}

func TestParseLegacy(t *testing.T) {
	var descs []byte
	a := testutil.NewBeacon(testutil.WithBSSID("00:00:00:00:00:01"), testutil.WithChannel(0))
	b := testutil.NewBeacon(testutil.WithBSSID("00:00:00:00:00:02"), testutil.WithChannel(36))
	descs = append(descs, a.Descriptor()...)
	descs = append(descs, 0x03, 0x00, 1, 2, 3) // short body, boundary intact
	descs = append(descs, b.Descriptor()...)

	resp := &fwcmd.ScanResponse{
		NumSets:     3,
		Descriptors: descs,
		TSF:         []uint64{11, 22, 33},
		ChanBands: []fwcmd.ChanBand{
			{Radio: models.RadioBG, Channel: 1},
			{Radio: models.RadioBG, Channel: 2},
			{Radio: models.RadioA, Channel: 36},
		},
	}
	p := NewParser(zap.NewNop())
	recs := p.ParseLegacy(resp)
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}
	if recs[0].Channel != 1 || recs[0].Band != models.BandG || recs[0].NetworkTSF != 11 {
		t.Errorf("recs[0] channel=%d band=%v tsf=%d", recs[0].Channel, recs[0].Band, recs[0].NetworkTSF)
	}
	if recs[0].Frequency != 2412 {
		t.Errorf("recs[0].Frequency = %d, want 2412", recs[0].Frequency)
	}
	if recs[1].Channel != 36 || recs[1].Band != models.BandA || recs[1].NetworkTSF != 33 {
		t.Errorf("recs[1] channel=%d band=%v tsf=%d", recs[1].Channel, recs[1].Band, recs[1].NetworkTSF)
	}
}

func TestParseLegacy_BadSizeStopsResponse(t *testing.T) {
	a := testutil.NewBeacon()
	descs := append([]byte{}, a.Descriptor()...)
	descs = append(descs, 0x00, 0x00) // zero size
	descs = append(descs, testutil.NewBeacon(testutil.WithBSSID("00:00:00:00:00:09")).Descriptor()...)

	p := NewParser(zap.NewNop())
	recs := p.ParseLegacy(&fwcmd.ScanResponse{NumSets: 3, Descriptors: descs})
	if len(recs) != 1 {
		t.Errorf("len(recs) = %d, want 1", len(recs))
	}
}

func TestParseReport(t *testing.T) {
	b := testutil.NewBeacon(testutil.WithChannel(0))
	rep := &fwcmd.ScanReport{Entries: []fwcmd.ReportEntry{
		{Descriptor: b.Body(), Info: &fwcmd.ScanInfo{RSSI: 70, Radio: models.RadioA, Channel: 149, TSF: 5}},
		{Descriptor: []byte{1, 2, 3}},
	}}
	p := NewParser(zap.NewNop())
	recs := p.ParseReport(rep)
	if len(recs) != 1 {
		t.Fatalf("len(recs) = %d, want 1", len(recs))
	}
	r := recs[0]
	if r.RSSI != -70 || r.Channel != 149 || r.Band != models.BandA || r.NetworkTSF != 5 {
		t.Errorf("record = rssi %d channel %d band %v tsf %d", r.RSSI, r.Channel, r.Band, r.NetworkTSF)
	}
	if r.Frequency != 5745 {
		t.Errorf("Frequency = %d, want 5745", r.Frequency)
	}
}

func TestParseMAC(t *testing.T) {
	m, err := ParseMAC("aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("ParseMAC() error = %v", err)
	}
	if m.String() != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("String() = %q", m.String())
	}
	if _, err := ParseMAC("not-a-mac"); err == nil {
		t.Error("ParseMAC(not-a-mac) error = nil")
	}
	if _, err := ParseMAC("00:00:00:00:fe:80:00:00:00:00:00:00:00:00:00:00:00:00:00:00"); err == nil {
		t.Error("ParseMAC(20 bytes) error = nil")
	}
}
