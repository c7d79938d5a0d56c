package compat

import (
	"testing"

	"go.uber.org/zap"

	"github.com/HerbHall/wlanscan/internal/bss"
	"github.com/HerbHall/wlanscan/internal/ie"
	"github.com/HerbHall/wlanscan/internal/testutil"
	"github.com/HerbHall/wlanscan/pkg/models"
)

func parse(t *testing.T, opts ...func(*testutil.Beacon)) *bss.Record {
	t.Helper()
	recs, err := bss.NewParser(zap.NewNop()).ParseBody(testutil.NewBeacon(opts...).Body(), bss.Extended)
	if err != nil {
		t.Fatalf("ParseBody() error = %v", err)
	}
	return recs[0]
}

var (
	ccmp = []ie.Suite{ie.CipherCCMP128}
	tkip = []ie.Suite{ie.CipherTKIP}
	wep  = []ie.Suite{ie.CipherWEP40}
)

func TestClassify(t *testing.T) {
	infraHT := Policy{BSSMode: models.BSSModeInfra, Bands: models.BandG | models.BandGN}

	tests := []struct {
		name    string
		beacon  []func(*testutil.Beacon)
		policy  func(Policy) Policy
		want    bool
		want11n bool
		wantWhy string
	}{
		{
			name:    "open network, no security",
			policy:  func(p Policy) Policy { return p },
			want:    true,
			wantWhy: "open",
		},
		{
			name:    "no security required but network is protected",
			beacon:  []func(*testutil.Beacon){testutil.WithRSN(ie.CipherCCMP128, ccmp, ie.AKMPSK)},
			policy:  func(p Policy) Policy { return p },
			want:    false,
			wantWhy: ReasonSecurityMismatch,
		},
		{
			name:    "wpa2 required, rsn tkip only, ht configured",
			beacon:  []func(*testutil.Beacon){testutil.WithRSN(ie.CipherTKIP, tkip, ie.AKMPSK), testutil.WithHT()},
			policy:  func(p Policy) Policy { p.Security = SecurityWPA2; return p },
			want:    true,
			want11n: true,
		},
		{
			name:   "wpa2 required, rsn ccmp",
			beacon: []func(*testutil.Beacon){testutil.WithRSN(ie.CipherCCMP128, ccmp, ie.AKMPSK), testutil.WithHT()},
			policy: func(p Policy) Policy { p.Security = SecurityWPA2; return p },
			want:   true,
		},
		{
			name:    "wpa2 required, neither ccmp nor tkip",
			beacon:  []func(*testutil.Beacon){testutil.WithRSN(ie.CipherWEP40, wep, ie.AKMPSK), testutil.WithHT()},
			policy:  func(p Policy) Policy { p.Security = SecurityWPA2; return p },
			want:    false,
			wantWhy: ReasonNoCipher,
		},
		{
			name:   "wpa2 tkip without ht capability keeps 11n",
			beacon: []func(*testutil.Beacon){testutil.WithRSN(ie.CipherTKIP, tkip, ie.AKMPSK)},
			policy: func(p Policy) Policy { p.Security = SecurityWPA2; return p },
			want:   true,
		},
		{
			name:   "wpa2 tkip with ht off in config keeps 11n",
			beacon: []func(*testutil.Beacon){testutil.WithRSN(ie.CipherTKIP, tkip, ie.AKMPSK), testutil.WithHT()},
			policy: func(p Policy) Policy { p.Security = SecurityWPA2; p.Bands = models.BandG; return p },
			want:   true,
		},
		{
			name:    "wpa required, wpa tkip",
			beacon:  []func(*testutil.Beacon){testutil.WithWPA(ie.CipherTKIP, tkip, ie.AKMPSK), testutil.WithHT()},
			policy:  func(p Policy) Policy { p.Security = SecurityWPA; return p },
			want:    true,
			want11n: true,
		},
		{
			name:    "wpa required, only rsn present",
			beacon:  []func(*testutil.Beacon){testutil.WithRSN(ie.CipherCCMP128, ccmp, ie.AKMPSK)},
			policy:  func(p Policy) Policy { p.Security = SecurityWPA; return p },
			want:    false,
			wantWhy: ReasonSecurityMismatch,
		},
		{
			name:    "static wep disables 11n",
			beacon:  []func(*testutil.Beacon){testutil.WithPrivacy()},
			policy:  func(p Policy) Policy { p.Security = SecurityStaticWEP; return p },
			want:    true,
			want11n: true,
		},
		{
			name:   "dynamic wep",
			beacon: []func(*testutil.Beacon){testutil.WithPrivacy()},
			policy: func(p Policy) Policy { p.Security = SecurityDynamicWEP; return p },
			want:   true,
		},
		{
			name:   "ewpa accepts wpa or rsn",
			beacon: []func(*testutil.Beacon){testutil.WithWPA(ie.CipherTKIP, ccmp, ie.AKMPSK)},
			policy: func(p Policy) Policy { p.Security = SecurityEWPA; return p },
			want:   true,
		},
		{
			name:    "ewpa rejects wep",
			beacon:  []func(*testutil.Beacon){testutil.WithPrivacy()},
			policy:  func(p Policy) Policy { p.Security = SecurityEWPA; return p },
			want:    false,
			wantWhy: ReasonNotWPA,
		},
		{
			name:    "mode mismatch",
			beacon:  []func(*testutil.Beacon){testutil.WithIBSS()},
			policy:  func(p Policy) Policy { return p },
			want:    false,
			wantWhy: ReasonModeMismatch,
		},
		{
			name:   "auto mode accepts ibss",
			beacon: []func(*testutil.Beacon){testutil.WithIBSS()},
			policy: func(p Policy) Policy { p.BSSMode = models.BSSModeAuto; return p },
			want:   true,
		},
		{
			name:    "connected short-circuits",
			beacon:  []func(*testutil.Beacon){testutil.WithPrivacy()},
			policy:  func(p Policy) Policy { p.Connected = true; return p },
			want:    true,
			wantWhy: ReasonConnected,
		},
		{
			name:    "wps session accepts anything",
			beacon:  []func(*testutil.Beacon){testutil.WithRSN(ie.CipherCCMP128, ccmp, ie.AKMSAE)},
			policy:  func(p Policy) Policy { p.WPSSession = true; return p },
			want:    true,
			wantWhy: ReasonWPSSession,
		},
		{
			name:    "vht without ht disables 11n",
			beacon:  []func(*testutil.Beacon){testutil.WithElement(ie.IDVHTCapabilities, make([]byte, 12))},
			policy:  func(p Policy) Policy { return p },
			want:    true,
			want11n: true,
		},
		{
			name: "owe transition open half",
			beacon: []func(*testutil.Beacon){func(b *testutil.Beacon) {
				b.Extra = ie.AppendVendor(b.Extra, ie.OUIWFA, 0x1c, append([]byte{1, 2, 3, 4, 5, 6, 1}, 'o'))
			}},
			policy:  func(p Policy) Policy { p.Security = SecurityWPA2; return p },
			want:    true,
			wantWhy: ReasonOWETransition,
		},
		{
			name:   "owe policy needs owe akm",
			beacon: []func(*testutil.Beacon){testutil.WithRSN(ie.CipherCCMP128, ccmp, ie.AKMOWE)},
			policy: func(p Policy) Policy { p.Security = SecurityOWE; return p },
			want:   true,
		},
		{
			name:   "wapi",
			beacon: []func(*testutil.Beacon){testutil.WithElement(ie.IDWAPI, []byte{1, 0}), testutil.WithIBSS()},
			policy: func(p Policy) Policy { p.Security = SecurityWAPI; return p },
			want:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := parse(t, tt.beacon...)
			got := Classify(r, tt.policy(infraHT))
			if got.Compatible != tt.want || got.Disable11n != tt.want11n {
				t.Errorf("Classify() = %+v, want compatible=%v disable11n=%v", got, tt.want, tt.want11n)
			}
			if tt.wantWhy != "" && got.Reason != tt.wantWhy {
				t.Errorf("Classify().Reason = %q, want %q", got.Reason, tt.wantWhy)
			}
		})
	}
}

func TestApply_SetsDisable11n(t *testing.T) {
	r := parse(t, testutil.WithPrivacy())
	Apply(r, Policy{Security: SecurityStaticWEP, BSSMode: models.BSSModeInfra})
	if !r.Disable11n {
		t.Error("Apply() did not set Disable11n")
	}
	Apply(r, Policy{Security: SecurityDynamicWEP, BSSMode: models.BSSModeInfra})
	if r.Disable11n {
		t.Error("Apply() did not clear Disable11n")
	}
}

func TestParseSecurity(t *testing.T) {
	for s, name := range securityNames {
		got, err := ParseSecurity(name)
		if err != nil || got != s {
			t.Errorf("ParseSecurity(%q) = %v, %v, want %v", name, got, err, s)
		}
	}
	if got, err := ParseSecurity(""); err != nil || got != SecurityNone {
		t.Errorf("ParseSecurity(\"\") = %v, %v", got, err)
	}
	if _, err := ParseSecurity("wpa4"); err == nil {
		t.Error("ParseSecurity(wpa4) error = nil")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name   string
		beacon []func(*testutil.Beacon)
		want   string
	}{
		{"open", nil, "Open"},
		{"wep", []func(*testutil.Beacon){testutil.WithPrivacy()}, "WEP"},
		{"wpa", []func(*testutil.Beacon){testutil.WithWPA(ie.CipherTKIP, tkip, ie.AKMPSK)}, "WPA"},
		{"wpa2", []func(*testutil.Beacon){testutil.WithRSN(ie.CipherCCMP128, ccmp, ie.AKMPSK)}, "WPA2"},
		{"wpa3", []func(*testutil.Beacon){testutil.WithRSN(ie.CipherCCMP128, ccmp, ie.AKMSAE)}, "WPA3"},
		{"transition", []func(*testutil.Beacon){testutil.WithRSN(ie.CipherCCMP128, ccmp, ie.AKMPSK, ie.AKMSAE)}, "WPA2/WPA3"},
		{"owe", []func(*testutil.Beacon){testutil.WithRSN(ie.CipherCCMP128, ccmp, ie.AKMOWE)}, "OWE"},
		{"wapi", []func(*testutil.Beacon){testutil.WithElement(ie.IDWAPI, []byte{1, 0})}, "WAPI"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(parse(t, tt.beacon...)); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}
