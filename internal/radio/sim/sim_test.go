package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/wlanscan/internal/fwcmd"
	"github.com/HerbHall/wlanscan/pkg/models"
)

func testAPs() []AP {
	return []AP{
		{BSSID: [6]byte{2, 0, 0, 0, 0, 1}, SSID: []byte("home"), Channel: 1, RSSI: -40},
		{BSSID: [6]byte{2, 0, 0, 0, 0, 2}, SSID: []byte("cafe"), Channel: 6, RSSI: -60},
		{BSSID: [6]byte{2, 0, 0, 0, 0, 3}, SSID: []byte("lab"), Channel: 36, Radio: models.RadioA, RSSI: -55},
		{BSSID: [6]byte{2, 0, 0, 0, 0, 4}, SSID: []byte("secret"), Channel: 6, RSSI: -70, HideSSID: true},
	}
}

func scanCmd(ext bool, mode fwcmd.ChanScanMode, ssids []fwcmd.SSIDFilter, chans ...uint8) *fwcmd.ScanCommand {
	cmd := &fwcmd.ScanCommand{Ext: ext, BSSMode: 1, SSIDs: ssids}
	for _, ch := range chans {
		radio := models.RadioBG
		if ch > 14 {
			radio = models.RadioA
		}
		cmd.Channels = append(cmd.Channels, fwcmd.ChanScanParam{Radio: radio, Channel: ch, Mode: mode, MinTime: 100, MaxTime: 100})
	}
	return cmd
}

func TestLegacyResponse(t *testing.T) {
	f := New(Options{ChanStats: true}, zap.NewNop())
	f.SetAPs(testAPs())

	resp, err := f.Issue(context.Background(), scanCmd(false, 0, nil, 1, 6).Encode(7))
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	sr, err := fwcmd.DecodeScanResponse(resp, 7)
	if err != nil {
		t.Fatalf("DecodeScanResponse() error = %v", err)
	}
	if sr.NumSets != 3 {
		t.Errorf("NumSets = %d, want 3", sr.NumSets)
	}
	if len(sr.TSF) != 3 || len(sr.ChanBands) != 3 {
		t.Errorf("TSF/ChanBands = %d/%d, want 3/3", len(sr.TSF), len(sr.ChanBands))
	}
	if len(sr.ChanStats) != 2 {
		t.Fatalf("ChanStats = %d, want 2", len(sr.ChanStats))
	}
	if sr.ChanStats[1].TotalNetworks != 2 {
		t.Errorf("channel 6 TotalNetworks = %d, want 2", sr.ChanStats[1].TotalNetworks)
	}
	if got := len(f.Commands()); got != 1 {
		t.Errorf("Commands() = %d, want 1", got)
	}
}

func TestExtReportsChunked(t *testing.T) {
	f := New(Options{PerEvent: 1}, zap.NewNop())
	f.SetAPs(testAPs())
	ctx := context.Background()

	resp, err := f.Issue(ctx, scanCmd(true, 0, nil, 1, 6, 36).Encode(3))
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := fwcmd.CheckResponse(resp, fwcmd.CmdScanExt, 3); err != nil {
		t.Fatalf("CheckResponse() error = %v", err)
	}

	var entries int
	for i := 0; ; i++ {
		ev, err := f.NextEvent(ctx)
		if err != nil {
			t.Fatalf("NextEvent() error = %v", err)
		}
		rep, err := fwcmd.DecodeScanReport(ev)
		if err != nil {
			t.Fatalf("DecodeScanReport() error = %v", err)
		}
		entries += len(rep.Entries)
		if !rep.MoreEvent {
			if i != 3 {
				t.Errorf("last event index = %d, want 3", i)
			}
			break
		}
	}
	if entries != 4 {
		t.Errorf("entries = %d, want 4", entries)
	}
}

func TestHiddenRevealedOnlyToActiveProbe(t *testing.T) {
	hidden := testAPs()[3]
	probe := []fwcmd.SSIDFilter{{SSID: []byte("secret")}}
	passive := fwcmd.ModePassive | fwcmd.ModeHiddenSSIDReport

	tests := []struct {
		name string
		cmd  *fwcmd.ScanCommand
		want bool
	}{
		{"active with name", scanCmd(true, 0, probe, 6), true},
		{"active wildcard", scanCmd(true, 0, nil, 6), false},
		{"passive with name", scanCmd(true, passive, probe, 6), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := match(tt.cmd, []AP{hidden})
			if len(hits) != 1 {
				t.Fatalf("match() = %d hits, want 1", len(hits))
			}
			if hits[0].reveal != tt.want {
				t.Errorf("reveal = %v, want %v", hits[0].reveal, tt.want)
			}
		})
	}
}

func TestBSSIDFilter(t *testing.T) {
	cmd := scanCmd(true, 0, nil, 1, 6)
	cmd.BSSID = [6]byte{2, 0, 0, 0, 0, 2}
	hits := match(cmd, testAPs())
	if len(hits) != 1 || hits[0].ap.BSSID != cmd.BSSID {
		t.Errorf("match() = %v, want only %x", hits, cmd.BSSID)
	}
}

func TestFailOn(t *testing.T) {
	f := New(Options{}, zap.NewNop())
	boom := errors.New("bus reset")
	f.FailOn(func(n int, _ *fwcmd.ScanCommand) error {
		if n == 1 {
			return boom
		}
		return nil
	})
	ctx := context.Background()
	if _, err := f.Issue(ctx, scanCmd(false, 0, nil, 1).Encode(1)); err != nil {
		t.Fatalf("first Issue() error = %v", err)
	}
	if _, err := f.Issue(ctx, scanCmd(false, 0, nil, 6).Encode(2)); !errors.Is(err, boom) {
		t.Errorf("second Issue() error = %v, want %v", err, boom)
	}
}

func TestNextEventHonoursContextAndClose(t *testing.T) {
	f := New(Options{}, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.NextEvent(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("NextEvent() error = %v, want deadline exceeded", err)
	}
	_ = f.Close()
	if _, err := f.NextEvent(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("NextEvent() after Close error = %v, want ErrClosed", err)
	}
}
