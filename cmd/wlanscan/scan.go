package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/HerbHall/wlanscan/internal/config"
	"github.com/HerbHall/wlanscan/internal/scan"
	"github.com/HerbHall/wlanscan/pkg/models"
	"github.com/HerbHall/wlanscan/pkg/plugin"
	"go.uber.org/zap"
)

// scanResult is the -json output of the scan subcommand.
type scanResult struct {
	Session  models.SessionSummary   `json:"session"`
	Networks []models.NetworkSummary `json:"networks"`
}

// runScan runs one scan session with the configured radio and prints the
// resulting network table. It returns the process exit code.
func runScan(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "path to configuration file")
	ssids := fs.String("ssid", "", "comma separated SSIDs to probe for")
	channels := fs.String("channels", "", "comma separated channels, e.g. 1,6,36 (default: every allowed channel)")
	passive := fs.Bool("passive", false, "listen only, never send probe requests")
	bssid := fs.String("bssid", "", "restrict the scan to one BSSID")
	keep := fs.Bool("keep", false, "keep the table of an earlier session (no effect on a fresh process)")
	compatible := fs.Bool("compatible", false, "only list networks the local policy accepts")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	timeout := fs.Duration("timeout", time.Minute, "give up after this long")
	verbose := fs.Bool("v", false, "log to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	req, err := buildRequest(*ssids, *channels, *bssid, *passive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wlanscan scan: %v\n", err)
		return 2
	}
	req.KeepPrevious = *keep

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	res, err := scanOnce(ctx, *configPath, req, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wlanscan scan: %v\n", err)
		return 1
	}
	if *compatible {
		kept := res.Networks[:0]
		for _, n := range res.Networks {
			if n.Compatible {
				kept = append(kept, n)
			}
		}
		res.Networks = kept
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return 1
		}
		return 0
	}
	printTable(out, res.Networks)
	return 0
}

func buildRequest(ssids, channels, bssid string, passive bool) (scan.Request, error) {
	var sr scan.ScanRequest
	for _, s := range splitList(ssids) {
		sr.SSIDs = append(sr.SSIDs, scan.SSIDFilterRequest{SSID: s})
	}
	for _, c := range splitList(channels) {
		n, err := strconv.ParseUint(c, 10, 8)
		if err != nil {
			return scan.Request{}, fmt.Errorf("bad channel %q", c)
		}
		cr := scan.ChannelRequest{Channel: uint8(n)}
		if passive {
			cr.ScanType = "passive"
		}
		sr.Channels = append(sr.Channels, cr)
	}
	if passive && len(sr.Channels) == 0 {
		sr.Channels = []scan.ChannelRequest{
			{Band: "bg", ScanType: "passive"},
			{Band: "a", ScanType: "passive"},
		}
	}
	sr.BSSID = bssid
	return sr.Request()
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// scanOnce initializes a standalone scan module, runs one session and
// returns its summary and the network table.
func scanOnce(ctx context.Context, configPath string, req scan.Request, verbose bool) (*scanResult, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := zap.NewNop()
	if verbose {
		if logger, err = config.NewLogger(cfg.Viper()); err != nil {
			return nil, err
		}
		defer func() { _ = logger.Sync() }()
	}

	m := scan.New()
	if err := m.Init(ctx, plugin.Dependencies{
		Config: cfg.Sub("plugins.scan"),
		Logger: logger.Named("scan"),
	}); err != nil {
		return nil, err
	}
	defer func() { _ = m.Stop(context.Background()) }()

	s, err := m.Engine().Scan(ctx, req)
	if s == nil {
		return nil, err
	}
	if err != nil && !errors.Is(err, scan.ErrAborted) {
		return nil, err
	}

	nets, _ := m.Networks(ctx)
	sort.SliceStable(nets, func(i, j int) bool { return nets[i].RSSI > nets[j].RSSI })
	return &scanResult{
		Session:  s.Summary(m.Engine().Table().Len()),
		Networks: nets,
	}, nil
}

func printTable(out io.Writer, nets []models.NetworkSummary) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BSSID\tSSID\tCH\tBAND\tRSSI\tSECURITY\tCOMPATIBLE\tVENDOR")
	for _, n := range nets {
		ssid := n.SSID
		if n.Hidden {
			ssid = "<hidden>"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\t%t\t%s\n",
			n.BSSID, ssid, n.Channel, n.Band, n.RSSI, n.Security, n.Compatible, n.Vendor)
	}
	_ = tw.Flush()
}
