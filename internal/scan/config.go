package scan

import (
	"fmt"
	"time"

	"github.com/HerbHall/wlanscan/internal/chanlist"
	"github.com/HerbHall/wlanscan/internal/compat"
	"github.com/HerbHall/wlanscan/internal/scantable"
	"github.com/HerbHall/wlanscan/pkg/models"
)

// Config holds the scan module configuration.
type Config struct {
	TableSize          int           `mapstructure:"table_size"`
	PassiveDwell       time.Duration `mapstructure:"passive_dwell"`
	ActiveDwell        time.Duration `mapstructure:"active_dwell"`
	SpecificDwell      time.Duration `mapstructure:"specific_dwell"`
	MaxChanPerScan     int           `mapstructure:"max_chan_per_scan"`
	MaxChanFiltered    int           `mapstructure:"max_chan_filtered"`
	MaxTotalScanTime   time.Duration `mapstructure:"max_total_scan_time"`
	Region             string        `mapstructure:"region"`
	WorldWide          bool          `mapstructure:"world_wide"`
	Bands              string        `mapstructure:"bands"`
	DefaultScanType    string        `mapstructure:"default_scan_type"`
	ExtScan            bool          `mapstructure:"ext_scan"`
	SkipDFS            bool          `mapstructure:"skip_dfs"`
	PassiveToActive    bool          `mapstructure:"passive_to_active"`
	SplitBeforeA       bool          `mapstructure:"split_before_a"`
	ChanGap            time.Duration `mapstructure:"chan_gap"`
	BackgroundScan     bool          `mapstructure:"background_scan"`
	BackgroundInterval time.Duration `mapstructure:"background_interval"`
	Radio              string        `mapstructure:"radio"`
	PcapFile           string        `mapstructure:"pcap_file"`
	Interface          string        `mapstructure:"interface"`
	Policy             PolicyConfig  `mapstructure:"policy"`
}

// PolicyConfig is the local security policy networks are classified
// against.
type PolicyConfig struct {
	Mode         string `mapstructure:"mode"`
	HTConfigured bool   `mapstructure:"ht_configured"`
	BSSMode      string `mapstructure:"bss_mode"`
	WPSSession   bool   `mapstructure:"wps_session"`
}

// DefaultBackgroundInterval is used when background scanning is enabled
// without an interval.
const DefaultBackgroundInterval = 30 * time.Second

// Radio backends.
const (
	RadioSim     = "sim"
	RadioPcap    = "pcap"
	RadioNL80211 = "nl80211"
)

// DefaultConfig returns the default configuration for the scan module.
func DefaultConfig() Config {
	return Config{
		TableSize:        scantable.DefaultCapacity,
		PassiveDwell:     100 * time.Millisecond,
		ActiveDwell:      100 * time.Millisecond,
		SpecificDwell:    110 * time.Millisecond,
		MaxChanPerScan:   4,
		MaxChanFiltered:  3,
		MaxTotalScanTime: 30 * time.Second,
		Region:           "US",
		Bands:            "bgn,an",
		DefaultScanType:  "active",
		ExtScan:          true,
		PassiveToActive:  true,
		SplitBeforeA:     true,
		Radio:            RadioSim,
		Policy: PolicyConfig{
			Mode:         "wpa2",
			HTConfigured: true,
			BSSMode:      "infra",
		},
	}
}

// backgroundInterval returns the period of background scans, zero when
// they are disabled.
func (c Config) backgroundInterval() time.Duration {
	if c.BackgroundInterval > 0 {
		return c.BackgroundInterval
	}
	if c.BackgroundScan {
		return DefaultBackgroundInterval
	}
	return 0
}

// builderConfig translates c into the channel list builder's settings.
func (c Config) builderConfig() (chanlist.Config, error) {
	bc := chanlist.DefaultConfig()
	region, err := chanlist.LookupRegion(c.Region)
	if err != nil {
		return bc, err
	}
	bands, err := models.ParseBands(c.Bands)
	if err != nil {
		return bc, fmt.Errorf("bands: %w", err)
	}
	typ, err := models.ParseScanType(c.DefaultScanType)
	if err != nil {
		return bc, err
	}
	if typ == models.ScanTypeUnchanged {
		typ = models.ScanTypeActive
	}
	bc.Region = region
	bc.WorldWide = c.WorldWide
	bc.Bands = bands
	bc.DefaultType = typ
	bc.PassiveDwell = c.PassiveDwell
	bc.ActiveDwell = c.ActiveDwell
	bc.SpecificDwell = c.SpecificDwell
	bc.SkipDFS = c.SkipDFS
	bc.PassiveToActive = c.PassiveToActive
	return bc, nil
}

// engineOptions translates c into engine options.
func (c Config) engineOptions() (Options, error) {
	mode, err := models.ParseBSSMode(c.Policy.BSSMode)
	if err != nil {
		return Options{}, err
	}
	return Options{
		TableSize:        c.TableSize,
		Ext:              c.ExtScan,
		MaxChanPerScan:   c.MaxChanPerScan,
		MaxChanFiltered:  c.MaxChanFiltered,
		MaxTotalScanTime: c.MaxTotalScanTime,
		ChanGap:          c.ChanGap,
		SplitBeforeA:     c.SplitBeforeA,
		WPSSession:       c.Policy.WPSSession,
		BSSMode:          mode,
	}, nil
}

// policy returns the compatibility policy. Without HT configured the
// 11n and later modes are masked off the band set.
func (c Config) policy() (compat.Policy, error) {
	sec, err := compat.ParseSecurity(c.Policy.Mode)
	if err != nil {
		return compat.Policy{}, err
	}
	mode, err := models.ParseBSSMode(c.Policy.BSSMode)
	if err != nil {
		return compat.Policy{}, err
	}
	bands, err := models.ParseBands(c.Bands)
	if err != nil {
		return compat.Policy{}, fmt.Errorf("bands: %w", err)
	}
	if !c.Policy.HTConfigured {
		bands &^= models.BandGN | models.BandAN
	}
	return compat.Policy{
		Security:   sec,
		BSSMode:    mode,
		Bands:      bands,
		WPSSession: c.Policy.WPSSession,
	}, nil
}
