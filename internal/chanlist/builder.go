// Package chanlist turns a scan request into the ordered list of channels
// the firmware should visit, each with its scan type and dwell time.
package chanlist

import (
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/wlanscan/internal/fwcmd"
	"github.com/HerbHall/wlanscan/pkg/models"
	"go.uber.org/zap"
)

// ErrBandUnsupported is returned when a request names a 5 GHz channel and
// the firmware has no 5 GHz support.
var ErrBandUnsupported = errors.New("chanlist: band not supported by firmware")

// MinPassiveToActiveDwell is the dwell floor for passive-to-active channels.
const MinPassiveToActiveDwell = 150 * time.Millisecond

// MaxChannels caps the length of a built list.
const MaxChannels = 50

// Descriptor is one channel to scan.
type Descriptor struct {
	Radio   models.RadioType
	Channel uint8
	Type    models.ScanType
	Dwell   time.Duration
}

// Band returns the base band of the descriptor's radio.
func (d Descriptor) Band() models.Band { return d.Radio.Band() }

// Passive reports whether the channel starts with listening.
func (d Descriptor) Passive() bool {
	return d.Type == models.ScanTypePassive || d.Type == models.ScanTypePassiveToActive
}

// Param encodes the descriptor as a firmware channel entry.
func (d Descriptor) Param() fwcmd.ChanScanParam {
	var mode fwcmd.ChanScanMode
	if d.Passive() {
		mode |= fwcmd.ModePassive | fwcmd.ModeHiddenSSIDReport
	}
	if d.Type == models.ScanTypePassiveToActive {
		mode |= fwcmd.ModePassiveToActive
	}
	ms := uint16(min(d.Dwell.Milliseconds(), 0xffff))
	return fwcmd.ChanScanParam{
		Radio:   d.Radio,
		Channel: d.Channel,
		Mode:    mode,
		MinTime: ms,
		MaxTime: ms,
	}
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s/%d %s %s", d.Radio, d.Channel, d.Type, d.Dwell)
}

// Config is the adapter state the builder consults.
type Config struct {
	Region Region
	// WorldWide selects the world-wide safe table in place of Region, as
	// done before 11d has learned a country while not connected.
	WorldWide bool
	// Bands is the configured band mask; FirmwareBands is what the radio
	// can do.
	Bands         models.Band
	FirmwareBands models.Band
	// DefaultType is the adapter scan type, active or passive.
	DefaultType     models.ScanType
	PassiveDwell    time.Duration
	ActiveDwell     time.Duration
	SpecificDwell   time.Duration
	SkipDFS         bool
	PassiveToActive bool
}

// DefaultConfig returns the US defaults with 100/100/110ms dwell times.
func DefaultConfig() Config {
	us, _ := LookupRegion("US")
	return Config{
		Region:          us,
		Bands:           models.BandB | models.BandG | models.BandGN | models.BandA | models.BandAN,
		FirmwareBands:   models.Band2GHz | models.Band5GHz,
		DefaultType:     models.ScanTypeActive,
		PassiveDwell:    100 * time.Millisecond,
		ActiveDwell:     100 * time.Millisecond,
		SpecificDwell:   110 * time.Millisecond,
		PassiveToActive: true,
	}
}

// ChannelRequest is one caller-supplied channel. A zero Channel with
// BandSpecified set asks for every channel of that radio's band.
type ChannelRequest struct {
	Radio         models.RadioType
	Channel       uint8
	Type          models.ScanType
	ScanTime      time.Duration
	BandSpecified bool
}

// Request is the part of a scan request the builder needs.
type Request struct {
	Channels []ChannelRequest
	// Filtered is set when the scan carries an SSID or BSSID filter.
	Filtered bool
	// ScanTime, when non-zero, is the dwell for every channel.
	ScanTime time.Duration
	// ActiveRescan suppresses the passive downgrade of restricted channels.
	ActiveRescan bool
}

// Builder builds channel lists for one adapter configuration.
type Builder struct {
	cfg    Config
	logger *zap.Logger
}

// NewBuilder returns a builder over cfg.
func NewBuilder(cfg Config, logger *zap.Logger) *Builder {
	return &Builder{cfg: cfg, logger: logger}
}

// Config returns the builder's configuration.
func (b *Builder) Config() Config { return b.cfg }

func (b *Builder) region() Region {
	if b.cfg.WorldWide {
		return WorldWide()
	}
	return b.cfg.Region
}

// Build returns the ordered channel list for req. Explicit channels are
// kept in request order; otherwise the region table is walked, 2.4 GHz
// first.
func (b *Builder) Build(req Request) ([]Descriptor, error) {
	if len(req.Channels) > 0 && req.Channels[0].Channel != 0 {
		return b.explicit(req)
	}
	return b.sweep(req), nil
}

func (b *Builder) explicit(req Request) ([]Descriptor, error) {
	reg := b.region()
	out := make([]Descriptor, 0, len(req.Channels))
	for _, c := range req.Channels {
		if c.Channel == 0 || len(out) == MaxChannels {
			break
		}
		if !b.cfg.Bands.Compatible(c.Radio.Band()) {
			b.logger.Debug("skipping channel outside configured bands",
				zap.Uint8("channel", c.Channel), zap.Stringer("radio", c.Radio))
			continue
		}
		if c.Radio == models.RadioA && !b.cfg.FirmwareBands.Is5GHz() {
			return nil, fmt.Errorf("channel %d: %w", c.Channel, ErrBandUnsupported)
		}

		typ := c.Type
		if typ == models.ScanTypeUnchanged {
			typ = b.cfg.DefaultType
		}
		if !req.ActiveRescan {
			restricted := false
			if e, ok := reg.Lookup(c.Radio, c.Channel); ok {
				restricted = e.Restricted
			}
			switch {
			case restricted && c.Radio == models.RadioA:
				if b.cfg.SkipDFS {
					continue
				}
				typ = b.dfsType()
			case restricted:
				typ = models.ScanTypePassive
			}
		}

		scanTime := c.ScanTime
		if req.ScanTime > 0 {
			scanTime = req.ScanTime
		}
		out = append(out, b.descriptor(c.Radio, c.Channel, typ, scanTime, req.Filtered))
	}
	return out, nil
}

func (b *Builder) sweep(req Request) []Descriptor {
	reg := b.region()
	scanTime := req.ScanTime
	var only *models.RadioType
	if len(req.Channels) > 0 && req.Channels[0].BandSpecified {
		r := req.Channels[0].Radio
		only = &r
		if scanTime == 0 {
			scanTime = req.Channels[0].ScanTime
		}
	}

	var out []Descriptor
	for _, radio := range []models.RadioType{models.RadioBG, models.RadioA} {
		if only != nil && *only != radio {
			continue
		}
		if !b.cfg.Bands.Compatible(radio.Band()) {
			continue
		}
		if radio == models.RadioA && !b.cfg.FirmwareBands.Is5GHz() {
			continue
		}
		table := reg.BG
		if radio == models.RadioA {
			table = reg.A
		}
		for _, ch := range table {
			if len(out) == MaxChannels {
				return out
			}
			typ := b.cfg.DefaultType
			if ch.Restricted {
				if radio == models.RadioA {
					if b.cfg.SkipDFS {
						continue
					}
					typ = b.dfsType()
				} else {
					typ = models.ScanTypePassive
				}
			}
			out = append(out, b.descriptor(radio, ch.Number, typ, scanTime, req.Filtered))
		}
	}
	return out
}

func (b *Builder) dfsType() models.ScanType {
	if b.cfg.PassiveToActive {
		return models.ScanTypePassiveToActive
	}
	return models.ScanTypePassive
}

// descriptor applies the dwell rule: an explicit scan time wins, then the
// passive dwell for any listening channel, then the specific dwell for a
// filtered scan, then the active dwell. Passive-to-active channels never
// dwell less than MinPassiveToActiveDwell.
func (b *Builder) descriptor(radio models.RadioType, ch uint8, typ models.ScanType, scanTime time.Duration, filtered bool) Descriptor {
	d := Descriptor{Radio: radio, Channel: ch, Type: typ}
	switch {
	case scanTime > 0:
		d.Dwell = scanTime
	case d.Passive():
		d.Dwell = b.cfg.PassiveDwell
	case filtered:
		d.Dwell = b.cfg.SpecificDwell
	default:
		d.Dwell = b.cfg.ActiveDwell
	}
	if typ == models.ScanTypePassiveToActive {
		d.Dwell = max(d.Dwell, MinPassiveToActiveDwell)
	}
	return d
}

// IsRestricted reports whether the active region forces passive scanning
// on a channel: radar detection at 5 GHz or a no-probe channel at 2.4 GHz.
func (b *Builder) IsRestricted(radio models.RadioType, ch uint8) bool {
	e, ok := b.region().Lookup(radio, ch)
	return ok && e.Restricted
}

// IsValid reports whether the active region lists the channel.
func (b *Builder) IsValid(radio models.RadioType, ch uint8) bool {
	_, ok := b.region().Lookup(radio, ch)
	return ok
}
