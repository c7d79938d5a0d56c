// Package pcapreplay turns a radiotap capture of beacons and probe
// responses into virtual access points for the firmware emulator, so that
// a recorded neighbourhood can be scanned again offline.
package pcapreplay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"go.uber.org/zap"

	"github.com/HerbHall/wlanscan/internal/chanlist"
	"github.com/HerbHall/wlanscan/internal/ie"
	"github.com/HerbHall/wlanscan/internal/radio/sim"
	"github.com/HerbHall/wlanscan/pkg/models"
)

// ErrUnsupportedLinkType is returned for captures that carry neither
// radiotap nor bare 802.11 frames.
var ErrUnsupportedLinkType = errors.New("pcapreplay: capture is not 802.11")

// noSignal is used when the capture carries no antenna signal.
const noSignal = -90

type packetReader interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// LoadFile reads a pcap or pcapng file.
func LoadFile(path string, logger *zap.Logger) ([]sim.AP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	return Load(bytes.NewReader(data), logger)
}

// Load reads a pcap or pcapng stream and returns one AP per BSSID, in the
// order they were first heard.
func Load(r io.ReadSeeker, logger *zap.Logger) ([]sim.AP, error) {
	src, err := open(r)
	if err != nil {
		return nil, err
	}
	lt := src.LinkType()
	if lt != layers.LinkTypeIEEE80211Radio && lt != layers.LinkTypeIEEE802_11 {
		return nil, fmt.Errorf("link type %s: %w", lt, ErrUnsupportedLinkType)
	}

	c := newCollector(logger)
	for {
		data, _, err := src.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read packet: %w", err)
		}
		c.add(gopacket.NewPacket(data, lt, gopacket.NoCopy))
	}
	logger.Info("capture loaded",
		zap.Int("frames", c.frames), zap.Int("access_points", len(c.order)))
	return c.aps(), nil
}

func open(r io.ReadSeeker) (packetReader, error) {
	pr, err := pcapgo.NewReader(r)
	if err == nil {
		return pr, nil
	}
	if _, serr := r.Seek(0, io.SeekStart); serr != nil {
		return nil, serr
	}
	ng, ngErr := pcapgo.NewNgReader(r, pcapgo.DefaultNgReaderOptions)
	if ngErr != nil {
		return nil, fmt.Errorf("not a pcap (%v) or pcapng (%w) capture", err, ngErr)
	}
	return ng, nil
}

type collector struct {
	logger *zap.Logger
	byMAC  map[[6]byte]*sim.AP
	order  [][6]byte
	frames int
}

func newCollector(logger *zap.Logger) *collector {
	return &collector{logger: logger, byMAC: make(map[[6]byte]*sim.AP)}
}

// frame is the part of a beacon or probe response the emulator needs.
type frame struct {
	bssid    [6]byte
	tsf      uint64
	interval uint16
	capab    uint16
	elements []byte
	probe    bool
}

func (c *collector) add(pkt gopacket.Packet) {
	d11, ok := pkt.Layer(layers.LayerTypeDot11).(*layers.Dot11)
	if !ok {
		return
	}
	var f frame
	switch d11.Type {
	case layers.Dot11TypeMgmtBeacon:
		b, ok := pkt.Layer(layers.LayerTypeDot11MgmtBeacon).(*layers.Dot11MgmtBeacon)
		if !ok {
			return
		}
		f = frame{tsf: b.Timestamp, interval: b.Interval, capab: b.Flags, elements: b.Payload}
	case layers.Dot11TypeMgmtProbeResp:
		p, ok := pkt.Layer(layers.LayerTypeDot11MgmtProbeResp).(*layers.Dot11MgmtProbeResp)
		if !ok {
			return
		}
		f = frame{tsf: p.Timestamp, interval: p.Interval, capab: p.Flags, elements: p.Payload, probe: true}
	default:
		return
	}
	if len(d11.Address3) != 6 {
		return
	}
	copy(f.bssid[:], d11.Address3)
	c.frames++

	rssi, noise, freq := int16(noSignal), int8(0), 0
	if rt, ok := pkt.Layer(layers.LayerTypeRadioTap).(*layers.RadioTap); ok {
		if rt.Present.DBMAntennaSignal() {
			rssi = int16(rt.DBMAntennaSignal)
		}
		if rt.Present.DBMAntennaNoise() {
			noise = rt.DBMAntennaNoise
		}
		if rt.Present.Channel() {
			freq = int(rt.ChannelFrequency)
		}
	}
	c.merge(f, rssi, noise, freq)
}

func (c *collector) merge(f frame, rssi int16, noise int8, freq int) {
	var ssid []byte
	var dsChannel uint8
	if e, ok := ie.Find(f.elements, ie.IDSSID); ok {
		ssid = e.Data
	}
	if e, ok := ie.Find(f.elements, ie.IDDSParamSet); ok && len(e.Data) > 0 {
		dsChannel = e.Data[0]
	}
	ch, band := chanlist.ChannelFor(freq)
	if dsChannel != 0 {
		ch = dsChannel
	}
	if ch == 0 {
		c.logger.Debug("dropping frame without a channel", zap.Stringer("bssid", net.HardwareAddr(f.bssid[:])))
		return
	}
	radio := models.RadioBG
	if band.Is5GHz() || (freq == 0 && ch > 14) {
		radio = models.RadioA
	}

	ap, seen := c.byMAC[f.bssid]
	if !seen {
		ap = &sim.AP{BSSID: f.bssid, RSSI: rssi}
		c.byMAC[f.bssid] = ap
		c.order = append(c.order, f.bssid)
	}
	ap.Radio, ap.Channel = radio, ch
	ap.TSF, ap.BeaconInterval, ap.Capability = f.tsf, f.interval, f.capab
	ap.RSSI = max(ap.RSSI, rssi)
	if noise != 0 {
		ap.Noise = noise
	}

	// A beacon decides whether the network hides its name; a probe
	// response only teaches the name.
	switch {
	case !ie.IsHiddenSSID(ssid):
		ap.SSID = bytes.Clone(ssid)
		if !f.probe {
			ap.HideSSID = false
		}
	case !f.probe:
		ap.HideSSID = true
	}
	ap.Raw = withoutSSID(f.elements)
}

// withoutSSID copies an element list minus its SSID element. A truncated
// tail is dropped.
func withoutSSID(elements []byte) []byte {
	out := make([]byte, 0, len(elements))
	it := ie.Iterate(elements)
	for it.Next() {
		e := it.Element()
		if e.ID == ie.IDSSID {
			continue
		}
		out = ie.Append(out, e.ID, e.Data)
	}
	return out
}

func (c *collector) aps() []sim.AP {
	out := make([]sim.AP, 0, len(c.order))
	for _, mac := range c.order {
		out = append(out, *c.byMAC[mac])
	}
	return out
}
