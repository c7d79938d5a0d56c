package scan

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/HerbHall/wlanscan/internal/radio/nl80211"
	"github.com/HerbHall/wlanscan/internal/radio/pcapreplay"
	"github.com/HerbHall/wlanscan/internal/radio/sim"
)

// Radio is a transport that holds resources.
type Radio interface {
	Transport
	io.Closer
}

// OpenRadio builds the transport selected by cfg.Radio.
func OpenRadio(cfg Config, logger *zap.Logger) (Radio, error) {
	switch cfg.Radio {
	case "", RadioSim:
		fw := sim.New(sim.Options{ChanStats: true}, logger)
		fw.SetAPs(sim.DemoAPs())
		return fw, nil
	case RadioPcap:
		if cfg.PcapFile == "" {
			return nil, fmt.Errorf("radio %q: pcap_file is required", cfg.Radio)
		}
		aps, err := pcapreplay.LoadFile(cfg.PcapFile, logger)
		if err != nil {
			return nil, fmt.Errorf("radio %q: %w", cfg.Radio, err)
		}
		fw := sim.New(sim.Options{ChanStats: true}, logger)
		fw.SetAPs(aps)
		return fw, nil
	case RadioNL80211:
		r, err := nl80211.Open(cfg.Interface, nl80211.DefaultRefresh, logger)
		if err != nil {
			return nil, fmt.Errorf("radio %q: %w", cfg.Radio, err)
		}
		return r, nil
	}
	return nil, fmt.Errorf("unknown radio %q", cfg.Radio)
}
