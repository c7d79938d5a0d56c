//go:build linux

package nl80211

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mdlayher/wifi"
	"go.uber.org/zap"

	"github.com/HerbHall/wlanscan/internal/ie"
	"github.com/HerbHall/wlanscan/internal/radio/sim"
)

type client struct {
	c      *wifi.Client
	ifi    *wifi.Interface
	logger *zap.Logger
}

// Open binds to the named station interface, or the first one when name
// is empty. Requires root or CAP_NET_ADMIN for active scans.
func Open(name string, refresh time.Duration, logger *zap.Logger) (*Radio, error) {
	c, err := wifi.New()
	if err != nil {
		return nil, fmt.Errorf("open wifi client: %w", err)
	}
	ifaces, err := c.Interfaces()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("enumerate wifi interfaces: %w", err)
	}

	var ifi *wifi.Interface
	for _, candidate := range ifaces {
		if candidate.Type != wifi.InterfaceTypeStation {
			continue
		}
		if name == "" || candidate.Name == name {
			ifi = candidate
			break
		}
	}
	if ifi == nil {
		c.Close()
		return nil, ErrNoInterface
	}
	logger.Info("using wifi interface", zap.String("interface", ifi.Name))

	k := &client{c: c, ifi: ifi, logger: logger}
	return newRadio(k, sim.New(sim.Options{}, logger.Named("replay")), refresh), nil
}

// Scan triggers a kernel scan and returns the BSS list. A rejected trigger
// falls back to the kernel's cached results.
func (k *client) Scan(ctx context.Context) ([]Observation, error) {
	if err := k.c.Scan(ctx, k.ifi); err != nil {
		switch {
		case isPermissionError(err):
			k.logger.Warn("wifi active scan requires elevated privileges, using cached results")
		case !errors.Is(err, wifi.ErrScanAborted):
			k.logger.Debug("wifi active scan failed, using cached results", zap.Error(err))
		}
	}

	bssList, err := k.c.AccessPoints(k.ifi)
	if err != nil {
		return nil, fmt.Errorf("get access points: %w", err)
	}
	out := make([]Observation, 0, len(bssList))
	for _, b := range bssList {
		if len(b.BSSID) != 6 {
			continue
		}
		o := Observation{
			SSID:           b.SSID,
			FrequencyMHz:   b.Frequency,
			SignalMBm:      int(b.Signal),
			BeaconInterval: b.BeaconInterval,
		}
		copy(o.BSSID[:], b.BSSID)
		if b.RSN.IsInitialized() {
			sec := rsnSecurity(b.RSN)
			o.RSN = &sec
		}
		out = append(out, o)
	}
	return out, nil
}

func (k *client) Close() error { return k.c.Close() }

// rsnSecurity maps the kernel's parsed RSN element back onto suite
// selectors. Suites without a counterpart are left out.
func rsnSecurity(rsn wifi.RSNInfo) ie.Security {
	sec := ie.Security{Version: 1}
	for _, c := range rsn.PairwiseCiphers {
		if s, ok := cipherSuite(c); ok {
			sec.PairwiseCiphers = append(sec.PairwiseCiphers, s)
		}
	}
	if s, ok := cipherSuite(rsn.GroupCipher); ok {
		sec.GroupCipher = s
	} else {
		sec.GroupCipher = ie.CipherCCMP128
		for _, s := range sec.PairwiseCiphers {
			if s == ie.CipherTKIP {
				sec.GroupCipher = ie.CipherTKIP
			}
		}
	}
	for _, a := range rsn.AKMs {
		switch a {
		case wifi.RSNAkm8021X:
			sec.AKMs = append(sec.AKMs, ie.AKM8021X)
		case wifi.RSNAkmPSK:
			sec.AKMs = append(sec.AKMs, ie.AKMPSK)
		case wifi.RSNAkmFT8021X:
			sec.AKMs = append(sec.AKMs, ie.AKMFT8021X)
		case wifi.RSNAkmFTPSK:
			sec.AKMs = append(sec.AKMs, ie.AKMFTPSK)
		case wifi.RSNAkmSAE:
			sec.AKMs = append(sec.AKMs, ie.AKMSAE)
		case wifi.RSNAkmFTSAE:
			sec.AKMs = append(sec.AKMs, ie.AKMFTSAE)
		}
	}
	return sec
}

func cipherSuite(c wifi.RSNCipher) (ie.Suite, bool) {
	switch c {
	case wifi.RSNCipherWEP40:
		return ie.CipherWEP40, true
	case wifi.RSNCipherTKIP:
		return ie.CipherTKIP, true
	case wifi.RSNCipherCCMP128:
		return ie.CipherCCMP128, true
	case wifi.RSNCipherWEP104:
		return ie.CipherWEP104, true
	case wifi.RSNCipherGCMP128:
		return ie.CipherGCMP128, true
	case wifi.RSNCipherGCMP256:
		return ie.CipherGCMP256, true
	case wifi.RSNCipherCCMP256:
		return ie.CipherCCMP256, true
	}
	return 0, false
}
