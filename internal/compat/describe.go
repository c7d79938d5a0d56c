package compat

import (
	"github.com/HerbHall/wlanscan/internal/bss"
	"github.com/HerbHall/wlanscan/internal/ie"
)

// Describe converts a record's security elements to a human-readable
// label such as "WPA2/WPA3" or "Open".
func Describe(r *bss.Record) string {
	switch {
	case len(r.WAPI) > 0:
		return "WAPI"
	case r.HasRSN():
		return describeRSN(r)
	case r.HasWPA():
		return "WPA"
	}
	if r.OWE == bss.OWEOpen {
		return "Open (OWE transition)"
	}
	if r.Privacy {
		return "WEP"
	}
	return "Open"
}

func describeRSN(r *bss.Record) string {
	sec, err := r.Security()
	if err != nil {
		return "Unknown"
	}

	hasWPA3 := false
	hasWPA2 := false
	hasOWE := false
	for _, akm := range sec.AKMs {
		switch akm {
		case ie.AKMSAE, ie.AKMFTSAE, ie.AKMSuiteB192:
			hasWPA3 = true
		case ie.AKMPSK, ie.AKMFTPSK, ie.AKM8021X, ie.AKMFT8021X, ie.AKMPSK256, ie.AKMSuiteB:
			hasWPA2 = true
		case ie.AKMOWE:
			hasOWE = true
		}
	}

	switch {
	case hasOWE:
		return "OWE"
	case hasWPA3 && hasWPA2:
		return "WPA2/WPA3"
	case hasWPA3:
		return "WPA3"
	case hasWPA2 && r.HasWPA():
		return "WPA/WPA2"
	case hasWPA2:
		return "WPA2"
	}

	// Fall back to cipher analysis for older networks.
	for _, cipher := range sec.PairwiseCiphers {
		switch cipher {
		case ie.CipherCCMP128, ie.CipherGCMP128, ie.CipherGCMP256, ie.CipherCCMP256:
			return "WPA2"
		case ie.CipherTKIP:
			return "WPA"
		case ie.CipherWEP40, ie.CipherWEP104:
			return "WEP"
		}
	}
	return "Unknown"
}
