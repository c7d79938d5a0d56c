// Package compat decides whether an observed network can be joined under
// the local security policy.
package compat

import (
	"fmt"

	"github.com/HerbHall/wlanscan/internal/bss"
	"github.com/HerbHall/wlanscan/internal/ie"
	"github.com/HerbHall/wlanscan/pkg/models"
)

// Security is the local security configuration a network is matched
// against.
type Security uint8

const (
	SecurityNone Security = iota
	SecurityStaticWEP
	SecurityDynamicWEP
	SecurityWPA
	SecurityWPA2
	// SecurityEWPA accepts either a WPA or an RSN network.
	SecurityEWPA
	SecurityWAPI
	SecurityAdhocAES
	SecurityOWE
)

var securityNames = map[Security]string{
	SecurityNone:       "none",
	SecurityStaticWEP:  "static_wep",
	SecurityDynamicWEP: "dynamic_wep",
	SecurityWPA:        "wpa",
	SecurityWPA2:       "wpa2",
	SecurityEWPA:       "ewpa",
	SecurityWAPI:       "wapi",
	SecurityAdhocAES:   "adhoc_aes",
	SecurityOWE:        "owe",
}

func (s Security) String() string {
	if n, ok := securityNames[s]; ok {
		return n
	}
	return fmt.Sprintf("security(%d)", uint8(s))
}

// ParseSecurity accepts the String forms. The empty string means none.
func ParseSecurity(s string) (Security, error) {
	if s == "" {
		return SecurityNone, nil
	}
	for k, v := range securityNames {
		if v == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown security mode %q", s)
}

// Policy is the local configuration a record is classified against.
type Policy struct {
	Security Security
	BSSMode  models.BSSMode
	// Bands is the configured band mask. HT is considered configured when
	// it includes GN or AN.
	Bands      models.Band
	Connected  bool
	WPSSession bool
}

func (p Policy) htConfigured() bool {
	return p.Bands&(models.BandGN|models.BandAN) != 0
}

// Verdict is the result of Classify.
type Verdict struct {
	Compatible bool
	Disable11n bool
	Reason     string
}

// Classification reasons.
const (
	ReasonConnected        = "connected"
	ReasonWPSSession       = "wps session"
	ReasonOWETransition    = "owe transition"
	ReasonModeMismatch     = "bss mode mismatch"
	ReasonNotWPA           = "no wpa or rsn element"
	ReasonNoCipher         = "no aes or tkip cipher"
	ReasonSecurityMismatch = "security mismatch"
)

// Classify applies the policy table to r. The first matching rule wins:
//
//  1. Already connected in infrastructure mode to an infrastructure BSS.
//  2. An active WPS session.
//  3. The open half of an OWE transition pair, unless the policy is OWE.
//  4. Extensible WPA accepts any WPA or RSN network.
//  5. WAPI accepts a network carrying a WAPI element.
//  6. A BSS mode mismatch rejects the network.
//  7. The per-security rule for none, static WEP, WPA, WPA2, ad-hoc AES,
//     dynamic WEP and OWE.
//
// A VHT or HE capability without HT capability always sets Disable11n,
// whatever rule matches later. WEP sets Disable11n. WPA and WPA2 set it
// when HT is configured, the network is HT capable and only TKIP is on
// offer; with neither CCMP nor TKIP the network is rejected.
func Classify(r *bss.Record, p Policy) Verdict {
	if p.Connected && p.BSSMode == models.BSSModeInfra && r.Mode == models.BSSModeInfra {
		return Verdict{Compatible: true, Reason: ReasonConnected}
	}

	v := Verdict{}
	if (r.HasVHT() || r.HasHE()) && !r.HasHT() {
		v.Disable11n = true
	}

	if p.WPSSession {
		return v.ok(ReasonWPSSession)
	}
	if r.OWE == bss.OWEOpen && p.Security != SecurityOWE {
		return v.ok(ReasonOWETransition)
	}

	modeOK := p.BSSMode == models.BSSModeAuto || r.Mode == p.BSSMode
	if modeOK && p.Security == SecurityEWPA {
		if !r.HasWPA() && !r.HasRSN() {
			return v.fail(ReasonNotWPA)
		}
		return v.cipherCheck(r, p, pairwise(r.WPASecurity), pairwise(r.Security))
	}
	if p.Security == SecurityWAPI && len(r.WAPI) > 0 {
		return v.ok(SecurityWAPI.String())
	}
	if !modeOK {
		return v.fail(ReasonModeMismatch)
	}

	noWPA := !r.HasWPA() && !r.HasRSN()
	switch p.Security {
	case SecurityNone:
		if noWPA && !r.Privacy {
			return v.ok("open")
		}
	case SecurityStaticWEP:
		if r.Privacy && noWPA {
			v.Disable11n = true
			return v.ok(p.Security.String())
		}
	case SecurityWPA:
		if r.HasWPA() {
			return v.cipherCheck(r, p, pairwise(r.WPASecurity))
		}
	case SecurityWPA2:
		if r.HasRSN() {
			return v.cipherCheck(r, p, pairwise(r.Security))
		}
	case SecurityAdhocAES, SecurityDynamicWEP:
		if noWPA && r.Privacy {
			return v.ok(p.Security.String())
		}
	case SecurityOWE:
		if sec, err := r.Security(); err == nil && sec.HasAKM(ie.AKMOWE) {
			return v.ok(p.Security.String())
		}
	}
	return v.fail(ReasonSecurityMismatch)
}

func (v Verdict) ok(reason string) Verdict {
	v.Compatible, v.Reason = true, reason
	return v
}

func (v Verdict) fail(reason string) Verdict {
	v.Compatible, v.Reason = false, reason
	return v
}

// cipherCheck runs the HT/AES rule over the pairwise cipher lists of the
// security elements the rule looks at.
func (v Verdict) cipherCheck(r *bss.Record, p Policy, lists ...[]ie.Suite) Verdict {
	if !p.htConfigured() || !r.HasHT() || p.BSSMode != models.BSSModeInfra {
		return v.ok(p.Security.String())
	}
	if hasCipher(ie.CipherCCMP128, lists) {
		return v.ok(p.Security.String())
	}
	if hasCipher(ie.CipherTKIP, lists) {
		v.Disable11n = true
		return v.ok(p.Security.String())
	}
	return v.fail(ReasonNoCipher)
}

func pairwise(parse func() (ie.Security, error)) []ie.Suite {
	sec, err := parse()
	if err != nil {
		return nil
	}
	return sec.PairwiseCiphers
}

func hasCipher(c ie.Suite, lists [][]ie.Suite) bool {
	for _, l := range lists {
		for _, s := range l {
			if s == c {
				return true
			}
		}
	}
	return false
}

// IsCompatible reports whether Classify accepts r.
func IsCompatible(r *bss.Record, p Policy) bool {
	return Classify(r, p).Compatible
}

// Apply classifies r and stores the Disable11n decision on it.
func Apply(r *bss.Record, p Policy) Verdict {
	v := Classify(r, p)
	r.Disable11n = v.Disable11n
	return v
}
