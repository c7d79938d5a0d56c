package models

import (
	"fmt"
	"strings"
)

// Band is a bitmask of 802.11 PHY modes. The values match the firmware's
// band configuration word.
type Band uint16

const (
	BandB   Band = 1 << 0
	BandG   Band = 1 << 1
	BandA   Band = 1 << 2
	BandGN  Band = 1 << 3
	BandAN  Band = 1 << 4
	BandGAC Band = 1 << 5
	BandAAC Band = 1 << 6
	BandGAX Band = 1 << 8
	BandAAX Band = 1 << 9

	// Band2GHz is every PHY mode that operates at 2.4 GHz.
	Band2GHz = BandB | BandG | BandGN | BandGAC | BandGAX
	// Band5GHz is every PHY mode that operates at 5 GHz.
	Band5GHz = BandA | BandAN | BandAAC | BandAAX
)

// RadioType is the one-byte band selector used in channel lists.
type RadioType uint8

const (
	RadioBG RadioType = 0
	RadioA  RadioType = 1
)

// Band returns the base band for a radio type. Unknown values map to G.
func (r RadioType) Band() Band {
	if r == RadioA {
		return BandA
	}
	return BandG
}

func (r RadioType) String() string {
	if r == RadioA {
		return "5GHz"
	}
	return "2.4GHz"
}

// RadioType returns the radio selector for the band. Anything with a
// 5 GHz bit set is RadioA.
func (b Band) RadioType() RadioType {
	if b&Band5GHz != 0 {
		return RadioA
	}
	return RadioBG
}

// Is5GHz reports whether any 5 GHz mode is set.
func (b Band) Is5GHz() bool { return b&Band5GHz != 0 }

// Is2GHz reports whether any 2.4 GHz mode is set.
func (b Band) Is2GHz() bool { return b&Band2GHz != 0 }

// Compatible reports whether a configured band mask can operate on scanBand.
// The scan band is widened to its whole family first, so a radio configured
// for "an" still accepts a plain A result.
func (b Band) Compatible(scanBand Band) bool {
	family := Band2GHz
	if scanBand.Is5GHz() {
		family = Band5GHz
	}
	return b&family != 0
}

var bandNames = []struct {
	name string
	band Band
}{
	{"b", BandB},
	{"g", BandG},
	{"a", BandA},
	{"gn", BandGN},
	{"an", BandAN},
	{"gac", BandGAC},
	{"aac", BandAAC},
	{"gax", BandGAX},
	{"aax", BandAAX},
}

func (b Band) String() string {
	if b == 0 {
		return "none"
	}
	var parts []string
	for _, n := range bandNames {
		if b&n.band != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseBands parses a comma separated list such as "bgn,an,ac". The shorthand
// "bg" means b|g, "bgn" adds gn, "ac" adds both ac modes and "ax" adds both
// ax modes.
func ParseBands(s string) (Band, error) {
	var out Band
	for _, tok := range strings.Split(s, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		switch tok {
		case "":
			continue
		case "bg":
			out |= BandB | BandG
		case "bgn":
			out |= BandB | BandG | BandGN
		case "ac":
			out |= BandGAC | BandAAC
		case "ax":
			out |= BandGAX | BandAAX
		default:
			found := false
			for _, n := range bandNames {
				if n.name == tok {
					out |= n.band
					found = true
					break
				}
			}
			if !found {
				return 0, fmt.Errorf("unknown band %q", tok)
			}
		}
	}
	if out == 0 {
		return 0, fmt.Errorf("no bands in %q", s)
	}
	return out, nil
}
