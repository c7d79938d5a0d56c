package chanlist

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/HerbHall/wlanscan/pkg/models"
)

// Channel is one entry of a regulatory channel table. Restricted means
// radar detection is required on a 5 GHz channel, or active probing is not
// allowed on a 2.4 GHz channel.
type Channel struct {
	Number     uint8
	Restricted bool
}

// Region is a regulatory domain with its 2.4 GHz and 5 GHz channel tables.
type Region struct {
	Code uint8
	Name string
	BG   []Channel
	A    []Channel
}

// Region codes as carried in the firmware's region word.
const (
	RegionWW      uint8 = 0x00
	RegionUS      uint8 = 0x10
	RegionCA      uint8 = 0x20
	RegionEU      uint8 = 0x30
	RegionFR      uint8 = 0x32
	RegionJP      uint8 = 0x40
	RegionCN      uint8 = 0x50
	RegionSpecial uint8 = 0xff
)

func span(from, to uint8, restricted func(uint8) bool) []Channel {
	var out []Channel
	for ch := from; ch <= to; ch++ {
		out = append(out, Channel{Number: ch, Restricted: restricted != nil && restricted(ch)})
	}
	return out
}

func list(dfs func(uint8) bool, chans ...uint8) []Channel {
	out := make([]Channel, len(chans))
	for i, ch := range chans {
		out[i] = Channel{Number: ch, Restricted: dfs(ch)}
	}
	return out
}

// radar reports whether a 5 GHz channel sits in U-NII-2A or U-NII-2C.
func radar(ch uint8) bool { return ch >= 52 && ch <= 144 }

var (
	bgUS      = span(1, 11, nil)
	bgEU      = span(1, 13, nil)
	bgSpecial = span(1, 14, nil)
	bgWW      = span(1, 13, func(ch uint8) bool { return ch >= 12 })

	aUS = list(radar, 36, 40, 44, 48, 52, 56, 60, 64, 100, 104, 108, 112, 116,
		120, 124, 128, 132, 136, 140, 144, 149, 153, 157, 161, 165)
	aCA = list(radar, 36, 40, 44, 48, 52, 56, 60, 64, 100, 104, 108, 112, 116,
		132, 136, 140, 144, 149, 153, 157, 161, 165)
	aEU = list(radar, 36, 40, 44, 48, 52, 56, 60, 64, 100, 104, 108, 112, 116,
		120, 124, 128, 132, 136, 140, 149, 153, 157, 161, 165)
	aJP = list(radar, 36, 40, 44, 48, 52, 56, 60, 64, 100, 104, 108, 112, 116,
		120, 124, 128, 132, 136, 140, 144)
	aCN = list(radar, 36, 40, 44, 48, 52, 56, 60, 64, 149, 153, 157, 161, 165)
)

var regions = []Region{
	{Code: RegionWW, Name: "WW", BG: bgWW, A: aUS},
	{Code: RegionUS, Name: "US", BG: bgUS, A: aUS},
	{Code: RegionCA, Name: "CA", BG: bgUS, A: aCA},
	{Code: RegionEU, Name: "EU", BG: bgEU, A: aEU},
	{Code: RegionFR, Name: "FR", BG: bgEU, A: aUS},
	{Code: RegionJP, Name: "JP", BG: bgSpecial, A: aJP},
	{Code: RegionCN, Name: "CN", BG: bgEU, A: aCN},
	{Code: RegionSpecial, Name: "SPECIAL", BG: bgSpecial, A: aJP},
}

// Regions returns every known regulatory domain.
func Regions() []Region {
	out := make([]Region, len(regions))
	copy(out, regions)
	return out
}

// WorldWide returns the world-wide safe table.
func WorldWide() Region { return regions[0] }

// LookupRegion finds a region by name ("US") or numeric code ("0x10").
func LookupRegion(s string) (Region, error) {
	s = strings.TrimSpace(s)
	for _, r := range regions {
		if strings.EqualFold(r.Name, s) {
			return r, nil
		}
	}
	if code, err := strconv.ParseUint(s, 0, 8); err == nil {
		for _, r := range regions {
			if r.Code == uint8(code) {
				return r, nil
			}
		}
	}
	return Region{}, fmt.Errorf("unknown region %q", s)
}

// Lookup returns the table entry for a channel on the given radio.
func (r Region) Lookup(radio models.RadioType, ch uint8) (Channel, bool) {
	table := r.BG
	if radio == models.RadioA {
		table = r.A
	}
	for _, c := range table {
		if c.Number == ch {
			return c, true
		}
	}
	return Channel{}, false
}
