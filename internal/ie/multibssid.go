package ie

// Subelement ID of a nontransmitted BSSID profile inside a Multiple BSSID
// element.
const SubIDNonTxProfile uint8 = 0

// MaxBSSIDIndex is the largest index a profile may claim.
const MaxBSSIDIndex = 46

// Profiles returns the bodies of the nontransmitted BSSID profiles carried
// in a Multiple BSSID element. Subelements use the same id/length framing as
// elements. On truncation the profiles decoded so far are returned with
// ErrTruncated.
func (m MultipleBSSID) Profiles() ([][]byte, error) {
	var out [][]byte
	it := Iterate(m.Subelements)
	for it.Next() {
		if e := it.Element(); e.ID == SubIDNonTxProfile {
			out = append(out, e.Data)
		}
	}
	return out, it.Err()
}

// MultiBSSIDIndex is element 85 inside a profile.
type MultiBSSIDIndex struct {
	Index       uint8
	DTIMPeriod  uint8
	DTIMCount   uint8
	HasDTIMInfo bool
}

// ParseMultiBSSIDIndex decodes the body of element 85.
func ParseMultiBSSIDIndex(d []byte) (MultiBSSIDIndex, bool) {
	if len(d) < 1 {
		return MultiBSSIDIndex{}, false
	}
	idx := MultiBSSIDIndex{Index: d[0]}
	if len(d) >= 3 {
		idx.DTIMPeriod, idx.DTIMCount, idx.HasDTIMInfo = d[1], d[2], true
	}
	return idx, true
}
