// Package ie decodes 802.11 information elements from beacon and probe
// response bodies. Everything here runs on bytes controlled by whoever is
// transmitting nearby, so every length is checked against the buffer before
// it is used and nothing panics on malformed input.
package ie

import "errors"

// Element IDs consumed by the scan engine.
const (
	IDSSID            uint8 = 0
	IDSupportedRates  uint8 = 1
	IDFHParamSet      uint8 = 2
	IDDSParamSet      uint8 = 3
	IDCFParamSet      uint8 = 4
	IDTIM             uint8 = 5
	IDIBSSParamSet    uint8 = 6
	IDCountry         uint8 = 7
	IDBSSLoad         uint8 = 11
	IDHTCapabilities  uint8 = 45
	IDRSN             uint8 = 48
	IDExtendedRates   uint8 = 50
	IDMobilityDomain  uint8 = 54
	IDHTOperation     uint8 = 61
	IDWAPI            uint8 = 68
	IDRMEnabledCaps   uint8 = 70
	IDMultipleBSSID   uint8 = 71
	IDBSSCoexistence  uint8 = 72
	IDOverlapScan     uint8 = 74
	IDNonTxBSSIDCap   uint8 = 83
	IDMultiBSSIDIndex uint8 = 85
	IDExtCapabilities uint8 = 127
	IDVHTCapabilities uint8 = 191
	IDVHTOperation    uint8 = 192
	IDVHTTxPowerEnv   uint8 = 195
	IDOperatingMode   uint8 = 199
	IDVendorSpecific  uint8 = 221
	IDRSNX            uint8 = 244
	IDExtension       uint8 = 255
)

// Extension element IDs (carried inside IDExtension).
const (
	ExtIDHECapabilities uint8 = 35
	ExtIDHEOperation    uint8 = 36
)

// HeaderLen is the size of the id and length bytes in front of every element.
const HeaderLen = 2

// ErrTruncated is returned when an element's length runs past the end of
// the buffer. Parsing stops at that point; elements decoded before it stay
// valid.
var ErrTruncated = errors.New("ie: element truncated")

// Element is one raw information element. Data aliases the input buffer.
type Element struct {
	ID   uint8
	Data []byte
}

// Len returns the encoded size of the element including its header.
func (e Element) Len() int { return HeaderLen + len(e.Data) }

// Next decodes the element at the front of b and returns it together with
// the bytes that follow it.
func Next(b []byte) (Element, []byte, error) {
	if len(b) < HeaderLen {
		return Element{}, b, ErrTruncated
	}
	n := int(b[1])
	if n > len(b)-HeaderLen {
		return Element{}, b, ErrTruncated
	}
	end := HeaderLen + n
	return Element{ID: b[0], Data: b[HeaderLen:end:end]}, b[end:], nil
}

// Iterator walks the elements of a buffer in order:
//
//	it := ie.Iterate(body)
//	for it.Next() {
//		e := it.Element()
//		...
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	rest []byte
	cur  Element
	off  int
	err  error
}

// Iterate returns an Iterator over b.
func Iterate(b []byte) Iterator {
	return Iterator{rest: b}
}

// Next advances to the next element. It returns false at the end of the
// buffer or at the first truncated element.
func (it *Iterator) Next() bool {
	if it.err != nil || len(it.rest) == 0 {
		return false
	}
	e, rest, err := Next(it.rest)
	if err != nil {
		it.err = err
		return false
	}
	it.off += e.Len()
	it.cur = e
	it.rest = rest
	return true
}

// Element returns the element most recently decoded by Next.
func (it *Iterator) Element() Element { return it.cur }

// Offset returns the number of bytes consumed so far.
func (it *Iterator) Offset() int { return it.off }

// Err returns ErrTruncated if iteration stopped on a malformed element.
func (it *Iterator) Err() error { return it.err }

// All decodes every element in b. On truncation it returns the elements
// decoded before the bad one together with ErrTruncated.
func All(b []byte) ([]Element, error) {
	var out []Element
	it := Iterate(b)
	for it.Next() {
		out = append(out, it.Element())
	}
	return out, it.Err()
}

// Find returns the first element with the given ID.
func Find(b []byte, id uint8) (Element, bool) {
	it := Iterate(b)
	for it.Next() {
		if e := it.Element(); e.ID == id {
			return e, true
		}
	}
	return Element{}, false
}

// Append encodes an element onto dst. Data longer than 255 bytes is cut.
func Append(dst []byte, id uint8, data []byte) []byte {
	if len(data) > 255 {
		data = data[:255]
	}
	dst = append(dst, id, byte(len(data)))
	return append(dst, data...)
}
