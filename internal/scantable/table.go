// Package scantable holds the bounded set of networks seen by recent scans.
package scantable

import (
	"math/bits"
	"sync"

	"github.com/HerbHall/wlanscan/internal/bss"
	"github.com/HerbHall/wlanscan/internal/fwcmd"
	"github.com/HerbHall/wlanscan/pkg/models"
)

// DefaultCapacity is the table size used when none is configured.
const DefaultCapacity = 20

// Outcome is the effect of one Upsert.
type Outcome uint8

const (
	// Inserted means the record took a free slot.
	Inserted Outcome = iota
	// Updated means the record overwrote a duplicate in place.
	Updated
	// Replaced means the record evicted the weakest entry of a full table.
	Replaced
	// Dropped means the table was not changed.
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Replaced:
		return "replaced"
	default:
		return "dropped"
	}
}

// Result reports what Upsert did. Slot is -1 for Dropped. Evicted is the
// record removed by a Replaced outcome.
type Result struct {
	Outcome Outcome
	Slot    int
	Evicted *bss.Record
}

// Table is a fixed-capacity arena of records. A slot is live when its bit
// is set in the occupied bitmap. All methods are safe for concurrent use;
// readers share a lock that Upsert takes exclusively.
type Table struct {
	mu       sync.RWMutex
	slots    []*bss.Record
	occupied []uint64
	live     int
}

// New returns an empty table with room for capacity records.
func New(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{
		slots:    make([]*bss.Record, capacity),
		occupied: make([]uint64, (capacity+63)/64),
	}
}

func (t *Table) isLive(i int) bool { return t.occupied[i/64]&(1<<(i%64)) != 0 }
func (t *Table) mark(i int)        { t.occupied[i/64] |= 1 << (i % 64) }

// freeSlot returns the lowest free slot, or -1 when the table is full.
func (t *Table) freeSlot() int {
	for w, word := range t.occupied {
		if word == ^uint64(0) {
			continue
		}
		i := w*64 + bits.TrailingZeros64(^word)
		if i < len(t.slots) {
			return i
		}
	}
	return -1
}

// Cap returns the table capacity.
func (t *Table) Cap() int { return len(t.slots) }

// Len returns the number of live records.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Upsert inserts or merges r. The table takes ownership of r.
//
// A live slot with the same BSSID is a duplicate when its SSID equals r's,
// or failing that when it is hidden; the duplicate is overwritten in place,
// unless r was heard on another channel with a weaker signal, in which case
// r is dropped and the stored entry is left untouched. Without a duplicate
// r takes the lowest free slot, or evicts the weakest entry of a full table
// when r is strictly stronger.
func (t *Table) Upsert(r *bss.Record) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i := t.duplicateOf(r); i >= 0 {
		old := t.slots[i]
		if r.Channel != old.Channel && r.RSSI < old.RSSI {
			return Result{Outcome: Dropped, Slot: -1}
		}
		t.slots[i] = r
		return Result{Outcome: Updated, Slot: i}
	}

	if i := t.freeSlot(); i >= 0 {
		t.slots[i] = r
		t.mark(i)
		t.live++
		return Result{Outcome: Inserted, Slot: i}
	}

	w := t.worstIndex()
	if w < 0 || r.RSSI <= t.slots[w].RSSI {
		return Result{Outcome: Dropped, Slot: -1}
	}
	evicted := t.slots[w]
	t.slots[w] = r
	return Result{Outcome: Replaced, Slot: w, Evicted: evicted}
}

// duplicateOf prefers an exact SSID match anywhere in the table over a
// hidden slot for the same BSSID.
func (t *Table) duplicateOf(r *bss.Record) int {
	hidden := -1
	for i, s := range t.slots {
		if !t.isLive(i) || s.BSSID != r.BSSID {
			continue
		}
		if bss.SameSSID(s.SSID, r.SSID) {
			return i
		}
		if hidden < 0 && s.IsHidden() {
			hidden = i
		}
	}
	return hidden
}

// WorstIndex returns the slot with the weakest signal, the lowest slot on
// ties, or -1 when the table is empty.
func (t *Table) WorstIndex() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.worstIndex()
}

func (t *Table) worstIndex() int {
	worst := -1
	for i, s := range t.slots {
		if !t.isLive(i) {
			continue
		}
		if worst < 0 || s.RSSI < t.slots[worst].RSSI {
			worst = i
		}
	}
	return worst
}

// Clear removes every record.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.slots)
	clear(t.occupied)
	t.live = 0
}

// Find returns a copy of the record for bssid. When ssid is non-nil the
// SSID must match too. The second result is the slot, -1 when absent.
func (t *Table) Find(bssid bss.MAC, ssid []byte) (*bss.Record, int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, s := range t.slots {
		if !t.isLive(i) || s.BSSID != bssid {
			continue
		}
		if ssid == nil || bss.SameSSID(s.SSID, ssid) {
			return s.Clone(), i
		}
	}
	return nil, -1
}

// Snapshot returns copies of the live records in slot order.
func (t *Table) Snapshot() []*bss.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*bss.Record, 0, t.live)
	for i, s := range t.slots {
		if t.isLive(i) {
			out = append(out, s.Clone())
		}
	}
	return out
}

// Each calls fn with every live record in slot order under the read lock.
// fn must not retain or modify the record.
func (t *Table) Each(fn func(slot int, r *bss.Record) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, s := range t.slots {
		if t.isLive(i) && !fn(i, s) {
			return
		}
	}
}

// ApplyChannelStats writes noise and channel load into every record on a
// measured channel. It returns the number of records touched.
func (t *Table) ApplyChannelStats(stats []fwcmd.ChanStat) int {
	if len(stats) == 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, cs := range stats {
		radio := models.RadioType(cs.BandConfig & 0x03)
		for i, s := range t.slots {
			if !t.isLive(i) || s.Channel != cs.Channel || s.Band.RadioType() != radio {
				continue
			}
			s.Noise = cs.Noise
			s.ChannelLoad = cs.Load()
			s.HasChannelStats = true
			n++
		}
	}
	return n
}
