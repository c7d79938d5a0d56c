package scan

import (
	"time"

	"github.com/HerbHall/wlanscan/internal/chanlist"
	"github.com/HerbHall/wlanscan/pkg/models"
)

// SplitOptions controls how a channel list is cut into sub-commands.
type SplitOptions struct {
	// MaxChannels is the batch size.
	MaxChannels int
	// Isolate sends channels 1, 6 and 11 in sub-commands of their own.
	// It is set for unfiltered scans.
	Isolate bool
	// BeforeA ends a batch before the first 5 GHz channel so each command
	// carries a single band's rates.
	BeforeA bool
}

func isolated(ch uint8) bool { return ch == 1 || ch == 6 || ch == 11 }

// Split partitions descs into consecutive batches, preserving order.
func Split(descs []chanlist.Descriptor, opts SplitOptions) [][]chanlist.Descriptor {
	limit := max(opts.MaxChannels, 1)
	var out [][]chanlist.Descriptor
	for i := 0; i < len(descs); {
		start := i
		for i < len(descs) && i-start < limit {
			cur := descs[i]
			i++
			if opts.Isolate && isolated(cur.Channel) {
				break
			}
			if i == len(descs) {
				break
			}
			next := descs[i]
			if opts.Isolate && isolated(next.Channel) {
				break
			}
			if opts.BeforeA && cur.Radio != models.RadioA && next.Radio == models.RadioA {
				break
			}
		}
		out = append(out, descs[start:i:i])
	}
	return out
}

// Dwell returns the summed dwell of a batch.
func Dwell(batch []chanlist.Descriptor) time.Duration {
	var d time.Duration
	for _, c := range batch {
		d += c.Dwell
	}
	return d
}
