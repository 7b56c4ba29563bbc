// Package types holds small value types shared across the wire shapes
// in internal/aperfdata, kept separate from that package so a value
// like Bytes can be reused anywhere a size in bytes needs a
// self-describing, human-readable rendering (see
// internal/aperfdata.GraphFile's GraphSize).
package types

import "fmt"

// Bytes is a size in bytes that knows how to render itself in the
// largest unit that keeps the number at or above 1.
type Bytes uint64

type byteUnit struct {
	threshold uint64
	suffix    string
}

// byteUnits is ordered largest first so Humanized can return on the
// first threshold Bytes clears.
var byteUnits = []byteUnit{
	{1 << 40, "TB"},
	{1 << 30, "GB"},
	{1 << 20, "MB"},
	{1 << 10, "KB"},
}

// Humanized renders b using the largest unit (TB/GB/MB/KB/B) for which
// b is at least one whole unit, with two decimal places above the byte
// scale.
func (b Bytes) Humanized() string {
	for _, u := range byteUnits {
		if uint64(b) >= u.threshold {
			return fmt.Sprintf("%.2f %s", float64(b)/float64(u.threshold), u.suffix)
		}
	}
	return fmt.Sprintf("%d B", uint64(b))
}

// KB returns b expressed as kilobytes (1024-based).
func (b Bytes) KB() float64 { return float64(b) / float64(1<<10) }

// MB returns b expressed as megabytes (1024-based).
func (b Bytes) MB() float64 { return float64(b) / float64(1<<20) }

// GB returns b expressed as gigabytes (1024-based).
func (b Bytes) GB() float64 { return float64(b) / float64(1<<30) }
