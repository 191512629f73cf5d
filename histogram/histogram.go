// Package histogram implements a fixed-size width-distribution summary: a
// mergeable multiset of line widths bucketed so that rows(w, W) is either
// known exactly per-bucket or approximable with a bounded error, for any
// terminal width W.
//
// Bucket layout is a hybrid scheme: buckets [0, NumExact) are exact single
// widths 0..NumExact-1; the remaining buckets cover power-of-two ranges
// [2^k, 2^(k+1)-1] up to 65535.
package histogram

import (
	"encoding/binary"
	"math/bits"
)

// EncodedSize is the number of bytes Encode writes: NumBuckets * (8-byte
// count + 8-byte sum). Both fields are 64-bit despite fitting in fewer bits
// for modest logs, because a single bucket (e.g. bucket 0, all blank lines)
// can plausibly hold trillions of lines on its own.
const EncodedSize = NumBuckets * 16

const (
	// NumBuckets is the total bucket count.
	NumBuckets = 64
	// NumExact is the number of exact single-width buckets.
	NumExact = 32
	// baseExp is the exponent of the first range bucket's low edge
	// (2^baseExp == NumExact).
	baseExp = 5
)

var (
	bucketLo [NumBuckets]uint32
	bucketHi [NumBuckets]uint32
)

func init() {
	for i := 0; i < NumExact; i++ {
		bucketLo[i] = uint32(i)
		bucketHi[i] = uint32(i)
	}
	lo := uint32(NumExact)
	idx := NumExact
	for idx < NumBuckets && lo <= 65535 {
		hi := lo*2 - 1
		if hi > 65535 {
			hi = 65535
		}
		bucketLo[idx] = lo
		bucketHi[idx] = hi
		idx++
		lo = hi + 1
	}
	// Any remaining buckets (if 65535 was reached before NumBuckets) are
	// unreachable sentinels: no width ever saturates past 65535, so they
	// stay permanently empty.
	for ; idx < NumBuckets; idx++ {
		bucketLo[idx] = 65536
		bucketHi[idx] = 65536
	}
}

// bucketOf returns the bucket index a width falls into.
func bucketOf(w uint16) int {
	if int(w) < NumExact {
		return int(w)
	}
	e := bits.Len16(w) - 1 // highest set bit position
	idx := NumExact + (e - baseExp)
	if idx >= NumBuckets {
		idx = NumBuckets - 1
	}
	return idx
}

type bucket struct {
	Count uint64
	Sum   uint64
}

// H is a fixed-size width histogram: a commutative monoid under Add/Merge.
type H struct {
	buckets [NumBuckets]bucket
}

// Add records one line of the given width.
func (h *H) Add(w uint16) {
	b := &h.buckets[bucketOf(w)]
	b.Count++
	b.Sum += uint64(w)
}

// AddHist merges other into h (h += other).
func (h *H) AddHist(other H) {
	for i := range h.buckets {
		h.buckets[i].Count += other.buckets[i].Count
		h.buckets[i].Sum += other.buckets[i].Sum
	}
}

// SubHist removes other's contribution from h (h -= other), the inverse of
// AddHist.
func (h *H) SubHist(other H) {
	for i := range h.buckets {
		h.buckets[i].Count -= other.buckets[i].Count
		h.buckets[i].Sum -= other.buckets[i].Sum
	}
}

// Count returns the total number of lines summarized.
func (h *H) Count() uint64 {
	var n uint64
	for _, b := range h.buckets {
		n += b.Count
	}
	return n
}

// Rows returns Σ max(1, ceil(w/W)) over every width recorded in h, exact
// where every populated bucket is exact for W (see ExactForWidth) and
// otherwise a lower-bound estimate whose shortfall, per approximated bucket,
// is smaller than that bucket's count.
func (h *H) Rows(W uint16) uint64 {
	if W == 0 {
		panic("histogram: terminal width must be >= 1")
	}
	var total uint64
	for i, b := range h.buckets {
		if b.Count == 0 {
			continue
		}
		total += rowsEstimate(i, b, W)
	}
	return total
}

func rowsEstimate(bucketIdx int, b bucket, W uint16) uint64 {
	if bucketIdx < NumExact {
		// exact single-width bucket: w == bucketIdx
		w := uint16(bucketIdx)
		rows := uint64(w) / uint64(W)
		if uint64(w)%uint64(W) != 0 {
			rows++
		}
		if rows < 1 {
			rows = 1
		}
		return rows * b.Count
	}
	hi := bucketHi[bucketIdx]
	if hi < uint32(W) {
		// every line in the bucket wraps to exactly one row
		return b.Count
	}
	// Σ ceil(w/W) >= ceil(sum/W), and every line takes at least one row, so
	// max(count, ceil(sum/W)) is a lower bound; each ceil(w/W) is below
	// w/W + 1, so the bound falls short by less than the bucket's count.
	rows := b.Sum / uint64(W)
	if b.Sum%uint64(W) != 0 {
		rows++
	}
	if rows < b.Count {
		rows = b.Count
	}
	return rows
}

// Encode writes h's on-disk representation into buf, which must be at
// least EncodedSize bytes.
func (h *H) Encode(buf []byte) {
	for i, b := range h.buckets {
		off := i * 16
		binary.LittleEndian.PutUint64(buf[off:], b.Count)
		binary.LittleEndian.PutUint64(buf[off+8:], b.Sum)
	}
}

// Decode reads a histogram previously written by Encode from buf, which
// must be at least EncodedSize bytes.
func Decode(buf []byte) H {
	var h H
	for i := range h.buckets {
		off := i * 16
		h.buckets[i].Count = binary.LittleEndian.Uint64(buf[off:])
		h.buckets[i].Sum = binary.LittleEndian.Uint64(buf[off+8:])
	}
	return h
}

// ExactForWidth reports whether Rows(W) is guaranteed exact: every
// populated bucket is either an exact single-width bucket, or a range
// bucket whose entire range is below W (so every contained line wraps to
// exactly one row). Used by the tree descent to decide whether a subtree's
// histogram can answer locate() directly or whether refinement is needed.
func (h *H) ExactForWidth(W uint16) bool {
	for i, b := range h.buckets {
		if b.Count == 0 {
			continue
		}
		if i < NumExact {
			continue
		}
		if bucketHi[i] < uint32(W) {
			continue
		}
		return false
	}
	return true
}
