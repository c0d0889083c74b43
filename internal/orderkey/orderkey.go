// Package orderkey implements the dense, totally ordered keys that place rows
// vertically in the grid.
//
// A Key is a sequence of base-100000 digits read as a fraction
// (0.d1 d2 d3 ...). Keys compare numerically, so missing trailing digits count
// as zero, and a higher key sorts visually higher. Keys render as zero-padded
// five-digit groups joined by dots, e.g. "99998.50000".
//
// Generated keys never end in a zero digit. That keeps the key space dense:
// between any two distinct generated keys another key always exists. When two
// neighbours have no free digit between them at one level, Between descends a
// level and the new key grows by one group. Nothing is ever renumbered.
//
// Each segment of the grid owns a band: the keys strictly between {b} and
// {b+1}. Bands are handed out top-down starting at TopBand; running out of
// bands is the only exhaustion condition and surfaces as ErrExhausted.
package orderkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Base is the radix of a single key digit.
	Base = 100000

	// TopBand is the band given to the first (topmost) segment.
	TopBand uint32 = Base - 2

	// DefaultStep is the distance Above/Below try to keep between siblings.
	DefaultStep uint32 = 1000

	groupWidth = 5
)

var (
	// ErrExhausted is returned when no further band can be allocated.
	ErrExhausted = errors.New("order key space exhausted")
	// ErrInvalid is returned for malformed keys or inverted bounds.
	ErrInvalid = errors.New("invalid order key")
)

// Key is an order key. Treat values as immutable.
type Key []uint32

// Parse decodes the dotted representation produced by Key.String.
func Parse(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalid)
	}
	parts := strings.Split(s, ".")
	k := make(Key, 0, len(parts))
	for _, p := range parts {
		if len(p) != groupWidth {
			return nil, fmt.Errorf("%w: group %q must be %d digits", ErrInvalid, p, groupWidth)
		}
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		k = append(k, uint32(n))
	}
	return k, nil
}

// String renders the key as dotted zero-padded groups.
func (k Key) String() string {
	if len(k) == 0 {
		return ""
	}
	var b strings.Builder
	for i, d := range k {
		if i > 0 {
			b.WriteByte('.')
		}
		fmt.Fprintf(&b, "%05d", d)
	}
	return b.String()
}

// Compare returns -1, 0 or +1 comparing a and b numerically.
func Compare(a, b Key) int {
	n := max(len(a), len(b))
	for i := range n {
		da, db := digit(a, i), digit(b, i)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		}
	}
	return 0
}

// Less reports whether k sorts strictly below o.
func (k Key) Less(o Key) bool { return Compare(k, o) < 0 }

// Equal reports whether k and o denote the same position.
func (k Key) Equal(o Key) bool { return Compare(k, o) == 0 }

// Clone returns a copy that does not share storage with k.
func (k Key) Clone() Key {
	if k == nil {
		return nil
	}
	out := make(Key, len(k))
	copy(out, k)
	return out
}

// Between returns a key strictly between lo and hi. A nil hi means "no upper
// bound"; a nil lo is the zero key.
func Between(lo, hi Key) (Key, error) {
	if hi != nil && Compare(lo, hi) >= 0 {
		return nil, fmt.Errorf("%w: %q is not below %q", ErrInvalid, lo.String(), hi.String())
	}

	out := make(Key, 0, len(lo)+1)
	bounded := hi != nil
	for i := 0; ; i++ {
		d := digit(lo, i)
		u := uint32(Base)
		if bounded {
			u = digit(hi, i)
		}
		switch {
		case u == d:
			out = append(out, d)
		case u-d > 1:
			return append(out, d+(u-d)/2), nil
		default:
			// Adjacent digits: keep lo's digit and continue one level down
			// with the upper bound lifted.
			out = append(out, d)
			bounded = false
		}
	}
}

// Range is an exclusive key interval, normally one segment's band.
type Range struct {
	Lo   Key
	Hi   Key // nil: unbounded
	Step uint32
}

// BandRange returns the range of keys strictly inside band b.
func BandRange(b, step uint32) Range {
	return Range{Lo: Key{b}, Hi: Key{b + 1}, Step: step}
}

// NextBand returns the band directly below b.
func NextBand(b uint32) (uint32, error) {
	if b == 0 {
		return 0, ErrExhausted
	}
	return b - 1, nil
}

// Contains reports whether k lies strictly inside the range.
func (r Range) Contains(k Key) bool {
	if !r.Lo.Less(k) {
		return false
	}
	return r.Hi == nil || k.Less(r.Hi)
}

// Initial is the key used for the first row of an empty range.
func (r Range) Initial() (Key, error) {
	return Between(r.Lo, r.Hi)
}

// Above returns a key strictly above k and still inside the range.
func (r Range) Above(k Key) (Key, error) {
	if !r.Contains(k) {
		return nil, fmt.Errorf("%w: %q outside range", ErrInvalid, k.String())
	}
	level := len(r.Lo)
	if r.Step > 0 && len(k) > level && k[level]+r.Step < Base {
		c := append(k[:level].Clone(), k[level]+r.Step)
		if r.Contains(c) && k.Less(c) {
			return c, nil
		}
	}
	return Between(k, r.Hi)
}

// Below returns a key strictly below k and still inside the range.
func (r Range) Below(k Key) (Key, error) {
	if !r.Contains(k) {
		return nil, fmt.Errorf("%w: %q outside range", ErrInvalid, k.String())
	}
	level := len(r.Lo)
	if r.Step > 0 && len(k) > level && k[level] > r.Step {
		c := append(k[:level].Clone(), k[level]-r.Step)
		if r.Contains(c) && c.Less(k) {
			return c, nil
		}
	}
	return Between(r.Lo, k)
}

func digit(k Key, i int) uint32 {
	if i < len(k) {
		return k[i]
	}
	return 0
}
