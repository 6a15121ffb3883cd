package rumble

import "unicode/utf16"

// Source yields uniformly distributed floats in [0, 1).
type Source interface {
	Float64() float64
}

// Mulberry32 is the PRNG behind every rumble. It is seeded purely from the
// seed string so anyone holding a round's seed id can replay it:
//
//	state = 31-hash of the seed's UTF-16 code units (Java String.hashCode, as uint32)
//	next:  state += 0x6D2B79F5
//	       t  = (state ^ state>>15) * (state | 1)
//	       t ^= t + (t ^ t>>7) * (t | 61)
//	       out = (t ^ t>>14) / 2^32
//
// All arithmetic wraps at 32 bits.
//
// This is canonical mulberry32. The legacy JavaScript server used a variant
// that replaced the second `t ^= t + ...` with `t = t + ...` and skipped the
// final unsigned coercion, so seeds recorded by that server do not replay
// here.
type Mulberry32 struct {
	state uint32
}

// NewMulberry32 returns a generator seeded from seed.
func NewMulberry32(seed string) *Mulberry32 {
	return &Mulberry32{state: HashSeed(seed)}
}

// HashSeed folds a seed string into the initial 32-bit state.
func HashSeed(seed string) uint32 {
	var h uint32
	for _, unit := range utf16.Encode([]rune(seed)) {
		h = 31*h + uint32(unit)
	}
	return h
}

// Uint32 advances the generator and returns the next raw output.
func (m *Mulberry32) Uint32() uint32 {
	m.state += 0x6D2B79F5
	t := m.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return t ^ (t >> 14)
}

// Float64 returns the next value in [0, 1).
func (m *Mulberry32) Float64() float64 {
	return float64(m.Uint32()) / 4294967296
}

// pick returns a uniformly chosen element; items must be non-empty.
func pick[T any](src Source, items []T) T {
	return items[index(src, len(items))]
}

func index(src Source, n int) int {
	i := int(src.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
