package graph

import "math/bits"

const wordBits = 64

// Bitset is a growable set of small integers, used to record which slots of
// a generation bucket are reachable from a ref tip.
type Bitset struct {
	words []uint64
}

// NewBitset creates an empty bitset.
func NewBitset() *Bitset {
	return &Bitset{}
}

// Set marks bit i.
func (b *Bitset) Set(i uint32) {
	w := int(i / wordBits)
	for len(b.words) <= w {
		b.words = append(b.words, 0)
	}

	b.words[w] |= 1 << (i % wordBits)
}

// Test reports whether bit i is set.
func (b *Bitset) Test(i uint32) bool {
	w := int(i / wordBits)
	if w >= len(b.words) {
		return false
	}

	return b.words[w]&(1<<(i%wordBits)) != 0
}

// Count returns the number of set bits.
func (b *Bitset) Count() int {
	var n int
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}

	return n
}

// Clone returns an independent copy of the bitset.
func (b *Bitset) Clone() *Bitset {
	words := make([]uint64, len(b.words))
	copy(words, b.words)
	return &Bitset{words: words}
}

// Bytes serializes the bitset in little-endian word order.
func (b *Bitset) Bytes() []byte {
	buf := make([]byte, len(b.words)*8)
	for i, w := range b.words {
		for j := 0; j < 8; j++ {
			buf[i*8+j] = byte(w >> (8 * j))
		}
	}

	return buf
}

// BitsetFromBytes deserializes a bitset produced by Bytes.
func BitsetFromBytes(buf []byte) *Bitset {
	words := make([]uint64, (len(buf)+7)/8)
	for i, c := range buf {
		words[i/8] |= uint64(c) << (8 * (i % 8))
	}

	return &Bitset{words: words}
}
