// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elib

import (
	"encoding/binary"
)

type hash64 uint64

// HashState holds 128 bits of seed on input and 128 bits of hash on output.
type HashState [2]hash64

func (h hash64) rotate(n uint) hash64 { return (h << n) | (h >> (64 - n)) }

func (s *HashState) mixStep(a, b, c hash64, n uint) (hash64, hash64, hash64) {
	a = a.rotate(n) + b
	c ^= a
	return a, b, c
}

func (s *HashState) mix(h0, h1, h2, h3 hash64) (hash64, hash64, hash64, hash64) {
	h2, h3, h0 = s.mixStep(h2, h3, h0, 50)
	h3, h0, h1 = s.mixStep(h3, h0, h1, 52)
	h0, h1, h2 = s.mixStep(h0, h1, h2, 30)
	h1, h2, h3 = s.mixStep(h1, h2, h3, 41)

	h2, h3, h0 = s.mixStep(h2, h3, h0, 54)
	h3, h0, h1 = s.mixStep(h3, h0, h1, 48)
	h0, h1, h2 = s.mixStep(h0, h1, h2, 38)
	h1, h2, h3 = s.mixStep(h1, h2, h3, 37)

	h2, h3, h0 = s.mixStep(h2, h3, h0, 62)
	h3, h0, h1 = s.mixStep(h3, h0, h1, 34)
	h0, h1, h2 = s.mixStep(h0, h1, h2, 5)
	h1, h2, h3 = s.mixStep(h1, h2, h3, 36)

	return h0, h1, h2, h3
}

func (*HashState) finStep(a, b hash64, n uint) (hash64, hash64) {
	a ^= b
	b = b.rotate(n)
	a += b
	return a, b
}

// Finalize hash state.
func (s *HashState) finalize(h0, h1, h2, h3 hash64) {
	h3, h2 = s.finStep(h3, h2, 15)
	h0, h3 = s.finStep(h0, h3, 52)
	h1, h0 = s.finStep(h1, h0, 26)
	h2, h1 = s.finStep(h2, h1, 51)

	h3, h2 = s.finStep(h3, h2, 28)
	h0, h3 = s.finStep(h0, h3, 9)
	h1, h0 = s.finStep(h1, h0, 47)
	h2, h1 = s.finStep(h2, h1, 54)

	h3, h2 = s.finStep(h3, h2, 32)
	h0, h3 = s.finStep(h0, h3, 25)
	h1, h0 = s.finStep(h1, h0, 63)

	s[0] = h0
	s[1] = h1
}

func (s *HashState) init() (hash64, hash64, hash64, hash64) {
	// A constant which:
	//  * is not zero
	//  * is odd
	//  * is a not-very-regular mix of 1's and 0's
	//  * does not need any other special mathematical properties.
	const seedConst hash64 = 0xdeadbeefdeadbeef
	return s[0], s[1], seedConst, seedConst
}

// Mix up to 256 bits of data x0..x3 into hash state.
func (s *HashState) mixUint64(h0, h1, h2, h3 hash64, x0, x1, x2, x3 uint64) (hash64, hash64, hash64, hash64) {
	h2 += hash64(x0)
	h3 += hash64(x1)
	h0, h1, h2, h3 = s.mix(h0, h1, h2, h3)
	h0 += hash64(x2)
	h1 += hash64(x3)
	return h0, h1, h2, h3
}

func (s *HashState) Seed(s0, s1 uint64) { s[0], s[1] = hash64(s0), hash64(s1) }

func (s *HashState) HashUint64(x0, x1, x2, x3 uint64) {
	h0, h1, h2, h3 := s.init()
	h0, h1, h2, h3 = s.mixUint64(h0, h1, h2, h3, x0, x1, x2, x3)
	s.finalize(h0, h1, h2, h3)
}

// HashBytes replaces seed with hash of b.
func (s *HashState) HashBytes(b []byte) {
	h0, h1, h2, h3 := s.init()
	// Mix in data length.
	h0 += hash64(len(b))
	for len(b) >= 32 {
		h0, h1, h2, h3 = s.mixUint64(h0, h1, h2, h3,
			binary.LittleEndian.Uint64(b[0:]), binary.LittleEndian.Uint64(b[8:]),
			binary.LittleEndian.Uint64(b[16:]), binary.LittleEndian.Uint64(b[24:]))
		b = b[32:]
	}
	if len(b) > 0 {
		var tail [32]byte
		copy(tail[:], b)
		h0, h1, h2, h3 = s.mixUint64(h0, h1, h2, h3,
			binary.LittleEndian.Uint64(tail[0:]), binary.LittleEndian.Uint64(tail[8:]),
			binary.LittleEndian.Uint64(tail[16:]), binary.LittleEndian.Uint64(tail[24:]))
	}
	s.finalize(h0, h1, h2, h3)
}

func (s *HashState) Sum64() uint64 { return uint64(s[0]) }
func (s *HashState) Sum128() (uint64, uint64) {
	return uint64(s[0]), uint64(s[1])
}
