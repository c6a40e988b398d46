// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bus

import (
	"fmt"
)

// MemGetSetter encodes itself into (or decodes itself from) slot words.
type MemGetSetter interface {
	// Number of bits in memory.
	MemBits() int
	// Method to encode/decode memory as slice of uint32.
	MemGetSet(b []uint32, isSet bool)
}

// Words returns number of 32 bit words needed to hold n bits.
func Words(n int) int { return (n + 31) / 32 }

// Encode returns the slot value for m.
func Encode(m MemGetSetter) Value {
	v := make(Value, Words(m.MemBits()))
	m.MemGetSet(v, true)
	return v
}

// Decode fills in m from slot value v.  Short values read as zero.
func Decode(v Value, m MemGetSetter) {
	b := make([]uint32, Words(m.MemBits()))
	copy(b, v)
	m.MemGetSet(b, false)
}

func MemGet1(x []uint32, lo int) bool {
	l0, l1 := uint(lo/32), uint(lo%32)
	return x[l0]&(1<<l1) != 0
}

func MemSet1(x []uint32, lo int, v bool) {
	l0, l1 := uint(lo/32), uint(lo%32)
	m := uint32(1) << l1
	if v {
		x[l0] |= m
	} else {
		x[l0] &^= m
	}
}

func MemGetSet1(v *bool, x []uint32, lo int, isSet bool) int {
	if isSet {
		MemSet1(x, lo, *v)
	} else {
		*v = MemGet1(x, lo)
	}
	return lo + 1
}

// Get or Set bits lo <= i <= hi, so hi - lo + 1 bits total.
func MemGetSet(v *uint64, x []uint32, hi, lo int, isSet bool) int {
	nBits := 1 + uint(hi-lo)
	if nBits > 64 {
		panic(fmt.Errorf("more than 64 bits"))
	}
	r := uint64(0)
	if isSet {
		r = *v
	}
	for nDone, i := uint(0), uint(lo); nDone < nBits; {
		i0, i1 := i/32, i%32
		m := 32 - i1
		if m > nBits-nDone {
			m = nBits - nDone
		}
		mask := uint64(1)<<m - 1
		if isSet {
			x[i0] = x[i0]&^uint32(mask<<i1) | uint32(((r>>nDone)&mask)<<i1)
		} else {
			r |= ((uint64(x[i0]) >> i1) & mask) << nDone
		}
		nDone += m
		i += m
	}
	if !isSet {
		*v = r
	}
	return hi + 1
}

func MemGet(x []uint32, hi, lo int) (v uint64) { MemGetSet(&v, x, hi, lo, false); return }
func MemSet(x []uint32, hi, lo int, v uint64)  { MemGetSet(&v, x, hi, lo, true) }

func MemGetSetUint32(v *uint32, x []uint32, hi, lo int, isSet bool) int {
	w := uint64(*v)
	MemGetSet(&w, x, hi, lo, isSet)
	*v = uint32(w)
	return hi + 1
}

// MemGetSetBytes packs b most significant byte first into bits [lo, lo+8*len(b)).
func MemGetSetBytes(b []byte, x []uint32, lo int, isSet bool) int {
	for i := len(b) - 1; i >= 0; i-- {
		w := uint64(b[i])
		MemGetSet(&w, x, lo+7, lo, isSet)
		b[i] = byte(w)
		lo += 8
	}
	return lo
}

// TCAM x/y cell encoding: x = mask & key; y = mask &^ key
// x/y are the bits that are masked with value of 1/0 respectively.
// Decoding: key = x, mask = x | y
func TcamEncode(key, mask []byte) (x, y []byte) {
	x, y = make([]byte, len(key)), make([]byte, len(key))
	for i := range key {
		m := byte(0xff)
		if mask != nil {
			m = 0
			if i < len(mask) {
				m = mask[i]
			}
		}
		x[i], y[i] = m&key[i], m&^key[i]
	}
	return
}

func TcamDecode(x, y []byte) (key, mask []byte) {
	key, mask = make([]byte, len(x)), make([]byte, len(x))
	for i := range x {
		key[i], mask[i] = x[i], x[i]|y[i]
	}
	return
}

// TcamMatch reports whether a search key hits an x/y encoded cell.
func TcamMatch(x, y, key []byte) bool {
	for i := range x {
		var k byte
		if i < len(key) {
			k = key[i]
		}
		// Cell bit with x set requires 1; with y set requires 0.
		if k&x[i] != x[i] || ^k&y[i] != y[i] {
			return false
		}
	}
	return true
}
