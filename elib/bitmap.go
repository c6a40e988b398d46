// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elib is a collection of data structures: bitmaps, pools, heaps
// and a seeded hash mixer.
package elib

import (
	"fmt"
	"math/bits"
)

type Word uint64

const WordBits = 64

// Bitmap is a growable vector of bits.  Out of range bits read as zero.
type Bitmap []Word

// index gives word index and mask for given bit index
func bitmapIndex(x uint) (i uint, m Word) {
	i = x / WordBits
	m = 1 << (x % WordBits)
	return
}

func (b Bitmap) validate(i uint) Bitmap {
	if i < uint(len(b)) {
		return b
	}
	if i < uint(cap(b)) {
		return b[:i+1]
	}
	c := make(Bitmap, i+1, 2*(i+1))
	copy(c, b)
	return c
}

func (b Bitmap) Get(x uint) bool {
	i, m := bitmapIndex(x)
	if i >= uint(len(b)) {
		return false
	}
	return b[i]&m != 0
}

// Set2 sets bit X, possibly resizing and returning new bitmap.
// Second return value is old value of bit X.
func (b Bitmap) Set2(x uint) (r Bitmap, old bool) {
	i, m := bitmapIndex(x)
	r = b.validate(i)
	old = r[i]&m != 0
	r[i] |= m
	return
}

func (b Bitmap) Set(x uint) (r Bitmap) {
	r, _ = b.Set2(x)
	return
}

func (b Bitmap) Unset2(x uint) (r Bitmap, old bool) {
	r = b
	i, m := bitmapIndex(x)
	if i >= uint(len(b)) {
		return
	}
	old = r[i]&m != 0
	r[i] &^= m
	return
}

func (b Bitmap) Unset(x uint) (r Bitmap) {
	r, _ = b.Unset2(x)
	return
}

// Next advances X to the next set bit.  Start iteration with X = ^uint(0):
//
//	for x := ^uint(0); b.Next(&x); {
//		...
//	}
func (b Bitmap) Next(x *uint) bool {
	i := *x + 1
	first := i / WordBits
	for wi := first; wi < uint(len(b)); wi++ {
		w := b[wi]
		if wi == first {
			w &^= Word(1)<<(i%WordBits) - 1
		}
		if w != 0 {
			*x = wi*WordBits + uint(bits.TrailingZeros64(uint64(w)))
			return true
		}
	}
	return false
}

// Count returns number of set bits.
func (b Bitmap) Count() (n uint) {
	for _, w := range b {
		n += uint(bits.OnesCount64(uint64(w)))
	}
	return
}

func (b Bitmap) Dup() Bitmap {
	if b == nil {
		return nil
	}
	c := make(Bitmap, len(b))
	copy(c, b)
	return c
}

// Equal compares bitmaps ignoring trailing zero words.
func (b Bitmap) Equal(c Bitmap) bool {
	if len(b) < len(c) {
		b, c = c, b
	}
	for i := range b {
		var w Word
		if i < len(c) {
			w = c[i]
		}
		if b[i] != w {
			return false
		}
	}
	return true
}

func (b Bitmap) String() string {
	s := "{"
	sep := ""
	for x := ^uint(0); b.Next(&x); {
		s += fmt.Sprintf("%s%d", sep, x)
		sep = ", "
	}
	return s + "}"
}
