// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elib

import (
	"errors"
)

// Pool hands out dense indices [0, Len()) recycling freed ones last in first out.
type Pool struct {
	// Vector of free indices
	freeIndices []uint32
	// Bitmap of free indices
	freeBitmap Bitmap
	// One more than largest index ever allocated.
	len uint
	// Non-zero to limit size of pool.
	maxLen uint
}

// ErrPoolTooLarge is returned when allocation would exceed maxLen.
var ErrPoolTooLarge = errors.New("pool: too large")

// Get first free pool index if available.
func (p *Pool) GetIndex() (i uint, err error) {
	if l := len(p.freeIndices); l != 0 {
		i = uint(p.freeIndices[l-1])
		p.freeIndices = p.freeIndices[:l-1]
		p.freeBitmap = p.freeBitmap.Unset(i)
		return
	}
	if p.maxLen != 0 && p.len >= p.maxLen {
		err = ErrPoolTooLarge
		return
	}
	i = p.len
	p.len++
	return
}

// Put (free) given pool index.  Freeing the last index shrinks the pool so
// that allocate followed by free leaves the pool exactly as it was.
func (p *Pool) PutIndex(i uint) (ok bool) {
	if ok = i < p.len && !p.freeBitmap.Get(i); !ok {
		return
	}
	if i == p.len-1 {
		p.len--
		return
	}
	p.freeIndices = append(p.freeIndices, uint32(i))
	p.freeBitmap = p.freeBitmap.Set(i)
	return
}

// Reserve marks given index as allocated.  Returns false if the index is
// already in use or beyond maxLen.
func (p *Pool) Reserve(i uint) (ok bool) {
	if i >= p.len {
		if p.maxLen != 0 && i >= p.maxLen {
			return
		}
		for j := p.len; j < i; j++ {
			p.freeIndices = append(p.freeIndices, uint32(j))
			p.freeBitmap = p.freeBitmap.Set(j)
		}
		p.len = i + 1
		ok = true
		return
	}
	if !p.freeBitmap.Get(i) {
		return
	}
	// Most recently freed indices are at the end.
	for k := len(p.freeIndices) - 1; k >= 0; k-- {
		if uint(p.freeIndices[k]) == i {
			copy(p.freeIndices[k:], p.freeIndices[k+1:])
			p.freeIndices = p.freeIndices[:len(p.freeIndices)-1]
			break
		}
	}
	p.freeBitmap = p.freeBitmap.Unset(i)
	ok = true
	return
}

func (p *Pool) Reset() {
	if p.freeIndices != nil {
		p.freeIndices = p.freeIndices[:0]
	}
	p.freeBitmap = nil
	p.len = 0
}

func (p *Pool) IsFree(i uint) (ok bool) { return i >= p.len || p.freeBitmap.Get(i) }
func (p *Pool) Len() uint               { return p.len }
func (p *Pool) Elts() uint              { return p.len - uint(len(p.freeIndices)) }
func (p *Pool) FreeLen() uint           { return uint(len(p.freeIndices)) }
func (p *Pool) MaxLen() uint            { return p.maxLen }
func (p *Pool) SetMaxLen(x uint)        { p.maxLen = x }

// Next advances I to the next allocated index; start with I = ^uint(0).
func (p *Pool) Next(i *uint) bool {
	for j := *i + 1; j < p.len; j++ {
		if !p.freeBitmap.Get(j) {
			*i = j
			return true
		}
	}
	return false
}

func (p *Pool) Dup() (q Pool) {
	q = *p
	q.freeIndices = append([]uint32(nil), p.freeIndices...)
	q.freeBitmap = p.freeBitmap.Dup()
	return
}
