// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elib

import (
	"fmt"
	"sort"
)

// Index gives common type for indices in Heaps, Pools, ...
type Index uint32

const MaxIndex Index = ^Index(0)

// A Heap allocates power of 2 sized, naturally aligned blocks of an
// underlying array of Len() elements.  The array is not part of the Heap.
// Freed blocks are merged with their free buddies.
type Heap struct {
	elts map[Index]heapElt

	// Slices of free block offsets indexed by log2 size.
	free [][]Index

	// Total number of indices managed.
	len Index

	// Number of indices currently allocated.
	used Index
}

type heapElt struct {
	log2Size uint8

	// Index on free list for this size or MaxIndex if not free.
	free Index
}

func (e *heapElt) isFree() bool { return e.free != MaxIndex }

type HeapUsage struct {
	Used, Free uint64
}

func log2Ceil(n uint) (l uint) {
	for uint(1)<<l < n {
		l++
	}
	return
}

// Init covers [0, n) with the largest aligned free blocks that fit.
func (h *Heap) Init(n uint) {
	h.elts = make(map[Index]heapElt)
	h.free = h.free[:0]
	h.len = Index(n)
	h.used = 0
	for o := uint(0); o < n; {
		l := log2Ceil(n - o + 1)
		for l > 0 && (o&(1<<l-1) != 0 || o+1<<l > n) {
			l--
		}
		h.addFree(Index(o), uint8(l))
		o += 1 << l
	}
}

func (h *Heap) addFree(o Index, l uint8) {
	for int(l) >= len(h.free) {
		h.free = append(h.free, nil)
	}
	h.elts[o] = heapElt{log2Size: l, free: Index(len(h.free[l]))}
	h.free[l] = append(h.free[l], o)
}

func (h *Heap) removeFree(o Index) {
	e := h.elts[o]
	l := e.log2Size
	fl := h.free[l]
	last := Index(len(fl) - 1)
	if e.free > last || fl[e.free] != o {
		panic("corrupt free list")
	}
	if e.free < last {
		g := fl[last]
		fl[e.free] = g
		ge := h.elts[g]
		ge.free = e.free
		h.elts[g] = ge
	}
	h.free[l] = fl[:last]
	delete(h.elts, o)
}

// GetAligned allocates a block of at least size elements aligned to its own
// power of 2 size.
func (h *Heap) GetAligned(size uint) (offset uint, ok bool) {
	if size == 0 {
		panic("size")
	}
	want := log2Ceil(size)
	l := want
	for l < uint(len(h.free)) && len(h.free[l]) == 0 {
		l++
	}
	if l >= uint(len(h.free)) {
		return
	}
	fl := h.free[l]
	o := fl[len(fl)-1]
	h.removeFree(o)

	// Split larger block; upper halves go back on free lists.
	for l > want {
		l--
		h.addFree(o+Index(1)<<l, uint8(l))
	}
	h.elts[o] = heapElt{log2Size: uint8(want), free: MaxIndex}
	h.used += Index(1) << want
	offset, ok = uint(o), true
	return
}

// Put frees block at given offset, returning its size.
func (h *Heap) Put(offset uint) (size uint, ok bool) {
	o := Index(offset)
	e, found := h.elts[o]
	if !found || e.isFree() {
		return
	}
	delete(h.elts, o)
	l := e.log2Size
	size, ok = uint(1)<<l, true
	h.used -= Index(size)
	for {
		b := o ^ Index(1)<<l
		be, found := h.elts[b]
		if !found || !be.isFree() || be.log2Size != l {
			break
		}
		h.removeFree(b)
		if b < o {
			o = b
		}
		l++
	}
	h.addFree(o, l)
	return
}

// Len returns size of allocated block at offset or zero.
func (h *Heap) Len(offset uint) uint {
	if e, ok := h.elts[Index(offset)]; ok && !e.isFree() {
		return 1 << e.log2Size
	}
	return 0
}

func (h *Heap) MaxLen() uint { return uint(h.len) }

func (h *Heap) GetUsage() (u HeapUsage) {
	u.Used = uint64(h.used)
	u.Free = uint64(h.len - h.used)
	return
}

type HeapBlock struct{ Offset, Len uint }

// Blocks lists allocated blocks in offset order.
func (h *Heap) Blocks() (bs []HeapBlock) {
	for o, e := range h.elts {
		if !e.isFree() {
			bs = append(bs, HeapBlock{Offset: uint(o), Len: 1 << e.log2Size})
		}
	}
	sort.Slice(bs, func(i, j int) bool { return bs[i].Offset < bs[j].Offset })
	return
}

// Dup returns an independent copy used to snapshot and later restore a heap.
func (h *Heap) Dup() (c Heap) {
	c.len, c.used = h.len, h.used
	c.elts = make(map[Index]heapElt, len(h.elts))
	for k, v := range h.elts {
		c.elts[k] = v
	}
	c.free = make([][]Index, len(h.free))
	for i := range h.free {
		c.free[i] = append([]Index(nil), h.free[i]...)
	}
	return
}

func (h *Heap) String() (s string) {
	u := h.GetUsage()
	s = fmt.Sprintf("%d blocks, used %d, free %d", len(h.elts), u.Used, u.Free)
	return
}
