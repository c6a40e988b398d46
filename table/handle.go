// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package table

import (
	"fmt"

	"github.com/platinasystems/hwtable/elib"
)

// Handle names an entry: index in bits 0-31, pipe in bits 32-39 and
// generation in bits 40-63.
type Handle uint64

const (
	HandleNil Handle = 0
	// Pipe of handles issued by symmetric instances.
	AllPipes = 0xff

	pipeShift = 32
	genShift  = 40
	maxGen    = 1<<24 - 1
)

func MakeHandle(pipe uint, index uint, gen uint32) Handle {
	return Handle(uint64(gen)<<genShift | uint64(pipe&0xff)<<pipeShift | uint64(uint32(index)))
}

func (h Handle) Index() uint { return uint(uint32(h)) }
func (h Handle) Pipe() uint  { return uint(h>>pipeShift) & 0xff }
func (h Handle) Gen() uint32 { return uint32(h >> genShift) }

func (h Handle) String() string {
	if h == HandleNil {
		return "nil"
	}
	if h.Pipe() == AllPipes {
		return fmt.Sprintf("%d.%d", h.Index(), h.Gen())
	}
	return fmt.Sprintf("%d/%d.%d", h.Pipe(), h.Index(), h.Gen())
}

// HandleAllocator issues handles for one pipe.  Indices are recycled last in
// first out; an index's generation advances every time it is issued so that
// handles to removed entries never match again.
type HandleAllocator struct {
	pipe uint
	pool elib.Pool
	// Generation of live handle by index.
	gens []uint32
	// Last generation issued by index.
	last []uint32
}

func NewHandleAllocator(pipe uint, max uint) *HandleAllocator {
	a := &HandleAllocator{pipe: pipe}
	a.pool.SetMaxLen(max)
	return a
}

func (a *HandleAllocator) validate(i uint) {
	for uint(len(a.gens)) <= i {
		a.gens = append(a.gens, 0)
		a.last = append(a.last, 0)
	}
}

func (a *HandleAllocator) Allocate() (h Handle, err error) {
	i, err := a.pool.GetIndex()
	if err != nil {
		err = fmt.Errorf("handle: %w: %v", ErrResourceExhausted, err)
		return
	}
	a.validate(i)
	g := a.last[i] + 1
	if g > maxGen {
		g = 1
	}
	a.last[i], a.gens[i] = g, g
	h = MakeHandle(a.pipe, i, g)
	return
}

func (a *HandleAllocator) Release(h Handle) error {
	if !a.Contains(h) {
		return fmt.Errorf("handle %v: %w", h, ErrNotFound)
	}
	i := h.Index()
	a.gens[i] = 0
	a.pool.PutIndex(i)
	return nil
}

// Reserve makes exactly h live again.
func (a *HandleAllocator) Reserve(h Handle) error {
	i := h.Index()
	if h.Pipe() != a.pipe&0xff || h.Gen() == 0 {
		return fmt.Errorf("handle %v: %w", h, ErrNotFound)
	}
	if !a.pool.IsFree(i) {
		return fmt.Errorf("handle %v: %w", h, ErrConflict)
	}
	if !a.pool.Reserve(i) {
		return fmt.Errorf("handle %v: %w", h, ErrResourceExhausted)
	}
	a.validate(i)
	a.gens[i] = h.Gen()
	if a.last[i] < h.Gen() {
		a.last[i] = h.Gen()
	}
	return nil
}

func (a *HandleAllocator) Contains(h Handle) bool {
	i := h.Index()
	return h.Pipe() == a.pipe&0xff && i < uint(len(a.gens)) &&
		!a.pool.IsFree(i) && a.gens[i] == h.Gen() && h.Gen() != 0
}

// Live returns number of live handles.
func (a *HandleAllocator) Live() uint { return a.pool.Elts() }

// Handle returns the live handle with given index.
func (a *HandleAllocator) Handle(i uint) (h Handle, ok bool) {
	if ok = !a.pool.IsFree(i) && i < uint(len(a.gens)); ok {
		h = MakeHandle(a.pipe, i, a.gens[i])
	}
	return
}

// Next advances i to the next live index; start with i = ^uint(0).
func (a *HandleAllocator) Next(i *uint) bool { return a.pool.Next(i) }

// Handles lists live handles in index order.
func (a *HandleAllocator) Handles() (hs []Handle) {
	for i := ^uint(0); a.Next(&i); {
		h, _ := a.Handle(i)
		hs = append(hs, h)
	}
	return
}
