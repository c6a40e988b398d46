// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package table

import (
	"fmt"

	"github.com/platinasystems/hwtable/cuckoo"
	"github.com/platinasystems/hwtable/elib"
	"github.com/platinasystems/hwtable/geom"
)

// strategy is one of *hashed, *indirect or direct.
type strategy interface {
	mode() geom.Mode
}

type hashed struct {
	placer cuckoo.Placer
}

type indirect struct {
	heap elib.Heap
}

type direct struct{}

func (*hashed) mode() geom.Mode   { return geom.Hashed }
func (*indirect) mode() geom.Mode { return geom.Indirect }
func (direct) mode() geom.Mode    { return geom.Direct }

// Stage is the occupancy of one hardware stage.
type Stage struct {
	index    int
	geom     *geom.Stage
	slots    []Handle
	n        uint
	strategy strategy
}

func newStage(index int, g *geom.Stage, c *geom.Config) *Stage {
	s := &Stage{
		index: index,
		geom:  g,
		slots: make([]Handle, g.Capacity),
	}
	switch c.Mode {
	case geom.Hashed:
		s.strategy = &hashed{placer: cuckoo.Placer{MaxMoves: c.MaxMoves}}
	case geom.Indirect:
		x := &indirect{}
		x.heap.Init(g.Capacity)
		s.strategy = x
	default:
		s.strategy = direct{}
	}
	return s
}

func (s *Stage) Index() int           { return s.index }
func (s *Stage) Geometry() *geom.Stage { return s.geom }
func (s *Stage) Capacity() uint        { return uint(len(s.slots)) }

// Len is the number of occupied slots.
func (s *Stage) Len() uint { return s.n }

// Handle returns occupant of slot or HandleNil.
func (s *Stage) Handle(slot uint) Handle {
	if slot >= uint(len(s.slots)) {
		return HandleNil
	}
	return s.slots[slot]
}

func (s *Stage) set(slot uint, h Handle) {
	if s.slots[slot] != HandleNil {
		invariant("stage %d slot %d: set %v over %v", s.index, slot, h, s.slots[slot])
		s.n--
	}
	s.slots[slot] = h
	s.n++
}

func (s *Stage) clear(slot uint) {
	if s.slots[slot] == HandleNil {
		invariant("stage %d slot %d: clear of free slot", s.index, slot)
		return
	}
	s.slots[slot] = HandleNil
	s.n--
}

func (s *Stage) heap() *elib.Heap {
	if x, ok := s.strategy.(*indirect); ok {
		return &x.heap
	}
	return nil
}

// ReserveRange allocates a power of 2 aligned range of at least count slots.
func (s *Stage) ReserveRange(count uint) (base uint, err error) {
	h := s.heap()
	if h == nil {
		err = fmt.Errorf("stage %d: %w: not indirect", s.index, ErrConflict)
		return
	}
	if count == 0 {
		count = 1
	}
	var ok bool
	if base, ok = h.GetAligned(count); !ok {
		err = fmt.Errorf("stage %d: %w: no range of %d", s.index, ErrResourceExhausted, count)
	}
	return
}

func (s *Stage) FreeRange(base uint) error {
	h := s.heap()
	if h == nil {
		return fmt.Errorf("stage %d: %w: not indirect", s.index, ErrConflict)
	}
	if _, ok := h.Put(base); !ok {
		return fmt.Errorf("stage %d: range %d: %w", s.index, base, ErrNotFound)
	}
	return nil
}

// Ranges lists allocated ranges of indirect stages.
func (s *Stage) Ranges() []elib.HeapBlock {
	if h := s.heap(); h != nil {
		return h.Blocks()
	}
	return nil
}

func (s *Stage) Stats() (st cuckoo.Stats) {
	if x, ok := s.strategy.(*hashed); ok {
		st = x.placer.Stats
	}
	return
}

// stageGraph is the cuckoo view of a hashed stage.
type stageGraph struct {
	i *Instance
	s *Stage
}

func (g stageGraph) IsFree(slot uint) bool     { return g.s.slots[slot] == HandleNil }
func (g stageGraph) Occupant(slot uint) uint64 { return uint64(g.s.slots[slot]) }

func (g stageGraph) Alternates(slot uint, buf []uint) []uint {
	e := g.i.entry(g.s.slots[slot])
	if e == nil {
		return buf
	}
	for _, c := range e.cands {
		if c != slot {
			buf = append(buf, c)
		}
	}
	return buf
}
