// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cuckoo finds a slot for a new key among its hash candidates,
// relocating existing occupants along a bounded breadth first path when all
// candidates are taken.
package cuckoo

import (
	"fmt"

	"github.com/platinasystems/hwtable/elib"
)

// NoSlot is the From of the move inserting the new key.
const NoSlot = ^uint(0)

// Graph is the occupancy view the placer searches.
type Graph interface {
	IsFree(slot uint) bool
	// Occupant identifies the entry in an occupied slot.
	Occupant(slot uint) uint64
	// Alternates appends the occupant's other candidate slots to buf.
	Alternates(slot uint, buf []uint) []uint
}

type Kind int

const (
	DirectHit Kind = iota
	Relocate
	Failure
)

var kindNames = [...]string{
	DirectHit: "direct",
	Relocate:  "relocate",
	Failure:   "failure",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type Move struct {
	Occupant uint64
	From, To uint
}

func (m Move) String() string {
	if m.From == NoSlot {
		return fmt.Sprintf("new -> %d", m.To)
	}
	return fmt.Sprintf("%d: %d -> %d", m.Occupant, m.From, m.To)
}

// MoveList is in apply order: the first move fills the free slot at the end
// of the path and the last inserts the new key.
type MoveList []Move

// Relocations is the number of existing entries moved.
func (l MoveList) Relocations() int {
	if len(l) == 0 {
		return 0
	}
	return len(l) - 1
}

type Result struct {
	Kind Kind
	// Slot the new key lands in.
	Slot  uint
	Moves MoveList
}

type Stats struct {
	DirectHits  uint64
	Searches    uint64
	Relocations uint64
	Failures    uint64
}

func (s *Stats) Add(o *Stats) {
	s.DirectHits += o.DirectHits
	s.Searches += o.Searches
	s.Relocations += o.Relocations
	s.Failures += o.Failures
}

type node struct {
	slot uint
	// Distance from a candidate.
	depth uint
	// Queue index of predecessor or -1 for candidates.
	parent int
}

// Placer is not safe for concurrent use; it keeps search state between calls.
type Placer struct {
	MaxMoves uint
	Stats    Stats

	queue   []node
	visited elib.Bitmap
	alts    []uint
}

func (p *Placer) clear() {
	for i := range p.queue {
		p.visited = p.visited.Unset(p.queue[i].slot)
	}
	p.queue = p.queue[:0]
}

// Place chooses where a key with given candidates goes.  The graph is only
// read; the caller applies the returned moves.
func (p *Placer) Place(candidates []uint, g Graph) (r Result) {
	for _, c := range candidates {
		if g.IsFree(c) {
			p.Stats.DirectHits++
			r.Kind, r.Slot = DirectHit, c
			r.Moves = MoveList{{From: NoSlot, To: c}}
			return
		}
	}

	p.Stats.Searches++
	defer p.clear()
	for _, c := range candidates {
		var seen bool
		if p.visited, seen = p.visited.Set2(c); !seen {
			p.queue = append(p.queue, node{slot: c, parent: -1})
		}
	}
	for head := 0; head < len(p.queue); head++ {
		n := p.queue[head]
		if n.depth >= p.MaxMoves {
			continue
		}
		p.alts = g.Alternates(n.slot, p.alts[:0])
		for _, a := range p.alts {
			if p.visited.Get(a) {
				continue
			}
			if g.IsFree(a) {
				r = p.path(head, a, g)
				p.Stats.Relocations += uint64(r.Moves.Relocations())
				return
			}
			p.visited = p.visited.Set(a)
			p.queue = append(p.queue, node{slot: a, depth: n.depth + 1, parent: head})
		}
	}
	p.Stats.Failures++
	r.Kind = Failure
	return
}

// path walks back from queue entry i whose occupant moves to free slot.
func (p *Placer) path(i int, free uint, g Graph) (r Result) {
	r.Kind = Relocate
	r.Moves = make(MoveList, 0, p.queue[i].depth+2)
	to := free
	for ; i >= 0; i = p.queue[i].parent {
		s := p.queue[i].slot
		r.Moves = append(r.Moves, Move{Occupant: g.Occupant(s), From: s, To: to})
		to = s
	}
	r.Slot = to
	r.Moves = append(r.Moves, Move{From: NoSlot, To: to})
	return
}
