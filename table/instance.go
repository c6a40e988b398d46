// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package table

import (
	"fmt"

	"github.com/platinasystems/hwtable/cuckoo"
	"github.com/platinasystems/hwtable/geom"

	"github.com/platinasystems/log"
)

// Rate limit per key placement failure messages.
var failures = log.NewLimited(100)

// Instance is a table's entries for one pipe, or for all pipes of a
// symmetric table.  It is not safe for concurrent use.
type Instance struct {
	t        *Table
	pipe     uint
	alloc    *HandleAllocator
	stages   []*Stage
	entries  []Entry
	byKey    map[string]Handle
	byMember map[uint32]Handle
	// Number of live entries.
	n     uint
	stats Stats
	// Non-nil while dirty.
	txn *txn
}

func newInstance(t *Table, pipe uint) *Instance {
	c := &t.cfg
	max := c.MaxHandles
	if max == 0 {
		max = c.Capacity()
	}
	i := &Instance{
		t:        t,
		pipe:     pipe,
		alloc:    NewHandleAllocator(pipe, max),
		byKey:    make(map[string]Handle),
		byMember: make(map[uint32]Handle),
	}
	for si := range c.Stages {
		i.stages = append(i.stages, newStage(si, &c.Stages[si], c))
	}
	return i
}

func (i *Instance) String() string {
	if i.pipe == AllPipes {
		return i.t.cfg.Name
	}
	return fmt.Sprintf("%s/pipe%d", i.t.cfg.Name, i.pipe)
}

func (i *Instance) Pipe() uint       { return i.pipe }
func (i *Instance) Stages() []*Stage { return i.stages }
func (i *Instance) Len() uint        { return i.n }

func (i *Instance) Capacity() (n uint) {
	for _, s := range i.stages {
		n += s.Capacity()
	}
	return
}

func (i *Instance) IsDirty() bool { return i.txn != nil }

func (i *Instance) entry(h Handle) *Entry {
	if !i.alloc.Contains(h) || h.Index() >= uint(len(i.entries)) {
		return nil
	}
	if e := &i.entries[h.Index()]; e.Handle == h {
		return e
	}
	return nil
}

func (i *Instance) Get(h Handle) (e Entry, ok bool) {
	if p := i.entry(h); p != nil {
		e, ok = *p, true
	}
	return
}

func (i *Instance) Lookup(key, mask []byte) (h Handle, ok bool) {
	h, ok = i.byKey[keyOf(key, mask)]
	return
}

func (i *Instance) ByMember(m uint32) (h Handle, ok bool) {
	h, ok = i.byMember[m]
	return
}

func (i *Instance) next(x uint) (Handle, bool) {
	for i.alloc.Next(&x) {
		h, _ := i.alloc.Handle(x)
		if e := i.entry(h); e != nil && !e.Fixed {
			return h, true
		}
	}
	return HandleNil, false
}

// FirstHandle starts enumeration of entries in handle index order.
func (i *Instance) FirstHandle() (Handle, bool) { return i.next(^uint(0)) }

// NextHandle continues enumeration after h, which may since have been removed.
func (i *Instance) NextHandle(h Handle) (Handle, bool) { return i.next(h.Index()) }

// link installs e in the occupancy index.  Its handle must be live.
func (i *Instance) link(e Entry) {
	x := e.Handle.Index()
	for uint(len(i.entries)) <= x {
		i.entries = append(i.entries, Entry{})
	}
	i.entries[x] = e
	if e.Placed {
		s := i.stages[e.Stage]
		for k := uint(0); k < e.Size; k++ {
			s.set(e.Slot+k, e.Handle)
		}
	}
	if e.Key != nil {
		i.byKey[keyOf(e.Key, e.Mask)] = e.Handle
	}
	if e.HasMember {
		i.byMember[e.Member] = e.Handle
	}
	i.n++
}

// unlink removes e from the occupancy index leaving its handle live.
func (i *Instance) unlink(e *Entry) {
	if e.Placed {
		s := i.stages[e.Stage]
		for k := uint(0); k < e.Size; k++ {
			s.clear(e.Slot + k)
		}
	}
	if e.Key != nil {
		delete(i.byKey, keyOf(e.Key, e.Mask))
	}
	if e.HasMember {
		delete(i.byMember, e.Member)
	}
	*e = Entry{}
	i.n--
}

func newEntry(a *Args) Entry {
	return Entry{
		Key:       cloneBytes(a.Key),
		Mask:      cloneBytes(a.Mask),
		Payload:   a.Payload,
		Member:    a.Member,
		HasMember: a.HasMember,
		Size:      1,
		Subword:   geom.NoSubword,
		Fixed:     a.Fixed,
	}
}

func subword(s *Stage, e *Entry, slot uint) uint {
	if w := s.geom.WayOf(slot); w >= 0 && w < len(e.hs) {
		return s.geom.Ways[w].Subword(e.hs[w])
	}
	return geom.NoSubword
}

// Place adds an entry and returns its handle.
func (i *Instance) Place(a *Args) (h Handle, err error) {
	if a == nil {
		err = fmt.Errorf("%s: place: nil args", i)
		return
	}
	if a.Key != nil {
		if x, ok := i.byKey[keyOf(a.Key, a.Mask)]; ok {
			if i.t.cfg.UpdateInPlace {
				return x, i.update(x, a)
			}
			err = fmt.Errorf("%s: key %x: %w", i, a.Key, ErrDuplicate)
			return
		}
	}
	if a.HasMember {
		if _, ok := i.byMember[a.Member]; ok {
			err = fmt.Errorf("%s: member %d: %w", i, a.Member, ErrDuplicate)
			return
		}
	}
	switch i.t.cfg.Mode {
	case geom.Hashed:
		return i.placeHashed(a)
	case geom.Indirect:
		return i.placeIndirect(a)
	default:
		return i.placeDirect(a)
	}
}

func (i *Instance) placeHashed(a *Args) (h Handle, err error) {
	for _, s := range i.stages {
		x := s.strategy.(*hashed)
		hs := i.t.engine.Compute(a.Key, s.geom, nil)
		cands := s.geom.Candidates(hs, nil)
		r := x.placer.Place(cands, stageGraph{i, s})
		if r.Kind == cuckoo.Failure {
			continue
		}
		e := newEntry(a)
		e.Stage, e.hs, e.cands = s.index, hs, cands
		return i.applyMoves(s, r.Moves, e)
	}
	i.stats.PlacementFailures++
	failures.Print("daemon", "warning", i, ": key ", fmt.Sprintf("%x", a.Key), ": placement failure")
	err = fmt.Errorf("%s: key %x: %w", i, a.Key, ErrPlacementFailure)
	return
}

// applyMoves backs up every entry on the path, then moves them in order and
// mirrors each step.
func (i *Instance) applyMoves(s *Stage, moves cuckoo.MoveList, e Entry) (h Handle, err error) {
	m := i.t.mgr
	if err = m.Reserve(i, len(moves)); err != nil {
		return
	}
	if h, err = i.allocate(); err != nil {
		return
	}
	for _, mv := range moves {
		if mv.From != cuckoo.NoSlot {
			if err = m.Touch(i, Handle(mv.Occupant)); err != nil {
				i.alloc.Release(h)
				return HandleNil, err
			}
		}
	}

	refs := make([]slotRef, 0, len(moves))
	for _, mv := range moves {
		if mv.From == cuckoo.NoSlot {
			e.Handle, e.Slot, e.Placed = h, mv.To, true
			e.Subword = subword(s, &e, mv.To)
			i.link(e)
		} else {
			o := i.entry(Handle(mv.Occupant))
			s.clear(mv.From)
			s.set(mv.To, o.Handle)
			o.Slot = mv.To
			o.Subword = subword(s, o, mv.To)
		}
		refs = append(refs, slotRef{s.index, mv.To})
	}
	i.stats.Places++
	if err = i.mirror(refs); err != nil {
		return HandleNil, i.busFailed(err)
	}
	return
}

// allocate issues a handle and records that it did not exist.
func (i *Instance) allocate() (h Handle, err error) {
	if h, err = i.alloc.Allocate(); err != nil {
		err = fmt.Errorf("%s: %w", i, err)
		return
	}
	if err = i.t.mgr.Touch(i, h); err != nil {
		i.alloc.Release(h)
		h = HandleNil
	}
	return
}

func (i *Instance) placeIndirect(a *Args) (h Handle, err error) {
	if err = i.t.mgr.Reserve(i, 1); err != nil {
		return
	}
	e := newEntry(a)
	if a.Size > 1 {
		e.Size = a.Size
	}
	for _, s := range i.stages {
		i.t.mgr.touchRanges(i, s)
		base, rerr := s.ReserveRange(e.Size)
		if rerr != nil {
			continue
		}
		if h, err = i.allocate(); err != nil {
			s.FreeRange(base)
			return
		}
		e.Handle, e.Stage, e.Slot, e.Placed = h, s.index, base, true
		i.link(e)
		i.stats.Places++
		if err = i.mirror(appendRange(nil, &e)); err != nil {
			return HandleNil, i.busFailed(err)
		}
		return
	}
	i.stats.PlacementFailures++
	err = fmt.Errorf("%s: range of %d: %w", i, e.Size, ErrResourceExhausted)
	return
}

func (i *Instance) placeDirect(a *Args) (h Handle, err error) {
	if a.Stage < 0 || a.Stage >= len(i.stages) || a.Slot >= i.stages[a.Stage].Capacity() {
		err = fmt.Errorf("%s: stage %d slot %d: %w", i, a.Stage, a.Slot, ErrNotFound)
		return
	}
	s := i.stages[a.Stage]
	if o := s.slots[a.Slot]; o != HandleNil {
		err = fmt.Errorf("%s: stage %d slot %d: held by %v: %w", i, a.Stage, a.Slot, o, ErrConflict)
		return
	}
	if err = i.t.mgr.Reserve(i, 1); err != nil {
		return
	}
	if h, err = i.allocate(); err != nil {
		return
	}
	e := newEntry(a)
	e.Handle, e.Stage, e.Slot, e.Placed = h, a.Stage, a.Slot, true
	i.link(e)
	i.stats.Places++
	if err = i.mirror([]slotRef{{a.Stage, a.Slot}}); err != nil {
		return HandleNil, i.busFailed(err)
	}
	return
}

// update replaces the payload of an existing entry.
func (i *Instance) update(h Handle, a *Args) (err error) {
	if err = i.t.mgr.Reserve(i, 1); err != nil {
		return
	}
	if err = i.t.mgr.Touch(i, h); err != nil {
		return
	}
	e := i.entry(h)
	e.Payload = a.Payload
	i.stats.Updates++
	if err = i.mirror(appendRange(nil, e)); err != nil {
		return i.busFailed(err)
	}
	return
}

func (i *Instance) Remove(h Handle) (err error) {
	e := i.entry(h)
	if e == nil {
		return fmt.Errorf("%s: handle %v: %w", i, h, ErrNotFound)
	}
	m := i.t.mgr
	if err = m.Reserve(i, 1); err != nil {
		return
	}
	if err = m.Touch(i, h); err != nil {
		return
	}
	refs := appendRange(nil, e)
	s := i.stages[e.Stage]
	if s.heap() != nil && e.Placed {
		m.touchRanges(i, s)
		if err := s.FreeRange(e.Slot); err != nil {
			invariant("%s: remove %v: %v", i, h, err)
		}
	}
	i.unlink(e)
	i.alloc.Release(h)
	i.stats.Removes++
	if err = i.mirror(refs); err != nil {
		return i.busFailed(err)
	}
	return
}

func (i *Instance) RemoveMember(m uint32) error {
	h, ok := i.byMember[m]
	if !ok {
		return fmt.Errorf("%s: member %d: %w", i, m, ErrNotFound)
	}
	return i.Remove(h)
}

// busFailed aborts the transaction after a failed mirror write.
func (i *Instance) busFailed(err error) error {
	i.stats.BusErrors++
	log.Print("daemon", "err", i, ": mirror: ", err)
	if aerr := i.t.mgr.Abort(i); aerr != nil {
		return fmt.Errorf("%s: mirror: %w (abort: %v)", i, err, aerr)
	}
	return fmt.Errorf("%s: mirror: %w", i, err)
}
