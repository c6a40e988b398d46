// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package table

import (
	"fmt"

	"github.com/platinasystems/hwtable/elib"
	"github.com/platinasystems/hwtable/geom"
)

// Validate checks that entries, slots, handles and ranges agree.
func (i *Instance) Validate() error {
	var live uint
	for x := ^uint(0); i.alloc.Next(&x); {
		h, _ := i.alloc.Handle(x)
		e := i.entry(h)
		if e == nil {
			return fmt.Errorf("%s: handle %v: no entry", i, h)
		}
		live++
		if err := i.validateEntry(e); err != nil {
			return err
		}
	}
	if live != i.n {
		return fmt.Errorf("%s: %d live handles, count %d", i, live, i.n)
	}
	if uint(len(i.byKey)) > i.n || uint(len(i.byMember)) > i.n {
		return fmt.Errorf("%s: %d keys %d members for %d entries", i, len(i.byKey), len(i.byMember), i.n)
	}
	for _, s := range i.stages {
		var n uint
		for slot, h := range s.slots {
			if h == HandleNil {
				continue
			}
			n++
			e := i.entry(h)
			if e == nil {
				return fmt.Errorf("%s: stage %d slot %d: stale %v", i, s.index, slot, h)
			}
			if e.Stage != s.index || uint(slot) < e.Slot || uint(slot) >= e.Slot+e.Size {
				return fmt.Errorf("%s: stage %d slot %d: %v is elsewhere", i, s.index, slot, e)
			}
		}
		if n != s.n {
			return fmt.Errorf("%s: stage %d: %d slots used, count %d", i, s.index, n, s.n)
		}
	}
	return nil
}

func (i *Instance) validateEntry(e *Entry) error {
	if e.Key != nil {
		if h, ok := i.byKey[keyOf(e.Key, e.Mask)]; !ok || h != e.Handle {
			return fmt.Errorf("%s: %v: key index %v", i, e, h)
		}
	}
	if e.HasMember {
		if h, ok := i.byMember[e.Member]; !ok || h != e.Handle {
			return fmt.Errorf("%s: %v: member index %v", i, e, h)
		}
	}
	if !e.Placed {
		return nil
	}
	if e.Stage < 0 || e.Stage >= len(i.stages) {
		return fmt.Errorf("%s: %v: bad stage", i, e)
	}
	s := i.stages[e.Stage]
	if e.Slot+e.Size > s.Capacity() {
		return fmt.Errorf("%s: %v: beyond capacity", i, e)
	}
	for k := uint(0); k < e.Size; k++ {
		if s.slots[e.Slot+k] != e.Handle {
			return fmt.Errorf("%s: %v: slot %d holds %v", i, e, e.Slot+k, s.slots[e.Slot+k])
		}
	}
	switch x := s.strategy.(type) {
	case *hashed:
		found := false
		for _, c := range e.cands {
			found = found || c == e.Slot
		}
		if !found {
			return fmt.Errorf("%s: %v: slot not a candidate %v", i, e, e.cands)
		}
		if want := subword(s, e, e.Slot); want != e.Subword {
			return fmt.Errorf("%s: %v: subword %d want %d", i, e, e.Subword, want)
		}
	case *indirect:
		if l := x.heap.Len(e.Slot); l < e.Size {
			return fmt.Errorf("%s: %v: range of %d", i, e, l)
		}
	}
	return nil
}

// Snapshot is a comparable copy of an instance's state.
type Snapshot struct {
	Len     uint
	Handles []Handle
	Entries []Entry
	Slots   [][]Handle
	Ranges  [][]elib.HeapBlock
}

func (i *Instance) Snapshot() (s Snapshot) {
	s.Len = i.n
	s.Handles = i.alloc.Handles()
	for _, h := range s.Handles {
		if e := i.entry(h); e != nil {
			s.Entries = append(s.Entries, *e)
		}
	}
	for _, st := range i.stages {
		s.Slots = append(s.Slots, append([]Handle(nil), st.slots...))
		if i.t.cfg.Mode == geom.Indirect {
			s.Ranges = append(s.Ranges, st.Ranges())
		}
	}
	return
}
