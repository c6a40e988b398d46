// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package table

import (
	"fmt"

	"github.com/platinasystems/hwtable/bus"
)

type slotRef struct {
	stage int
	slot  uint
}

func appendRange(refs []slotRef, e *Entry) []slotRef {
	if !e.Placed {
		return refs
	}
	for k := uint(0); k < e.Size; k++ {
		refs = append(refs, slotRef{e.Stage, e.Slot + k})
	}
	return refs
}

// slotValue encodes an entry as written to hardware: valid bit, member,
// payload then key as TCAM x and y.
type slotValue struct{ e *Entry }

func (v slotValue) MemBits() int { return 1 + 1 + 32 + 64 + 2*8*len(v.e.Key) }

func (v slotValue) MemGetSet(b []uint32, isSet bool) {
	valid := true
	i := bus.MemGetSet1(&valid, b, 0, isSet)
	i = bus.MemGetSet1(&v.e.HasMember, b, i, isSet)
	i = bus.MemGetSetUint32(&v.e.Member, b, i+31, i, isSet)
	i = bus.MemGetSet(&v.e.Payload, b, i+63, i, isSet)
	x, y := bus.TcamEncode(v.e.Key, v.e.Mask)
	i = bus.MemGetSetBytes(x, b, i, isSet)
	bus.MemGetSetBytes(y, b, i, isSet)
}

// busStage numbers hardware stages: per pipe instances own consecutive
// groups of stages.
func (i *Instance) busStage(stage int) uint {
	if i.pipe == AllPipes {
		return uint(stage)
	}
	return i.pipe*uint(len(i.stages)) + uint(stage)
}

// value is what hardware should hold for a slot; nil for free slots.
func (i *Instance) value(stage int, slot uint) bus.Value {
	e := i.entry(i.stages[stage].slots[slot])
	if e == nil {
		return nil
	}
	return bus.Encode(slotValue{e})
}

// mirror writes the current contents of refs to the bus in order.
func (i *Instance) mirror(refs []slotRef) error {
	b := i.t.bus
	if b == nil {
		return nil
	}
	var q bus.Request
	for _, r := range refs {
		q.Add(i.busStage(r.stage), bus.Address(r.slot), i.value(r.stage, r.slot))
	}
	return q.Do(b)
}

// Sync rewrites every slot of the instance.
func (i *Instance) Sync() error {
	var refs []slotRef
	for _, s := range i.stages {
		for slot := range s.slots {
			refs = append(refs, slotRef{s.index, uint(slot)})
		}
	}
	if err := i.mirror(refs); err != nil {
		i.stats.BusErrors++
		return fmt.Errorf("%s: sync: %w", i, err)
	}
	return nil
}

// Audit reads back every slot and compares it with the software state.
func (i *Instance) Audit() error {
	b := i.t.bus
	if b == nil {
		return nil
	}
	for _, s := range i.stages {
		for slot := range s.slots {
			got, err := b.ReadSlot(i.busStage(s.index), bus.Address(slot))
			if err != nil {
				return fmt.Errorf("%s: audit: %w", i, err)
			}
			if want := i.value(s.index, uint(slot)); !got.Equal(want) {
				return fmt.Errorf("%s: stage %d slot %d: hardware %v want %v: %w",
					i, s.index, slot, got, want, ErrConflict)
			}
		}
	}
	return nil
}
