// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package geom

import (
	"fmt"
	"math/bits"
)

// Field selects bits [Lo, Lo+Width) of a hash value.
type Field struct {
	Lo    uint `json:"lo"`
	Width uint `json:"width"`
}

func (f Field) Get(h uint64) uint {
	if f.Width == 0 {
		return 0
	}
	return uint((h >> f.Lo) & (1<<f.Width - 1))
}

func (f Field) valid() bool { return f.Width <= 32 && f.Lo+f.Width <= 64 }

// NoSubword is returned by Way.Subword for ways with one entry per word.
const NoSubword = ^uint(0)

// Way is one hash function's window into a stage.  Its slot group is
// [Base, Base+Size()).
type Way struct {
	Base uint `json:"base"`
	// Bits addressing a slot within a select group.
	Index Field `json:"index"`
	// Bits choosing the select group.
	Select Field `json:"select"`
	// Bits choosing the entry within a multi-entry word.
	Sub Field `json:"subword"`
}

func (w *Way) Size() uint { return 1 << (w.Index.Width + w.Select.Width) }

// Slot is the candidate slot for hash value h.
func (w *Way) Slot(h uint64) uint {
	return w.Base + (w.Select.Get(h)<<w.Index.Width | w.Index.Get(h))
}

func (w *Way) Subword(h uint64) uint {
	if w.Sub.Width == 0 {
		return NoSubword
	}
	return w.Sub.Get(h)
}

func (w *Way) EntriesPerWord() uint { return 1 << w.Sub.Width }

type Stage struct {
	Capacity uint   `json:"capacity"`
	Seed     uint64 `json:"seed"`
	Ways     []Way  `json:"ways"`
}

// Candidates appends one slot per way, in way order, given one hash value per way.
func (s *Stage) Candidates(hs []uint64, buf []uint) []uint {
	for i := range s.Ways {
		buf = append(buf, s.Ways[i].Slot(hs[i]))
	}
	return buf
}

// WayOf returns the way whose slot group contains slot or -1.
func (s *Stage) WayOf(slot uint) int {
	for i := range s.Ways {
		w := &s.Ways[i]
		if slot >= w.Base && slot < w.Base+w.Size() {
			return i
		}
	}
	return -1
}

func (s *Stage) validate(m Mode) error {
	if s.Capacity == 0 {
		return fmt.Errorf("%w: zero capacity", ErrInvalid)
	}
	if m != Hashed {
		return nil
	}
	if len(s.Ways) == 0 {
		return fmt.Errorf("%w: no ways", ErrInvalid)
	}
	for i := range s.Ways {
		w := &s.Ways[i]
		if !w.Index.valid() || !w.Select.valid() || !w.Sub.valid() ||
			w.Index.Width+w.Select.Width >= bits.UintSize {
			return fmt.Errorf("%w: way %d: bad field", ErrInvalid, i)
		}
		if w.Base > s.Capacity || w.Size() > s.Capacity-w.Base {
			return fmt.Errorf("%w: way %d: slots [%d, %d) beyond capacity %d",
				ErrInvalid, i, w.Base, w.Base+w.Size(), s.Capacity)
		}
		for j := 0; j < i; j++ {
			v := &s.Ways[j]
			if w.Base < v.Base+v.Size() && v.Base < w.Base+w.Size() {
				return fmt.Errorf("%w: ways %d and %d overlap", ErrInvalid, j, i)
			}
		}
	}
	return nil
}

func log2(n uint) (l uint, ok bool) {
	for 1<<l < n {
		l++
	}
	ok = n != 0 && 1<<l == n
	return
}

// Seed for stage i when none is given.
func stageSeed(i int) uint64 { return uint64(i+1) * 0x9e3779b97f4a7c15 }

// Uniform returns a hashed config of equal stages, each split into ways of
// equal power of 2 size.
func Uniform(name string, stages, capacity, ways uint) (*Config, error) {
	if ways == 0 || capacity%ways != 0 {
		return nil, fmt.Errorf("%s: %w: %d slots over %d ways", name, ErrInvalid, capacity, ways)
	}
	perWay := capacity / ways
	l, ok := log2(perWay)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %d slots per way not power of 2", name, ErrInvalid, perWay)
	}
	c := &Config{
		Name:      name,
		Symmetric: true,
		Stages:    make([]Stage, stages),
	}
	for i := range c.Stages {
		s := &c.Stages[i]
		s.Capacity = capacity
		s.Seed = stageSeed(i)
		s.Ways = make([]Way, ways)
		for w := range s.Ways {
			s.Ways[w] = Way{Base: uint(w) * perWay, Index: Field{Width: l}}
		}
	}
	c.setDefaults()
	return c, c.Validate()
}
