// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package table places entries in hardware lookup tables and keeps software
// and hardware copies in step.  Changes are grouped into transactions that
// either commit or are undone, slots included.
package table

import (
	"fmt"

	"github.com/platinasystems/hwtable/bus"
	"github.com/platinasystems/hwtable/geom"
	"github.com/platinasystems/hwtable/keyhash"
)

// Table is the set of instances of one table: a single instance when
// symmetric, otherwise one per pipe.
type Table struct {
	cfg       geom.Config
	mgr       *Manager
	bus       bus.Bus
	engine    keyhash.Engine
	instances []*Instance
}

// New makes a table with given geometry.  With a nil manager the table gets
// its own; with a nil bus nothing is mirrored.
func New(cfg *geom.Config, mgr *Manager, b bus.Bus) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Table{
		cfg:    *cfg.Dup(),
		mgr:    mgr,
		bus:    b,
		engine: keyhash.New(cfg.Hash),
	}
	if t.cfg.MaxMoves == 0 {
		t.cfg.MaxMoves = geom.DefaultMaxMoves
	}
	if t.mgr == nil {
		t.mgr = NewManager(cfg.MaxBackups)
	}
	t.build()
	return t, nil
}

func (t *Table) build() {
	t.instances = t.instances[:0]
	if t.cfg.Symmetric {
		t.instances = append(t.instances, newInstance(t, AllPipes))
		return
	}
	for p := uint(0); p < t.cfg.Pipes; p++ {
		t.instances = append(t.instances, newInstance(t, p))
	}
}

func (t *Table) String() string         { return t.cfg.Name }
func (t *Table) Config() *geom.Config   { return &t.cfg }
func (t *Table) Manager() *Manager      { return t.mgr }
func (t *Table) Instances() []*Instance { return t.instances }

func (t *Table) isBusy() bool {
	for _, i := range t.instances {
		if i.n != 0 || i.txn != nil {
			return true
		}
	}
	return false
}

// SetEngine replaces the key hash of an empty table.
func (t *Table) SetEngine(e keyhash.Engine) error {
	if t.isBusy() {
		return fmt.Errorf("%s: set hash: %w: not empty", t, ErrConflict)
	}
	t.engine = e
	return nil
}

// Instance returns the instance for pipe; all pipes share one when symmetric.
func (t *Table) Instance(pipe uint) *Instance {
	if t.cfg.Symmetric {
		return t.instances[0]
	}
	if pipe < uint(len(t.instances)) {
		return t.instances[pipe]
	}
	return nil
}

// InstanceOf returns the instance that issued h or nil.
func (t *Table) InstanceOf(h Handle) *Instance {
	p := h.Pipe()
	if t.cfg.Symmetric {
		if p == AllPipes {
			return t.instances[0]
		}
		return nil
	}
	if p < uint(len(t.instances)) {
		return t.instances[p]
	}
	return nil
}

func (t *Table) Get(h Handle) (e Entry, ok bool) {
	if i := t.InstanceOf(h); i != nil {
		e, ok = i.Get(h)
	}
	return
}

func (t *Table) Remove(h Handle) error {
	i := t.InstanceOf(h)
	if i == nil {
		return fmt.Errorf("%s: handle %v: %w", t, h, ErrNotFound)
	}
	return i.Remove(h)
}

// SetSymmetric switches between one shared instance and one per pipe.  The
// table must be empty and clean.
func (t *Table) SetSymmetric(sym bool, pipes uint) error {
	if t.isBusy() {
		return fmt.Errorf("%s: set symmetric: %w: not empty", t, ErrConflict)
	}
	if !sym && (pipes == 0 || pipes > geom.MaxPipes) {
		return fmt.Errorf("%s: %w: %d pipes", t, geom.ErrInvalid, pipes)
	}
	t.cfg.Symmetric = sym
	if !sym {
		t.cfg.Pipes = pipes
	}
	t.build()
	return nil
}

func (t *Table) Len() (n uint) {
	for _, i := range t.instances {
		n += i.n
	}
	return
}

func (t *Table) Stats() (s Stats) {
	for _, i := range t.instances {
		x := i.Stats()
		s.Add(&x)
	}
	return
}

func (t *Table) Validate() error {
	for _, i := range t.instances {
		if err := i.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) Commit() {
	for _, i := range t.instances {
		t.mgr.Commit(i)
	}
}

func (t *Table) Abort() (err error) {
	for _, i := range t.instances {
		if e := t.mgr.Abort(i); e != nil && err == nil {
			err = e
		}
	}
	return
}
