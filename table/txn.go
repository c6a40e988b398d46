// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package table

import (
	"fmt"

	"github.com/platinasystems/hwtable/elib"

	"github.com/platinasystems/log"
	uuid "github.com/satori/go.uuid"
)

type TxnState int

const (
	Clean TxnState = iota
	Dirty
	Committing
	Aborting
)

var txnStateNames = [...]string{
	Clean:      "clean",
	Dirty:      "dirty",
	Committing: "committing",
	Aborting:   "aborting",
}

func (s TxnState) String() string {
	if int(s) < len(txnStateNames) {
		return txnStateNames[s]
	}
	return fmt.Sprintf("TxnState(%d)", int(s))
}

type backup struct {
	h       Handle
	e       Entry
	existed bool
}

// txn holds what is needed to undo an instance's changes since the last
// commit.
type txn struct {
	id      uuid.UUID
	backups map[Handle]int
	order   []backup
	// Entry count at start.
	n uint
	// Range heaps by stage, copied before first change.
	heaps map[int]elib.Heap
}

// Manager groups changes to table instances into transactions.  Each dirty
// instance has its own backups; CommitAll and AbortAll span all of them.
type Manager struct {
	// Zero means unlimited.
	maxBackups int
	state      TxnState
	dirty      []*Instance
}

func NewManager(maxBackups int) *Manager {
	return &Manager{maxBackups: maxBackups}
}

func (m *Manager) State() TxnState { return m.state }

// Dirty lists instances with uncommitted changes.
func (m *Manager) Dirty() []*Instance { return m.dirty }

func (m *Manager) begin(i *Instance) *txn {
	if i.txn == nil {
		i.txn = &txn{
			id:      uuid.NewV4(),
			backups: make(map[Handle]int),
			n:       i.n,
		}
		m.dirty = append(m.dirty, i)
		m.state = Dirty
	}
	return i.txn
}

// done drops i from the dirty set.
func (m *Manager) done(i *Instance) {
	for k, d := range m.dirty {
		if d == i {
			copy(m.dirty[k:], m.dirty[k+1:])
			m.dirty[len(m.dirty)-1] = nil
			m.dirty = m.dirty[:len(m.dirty)-1]
			break
		}
	}
	if len(m.dirty) == 0 {
		m.state = Clean
	} else {
		m.state = Dirty
	}
}

// Reserve fails unless n more entries of i may be backed up.
func (m *Manager) Reserve(i *Instance, n int) error {
	if m.maxBackups <= 0 {
		return nil
	}
	used := 0
	if i.txn != nil {
		used = len(i.txn.order)
	}
	if used+n > m.maxBackups {
		return fmt.Errorf("%s: %w: %d backups in use, %d needed, max %d",
			i, ErrResourceExhausted, used, n, m.maxBackups)
	}
	return nil
}

// Touch saves the entry named by h, or that it does not exist, the first
// time it is touched in a transaction.  Must precede any change to the entry.
func (m *Manager) Touch(i *Instance, h Handle) error {
	if i.txn != nil {
		if _, ok := i.txn.backups[h]; ok {
			return nil
		}
	}
	if err := m.Reserve(i, 1); err != nil {
		return err
	}
	t := m.begin(i)
	b := backup{h: h}
	if e := i.entry(h); e != nil {
		b.e, b.existed = *e, true
	}
	t.backups[h] = len(t.order)
	t.order = append(t.order, b)
	return nil
}

func (m *Manager) touchRanges(i *Instance, s *Stage) {
	t := m.begin(i)
	if t.heaps == nil {
		t.heaps = make(map[int]elib.Heap)
	}
	if _, ok := t.heaps[s.index]; !ok {
		t.heaps[s.index] = s.heap().Dup()
	}
}

// TxnID identifies the open transaction of i for log correlation.
func (i *Instance) TxnID() (id uuid.UUID, ok bool) {
	if ok = i.txn != nil; ok {
		id = i.txn.id
	}
	return
}

// Commit makes changes to i permanent.  Commit of a clean instance does nothing.
func (m *Manager) Commit(i *Instance) {
	t := i.txn
	if t == nil {
		return
	}
	m.state = Committing
	if debug {
		if err := i.Validate(); err != nil {
			invariant("%s: commit %v: %v", i, t.id, err)
		}
	}
	i.txn = nil
	i.stats.Commits++
	m.done(i)
	log.Print("daemon", "info", i, ": commit ", t.id, ": ", len(t.order), " entries")
}

// Abort restores i to its state at the last commit and rewrites every
// touched slot.  Only the rewrite can fail; software state is restored
// regardless.
func (m *Manager) Abort(i *Instance) (err error) {
	t := i.txn
	if t == nil {
		return
	}
	m.state = Aborting
	i.txn = nil

	// Take out every touched entry, then put back those that existed.
	// Untouched entries never moved so their slots cannot collide.
	var refs []slotRef
	for k := len(t.order) - 1; k >= 0; k-- {
		b := &t.order[k]
		if e := i.entry(b.h); e != nil {
			refs = appendRange(refs, e)
			i.unlink(e)
			i.alloc.Release(b.h)
		}
	}
	for k := len(t.order) - 1; k >= 0; k-- {
		b := &t.order[k]
		if !b.existed {
			continue
		}
		if err := i.alloc.Reserve(b.h); err != nil {
			invariant("%s: abort %v: %v", i, t.id, err)
			continue
		}
		i.link(b.e)
		refs = appendRange(refs, &b.e)
	}
	for si, h := range t.heaps {
		i.stages[si].strategy.(*indirect).heap = h
	}
	if i.n != t.n {
		invariant("%s: abort %v: %d entries want %d", i, t.id, i.n, t.n)
		i.n = t.n
	}
	if debug {
		if err := i.Validate(); err != nil {
			invariant("%s: abort %v: %v", i, t.id, err)
		}
	}
	i.stats.Aborts++
	m.done(i)
	log.Print("daemon", "info", i, ": abort ", t.id, ": ", len(t.order), " entries restored")

	if err = i.mirror(refs); err != nil {
		i.stats.BusErrors++
		log.Print("daemon", "crit", i, ": abort ", t.id, ": mirror: ", err)
		err = fmt.Errorf("%s: abort: %w", i, err)
	}
	return
}

func (m *Manager) CommitAll() {
	for len(m.dirty) > 0 {
		m.Commit(m.dirty[len(m.dirty)-1])
	}
}

// AbortAll aborts every dirty instance, returning the first mirror error.
func (m *Manager) AbortAll() (err error) {
	for len(m.dirty) > 0 {
		if e := m.Abort(m.dirty[len(m.dirty)-1]); e != nil && err == nil {
			err = e
		}
	}
	return
}
