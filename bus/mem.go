// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bus

import (
	"errors"
	"sync"
)

// ErrInjected is returned by a Mem bus once its write budget set by FailAfter
// is spent.
var ErrInjected = errors.New("bus: injected write failure")

type memKey struct {
	stage uint
	a     Address
}

// Mem is a bus backed by process memory.  Every successful write is logged.
type Mem struct {
	mu    sync.Mutex
	slots map[memKey]Value
	log   []Cmd
	// Writes left before failures start; negative disables injection.
	left int
}

func NewMem() *Mem {
	return &Mem{slots: make(map[memKey]Value), left: -1}
}

// FailAfter lets n more writes succeed; all later writes fail with
// ErrInjected.  Negative n disables injection.
func (m *Mem) FailAfter(n int) {
	m.mu.Lock()
	m.left = n
	m.mu.Unlock()
}

func (m *Mem) WriteSlot(stage uint, a Address, v Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.left == 0 {
		return ErrInjected
	}
	if m.left > 0 {
		m.left--
	}
	k := memKey{stage, a}
	c := append(Value(nil), v...)
	if c.IsZero() {
		delete(m.slots, k)
	} else {
		m.slots[k] = c
	}
	m.log = append(m.log, Cmd{Opcode: WriteMemory, Stage: stage, Address: a, Tx: c})
	return nil
}

// ReadSlot returns nil for slots never written or cleared.
func (m *Mem) ReadSlot(stage uint, a Address) (Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append(Value(nil), m.slots[memKey{stage, a}]...), nil
}

// Writes returns the write log in issue order.
func (m *Mem) Writes() []Cmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Cmd(nil), m.log...)
}

func (m *Mem) ResetLog() {
	m.mu.Lock()
	m.log = m.log[:0]
	m.mu.Unlock()
}

// Used returns number of non-zero slots of given stage.
func (m *Mem) Used(stage uint) (n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.slots {
		if k.stage == stage {
			n++
		}
	}
	return
}
