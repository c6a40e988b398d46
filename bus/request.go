// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bus

import (
	"fmt"
)

type Opcode uint8

const (
	ReadMemory  Opcode = 0x07
	WriteMemory Opcode = 0x09
)

func (o Opcode) String() string {
	switch o {
	case ReadMemory:
		return "read"
	case WriteMemory:
		return "write"
	}
	return fmt.Sprintf("Opcode(0x%02x)", uint8(o))
}

type Cmd struct {
	Opcode  Opcode
	Stage   uint
	Address Address
	// Data to write.
	Tx Value
	// Where read data goes.
	Rx *Value
}

func (c *Cmd) String() string {
	s := fmt.Sprintf("%s stage %d %s", c.Opcode, c.Stage, c.Address)
	if c.Opcode == WriteMemory {
		s += " " + c.Tx.String()
	}
	return s
}

// Request is a queue of commands issued strictly in the order added.
type Request struct {
	cmds []Cmd
}

// Add queues a write of v to the given slot.
func (q *Request) Add(stage uint, a Address, v Value) {
	q.cmds = append(q.cmds, Cmd{Opcode: WriteMemory, Stage: stage, Address: a, Tx: v})
}

// AddRead queues a read of the given slot into *v.
func (q *Request) AddRead(stage uint, a Address, v *Value) {
	q.cmds = append(q.cmds, Cmd{Opcode: ReadMemory, Stage: stage, Address: a, Rx: v})
}

func (q *Request) Len() int    { return len(q.cmds) }
func (q *Request) Cmds() []Cmd { return q.cmds }
func (q *Request) Reset()      { q.cmds = q.cmds[:0] }

// WriteError reports the first command of a request that failed.  Commands
// before Index completed; none after it were issued.
type WriteError struct {
	Index int
	Cmd   Cmd
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("bus: cmd %d: %s: %v", e.Index, &e.Cmd, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Do issues all queued commands in order, stopping at the first failure.
// The queue is empty on return.
func (q *Request) Do(b Bus) (err error) {
	defer q.Reset()
	for i := range q.cmds {
		c := &q.cmds[i]
		switch c.Opcode {
		case WriteMemory:
			err = b.WriteSlot(c.Stage, c.Address, c.Tx)
		case ReadMemory:
			var v Value
			if v, err = b.ReadSlot(c.Stage, c.Address); err == nil && c.Rx != nil {
				*c.Rx = v
			}
		default:
			err = fmt.Errorf("unknown opcode %s", c.Opcode)
		}
		if err != nil {
			return &WriteError{Index: i, Cmd: *c, Err: err}
		}
	}
	return
}
