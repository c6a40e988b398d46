// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package open selects the slot memory backend for table commands.
package open

import (
	"fmt"
	"time"

	"github.com/platinasystems/hwtable/bus"
	"github.com/platinasystems/hwtable/bus/mmapbus"
	"github.com/platinasystems/hwtable/bus/redisbus"
	"github.com/platinasystems/hwtable/bus/sqlitebus"
	"github.com/platinasystems/hwtable/geom"
)

const (
	Usage       = "[-bus mem|redis|sqlite|mmap] [-addr ADDR]"
	DefaultAddr = "localhost:6379"
	dialTimeout = 5 * time.Second
)

// Parameters recognized by Bus.
var Parms = []interface{}{"-bus", "-addr"}

type Slots interface {
	bus.Bus
	Close() error
}

type memSlots struct{ *bus.Mem }

func (memSlots) Close() error { return nil }

// Stages is the number of hardware stages a table of given geometry uses.
func Stages(c *geom.Config) uint {
	n := uint(len(c.Stages))
	if !c.Symmetric {
		n *= c.Pipes
	}
	return n
}

// Words is the slot width of a table whose keys have given length.
func Words(keyLen int) uint {
	return uint(bus.Words(1 + 1 + 32 + 64 + 2*8*keyLen))
}

// Bus opens and clears the named backend.  Addr is the redis server, the
// sqlite database or the mmap file; the table name gives a default.
func Bus(kind, addr string, c *geom.Config, keyLen int) (Slots, error) {
	stages := Stages(c)
	switch kind {
	case "", "mem":
		return memSlots{bus.NewMem()}, nil
	case "redis":
		if len(addr) == 0 {
			addr = DefaultAddr
		}
		conn, err := redisbus.Dial("tcp", addr, dialTimeout)
		if err != nil {
			return nil, err
		}
		b := redisbus.New(conn, c.Name)
		all := make([]uint, stages)
		for i := range all {
			all[i] = uint(i)
		}
		if err = b.Clear(all...); err != nil {
			b.Close()
			return nil, err
		}
		return b, nil
	case "sqlite":
		if len(addr) == 0 {
			addr = c.Name + ".db"
		}
		b, err := sqlitebus.Open(addr)
		if err != nil {
			return nil, err
		}
		if err = b.Clear(); err != nil {
			b.Close()
			return nil, err
		}
		return b, nil
	case "mmap":
		if len(addr) == 0 {
			addr = c.Name + ".slots"
		}
		var slots uint
		for i := range c.Stages {
			if n := c.Stages[i].Capacity; n > slots {
				slots = n
			}
		}
		b, err := mmapbus.Open(addr, stages, slots, Words(keyLen))
		if err != nil {
			return nil, err
		}
		b.Clear()
		return b, nil
	}
	return nil, fmt.Errorf("%s: unknown bus", kind)
}

// Publisher returns a stats publisher for dest: "local" for the machine's
// redisd or a redis server address.
func Publisher(dest, key string) (p *redisbus.Publisher, close func() error, err error) {
	if dest == "local" {
		return redisbus.Local(), func() error { return nil }, nil
	}
	conn, err := redisbus.Dial("tcp", dest, dialTimeout)
	if err != nil {
		return
	}
	return redisbus.NewPublisher(conn, key), conn.Close, nil
}
