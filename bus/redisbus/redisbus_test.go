// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package redisbus

import (
	"fmt"
	"testing"

	"github.com/platinasystems/hwtable/bus"
)

// fakeConn serves the hash commands used here from memory.
type fakeConn struct {
	hashes map[string]map[string]string
	cmds   []string
}

func newFakeConn() *fakeConn { return &fakeConn{hashes: make(map[string]map[string]string)} }

func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Err() error   { return nil }

func (c *fakeConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	c.cmds = append(c.cmds, cmd)
	key := fmt.Sprint(args[0])
	switch cmd {
	case "HSET":
		h := c.hashes[key]
		if h == nil {
			h = make(map[string]string)
			c.hashes[key] = h
		}
		h[fmt.Sprint(args[1])] = fmt.Sprint(args[2])
		return int64(1), nil
	case "HGET":
		if v, ok := c.hashes[key][fmt.Sprint(args[1])]; ok {
			return []byte(v), nil
		}
		return nil, nil
	case "HDEL":
		delete(c.hashes[key], fmt.Sprint(args[1]))
		return int64(1), nil
	case "DEL":
		delete(c.hashes, key)
		return int64(1), nil
	}
	return nil, fmt.Errorf("%s: unsupported", cmd)
}

func (c *fakeConn) Send(cmd string, args ...interface{}) error { return nil }
func (c *fakeConn) Flush() error                               { return nil }
func (c *fakeConn) Receive() (interface{}, error)              { return nil, nil }

func TestBus(t *testing.T) {
	c := newFakeConn()
	b := New(c, "t")
	var _ bus.Bus = b
	v := bus.Value{1, 0xffffffff}
	if err := b.WriteSlot(2, 17, v); err != nil {
		t.Fatal(err)
	}
	if got := c.hashes["t.stage2"]["17"]; got != "ffffffff00000001" {
		t.Errorf("stored %q", got)
	}
	got, err := b.ReadSlot(2, 17)
	if err != nil || !got.Equal(v) {
		t.Errorf("read got %v %v", got, err)
	}
	if got, err = b.ReadSlot(2, 18); err != nil || got != nil {
		t.Errorf("unwritten got %v %v", got, err)
	}
	if err = b.WriteSlot(2, 17, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.hashes["t.stage2"]["17"]; ok {
		t.Error("zero value not deleted")
	}
	if err = b.Clear(2); err != nil || len(c.hashes) != 0 {
		t.Errorf("clear: %v %v", err, c.hashes)
	}
}

func TestPublisher(t *testing.T) {
	c := newFakeConn()
	p := NewPublisher(c, "hwtable")
	err := p.Publish("em", map[string]uint64{"places": 3, "aborts": 1})
	if err != nil {
		t.Fatal(err)
	}
	h := c.hashes["hwtable"]
	if h["em.places"] != "3" || h["em.aborts"] != "1" {
		t.Errorf("got %v", h)
	}
	// Fields go out in name order.
	if len(c.cmds) != 2 {
		t.Errorf("cmds %v", c.cmds)
	}
}
