// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package table

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/platinasystems/hwtable/bus"
	"github.com/platinasystems/hwtable/geom"
	"github.com/platinasystems/hwtable/keyhash"
)

// fixedHash gives each key its per way hash values.
type fixedHash map[string][]uint64

func (m fixedHash) Compute(key []byte, s *geom.Stage, hs []uint64) []uint64 {
	return append(hs, m[string(key)]...)
}

// twoWay is a one stage table with two ways of perWay slots each.
func twoWay(perWay, moves uint) *geom.Config {
	var l uint
	for 1<<l < perWay {
		l++
	}
	return &geom.Config{
		Name:      "t",
		Symmetric: true,
		MaxMoves:  moves,
		Stages: []geom.Stage{{
			Capacity: 2 * perWay,
			Seed:     1,
			Ways: []geom.Way{
				{Base: 0, Index: geom.Field{Width: l}},
				{Base: perWay, Index: geom.Field{Width: l}},
			},
		}},
	}
}

func newTestTable(t *testing.T, c *geom.Config, e keyhash.Engine) (*Table, *bus.Mem) {
	m := bus.NewMem()
	tb, err := New(c, nil, m)
	if err != nil {
		t.Fatal(err)
	}
	if e != nil {
		if err = tb.SetEngine(e); err != nil {
			t.Fatal(err)
		}
	}
	return tb, m
}

func place(t *testing.T, i *Instance, key string) Handle {
	t.Helper()
	h, err := i.Place(&Args{Key: []byte(key), Payload: uint64(len(key))})
	if err != nil {
		t.Fatalf("place %s: %v", key, err)
	}
	return h
}

func slotOf(t *testing.T, i *Instance, h Handle) uint {
	t.Helper()
	e, ok := i.Get(h)
	if !ok {
		t.Fatalf("%v: not found", h)
	}
	return e.Slot
}

func writeAddrs(m *bus.Mem) (as []bus.Address) {
	for _, c := range m.Writes() {
		as = append(as, c.Address)
	}
	return
}

func TestRoundTrip(t *testing.T) {
	c, err := geom.Uniform("rt", 2, 64, 4)
	if err != nil {
		t.Fatal(err)
	}
	tb, m := newTestTable(t, c, nil)
	i := tb.Instance(0)
	key := []byte{10, 0, 0, 1}
	h, err := i.Place(&Args{Key: key, Payload: 7, Member: 3, HasMember: true})
	if err != nil {
		t.Fatal(err)
	}
	key[0] = 99
	e, ok := i.Get(h)
	if !ok || e.Payload != 7 || e.Key[0] != 10 || !e.Placed || e.Handle != h {
		t.Fatalf("got %v", &e)
	}
	if x, ok := i.Lookup([]byte{10, 0, 0, 1}, nil); !ok || x != h {
		t.Errorf("lookup got %v", x)
	}
	if x, ok := i.ByMember(3); !ok || x != h {
		t.Errorf("by member got %v", x)
	}
	if err = i.Audit(); err != nil {
		t.Error(err)
	}
	if err = i.Remove(h); err != nil {
		t.Fatal(err)
	}
	if _, ok = i.Get(h); ok {
		t.Error("get after remove")
	}
	if err = i.Remove(h); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove: %v", err)
	}
	if m.Used(0)+m.Used(1) != 0 {
		t.Error("hardware not cleared")
	}
	tb.Manager().CommitAll()
	if i.Len() != 0 || tb.Manager().State() != Clean {
		t.Errorf("len %d state %v", i.Len(), tb.Manager().State())
	}
}

func TestDirectHitStats(t *testing.T) {
	c, _ := geom.Uniform("dh", 1, 64, 4)
	tb, _ := newTestTable(t, c, nil)
	i := tb.Instance(0)
	place(t, i, "a")
	before := i.Stats()
	place(t, i, "b")
	after := i.Stats()
	if after.Searches != before.Searches {
		t.Errorf("searches %d -> %d", before.Searches, after.Searches)
	}
	if after.DirectHits != before.DirectHits+1 || after.Places != 2 {
		t.Errorf("stats %+v", after)
	}
}

// Four slots in two ways of two.  The new key's candidates are both held
// and each holder has its alternate free.
func TestFourSlotEviction(t *testing.T) {
	hash := fixedHash{
		"A": {0, 1}, // slots 0, 3
		"T": {1, 0}, // slots 1, 2
		"B": {1, 0}, // slots 1, 2
		"N": {0, 0}, // slots 0, 2
	}
	tb, m := newTestTable(t, twoWay(2, 4), hash)
	i := tb.Instance(0)
	a := place(t, i, "A")
	tmp := place(t, i, "T")
	b := place(t, i, "B")
	if err := i.Remove(tmp); err != nil {
		t.Fatal(err)
	}
	tb.Commit()
	if slotOf(t, i, a) != 0 || slotOf(t, i, b) != 2 {
		t.Fatalf("setup: A at %d B at %d", slotOf(t, i, a), slotOf(t, i, b))
	}
	before := i.Stats()
	m.ResetLog()

	n := place(t, i, "N")
	// MoveList of two: A to its alternate then N into its first candidate.
	if got, want := writeAddrs(m), []bus.Address{3, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("writes got %v want %v", got, want)
	}
	if slotOf(t, i, n) != 0 || slotOf(t, i, a) != 3 || slotOf(t, i, b) != 2 {
		t.Errorf("N at %d A at %d B at %d", slotOf(t, i, n), slotOf(t, i, a), slotOf(t, i, b))
	}
	s := i.Stages()[0]
	if s.Handle(1) != HandleNil || s.Len() != 3 {
		t.Errorf("slot 1 %v len %d", s.Handle(1), s.Len())
	}
	after := i.Stats()
	if after.Searches != before.Searches+1 || after.Relocations != before.Relocations+1 {
		t.Errorf("stats %+v", after)
	}
	if err := i.Validate(); err != nil {
		t.Error(err)
	}
	if err := i.Audit(); err != nil {
		t.Error(err)
	}
}

func chainHash() fixedHash {
	// Way 1 slots are 8 + value.  N reaches free slot 10 only through
	// K1, K3 and K4.
	return fixedHash{
		"K4": {2, 2}, // 2, 10
		"K3": {2, 1}, // 2, 9
		"K1": {0, 1}, // 0, 9
		"K2": {0, 0}, // 0, 8
		"N":  {0, 0}, // 0, 8
	}
}

func TestBoundedDepth(t *testing.T) {
	for _, x := range []struct {
		moves uint
		ok    bool
	}{
		{2, false},
		{3, true},
		{4, true},
	} {
		tb, m := newTestTable(t, twoWay(8, x.moves), chainHash())
		i := tb.Instance(0)
		for _, k := range []string{"K4", "K3", "K1", "K2"} {
			place(t, i, k)
		}
		before := i.Snapshot()
		m.ResetLog()
		h, err := i.Place(&Args{Key: []byte("N")})
		if !x.ok {
			if !errors.Is(err, ErrPlacementFailure) {
				t.Errorf("moves %d: got %v want ErrPlacementFailure", x.moves, err)
			}
			if !reflect.DeepEqual(i.Snapshot(), before) || len(m.Writes()) != 0 {
				t.Errorf("moves %d: failed placement changed state", x.moves)
			}
			if i.Stats().PlacementFailures != 1 {
				t.Errorf("stats %+v", i.Stats())
			}
			continue
		}
		if err != nil {
			t.Fatalf("moves %d: %v", x.moves, err)
		}
		want := []bus.Address{10, 2, 9, 0}
		if got := writeAddrs(m); !reflect.DeepEqual(got, want) {
			t.Errorf("moves %d: writes got %v want %v", x.moves, got, want)
		}
		if slotOf(t, i, h) != 0 {
			t.Errorf("N at %d", slotOf(t, i, h))
		}
		if err = i.Validate(); err != nil {
			t.Error(err)
		}
	}
}

func TestCollidingKeys(t *testing.T) {
	hash := fixedHash{}
	keys := []string{"a", "b", "c", "d"}
	for _, k := range keys {
		hash[k] = []uint64{5, 5}
	}
	tb, _ := newTestTable(t, twoWay(8, 100), hash)
	i := tb.Instance(0)
	place(t, i, "a")
	place(t, i, "b")
	for _, k := range keys[2:] {
		if _, err := i.Place(&Args{Key: []byte(k)}); !errors.Is(err, ErrPlacementFailure) {
			t.Errorf("%s: got %v", k, err)
		}
	}
	if i.Len() != 2 {
		t.Errorf("len %d", i.Len())
	}
}

func TestDuplicate(t *testing.T) {
	c, _ := geom.Uniform("dup", 1, 64, 4)
	tb, _ := newTestTable(t, c, nil)
	i := tb.Instance(0)
	h := place(t, i, "x")
	if _, err := i.Place(&Args{Key: []byte("x")}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("got %v want ErrDuplicate", err)
	}
	// Same key with a mask is a different entry.
	if _, err := i.Place(&Args{Key: []byte("x"), Mask: []byte{0xf0}}); err != nil {
		t.Error(err)
	}
	if _, err := i.Place(&Args{Key: []byte("y"), Member: 1, HasMember: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := i.Place(&Args{Key: []byte("z"), Member: 1, HasMember: true}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("member: got %v", err)
	}
	if err := i.RemoveMember(1); err != nil {
		t.Error(err)
	}
	if err := i.RemoveMember(1); !errors.Is(err, ErrNotFound) {
		t.Errorf("remove member: %v", err)
	}

	tb.Config().UpdateInPlace = true
	x, err := i.Place(&Args{Key: []byte("x"), Payload: 42})
	if err != nil || x != h {
		t.Fatalf("update got %v %v", x, err)
	}
	if e, _ := i.Get(h); e.Payload != 42 {
		t.Errorf("payload %d", e.Payload)
	}
	if err = i.Audit(); err != nil {
		t.Error(err)
	}
}

func TestEnumerate(t *testing.T) {
	c, _ := geom.Uniform("en", 1, 64, 4)
	tb, _ := newTestTable(t, c, nil)
	i := tb.Instance(0)
	var hs []Handle
	for _, k := range []string{"a", "b", "c", "d"} {
		hs = append(hs, place(t, i, k))
	}
	if _, err := i.Place(&Args{Key: []byte("default"), Fixed: true}); err != nil {
		t.Fatal(err)
	}
	var got []Handle
	for h, ok := i.FirstHandle(); ok; h, ok = i.NextHandle(h) {
		got = append(got, h)
		// Removing the current entry does not stop the walk.
		if h == hs[1] {
			if err := i.Remove(h); err != nil {
				t.Fatal(err)
			}
		}
	}
	if !reflect.DeepEqual(got, hs) {
		t.Errorf("got %v want %v", got, hs)
	}
}

func TestConfigCopied(t *testing.T) {
	c, _ := geom.Uniform("c", 1, 16, 4)
	tb, _ := newTestTable(t, c, nil)
	c.Stages[0].Capacity = 4
	c.Stages[0].Ways[3].Base = 1 << 20
	c.Stages[0].Ways = append(c.Stages[0].Ways[:1], c.Stages[0].Ways[2:]...)
	s := &tb.Config().Stages[0]
	if s.Capacity != 16 || len(s.Ways) != 4 || s.Ways[3].Base != 12 {
		t.Fatalf("table geometry changed: %+v", *s)
	}
	i := tb.Instance(0)
	for k := 0; k < 6; k++ {
		place(t, i, fmt.Sprint("c", k))
	}
	if err := i.Validate(); err != nil {
		t.Error(err)
	}
}

func TestPipes(t *testing.T) {
	c, _ := geom.Uniform("p", 1, 16, 2)
	c.Symmetric, c.Pipes = false, 2
	tb, m := newTestTable(t, c, nil)
	if len(tb.Instances()) != 2 {
		t.Fatalf("%d instances", len(tb.Instances()))
	}
	h0 := place(t, tb.Instance(0), "k")
	h1 := place(t, tb.Instance(1), "k")
	if h0.Pipe() != 0 || h1.Pipe() != 1 || h0 == h1 {
		t.Errorf("handles %v %v", h0, h1)
	}
	if tb.InstanceOf(h1) != tb.Instance(1) || tb.InstanceOf(MakeHandle(5, 0, 1)) != nil {
		t.Error("instance of")
	}
	if m.Used(0) != 1 || m.Used(1) != 1 {
		t.Errorf("pipes share hardware stage")
	}
	if err := tb.SetSymmetric(true, 0); !errors.Is(err, ErrConflict) {
		t.Errorf("got %v want ErrConflict", err)
	}
	if err := tb.Remove(h0); err != nil {
		t.Fatal(err)
	}
	if err := tb.Remove(h1); err != nil {
		t.Fatal(err)
	}
	// Empty but dirty.
	if err := tb.SetSymmetric(true, 0); !errors.Is(err, ErrConflict) {
		t.Errorf("dirty: got %v want ErrConflict", err)
	}
	tb.Commit()
	if err := tb.SetSymmetric(true, 0); err != nil {
		t.Fatal(err)
	}
	h := place(t, tb.Instance(7), "k")
	if h.Pipe() != AllPipes || len(tb.Instances()) != 1 || tb.InstanceOf(h) == nil {
		t.Errorf("symmetric handle %v", h)
	}
}

func TestIndirect(t *testing.T) {
	c := &geom.Config{
		Name:      "ecmp",
		Mode:      geom.Indirect,
		Symmetric: true,
		Stages:    []geom.Stage{{Capacity: 16}, {Capacity: 8}},
	}
	tb, _ := newTestTable(t, c, nil)
	i := tb.Instance(0)
	h3, err := i.Place(&Args{Size: 3, Member: 1, HasMember: true})
	if err != nil {
		t.Fatal(err)
	}
	e, _ := i.Get(h3)
	if e.Size != 3 || e.Slot%4 != 0 {
		t.Errorf("got %v", &e)
	}
	h8, err := i.Place(&Args{Size: 8, Member: 2, HasMember: true})
	if err != nil {
		t.Fatal(err)
	}
	tb.Commit()
	before := i.Snapshot()

	if _, err = i.Place(&Args{Size: 16}); !errors.Is(err, ErrResourceExhausted) {
		t.Errorf("got %v want ErrResourceExhausted", err)
	}
	if err = i.Remove(h8); err != nil {
		t.Fatal(err)
	}
	h, err := i.Place(&Args{Size: 8, Member: 3, HasMember: true})
	if err != nil {
		t.Fatal(err)
	}
	if e, _ = i.Get(h); e.Stage != 0 {
		t.Errorf("freed range not reused: %v", &e)
	}
	if err = i.Validate(); err != nil {
		t.Error(err)
	}
	if err = tb.Abort(); err != nil {
		t.Fatal(err)
	}
	if after := i.Snapshot(); !reflect.DeepEqual(after, before) {
		t.Errorf("abort: got %+v want %+v", after, before)
	}
	if err = i.Audit(); err != nil {
		t.Error(err)
	}
	if err = i.Stages()[0].FreeRange(1); !errors.Is(err, ErrNotFound) {
		t.Errorf("free unknown range: %v", err)
	}
}

func TestDirect(t *testing.T) {
	c := &geom.Config{
		Name:      "tcam",
		Mode:      geom.Direct,
		Symmetric: true,
		Stages:    []geom.Stage{{Capacity: 8}},
	}
	tb, m := newTestTable(t, c, nil)
	i := tb.Instance(0)
	h, err := i.Place(&Args{Key: []byte{1}, Mask: []byte{0xff}, Slot: 5})
	if err != nil {
		t.Fatal(err)
	}
	if slotOf(t, i, h) != 5 || m.Used(0) != 1 {
		t.Errorf("slot %d", slotOf(t, i, h))
	}
	if _, err = i.Place(&Args{Key: []byte{2}, Slot: 5}); !errors.Is(err, ErrConflict) {
		t.Errorf("got %v want ErrConflict", err)
	}
	if _, err = i.Place(&Args{Key: []byte{2}, Slot: 8}); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v want ErrNotFound", err)
	}
	if _, err = i.Place(&Args{Key: []byte{2}, Stage: 1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v want ErrNotFound", err)
	}
}
