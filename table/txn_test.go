// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package table

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/platinasystems/hwtable/bus"
	"github.com/platinasystems/hwtable/geom"
)

func fill(t *testing.T, i *Instance, prefix string, n int) (hs []Handle) {
	for k := 0; k < n; k++ {
		hs = append(hs, place(t, i, fmt.Sprintf("%s%d", prefix, k)))
	}
	return
}

func TestAbortFidelity(t *testing.T) {
	c, _ := geom.Uniform("af", 2, 64, 4)
	tb, _ := newTestTable(t, c, nil)
	i := tb.Instance(0)
	mgr := tb.Manager()
	hs := fill(t, i, "committed", 80)
	tb.Commit()
	before := i.Snapshot()

	// Fill close to capacity so placements relocate, then remove some of
	// the committed entries.
	var placed int
	for k := 0; k < 60; k++ {
		if _, err := i.Place(&Args{Key: []byte(fmt.Sprintf("new%d", k))}); err == nil {
			placed++
		}
	}
	for _, h := range hs[:20] {
		if err := i.Remove(h); err != nil {
			t.Fatal(err)
		}
	}
	if i.Stats().Relocations == 0 {
		t.Error("no relocations exercised")
	}
	if mgr.State() != Dirty || !i.IsDirty() {
		t.Errorf("state %v", mgr.State())
	}
	if id, ok := i.TxnID(); !ok || id.String() == "" {
		t.Error("no transaction id")
	}
	if err := mgr.Abort(i); err != nil {
		t.Fatal(err)
	}
	if after := i.Snapshot(); !reflect.DeepEqual(after, before) {
		t.Errorf("abort after %d places: state differs", placed)
	}
	if err := i.Validate(); err != nil {
		t.Error(err)
	}
	if err := i.Audit(); err != nil {
		t.Error(err)
	}
	if mgr.State() != Clean {
		t.Errorf("state %v", mgr.State())
	}
	// Entries removed in the aborted transaction are back.
	for _, h := range hs[:20] {
		if _, ok := i.Get(h); !ok {
			t.Errorf("%v not restored", h)
		}
	}
}

func TestCommitFinality(t *testing.T) {
	c, _ := geom.Uniform("cf", 1, 64, 4)
	tb, _ := newTestTable(t, c, nil)
	i := tb.Instance(0)
	mgr := tb.Manager()
	hs := fill(t, i, "k", 10)
	if err := i.Remove(hs[3]); err != nil {
		t.Fatal(err)
	}
	mgr.Commit(i)
	want := i.Snapshot()
	if err := mgr.Abort(i); err != nil {
		t.Fatal(err)
	}
	if got := i.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Error("abort after commit changed state")
	}
	mgr.Commit(i)
	if s := i.Stats(); s.Commits != 1 || s.Aborts != 0 {
		t.Errorf("stats %+v", s)
	}
}

func TestAbortAll(t *testing.T) {
	c, _ := geom.Uniform("aa", 1, 64, 4)
	c.Symmetric, c.Pipes = false, 3
	tb, _ := newTestTable(t, c, nil)
	mgr := tb.Manager()
	var before []Snapshot
	for _, i := range tb.Instances() {
		fill(t, i, "c", 4)
	}
	mgr.CommitAll()
	for _, i := range tb.Instances() {
		before = append(before, i.Snapshot())
		fill(t, i, "d", 4)
	}
	if len(mgr.Dirty()) != 3 {
		t.Fatalf("%d dirty", len(mgr.Dirty()))
	}
	if err := mgr.AbortAll(); err != nil {
		t.Fatal(err)
	}
	for k, i := range tb.Instances() {
		if !reflect.DeepEqual(i.Snapshot(), before[k]) {
			t.Errorf("pipe %d not restored", k)
		}
	}
	if mgr.State() != Clean || tb.Len() != 12 {
		t.Errorf("state %v len %d", mgr.State(), tb.Len())
	}
}

func TestBusFailure(t *testing.T) {
	tb, m := newTestTable(t, twoWay(8, 4), chainHash())
	i := tb.Instance(0)
	for _, k := range []string{"K4", "K3", "K1"} {
		place(t, i, k)
	}
	tb.Commit()
	place(t, i, "K2")
	before := i.Snapshot()
	tb.Commit()

	// Fail halfway through the four step move list.
	m.FailAfter(2)
	_, err := i.Place(&Args{Key: []byte("N")})
	var we *bus.WriteError
	if !errors.As(err, &we) || !errors.Is(err, bus.ErrInjected) || we.Index != 2 {
		t.Fatalf("got %v", err)
	}
	// The bus is still failing so restoring hardware after abort fails too.
	if !strings.Contains(err.Error(), "(abort: ") {
		t.Errorf("abort failure not reported: %v", err)
	}
	if !reflect.DeepEqual(i.Snapshot(), before) {
		t.Error("software state not restored")
	}
	if i.IsDirty() || tb.Manager().State() != Clean {
		t.Error("still dirty")
	}
	if s := i.Stats(); s.BusErrors < 1 || s.Aborts != 1 {
		t.Errorf("stats %+v", s)
	}
	// Hardware holds the partial move list until resynced.
	if err = i.Audit(); !errors.Is(err, ErrConflict) {
		t.Errorf("audit: %v", err)
	}
	m.FailAfter(-1)
	if err = i.Sync(); err != nil {
		t.Fatal(err)
	}
	if err = i.Audit(); err != nil {
		t.Error(err)
	}
}

func TestBackupBudget(t *testing.T) {
	c := twoWay(8, 4)
	c.MaxBackups = 3
	tb, m := newTestTable(t, c, chainHash())
	i := tb.Instance(0)
	for _, k := range []string{"K4", "K3", "K1", "K2"} {
		place(t, i, k)
		tb.Commit()
	}
	before := i.Snapshot()
	m.ResetLog()
	// N needs four backups.
	if _, err := i.Place(&Args{Key: []byte("N")}); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("got %v want ErrResourceExhausted", err)
	}
	if !reflect.DeepEqual(i.Snapshot(), before) || len(m.Writes()) != 0 {
		t.Error("state changed")
	}
	mgr := NewManager(4)
	tb.mgr = mgr
	if _, err := i.Place(&Args{Key: []byte("N")}); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Touch(i, MakeHandle(AllPipes, 60, 1)); !errors.Is(err, ErrResourceExhausted) {
		t.Errorf("fifth touch: %v", err)
	}
	// Touching an entry already backed up costs nothing.
	h, _ := i.Lookup([]byte("K1"), nil)
	if err := mgr.Touch(i, h); err != nil {
		t.Error(err)
	}
}

// Randomized place, remove, commit and abort checked against the last
// committed snapshot.
func runChurn(t *testing.T, c *geom.Config, iter int, args func(*rand.Rand) *Args) {
	rng := rand.New(rand.NewSource(1))
	tb, _ := newTestTable(t, c, nil)
	i := tb.Instance(0)
	mgr := tb.Manager()
	committed := i.Snapshot()
	var live []Handle
	for k := 0; k < iter; k++ {
		switch r := rng.Intn(100); {
		case r < 55:
			if h, err := i.Place(args(rng)); err == nil {
				live = append(live, h)
			}
		case r < 90:
			if len(live) > 0 {
				x := rng.Intn(len(live))
				if err := i.Remove(live[x]); err != nil {
					t.Fatalf("iter %d: %v", k, err)
				}
				live[x] = live[len(live)-1]
				live = live[:len(live)-1]
			}
		case r < 95:
			mgr.Commit(i)
			committed = i.Snapshot()
		default:
			if err := mgr.Abort(i); err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(i.Snapshot(), committed) {
				t.Fatalf("iter %d: abort did not restore", k)
			}
			live = live[:0]
			for _, e := range committed.Entries {
				live = append(live, e.Handle)
			}
		}
		if k%50 == 0 {
			if err := i.Validate(); err != nil {
				t.Fatalf("iter %d: %v", k, err)
			}
			if err := i.Audit(); err != nil {
				t.Fatalf("iter %d: %v", k, err)
			}
		}
	}
}

func TestChurnHashed(t *testing.T) {
	c, _ := geom.Uniform("churn", 2, 64, 4)
	runChurn(t, c, 3000, func(rng *rand.Rand) *Args {
		return &Args{Key: []byte(fmt.Sprint(rng.Intn(400))), Payload: rng.Uint64()}
	})
}

func TestChurnIndirect(t *testing.T) {
	c := &geom.Config{
		Name:      "churn",
		Mode:      geom.Indirect,
		Symmetric: true,
		Stages:    []geom.Stage{{Capacity: 64}, {Capacity: 32}},
	}
	runChurn(t, c, 3000, func(rng *rand.Rand) *Args {
		return &Args{Size: 1 + uint(rng.Intn(6))}
	})
}
