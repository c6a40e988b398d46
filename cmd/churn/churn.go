// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package churn runs random place, remove, commit and abort operations and
// checks table invariants as it goes.
package churn

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"reflect"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/hwtable/cmd/internal/open"
	"github.com/platinasystems/hwtable/geom"
	"github.com/platinasystems/hwtable/table"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
)

const (
	DefaultIter  = 10000
	DefaultValid = 100
)

type Command struct {
	Output io.Writer
}

func (Command) String() string { return "churn" }

func (Command) Usage() string {
	return "churn " + geom.ParseUsage + "\n\t" + open.Usage +
		" [-iter N] [-rand SEED] [-valid N] [-q]"
}

func (Command) Apropos() map[string]string {
	return map[string]string{
		"en_US.UTF-8": "exercise table placement and transactions",
	}
}

func (Command) Man() map[string]string {
	return map[string]string{
		"en_US.UTF-8": `
DESCRIPTION
	Run N random operations over every instance of a table: place
	(55%), remove (35%), commit (5%) and abort (5%).  After each abort
	every instance must equal its state at the last commit.  Every
	-valid operations the software state is validated and the slot
	memory is read back and compared.

	Keys are drawn from a pool of four times the table capacity so
	that duplicates and relocations both happen.`,
	}
}

type churner struct {
	t         *table.Table
	rng       *rand.Rand
	keys      int
	committed []table.Snapshot
	live      [][]table.Handle
	aborts    uint
	commits   uint
}

func (c Command) Main(args ...string) (err error) {
	flag, args := flags.New(args, "-q")
	parm, args := parms.New(args, append([]interface{}{"-iter", "-rand",
		"-valid"}, open.Parms...)...)
	cfg, args, err := geom.Parse(args)
	if err != nil {
		return
	}
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	iter, valid, seed := DefaultIter, DefaultValid, int64(1)
	for _, x := range []struct {
		name string
		v    *int
	}{
		{"-iter", &iter},
		{"-valid", &valid},
	} {
		if s := parm.ByName[x.name]; len(s) > 0 {
			if *x.v, err = strconv.Atoi(s); err != nil {
				return fmt.Errorf("%s: %w", x.name, err)
			}
		}
	}
	if valid <= 0 {
		return fmt.Errorf("-valid: %d: must be positive", valid)
	}
	if s := parm.ByName["-rand"]; len(s) > 0 {
		if seed, err = strconv.ParseInt(s, 0, 64); err != nil {
			return fmt.Errorf("-rand: %w", err)
		}
	}
	w := c.Output
	if w == nil {
		w = os.Stdout
	}
	progress := !flag.ByName["-q"] && w == os.Stdout &&
		isatty.IsTerminal(os.Stdout.Fd())

	slots, err := open.Bus(parm.ByName["-bus"], parm.ByName["-addr"], cfg, 8)
	if err != nil {
		return
	}
	defer slots.Close()
	t, err := table.New(cfg, nil, slots)
	if err != nil {
		return
	}
	x := &churner{
		t:    t,
		rng:  rand.New(rand.NewSource(seed)),
		keys: 4 * int(cfg.Capacity()),
	}
	x.live = make([][]table.Handle, len(t.Instances()))
	x.snapshot()
	for k := 0; k < iter; k++ {
		if err = x.step(); err != nil {
			return fmt.Errorf("iteration %d: %w", k, err)
		}
		if (k+1)%valid == 0 {
			if err = x.check(); err != nil {
				return fmt.Errorf("iteration %d: %w", k, err)
			}
			if progress {
				fmt.Fprintf(w, "\r%d/%d %d entries", k+1, iter, t.Len())
			}
		}
	}
	if progress {
		fmt.Fprint(w, "\r")
	}
	if err = x.check(); err != nil {
		return
	}
	st := t.Stats()
	fmt.Fprintf(w, "%s: %d iterations, %d entries, %d commits, %d aborts\n",
		t, iter, t.Len(), x.commits, x.aborts)
	fmt.Fprintf(w, "\t%d places, %d removes, %d direct hits, %d relocations, %d placement failures\n",
		st.Places, st.Removes, st.DirectHits, st.Relocations, st.PlacementFailures)
	t.Commit()
	return
}

func (x *churner) snapshot() {
	x.committed = x.committed[:0]
	for n, i := range x.t.Instances() {
		s := i.Snapshot()
		x.committed = append(x.committed, s)
		x.live[n] = x.live[n][:0]
		for _, e := range s.Entries {
			x.live[n] = append(x.live[n], e.Handle)
		}
	}
}

func (x *churner) args(i *table.Instance) *table.Args {
	a := &table.Args{Payload: x.rng.Uint64()}
	switch x.t.Config().Mode {
	case geom.Indirect:
		a.Size = 1 + uint(x.rng.Intn(6))
	case geom.Direct:
		a.Stage = x.rng.Intn(len(i.Stages()))
		a.Slot = uint(x.rng.Intn(int(i.Stages()[a.Stage].Capacity())))
	default:
		a.Key = []byte(strconv.Itoa(x.rng.Intn(x.keys)))
	}
	return a
}

// expected are errors a random operation may provoke.
func expected(err error) bool {
	for _, e := range []error{
		table.ErrDuplicate,
		table.ErrConflict,
		table.ErrPlacementFailure,
		table.ErrResourceExhausted,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

func (x *churner) step() (err error) {
	n := x.rng.Intn(len(x.t.Instances()))
	i := x.t.Instances()[n]
	switch r := x.rng.Intn(100); {
	case r < 55:
		before := i.Len()
		h, err := i.Place(x.args(i))
		if err != nil && !expected(err) {
			return err
		}
		// Updates in place return the existing handle.
		if err == nil && i.Len() > before {
			x.live[n] = append(x.live[n], h)
		}
	case r < 90:
		live := x.live[n]
		if len(live) == 0 {
			break
		}
		k := x.rng.Intn(len(live))
		if err = i.Remove(live[k]); err != nil {
			if expected(err) {
				err = nil
				break
			}
			return
		}
		live[k] = live[len(live)-1]
		x.live[n] = live[:len(live)-1]
	case r < 95:
		x.t.Commit()
		x.commits++
		x.snapshot()
	default:
		if err = x.t.Abort(); err != nil {
			return
		}
		x.aborts++
		for k, i := range x.t.Instances() {
			if !reflect.DeepEqual(i.Snapshot(), x.committed[k]) {
				log.Print("daemon", "err", i, ": abort did not restore last commit")
				return fmt.Errorf("%s: abort: %w", i, table.ErrConflict)
			}
		}
		x.snapshot()
	}
	return nil
}

func (x *churner) check() error {
	if err := x.t.Validate(); err != nil {
		return err
	}
	for _, i := range x.t.Instances() {
		if err := i.Audit(); err != nil {
			return err
		}
	}
	return nil
}
