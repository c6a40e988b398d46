// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fill places random entries into a table until the first placement
// failure and reports how full it got.
package fill

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/hwtable/bus/redisbus"
	"github.com/platinasystems/hwtable/cmd/internal/open"
	"github.com/platinasystems/hwtable/geom"
	"github.com/platinasystems/hwtable/table"
	"github.com/platinasystems/parms"
)

const (
	keyLen      = 8
	maxIndirect = 4
)

type Command struct {
	// Output defaults to os.Stdout.
	Output io.Writer
	// Publisher, when set, receives the counters as if -publish were given.
	Publisher *redisbus.Publisher
}

func (Command) String() string { return "fill" }

func (Command) Usage() string {
	return "fill " + geom.ParseUsage + "\n\t" + open.Usage +
		" [-keys N] [-rand SEED] [-publish local|ADDR] [-abort] [-q]"
}

func (Command) Apropos() map[string]string {
	return map[string]string{
		"en_US.UTF-8": "place random entries until a table is full",
	}
}

func (Command) Man() map[string]string {
	return map[string]string{
		"en_US.UTF-8": `
DESCRIPTION
	Place random keys into every instance of a table until the first
	placement failure, then print the load factor and relocation counters.

	Hashed tables get random 8 byte keys.  Indirect tables get ranges
	of 1 to 4 slots.  Direct tables are filled slot by slot.

	-keys N stops after N entries per instance.
	-rand SEED seeds the key generator; the default is 1.
	-publish local sets the counters in the machine's redis hash;
	 any other value is a redis server address.
	-abort aborts the transaction rather than committing it.
	-q suppresses the progress line.

	The bus is mem by default; redis, sqlite and mmap store the
	table's slot memory at -addr.`,
	}
}

func (c Command) Main(args ...string) (err error) {
	flag, args := flags.New(args, "-abort", "-q")
	parm, args := parms.New(args, append([]interface{}{"-keys", "-rand",
		"-publish"}, open.Parms...)...)
	cfg, args, err := geom.Parse(args)
	if err != nil {
		return
	}
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	limit, seed := cfg.Capacity(), int64(1)
	if s := parm.ByName["-keys"]; len(s) > 0 {
		u, err := strconv.ParseUint(s, 0, 0)
		if err != nil {
			return fmt.Errorf("-keys: %w", err)
		}
		limit = uint(u)
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

	slots, err := open.Bus(parm.ByName["-bus"], parm.ByName["-addr"], cfg, keyLen)
	if err != nil {
		return
	}
	defer slots.Close()
	t, err := table.New(cfg, nil, slots)
	if err != nil {
		return
	}
	f := filler{
		mode:     cfg.Mode,
		rng:      rand.New(rand.NewSource(seed)),
		w:        w,
		limit:    limit,
		progress: progress,
	}
	for _, i := range t.Instances() {
		if err = f.fill(i); err != nil {
			break
		}
		if err = i.Validate(); err != nil {
			break
		}
		if err = i.Audit(); err != nil {
			break
		}
	}
	if err != nil || flag.ByName["-abort"] {
		if aerr := t.Abort(); err == nil {
			err = aerr
		}
		fmt.Fprintln(w, t, "aborted,", t.Len(), "entries")
	} else {
		t.Commit()
		fmt.Fprintln(w, t, "committed,", t.Len(), "entries")
	}
	if err != nil {
		return
	}
	p := c.Publisher
	if dest := parm.ByName["-publish"]; len(dest) > 0 && p == nil {
		var done func() error
		if p, done, err = open.Publisher(dest, "hwtable"); err != nil {
			return
		}
		defer done()
	}
	if p != nil {
		st := t.Stats()
		err = p.Publish(cfg.Name, st.Fields())
	}
	return
}

type filler struct {
	mode     geom.Mode
	rng      *rand.Rand
	w        io.Writer
	limit    uint
	progress bool
}

func (f *filler) args(i *table.Instance, n uint) *table.Args {
	a := &table.Args{Payload: uint64(n)}
	switch f.mode {
	case geom.Indirect:
		a.Size = 1 + uint(f.rng.Intn(maxIndirect))
	case geom.Direct:
		// Past the last stage when every slot is held.
		a.Stage = len(i.Stages())
		for _, s := range i.Stages() {
			for slot := uint(0); slot < s.Capacity(); slot++ {
				if s.Handle(slot) == table.HandleNil {
					a.Stage, a.Slot = s.Index(), slot
					return a
				}
			}
		}
	default:
		a.Key = make([]byte, keyLen)
		binary.LittleEndian.PutUint64(a.Key, f.rng.Uint64())
	}
	return a
}

// full reports errors that end a fill rather than the command.
func full(err error) bool {
	return errors.Is(err, table.ErrPlacementFailure) ||
		errors.Is(err, table.ErrResourceExhausted) ||
		errors.Is(err, table.ErrNotFound)
}

func (f *filler) fill(i *table.Instance) error {
	var (
		n, dups uint
		reason  error
	)
	for n < f.limit {
		_, err := i.Place(f.args(i, n))
		if errors.Is(err, table.ErrDuplicate) {
			dups++
			continue
		}
		if full(err) {
			reason = err
			break
		}
		if err != nil {
			return err
		}
		n++
		if f.progress && n%256 == 0 {
			fmt.Fprintf(f.w, "\r%s: %d entries", i, n)
		}
	}
	if f.progress {
		fmt.Fprint(f.w, "\r")
	}
	st := i.Stats()
	fmt.Fprintf(f.w, "%s: %d/%d entries, load %.3f\n", i, i.Len(), i.Capacity(),
		float64(i.Len())/float64(i.Capacity()))
	fmt.Fprintf(f.w, "\t%d direct hits, %d searches, %d relocations, %d failures, %d duplicate keys\n",
		st.DirectHits, st.Searches, st.Relocations, st.PlacementFailures, dups)
	if reason != nil {
		fmt.Fprintf(f.w, "\tstopped: %v\n", reason)
	}
	return nil
}
