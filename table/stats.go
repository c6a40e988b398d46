// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package table

import (
	"github.com/platinasystems/hwtable/cuckoo"
)

type Stats struct {
	cuckoo.Stats
	Places            uint64
	Updates           uint64
	Removes           uint64
	PlacementFailures uint64
	Commits           uint64
	Aborts            uint64
	BusErrors         uint64
}

func (s *Stats) Add(o *Stats) {
	s.Stats.Add(&o.Stats)
	s.Places += o.Places
	s.Updates += o.Updates
	s.Removes += o.Removes
	s.PlacementFailures += o.PlacementFailures
	s.Commits += o.Commits
	s.Aborts += o.Aborts
	s.BusErrors += o.BusErrors
}

// Fields names counters for publishing.
func (s Stats) Fields() map[string]uint64 {
	return map[string]uint64{
		"direct_hits":        s.DirectHits,
		"searches":           s.Searches,
		"relocations":        s.Relocations,
		"search_failures":    s.Failures,
		"places":             s.Places,
		"updates":            s.Updates,
		"removes":            s.Removes,
		"placement_failures": s.PlacementFailures,
		"commits":            s.Commits,
		"aborts":             s.Aborts,
		"bus_errors":         s.BusErrors,
	}
}

func (i *Instance) Stats() (s Stats) {
	s = i.stats
	for _, st := range i.stages {
		x := st.Stats()
		s.Stats.Add(&x)
	}
	return
}
