// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package keyhash computes per-way hash values of table keys.
package keyhash

import (
	"encoding/binary"

	"github.com/platinasystems/hwtable/elib"
	"github.com/platinasystems/hwtable/geom"

	"golang.org/x/crypto/blake2b"
)

// Engine appends one hash value per way of stage s to hs.  Results depend
// only on key and the stage geometry.
type Engine interface {
	Compute(key []byte, s *geom.Stage, hs []uint64) []uint64
}

// Func adapts a function to an Engine.
type Func func(key []byte, s *geom.Stage, hs []uint64) []uint64

func (f Func) Compute(key []byte, s *geom.Stage, hs []uint64) []uint64 { return f(key, s, hs) }

func New(a geom.HashAlgo) Engine {
	switch a {
	case geom.Keyed:
		return Keyed{}
	default:
		return Mix{}
	}
}

// Mix uses the elib hash mixer seeded with stage seed and way index.
type Mix struct{}

func (Mix) Compute(key []byte, s *geom.Stage, hs []uint64) []uint64 {
	for i := range s.Ways {
		var h elib.HashState
		h.Seed(s.Seed, uint64(i))
		h.HashBytes(key)
		hs = append(hs, h.Sum64())
	}
	return hs
}

// Keyed is a blake2b MAC keyed with stage seed and way index.  Slower than
// Mix but hard to force collisions without knowing the seed.
type Keyed struct{}

func (Keyed) Compute(key []byte, s *geom.Stage, hs []uint64) []uint64 {
	var k [16]byte
	binary.LittleEndian.PutUint64(k[0:], s.Seed)
	for i := range s.Ways {
		binary.LittleEndian.PutUint64(k[8:], uint64(i))
		m, err := blake2b.New(8, k[:])
		if err != nil {
			panic(err)
		}
		m.Write(key)
		var sum [8]byte
		hs = append(hs, binary.LittleEndian.Uint64(m.Sum(sum[:0])))
	}
	return hs
}
