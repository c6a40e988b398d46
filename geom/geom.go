// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package geom describes the shape of hardware lookup tables: stages, hash
// ways and the hash bits that select a way's slot.
package geom

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects how entries are assigned slots.
type Mode int

const (
	// Hashed entries go to one of their hash candidates with cuckoo relocation.
	Hashed Mode = iota
	// Indirect entries are power of 2 aligned ranges from a buddy heap.
	Indirect
	// Direct entries are placed at a slot chosen by the caller.
	Direct
)

var modeNames = [...]string{
	Hashed:   "hashed",
	Indirect: "indirect",
	Direct:   "direct",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	for i, s := range modeNames {
		if strings.EqualFold(s, string(b)) {
			*m = Mode(i)
			return nil
		}
	}
	return fmt.Errorf("%s: unknown mode", b)
}

// HashAlgo selects the key hash engine.
type HashAlgo int

const (
	Mix HashAlgo = iota
	Keyed
)

var hashNames = [...]string{
	Mix:   "mix",
	Keyed: "keyed",
}

func (a HashAlgo) String() string {
	if int(a) < len(hashNames) {
		return hashNames[a]
	}
	return fmt.Sprintf("HashAlgo(%d)", int(a))
}

func (a HashAlgo) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *HashAlgo) UnmarshalText(b []byte) error {
	for i, s := range hashNames {
		if strings.EqualFold(s, string(b)) {
			*a = HashAlgo(i)
			return nil
		}
	}
	return fmt.Errorf("%s: unknown hash", b)
}

const (
	DefaultMaxMoves = 4
	// Largest number of pipes; handle pipe 0xff means all pipes.
	MaxPipes = 0xfe
)

type Config struct {
	Name      string   `json:"name"`
	Mode      Mode     `json:"mode"`
	Symmetric bool     `json:"symmetric"`
	Pipes     uint     `json:"pipes"`
	Hash      HashAlgo `json:"hash"`
	// Zero means no limit beyond stage capacity.
	MaxHandles uint `json:"max_handles"`
	// Relocation bound for cuckoo search.
	MaxMoves uint `json:"max_moves"`
	// Entries that may be touched per transaction; zero means unlimited.
	MaxBackups    int     `json:"max_backups"`
	UpdateInPlace bool    `json:"update_in_place"`
	Stages        []Stage `json:"stages"`
}

var ErrInvalid = errors.New("invalid geometry")

func (c *Config) setDefaults() {
	if c.MaxMoves == 0 {
		c.MaxMoves = DefaultMaxMoves
	}
	if c.Symmetric && c.Pipes == 0 {
		c.Pipes = 1
	}
}

// Capacity is the total number of slots over all stages.
func (c *Config) Capacity() (n uint) {
	for i := range c.Stages {
		n += c.Stages[i].Capacity
	}
	return
}

func (c *Config) Validate() error {
	if len(c.Name) == 0 {
		return fmt.Errorf("%w: missing name", ErrInvalid)
	}
	if int(c.Mode) >= len(modeNames) || c.Mode < 0 {
		return fmt.Errorf("%s: %w: %v", c.Name, ErrInvalid, c.Mode)
	}
	if int(c.Hash) >= len(hashNames) || c.Hash < 0 {
		return fmt.Errorf("%s: %w: %v", c.Name, ErrInvalid, c.Hash)
	}
	if !c.Symmetric && (c.Pipes == 0 || c.Pipes > MaxPipes) {
		return fmt.Errorf("%s: %w: %d pipes", c.Name, ErrInvalid, c.Pipes)
	}
	if len(c.Stages) == 0 {
		return fmt.Errorf("%s: %w: no stages", c.Name, ErrInvalid)
	}
	if c.MaxBackups < 0 {
		return fmt.Errorf("%s: %w: max backups %d", c.Name, ErrInvalid, c.MaxBackups)
	}
	for i := range c.Stages {
		if err := c.Stages[i].validate(c.Mode); err != nil {
			return fmt.Errorf("%s: stage %d: %w", c.Name, i, err)
		}
	}
	return nil
}

// Dup returns a copy sharing no stages or ways with c.
func (c *Config) Dup() *Config {
	d := *c
	d.Stages = make([]Stage, len(c.Stages))
	for i := range c.Stages {
		d.Stages[i] = c.Stages[i]
		d.Stages[i].Ways = append([]Way(nil), c.Stages[i].Ways...)
	}
	return &d
}

func (c *Config) String() string {
	s := fmt.Sprintf("%s: %s %d stages %d slots", c.Name, c.Mode, len(c.Stages), c.Capacity())
	if c.Symmetric {
		s += " symmetric"
	} else {
		s += fmt.Sprintf(" %d pipes", c.Pipes)
	}
	return s
}
