// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bus defines access to the device memory that mirrors table slots.
package bus

import (
	"fmt"
	"strconv"
)

// Address of a slot within a stage's memory.
type Address uint32

func (a Address) String() string { return fmt.Sprintf("0x%05x", uint32(a)) }

// Value is the contents of one slot as 32 bit words, least significant first.
type Value []uint32

func (v Value) IsZero() bool {
	for _, w := range v {
		if w != 0 {
			return false
		}
	}
	return true
}

func (v Value) Equal(w Value) bool {
	if len(v) < len(w) {
		v, w = w, v
	}
	for i := range v {
		var x uint32
		if i < len(w) {
			x = w[i]
		}
		if v[i] != x {
			return false
		}
	}
	return true
}

func (v Value) String() (s string) {
	for i := len(v) - 1; i >= 0; i-- {
		s += fmt.Sprintf("%08x", v[i])
	}
	if s == "" {
		s = "0"
	}
	return
}

// ParseValue is the inverse of Value.String.
func ParseValue(s string) (v Value, err error) {
	for len(s) > 0 {
		n := len(s) - 8
		if n < 0 {
			n = 0
		}
		var w uint64
		if w, err = strconv.ParseUint(s[n:], 16, 32); err != nil {
			return nil, fmt.Errorf("value %q: %w", s, err)
		}
		v = append(v, uint32(w))
		s = s[:n]
	}
	if v.IsZero() {
		v = nil
	}
	return
}

// Bus reads and writes slot memory.  Implementations may block.
type Bus interface {
	WriteSlot(stage uint, a Address, v Value) error
	ReadSlot(stage uint, a Address) (Value, error)
}
