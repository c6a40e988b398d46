// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package table

import (
	"encoding/binary"
	"fmt"
)

// Entry is the software copy of a table entry.
type Entry struct {
	Handle Handle
	Key    []byte
	// Nil mask means exact match.
	Mask      []byte
	Payload   uint64
	Member    uint32
	HasMember bool
	Stage     int
	// First slot held.  Indirect entries hold [Slot, Slot+Size).
	Slot    uint
	Size    uint
	Subword uint
	Placed  bool
	// Fixed entries are skipped by enumeration.
	Fixed bool

	// Hash value per way and candidate slot per way in Stage.
	hs    []uint64
	cands []uint
}

func (e *Entry) String() string {
	s := fmt.Sprintf("%v: key %x", e.Handle, e.Key)
	if e.Mask != nil {
		s += fmt.Sprintf("/%x", e.Mask)
	}
	if e.HasMember {
		s += fmt.Sprintf(" member %d", e.Member)
	}
	s += fmt.Sprintf(" payload 0x%x stage %d slot %d", e.Payload, e.Stage, e.Slot)
	if e.Size > 1 {
		s += fmt.Sprintf("+%d", e.Size)
	}
	return s
}

// Args describe an entry to place.  Hashed tables use Key and Mask, indirect
// tables Size, direct tables Stage and Slot.
type Args struct {
	Key       []byte
	Mask      []byte
	Payload   uint64
	Member    uint32
	HasMember bool
	Size      uint
	Stage     int
	Slot      uint
	Fixed     bool
}

// keyOf is the key index string for key/mask.
func keyOf(key, mask []byte) string {
	b := binary.AppendUvarint(make([]byte, 0, 2+len(key)+len(mask)), uint64(len(key)))
	b = append(b, key...)
	if mask != nil {
		b = append(b, 1)
		b = append(b, mask...)
	}
	return string(b)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
