// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmapbus maps a file laid out as stages x slots x words of little
// endian uint32 and treats it as slot memory.
package mmapbus

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/platinasystems/hwtable/bus"
	"golang.org/x/sys/unix"
)

type Bus struct {
	mu  sync.Mutex
	mem []byte

	stages, slots, words uint
}

// Open creates or extends the file at path to hold the given geometry and
// maps it shared.
func Open(path string, stages, slots, words uint) (b *Bus, err error) {
	if stages == 0 || slots == 0 || words == 0 {
		return nil, fmt.Errorf("%s: empty geometry %dx%dx%d", path, stages, slots, words)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	size := int64(stages * slots * words * 4)
	fi, err := f.Stat()
	if err != nil {
		return
	}
	if fi.Size() < size {
		if err = f.Truncate(size); err != nil {
			return
		}
	}
	b = &Bus{stages: stages, slots: slots, words: words}
	b.mem, err = unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %s", path, err)
	}
	return
}

func (b *Bus) offset(stage uint, a bus.Address) (o uint, err error) {
	if stage >= b.stages || uint(a) >= b.slots {
		err = fmt.Errorf("stage %d %v: out of range", stage, a)
		return
	}
	o = (stage*b.slots + uint(a)) * b.words * 4
	return
}

func (b *Bus) WriteSlot(stage uint, a bus.Address, v bus.Value) error {
	o, err := b.offset(stage, a)
	if err != nil {
		return err
	}
	if uint(len(v)) > b.words {
		for _, w := range v[b.words:] {
			if w != 0 {
				return fmt.Errorf("stage %d %v: %d word value exceeds %d", stage, a, len(v), b.words)
			}
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := uint(0); i < b.words; i++ {
		var w uint32
		if i < uint(len(v)) {
			w = v[i]
		}
		binary.LittleEndian.PutUint32(b.mem[o+4*i:], w)
	}
	return nil
}

// ReadSlot returns nil for an all zero slot.
func (b *Bus) ReadSlot(stage uint, a bus.Address) (v bus.Value, err error) {
	o, err := b.offset(stage, a)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	v = make(bus.Value, b.words)
	for i := range v {
		v[i] = binary.LittleEndian.Uint32(b.mem[o+4*uint(i):])
	}
	if v.IsZero() {
		v = nil
	}
	return
}

// Clear zeroes every slot.
func (b *Bus) Clear() {
	b.mu.Lock()
	for i := range b.mem {
		b.mem[i] = 0
	}
	b.mu.Unlock()
}

func (b *Bus) Sync() error { return unix.Msync(b.mem, unix.MS_SYNC) }

func (b *Bus) Close() (err error) {
	if b.mem != nil {
		if err = unix.Munmap(b.mem); err != nil {
			return fmt.Errorf("munmap: %s", err)
		}
		b.mem = nil
	}
	return
}
