// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elib

import (
	"testing"
)

func TestBitmap(t *testing.T) {
	{
		var b Bitmap
		b = b.Set(64)
		if got, want := b.String(), "{64}"; got != want {
			t.Errorf("Set: got %s want %s", got, want)
		}

		b = b.Unset(64)
		if got, want := b.String(), "{}"; got != want {
			t.Errorf("Unset: got %s want %s", got, want)
		}

		b = Bitmap{(1 << 3) | (1 << 13)}
		b = b.Set(128)
		if got, want := b.String(), "{3, 13, 128}"; got != want {
			t.Errorf("Set 128: got %s want %s", got, want)
		}

		c := b.Dup().Set(12)
		if got, want := c.String(), "{3, 12, 13, 128}"; got != want {
			t.Errorf("Dup new: got %s want %s", got, want)
		}
		if got, want := b.String(), "{3, 13, 128}"; got != want {
			t.Errorf("Dup old: got %s want %s", got, want)
		}

		i := 0
		want := [4]uint{3, 12, 13, 128}
		for x := ^uint(0); c.Next(&x); {
			if x != want[i] {
				t.Errorf("Next %d: got %d want %d", i, x, want[i])
			}
			i++
		}
		if i != len(want) {
			t.Errorf("Next: got %d bits want %d", i, len(want))
		}
		if got := c.Count(); got != 4 {
			t.Errorf("Count: got %d want 4", got)
		}
	}

	{
		var b Bitmap
		b, old := b.Set2(200)
		if old {
			t.Error("Set2: old bit set")
		}
		if _, old = b.Set2(200); !old {
			t.Error("Set2: old bit clear")
		}
		if b.Get(1000) {
			t.Error("Get: out of range bit set")
		}
		b = b.Unset(1000)
		if got, want := b.String(), "{200}"; got != want {
			t.Errorf("Unset out of range: got %s want %s", got, want)
		}
	}

	{
		a := Bitmap{5}
		b := Bitmap{5, 0, 0}
		if !a.Equal(b) || !b.Equal(a) {
			t.Error("Equal: trailing zero words differ")
		}
		if a.Equal(Bitmap{4}) {
			t.Error("Equal: different bitmaps equal")
		}
	}
}
