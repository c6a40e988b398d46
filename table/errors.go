// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package table

import (
	"errors"
)

var (
	// Key or member already maps to a live entry.
	ErrDuplicate = errors.New("duplicate")
	// Unknown or stale handle, member or range.
	ErrNotFound = errors.New("not found")
	// Out of handles, ranges or backup budget.
	ErrResourceExhausted = errors.New("resource exhausted")
	// No eviction path within the move bound; other keys may still fit.
	ErrPlacementFailure = errors.New("placement failure")
	// Slot, handle or table state prevents the operation.
	ErrConflict = errors.New("conflict")
)
