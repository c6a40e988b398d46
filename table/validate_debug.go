// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build debug
// +build debug

package table

import (
	"fmt"
)

const debug = true

func invariant(format string, args ...interface{}) {
	panic(fmt.Errorf("invariant: "+format, args...))
}
