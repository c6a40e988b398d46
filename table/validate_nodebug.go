// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !debug
// +build !debug

package table

import (
	"github.com/platinasystems/log"
)

const debug = false

func invariant(format string, args ...interface{}) {
	log.Printf(append([]interface{}{"daemon", "crit", "invariant: " + format}, args...)...)
}
