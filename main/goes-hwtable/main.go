// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Goes-hwtable runs the hardware table exercisers: fill and churn.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/platinasystems/hwtable/cmd/churn"
	"github.com/platinasystems/hwtable/cmd/fill"
)

func Goes() ByName {
	g := make(ByName)
	g.Plot(fill.Command{}, churn.Command{})
	return g
}

func main() {
	if err := Goes().Main(os.Stdout, os.Args...); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(os.Args[0]), err)
		os.Exit(1)
	}
}
