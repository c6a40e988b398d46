// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package geom

import (
	"fmt"
	"strconv"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"
)

// Parameters and flags recognized by Parse.
var (
	Parms = []interface{}{"-name", "-stages", "-capacity", "-ways",
		"-moves", "-pipes", "-seed", "-hash", "-mode", "-backups",
		"-max", "-config"}
	Flags = []interface{}{"-symmetric", "-update"}
)

const ParseUsage = `[-config FILE | -name NAME -stages N -capacity N -ways N]
	[-mode hashed|indirect|direct] [-hash mix|keyed] [-moves N]
	[-pipes N] [-seed N] [-backups N] [-max N] [-symmetric] [-update]`

func parseUint(parm *parms.Parms, name string, v *uint) error {
	s := parm.ByName[name]
	if len(s) == 0 {
		return nil
	}
	u, err := strconv.ParseUint(s, 0, 0)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*v = uint(u)
	return nil
}

// Parse builds a config from goes style command arguments and returns the
// arguments it did not consume.  With -config the file is loaded and the
// remaining parameters override it; otherwise a uniform geometry is built.
func Parse(args []string) (*Config, []string, error) {
	flag, args := flags.New(args, Flags...)
	parm, args := parms.New(args, Parms...)

	var (
		c   *Config
		err error
	)
	if fn := parm.ByName["-config"]; len(fn) > 0 {
		if c, err = LoadFile(fn); err != nil {
			return nil, args, err
		}
	} else {
		name := parm.ByName["-name"]
		if len(name) == 0 {
			name = "table"
		}
		stages, capacity, ways := uint(2), uint(1024), uint(4)
		for _, x := range []struct {
			name string
			v    *uint
		}{
			{"-stages", &stages},
			{"-capacity", &capacity},
			{"-ways", &ways},
		} {
			if err = parseUint(parm, x.name, x.v); err != nil {
				return nil, args, err
			}
		}
		if c, err = Uniform(name, stages, capacity, ways); err != nil {
			return nil, args, err
		}
	}

	if s := parm.ByName["-mode"]; len(s) > 0 {
		if err = c.Mode.UnmarshalText([]byte(s)); err != nil {
			return nil, args, err
		}
	}
	if s := parm.ByName["-hash"]; len(s) > 0 {
		if err = c.Hash.UnmarshalText([]byte(s)); err != nil {
			return nil, args, err
		}
	}
	if err = parseUint(parm, "-moves", &c.MaxMoves); err != nil {
		return nil, args, err
	}
	if err = parseUint(parm, "-max", &c.MaxHandles); err != nil {
		return nil, args, err
	}
	if s := parm.ByName["-backups"]; len(s) > 0 {
		if c.MaxBackups, err = strconv.Atoi(s); err != nil {
			return nil, args, fmt.Errorf("-backups: %w", err)
		}
	}
	if s := parm.ByName["-seed"]; len(s) > 0 {
		seed, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return nil, args, fmt.Errorf("-seed: %w", err)
		}
		for i := range c.Stages {
			c.Stages[i].Seed = seed + uint64(i)
		}
	}
	if len(parm.ByName["-pipes"]) > 0 {
		if err = parseUint(parm, "-pipes", &c.Pipes); err != nil {
			return nil, args, err
		}
		c.Symmetric = false
	}
	if flag.ByName["-symmetric"] {
		c.Symmetric = true
	}
	c.UpdateInPlace = c.UpdateInPlace || flag.ByName["-update"]
	c.setDefaults()
	if err = c.Validate(); err != nil {
		return nil, args, err
	}
	return c, args, nil
}
