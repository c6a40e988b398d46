// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package geom

import (
	"fmt"
	"os"

	"github.com/sugawarayuuta/sonnet"
)

// Load parses a JSON table description, fills in defaults and validates it.
func Load(b []byte) (*Config, error) {
	c := new(Config)
	if err := sonnet.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}
	for i := range c.Stages {
		if c.Stages[i].Seed == 0 {
			c.Stages[i].Seed = stageSeed(i)
		}
	}
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func LoadFile(fn string) (*Config, error) {
	b, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	c, err := Load(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return c, nil
}

// Marshal is the inverse of Load.
func (c *Config) Marshal() ([]byte, error) {
	return sonnet.MarshalIndent(c, "", "\t")
}
