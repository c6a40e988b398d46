// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/platinasystems/flags"
)

const Lang = "en_US.UTF-8"

type command interface {
	String() string
	Usage() string
	Apropos() map[string]string
	Man() map[string]string
	Main(...string) error
}

// ByName maps command names to commands.
type ByName map[string]command

func (byName ByName) Plot(cmds ...command) {
	for _, c := range cmds {
		byName[c.String()] = c
	}
}

func (byName ByName) Names() []string {
	names := make([]string, 0, len(byName))
	for k := range byName {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (byName ByName) usage(w io.Writer, prog string) {
	fmt.Fprintf(w, "usage:\t%s COMMAND [ -h | -apropos | -man | -usage | ARGS... ]\n", prog)
	fmt.Fprintf(w, "\t%s { apropos | help } [ COMMAND ]\n", prog)
	fmt.Fprintf(w, "\t%s { man | usage } COMMAND\n", prog)
}

func (byName ByName) apropos(w io.Writer, names ...string) error {
	if len(names) == 0 {
		names = byName.Names()
	}
	for _, name := range names {
		c, found := byName[name]
		if !found {
			return fmt.Errorf("%s: command not found", name)
		}
		fmt.Fprintf(w, "%-16s%s\n", name, c.Apropos()[Lang])
	}
	return nil
}

func (byName ByName) lookup(args []string) (command, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%v: expected one COMMAND", args)
	}
	c, found := byName[args[0]]
	if !found {
		return nil, fmt.Errorf("%s: command not found", args[0])
	}
	return c, nil
}

// Main runs the command named by args[0], or by args[1] when args[0] is
// the program itself.  Output of the helpers goes to w.
func (byName ByName) Main(w io.Writer, args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing program name")
	}
	prog := filepath.Base(args[0])
	if _, found := byName[prog]; !found {
		args = args[1:]
	}
	if len(args) == 0 {
		byName.usage(w, prog)
		return nil
	}
	name, args := args[0], args[1:]
	switch name {
	case "apropos":
		return byName.apropos(w, args...)
	case "help", "-h", "-help", "--help":
		if len(args) == 0 {
			byName.usage(w, prog)
			return byName.apropos(w)
		}
		c, err := byName.lookup(args)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "usage:\t"+strings.TrimSpace(c.Usage()))
		return nil
	case "man":
		c, err := byName.lookup(args)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, strings.TrimSpace(c.Man()[Lang]))
		return nil
	case "usage":
		c, err := byName.lookup(args)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "usage:\t"+strings.TrimSpace(c.Usage()))
		return nil
	}
	c, found := byName[name]
	if !found {
		return fmt.Errorf("%s: command not found", name)
	}
	flag, args := flags.New(args,
		[]string{"-h", "-help", "--help"},
		[]string{"-apropos", "--apropos"},
		[]string{"-man", "--man"},
		[]string{"-usage", "--usage"})
	switch {
	case flag.ByName["-h"], flag.ByName["-usage"]:
		fmt.Fprintln(w, "usage:\t"+strings.TrimSpace(c.Usage()))
	case flag.ByName["-apropos"]:
		return byName.apropos(w, name)
	case flag.ByName["-man"]:
		fmt.Fprintln(w, strings.TrimSpace(c.Man()[Lang]))
	default:
		return c.Main(args...)
	}
	return nil
}
