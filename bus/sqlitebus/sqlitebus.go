// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sqlitebus keeps slot memory in an sqlite database.
package sqlitebus

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/platinasystems/hwtable/bus"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `CREATE TABLE IF NOT EXISTS slots (
	stage   INTEGER NOT NULL,
	address INTEGER NOT NULL,
	value   BLOB NOT NULL,
	PRIMARY KEY (stage, address)
)`

type Bus struct {
	db  *sql.DB
	put *sql.Stmt
	del *sql.Stmt
	get *sql.Stmt
}

// Open opens or creates the database at path; ":memory:" is private to
// the returned Bus.
func Open(path string) (b *Bus, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return
	}
	// One connection so that an in memory database is shared by all statements.
	db.SetMaxOpenConns(1)
	defer func() {
		if err != nil {
			db.Close()
			b = nil
		}
	}()
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("%s: schema: %w", path, err)
	}
	b = &Bus{db: db}
	for _, x := range []struct {
		stmt **sql.Stmt
		q    string
	}{
		{&b.put, "INSERT OR REPLACE INTO slots (stage, address, value) VALUES (?, ?, ?)"},
		{&b.del, "DELETE FROM slots WHERE stage = ? AND address = ?"},
		{&b.get, "SELECT value FROM slots WHERE stage = ? AND address = ?"},
	} {
		if *x.stmt, err = db.Prepare(x.q); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return
}

func (b *Bus) WriteSlot(stage uint, a bus.Address, v bus.Value) (err error) {
	if v.IsZero() {
		_, err = b.del.Exec(stage, uint32(a))
		return
	}
	blob := make([]byte, 4*len(v))
	for i, w := range v {
		binary.LittleEndian.PutUint32(blob[4*i:], w)
	}
	_, err = b.put.Exec(stage, uint32(a), blob)
	return
}

func (b *Bus) ReadSlot(stage uint, a bus.Address) (v bus.Value, err error) {
	var blob []byte
	err = b.get.QueryRow(stage, uint32(a)).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return
	}
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("stage %d %v: %d byte value", stage, a, len(blob))
	}
	v = make(bus.Value, len(blob)/4)
	for i := range v {
		v[i] = binary.LittleEndian.Uint32(blob[4*i:])
	}
	return
}

// Clear deletes every slot.
func (b *Bus) Clear() (err error) {
	_, err = b.db.Exec("DELETE FROM slots")
	return
}

// Used counts non-zero slots of a stage.
func (b *Bus) Used(stage uint) (n int, err error) {
	err = b.db.QueryRow("SELECT COUNT(*) FROM slots WHERE stage = ?", stage).Scan(&n)
	return
}

func (b *Bus) Close() error {
	for _, s := range []*sql.Stmt{b.put, b.del, b.get} {
		s.Close()
	}
	return b.db.Close()
}
