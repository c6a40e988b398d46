// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package redisbus keeps slot memory in redis hashes, one hash per stage,
// so that table contents may be inspected or replayed by other processes.
package redisbus

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/platinasystems/hwtable/bus"

	"github.com/garyburd/redigo/redis"
	"github.com/jpillora/backoff"
	"github.com/platinasystems/log"
)

// Bus writes HSET PREFIX.stageN ADDRESS HEX; zero values are deleted.
type Bus struct {
	mu     sync.Mutex
	conn   redis.Conn
	prefix string
}

func New(conn redis.Conn, prefix string) *Bus {
	return &Bus{conn: conn, prefix: prefix}
}

func (b *Bus) Key(stage uint) string { return fmt.Sprintf("%s.stage%d", b.prefix, stage) }

func (b *Bus) WriteSlot(stage uint, a bus.Address, v bus.Value) (err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	field := strconv.FormatUint(uint64(a), 10)
	if v.IsZero() {
		_, err = b.conn.Do("HDEL", b.Key(stage), field)
	} else {
		_, err = b.conn.Do("HSET", b.Key(stage), field, v.String())
	}
	return
}

func (b *Bus) ReadSlot(stage uint, a bus.Address) (bus.Value, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := redis.String(b.conn.Do("HGET", b.Key(stage), strconv.FormatUint(uint64(a), 10)))
	if err == redis.ErrNil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bus.ParseValue(s)
}

// Clear deletes the hashes of given stages.
func (b *Bus) Clear(stages ...uint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range stages {
		if _, err := b.conn.Do("DEL", b.Key(s)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) Close() error { return b.conn.Close() }

// Dial connects to a redis server, retrying with exponential backoff until
// timeout.
func Dial(network, addr string, timeout time.Duration) (redis.Conn, error) {
	bo := &backoff.Backoff{
		Min:    50 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: false,
	}
	deadline := time.Now().Add(timeout)
	for {
		conn, err := redis.Dial(network, addr)
		if err == nil {
			return conn, nil
		}
		d := bo.Duration()
		if time.Now().Add(d).After(deadline) {
			return nil, fmt.Errorf("redis %s: %w", addr, err)
		}
		log.Print("daemon", "warning", "redis ", addr, ": ", err, ": retry in ", d)
		time.Sleep(d)
	}
}
