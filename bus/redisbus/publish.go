// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package redisbus

import (
	"sort"

	"github.com/garyburd/redigo/redis"
	goesredis "github.com/platinasystems/redis"
)

// Publisher sets counters as fields NAME.COUNTER of a redis hash.
type Publisher struct {
	key  string
	hset func(key, field string, v interface{}) error
}

func NewPublisher(conn redis.Conn, key string) *Publisher {
	return &Publisher{
		key: key,
		hset: func(key, field string, v interface{}) error {
			_, err := conn.Do("HSET", key, field, v)
			return err
		},
	}
}

// Local publishes to the machine's default hash through the local redisd.
func Local() *Publisher {
	return &Publisher{
		key: goesredis.DefaultHash,
		hset: func(key, field string, v interface{}) error {
			_, err := goesredis.Hset(key, field, v)
			return err
		},
	}
}

func (p *Publisher) Publish(name string, fields map[string]uint64) error {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)
	for _, f := range names {
		if err := p.hset(p.key, name+"."+f, fields[f]); err != nil {
			return err
		}
	}
	return nil
}
