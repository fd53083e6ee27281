// Package counters defines the external counter-mirror interface the
// engine writes through at commit time, and a Redis-backed implementation
// of it. The core only ever consumes the Sink interface; where counters
// actually end up is an external collaborator's concern.
package counters

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Sink publishes named counter snapshots under three namespaces:
// engine-wide fields, per-link fields, and per-app fields.
type Sink interface {
	SetEngine(fields map[string]uint64) error
	SetLink(id string, fields map[string]uint64) error
	SetApp(name string, fields map[string]uint64) error
	Close() error
}

// NopSink discards every write; used when no external mirror is
// configured.
type NopSink struct{}

func (NopSink) SetEngine(map[string]uint64) error      { return nil }
func (NopSink) SetLink(string, map[string]uint64) error { return nil }
func (NopSink) SetApp(string, map[string]uint64) error  { return nil }
func (NopSink) Close() error                            { return nil }

// RedisSink mirrors counters to Redis hashes: each Set call writes one
// hash with a single HSet inside its own TxPipeline.
type RedisSink struct {
	client *redis.Client
	ctx    context.Context
	prefix string
}

// NewRedisSink dials addr (host:port) and returns a sink writing keys
// under "<prefix>:...".
func NewRedisSink(addr, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "breathe"
	}
	return &RedisSink{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ctx:    context.Background(),
		prefix: prefix,
	}
}

func (s *RedisSink) SetEngine(fields map[string]uint64) error {
	return s.hset(s.prefix+":engine", fields)
}

func (s *RedisSink) SetLink(id string, fields map[string]uint64) error {
	return s.hset(fmt.Sprintf("%s:link:%s", s.prefix, id), fields)
}

func (s *RedisSink) SetApp(name string, fields map[string]uint64) error {
	return s.hset(fmt.Sprintf("%s:app:%s", s.prefix, name), fields)
}

func (s *RedisSink) hset(key string, fields map[string]uint64) error {
	if len(fields) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	pipe.HSet(s.ctx, key, args...)
	_, err := pipe.Exec(s.ctx)
	if err != nil && err != redis.Nil {
		return fmt.Errorf("counters: pipeline exec %s: %w", key, err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
