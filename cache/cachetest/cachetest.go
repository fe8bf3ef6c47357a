// Package cachetest provides cache doubles for tests.
package cachetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/KanavDutta/admission/cache"
)

// ErrUnavailable is returned by Failing for every operation.
var ErrUnavailable = errors.New("cache unavailable")

// Failing is a cache whose every operation fails.
type Failing struct{}

var _ cache.Cache = Failing{}

func (Failing) Get(context.Context, string) (string, bool, error) {
	return "", false, ErrUnavailable
}

func (Failing) Set(context.Context, string, string, time.Duration) error {
	return ErrUnavailable
}

func (Failing) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, ErrUnavailable
}

func (Failing) Delete(context.Context, string) error {
	return ErrUnavailable
}

// Op is one recorded cache call.
type Op struct {
	Name string // get, set, setnx, delete
	Key  string
	TTL  time.Duration
}

// Recording wraps a cache and records every call. Fail, when set, makes the
// named operation fail instead of reaching the wrapped cache.
type Recording struct {
	Next cache.Cache

	mu   sync.Mutex
	ops  []Op
	fail map[string]bool
}

var _ cache.Cache = (*Recording)(nil)

// NewRecording wraps next.
func NewRecording(next cache.Cache) *Recording {
	return &Recording{Next: next, fail: make(map[string]bool)}
}

// FailOn makes subsequent calls to the named operation return ErrUnavailable.
func (r *Recording) FailOn(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		r.fail[n] = true
	}
}

// Ops returns a copy of the recorded calls.
func (r *Recording) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// Count returns how many times the named operation was called.
func (r *Recording) Count(name string) int {
	n := 0
	for _, op := range r.Ops() {
		if op.Name == name {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls.
func (r *Recording) Reset() {
	r.mu.Lock()
	r.ops = nil
	r.mu.Unlock()
}

func (r *Recording) record(name, key string, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Name: name, Key: key, TTL: ttl})
	return r.fail[name]
}

func (r *Recording) Get(ctx context.Context, key string) (string, bool, error) {
	if r.record("get", key, 0) {
		return "", false, ErrUnavailable
	}
	return r.Next.Get(ctx, key)
}

func (r *Recording) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if r.record("set", key, ttl) {
		return ErrUnavailable
	}
	return r.Next.Set(ctx, key, value, ttl)
}

func (r *Recording) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if r.record("setnx", key, ttl) {
		return false, ErrUnavailable
	}
	return r.Next.SetNX(ctx, key, value, ttl)
}

func (r *Recording) Delete(ctx context.Context, key string) error {
	if r.record("delete", key, 0) {
		return ErrUnavailable
	}
	return r.Next.Delete(ctx, key)
}
