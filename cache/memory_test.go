package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestMemoryCache_GetSetDelete(t *testing.T) {
	c := NewMemoryCache("ns")
	ctx := context.Background()

	_, found, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "k", "v1", time.Minute))
	require.NoError(t, c.Set(ctx, "k", "v2", time.Minute))
	got, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v2", got)

	require.NoError(t, c.Delete(ctx, "k"))
	require.NoError(t, c.Delete(ctx, "k"), "deleting a missing key is not an error")
	_, found, _ = c.Get(ctx, "k")
	assert.False(t, found)
}

func TestMemoryCache_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := NewMemoryCache("").WithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Second))
	clock.Advance(9 * time.Second)
	_, found, _ := c.Get(ctx, "k")
	assert.True(t, found)

	clock.Advance(time.Second)
	_, found, _ = c.Get(ctx, "k")
	assert.False(t, found, "entry expires at its TTL")

	assert.ErrorIs(t, c.Set(ctx, "k", "v", 0), ErrInvalidTTL)
	_, err := c.SetNX(ctx, "k", "v", -time.Second)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestMemoryCache_SetNX(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := NewMemoryCache("").WithClock(clock.Now)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	clock.Advance(time.Minute)
	ok, err = c.SetNX(ctx, "lock", "c", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired entry does not block SetNX")
}

func TestMemoryCache_SetNXConcurrent(t *testing.T) {
	c := NewMemoryCache("")
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := c.SetNX(ctx, "lock", fmt.Sprint(i), time.Minute)
			if err == nil && ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one goroutine acquires the key")
}

func TestMemoryCache_ClearAndSweep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := NewMemoryCache("ns").WithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", "v", time.Second))
	require.NoError(t, c.Set(ctx, "long", "v", time.Hour))
	assert.Equal(t, 2, c.Len())

	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Janitor(t *testing.T) {
	c := NewMemoryCache("")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Millisecond))
	stop := c.StartJanitor(5 * time.Millisecond)
	defer stop()

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	stop()

	noop := c.StartJanitor(0)
	noop()
}

func TestKey(t *testing.T) {
	assert.Equal(t, "ns:a:b", Key("ns", "a:b"))
	assert.Equal(t, "a", Key("", "a"))
}
