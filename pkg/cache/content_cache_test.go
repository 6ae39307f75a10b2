package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentCache_miss_then_hit(t *testing.T) {
	var loads atomic.Int32

	c, err := New[string](10)
	require.NoError(t, err)

	load := func(context.Context) (string, error) {
		loads.Add(1)

		return "features", nil
	}

	v, hit, err := c.Get(context.Background(), []byte("png bytes"), load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "features", v)

	v, hit, err = c.Get(context.Background(), []byte("png bytes"), load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "features", v)

	assert.Equal(t, int32(1), loads.Load())
	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())
}

func TestContentCache_keyed_by_content(t *testing.T) {
	c, err := New[int](10)
	require.NoError(t, err)

	n := 0
	load := func(context.Context) (int, error) {
		n++

		return n, nil
	}

	a, _, err := c.Get(context.Background(), []byte{1, 2, 3}, load)
	require.NoError(t, err)

	b, _, err := c.Get(context.Background(), []byte{1, 2, 4}, load)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, KeyOf([]byte{1, 2, 3}), KeyOf([]byte{1, 2, 3}))
	assert.Len(t, KeyOf(nil).String(), 64)
}

func TestContentCache_errors_not_cached(t *testing.T) {
	c, err := New[int](10)
	require.NoError(t, err)

	boom := errors.New("inference failed")

	_, hit, err := c.Get(context.Background(), []byte("x"), func(context.Context) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, hit)
	assert.Equal(t, 0, c.Len())

	v, hit, err := c.Get(context.Background(), []byte("x"), func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)
}

func TestContentCache_singleflight(t *testing.T) {
	var loads atomic.Int32

	c, err := New[int](10)
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})

	load := func(context.Context) (int, error) {
		if loads.Add(1) == 1 {
			close(started)
		}

		<-release

		return 42, nil
	}

	const callers = 8

	var wg sync.WaitGroup

	results := make([]int, callers)

	wg.Add(1)

	go func() {
		defer wg.Done()

		results[0], _, _ = c.Get(context.Background(), []byte("same"), load)
	}()

	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			results[i], _, _ = c.Get(context.Background(), []byte("same"), load)
		}(i)
	}

	// Give the waiters time to join the in-flight load.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())

	for _, r := range results {
		assert.Equal(t, 42, r)
	}
}

func TestContentCache_invalidate(t *testing.T) {
	c, err := New[int](2)
	require.NoError(t, err)

	_, _, _ = c.Get(context.Background(), []byte("a"), func(context.Context) (int, error) { return 1, nil })

	v, ok := c.Peek([]byte("a"))
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	c.Invalidate([]byte("a"))

	_, ok = c.Peek([]byte("a"))
	assert.False(t, ok)

	_, _, _ = c.Get(context.Background(), []byte("b"), func(context.Context) (int, error) { return 2, nil })
	assert.Equal(t, 1, c.Len())

	_, err = New[int](0)
	assert.Error(t, err)
}
