package pipeline

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	assert.Equal(t, int64(101), NewClockAt(100).Next())
}

func TestClockConcurrentNextIsUnique(t *testing.T) {
	c := NewClock()
	const goroutines, calls = 20, 50

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range calls {
				seq := c.Next()
				mu.Lock()
				seen[seq] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*calls)
	assert.Equal(t, int64(goroutines*calls), c.Current())
}

func TestUUIDv7Generator(t *testing.T) {
	var gen UUIDv7Generator
	a, b := gen.Generate(), gen.Generate()

	id, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
