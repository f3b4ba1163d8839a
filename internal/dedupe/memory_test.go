package dedupe

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

func newTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{
		Level:  "error",
		Format: "json",
	})
}

func TestMemoryDedupe_FirstSeenThenDuplicate(t *testing.T) {
	t.Parallel()

	m := NewInMemoryDedupe(newTestLogger(), 200*time.Millisecond, 0)
	defer m.Close()

	ctx := context.Background()
	const id = "report:1:row:1"

	seen, err := m.Seen(ctx, id)
	require.NoError(t, err)
	require.False(t, seen)

	seen, err = m.Seen(ctx, id)
	require.NoError(t, err)
	require.True(t, seen)
}

func TestMemoryDedupe_Expiration(t *testing.T) {
	t.Parallel()

	ttl := 50 * time.Millisecond
	m := NewInMemoryDedupe(newTestLogger(), ttl, 0)
	defer m.Close()

	ctx := context.Background()
	const id = "report:2:row:7"

	seen, _ := m.Seen(ctx, id)
	require.False(t, seen)

	time.Sleep(ttl + 20*time.Millisecond)

	seen, _ = m.Seen(ctx, id)
	require.False(t, seen, "after TTL the id must count as first again")
}

func TestMemoryDedupe_JanitorCleansUp(t *testing.T) {
	t.Parallel()

	ttl := 20 * time.Millisecond
	janitorEvery := 15 * time.Millisecond

	m := NewInMemoryDedupe(newTestLogger(), ttl, janitorEvery)
	defer m.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = m.Seen(ctx, fmt.Sprintf("k-%d", i))
	}

	time.Sleep(ttl + 4*janitorEvery)

	m.mu.RLock()
	size := len(m.items)
	m.mu.RUnlock()

	require.Zero(t, size, "janitor must sweep expired items")
}

func TestMemoryDedupe_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	m := NewInMemoryDedupe(newTestLogger(), 50*time.Millisecond, 10*time.Millisecond)

	m.Close()
	m.Close()
}

func TestMemoryDedupe_ConcurrentSameID(t *testing.T) {
	t.Parallel()

	m := NewInMemoryDedupe(newTestLogger(), 500*time.Millisecond, 0)
	defer m.Close()

	ctx := context.Background()
	const id = "same-id"
	const workers = 64

	var wg sync.WaitGroup
	wg.Add(workers)

	var mu sync.Mutex
	var firstCount, dupCount int

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			seen, err := m.Seen(ctx, id)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			if seen {
				dupCount++
			} else {
				firstCount++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, firstCount)
	require.Equal(t, workers-1, dupCount)
}
