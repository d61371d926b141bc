package dbx

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:dbx_manager_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	return db
}

func TestManager_ConcurrentGetSharesOneAttempt(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	db := openMemory(t)

	m := NewManager(func(ctx context.Context) (Conn, error) {
		calls.Add(1)
		<-release
		return Conn{DB: db}, nil
	})
	t.Cleanup(func() { _ = m.Reset() })

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*sql.DB, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Get(context.Background())
		}(i)
	}

	// give every caller a chance to queue behind the first attempt
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "only one connection attempt may run")
	for i := range results {
		require.NoError(t, errs[i])
		assert.Same(t, db, results[i])
	}
}

func TestManager_FailedAttemptIsNotCached(t *testing.T) {
	var calls atomic.Int32
	db := openMemory(t)

	m := NewManager(func(ctx context.Context) (Conn, error) {
		if calls.Add(1) == 1 {
			return Conn{}, errors.New("connection refused")
		}
		return Conn{DB: db}, nil
	})
	t.Cleanup(func() { _ = m.Reset() })

	_, err := m.Get(context.Background())
	require.EqualError(t, err, "connection refused")

	got, err := m.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, db, got)
	assert.Equal(t, int32(2), calls.Load())

	// cached now
	_, err = m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestManager_InitAndReset(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(func(ctx context.Context) (Conn, error) {
		calls.Add(1)
		return Conn{DB: openMemory(t)}, nil
	})

	require.NoError(t, m.Init(context.Background()))
	require.NoError(t, m.Reset())
	require.NoError(t, m.Reset(), "second reset is a no-op")

	_, err := m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "reset forces a reconnect")
	require.NoError(t, m.Reset())
}

func TestManager_ResetReleasesBackingResources(t *testing.T) {
	var released atomic.Int32
	m := NewManager(func(ctx context.Context) (Conn, error) {
		return Conn{DB: openMemory(t), Release: func() { released.Add(1) }}, nil
	})

	db, err := m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(0), released.Load())

	require.NoError(t, m.Reset())
	assert.Equal(t, int32(1), released.Load())
	assert.Error(t, db.PingContext(context.Background()), "handle must be closed")

	require.NoError(t, m.Reset())
	assert.Equal(t, int32(1), released.Load(), "nothing left to release")
}

func TestManager_ResetDiscardsInFlightAttempt(t *testing.T) {
	var calls, released atomic.Int32
	started := make(chan struct{})
	unblock := make(chan struct{})
	stale := openMemory(t)
	fresh := openMemory(t)

	m := NewManager(func(ctx context.Context) (Conn, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-unblock
			return Conn{DB: stale, Release: func() { released.Add(1) }}, nil
		}
		return Conn{DB: fresh}, nil
	})
	t.Cleanup(func() { _ = m.Reset() })

	done := make(chan error, 1)
	go func() {
		_, err := m.Get(context.Background())
		done <- err
	}()

	<-started
	require.NoError(t, m.Reset())
	close(unblock)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrConnectReset)
	case <-time.After(2 * time.Second):
		t.Fatal("Get did not return")
	}
	assert.Equal(t, int32(1), released.Load(), "stale handle must be released")
	assert.Error(t, stale.PingContext(context.Background()), "stale handle must be closed")

	got, err := m.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, fresh, got, "reset attempt must not be cached")
	assert.Equal(t, int32(2), calls.Load())
}

func TestManager_CanceledCallerReturnsEarly(t *testing.T) {
	var calls atomic.Int32
	unblock := make(chan struct{})
	db := openMemory(t)

	m := NewManager(func(ctx context.Context) (Conn, error) {
		calls.Add(1)
		<-unblock
		// the shared attempt outlives the caller that started it
		if err := ctx.Err(); err != nil {
			return Conn{}, err
		}
		return Conn{DB: db}, nil
	})
	t.Cleanup(func() { _ = m.Reset() })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := m.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	close(unblock)
	require.Eventually(t, func() bool {
		got, err := m.Get(context.Background())
		return err == nil && got == db
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "abandoned attempt is cached for later callers")
}

func TestManager_NilOpener(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Get(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestOpenPostgres_BadDSN(t *testing.T) {
	open := OpenPostgres("postgres://%zz", PoolOptions{})
	_, err := open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse database url")
}
