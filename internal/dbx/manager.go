package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/singleflight"
)

// ErrNotInitialized is returned by Get after Reset when no opener is set.
var ErrNotInitialized = errors.New("database connection manager is not initialized")

// ErrConnectReset is returned to callers whose connection attempt was
// overtaken by Reset. The handle it produced has already been released.
var ErrConnectReset = errors.New("database connection was reset while connecting")

// Conn is an opened handle together with whatever backs it.
type Conn struct {
	DB *sql.DB
	// Release, if set, runs after DB is closed. Pool-backed handles use it
	// to close the pool, which closing DB alone does not do.
	Release func()
}

func (c Conn) close() error {
	var err error
	if c.DB != nil {
		err = c.DB.Close()
	}
	if c.Release != nil {
		c.Release()
	}
	return err
}

// Opener establishes a new database handle.
type Opener func(ctx context.Context) (Conn, error)

// Connector hands out the shared database handle. Services depend on this
// rather than on *Manager so tests can substitute a fixed handle.
type Connector interface {
	Get(ctx context.Context) (*sql.DB, error)
}

// Manager caches one *sql.DB per process. Concurrent callers that arrive
// while a connection attempt is in flight wait for that same attempt; a
// failed attempt is not cached, so the next call retries.
type Manager struct {
	open  Opener
	group singleflight.Group

	mu   sync.RWMutex
	conn Conn
	gen  uint64
}

// NewManager returns a manager that connects lazily with open.
func NewManager(open Opener) *Manager {
	return &Manager{open: open}
}

// Init connects eagerly. It is equivalent to Get, discarding the handle.
func (m *Manager) Init(ctx context.Context) error {
	_, err := m.Get(ctx)
	return err
}

// Get returns the cached handle, connecting first if needed. A caller whose
// ctx ends while an attempt is in flight returns ctx.Err(); the attempt
// itself keeps running and its result is cached for later callers.
func (m *Manager) Get(ctx context.Context) (*sql.DB, error) {
	m.mu.RLock()
	db := m.conn.DB
	m.mu.RUnlock()
	if db != nil {
		return db, nil
	}
	if m.open == nil {
		return nil, ErrNotInitialized
	}

	ch := m.group.DoChan("connect", func() (any, error) {
		m.mu.RLock()
		cached, gen := m.conn.DB, m.gen
		m.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		// The attempt is shared, so it must not die with the first caller's context.
		opened, err := m.open(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			_ = opened.close()
			return nil, ErrConnectReset
		}
		m.conn = opened
		m.mu.Unlock()
		return opened.DB, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*sql.DB), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reset closes and forgets the cached handle. An attempt still in flight
// is discarded when it completes. The next Get reconnects.
func (m *Manager) Reset() error {
	m.mu.Lock()
	conn := m.conn
	m.conn = Conn{}
	m.gen++
	m.mu.Unlock()
	// Callers arriving from now on start a fresh attempt.
	m.group.Forget("connect")

	return conn.close()
}

// PoolOptions tunes the pgx pool behind OpenPostgres.
type PoolOptions struct {
	MaxConns    int32
	MinConns    int32
	PingTimeout time.Duration
}

// OpenPostgres returns an Opener that builds a pgxpool from dsn, checks
// connectivity and exposes the pool through database/sql.
func OpenPostgres(dsn string, opts PoolOptions) Opener {
	return func(ctx context.Context) (Conn, error) {
		pcfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return Conn{}, fmt.Errorf("parse database url: %w", err)
		}
		if opts.MaxConns > 0 {
			pcfg.MaxConns = opts.MaxConns
		}
		if opts.MinConns > 0 {
			pcfg.MinConns = opts.MinConns
		}

		pool, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return Conn{}, fmt.Errorf("create pool: %w", err)
		}

		timeout := opts.PingTimeout
		if timeout <= 0 {
			timeout = 3 * time.Second
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return Conn{}, fmt.Errorf("ping database: %w", err)
		}

		return Conn{DB: stdlib.OpenDBFromPool(pool), Release: pool.Close}, nil
	}
}
