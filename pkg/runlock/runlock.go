// Package runlock serializes pipeline runs per dataset with Postgres session
// advisory locks. A lock is bound to one pooled connection, which is held
// until Release.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/OFFIS-RIT/coordnet/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var ErrBusy = errors.New("run lock busy")

const (
	keyNamespace = "coordnet:run:"

	tryLockSQL = `SELECT pg_try_advisory_lock(hashtextextended($1, 0))`
	unlockSQL  = `SELECT pg_advisory_unlock(hashtextextended($1, 0))`
)

type lockConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Release()
}

type connSource func(ctx context.Context) (lockConn, error)

type Client struct {
	acquire connSource
}

// Lock is a held run lock. Token identifies the holder in logs.
type Lock struct {
	Key   string
	Token string

	conn lockConn
	once sync.Once
}

func New(pool *pgxpool.Pool) *Client {
	return &Client{acquire: func(ctx context.Context) (lockConn, error) {
		return pool.Acquire(ctx)
	}}
}

// Key returns the lock key of a dataset.
func Key(dataset string) string {
	return keyNamespace + dataset
}

// Acquire takes the run lock for dataset without waiting. It fails with
// ErrBusy when another session holds it.
func (c *Client) Acquire(ctx context.Context, dataset string) (*Lock, error) {
	if dataset == "" {
		return nil, errors.New("run lock dataset is empty")
	}
	token, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	conn, err := c.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	key := Key(dataset)
	var ok bool
	if err := conn.QueryRow(ctx, tryLockSQL, key).Scan(&ok); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to take run lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, fmt.Errorf("dataset %s: %w", dataset, ErrBusy)
	}

	logger.Info("[Lock] Run lock acquired", "key", key, "token", token)
	return &Lock{Key: key, Token: token, conn: conn}, nil
}

// WithLock runs fn while holding the run lock for dataset.
func (c *Client) WithLock(ctx context.Context, dataset string, fn func(ctx context.Context) error) error {
	lock, err := c.Acquire(ctx, dataset)
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release(context.Background())
	}()
	return fn(ctx)
}

// Release unlocks and returns the connection to the pool. Calling it more
// than once is a no-op.
func (l *Lock) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		defer l.conn.Release()
		var released bool
		err = l.conn.QueryRow(ctx, unlockSQL, l.Key).Scan(&released)
		if err == nil && !released {
			err = fmt.Errorf("run lock %s (token %s) was not held", l.Key, l.Token)
		}
		if err != nil {
			logger.Warn("[Lock] Run lock release failed", "key", l.Key, "token", l.Token, "err", err)
			return
		}
		logger.Info("[Lock] Run lock released", "key", l.Key, "token", l.Token)
	})
	return err
}
