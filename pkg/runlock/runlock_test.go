package runlock

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type boolRow struct {
	val bool
	err error
}

func (r boolRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*bool)) = r.val
	return nil
}

// fakeConn emulates advisory locks shared by all connections of a server.
type fakeConn struct {
	held     map[string]bool
	released int
}

func (c *fakeConn) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (c *fakeConn) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	key := args[0].(string)
	switch sql {
	case tryLockSQL:
		if c.held[key] {
			return boolRow{val: false}
		}
		c.held[key] = true
		return boolRow{val: true}
	case unlockSQL:
		was := c.held[key]
		delete(c.held, key)
		return boolRow{val: was}
	}
	return boolRow{err: errors.New("unexpected query")}
}

func (c *fakeConn) Release() {
	c.released++
}

func newFakeClient(conn *fakeConn) *Client {
	return &Client{acquire: func(context.Context) (lockConn, error) { return conn, nil }}
}

func TestAcquireIsExclusivePerDataset(t *testing.T) {
	conn := &fakeConn{held: map[string]bool{}}
	c := newFakeClient(conn)
	ctx := context.Background()

	lock, err := c.Acquire(ctx, "cuba")
	require.NoError(t, err)
	assert.Equal(t, "coordnet:run:cuba", lock.Key)
	assert.NotEmpty(t, lock.Token)

	_, err = c.Acquire(ctx, "cuba")
	assert.ErrorIs(t, err, ErrBusy)

	other, err := c.Acquire(ctx, "iran")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lock.Release(ctx))
	require.NoError(t, lock.Release(ctx))

	again, err := c.Acquire(ctx, "cuba")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))

	// busy attempt + three releases
	assert.Equal(t, 4, conn.released)
}

func TestWithLockReleases(t *testing.T) {
	conn := &fakeConn{held: map[string]bool{}}
	c := newFakeClient(conn)

	boom := errors.New("boom")
	err := c.WithLock(context.Background(), "cuba", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, conn.held[Key("cuba")])
}

func TestAcquireRejectsEmptyDataset(t *testing.T) {
	c := newFakeClient(&fakeConn{held: map[string]bool{}})
	_, err := c.Acquire(context.Background(), "")
	assert.Error(t, err)
}

func TestReleaseReportsLostLock(t *testing.T) {
	conn := &fakeConn{held: map[string]bool{}}
	c := newFakeClient(conn)
	ctx := context.Background()

	lock, err := c.Acquire(ctx, "cuba")
	require.NoError(t, err)

	// the session lost the lock, e.g. after a server side reset
	delete(conn.held, lock.Key)

	err = lock.Release(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), lock.Token)
	assert.Equal(t, 1, conn.released)
}
