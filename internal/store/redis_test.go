package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waypost/internal/ir"
)

// createTestRedisStore connects to WAYPOST_REDIS_ADDR or skips.
// Each test gets its own namespace so runs do not collide.
func createTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("WAYPOST_REDIS_ADDR")
	if addr == "" {
		t.Skip("WAYPOST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	ns := fmt.Sprintf("waypost-test-%d", time.Now().UnixNano())
	r, err := OpenRedis(ctx, addr, "", 0, ns)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.ClearPendingQueue(ctx)
		_ = r.ClearFailedQueue(ctx)
		r.Close()
	})
	return r
}

func TestRedisStore_PendingOrder(t *testing.T) {
	r := createTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, createTestRecord("b", 2)))
	require.NoError(t, r.Save(ctx, createTestRecord("a", 1)))

	recs, err := r.LoadPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, recordIDs(recs))
}

func TestRedisStore_UpdateUnknown(t *testing.T) {
	r := createTestRedisStore(t)

	err := r.Update(context.Background(), createTestRecord("ghost", 1))
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRedisStore_MoveRoundTrip(t *testing.T) {
	r := createTestRedisStore(t)
	ctx := context.Background()

	rec := createTestRecord("m-1", 1)
	require.NoError(t, r.Save(ctx, rec))

	rec.State = ir.StateFailed
	require.NoError(t, r.MoveToFailed(ctx, rec))

	pending, err := r.LoadPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	failed, err := r.LoadFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m-1"}, recordIDs(failed))

	rec.State = ir.StatePending
	require.NoError(t, r.MoveFromFailed(ctx, rec))
	pending, err = r.LoadPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m-1"}, recordIDs(pending))
}
