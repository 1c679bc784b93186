package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreReserveFinalizeLookup(t *testing.T) {
	store := NewStore(nil, time.Hour)
	ctx := context.Background()

	_, err := store.Lookup(ctx, "k1", "h1")
	assert.ErrorIs(t, err, ErrNotFound)

	reserved, err := store.Reserve(ctx, "k1", "h1")
	require.NoError(t, err)
	assert.True(t, reserved)

	// A second reservation loses.
	reserved, err = store.Reserve(ctx, "k1", "h1")
	require.NoError(t, err)
	assert.False(t, reserved)

	// Reserved but not finalized reads as in progress.
	_, err = store.Lookup(ctx, "k1", "h1")
	assert.ErrorIs(t, err, ErrInProgress)

	require.NoError(t, store.Finalize(ctx, "k1", "h1", 201, []byte(`{"id":"t-1"}`), "application/json"))

	rec, err := store.Lookup(ctx, "k1", "h1")
	require.NoError(t, err)
	assert.Equal(t, 201, rec.Status)
	assert.Equal(t, `{"id":"t-1"}`, string(rec.Body))
	assert.Equal(t, "memory", rec.ServedBy)

	_, err = store.Lookup(ctx, "k1", "other-hash")
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestStoreRelease(t *testing.T) {
	store := NewStore(nil, time.Hour)
	ctx := context.Background()

	reserved, err := store.Reserve(ctx, "k1", "h1")
	require.NoError(t, err)
	require.True(t, reserved)

	store.Release(ctx, "k1")

	reserved, err = store.Reserve(ctx, "k1", "h1")
	require.NoError(t, err)
	assert.True(t, reserved, "released keys are reservable again")
}

func TestStoreExpiry(t *testing.T) {
	store := NewStore(nil, 10*time.Millisecond)
	ctx := context.Background()

	reserved, err := store.Reserve(ctx, "k1", "h1")
	require.NoError(t, err)
	require.True(t, reserved)

	time.Sleep(20 * time.Millisecond)

	_, err = store.Lookup(ctx, "k1", "h1")
	assert.ErrorIs(t, err, ErrNotFound)

	reserved, err = store.Reserve(ctx, "k1", "h1")
	require.NoError(t, err)
	assert.True(t, reserved, "expired keys are reservable again")
}

func TestWaitForCompletion(t *testing.T) {
	store := NewStore(nil, time.Hour)
	ctx := context.Background()

	reserved, err := store.Reserve(ctx, "k1", "h1")
	require.NoError(t, err)
	require.True(t, reserved)

	go func() {
		time.Sleep(75 * time.Millisecond)
		_ = store.Finalize(context.Background(), "k1", "h1", 200, []byte("done"), "text/plain")
	}()

	rec, err := store.WaitForCompletion(ctx, "k1", "h1")
	require.NoError(t, err)
	assert.Equal(t, "done", string(rec.Body))
}

func TestWaitForCompletionHonorsContext(t *testing.T) {
	store := NewStore(nil, time.Hour)

	reserved, err := store.Reserve(context.Background(), "k1", "h1")
	require.NoError(t, err)
	require.True(t, reserved)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = store.WaitForCompletion(ctx, "k1", "h1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
