package hash_ring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryMembershipStoreLockExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	store := NewMemoryMembershipStore()
	store.membership.now = func() time.Time { return now }

	require.NoError(t, store.Lock(ctx, 10))
	require.ErrorIs(t, store.Lock(ctx, 10), ErrRingLocked)

	now = now.Add(11 * time.Second)
	require.NoError(t, store.Lock(ctx, 10), "an expired lock can be taken over")
	require.NoError(t, store.Unlock(ctx))
	require.ErrorIs(t, store.Unlock(ctx), ErrLockNotHeld)
}

func TestMemoryMembershipStoreUnlockRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	first := NewMemoryMembershipStore()
	first.membership.now = func() time.Time { return now }
	second := first.Attach()
	third := first.Attach()

	require.NoError(t, first.Lock(ctx, 10))
	require.ErrorIs(t, second.Unlock(ctx), ErrLockNotHeld)
	require.ErrorIs(t, second.Lock(ctx, 10), ErrRingLocked)

	// first's lock expires and second takes over.
	now = now.Add(11 * time.Second)
	require.NoError(t, second.Lock(ctx, 10))
	require.ErrorIs(t, first.Unlock(ctx), ErrLockNotHeld)
	require.ErrorIs(t, third.Lock(ctx, 10), ErrRingLocked, "second still holds the lock")

	require.NoError(t, second.Unlock(ctx))
	require.NoError(t, third.Lock(ctx, 10))
	require.NoError(t, third.Unlock(ctx))
}

func TestMemoryMembershipStoreAttachSharesMembership(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMembershipStore()
	attached := store.Attach()

	require.NoError(t, store.AddNodeToReplica(ctx, "a", 3))
	require.NoError(t, attached.AddDataKeys(ctx, map[string]struct{}{"k": {}}))

	nodes, err := attached.Nodes(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"a": 3}, nodes)
	dataKeys, err := store.DataKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{"k": {}}, dataKeys)
}

func TestMemoryMembershipStoreLockHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, NewMemoryMembershipStore().Lock(ctx, 10), context.Canceled)
}

func TestMemoryMembershipStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMembershipStore()
	require.NoError(t, store.AddNodeToReplica(ctx, "a", 3))
	require.NoError(t, store.AddDataKeys(ctx, map[string]struct{}{"k": {}}))

	nodes, err := store.Nodes(ctx)
	require.NoError(t, err)
	nodes["b"] = 3
	dataKeys, err := store.DataKeys(ctx)
	require.NoError(t, err)
	delete(dataKeys, "k")

	nodes, err = store.Nodes(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"a": 3}, nodes)
	dataKeys, err = store.DataKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{"k": {}}, dataKeys)

	require.NoError(t, store.DeleteNodeToReplica(ctx, "a"))
	require.NoError(t, store.DeleteDataKeys(ctx, map[string]struct{}{"k": {}}))
	nodes, _ = store.Nodes(ctx)
	require.Empty(t, nodes)
}
