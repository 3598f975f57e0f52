package hash_ring_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	hash_ring "github.com/pule1234/hash_ring"
)

type recordingMigrator struct {
	mu    sync.Mutex
	moves map[string][2]string
	err   error
}

func newRecordingMigrator() *recordingMigrator {
	return &recordingMigrator{moves: make(map[string][2]string)}
}

func (r *recordingMigrator) migrate(ctx context.Context, dataKeys map[string]struct{}, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for key := range dataKeys {
		r.moves[key] = [2]string{from, to}
	}
	return nil
}

func (r *recordingMigrator) reset() map[string][2]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	moves := r.moves
	r.moves = make(map[string][2]string)
	return moves
}

func newSharedRing(t *testing.T, store hash_ring.MembershipStore, opts ...hash_ring.SharedRingOption) *hash_ring.SharedRing {
	t.Helper()
	logger, _ := test.NewNullLogger()
	opts = append([]hash_ring.SharedRingOption{hash_ring.WithSharedRingLogger(logger)}, opts...)
	return hash_ring.NewSharedRing(store, newRing(t, 16), opts...)
}

func TestSharedRingMembership(t *testing.T) {
	ctx := context.Background()
	store := hash_ring.NewMemoryMembershipStore()
	shared := newSharedRing(t, store)

	require.NoError(t, shared.AddNode(ctx, "A"))
	require.NoError(t, shared.AddNode(ctx, "B"))
	require.ErrorIs(t, shared.AddNode(ctx, "A"), hash_ring.ErrDuplicateNode)
	require.ErrorIs(t, shared.AddNode(ctx, ""), hash_ring.ErrInvalidNodeName)
	require.ErrorIs(t, shared.RemoveNode(ctx, "C"), hash_ring.ErrNodeNotFound)

	nodes, err := store.Nodes(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"A": 16, "B": 16}, nodes)
	require.Equal(t, []string{"A", "B"}, shared.Ring().Nodes())

	require.NoError(t, shared.RemoveNode(ctx, "A"))
	require.Equal(t, []string{"B"}, shared.Ring().Nodes())
	node, ok := shared.GetNode("key")
	require.True(t, ok)
	require.Equal(t, "B", node)
}

func TestSharedRingsConvergeThroughStore(t *testing.T) {
	ctx := context.Background()
	store := hash_ring.NewMemoryMembershipStore()
	first := newSharedRing(t, store)
	second := newSharedRing(t, store.Attach())

	for _, node := range []string{"A", "B", "C"} {
		require.NoError(t, first.AddNode(ctx, node))
	}
	require.NoError(t, second.Sync(ctx))

	keys := sampleKeys(1000)
	require.Equal(t, assignments(first, keys), assignments(second, keys))

	require.NoError(t, second.RemoveNode(ctx, "B"))
	require.NoError(t, first.Sync(ctx))
	require.Equal(t, []string{"A", "C"}, first.Ring().Nodes())
	require.Equal(t, assignments(first, keys), assignments(second, keys))
}

func TestSharedRingSyncDropsLocalOnlyNodes(t *testing.T) {
	ctx := context.Background()
	store := hash_ring.NewMemoryMembershipStore()
	require.NoError(t, store.AddNodeToReplica(ctx, "A", 4))

	ring := newRing(t, 4, "local")
	shared := hash_ring.NewSharedRing(store, ring)
	require.NoError(t, shared.Sync(ctx))
	require.Equal(t, []string{"A"}, ring.Nodes())
}

func TestSharedRingReplicaMismatch(t *testing.T) {
	ctx := context.Background()
	store := hash_ring.NewMemoryMembershipStore()
	require.NoError(t, store.AddNodeToReplica(ctx, "A", 5))

	shared := newSharedRing(t, store)
	require.ErrorIs(t, shared.Sync(ctx), hash_ring.ErrReplicaMismatch)
	require.ErrorIs(t, shared.AddNode(ctx, "B"), hash_ring.ErrReplicaMismatch)
}

func TestSharedRingLockHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	store := hash_ring.NewMemoryMembershipStore()
	other := store.Attach()
	shared := newSharedRing(t, store)

	require.NoError(t, other.Lock(ctx, 60))
	require.ErrorIs(t, shared.AddNode(ctx, "A"), hash_ring.ErrRingLocked)
	require.NoError(t, other.Unlock(ctx))
	require.NoError(t, shared.AddNode(ctx, "A"))
}

func TestSharedRingMigratesTrackedKeys(t *testing.T) {
	ctx := context.Background()
	store := hash_ring.NewMemoryMembershipStore()
	migrator := newRecordingMigrator()
	shared := newSharedRing(t, store, hash_ring.WithMigrator(migrator.migrate), hash_ring.WithMigrationParallelism(2))

	require.NoError(t, shared.AddNode(ctx, "A"))
	require.Empty(t, migrator.reset(), "nothing is tracked yet")
	require.NoError(t, shared.AddNode(ctx, "B"))

	keys := sampleKeys(500)
	owners := make(map[string]string, len(keys))
	for _, key := range keys {
		node, err := shared.Assign(ctx, key)
		require.NoError(t, err)
		owners[key] = node
	}
	tracked, err := store.DataKeys(ctx)
	require.NoError(t, err)
	require.Len(t, tracked, len(keys))

	require.NoError(t, shared.AddNode(ctx, "C"))
	moves := migrator.reset()
	require.NotEmpty(t, moves)
	for _, key := range keys {
		now, _ := shared.GetNode(key)
		move, moved := moves[key]
		require.Equal(t, now == "C", moved, key)
		if moved {
			require.Equal(t, [2]string{owners[key], "C"}, move)
		}
	}

	require.NoError(t, shared.RemoveNode(ctx, "C"))
	for key, move := range migrator.reset() {
		require.Equal(t, "C", move[0])
		require.Equal(t, owners[key], move[1])
	}
}

func TestSharedRingMigrationFailureKeepsMembership(t *testing.T) {
	ctx := context.Background()
	store := hash_ring.NewMemoryMembershipStore()
	migrator := newRecordingMigrator()
	shared := newSharedRing(t, store, hash_ring.WithMigrator(migrator.migrate))

	require.NoError(t, shared.AddNode(ctx, "A"))
	for _, key := range sampleKeys(200) {
		_, err := shared.Assign(ctx, key)
		require.NoError(t, err)
	}

	migrator.err = errors.New("target unreachable")
	err := shared.AddNode(ctx, "B")
	require.ErrorIs(t, err, migrator.err)
	require.Equal(t, []string{"A", "B"}, shared.Ring().Nodes())
}

func TestSharedRingAssign(t *testing.T) {
	ctx := context.Background()
	store := hash_ring.NewMemoryMembershipStore()

	plain := newSharedRing(t, store)
	_, err := plain.Assign(ctx, "key")
	require.ErrorIs(t, err, hash_ring.ErrNoNodeAvailable)

	require.NoError(t, plain.AddNode(ctx, "A"))
	node, err := plain.Assign(ctx, "key")
	require.NoError(t, err)
	require.Equal(t, "A", node)
	tracked, err := store.DataKeys(ctx)
	require.NoError(t, err)
	require.Empty(t, tracked, "keys are only tracked when a migrator is configured")

	tracking := newSharedRing(t, store, hash_ring.WithMigrator(newRecordingMigrator().migrate))
	require.NoError(t, tracking.Sync(ctx))
	_, err = tracking.Assign(ctx, "key")
	require.NoError(t, err)
	tracked, err = store.DataKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{"key": {}}, tracked)

	require.NoError(t, tracking.Forget(ctx, "key"))
	tracked, err = store.DataKeys(ctx)
	require.NoError(t, err)
	require.Empty(t, tracked)
}
