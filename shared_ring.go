package hash_ring

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SharedRing keeps a local Ring in step with membership held in a
// MembershipStore, so that several processes route keys identically.
// Membership changes go through the store under its lock; lookups are
// served from the local ring without touching the store.
//
// The local ring's membership follows the store: nodes present only
// locally are dropped on the next Sync.
type SharedRing struct {
	mu    sync.Mutex
	store MembershipStore
	ring  *Ring
	opts  SharedRingOptions
}

func NewSharedRing(store MembershipStore, ring *Ring, opts ...SharedRingOption) *SharedRing {
	s := SharedRing{
		store: store,
		ring:  ring,
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	repairShared(&s.opts)
	return &s
}

// AddNode registers nodeID in the store and the local ring. When a migrator
// is configured, tracked keys now owned by nodeID are handed to it.
// 1 lock the store, 2 check the node is new, 3 sync the local ring,
// 4 record the node, 5 migrate.
func (s *SharedRing) AddNode(ctx context.Context, nodeID string) error {
	if nodeID == "" {
		return errors.Wrap(ErrInvalidNodeName, "add node")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// ring-wide lock, held until migration is done
	if err := s.store.Lock(ctx, s.opts.lockExpireSeconds); err != nil {
		return errors.Wrap(err, "lock ring")
	}
	defer s.unlock(ctx)

	nodes, err := s.store.Nodes(ctx)
	if err != nil {
		return err
	}
	// the store is the source of truth for membership
	if _, ok := nodes[nodeID]; ok {
		return errors.Wrapf(ErrDuplicateNode, "add node %q", nodeID)
	}
	// Bring the local view up to date first, so the migration plan only
	// covers the keys this change moves.
	if err = s.apply(nodes); err != nil {
		return err
	}

	before := s.ring.Snapshot()
	// store first, so other processes pick the node up on their next Sync
	if err = s.store.AddNodeToReplica(ctx, nodeID, s.ring.Replicas()); err != nil {
		return err
	}
	if err = s.ring.AddNode(nodeID); err != nil {
		return err
	}
	// keys whose owner changed between before and now move to nodeID
	return s.migrate(ctx, before)
}

// RemoveNode unregisters nodeID from the store and the local ring. When a
// migrator is configured, tracked keys owned by nodeID are handed to their
// new owners.
// 1 lock the store, 2 check the node exists, 3 sync the local ring,
// 4 delete the node, 5 migrate.
func (s *SharedRing) RemoveNode(ctx context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Lock(ctx, s.opts.lockExpireSeconds); err != nil {
		return errors.Wrap(err, "lock ring")
	}
	defer s.unlock(ctx)

	nodes, err := s.store.Nodes(ctx)
	if err != nil {
		return err
	}
	// removing an unknown node is an error, nothing is touched
	if _, ok := nodes[nodeID]; !ok {
		return errors.Wrapf(ErrNodeNotFound, "remove node %q", nodeID)
	}
	if err = s.apply(nodes); err != nil {
		return err
	}

	before := s.ring.Snapshot()
	// dropping the replica entry is what removes the node from the ring
	if err = s.store.DeleteNodeToReplica(ctx, nodeID); err != nil {
		return err
	}
	if err = s.ring.RemoveNode(nodeID); err != nil {
		return err
	}
	// keys nodeID owned move to the next node clockwise
	return s.migrate(ctx, before)
}

// Sync reconciles the local ring with the store. Only the nodes that differ
// are added or removed, so keys owned by unchanged nodes never move.
func (s *SharedRing) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes, err := s.store.Nodes(ctx)
	if err != nil {
		return err
	}
	return s.apply(nodes)
}

// GetNode looks key up in the local ring.
func (s *SharedRing) GetNode(key string) (string, bool) {
	return s.ring.GetNode(key)
}

// Assign looks key up and, when a migrator is configured, records it so that
// later membership changes migrate it.
func (s *SharedRing) Assign(ctx context.Context, key string) (string, error) {
	node, ok := s.ring.GetNode(key)
	if !ok {
		return "", errors.Wrapf(ErrNoNodeAvailable, "assign %q", key)
	}
	if s.opts.migrator == nil {
		return node, nil
	}
	if err := s.store.AddDataKeys(ctx, map[string]struct{}{key: {}}); err != nil {
		return "", err
	}
	return node, nil
}

// Forget stops tracking key for migration.
func (s *SharedRing) Forget(ctx context.Context, key string) error {
	return s.store.DeleteDataKeys(ctx, map[string]struct{}{key: {}})
}

// Ring returns the local ring.
func (s *SharedRing) Ring() *Ring {
	return s.ring
}

func (s *SharedRing) apply(nodes map[string]int) error {
	for nodeID, replicas := range nodes {
		if replicas != s.ring.Replicas() {
			return errors.Wrapf(ErrReplicaMismatch, "node %q has %d replicas in store, local ring uses %d", nodeID, replicas, s.ring.Replicas())
		}
	}

	for _, nodeID := range s.ring.Nodes() {
		if _, ok := nodes[nodeID]; ok {
			continue
		}
		if err := s.ring.RemoveNode(nodeID); err != nil {
			return err
		}
	}

	missing := make([]string, 0, len(nodes))
	for nodeID := range nodes {
		if !s.ring.HasNode(nodeID) {
			missing = append(missing, nodeID)
		}
	}
	sort.Strings(missing)
	for _, nodeID := range missing {
		if err := s.ring.AddNode(nodeID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SharedRing) migrate(ctx context.Context, before *Snapshot) error {
	if s.opts.migrator == nil {
		return nil
	}

	dataKeys, err := s.store.DataKeys(ctx)
	if err != nil {
		return err
	}
	migrations := PlanMigrations(dataKeys, before, s.ring.Snapshot())
	if err = ExecuteMigrations(ctx, migrations, s.countingMigrator(), s.opts.migrationParallelism); err != nil {
		return errors.Wrap(err, "membership changed but migration failed")
	}
	return nil
}

func (s *SharedRing) countingMigrator() Migrator {
	metrics := s.ring.metrics
	return func(ctx context.Context, dataKeys map[string]struct{}, from, to string) error {
		err := s.opts.migrator(ctx, dataKeys, from, to)
		if err != nil {
			metrics.migratedFail.Add(float64(len(dataKeys)))
			s.opts.logger.WithFields(logrus.Fields{
				"from":  from,
				"to":    to,
				"keys":  len(dataKeys),
				"error": err,
			}).Error("data migration failed")
			return err
		}
		metrics.migratedOK.Add(float64(len(dataKeys)))
		return nil
	}
}

func (s *SharedRing) unlock(ctx context.Context) {
	if err := s.store.Unlock(ctx); err != nil {
		s.opts.logger.WithField("error", err).Warn("release ring lock")
	}
}
