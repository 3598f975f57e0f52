package hash_ring

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrRingLocked is returned by MemoryMembershipStore.Lock while another
	// holder owns an unexpired lock.
	ErrRingLocked = errors.New("ring lock held by another owner")
	// ErrLockNotHeld is returned by MemoryMembershipStore.Unlock when the
	// caller is not the current holder of the lock.
	ErrLockNotHeld = errors.New("can not unlock without ownership of lock")
)

// memoryMembership is the state shared by every MemoryMembershipStore
// attached to the same ring.
type memoryMembership struct {
	mu        sync.Mutex
	holder    uint64
	expiresAt time.Time
	lastOwner uint64
	nodes     map[string]int
	dataKeys  map[string]struct{}

	now func() time.Time
}

func (m *memoryMembership) attach() *MemoryMembershipStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOwner++
	return &MemoryMembershipStore{membership: m, owner: m.lastOwner}
}

// MemoryMembershipStore is a MembershipStore for rings shared between
// goroutines of a single process. Each participant takes its own store from
// Attach, so that the ring lock can only be released by the one holding it.
type MemoryMembershipStore struct {
	membership *memoryMembership
	owner      uint64
}

func NewMemoryMembershipStore() *MemoryMembershipStore {
	m := &memoryMembership{
		nodes:    make(map[string]int),
		dataKeys: make(map[string]struct{}),
		now:      time.Now,
	}
	return m.attach()
}

// Attach returns a new participant on the same membership, with its own
// lock ownership.
func (s *MemoryMembershipStore) Attach() *MemoryMembershipStore {
	return s.membership.attach()
}

func (s *MemoryMembershipStore) Lock(ctx context.Context, expireSeconds int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := s.membership
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.holder != 0 && now.Before(m.expiresAt) {
		return ErrRingLocked
	}
	m.holder = s.owner
	m.expiresAt = now.Add(time.Duration(expireSeconds) * time.Second)
	return nil
}

// Unlock releases the lock if s still holds it. A lock that expired and was
// taken over by another participant stays with that participant.
func (s *MemoryMembershipStore) Unlock(ctx context.Context) error {
	m := s.membership
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.holder != s.owner {
		return ErrLockNotHeld
	}
	m.holder = 0
	return nil
}

func (s *MemoryMembershipStore) Nodes(ctx context.Context) (map[string]int, error) {
	m := s.membership
	m.mu.Lock()
	defer m.mu.Unlock()

	nodes := make(map[string]int, len(m.nodes))
	for nodeID, replicas := range m.nodes {
		nodes[nodeID] = replicas
	}
	return nodes, nil
}

func (s *MemoryMembershipStore) AddNodeToReplica(ctx context.Context, nodeID string, replicas int) error {
	m := s.membership
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[nodeID] = replicas
	return nil
}

func (s *MemoryMembershipStore) DeleteNodeToReplica(ctx context.Context, nodeID string) error {
	m := s.membership
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, nodeID)
	return nil
}

func (s *MemoryMembershipStore) DataKeys(ctx context.Context) (map[string]struct{}, error) {
	m := s.membership
	m.mu.Lock()
	defer m.mu.Unlock()

	dataKeys := make(map[string]struct{}, len(m.dataKeys))
	for dataKey := range m.dataKeys {
		dataKeys[dataKey] = struct{}{}
	}
	return dataKeys, nil
}

func (s *MemoryMembershipStore) AddDataKeys(ctx context.Context, dataKeys map[string]struct{}) error {
	m := s.membership
	m.mu.Lock()
	defer m.mu.Unlock()
	for dataKey := range dataKeys {
		m.dataKeys[dataKey] = struct{}{}
	}
	return nil
}

func (s *MemoryMembershipStore) DeleteDataKeys(ctx context.Context, dataKeys map[string]struct{}) error {
	m := s.membership
	m.mu.Lock()
	defer m.mu.Unlock()
	for dataKey := range dataKeys {
		delete(m.dataKeys, dataKey)
	}
	return nil
}
