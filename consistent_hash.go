package hash_ring

import (
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Ring assigns string keys to named nodes by consistent hashing. Each node
// owns replicas positions on the ring, derived from "{name}:{i}". A key
// belongs to the owner of the first position at or after its own hash,
// wrapping around past the largest position.
//
// Ring is safe for concurrent use. AddNode and RemoveNode take the write
// lock; lookups share the read lock.
type Ring struct {
	mu       sync.RWMutex
	replicas int
	table    table

	opts    RingOptions
	metrics *ringMetrics
}

// NewRing creates a ring placing replicas positions per node. Nodes passed
// through WithNodes are added in order.
func NewRing(replicas int, opts ...RingOption) (*Ring, error) {
	if replicas <= 0 {
		return nil, errors.Wrapf(ErrInvalidReplicas, "replicas: %d", replicas)
	}

	r := &Ring{
		replicas: replicas,
		table:    newTable(),
	}
	for _, opt := range opts {
		opt(&r.opts)
	}
	repair(&r.opts)
	r.metrics = newRingMetrics(r.opts.name)

	for _, node := range r.opts.nodes {
		if err := r.AddNode(node); err != nil {
			return nil, err
		}
	}
	r.updateGauges()
	return r, nil
}

// AddNode places the node's positions on the ring. Adding a name that is
// already present fails with ErrDuplicateNode and leaves the ring untouched.
//
// If a position is already owned, the new node takes it over until it is
// removed again, at which point the previous owner gets it back. This is
// logged and counted but not treated as an error.
func (r *Ring) AddNode(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidNodeName, "add node")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.table.members[name]; ok {
		return errors.Wrapf(ErrDuplicateNode, "add node %q", name)
	}

	r.table.members[name] = struct{}{}
	// one position per replica, derived from "{name}:{i}"
	for i := 0; i < r.replicas; i++ {
		nodeKey := getRawNodeKey(name, i)
		pos := r.opts.encryptor.Encrypt(nodeKey)
		if previous, collided := r.table.insert(pos, name); collided {
			r.metrics.collisions.Inc()
			r.opts.logger.WithFields(logrus.Fields{
				"ring":     r.opts.name,
				"node":     name,
				"replica":  nodeKey,
				"position": pos.String(),
				"previous": previous,
			}).Warn("ring position collision, previous owner overwritten")
		}
	}

	r.metrics.added.Inc()
	r.updateGauges()
	r.opts.logger.WithFields(logrus.Fields{
		"ring":      r.opts.name,
		"node":      name,
		"positions": len(r.table.positions),
	}).Debug("node added")
	return nil
}

// RemoveNode drops the node's positions from the ring. Removing a name that
// was never added fails with ErrNodeNotFound and leaves the ring untouched.
func (r *Ring) RemoveNode(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.table.members[name]; !ok {
		return errors.Wrapf(ErrNodeNotFound, "remove node %q", name)
	}

	delete(r.table.members, name)
	// a position this node took over goes back to its previous claimant
	for i := 0; i < r.replicas; i++ {
		r.table.remove(r.opts.encryptor.Encrypt(getRawNodeKey(name, i)), name)
	}

	r.metrics.removed.Inc()
	r.updateGauges()
	r.opts.logger.WithFields(logrus.Fields{
		"ring":      r.opts.name,
		"node":      name,
		"positions": len(r.table.positions),
	}).Debug("node removed")
	return nil
}

// GetNode returns the node owning key. The second result is false iff the
// ring has no nodes.
func (r *Ring) GetNode(key string) (string, bool) {
	pos := r.opts.encryptor.Encrypt(key)

	r.mu.RLock()
	node, ok := r.table.lookup(pos)
	r.mu.RUnlock()

	if ok {
		r.metrics.lookupFound.Inc()
	} else {
		r.metrics.lookupEmpty.Inc()
	}
	return node, ok
}

// GetNodes returns up to n distinct nodes for key, in clockwise order
// starting with the node GetNode would return.
func (r *Ring) GetNodes(key string, n int) []string {
	pos := r.opts.encryptor.Encrypt(key)

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.table.preference(pos, n)
}

// Nodes returns the member names in ascending order.
func (r *Ring) Nodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.table.nodeNames()
}

// Positions returns a copy of the stored positions in ascending order.
func (r *Ring) Positions() []Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.table.copyPositions()
}

// HasNode reports whether name is a member of the ring.
func (r *Ring) HasNode(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.table.members[name]
	return ok
}

func (r *Ring) Replicas() int {
	return r.replicas
}

// Len returns the number of member nodes.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.table.members)
}

func (r *Ring) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Snapshot{
		replicas:  r.replicas,
		encryptor: r.opts.encryptor,
		table:     r.table.clone(),
	}
}

func (r *Ring) updateGauges() {
	r.metrics.nodes.Set(float64(len(r.table.members)))
	r.metrics.positions.Set(float64(len(r.table.positions)))
}

func getRawNodeKey(nodeID string, index int) string {
	return nodeID + ":" + strconv.Itoa(index)
}
