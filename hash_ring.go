package hash_ring

import "context"

// MembershipStore holds ring membership shared between processes. Positions
// are never stored: every process derives them from the node names, so only
// the name -> replicas table and the tracked data keys live in the store.
type MembershipStore interface {
	// Lock takes the ring-wide lock. The lock is released automatically
	// after expireSeconds if Unlock is never called.
	Lock(ctx context.Context, expireSeconds int) error
	// Unlock releases the lock taken by Lock.
	Unlock(ctx context.Context) error
	// Nodes returns every member node mapped to its replica count.
	Nodes(ctx context.Context) (map[string]int, error)
	// AddNodeToReplica records nodeID as a member placing replicas positions.
	AddNodeToReplica(ctx context.Context, nodeID string, replicas int) error
	// DeleteNodeToReplica removes nodeID from the membership.
	DeleteNodeToReplica(ctx context.Context, nodeID string) error
	// DataKeys returns every data key tracked for migration.
	DataKeys(ctx context.Context) (map[string]struct{}, error)
	// AddDataKeys starts tracking dataKeys.
	AddDataKeys(ctx context.Context, dataKeys map[string]struct{}) error
	// DeleteDataKeys stops tracking dataKeys.
	DeleteDataKeys(ctx context.Context, dataKeys map[string]struct{}) error
}
