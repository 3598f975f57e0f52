package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/demdxx/gocast"
	"github.com/xiaoxuxiansheng/redis_lock"
)

// MembershipStore keeps ring membership in redis:
//   - a hash of node id -> replica count
//   - a set of data keys tracked for migration
//   - a redis_lock guarding membership changes
type MembershipStore struct {
	// namespaces every redis key of this ring
	key         string
	redisClient *Client

	mu   sync.Mutex
	lock *redis_lock.RedisLock
}

func NewMembershipStore(key string, redisClient *Client) *MembershipStore {
	return &MembershipStore{
		key:         key,
		redisClient: redisClient,
	}
}

func (r *MembershipStore) getLockKey() string {
	return fmt.Sprintf("redis:consistent_hash:ring:lock:%s", r.key)
}

func (r *MembershipStore) getNodeReplicaKey() string {
	return fmt.Sprintf("redis:consistent_hash:ring:node:replica:%s", r.key)
}

func (r *MembershipStore) getDataKeysKey() string {
	return fmt.Sprintf("redis:consistent_hash:ring:data:%s", r.key)
}

// Lock takes the ring lock. The lock expires after expireSeconds, so a
// crashed holder cannot block membership changes forever.
func (r *MembershipStore) Lock(ctx context.Context, expireSeconds int) error {
	lock := redis_lock.NewRedisLock(r.getLockKey(), r.redisClient, redis_lock.WithExpireSeconds(int64(expireSeconds)))
	if err := lock.Lock(ctx); err != nil {
		return fmt.Errorf("redis ring lock failed, err: %w", err)
	}

	r.mu.Lock()
	r.lock = lock
	r.mu.Unlock()
	return nil
}

// Unlock releases the lock taken by the last successful Lock.
func (r *MembershipStore) Unlock(ctx context.Context) error {
	r.mu.Lock()
	lock := r.lock
	r.lock = nil
	r.mu.Unlock()

	if lock == nil {
		return errors.New("redis ring unlock failed, lock not held")
	}
	if err := lock.Unlock(ctx); err != nil {
		return fmt.Errorf("redis ring unlock failed, err: %w", err)
	}
	return nil
}

func (r *MembershipStore) Nodes(ctx context.Context) (map[string]int, error) {
	rawData, err := r.redisClient.HGetAll(ctx, r.getNodeReplicaKey())
	if err != nil {
		return nil, fmt.Errorf("redis ring nodes hgetall failed, err: %w", err)
	}

	data := make(map[string]int, len(rawData))
	for rawKey, rawVal := range rawData {
		data[rawKey] = gocast.ToInt(rawVal)
	}
	return data, nil
}

func (r *MembershipStore) AddNodeToReplica(ctx context.Context, nodeID string, replicas int) error {
	if err := r.redisClient.HSet(ctx, r.getNodeReplicaKey(), nodeID, gocast.ToString(replicas)); err != nil {
		return fmt.Errorf("redis ring add node to replica failed, err: %w", err)
	}
	return nil
}

func (r *MembershipStore) DeleteNodeToReplica(ctx context.Context, nodeID string) error {
	if err := r.redisClient.HDel(ctx, r.getNodeReplicaKey(), nodeID); err != nil {
		return fmt.Errorf("redis ring delete node to replica failed, err: %w", err)
	}
	return nil
}

func (r *MembershipStore) DataKeys(ctx context.Context) (map[string]struct{}, error) {
	members, err := r.redisClient.SMembers(ctx, r.getDataKeysKey())
	if err != nil {
		return nil, fmt.Errorf("redis ring data keys smembers failed, err: %w", err)
	}

	dataKeys := make(map[string]struct{}, len(members))
	for _, member := range members {
		dataKeys[member] = struct{}{}
	}
	return dataKeys, nil
}

func (r *MembershipStore) AddDataKeys(ctx context.Context, dataKeys map[string]struct{}) error {
	if err := r.redisClient.SAdd(ctx, r.getDataKeysKey(), setToSlice(dataKeys)...); err != nil {
		return fmt.Errorf("redis ring add data keys failed, err: %w", err)
	}
	return nil
}

func (r *MembershipStore) DeleteDataKeys(ctx context.Context, dataKeys map[string]struct{}) error {
	if err := r.redisClient.SRem(ctx, r.getDataKeysKey(), setToSlice(dataKeys)...); err != nil {
		return fmt.Errorf("redis ring delete data keys failed, err: %w", err)
	}
	return nil
}

func setToSlice(set map[string]struct{}) []string {
	members := make([]string, 0, len(set))
	for member := range set {
		members = append(members, member)
	}
	return members
}
