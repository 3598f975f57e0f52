package hash_ring

import "github.com/pkg/errors"

var (
	// ErrInvalidReplicas is returned when a ring is configured with a non-positive replica count.
	ErrInvalidReplicas = errors.New("replica count must be positive")
	// ErrInvalidNodeName is returned for an empty node name.
	ErrInvalidNodeName = errors.New("node name must not be empty")
	// ErrDuplicateNode is returned when adding a node that is already present.
	ErrDuplicateNode = errors.New("repeat node")
	// ErrNodeNotFound is returned when removing a node that was never added.
	ErrNodeNotFound = errors.New("invalid node id")
	// ErrNoNodeAvailable is returned by SharedRing.Assign on an empty ring.
	ErrNoNodeAvailable = errors.New("no node available")
	// ErrReplicaMismatch is returned when the membership store records a
	// replica count different from the local ring.
	ErrReplicaMismatch = errors.New("replica count mismatch")
	// ErrUnknownEncryptor is returned by EncryptorByName.
	ErrUnknownEncryptor = errors.New("unknown encryptor")
)
