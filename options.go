package hash_ring

import (
	"strconv"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultReplicas is the replica count used by the demo harness and config defaults.
	DefaultReplicas = 3

	defaultRingName             = "default"
	defaultLockExpireSeconds    = 15
	defaultMigrationParallelism = 8
)

var unnamedRings uint64

type RingOptions struct {
	name      string
	encryptor Encryptor
	logger    logrus.FieldLogger
	nodes     []string
}

type RingOption func(opts *RingOptions)

// WithName labels the ring in logs and metrics. Rings created without a
// name are labelled "default-1", "default-2" and so on, which keeps their
// gauges apart but is not stable across restarts.
func WithName(name string) RingOption {
	return func(opts *RingOptions) {
		opts.name = name
	}
}

// WithEncryptor replaces the default MD5 encryptor.
func WithEncryptor(encryptor Encryptor) RingOption {
	return func(opts *RingOptions) {
		opts.encryptor = encryptor
	}
}

func WithLogger(logger logrus.FieldLogger) RingOption {
	return func(opts *RingOptions) {
		opts.logger = logger
	}
}

// WithNodes adds the given nodes, in order, when the ring is constructed.
func WithNodes(nodes ...string) RingOption {
	return func(opts *RingOptions) {
		opts.nodes = append(opts.nodes, nodes...)
	}
}

func repair(opts *RingOptions) {
	if opts.name == "" {
		opts.name = defaultRingName + "-" + strconv.FormatUint(atomic.AddUint64(&unnamedRings, 1), 10)
	}
	if opts.encryptor == nil {
		opts.encryptor = NewMD5Encryptor()
	}
	if opts.logger == nil {
		opts.logger = logrus.StandardLogger()
	}
}

type SharedRingOptions struct {
	lockExpireSeconds    int
	migrator             Migrator
	migrationParallelism int
	logger               logrus.FieldLogger
}

type SharedRingOption func(opts *SharedRingOptions)

// WithLockExpireSeconds bounds how long a membership change may hold the
// store lock before it is released automatically.
func WithLockExpireSeconds(seconds int) SharedRingOption {
	return func(opts *SharedRingOptions) {
		opts.lockExpireSeconds = seconds
	}
}

// WithMigrator enables key tracking and data migration on membership changes.
func WithMigrator(migrator Migrator) SharedRingOption {
	return func(opts *SharedRingOptions) {
		opts.migrator = migrator
	}
}

func WithMigrationParallelism(parallelism int) SharedRingOption {
	return func(opts *SharedRingOptions) {
		opts.migrationParallelism = parallelism
	}
}

func WithSharedRingLogger(logger logrus.FieldLogger) SharedRingOption {
	return func(opts *SharedRingOptions) {
		opts.logger = logger
	}
}

func repairShared(opts *SharedRingOptions) {
	if opts.lockExpireSeconds <= 0 {
		opts.lockExpireSeconds = defaultLockExpireSeconds
	}
	if opts.migrationParallelism <= 0 {
		opts.migrationParallelism = defaultMigrationParallelism
	}
	if opts.logger == nil {
		opts.logger = logrus.StandardLogger()
	}
}
