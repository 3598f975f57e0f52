package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	hash_ring "github.com/pule1234/hash_ring"
	"github.com/pule1234/hash_ring/internal/config"
	"github.com/pule1234/hash_ring/redis"
)

// router is the part of Ring and SharedRing the demo needs.
type router interface {
	GetNode(key string) (string, bool)
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file; built-in defaults when empty")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	logger, err := cfg.Logger.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger, os.Stdout); err != nil {
		logger.WithError(err).Error("ringdemo failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger, out io.Writer) error {
	encryptor, err := hash_ring.EncryptorByName(cfg.Ring.Encryptor)
	if err != nil {
		return err
	}
	ringOpts := []hash_ring.RingOption{
		hash_ring.WithName(cfg.Ring.Name),
		hash_ring.WithEncryptor(encryptor),
		hash_ring.WithLogger(logger),
	}

	if cfg.Redis == nil {
		ring, err := hash_ring.NewRing(cfg.Ring.Replicas, append(ringOpts, hash_ring.WithNodes(cfg.Ring.Nodes...))...)
		if err != nil {
			return err
		}
		return walkthrough(out, cfg.Demo, ring, func(node string) error {
			return ring.RemoveNode(node)
		})
	}

	ring, err := hash_ring.NewRing(cfg.Ring.Replicas, ringOpts...)
	if err != nil {
		return err
	}
	client := redis.NewClient(cfg.Redis.Network, cfg.Redis.Address, cfg.Redis.Password,
		redis.WithMaxIdle(cfg.Redis.MaxIdle),
		redis.WithMaxActive(cfg.Redis.MaxActive),
	)
	defer client.Close()

	shared := hash_ring.NewSharedRing(
		redis.NewMembershipStore(cfg.Redis.RingKey, client),
		ring,
		hash_ring.WithLockExpireSeconds(cfg.Redis.LockExpireSeconds),
		hash_ring.WithSharedRingLogger(logger),
	)
	if err := shared.Sync(ctx); err != nil {
		return err
	}
	for _, node := range cfg.Ring.Nodes {
		if err := shared.AddNode(ctx, node); err != nil && !errors.Is(err, hash_ring.ErrDuplicateNode) {
			return err
		}
	}
	return walkthrough(out, cfg.Demo, shared, func(node string) error {
		return shared.RemoveNode(ctx, node)
	})
}

// walkthrough prints the assignment of every demo key, removes one node and
// prints the assignments again.
func walkthrough(out io.Writer, demo config.DemoConfig, r router, remove func(node string) error) error {
	fmt.Fprintln(out, "Initial distribution:")
	printAssignments(out, demo.Keys, r)

	if demo.Remove == "" {
		return nil
	}
	if err := remove(demo.Remove); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nAfter removing %s:\n", demo.Remove)
	printAssignments(out, demo.Keys, r)
	return nil
}

func printAssignments(out io.Writer, keys []string, r router) {
	for _, key := range keys {
		node, ok := r.GetNode(key)
		if !ok {
			node = "<none>"
		}
		fmt.Fprintf(out, "%s -> %s\n", key, node)
	}
}
