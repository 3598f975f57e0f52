package hash_ring

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Migrator moves the state behind dataKeys from one node to another. It is
// registered by the user; the ring only decides which keys move where.
type Migrator func(ctx context.Context, dataKeys map[string]struct{}, from, to string) error

// Migration is one batch of keys whose owner changed from From to To.
type Migration struct {
	From     string
	To       string
	DataKeys map[string]struct{}
}

// PlanMigrations compares the owner of every data key in before and after
// and groups the keys that changed owner by (from, to). Keys without an owner
// on either side are skipped, since there is nothing to move from or to.
// The result is ordered by From, then To.
func PlanMigrations(dataKeys map[string]struct{}, before, after *Snapshot) []Migration {
	type route struct{ from, to string }
	batches := make(map[route]map[string]struct{})

	for dataKey := range dataKeys {
		from, ok := before.GetNode(dataKey)
		if !ok {
			continue
		}
		to, ok := after.GetNode(dataKey)
		if !ok || from == to {
			continue
		}

		r := route{from: from, to: to}
		if batches[r] == nil {
			batches[r] = make(map[string]struct{})
		}
		batches[r][dataKey] = struct{}{}
	}

	migrations := make([]Migration, 0, len(batches))
	for r, keys := range batches {
		migrations = append(migrations, Migration{From: r.from, To: r.to, DataKeys: keys})
	}
	sort.Slice(migrations, func(i, j int) bool {
		if migrations[i].From != migrations[j].From {
			return migrations[i].From < migrations[j].From
		}
		return migrations[i].To < migrations[j].To
	})
	return migrations
}

// ExecuteMigrations runs every migration in its own goroutine, at most
// parallelism at a time. A panicking migrator is reported as an error. The
// first error is returned after all started migrations have finished.
func ExecuteMigrations(ctx context.Context, migrations []Migration, migrator Migrator, parallelism int) error {
	if migrator == nil || len(migrations) == 0 {
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		group.SetLimit(parallelism)
	}
	for _, migration := range migrations {
		migration := migration
		group.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Errorf("migrate from %q to %q: migrator panicked: %v", migration.From, migration.To, r)
				}
			}()
			if err := migrator(groupCtx, migration.DataKeys, migration.From, migration.To); err != nil {
				return errors.Wrapf(err, "migrate %d keys from %q to %q", len(migration.DataKeys), migration.From, migration.To)
			}
			return nil
		})
	}
	return group.Wait()
}
