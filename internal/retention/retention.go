// Package retention implements the background sweeper that enforces
// spec.md §4.4's retention policy: prune old BOM versions by count
// and/or age (union of both limits, always keeping at least one
// version per serial), and reap abandoned .tmp/ write directories.
package retention

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/CZERTAINLY/CBOM-Repository/internal/bom"
	"github.com/CZERTAINLY/CBOM-Repository/internal/log"
)

// Policy is the retention configuration. A zero value for either field
// means that limit is unset (unlimited).
type Policy struct {
	MaxVersionsPerSerial int
	MaxAgeDays           int
}

// Store is the subset of internal/store.Store the sweeper depends on.
type Store interface {
	ListAll(ctx context.Context) ([]bom.SerialNumber, error)
	List(ctx context.Context, serial bom.SerialNumber) ([]int, error)
	StoredAt(ctx context.Context, serial bom.SerialNumber, version int) (time.Time, error)
	Delete(ctx context.Context, serial bom.SerialNumber, version int) error
	PruneAbandonedTemp(ctx context.Context, olderThan time.Duration) (int, error)
}

// Sweeper runs Policy enforcement on a schedule via a cron.Cron
// instance, the same start/stop lifecycle shape the rest of this
// repository uses for long-lived background components.
type Sweeper struct {
	store     Store
	policy    Policy
	tmpMaxAge time.Duration
	cron      *cron.Cron
}

// New constructs a Sweeper. It does not start the schedule; call Start.
func New(store Store, policy Policy, tmpMaxAge time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		policy:    policy,
		tmpMaxAge: tmpMaxAge,
		cron:      cron.New(),
	}
}

// Start schedules a sweep every interval (spec.md §4.4 default: 1h,
// expressed here via cron's "@every" syntax) and begins running it in
// the background.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) error {
	_, err := s.cron.AddFunc("@every "+interval.String(), func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop cancels the schedule and waits for any sweep in progress to
// finish, honoring spec.md §5's "cancellable at shutdown" requirement.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one retention pass immediately: version/age pruning
// followed by abandoned-temp-directory cleanup.
func (s *Sweeper) Sweep(ctx context.Context) {
	ctx = log.ContextAttrs(ctx, slog.Group("retention-sweep"))
	slog.InfoContext(ctx, "Sweep starting.")

	serials, err := s.store.ListAll(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to enumerate serials for retention sweep", slog.String("error", err.Error()))
	} else {
		deleted := 0
		for _, serial := range serials {
			deleted += s.sweepSerial(ctx, serial)
		}
		slog.InfoContext(ctx, "Version/age pruning finished.", slog.Int("versions-deleted", deleted))
	}

	if s.tmpMaxAge > 0 {
		removed, err := s.store.PruneAbandonedTemp(ctx, s.tmpMaxAge)
		if err != nil {
			slog.ErrorContext(ctx, "failed to prune abandoned temp directories", slog.String("error", err.Error()))
		} else if removed > 0 {
			slog.InfoContext(ctx, "Abandoned temp directories pruned.", slog.Int("count", removed))
		}
	}
}

// sweepSerial applies the union-of-limits policy to a single serial,
// always retaining at least one version, and returns how many it
// deleted.
func (s *Sweeper) sweepSerial(ctx context.Context, serial bom.SerialNumber) int {
	versions, err := s.store.List(ctx, serial)
	if err != nil || len(versions) <= 1 {
		return 0
	}

	toDelete := map[int]bool{}

	if s.policy.MaxVersionsPerSerial > 0 && len(versions) > s.policy.MaxVersionsPerSerial {
		sorted := append([]int(nil), versions...)
		sort.Ints(sorted)
		excess := len(sorted) - s.policy.MaxVersionsPerSerial
		for _, v := range sorted[:excess] {
			toDelete[v] = true
		}
	}

	if s.policy.MaxAgeDays > 0 {
		cutoff := time.Now().Add(-time.Duration(s.policy.MaxAgeDays) * 24 * time.Hour)
		for _, v := range versions {
			storedAt, err := s.store.StoredAt(ctx, serial, v)
			if err != nil {
				continue
			}
			if storedAt.Before(cutoff) {
				toDelete[v] = true
			}
		}
	}

	// always retain at least one version, even if both policies
	// would otherwise condemn every version present.
	if len(toDelete) == len(versions) {
		sorted := append([]int(nil), versions...)
		sort.Ints(sorted)
		delete(toDelete, sorted[len(sorted)-1])
	}

	deleted := 0
	for v := range toDelete {
		if err := s.store.Delete(ctx, serial, v); err != nil {
			slog.WarnContext(ctx, "failed to delete version during retention sweep",
				slog.String("serial", string(serial)), slog.Int("version", v), slog.String("error", err.Error()))
			continue
		}
		deleted++
	}
	return deleted
}
