// Package metadata maintains an in-memory, repository-wide summary of
// what the store holds — per-serial first/last-seen timestamps and the
// set of schema versions observed — refreshed at startup, updated as
// uploads land, and dropped when a serial's last version is deleted.
// Deleting a version that is not the last one (by request or by the
// retention sweeper) leaves the summary unchanged until the next
// Refresh. It also owns the lifecycle
// of the background retention sweeper, the same way the rest of this
// repository pairs a long-lived in-memory service with the goroutine
// that keeps it current.
package metadata

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/CZERTAINLY/CBOM-Repository/internal/bom"
	"github.com/CZERTAINLY/CBOM-Repository/internal/codec"
)

// Store is the subset of internal/store.Store that the metadata
// service needs to build its initial snapshot.
type Store interface {
	ListAll(ctx context.Context) ([]bom.SerialNumber, error)
	List(ctx context.Context, serial bom.SerialNumber) ([]int, error)
	StoredAt(ctx context.Context, serial bom.SerialNumber, version int) (time.Time, error)
	Retrieve(ctx context.Context, serial bom.SerialNumber, version int) (*cdx.BOM, error)
}

// Sweeper is the subset of internal/retention.Sweeper the service
// drives as a background lifecycle component.
type Sweeper interface {
	Start(ctx context.Context, interval time.Duration) error
	Stop()
}

// Summary is the point-in-time metadata known for one serial number.
type Summary struct {
	Serial         bom.SerialNumber
	FirstSeen      time.Time
	LastSeen       time.Time
	VersionCount   int
	SchemaVersions map[bom.SchemaVersion]bool
}

// Service is the in-memory metadata repository.
type Service struct {
	store   Store
	sweeper Sweeper

	mu        sync.RWMutex
	summaries map[bom.SerialNumber]*Summary
}

// New constructs a Service. Call Refresh once to populate it from the
// store before serving requests.
func New(store Store, sweeper Sweeper) *Service {
	return &Service{
		store:     store,
		sweeper:   sweeper,
		summaries: map[bom.SerialNumber]*Summary{},
	}
}

// Start builds the initial snapshot from the store and starts the
// retention sweeper on interval.
func (s *Service) Start(ctx context.Context, interval time.Duration) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	return s.sweeper.Start(ctx, interval)
}

// Stop halts the retention sweeper.
func (s *Service) Stop() {
	s.sweeper.Stop()
}

// Refresh rebuilds the entire snapshot from the store. Used at startup
// and available for operators to force a resync.
func (s *Service) Refresh(ctx context.Context) error {
	serials, err := s.store.ListAll(ctx)
	if err != nil {
		return err
	}

	summaries := make(map[bom.SerialNumber]*Summary, len(serials))
	for _, serial := range serials {
		summary, err := s.buildSummary(ctx, serial)
		if err != nil {
			slog.WarnContext(ctx, "failed to build metadata summary",
				slog.String("serial", serial.String()), slog.String("error", err.Error()))
			continue
		}
		summaries[serial] = summary
	}

	s.mu.Lock()
	s.summaries = summaries
	s.mu.Unlock()
	return nil
}

func (s *Service) buildSummary(ctx context.Context, serial bom.SerialNumber) (*Summary, error) {
	versions, err := s.store.List(ctx, serial)
	if err != nil {
		return nil, err
	}
	summary := &Summary{
		Serial:         serial,
		VersionCount:   len(versions),
		SchemaVersions: map[bom.SchemaVersion]bool{},
	}

	for i, v := range versions {
		storedAt, err := s.store.StoredAt(ctx, serial, v)
		if err == nil {
			if i == 0 || storedAt.Before(summary.FirstSeen) {
				summary.FirstSeen = storedAt
			}
			if storedAt.After(summary.LastSeen) {
				summary.LastSeen = storedAt
			}
		}

		doc, err := s.store.Retrieve(ctx, serial, v)
		if err != nil {
			continue
		}
		if sv, err := codec.SchemaVersionOf(doc); err == nil {
			summary.SchemaVersions[sv] = true
		}
	}
	return summary, nil
}

// Observe records a newly stored version without a full Refresh.
func (s *Service) Observe(serial bom.SerialNumber, version int, storedAt time.Time, schemaVersion bom.SchemaVersion) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, ok := s.summaries[serial]
	if !ok {
		summary = &Summary{Serial: serial, FirstSeen: storedAt, SchemaVersions: map[bom.SchemaVersion]bool{}}
		s.summaries[serial] = summary
	}
	summary.VersionCount++
	summary.SchemaVersions[schemaVersion] = true
	if summary.FirstSeen.IsZero() || storedAt.Before(summary.FirstSeen) {
		summary.FirstSeen = storedAt
	}
	if storedAt.After(summary.LastSeen) {
		summary.LastSeen = storedAt
	}
}

// Forget removes a serial's summary entirely, used when the last
// version of a serial is deleted.
func (s *Service) Forget(serial bom.SerialNumber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.summaries, serial)
}

// Get returns the summary for a serial, if known.
func (s *Service) Get(serial bom.SerialNumber) (Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[serial]
	if !ok {
		return Summary{}, false
	}
	return *summary, true
}

// List returns every known summary, sorted by serial for deterministic
// output.
func (s *Service) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.summaries))
	for _, summary := range s.summaries {
		out = append(out, *summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })
	return out
}
