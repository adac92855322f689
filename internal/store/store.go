// Package store implements the content-addressed, filesystem-backed
// persistence layer for BomEntries (spec.md §4.1). Writes are published
// by an atomic directory rename: a writer builds an entry in a private
// temp directory, then renames it into place. Whichever rename the
// filesystem acknowledges first is the canonical creator of that
// (serial, version); the loser observes the destination already exists
// and reports ErrAlreadyExists. No other locking is used.
package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/CZERTAINLY/CBOM-Repository/internal/bom"
	"github.com/CZERTAINLY/CBOM-Repository/internal/codec"
	"github.com/CZERTAINLY/CBOM-Repository/internal/log"
)

var (
	// ErrNotFound is returned when the requested serial/version does
	// not exist in the store.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a Store call races (or
	// duplicates) an existing (serial, version) entry.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidSerialNumber is returned for a malformed serial number.
	ErrInvalidSerialNumber = bom.ErrInvalidSerialNumber
	// ErrInvalidVersion is returned for a non-positive version.
	ErrInvalidVersion = errors.New("invalid version")
	// ErrStorageFailure wraps unexpected filesystem I/O errors.
	ErrStorageFailure = errors.New("storage failure")
)

const (
	storedAtFile = "stored-at"
	tmpDir       = ".tmp"
)

// Config configures the filesystem store.
type Config struct {
	// Directory is the store's root directory. The .tmp/ staging
	// namespace it contains must live on the same mount so renames
	// into place remain atomic.
	Directory string `envconfig:"REPO__DIRECTORY" required:"true"`
}

// Store is a content-addressed, filesystem-backed BOM repository.
type Store struct {
	cfg Config
}

// New constructs a Store rooted at cfg.Directory.
func New(cfg Config) Store {
	return Store{cfg: cfg}
}

func (s Store) serialDir(serial bom.SerialNumber) string {
	return filepath.Join(s.cfg.Directory, url.PathEscape(string(serial)))
}

func (s Store) versionDir(serial bom.SerialNumber, version int) string {
	return filepath.Join(s.serialDir(serial), strconv.Itoa(version))
}

// Store persists data (already encoded as format) under (serial,
// version). If version is 0, the next version is assigned as
// max(existing)+1, or 1 if the serial has no existing versions.
func (s Store) Store(ctx context.Context, serial bom.SerialNumber, version int, format bom.Format, data []byte) (int, time.Time, error) {
	ctx = log.ContextAttrs(ctx, slog.Group(
		"store-layer",
		slog.String("serial", string(serial)),
		slog.Int("version", version),
		slog.String("method", "Store"),
	))

	if err := serial.Validate(); err != nil {
		return 0, time.Time{}, err
	}
	if version < 0 {
		return 0, time.Time{}, ErrInvalidVersion
	}

	if version == 0 {
		versions, err := s.List(ctx, serial)
		if err != nil {
			return 0, time.Time{}, err
		}
		if len(versions) == 0 {
			version = 1
		} else {
			version = versions[len(versions)-1] + 1
		}
	}

	tmp, err := s.newTmpDir()
	if err != nil {
		slog.ErrorContext(ctx, "failed to create temp write directory", slog.String("error", err.Error()))
		return 0, time.Time{}, fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}
	defer func() {
		_ = os.RemoveAll(tmp)
	}()

	storedAt := time.Now().UTC()
	ext := format.Extension()
	if ext == "" {
		return 0, time.Time{}, fmt.Errorf("%w: unknown format", ErrStorageFailure)
	}

	if err := os.WriteFile(filepath.Join(tmp, "bom."+ext), data, 0o644); err != nil {
		slog.ErrorContext(ctx, "failed to write entry payload", slog.String("error", err.Error()))
		return 0, time.Time{}, fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}
	if err := os.WriteFile(filepath.Join(tmp, storedAtFile), []byte(storedAt.Format(time.RFC3339Nano)), 0o644); err != nil {
		slog.ErrorContext(ctx, "failed to write stored-at metadata", slog.String("error", err.Error()))
		return 0, time.Time{}, fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}

	final := s.versionDir(serial, version)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		slog.ErrorContext(ctx, "failed to create serial directory", slog.String("error", err.Error()))
		return 0, time.Time{}, fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}

	if err := os.Rename(tmp, final); err != nil {
		if _, statErr := os.Stat(final); statErr == nil {
			slog.DebugContext(ctx, "rename lost the race, entry already committed by another writer")
			return 0, time.Time{}, ErrAlreadyExists
		}
		slog.ErrorContext(ctx, "rename commit failed", slog.String("error", err.Error()))
		return 0, time.Time{}, fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}

	slog.InfoContext(ctx, "entry committed.", slog.Int("version", version))
	return version, storedAt, nil
}

// Retrieve decodes the entry at (serial, version) into the canonical
// model, using whichever format it was stored in.
func (s Store) Retrieve(ctx context.Context, serial bom.SerialNumber, version int) (*cdx.BOM, error) {
	data, format, err := s.RetrieveOriginal(ctx, serial, version)
	if err != nil {
		return nil, err
	}
	doc, err := codec.Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}
	return doc, nil
}

// RetrieveOriginal returns the exact bytes submitted for (serial,
// version), unchanged, along with the format they were submitted in.
func (s Store) RetrieveOriginal(ctx context.Context, serial bom.SerialNumber, version int) ([]byte, bom.Format, error) {
	ctx = log.ContextAttrs(ctx, slog.Group(
		"store-layer",
		slog.String("serial", string(serial)),
		slog.Int("version", version),
		slog.String("method", "RetrieveOriginal"),
	))

	if err := serial.Validate(); err != nil {
		return nil, bom.FormatUnknown, err
	}
	if version <= 0 {
		return nil, bom.FormatUnknown, ErrInvalidVersion
	}

	dir := s.versionDir(serial, version)
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, bom.FormatUnknown, ErrNotFound
	case err != nil:
		slog.ErrorContext(ctx, "failed to list entry directory", slog.String("error", err.Error()))
		return nil, bom.FormatUnknown, fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}

	for _, e := range entries {
		name := e.Name()
		if name == storedAtFile || e.IsDir() {
			continue
		}
		ext := filepath.Ext(name)
		ext = trimLeadingDot(ext)
		format, ok := bom.FormatFromExtension(ext)
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			// lost a race with a concurrent delete after the ReadDir above.
			return nil, bom.FormatUnknown, ErrNotFound
		}
		if err != nil {
			slog.ErrorContext(ctx, "failed to read entry payload", slog.String("error", err.Error()))
			return nil, bom.FormatUnknown, fmt.Errorf("%w: %s", ErrStorageFailure, err)
		}
		return data, format, nil
	}

	return nil, bom.FormatUnknown, ErrNotFound
}

// RetrieveLatest decodes the highest version present for serial.
func (s Store) RetrieveLatest(ctx context.Context, serial bom.SerialNumber) (*cdx.BOM, int, error) {
	versions, err := s.List(ctx, serial)
	if err != nil {
		return nil, 0, err
	}
	if len(versions) == 0 {
		return nil, 0, ErrNotFound
	}
	latest := versions[len(versions)-1]
	doc, err := s.Retrieve(ctx, serial, latest)
	return doc, latest, err
}

// List returns the versions stored for serial, ascending. An unknown
// serial returns an empty list, not an error.
func (s Store) List(ctx context.Context, serial bom.SerialNumber) ([]int, error) {
	if err := serial.Validate(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.serialDir(serial))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return []int{}, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}

	versions := make([]int, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions, nil
}

// ListAll enumerates every serial number present in the store.
func (s Store) ListAll(ctx context.Context) ([]bom.SerialNumber, error) {
	entries, err := os.ReadDir(s.cfg.Directory)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return []bom.SerialNumber{}, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}

	serials := make([]bom.SerialNumber, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || e.Name() == tmpDir {
			continue
		}
		unescaped, err := url.PathUnescape(e.Name())
		if err != nil {
			continue
		}
		serials = append(serials, bom.SerialNumber(unescaped))
	}
	return serials, nil
}

// Exists reports whether (serial, version) has a committed entry.
func (s Store) Exists(ctx context.Context, serial bom.SerialNumber, version int) (bool, error) {
	if err := serial.Validate(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.versionDir(serial, version))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}
	return true, nil
}

// Delete removes a single (serial, version) entry. If it was the last
// version for serial, the serial's directory is removed entirely.
func (s Store) Delete(ctx context.Context, serial bom.SerialNumber, version int) error {
	ctx = log.ContextAttrs(ctx, slog.Group(
		"store-layer",
		slog.String("serial", string(serial)),
		slog.Int("version", version),
		slog.String("method", "Delete"),
	))

	if err := serial.Validate(); err != nil {
		return err
	}
	if version <= 0 {
		return ErrInvalidVersion
	}

	exists, err := s.Exists(ctx, serial, version)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	if err := s.sidelineAndRemove(s.versionDir(serial, version)); err != nil {
		slog.ErrorContext(ctx, "failed to delete entry", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}

	remaining, err := s.List(ctx, serial)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		if err := s.sidelineAndRemove(s.serialDir(serial)); err != nil {
			slog.ErrorContext(ctx, "failed to remove emptied serial directory", slog.String("error", err.Error()))
			return fmt.Errorf("%w: %s", ErrStorageFailure, err)
		}
	}
	slog.InfoContext(ctx, "entry deleted.")
	return nil
}

// DeleteAll removes every version of serial.
func (s Store) DeleteAll(ctx context.Context, serial bom.SerialNumber) error {
	ctx = log.ContextAttrs(ctx, slog.Group(
		"store-layer",
		slog.String("serial", string(serial)),
		slog.String("method", "DeleteAll"),
	))

	if err := serial.Validate(); err != nil {
		return err
	}

	versions, err := s.List(ctx, serial)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return ErrNotFound
	}

	if err := s.sidelineAndRemove(s.serialDir(serial)); err != nil {
		slog.ErrorContext(ctx, "failed to delete serial", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}
	slog.InfoContext(ctx, "all versions deleted.", slog.Int("count", len(versions)))
	return nil
}

// HealthCheck verifies the store's root directory is reachable and
// writable, for use by internal/health's storage checker.
func (s Store) HealthCheck(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(s.cfg.Directory, tmpDir), 0o755); err != nil {
		return fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}
	probe := filepath.Join(s.cfg.Directory, tmpDir, ".health-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}
	return os.Remove(probe)
}

// StoredAt returns the storage timestamp recorded for (serial,
// version), used by the retention sweeper's age-based policy.
func (s Store) StoredAt(ctx context.Context, serial bom.SerialNumber, version int) (time.Time, error) {
	if err := serial.Validate(); err != nil {
		return time.Time{}, err
	}
	data, err := os.ReadFile(filepath.Join(s.versionDir(serial, version), storedAtFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return time.Time{}, ErrNotFound
	case err != nil:
		return time.Time{}, fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}
	t, err := time.Parse(time.RFC3339Nano, string(data))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed stored-at metadata: %s", ErrStorageFailure, err)
	}
	return t, nil
}

// PruneAbandonedTemp removes entries under <root>/.tmp older than
// olderThan — directories left behind by a writer that crashed or was
// cancelled before it could rename its work into place (spec.md §4.4).
func (s Store) PruneAbandonedTemp(ctx context.Context, olderThan time.Duration) (int, error) {
	root := filepath.Join(s.cfg.Directory, tmpDir)
	entries, err := os.ReadDir(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(root, e.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.WarnContext(ctx, "failed to prune abandoned temp directory",
				slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		removed++
	}
	return removed, nil
}

// newTmpDir creates and returns a fresh, uniquely named directory
// under <root>/.tmp for a writer to build an entry in before the
// commit rename.
func (s Store) newTmpDir() (string, error) {
	token := make([]byte, 16)
	if _, err := rand.Read(token); err != nil {
		return "", err
	}
	dir := filepath.Join(s.cfg.Directory, tmpDir, hex.EncodeToString(token))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// sidelineAndRemove renames path out of the way before recursively
// removing it, so a reader with the original path already open (or
// mid-open) is unaffected by the unlink (spec.md §9).
func (s Store) sidelineAndRemove(path string) error {
	sidelined := filepath.Join(s.cfg.Directory, tmpDir, "trash-"+filepath.Base(path)+"-"+randomToken())
	if err := os.Rename(path, sidelined); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(sidelined)
}

func randomToken() string {
	token := make([]byte, 8)
	_, _ = rand.Read(token)
	return hex.EncodeToString(token)
}

func trimLeadingDot(ext string) string {
	if len(ext) > 0 && ext[0] == '.' {
		return ext[1:]
	}
	return ext
}
