package retention_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CZERTAINLY/CBOM-Repository/internal/bom"
	"github.com/CZERTAINLY/CBOM-Repository/internal/retention"
)

const serialA = bom.SerialNumber("urn:uuid:3e671687-395b-41f5-a30f-a58921a69b79")
const serialB = bom.SerialNumber("urn:uuid:4e671687-395b-41f5-a30f-a58921a69b79")

type fakeStore struct {
	versions map[bom.SerialNumber][]int
	storedAt map[bom.SerialNumber]map[int]time.Time
	pruned   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		versions: map[bom.SerialNumber][]int{},
		storedAt: map[bom.SerialNumber]map[int]time.Time{},
	}
}

func (f *fakeStore) put(serial bom.SerialNumber, version int, storedAt time.Time) {
	f.versions[serial] = append(f.versions[serial], version)
	if f.storedAt[serial] == nil {
		f.storedAt[serial] = map[int]time.Time{}
	}
	f.storedAt[serial][version] = storedAt
}

func (f *fakeStore) ListAll(ctx context.Context) ([]bom.SerialNumber, error) {
	var out []bom.SerialNumber
	for s := range f.versions {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) List(ctx context.Context, serial bom.SerialNumber) ([]int, error) {
	return append([]int(nil), f.versions[serial]...), nil
}

func (f *fakeStore) StoredAt(ctx context.Context, serial bom.SerialNumber, version int) (time.Time, error) {
	return f.storedAt[serial][version], nil
}

func (f *fakeStore) Delete(ctx context.Context, serial bom.SerialNumber, version int) error {
	versions := f.versions[serial]
	for i, v := range versions {
		if v == version {
			f.versions[serial] = append(versions[:i], versions[i+1:]...)
			delete(f.storedAt[serial], version)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) PruneAbandonedTemp(ctx context.Context, olderThan time.Duration) (int, error) {
	return f.pruned, nil
}

func TestSweepEnforcesMaxVersionsPerSerial(t *testing.T) {
	s := newFakeStore()
	now := time.Now()
	for i := 1; i <= 5; i++ {
		s.put(serialA, i, now.Add(time.Duration(i)*time.Hour))
	}

	sweeper := retention.New(s, retention.Policy{MaxVersionsPerSerial: 2}, 0)
	sweeper.Sweep(context.Background())

	require.Equal(t, []int{4, 5}, s.versions[serialA])
}

func TestSweepEnforcesMaxAgeDays(t *testing.T) {
	s := newFakeStore()
	now := time.Now()
	s.put(serialA, 1, now.Add(-10*24*time.Hour))
	s.put(serialA, 2, now.Add(-1*time.Hour))

	sweeper := retention.New(s, retention.Policy{MaxAgeDays: 1}, 0)
	sweeper.Sweep(context.Background())

	require.Equal(t, []int{2}, s.versions[serialA])
}

func TestSweepAlwaysKeepsAtLeastOneVersion(t *testing.T) {
	s := newFakeStore()
	now := time.Now()
	s.put(serialA, 1, now.Add(-30*24*time.Hour))
	s.put(serialA, 2, now.Add(-20*24*time.Hour))

	sweeper := retention.New(s, retention.Policy{MaxAgeDays: 1}, 0)
	sweeper.Sweep(context.Background())

	require.Len(t, s.versions[serialA], 1)
	require.Equal(t, []int{2}, s.versions[serialA])
}

func TestSweepLeavesSingleVersionSerialsAlone(t *testing.T) {
	s := newFakeStore()
	s.put(serialA, 1, time.Now().Add(-365*24*time.Hour))

	sweeper := retention.New(s, retention.Policy{MaxVersionsPerSerial: 1, MaxAgeDays: 1}, 0)
	sweeper.Sweep(context.Background())

	require.Equal(t, []int{1}, s.versions[serialA])
}

func TestSweepIsIndependentPerSerial(t *testing.T) {
	s := newFakeStore()
	now := time.Now()
	for i := 1; i <= 3; i++ {
		s.put(serialA, i, now)
	}
	s.put(serialB, 1, now)

	sweeper := retention.New(s, retention.Policy{MaxVersionsPerSerial: 1}, 0)
	sweeper.Sweep(context.Background())

	require.Equal(t, []int{3}, s.versions[serialA])
	require.Equal(t, []int{1}, s.versions[serialB])
}

func TestSweepUnlimitedPolicyIsNoop(t *testing.T) {
	s := newFakeStore()
	now := time.Now()
	for i := 1; i <= 4; i++ {
		s.put(serialA, i, now.Add(-100*24*time.Hour))
	}

	sweeper := retention.New(s, retention.Policy{}, 0)
	sweeper.Sweep(context.Background())

	require.Len(t, s.versions[serialA], 4)
}

func TestSweepPrunesAbandonedTemp(t *testing.T) {
	s := newFakeStore()
	s.pruned = 3

	sweeper := retention.New(s, retention.Policy{}, 15*time.Minute)
	sweeper.Sweep(context.Background())
}

func TestStartAndStop(t *testing.T) {
	s := newFakeStore()
	sweeper := retention.New(s, retention.Policy{MaxVersionsPerSerial: 1}, 0)
	require.NoError(t, sweeper.Start(context.Background(), time.Hour))
	sweeper.Stop()
}
