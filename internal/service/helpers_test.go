package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"habit-tracker/internal/model"
	"habit-tracker/internal/repository"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

// testClock is a settable clock shared by a store under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

func newTestStore(t *testing.T, blobs BlobStore) (*HabitStore, *testClock) {
	t.Helper()
	if blobs == nil {
		blobs = repository.NewMemoryBlobStore()
	}
	clock := &testClock{now: testNow}
	store := NewHabitStore(blobs,
		WithClock(clock.Now),
		WithLocation(time.UTC),
		WithIDGenerator(sequentialIDs("habit")),
	)
	return store, clock
}

// slowBlobStore widens the window between read and write so that
// unserialized read-modify-write cycles would lose updates.
type slowBlobStore struct {
	BlobStore
	delay time.Duration
}

func (s slowBlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := s.BlobStore.Get(ctx, key)
	time.Sleep(s.delay)
	return data, ok, err
}

// flakyBlobStore fails the operations that are switched on.
type flakyBlobStore struct {
	BlobStore
	failGet atomic.Bool
	failSet atomic.Bool
}

var errDiskGone = errors.New("disk gone")

func (s *flakyBlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.failGet.Load() {
		return nil, false, errDiskGone
	}
	return s.BlobStore.Get(ctx, key)
}

func (s *flakyBlobStore) Set(ctx context.Context, key string, value []byte) error {
	if s.failSet.Load() {
		return errDiskGone
	}
	return s.BlobStore.Set(ctx, key, value)
}

type fakeNotifier struct {
	mu        sync.Mutex
	granted   map[string]bool
	permErr   error
	notifyErr error
	asked     int
	delivered []model.Reminder
}

func newFakeNotifier(owners ...string) *fakeNotifier {
	n := &fakeNotifier{granted: make(map[string]bool)}
	for _, o := range owners {
		n.granted[o] = true
	}
	return n
}

func (n *fakeNotifier) RequestPermission(ctx context.Context, owner string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.asked++
	if n.permErr != nil {
		return false, n.permErr
	}
	return n.granted[owner], nil
}

func (n *fakeNotifier) Notify(ctx context.Context, reminder model.Reminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.notifyErr != nil {
		return n.notifyErr
	}
	n.delivered = append(n.delivered, reminder)
	return nil
}

func (n *fakeNotifier) setPermErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.permErr = err
}

func (n *fakeNotifier) deliveredCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.delivered)
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func boolPtr(v bool) *bool { return &v }

func date(offset int) string {
	return testNow.AddDate(0, 0, offset).Format("2006-01-02")
}
