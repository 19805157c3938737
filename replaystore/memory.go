package replaystore

import (
	"context"
	"sync"
	"time"
)

const memoryCleanupInterval = 30 * time.Second

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStore is an in-process Store used in tests and single-node
// deployments without Redis. SetIfAbsent is atomic via sync.Map's
// LoadOrStore / CompareAndSwap; no TOCTOU window exists between the
// existence check and the write.
type MemoryStore struct {
	entries sync.Map
	now     func() time.Time

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

type MemoryStoreOption func(*MemoryStore)

// WithClock overrides the store's time source.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := s.Get(ctx, key)

	return found, err
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.entries.Load(key)
	if !ok {
		return "", false, nil
	}

	entry := v.(*memoryEntry)
	if entry.expired(s.now()) {
		s.entries.CompareAndDelete(key, v)

		return "", false, nil
	}

	return entry.value, true, nil
}

func (s *MemoryStore) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	s.entries.Store(key, &memoryEntry{value: value, expiresAt: s.now().Add(ttl)})

	return nil
}

func (s *MemoryStore) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	entry := &memoryEntry{value: value, expiresAt: s.now().Add(ttl)}

	for {
		existing, loaded := s.entries.LoadOrStore(key, entry)
		if !loaded {
			return true, nil
		}

		if !existing.(*memoryEntry).expired(s.now()) {
			return false, nil
		}

		if s.entries.CompareAndSwap(key, existing, entry) {
			return true, nil
		}
	}
}

// Close stops the background expiry sweep.
func (s *MemoryStore) Close() {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
	})
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(memoryCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			now := s.now()

			s.entries.Range(func(key, value any) bool {
				if value.(*memoryEntry).expired(now) {
					s.entries.CompareAndDelete(key, value)
				}

				return true
			})
		}
	}
}
