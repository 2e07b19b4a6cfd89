package clientstore

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// Medium is an in-process shared store. Each Open call returns an independent handle.
type Medium struct {
	mu      sync.Mutex
	data    map[string]string
	subs    map[uint64]*subscription
	nextSub uint64
	handles uint64
}

type subscription struct {
	handle uint64
	key    string
	ch     chan Change
}

func NewMedium() *Medium {
	return &Medium{
		data: make(map[string]string),
		subs: make(map[uint64]*subscription),
	}
}

func (m *Medium) Open() *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles++
	return &MemoryStore{medium: m, id: m.handles}
}

type MemoryStore struct {
	medium *Medium
	id     uint64
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m := s.medium
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.data[key]
	return value, ok, nil
}

func (s *MemoryStore) Update(ctx context.Context, values map[string]*string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := s.medium
	m.mu.Lock()
	defer m.mu.Unlock()

	s.apply(values)
	return nil
}

func (s *MemoryStore) UpdateIf(ctx context.Context, key, expected string, values map[string]*string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m := s.medium
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.data[key]; !ok || current != expected {
		return false, nil
	}
	s.apply(values)
	return true, nil
}

// apply must be called with the medium lock held.
func (s *MemoryStore) apply(values map[string]*string) {
	m := s.medium
	for key, value := range values {
		if value == nil {
			delete(m.data, key)
		} else {
			m.data[key] = *value
		}
	}

	for _, sub := range m.subs {
		if sub.handle == s.id {
			continue
		}
		value, written := values[sub.key]
		if !written {
			continue
		}
		// a full buffer already holds a pending notification; the subscriber re-reads
		// the store when it handles it
		select {
		case sub.ch <- Change{Key: sub.key, Deleted: value == nil}:
		default:
		}
	}
}

func (s *MemoryStore) Subscribe(ctx context.Context, key string) (<-chan Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := s.medium
	m.mu.Lock()
	m.nextSub++
	id := m.nextSub
	sub := &subscription{handle: s.id, key: key, ch: make(chan Change, subscriberBuffer)}
	m.subs[id] = sub
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, id)
		close(sub.ch)
		m.mu.Unlock()
	}()

	return sub.ch, nil
}
