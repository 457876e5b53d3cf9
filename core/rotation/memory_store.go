package rotation

import (
	"context"
	"sync"
)

// MemoryIndexStore 进程内的轮询指针 (线程安全)
type MemoryIndexStore struct {
	indexes map[string]int
	mutex   sync.Mutex
}

func NewMemoryIndexStore() *MemoryIndexStore {
	return &MemoryIndexStore{
		indexes: make(map[string]int),
	}
}

func (s *MemoryIndexStore) Get(_ context.Context, pool string) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.indexes[pool], nil
}

func (s *MemoryIndexStore) Increment(_ context.Context, pool string, mod int) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	next := 0
	if mod > 0 {
		next = (s.indexes[pool] + 1) % mod
	}
	s.indexes[pool] = next
	return next, nil
}

func (s *MemoryIndexStore) Set(_ context.Context, pool string, index int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.indexes[pool] = index
	return nil
}

func (s *MemoryIndexStore) Reset(_ context.Context, pool string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.indexes, pool)
	return nil
}

func (s *MemoryIndexStore) All(_ context.Context) (map[string]int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make(map[string]int, len(s.indexes))
	for k, v := range s.indexes {
		out[k] = v
	}
	return out, nil
}
