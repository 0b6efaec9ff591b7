package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// InProcess is a map-backed reference MemoryBackend, grounded on the
// teacher's InMemoryStore: no persistence, no TTL expiry (the coordinator
// runtime is expected to outlive a single execution, not a process
// restart), just a mutex-guarded map. It implements every optional data
// operation too, since an in-process map makes all of them trivial; it
// has no Init or Terminate step.
type InProcess struct {
	mu   sync.RWMutex
	data map[string]interface{}
}

// NewInProcess creates an empty InProcess backend.
func NewInProcess() *InProcess {
	return &InProcess{data: map[string]interface{}{}}
}

func (s *InProcess) Store(_ context.Context, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *InProcess) Retrieve(_ context.Context, key string) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("memory: key not found: %s", key)
	}
	return v, nil
}

// Search does a naive substring match against keys; it exists to satisfy
// the required capability, not as a production search implementation.
func (s *InProcess) Search(_ context.Context, query string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for k, v := range s.data {
		if strings.Contains(k, query) {
			out = append(out, Entry{Key: k, Value: v})
		}
	}
	return out, nil
}

func (s *InProcess) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *InProcess) ListKeys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	return out, nil
}

func (s *InProcess) StoreMany(_ context.Context, items map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range items {
		s.data[k] = v
	}
	return nil
}

func (s *InProcess) RetrieveMany(_ context.Context, keys []string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *InProcess) Count(_ context.Context, query string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if query == "" {
		return len(s.data), nil
	}
	n := 0
	for k := range s.data {
		if strings.Contains(k, query) {
			n++
		}
	}
	return n, nil
}

func (s *InProcess) Update(_ context.Context, key string, fn func(interface{}) (interface{}, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.data[key])
	if err != nil {
		return err
	}
	s.data[key] = next
	return nil
}

func (s *InProcess) DeleteMany(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *InProcess) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}

func (s *InProcess) Info(_ context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{"kind": "inprocess", "size": len(s.data)}, nil
}

func (s *InProcess) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = map[string]interface{}{}
	return nil
}

var (
	_ Backend       = (*InProcess)(nil)
	_ BulkStorer    = (*InProcess)(nil)
	_ BulkRetriever = (*InProcess)(nil)
	_ Counter       = (*InProcess)(nil)
	_ Updater       = (*InProcess)(nil)
	_ BulkDeleter   = (*InProcess)(nil)
	_ Exister       = (*InProcess)(nil)
	_ Informer      = (*InProcess)(nil)
	_ Clearer       = (*InProcess)(nil)
)
