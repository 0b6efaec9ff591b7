package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowforge/agentcore/agenterrors"
)

// Opts carries the per-call "source" override; absence (empty string)
// means "use the default source".
type Opts struct {
	Source string
}

func (o Opts) sourceOrDefault(def string) string {
	if o.Source == "" {
		return def
	}
	return o.Source
}

type source struct {
	backend Backend
	opts    map[string]interface{}
}

// Manager multiplexes store/retrieve/search/delete/list/count/update/
// clear/exists across named backends and enforces a single default
// source.
type Manager struct {
	mu      sync.RWMutex
	sources map[string]*source
	order   []string // insertion order, for deterministic default reassignment
	dflt    string
}

// NewManager creates an empty Manager. Sources are added with AddSource.
func NewManager() *Manager {
	return &Manager{sources: map[string]*source{}}
}

// AddSource registers a backend under name, initializing it if it
// implements Initializer. The first source added becomes the default.
func (m *Manager) AddSource(ctx context.Context, name string, backend Backend, opts map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sources[name]; exists {
		return fmt.Errorf("memory: source %q already registered", name)
	}

	if init, ok := backend.(Initializer); ok {
		if err := init.Init(ctx); err != nil {
			return fmt.Errorf("memory: init source %q: %w", name, err)
		}
	}

	m.sources[name] = &source{backend: backend, opts: opts}
	m.order = append(m.order, name)
	if m.dflt == "" {
		m.dflt = name
	}
	return nil
}

// RemoveSource terminates the named backend (if it supports termination)
// and, if it was the default, promotes the next-oldest remaining source.
func (m *Manager) RemoveSource(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.sources[name]
	if !ok {
		return fmt.Errorf("%w: %s", agenterrors.ErrUnknownSource, name)
	}

	if term, ok := src.backend.(Terminator); ok {
		if err := term.Terminate(ctx); err != nil {
			return fmt.Errorf("memory: terminate source %q: %w", name, err)
		}
	}

	delete(m.sources, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	if m.dflt == name {
		m.dflt = ""
		if len(m.order) > 0 {
			m.dflt = m.order[0]
		}
	}
	return nil
}

func (m *Manager) resolve(name string) (Backend, error) {
	src, ok := m.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", agenterrors.ErrUnknownSource, name)
	}
	return src.backend, nil
}

func (m *Manager) Store(ctx context.Context, key string, value interface{}, opts Opts) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.resolve(opts.sourceOrDefault(m.dflt))
	if err != nil {
		return err
	}
	return b.Store(ctx, key, value)
}

func (m *Manager) Retrieve(ctx context.Context, key string, opts Opts) (interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.resolve(opts.sourceOrDefault(m.dflt))
	if err != nil {
		return nil, err
	}
	return b.Retrieve(ctx, key)
}

func (m *Manager) Search(ctx context.Context, query string, opts Opts) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.resolve(opts.sourceOrDefault(m.dflt))
	if err != nil {
		return nil, err
	}
	return b.Search(ctx, query)
}

func (m *Manager) Delete(ctx context.Context, key string, opts Opts) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.resolve(opts.sourceOrDefault(m.dflt))
	if err != nil {
		return err
	}
	return b.Delete(ctx, key)
}

func (m *Manager) ListKeys(ctx context.Context, opts Opts) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.resolve(opts.sourceOrDefault(m.dflt))
	if err != nil {
		return nil, err
	}
	return b.ListKeys(ctx)
}

func (m *Manager) StoreMany(ctx context.Context, items map[string]interface{}, opts Opts) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.resolve(opts.sourceOrDefault(m.dflt))
	if err != nil {
		return err
	}
	bs, ok := b.(BulkStorer)
	if !ok {
		return fmt.Errorf("%w: store_many", agenterrors.ErrOperationNotSupported)
	}
	return bs.StoreMany(ctx, items)
}

func (m *Manager) RetrieveMany(ctx context.Context, keys []string, opts Opts) (map[string]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.resolve(opts.sourceOrDefault(m.dflt))
	if err != nil {
		return nil, err
	}
	br, ok := b.(BulkRetriever)
	if !ok {
		return nil, fmt.Errorf("%w: retrieve_many", agenterrors.ErrOperationNotSupported)
	}
	return br.RetrieveMany(ctx, keys)
}

func (m *Manager) Count(ctx context.Context, query string, opts Opts) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.resolve(opts.sourceOrDefault(m.dflt))
	if err != nil {
		return 0, err
	}
	c, ok := b.(Counter)
	if !ok {
		return 0, fmt.Errorf("%w: count", agenterrors.ErrOperationNotSupported)
	}
	return c.Count(ctx, query)
}

func (m *Manager) Update(ctx context.Context, key string, fn func(interface{}) (interface{}, error), opts Opts) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.resolve(opts.sourceOrDefault(m.dflt))
	if err != nil {
		return err
	}
	u, ok := b.(Updater)
	if !ok {
		return fmt.Errorf("%w: update", agenterrors.ErrOperationNotSupported)
	}
	return u.Update(ctx, key, fn)
}

func (m *Manager) DeleteMany(ctx context.Context, keys []string, opts Opts) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.resolve(opts.sourceOrDefault(m.dflt))
	if err != nil {
		return err
	}
	bd, ok := b.(BulkDeleter)
	if !ok {
		return fmt.Errorf("%w: delete_many", agenterrors.ErrOperationNotSupported)
	}
	return bd.DeleteMany(ctx, keys)
}

func (m *Manager) Exists(ctx context.Context, key string, opts Opts) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.resolve(opts.sourceOrDefault(m.dflt))
	if err != nil {
		return false, err
	}
	e, ok := b.(Exister)
	if !ok {
		return false, fmt.Errorf("%w: exists", agenterrors.ErrOperationNotSupported)
	}
	return e.Exists(ctx, key)
}

func (m *Manager) Clear(ctx context.Context, opts Opts) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.resolve(opts.sourceOrDefault(m.dflt))
	if err != nil {
		return err
	}
	c, ok := b.(Clearer)
	if !ok {
		return fmt.Errorf("%w: clear", agenterrors.ErrOperationNotSupported)
	}
	return c.Clear(ctx)
}

// Info reports per-source diagnostics for sources implementing Informer.
func (m *Manager) Info(ctx context.Context) (map[string]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[string]interface{}{}
	for _, name := range m.order {
		src := m.sources[name]
		if inf, ok := src.backend.(Informer); ok {
			info, err := inf.Info(ctx)
			if err != nil {
				return nil, fmt.Errorf("memory: info source %q: %w", name, err)
			}
			out[name] = info
		}
	}
	return out, nil
}

// DefaultSource returns the current default source name, or "" if none.
func (m *Manager) DefaultSource() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dflt
}

// Sources returns the registered source names in insertion order.
func (m *Manager) Sources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// TerminateAll terminates every registered backend that supports it, in
// insertion order, continuing past individual failures and returning the
// first encountered.
func (m *Manager) TerminateAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for _, name := range m.order {
		src := m.sources[name]
		if term, ok := src.backend.(Terminator); ok {
			if err := term.Terminate(ctx); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("memory: terminate source %q: %w", name, err)
			}
		}
	}
	return firstErr
}
