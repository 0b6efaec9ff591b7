// Package memory implements the MemoryManager multiplexer and reference
// MemoryBackend capabilities. A backend only needs to implement the
// required operations (Store/Retrieve/Search/Delete/ListKeys); the
// optional ones (init/terminate/store_many/retrieve_many/count/update/
// delete_many/exists/info/clear) are modeled as separate small interfaces
// the Manager type-asserts for, the way gomind models optional
// capabilities (io.Closer-style) rather than forcing every backend to
// implement a single fat interface with stub methods.
package memory

import "context"

// Entry is one hit returned by Backend.Search.
type Entry struct {
	Key   string
	Value interface{}
}

// Backend is the required surface every memory source must implement.
type Backend interface {
	Store(ctx context.Context, key string, value interface{}) error
	Retrieve(ctx context.Context, key string) (interface{}, error)
	Search(ctx context.Context, query string) ([]Entry, error)
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
}

// Initializer is implemented by backends with setup work (connection
// pools, schema checks) to run when added to a Manager.
type Initializer interface {
	Init(ctx context.Context) error
}

// Terminator is implemented by backends with teardown work to run when
// removed from a Manager or when the manager itself shuts down.
type Terminator interface {
	Terminate(ctx context.Context) error
}

// BulkStorer is an optional batch-write capability.
type BulkStorer interface {
	StoreMany(ctx context.Context, items map[string]interface{}) error
}

// BulkRetriever is an optional batch-read capability.
type BulkRetriever interface {
	RetrieveMany(ctx context.Context, keys []string) (map[string]interface{}, error)
}

// Counter is an optional capability for cheap result-set sizing.
type Counter interface {
	Count(ctx context.Context, query string) (int, error)
}

// Updater is an optional read-modify-write capability.
type Updater interface {
	Update(ctx context.Context, key string, fn func(current interface{}) (interface{}, error)) error
}

// BulkDeleter is an optional batch-delete capability.
type BulkDeleter interface {
	DeleteMany(ctx context.Context, keys []string) error
}

// Exister is an optional existence-check capability, distinct from
// Retrieve so backends can answer it without materializing a value.
type Exister interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// Informer is an optional capability exposing backend diagnostics.
type Informer interface {
	Info(ctx context.Context) (map[string]interface{}, error)
}

// Clearer is an optional bulk-wipe capability.
type Clearer interface {
	Clear(ctx context.Context) error
}
