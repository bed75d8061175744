package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	Transactor
	Locker
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchBM25(ctx context.Context, q *TextQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index string, f Filter) (int, error)
}

// OpKind is the kind of write inside an atomic batch.
type OpKind int

const (
	// OpKindHSet writes hash fields.
	OpKindHSet OpKind = iota
	// OpKindDel removes keys.
	OpKindDel
)

// Op is a single write inside an atomic batch.
type Op struct {
	Kind   OpKind
	Keys   []string
	Fields map[string]string
}

// HSetOp builds a hash write.
func HSetOp(key string, fields map[string]string) Op {
	return Op{Kind: OpKindHSet, Keys: []string{key}, Fields: fields}
}

// DelOp builds a key removal.
func DelOp(keys ...string) Op {
	return Op{Kind: OpKindDel, Keys: keys}
}

// Transactor applies a batch of writes all-or-nothing.
type Transactor interface {
	Atomic(ctx context.Context, ops []Op) error
}

// Locker is a lease-based mutual exclusion primitive shared between instances.
type Locker interface {
	// AcquireLock takes key for ttl if free. Reports false when held by someone else.
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// ReleaseLock frees key only if token still owns it.
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
}
