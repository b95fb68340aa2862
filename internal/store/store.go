// Package store declares what the repository layer needs from a backend.
// Stores own no business rules: they execute descriptors and report row
// counts. Live-only scoping is expressed through the query descriptor and
// the includeDeleted flag.
package store

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophdata/internal/query"
	"github.com/dmitrijs2005/gophdata/internal/updates"
)

// ErrInvalidAssignment is returned when a plan cannot be applied to the
// backing table, for example an assignment to a column it does not have
// or a value of the wrong type.
var ErrInvalidAssignment = errors.New("invalid assignment")

// Ops are the operations available both on a store and inside a transaction.
type Ops[T any] interface {
	Find(ctx context.Context, q query.Query) ([]T, error)
	// Count counts live rows matching where.
	Count(ctx context.Context, where query.Filter) (int64, error)
	Insert(ctx context.Context, rows ...T) (int64, error)
	// Update applies plan to live rows matching where.
	Update(ctx context.Context, where query.Filter, plan updates.Plan) (int64, error)
	Delete(ctx context.Context, where query.Filter, includeDeleted bool) (int64, error)
}

// Tx is an open transaction. Exactly one of Commit or Rollback ends it.
type Tx[T any] interface {
	Ops[T]
	Commit() error
	Rollback() error
}

// Store is a handle on one table. The caller owns its lifetime.
type Store[T any] interface {
	Ops[T]
	Begin(ctx context.Context) (Tx[T], error)
}

// PartitionedStore is a store whose rows carry a partition key.
type PartitionedStore[T any] interface {
	Store[T]
	PartitionColumn() string
}
