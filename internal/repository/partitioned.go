package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophdata/internal/logging"
	"github.com/dmitrijs2005/gophdata/internal/models"
	"github.com/dmitrijs2005/gophdata/internal/query"
	"github.com/dmitrijs2005/gophdata/internal/results"
	"github.com/dmitrijs2005/gophdata/internal/store"
	"github.com/dmitrijs2005/gophdata/internal/updates"
)

// ErrNoPartitionColumn is returned for a store without a partition column.
var ErrNoPartitionColumn = errors.New("repository: store has no partition column")

// Partitioned is a repository whose every statement is restricted to one
// partition key. Rows of other partitions are invisible and immutable,
// whatever the id or filter. The partition column cannot be updated.
type Partitioned[T models.PartitionedRecord] struct {
	c      *core[T]
	column string
}

// NewPartitioned builds a repository scoped by the store's partition column.
func NewPartitioned[T models.PartitionedRecord](s store.PartitionedStore[T], fields *updates.Registry, logger logging.Logger, opts ...Option) (*Partitioned[T], error) {
	if s == nil {
		return nil, errors.New("repository: store is nil")
	}
	column := s.PartitionColumn()
	if column == "" {
		return nil, ErrNoPartitionColumn
	}
	c, err := newCore[T](s, fields, logger, opts)
	if err != nil {
		return nil, err
	}
	c.protected = []string{column}
	return &Partitioned[T]{c: c, column: column}, nil
}

func (p *Partitioned[T]) scope(key uuid.UUID) scope[T] {
	return scope[T]{
		filter: query.Eq(p.column, key),
		stamp:  func(e T) { e.Partition().PartitionKey = key },
	}
}

// GetByID returns the live entity with id inside key.
func (p *Partitioned[T]) GetByID(ctx context.Context, key, id uuid.UUID) results.Result[T] {
	return p.c.getByID(ctx, p.scope(key), id)
}

// GetByFilter returns the first live match inside key ordered by id.
func (p *Partitioned[T]) GetByFilter(ctx context.Context, key uuid.UUID, f query.Filter) results.Result[T] {
	return p.c.getByFilter(ctx, p.scope(key), f)
}

// GetAll returns every live entity of key.
func (p *Partitioned[T]) GetAll(ctx context.Context, key uuid.UUID, sort ...query.Sort) results.Result[[]T] {
	return p.c.find(ctx, p.scope(key), "get all", query.Query{Sort: sort})
}

// GetMany returns one page of the live entities of key.
func (p *Partitioned[T]) GetMany(ctx context.Context, key uuid.UUID, page query.Page, sort ...query.Sort) results.Result[[]T] {
	return p.c.find(ctx, p.scope(key), "get many", query.Query{Page: &page, Sort: sort})
}

// GetManyByFilter returns live entities of key matching f.
func (p *Partitioned[T]) GetManyByFilter(ctx context.Context, key uuid.UUID, f query.Filter, page *query.Page, sort ...query.Sort) results.Result[[]T] {
	return p.c.find(ctx, p.scope(key), "get many by filter", query.Query{Where: f, Page: page, Sort: sort})
}

// Find runs q inside the partition. IncludeDeleted lifts only the
// live-only scope.
func (p *Partitioned[T]) Find(ctx context.Context, key uuid.UUID, q query.Query) results.Result[[]T] {
	return p.c.find(ctx, p.scope(key), "find", q)
}

// GetSoftDeleted returns entities of key soft-deleted at or before cutoff.
func (p *Partitioned[T]) GetSoftDeleted(ctx context.Context, key uuid.UUID, f query.Filter, cutoff time.Time, page query.Page) results.Result[[]T] {
	return p.c.getSoftDeleted(ctx, p.scope(key), f, cutoff, page)
}

// Count returns the number of live entities of key matching f.
func (p *Partitioned[T]) Count(ctx context.Context, key uuid.UUID, f query.Filter) results.Result[int] {
	return p.c.count(ctx, p.scope(key), f)
}

// Insert stamps key onto e along with the managed fields.
func (p *Partitioned[T]) Insert(ctx context.Context, key uuid.UUID, e T) results.Result[T] {
	return p.c.insert(ctx, p.scope(key), e)
}

// InsertMany stamps key onto each entity and inserts them one by one.
func (p *Partitioned[T]) InsertMany(ctx context.Context, key uuid.UUID, es []T) results.Result[[]T] {
	return p.c.insertMany(ctx, p.scope(key), es)
}

// InsertAtomic stamps key onto each entity and inserts all or none.
func (p *Partitioned[T]) InsertAtomic(ctx context.Context, key uuid.UUID, es []T) results.Result[[]T] {
	return p.c.insertAtomic(ctx, p.scope(key), es)
}

// Update applies spec to the live entity with id inside key.
func (p *Partitioned[T]) Update(ctx context.Context, key, id uuid.UUID, spec updates.Spec) results.Result[results.Empty] {
	return p.c.update(ctx, p.scope(key), id, spec)
}

// UpdateMany applies each spec inside key, skipping ids it cannot update.
func (p *Partitioned[T]) UpdateMany(ctx context.Context, key uuid.UUID, specs map[uuid.UUID]updates.Spec) results.Result[int] {
	return p.c.updateMany(ctx, p.scope(key), specs)
}

// UpdateAtomic applies every spec inside key in one transaction.
func (p *Partitioned[T]) UpdateAtomic(ctx context.Context, key uuid.UUID, specs map[uuid.UUID]updates.Spec) results.Result[int] {
	return p.c.updateAtomic(ctx, p.scope(key), specs)
}

// SoftDelete marks the live entity with id inside key as deleted.
func (p *Partitioned[T]) SoftDelete(ctx context.Context, key, id uuid.UUID) results.Result[results.Empty] {
	return p.c.deleteOne(ctx, p.scope(key), softDelete, id)
}

// SoftDeleteMany marks the live entities of key with ids as deleted.
func (p *Partitioned[T]) SoftDeleteMany(ctx context.Context, key uuid.UUID, ids []uuid.UUID) results.Result[int] {
	return p.c.deleteMany(ctx, p.scope(key), softDelete, ids)
}

// SoftDeleteWhere marks every live entity of key matching f as deleted.
func (p *Partitioned[T]) SoftDeleteWhere(ctx context.Context, key uuid.UUID, f query.Filter) results.Result[int] {
	return p.c.deleteWhere(ctx, p.scope(key), softDelete, f)
}

// SoftDeleteManyAtomic is SoftDeleteMany in one transaction.
func (p *Partitioned[T]) SoftDeleteManyAtomic(ctx context.Context, key uuid.UUID, ids []uuid.UUID) results.Result[int] {
	return p.c.deleteManyAtomic(ctx, p.scope(key), softDelete, ids)
}

// SoftDeleteWhereAtomic is SoftDeleteWhere in one transaction.
func (p *Partitioned[T]) SoftDeleteWhereAtomic(ctx context.Context, key uuid.UUID, f query.Filter) results.Result[int] {
	return p.c.deleteWhereAtomic(ctx, p.scope(key), softDelete, f)
}

// HardDelete ignores the live-only scope but never the partition.
func (p *Partitioned[T]) HardDelete(ctx context.Context, key, id uuid.UUID) results.Result[results.Empty] {
	return p.c.deleteOne(ctx, p.scope(key), hardDelete, id)
}

// HardDeleteMany removes the rows of key with ids.
func (p *Partitioned[T]) HardDeleteMany(ctx context.Context, key uuid.UUID, ids []uuid.UUID) results.Result[int] {
	return p.c.deleteMany(ctx, p.scope(key), hardDelete, ids)
}

// HardDeleteWhere removes every row of key matching f.
func (p *Partitioned[T]) HardDeleteWhere(ctx context.Context, key uuid.UUID, f query.Filter) results.Result[int] {
	return p.c.deleteWhere(ctx, p.scope(key), hardDelete, f)
}

// HardDeleteManyAtomic is HardDeleteMany in one transaction.
func (p *Partitioned[T]) HardDeleteManyAtomic(ctx context.Context, key uuid.UUID, ids []uuid.UUID) results.Result[int] {
	return p.c.deleteManyAtomic(ctx, p.scope(key), hardDelete, ids)
}

// HardDeleteWhereAtomic is HardDeleteWhere in one transaction.
func (p *Partitioned[T]) HardDeleteWhereAtomic(ctx context.Context, key uuid.UUID, f query.Filter) results.Result[int] {
	return p.c.deleteWhereAtomic(ctx, p.scope(key), hardDelete, f)
}

// Within binds p to one key. The result can be used wherever an
// unpartitioned reader and deleter is expected, such as by cleanup.
func (p *Partitioned[T]) Within(key uuid.UUID) *Repository[T] {
	return &Repository[T]{c: p.c, sc: p.scope(key)}
}
