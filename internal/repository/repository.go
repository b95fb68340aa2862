// Package repository provides the generic data-access engine: reads that
// default to live rows, stamped inserts, validated partial updates, soft
// and hard deletes, and transactional all-or-nothing variants of every
// bulk write. Every operation returns a results.Result.
//
// Best-effort bulk operations (InsertMany, UpdateMany, *DeleteMany,
// *DeleteWhere) succeed when at least one row is affected and log a
// warning on partial application. Atomic variants run in one transaction
// and require the exact requested count (at least one row for filter
// based deletes); otherwise the transaction is rolled back and a Bulk*
// error is returned.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophdata/internal/logging"
	"github.com/dmitrijs2005/gophdata/internal/models"
	"github.com/dmitrijs2005/gophdata/internal/query"
	"github.com/dmitrijs2005/gophdata/internal/results"
	"github.com/dmitrijs2005/gophdata/internal/store"
	"github.com/dmitrijs2005/gophdata/internal/updates"
)

type settings struct {
	now   func() time.Time
	newID func() (uuid.UUID, error)
}

// Option customises a repository.
type Option func(*settings)

// WithClock replaces time.Now as the source of timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithIDSource replaces uuid.NewV7 as the source of new ids.
func WithIDSource(fn func() (uuid.UUID, error)) Option {
	return func(s *settings) { s.newID = fn }
}

// Repository serves one entity type. The store is owned by the caller.
type Repository[T models.Record] struct {
	c  *core[T]
	sc scope[T]
}

// New builds a repository over s. fields declares the columns the update
// path accepts.
func New[T models.Record](s store.Store[T], fields *updates.Registry, logger logging.Logger, opts ...Option) (*Repository[T], error) {
	c, err := newCore(s, fields, logger, opts)
	if err != nil {
		return nil, err
	}
	return &Repository[T]{c: c}, nil
}

// GetByID returns the live entity with id or EntityNotFoundError.
func (r *Repository[T]) GetByID(ctx context.Context, id uuid.UUID) results.Result[T] {
	return r.c.getByID(ctx, r.sc, id)
}

// GetByFilter returns the first live match ordered by id.
func (r *Repository[T]) GetByFilter(ctx context.Context, f query.Filter) results.Result[T] {
	return r.c.getByFilter(ctx, r.sc, f)
}

// GetAll returns every live entity in the given order.
func (r *Repository[T]) GetAll(ctx context.Context, sort ...query.Sort) results.Result[[]T] {
	return r.c.find(ctx, r.sc, "get all", query.Query{Sort: sort})
}

// GetMany returns one page of live entities, ordered by sort and then id.
func (r *Repository[T]) GetMany(ctx context.Context, page query.Page, sort ...query.Sort) results.Result[[]T] {
	return r.c.find(ctx, r.sc, "get many", query.Query{Page: &page, Sort: sort})
}

// GetManyByFilter returns live entities matching f. A nil page returns all of them.
func (r *Repository[T]) GetManyByFilter(ctx context.Context, f query.Filter, page *query.Page, sort ...query.Sort) results.Result[[]T] {
	return r.c.find(ctx, r.sc, "get many by filter", query.Query{Where: f, Page: page, Sort: sort})
}

// Find runs q as given. It is the only read that can include
// soft-deleted rows.
func (r *Repository[T]) Find(ctx context.Context, q query.Query) results.Result[[]T] {
	return r.c.find(ctx, r.sc, "find", q)
}

// GetSoftDeleted returns rows soft-deleted at or before cutoff that match
// f, oldest deletion first.
func (r *Repository[T]) GetSoftDeleted(ctx context.Context, f query.Filter, cutoff time.Time, page query.Page) results.Result[[]T] {
	return r.c.getSoftDeleted(ctx, r.sc, f, cutoff, page)
}

// Count returns the number of live entities matching f.
func (r *Repository[T]) Count(ctx context.Context, f query.Filter) results.Result[int] {
	return r.c.count(ctx, r.sc, f)
}

// Insert assigns a new id and timestamps to e in place and persists it.
// The stamp happens before the write, so e keeps its new id and
// timestamps even when the insert fails.
func (r *Repository[T]) Insert(ctx context.Context, e T) results.Result[T] {
	return r.c.insert(ctx, r.sc, e)
}

// InsertMany inserts each entity separately and returns the ones persisted.
// Every entity is stamped in place, including the ones that were skipped.
func (r *Repository[T]) InsertMany(ctx context.Context, es []T) results.Result[[]T] {
	return r.c.insertMany(ctx, r.sc, es)
}

// InsertAtomic persists every entity in one transaction or none of them.
// Entities are stamped in place before the transaction starts and keep
// those values after a rollback.
func (r *Repository[T]) InsertAtomic(ctx context.Context, es []T) results.Result[[]T] {
	return r.c.insertAtomic(ctx, r.sc, es)
}

// Update applies spec to the live entity with id.
func (r *Repository[T]) Update(ctx context.Context, id uuid.UUID, spec updates.Spec) results.Result[results.Empty] {
	return r.c.update(ctx, r.sc, id, spec)
}

// UpdateMany validates every spec, then applies them one by one and
// returns the number of rows updated.
func (r *Repository[T]) UpdateMany(ctx context.Context, specs map[uuid.UUID]updates.Spec) results.Result[int] {
	return r.c.updateMany(ctx, r.sc, specs)
}

// UpdateAtomic applies every spec in one transaction and rolls back unless
// each id matched a live row.
func (r *Repository[T]) UpdateAtomic(ctx context.Context, specs map[uuid.UUID]updates.Spec) results.Result[int] {
	return r.c.updateAtomic(ctx, r.sc, specs)
}

// SoftDelete marks the live entity with id as deleted.
func (r *Repository[T]) SoftDelete(ctx context.Context, id uuid.UUID) results.Result[results.Empty] {
	return r.c.deleteOne(ctx, r.sc, softDelete, id)
}

// SoftDeleteMany marks the live entities with ids as deleted and returns
// how many were.
func (r *Repository[T]) SoftDeleteMany(ctx context.Context, ids []uuid.UUID) results.Result[int] {
	return r.c.deleteMany(ctx, r.sc, softDelete, ids)
}

// SoftDeleteWhere marks every live entity matching f as deleted.
func (r *Repository[T]) SoftDeleteWhere(ctx context.Context, f query.Filter) results.Result[int] {
	return r.c.deleteWhere(ctx, r.sc, softDelete, f)
}

// SoftDeleteManyAtomic is SoftDeleteMany in one transaction that requires
// every id to be a live row.
func (r *Repository[T]) SoftDeleteManyAtomic(ctx context.Context, ids []uuid.UUID) results.Result[int] {
	return r.c.deleteManyAtomic(ctx, r.sc, softDelete, ids)
}

// SoftDeleteWhereAtomic is SoftDeleteWhere in one transaction that requires
// at least one match.
func (r *Repository[T]) SoftDeleteWhereAtomic(ctx context.Context, f query.Filter) results.Result[int] {
	return r.c.deleteWhereAtomic(ctx, r.sc, softDelete, f)
}

// HardDelete removes the row with id, live or soft-deleted.
func (r *Repository[T]) HardDelete(ctx context.Context, id uuid.UUID) results.Result[results.Empty] {
	return r.c.deleteOne(ctx, r.sc, hardDelete, id)
}

// HardDeleteMany removes the rows with ids, live or soft-deleted.
func (r *Repository[T]) HardDeleteMany(ctx context.Context, ids []uuid.UUID) results.Result[int] {
	return r.c.deleteMany(ctx, r.sc, hardDelete, ids)
}

// HardDeleteWhere removes every row matching f, live or soft-deleted.
func (r *Repository[T]) HardDeleteWhere(ctx context.Context, f query.Filter) results.Result[int] {
	return r.c.deleteWhere(ctx, r.sc, hardDelete, f)
}

// HardDeleteManyAtomic is HardDeleteMany in one transaction that requires
// every id to exist.
func (r *Repository[T]) HardDeleteManyAtomic(ctx context.Context, ids []uuid.UUID) results.Result[int] {
	return r.c.deleteManyAtomic(ctx, r.sc, hardDelete, ids)
}

// HardDeleteWhereAtomic is HardDeleteWhere in one transaction that requires
// at least one match.
func (r *Repository[T]) HardDeleteWhereAtomic(ctx context.Context, f query.Filter) results.Result[int] {
	return r.c.deleteWhereAtomic(ctx, r.sc, hardDelete, f)
}
