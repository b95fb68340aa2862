package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophdata/internal/dbx"
	"github.com/dmitrijs2005/gophdata/internal/logging"
	"github.com/dmitrijs2005/gophdata/internal/models"
	"github.com/dmitrijs2005/gophdata/internal/query"
	"github.com/dmitrijs2005/gophdata/internal/results"
	"github.com/dmitrijs2005/gophdata/internal/store"
	"github.com/dmitrijs2005/gophdata/internal/updates"
)

var errRowCount = errors.New("affected row count mismatch")

// idsPerStatement bounds the IN list of one statement, keeping it well
// under every dialect's bind parameter limit.
const idsPerStatement = 1000

// scope is applied to every statement: filter is AND-ed into each
// predicate and stamp runs on every record before insert.
type scope[T models.Record] struct {
	filter query.Filter
	stamp  func(T)
}

func (s scope[T]) where(filters ...query.Filter) query.Filter {
	return query.All(append([]query.Filter{s.filter}, filters...)...)
}

type core[T models.Record] struct {
	store     store.Store[T]
	fields    *updates.Registry
	logger    logging.Logger
	now       func() time.Time
	newID     func() (uuid.UUID, error)
	protected []string
}

func newCore[T models.Record](s store.Store[T], fields *updates.Registry, logger logging.Logger, opts []Option) (*core[T], error) {
	if s == nil {
		return nil, errors.New("repository: store is nil")
	}
	if fields == nil {
		return nil, errors.New("repository: field registry is nil")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	st := settings{now: time.Now, newID: uuid.NewV7}
	for _, opt := range opts {
		opt(&st)
	}
	return &core[T]{
		store:  s,
		fields: fields,
		logger: logger.With("entity", fields.Entity()),
		now:    st.now,
		newID:  st.newID,
	}, nil
}

// Reads

func (c *core[T]) first(ctx context.Context, op string, where query.Filter) results.Result[T] {
	items, err := c.store.Find(ctx, query.Query{Where: where, Page: &query.Page{Take: 1}})
	if err != nil {
		return results.FromError[T](c.fail(ctx, op, err))
	}
	if len(items) == 0 {
		c.logger.Debug(ctx, "entity not found", "op", op)
		return results.FromError[T](results.NotFound(c.fields.Entity() + " not found"))
	}
	return results.Ok(items[0])
}

func (c *core[T]) getByID(ctx context.Context, sc scope[T], id uuid.UUID) results.Result[T] {
	return c.first(ctx, "get by id", sc.where(query.Eq(models.ColumnID, id)))
}

func (c *core[T]) getByFilter(ctx context.Context, sc scope[T], f query.Filter) results.Result[T] {
	return c.first(ctx, "get by filter", sc.where(f))
}

func (c *core[T]) find(ctx context.Context, sc scope[T], op string, q query.Query) results.Result[[]T] {
	q.Where = sc.where(q.Where)
	items, err := c.store.Find(ctx, q)
	if err != nil {
		return results.FromError[[]T](c.fail(ctx, op, err))
	}
	return results.Ok(items)
}

func (c *core[T]) getSoftDeleted(ctx context.Context, sc scope[T], f query.Filter, cutoff time.Time, page query.Page) results.Result[[]T] {
	return c.find(ctx, sc, "get soft deleted", query.Query{
		Where: query.All(
			f,
			query.NotNull(models.ColumnDeletedAt),
			query.Lte(models.ColumnDeletedAt, cutoff),
		),
		Sort:           []query.Sort{query.Asc(models.ColumnDeletedAt)},
		Page:           &page,
		IncludeDeleted: true,
	})
}

func (c *core[T]) count(ctx context.Context, sc scope[T], f query.Filter) results.Result[int] {
	n, err := c.store.Count(ctx, sc.where(f))
	if err != nil {
		return results.FromError[int](c.fail(ctx, "count", err))
	}
	return results.Ok(int(n))
}

// Inserts

func (c *core[T]) stamp(sc scope[T], e T) error {
	id, err := c.newID()
	if err != nil {
		return fmt.Errorf("generate id: %w", err)
	}
	e.Meta().Stamp(id, c.now())
	if sc.stamp != nil {
		sc.stamp(e)
	}
	return nil
}

func (c *core[T]) insert(ctx context.Context, sc scope[T], e T) results.Result[T] {
	if err := c.stamp(sc, e); err != nil {
		return results.FromError[T](c.fail(ctx, "insert", err))
	}
	n, err := c.store.Insert(ctx, e)
	if err != nil {
		return results.FromError[T](c.fail(ctx, "insert", err))
	}
	if n == 0 {
		c.logger.Error(ctx, "insert affected no rows", "id", e.Meta().ID)
		return results.FromError[T](results.InsertFailed("no rows inserted"))
	}
	return results.Ok(e)
}

// insertMany writes one statement per entity and keeps going past rows
// the store rejects.
func (c *core[T]) insertMany(ctx context.Context, sc scope[T], es []T) results.Result[[]T] {
	const op = "insert many"
	inserted := make([]T, 0, len(es))
	if len(es) == 0 {
		return results.Ok(inserted)
	}

	var firstErr error
	for _, e := range es {
		if err := ctx.Err(); err != nil {
			return results.FromError[[]T](c.fail(ctx, op, err))
		}
		if err := c.stamp(sc, e); err != nil {
			return results.FromError[[]T](c.fail(ctx, op, err))
		}
		n, err := c.store.Insert(ctx, e)
		if err != nil {
			if isCanceled(ctx, err) {
				return results.FromError[[]T](c.fail(ctx, op, err))
			}
			c.logger.Warn(ctx, "bulk insert skipped entity", "id", e.Meta().ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if n > 0 {
			inserted = append(inserted, e)
		}
	}

	switch {
	case len(inserted) == 0 && firstErr != nil:
		return results.FromError[[]T](c.fail(ctx, op, firstErr))
	case len(inserted) == 0:
		c.logger.Error(ctx, "bulk insert affected no rows", "requested", len(es))
		return results.FromError[[]T](results.BulkInsertFailed("no rows inserted"))
	case len(inserted) < len(es):
		c.logger.Warn(ctx, "bulk insert partially applied", "requested", len(es), "inserted", len(inserted))
	}
	return results.Ok(inserted)
}

func (c *core[T]) insertAtomic(ctx context.Context, sc scope[T], es []T) results.Result[[]T] {
	const op = "insert atomic"
	if len(es) == 0 {
		return results.Ok(make([]T, 0))
	}
	for _, e := range es {
		if err := c.stamp(sc, e); err != nil {
			return results.FromError[[]T](c.fail(ctx, op, err))
		}
	}

	rerr := c.atomic(ctx, op, results.CodeBulkInsertFailed, func(ctx context.Context, tx store.Tx[T]) error {
		n, err := tx.Insert(ctx, es...)
		if err != nil {
			return err
		}
		return expectRows(n, len(es))
	})
	if rerr != nil {
		return results.FromError[[]T](rerr)
	}
	return results.Ok(es)
}

// Updates

func (c *core[T]) plan(ctx context.Context, spec updates.Spec) (updates.Plan, *results.Error) {
	plan, err := updates.Finalize(spec, c.fields, c.now(), c.protected...)
	if err != nil {
		c.logger.Warn(ctx, "rejected update", "error", err)
		return updates.Plan{}, results.InvalidUpdate(err)
	}
	return plan, nil
}

type plannedUpdate struct {
	id   uuid.UUID
	plan updates.Plan
}

// plans validates every spec before anything is dispatched. The result is
// ordered by id so that statements run in a stable order.
func (c *core[T]) plans(ctx context.Context, specs map[uuid.UUID]updates.Spec) ([]plannedUpdate, *results.Error) {
	out := make([]plannedUpdate, 0, len(specs))
	for id, spec := range specs {
		plan, rerr := c.plan(ctx, spec)
		if rerr != nil {
			return nil, rerr
		}
		out = append(out, plannedUpdate{id: id, plan: plan})
	}
	slices.SortFunc(out, func(a, b plannedUpdate) int { return bytes.Compare(a.id[:], b.id[:]) })
	return out, nil
}

func (c *core[T]) update(ctx context.Context, sc scope[T], id uuid.UUID, spec updates.Spec) results.Result[results.Empty] {
	plan, rerr := c.plan(ctx, spec)
	if rerr != nil {
		return results.FromError[results.Empty](rerr)
	}
	n, err := c.store.Update(ctx, sc.where(query.Eq(models.ColumnID, id)), plan)
	if err != nil {
		return results.FromError[results.Empty](c.fail(ctx, "update", err))
	}
	if n == 0 {
		c.logger.Warn(ctx, "update affected no rows", "id", id)
		return results.FromError[results.Empty](results.UpdateFailed("no rows updated"))
	}
	return results.Void()
}

func (c *core[T]) updateMany(ctx context.Context, sc scope[T], specs map[uuid.UUID]updates.Spec) results.Result[int] {
	const op = "update many"
	planned, rerr := c.plans(ctx, specs)
	if rerr != nil {
		return results.FromError[int](rerr)
	}

	var (
		total    int64
		firstErr error
	)
	for _, p := range planned {
		if err := ctx.Err(); err != nil {
			return results.FromError[int](c.fail(ctx, op, err))
		}
		n, err := c.store.Update(ctx, sc.where(query.Eq(models.ColumnID, p.id)), p.plan)
		if err != nil {
			if isCanceled(ctx, err) || errors.Is(err, store.ErrInvalidAssignment) {
				return results.FromError[int](c.fail(ctx, op, err))
			}
			c.logger.Warn(ctx, "bulk update skipped entity", "id", p.id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += n
	}

	switch {
	case total == 0 && firstErr != nil:
		return results.FromError[int](c.fail(ctx, op, firstErr))
	case total == 0:
		c.logger.Warn(ctx, "bulk update affected no rows", "requested", len(specs))
		return results.FromError[int](results.BulkUpdateFailed("no rows updated"))
	case total < int64(len(specs)):
		c.logger.Warn(ctx, "bulk update partially applied", "requested", len(specs), "updated", total)
	}
	return results.Ok(int(total))
}

func (c *core[T]) updateAtomic(ctx context.Context, sc scope[T], specs map[uuid.UUID]updates.Spec) results.Result[int] {
	planned, rerr := c.plans(ctx, specs)
	if rerr != nil {
		return results.FromError[int](rerr)
	}
	if len(planned) == 0 {
		return results.FromError[int](results.BulkUpdateFailed("no updates requested"))
	}

	rerr = c.atomic(ctx, "update atomic", results.CodeBulkUpdateFailed, func(ctx context.Context, tx store.Tx[T]) error {
		var total int64
		for _, p := range planned {
			n, err := tx.Update(ctx, sc.where(query.Eq(models.ColumnID, p.id)), p.plan)
			if err != nil {
				return err
			}
			total += n
		}
		return expectRows(total, len(planned))
	})
	if rerr != nil {
		return results.FromError[int](rerr)
	}
	return results.Ok(len(planned))
}

// Deletes

type deleteMode int

const (
	softDelete deleteMode = iota
	hardDelete
)

func (m deleteMode) String() string {
	if m == softDelete {
		return "soft delete"
	}
	return "hard delete"
}

// remove runs one delete statement. Soft deletes only touch live rows;
// hard deletes also remove soft-deleted ones.
func (c *core[T]) remove(ctx context.Context, ops store.Ops[T], mode deleteMode, where query.Filter) (int64, error) {
	if mode == softDelete {
		return ops.Update(ctx, where, updates.SoftDeletePlan(c.now()))
	}
	return ops.Delete(ctx, where, true)
}

func (c *core[T]) deleteOne(ctx context.Context, sc scope[T], mode deleteMode, id uuid.UUID) results.Result[results.Empty] {
	n, err := c.remove(ctx, c.store, mode, sc.where(query.Eq(models.ColumnID, id)))
	if err != nil {
		return results.FromError[results.Empty](c.fail(ctx, mode.String(), err))
	}
	if n == 0 {
		c.logger.Warn(ctx, mode.String()+" affected no rows", "id", id)
		return results.FromError[results.Empty](results.DeleteFailed("no rows deleted"))
	}
	return results.Void()
}

func (c *core[T]) deleteMany(ctx context.Context, sc scope[T], mode deleteMode, ids []uuid.UUID) results.Result[int] {
	op := mode.String() + " many"
	ids = distinct(ids)
	if len(ids) == 0 {
		return results.FromError[int](results.BulkDeleteFailed("no ids given"))
	}

	var (
		n        int64
		firstErr error
	)
	for chunk := range slices.Chunk(ids, idsPerStatement) {
		got, err := c.remove(ctx, c.store, mode, sc.where(query.In(models.ColumnID, chunk...)))
		if err != nil {
			if isCanceled(ctx, err) {
				return results.FromError[int](c.fail(ctx, op, err))
			}
			c.logger.Warn(ctx, mode.String()+" skipped ids", "count", len(chunk), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		n += got
	}

	switch {
	case n == 0 && firstErr != nil:
		return results.FromError[int](c.fail(ctx, op, firstErr))
	case n == 0:
		c.logger.Warn(ctx, mode.String()+" affected no rows", "requested", len(ids))
		return results.FromError[int](results.BulkDeleteFailed("no rows deleted"))
	case n < int64(len(ids)):
		c.logger.Warn(ctx, mode.String()+" partially applied", "requested", len(ids), "deleted", n)
	}
	return results.Ok(int(n))
}

func (c *core[T]) deleteWhere(ctx context.Context, sc scope[T], mode deleteMode, f query.Filter) results.Result[int] {
	n, err := c.remove(ctx, c.store, mode, sc.where(f))
	if err != nil {
		return results.FromError[int](c.fail(ctx, mode.String()+" where", err))
	}
	if n == 0 {
		c.logger.Warn(ctx, mode.String()+" matched no rows")
		return results.FromError[int](results.BulkDeleteFailed("no rows deleted"))
	}
	return results.Ok(int(n))
}

func (c *core[T]) deleteManyAtomic(ctx context.Context, sc scope[T], mode deleteMode, ids []uuid.UUID) results.Result[int] {
	ids = distinct(ids)
	if len(ids) == 0 {
		return results.FromError[int](results.BulkDeleteFailed("no ids given"))
	}
	rerr := c.atomic(ctx, mode.String()+" atomic", results.CodeBulkDeleteFailed, func(ctx context.Context, tx store.Tx[T]) error {
		var n int64
		for chunk := range slices.Chunk(ids, idsPerStatement) {
			got, err := c.remove(ctx, tx, mode, sc.where(query.In(models.ColumnID, chunk...)))
			if err != nil {
				return err
			}
			n += got
		}
		return expectRows(n, len(ids))
	})
	if rerr != nil {
		return results.FromError[int](rerr)
	}
	return results.Ok(len(ids))
}

func (c *core[T]) deleteWhereAtomic(ctx context.Context, sc scope[T], mode deleteMode, f query.Filter) results.Result[int] {
	var deleted int64
	rerr := c.atomic(ctx, mode.String()+" where atomic", results.CodeBulkDeleteFailed, func(ctx context.Context, tx store.Tx[T]) error {
		n, err := c.remove(ctx, tx, mode, sc.where(f))
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: no rows matched", errRowCount)
		}
		deleted = n
		return nil
	})
	if rerr != nil {
		return results.FromError[int](rerr)
	}
	return results.Ok(int(deleted))
}

// Failure handling

// atomic runs fn in one transaction. Every failure after begin rolls the
// transaction back before the error is returned.
func (c *core[T]) atomic(ctx context.Context, op string, code results.Code, fn func(ctx context.Context, tx store.Tx[T]) error) *results.Error {
	began := false
	begin := func(ctx context.Context) (store.Tx[T], error) {
		tx, err := c.store.Begin(ctx)
		began = err == nil
		return tx, err
	}

	err := dbx.InTx(ctx, begin, fn)
	switch {
	case err == nil:
		return nil
	case !began, isCanceled(ctx, err), errors.Is(err, store.ErrInvalidAssignment):
		return c.fail(ctx, op, err)
	}
	c.logger.Error(ctx, "transaction rolled back", "op", op, "error", err)
	return results.Wrap(code, err, "transaction rolled back")
}

// fail maps a store error onto the result taxonomy.
func (c *core[T]) fail(ctx context.Context, op string, err error) *results.Error {
	switch {
	case isCanceled(ctx, err):
		c.logger.Warn(ctx, "operation canceled", "op", op, "error", err)
		return results.Canceled(err)
	case errors.Is(err, store.ErrInvalidAssignment):
		c.logger.Warn(ctx, "store rejected update", "op", op, "error", err)
		return results.InvalidUpdate(err)
	}
	c.logger.Error(ctx, "database error", "op", op, "error", err)
	return results.Unexpected(err)
}

func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func expectRows(got int64, want int) error {
	if got != int64(want) {
		return fmt.Errorf("%w: want %d, got %d", errRowCount, want, got)
	}
	return nil
}

func distinct(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
