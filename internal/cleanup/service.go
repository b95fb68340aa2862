// Package cleanup hard-deletes records that were soft-deleted before a
// cutoff, in bounded batches, letting a guard veto individual records.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/gophdata/internal/logging"
	"github.com/dmitrijs2005/gophdata/internal/models"
	"github.com/dmitrijs2005/gophdata/internal/query"
	"github.com/dmitrijs2005/gophdata/internal/results"
)

// DefaultBatchSize is used when a non-positive batch size is given.
const DefaultBatchSize = 500

// Source is the part of a repository the cleanup needs.
type Source[T models.Record] interface {
	GetSoftDeleted(ctx context.Context, f query.Filter, cutoff time.Time, page query.Page) results.Result[[]T]
	HardDeleteMany(ctx context.Context, ids []uuid.UUID) results.Result[int]
}

// Guard decides whether a record may be removed. An error or false keeps
// the record for a later run. Guards may run concurrently and must not
// depend on each other.
type Guard[T models.Record] func(ctx context.Context, e T) results.Result[bool]

type Option[T models.Record] func(*Service[T])

// WithFilter restricts candidates. The default matches everything.
func WithFilter[T models.Record](f query.Filter) Option[T] {
	return func(s *Service[T]) { s.filter = f }
}

// WithGuard installs a per-record veto. The default allows everything.
func WithGuard[T models.Record](g Guard[T]) Option[T] {
	return func(s *Service[T]) { s.guard = g }
}

type Service[T models.Record] struct {
	repo   Source[T]
	logger logging.Logger
	filter query.Filter
	guard  Guard[T]
}

func New[T models.Record](repo Source[T], logger logging.Logger, opts ...Option[T]) *Service[T] {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Service[T]{repo: repo, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clean runs one batch: it loads up to batchSize records soft-deleted at
// or before cutoff, asks the guard about each and removes the approved
// ones with a single hard delete. It returns the number of rows removed.
func (s *Service[T]) Clean(ctx context.Context, cutoff time.Time, batchSize int) results.Result[int] {
	deleted, _, rerr := s.clean(ctx, cutoff, batchSize)
	if rerr != nil {
		return results.FromError[int](rerr)
	}
	return results.Ok(deleted)
}

// CleanAll repeats Clean until a batch removes nothing or comes back
// short. Records vetoed by the guard stay at the head of the queue, so a
// batch made only of vetoed records ends the run.
func (s *Service[T]) CleanAll(ctx context.Context, cutoff time.Time, batchSize int) results.Result[int] {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			s.logger.Warn(ctx, "cleanup canceled", "deleted", total)
			return results.FromError[int](results.Canceled(err))
		}
		deleted, candidates, rerr := s.clean(ctx, cutoff, batchSize)
		if rerr != nil {
			return results.FromError[int](rerr)
		}
		total += deleted
		if deleted == 0 || candidates < batchSize {
			return results.Ok(total)
		}
	}
}

func (s *Service[T]) clean(ctx context.Context, cutoff time.Time, batchSize int) (deleted, candidates int, rerr *results.Error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	found := s.repo.GetSoftDeleted(ctx, s.filter, cutoff, query.Page{Skip: 0, Take: batchSize})
	if found.HasError() {
		s.logger.Error(ctx, "cleanup lookup failed", "error", found.Err())
		return 0, 0, found.Err()
	}
	items := found.Value()
	if len(items) == 0 {
		return 0, 0, nil
	}

	ids := s.approve(ctx, items, batchSize)
	// guards fail once ctx is done, so their vetoes mean nothing
	if err := ctx.Err(); err != nil {
		s.logger.Warn(ctx, "cleanup canceled while checking guards", "candidates", len(items))
		return 0, len(items), results.Canceled(err)
	}
	if len(ids) == 0 {
		s.logger.Info(ctx, "cleanup batch fully vetoed", "candidates", len(items))
		return 0, len(items), nil
	}

	removed := s.repo.HardDeleteMany(ctx, ids)
	if removed.HasError() {
		s.logger.Error(ctx, "cleanup hard delete failed", "error", removed.Err())
		return 0, len(items), removed.Err()
	}

	s.logger.Info(ctx, "cleanup batch finished",
		"candidates", len(items), "vetoed", len(items)-len(ids), "deleted", removed.Value())
	return removed.Value(), len(items), nil
}

// approve runs the guard for every item with at most limit guards in
// flight and returns the ids that may be removed, in input order.
func (s *Service[T]) approve(ctx context.Context, items []T, limit int) []uuid.UUID {
	allowed := make([]bool, len(items))
	if s.guard == nil {
		for i := range allowed {
			allowed[i] = true
		}
	} else {
		var g errgroup.Group
		g.SetLimit(limit)
		for i, item := range items {
			g.Go(func() error {
				allowed[i] = s.check(ctx, item)
				return nil
			})
		}
		_ = g.Wait()
	}

	ids := make([]uuid.UUID, 0, len(items))
	for i, item := range items {
		if allowed[i] {
			ids = append(ids, item.Meta().ID)
		}
	}
	return ids
}

func (s *Service[T]) check(ctx context.Context, item T) (ok bool) {
	id := item.Meta().ID
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error(ctx, "cleanup guard panicked", "id", id, "panic", fmt.Sprint(p))
			ok = false
		}
	}()

	r := s.guard(ctx, item)
	if r.HasError() {
		s.logger.Warn(ctx, "cleanup guard failed", "id", id, "error", r.Err())
		return false
	}
	return r.Value()
}
