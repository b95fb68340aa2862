package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophdata/internal/query"
	"github.com/dmitrijs2005/gophdata/internal/results"
)

// 7000 gadgets need 42000 bind parameters in a single INSERT and 40000 ids
// need 40000 in a single IN list, both above the SQLite limit.
const (
	largeBatch = 7000
	largeIDs   = 40000
)

func manyGadgets(n int) []*gadget {
	out := make([]*gadget, n)
	for i := range out {
		out[i] = &gadget{Name: fmt.Sprintf("g%05d", i), Value: i}
	}
	return out
}

func idsOf(gs []*gadget) []uuid.UUID {
	ids := make([]uuid.UUID, len(gs))
	for i, g := range gs {
		ids[i] = g.ID
	}
	return ids
}

func withUnknown(ids []uuid.UUID, total int) []uuid.UUID {
	out := append([]uuid.UUID(nil), ids...)
	for len(out) < total {
		out = append(out, uuid.New())
	}
	return out
}

func countAll(t *testing.T, repo *Repository[*gadget]) int {
	t.Helper()
	all := repo.Find(context.Background(), query.Query{IncludeDeleted: true})
	require.False(t, all.HasError(), "%v", all.Err())
	return len(all.Value())
}

func TestInsertAtomic_AboveBindLimit(t *testing.T) {
	repo, _ := newGadgetRepo(t)
	ctx := context.Background()

	r := repo.InsertAtomic(ctx, manyGadgets(largeBatch))
	require.False(t, r.HasError(), "%v", r.Err())
	assert.Len(t, r.Value(), largeBatch)

	count := repo.Count(ctx, nil)
	require.False(t, count.HasError())
	assert.Equal(t, largeBatch, count.Value())
}

func TestInsertAtomic_AboveBindLimitRollsBackEveryStatement(t *testing.T) {
	repo, _ := newGadgetRepo(t)
	ctx := context.Background()

	gs := manyGadgets(largeBatch)
	// the duplicate lands in the last statement, after earlier ones ran
	gs[len(gs)-1].Name = gs[0].Name

	r := repo.InsertAtomic(ctx, gs)
	requireCode(t, results.CodeBulkInsertFailed, r.Err())
	assert.Zero(t, countAll(t, repo))
}

func TestHardDeleteMany_AboveBindLimit(t *testing.T) {
	repo, _ := newGadgetRepo(t)
	ctx := context.Background()
	ins := repo.InsertAtomic(ctx, manyGadgets(largeBatch))
	require.False(t, ins.HasError(), "%v", ins.Err())

	r := repo.HardDeleteMany(ctx, withUnknown(idsOf(ins.Value()), largeIDs))
	require.False(t, r.HasError(), "%v", r.Err())
	assert.Equal(t, largeBatch, r.Value())
	assert.Zero(t, countAll(t, repo))
}

func TestSoftDeleteMany_AboveBindLimit(t *testing.T) {
	repo, _ := newGadgetRepo(t)
	ctx := context.Background()
	ins := repo.InsertAtomic(ctx, manyGadgets(largeBatch))
	require.False(t, ins.HasError(), "%v", ins.Err())

	r := repo.SoftDeleteMany(ctx, withUnknown(idsOf(ins.Value()), largeIDs))
	require.False(t, r.HasError(), "%v", r.Err())
	assert.Equal(t, largeBatch, r.Value())

	live := repo.Count(ctx, nil)
	require.False(t, live.HasError())
	assert.Zero(t, live.Value())
}

func TestHardDeleteManyAtomic_AboveBindLimit(t *testing.T) {
	repo, _ := newGadgetRepo(t)
	ctx := context.Background()
	ins := repo.InsertAtomic(ctx, manyGadgets(largeBatch))
	require.False(t, ins.HasError(), "%v", ins.Err())
	ids := idsOf(ins.Value())

	// unknown ids make the count short; every earlier statement is undone
	r := repo.HardDeleteManyAtomic(ctx, withUnknown(ids, largeIDs))
	requireCode(t, results.CodeBulkDeleteFailed, r.Err())
	assert.Equal(t, largeBatch, countAll(t, repo))

	r = repo.HardDeleteManyAtomic(ctx, ids)
	require.False(t, r.HasError(), "%v", r.Err())
	assert.Equal(t, largeBatch, r.Value())
	assert.Zero(t, countAll(t, repo))
}
