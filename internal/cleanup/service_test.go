package cleanup

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/gophdata/internal/logging"
	"github.com/dmitrijs2005/gophdata/internal/models"
	"github.com/dmitrijs2005/gophdata/internal/query"
	"github.com/dmitrijs2005/gophdata/internal/repository"
	"github.com/dmitrijs2005/gophdata/internal/results"
	"github.com/dmitrijs2005/gophdata/internal/sqlstore"
	"github.com/dmitrijs2005/gophdata/internal/updates"
)

type note struct {
	models.Entity
	Title string
}

var (
	noteFields = updates.NewRegistry("note")
	_          = updates.Define[string](noteFields, "title")
)

var noteTable = sqlstore.Table[*note]{
	Name:    "notes",
	Columns: []string{"title"},
	New:     func() *note { return &note{} },
	Values:  func(n *note) []any { return []any{n.Title} },
	Targets: func(n *note) []any { return []any{&n.Title} },
}

func newNoteRepo(t *testing.T) *repository.Repository[*note] {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := sql.Open("sqlite", "file:"+name+"?mode=memory&cache=shared&_time_format=sqlite")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE notes (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP,
		deleted_at TIMESTAMP,
		title TEXT NOT NULL
	)`)
	require.NoError(t, err)

	s, err := sqlstore.New(db, sqlstore.SQLite, noteTable)
	require.NoError(t, err)
	repo, err := repository.New[*note](s, noteFields, logging.Discard())
	require.NoError(t, err)
	return repo
}

func seedSoftDeleted(t *testing.T, repo *repository.Repository[*note], n int, title func(i int) string) []uuid.UUID {
	t.Helper()
	ctx := context.Background()
	notes := make([]*note, n)
	for i := range notes {
		notes[i] = &note{Title: title(i)}
	}
	ins := repo.InsertAtomic(ctx, notes)
	require.False(t, ins.HasError(), "%v", ins.Err())

	ids := make([]uuid.UUID, n)
	for i, item := range ins.Value() {
		ids[i] = item.ID
	}
	del := repo.SoftDeleteManyAtomic(ctx, ids)
	require.False(t, del.HasError(), "%v", del.Err())
	return ids
}

func TestClean_RemovesAllEligible(t *testing.T) {
	repo := newNoteRepo(t)
	seedSoftDeleted(t, repo, 500, func(int) string { return "n" })
	ctx := context.Background()
	cutoff := time.Now().Add(50 * time.Minute)

	svc := New[*note](repo, logging.Discard())

	r := svc.Clean(ctx, cutoff, 500)
	require.False(t, r.HasError(), "%v", r.Err())
	assert.Equal(t, 500, r.Value())

	r = svc.Clean(ctx, cutoff, 500)
	require.False(t, r.HasError())
	assert.Equal(t, 0, r.Value())

	left := repo.Find(ctx, query.Query{IncludeDeleted: true})
	require.False(t, left.HasError())
	assert.Empty(t, left.Value())
}

func TestClean_RespectsCutoffAndLiveRows(t *testing.T) {
	repo := newNoteRepo(t)
	ctx := context.Background()
	seedSoftDeleted(t, repo, 3, func(int) string { return "old" })
	live := repo.Insert(ctx, &note{Title: "live"})
	require.False(t, live.HasError())

	svc := New[*note](repo, nil)

	r := svc.Clean(ctx, time.Now().Add(-time.Hour), 10)
	require.False(t, r.HasError())
	assert.Equal(t, 0, r.Value(), "nothing was deleted before the cutoff")

	r = svc.Clean(ctx, time.Now().Add(time.Hour), 10)
	require.False(t, r.HasError())
	assert.Equal(t, 3, r.Value())

	assert.False(t, repo.GetByID(ctx, live.Value().ID).HasError(), "live rows are never removed")
}

func TestClean_FilterOverride(t *testing.T) {
	repo := newNoteRepo(t)
	ctx := context.Background()
	seedSoftDeleted(t, repo, 6, func(i int) string {
		if i%2 == 0 {
			return "even"
		}
		return "odd"
	})

	svc := New[*note](repo, logging.Discard(), WithFilter[*note](query.Eq("title", "even")))
	r := svc.Clean(ctx, time.Now().Add(time.Hour), 100)
	require.False(t, r.HasError())
	assert.Equal(t, 3, r.Value())

	left := repo.Find(ctx, query.Query{IncludeDeleted: true})
	require.False(t, left.HasError())
	require.Len(t, left.Value(), 3)
	for _, n := range left.Value() {
		assert.Equal(t, "odd", n.Title)
	}
}

func TestClean_AllVetoed(t *testing.T) {
	repo := newNoteRepo(t)
	ctx := context.Background()
	seedSoftDeleted(t, repo, 5, func(int) string { return "keep" })

	deny := func(context.Context, *note) results.Result[bool] { return results.Ok(false) }
	svc := New[*note](repo, logging.Discard(), WithGuard[*note](deny))

	r := svc.Clean(ctx, time.Now().Add(time.Hour), 10)
	require.False(t, r.HasError())
	assert.Equal(t, 0, r.Value())

	left := repo.Find(ctx, query.Query{IncludeDeleted: true})
	require.False(t, left.HasError())
	assert.Len(t, left.Value(), 5)
}

func TestCleanAll_Batches(t *testing.T) {
	repo := newNoteRepo(t)
	ctx := context.Background()
	seedSoftDeleted(t, repo, 25, func(int) string { return "n" })

	svc := New[*note](repo, logging.Discard())
	r := svc.CleanAll(ctx, time.Now().Add(time.Hour), 10)
	require.False(t, r.HasError())
	assert.Equal(t, 25, r.Value())
}

// fakeSource records calls and serves canned results.
type fakeSource struct {
	mu       sync.Mutex
	items    []*note
	findErr  *results.Error
	delErr   *results.Error
	lookups  int
	deleted  [][]uuid.UUID
	lastPage query.Page
}

func (f *fakeSource) GetSoftDeleted(_ context.Context, _ query.Filter, _ time.Time, page query.Page) results.Result[[]*note] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	f.lastPage = page
	if f.findErr != nil {
		return results.FromError[[]*note](f.findErr)
	}
	n := min(page.Take, len(f.items))
	return results.Ok(f.items[:n])
}

func (f *fakeSource) HardDeleteMany(_ context.Context, ids []uuid.UUID) results.Result[int] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ids)
	if f.delErr != nil {
		return results.FromError[int](f.delErr)
	}
	f.items = f.items[len(ids):]
	return results.Ok(len(ids))
}

func notes(n int) []*note {
	out := make([]*note, n)
	for i := range out {
		out[i] = &note{Entity: models.Entity{ID: uuid.New()}}
	}
	return out
}

func TestClean_LookupErrorSkipsGuards(t *testing.T) {
	src := &fakeSource{findErr: results.Unexpected(errors.New("db down"))}
	var calls atomic.Int32
	guard := func(context.Context, *note) results.Result[bool] {
		calls.Add(1)
		return results.Ok(true)
	}

	r := New[*note](src, logging.Discard(), WithGuard[*note](guard)).Clean(context.Background(), time.Now(), 10)
	require.True(t, r.HasError())
	assert.Equal(t, results.CodeUnexpectedDatabase, r.Err().Code())
	assert.Zero(t, calls.Load())
	assert.Empty(t, src.deleted)
}

func TestClean_GuardFailuresExcludeOnlyThatEntity(t *testing.T) {
	items := notes(4)
	src := &fakeSource{items: items}

	guard := func(_ context.Context, n *note) results.Result[bool] {
		switch n.ID {
		case items[0].ID:
			return results.FromError[bool](results.Unexpected(errors.New("lookup failed")))
		case items[1].ID:
			return results.Ok(false)
		case items[2].ID:
			panic("guard bug")
		}
		return results.Ok(true)
	}

	r := New[*note](src, logging.Discard(), WithGuard[*note](guard)).Clean(context.Background(), time.Now(), 10)
	require.False(t, r.HasError())
	assert.Equal(t, 1, r.Value())
	require.Len(t, src.deleted, 1)
	assert.Equal(t, []uuid.UUID{items[3].ID}, src.deleted[0], "single batched delete of approved ids")
}

func TestClean_GuardConcurrencyIsBounded(t *testing.T) {
	src := &fakeSource{items: notes(40)}

	var inFlight, peak atomic.Int32
	guard := func(context.Context, *note) results.Result[bool] {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return results.Ok(true)
	}

	r := New[*note](src, logging.Discard(), WithGuard[*note](guard)).Clean(context.Background(), time.Now(), 8)
	require.False(t, r.HasError())
	assert.Equal(t, 8, r.Value())
	assert.LessOrEqual(t, peak.Load(), int32(8))
}

func TestClean_DefaultBatchSize(t *testing.T) {
	src := &fakeSource{}
	r := New[*note](src, logging.Discard()).Clean(context.Background(), time.Now(), 0)
	require.False(t, r.HasError())
	assert.Equal(t, 0, r.Value())
	assert.Equal(t, query.Page{Skip: 0, Take: DefaultBatchSize}, src.lastPage)
	assert.Empty(t, src.deleted, "no candidates means no delete call")
}

func TestClean_HardDeleteErrorPropagates(t *testing.T) {
	src := &fakeSource{items: notes(2), delErr: results.Canceled(context.Canceled)}

	r := New[*note](src, logging.Discard()).Clean(context.Background(), time.Now(), 10)
	require.True(t, r.HasError())
	assert.Equal(t, results.CodeOperationCanceled, r.Err().Code())
}

func TestCleanAll_StopsOnFullyVetoedBatch(t *testing.T) {
	src := &fakeSource{items: notes(5)}
	deny := func(context.Context, *note) results.Result[bool] { return results.Ok(false) }

	r := New[*note](src, logging.Discard(), WithGuard[*note](deny)).CleanAll(context.Background(), time.Now(), 5)
	require.False(t, r.HasError())
	assert.Equal(t, 0, r.Value())
	assert.Equal(t, 1, src.lookups)
}

func TestClean_CanceledWhileGuarding(t *testing.T) {
	src := &fakeSource{items: notes(3)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	guard := func(ctx context.Context, _ *note) results.Result[bool] {
		cancel()
		return results.FromError[bool](results.Canceled(ctx.Err()))
	}

	r := New[*note](src, logging.Discard(), WithGuard[*note](guard)).Clean(ctx, time.Now().Add(time.Hour), 10)
	require.True(t, r.HasError())
	assert.Equal(t, results.CodeOperationCanceled, r.Err().Code())
	assert.ErrorIs(t, r.Err(), context.Canceled)
	assert.Empty(t, src.deleted)
}

func TestCleanAll_AlreadyCanceled(t *testing.T) {
	src := &fakeSource{items: notes(2)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New[*note](src, logging.Discard()).CleanAll(ctx, time.Now(), 10)
	require.True(t, r.HasError())
	assert.Equal(t, results.CodeOperationCanceled, r.Err().Code())
	assert.Zero(t, src.lookups)
}

func TestClean_BatchAboveBindLimit(t *testing.T) {
	repo := newNoteRepo(t)
	seedSoftDeleted(t, repo, 7000, func(int) string { return "n" })
	ctx := context.Background()

	r := New[*note](repo, logging.Discard()).Clean(ctx, time.Now().Add(time.Hour), 40000)
	require.False(t, r.HasError(), "%v", r.Err())
	assert.Equal(t, 7000, r.Value())
}
