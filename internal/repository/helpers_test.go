package repository

import (
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/gophdata/internal/logging"
	"github.com/dmitrijs2005/gophdata/internal/models"
	"github.com/dmitrijs2005/gophdata/internal/sqlstore"
	"github.com/dmitrijs2005/gophdata/internal/updates"
)

type gadget struct {
	models.Entity
	Name  string
	Value int
}

var (
	gadgetFields = updates.NewRegistry("gadget")
	gadgetName   = updates.Define[string](gadgetFields, "name")
	gadgetValue  = updates.Define[int](gadgetFields, "value")
)

var gadgetTable = sqlstore.Table[*gadget]{
	Name:    "gadgets",
	Columns: []string{"name", "value"},
	New:     func() *gadget { return &gadget{} },
	Values:  func(g *gadget) []any { return []any{g.Name, g.Value} },
	Targets: func(g *gadget) []any { return []any{&g.Name, &g.Value} },
}

type member struct {
	models.PartitionedEntity
	Email string
}

var (
	memberFields = updates.NewRegistry("member")
	memberOrg    = updates.Define[string](memberFields, "org_id")
	memberEmail  = updates.Define[string](memberFields, "email")
)

var memberTable = sqlstore.Table[*member]{
	Name:            "members",
	Columns:         []string{"org_id", "email"},
	PartitionColumn: "org_id",
	New:             func() *member { return &member{} },
	Values:          func(m *member) []any { return []any{m.PartitionKey, m.Email} },
	Targets:         func(m *member) []any { return []any{&m.PartitionKey, &m.Email} },
}

const schema = `
CREATE TABLE gadgets (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP,
	deleted_at TIMESTAMP,
	name TEXT NOT NULL,
	value INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX gadgets_name ON gadgets (name);
CREATE TABLE members (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP,
	deleted_at TIMESTAMP,
	org_id TEXT NOT NULL,
	email TEXT NOT NULL
);
`

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite", "file:"+name+"?mode=memory&cache=shared&_time_format=sqlite")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(schema)
	require.NoError(t, err)
	return db
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newGadgetRepo(t *testing.T, opts ...Option) (*Repository[*gadget], *sql.DB) {
	t.Helper()
	db := openDB(t)
	s, err := sqlstore.New(db, sqlstore.SQLite, gadgetTable)
	require.NoError(t, err)
	repo, err := New[*gadget](s, gadgetFields, logging.Discard(), opts...)
	require.NoError(t, err)
	return repo, db
}

func newMemberRepo(t *testing.T, opts ...Option) *Partitioned[*member] {
	t.Helper()
	db := openDB(t)
	s, err := sqlstore.New(db, sqlstore.SQLite, memberTable)
	require.NoError(t, err)
	repo, err := NewPartitioned[*member](s, memberFields, logging.Discard(), opts...)
	require.NoError(t, err)
	return repo
}
