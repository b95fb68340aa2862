// Package sqlstore implements store.Store over database/sql. One Store
// serves one table described by a Table mapping; it speaks PostgreSQL
// through the pgx driver and SQLite through modernc.org/sqlite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/gophdata/internal/dbx"
	"github.com/dmitrijs2005/gophdata/internal/models"
	"github.com/dmitrijs2005/gophdata/internal/query"
	"github.com/dmitrijs2005/gophdata/internal/store"
	"github.com/dmitrijs2005/gophdata/internal/updates"
)

// Table maps a record type onto a table. Managed columns (id, created_at,
// updated_at, deleted_at) are handled by the store and must not be listed.
type Table[T models.Record] struct {
	Name string
	// Columns are the entity's own columns in the order used by Values
	// and Targets.
	Columns []string
	// PartitionColumn names the partition key column, if any. It must be
	// one of Columns.
	PartitionColumn string
	// New returns an empty record to scan into.
	New func() T
	// Values returns the column values of r, ordered like Columns.
	Values func(r T) []any
	// Targets returns scan destinations into r, ordered like Columns.
	Targets func(r T) []any
}

func (t Table[T]) validate() error {
	switch {
	case t.Name == "":
		return errors.New("table name is empty")
	case t.New == nil || t.Values == nil || t.Targets == nil:
		return fmt.Errorf("table %s: New, Values and Targets are required", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if slices.Contains(models.ManagedColumns, c) {
			return fmt.Errorf("table %s: managed column %q listed", t.Name, c)
		}
		if _, ok := seen[c]; ok {
			return fmt.Errorf("table %s: duplicate column %q", t.Name, c)
		}
		seen[c] = struct{}{}
	}
	if t.PartitionColumn != "" {
		if _, ok := seen[t.PartitionColumn]; !ok {
			return fmt.Errorf("table %s: partition column %q is not a column", t.Name, t.PartitionColumn)
		}
	}
	return nil
}

// allColumns is the select list: managed columns first.
func (t Table[T]) allColumns() []string {
	return append(slices.Clone(models.ManagedColumns), t.Columns...)
}

// Store is a table-bound store over *sql.DB.
type Store[T models.Record] struct {
	ops[T]
	db *sql.DB
}

// New binds table to db. db is owned by the caller and never closed here.
func New[T models.Record](db *sql.DB, dialect Dialect, table Table[T]) (*Store[T], error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	m := newMapping(dialect, table)
	return &Store[T]{ops: ops[T]{exec: db, m: m}, db: db}, nil
}

// Begin starts a transaction detached from ctx cancellation; see dbx.Begin.
func (s *Store[T]) Begin(ctx context.Context) (store.Tx[T], error) {
	tx, err := dbx.Begin(ctx, s.db, nil)
	if err != nil {
		return nil, classify(fmt.Errorf("begin: %w", err))
	}
	return &Tx[T]{ops: ops[T]{exec: tx, m: s.m}, tx: tx}, nil
}

func (s *Store[T]) PartitionColumn() string { return s.m.table.PartitionColumn }

// Tx runs the store operations inside one transaction.
type Tx[T models.Record] struct {
	ops[T]
	tx *sql.Tx
}

func (t *Tx[T]) Commit() error   { return t.tx.Commit() }
func (t *Tx[T]) Rollback() error { return t.tx.Rollback() }

type mapping[T models.Record] struct {
	dialect    Dialect
	table      Table[T]
	columns    map[string]struct{}
	selectList string
	insertHead string
}

func newMapping[T models.Record](d Dialect, t Table[T]) *mapping[T] {
	all := t.allColumns()
	cols := make(map[string]struct{}, len(all))
	quoted := make([]string, len(all))
	for i, c := range all {
		cols[c] = struct{}{}
		quoted[i] = quoteIdent(c)
	}
	list := strings.Join(quoted, ", ")
	return &mapping[T]{
		dialect:    d,
		table:      t,
		columns:    cols,
		selectList: list,
		insertHead: "INSERT INTO " + quoteIdent(t.Name) + " (" + list + ") VALUES ",
	}
}

func (m *mapping[T]) rowsPerInsert() int {
	return max(1, m.dialect.maxParams/len(m.columns))
}

func (m *mapping[T]) builder() *builder { return newBuilder(m.dialect, m.columns) }

// ops implements store.Ops over any dbx.DBTX.
type ops[T models.Record] struct {
	exec dbx.DBTX
	m    *mapping[T]
}

func (o ops[T]) Find(ctx context.Context, q query.Query) ([]T, error) {
	where := q.Where
	if !q.IncludeDeleted {
		where = live(where)
	}

	b := o.m.builder()
	b.write("SELECT ", o.m.selectList, " FROM ", quoteIdent(o.m.table.Name))
	if err := b.where(where); err != nil {
		return nil, err
	}
	if err := b.orderBy(q.OrderBy()); err != nil {
		return nil, err
	}
	if err := b.page(q.Page); err != nil {
		return nil, err
	}

	rows, err := o.exec.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, classify(fmt.Errorf("select from %s: %w", o.m.table.Name, err))
	}
	defer rows.Close()

	result := make([]T, 0)
	for rows.Next() {
		item := o.m.table.New()
		meta := item.Meta()
		dest := append([]any{&meta.ID, &meta.CreatedAt, &meta.UpdatedAt, &meta.DeletedAt}, o.m.table.Targets(item)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", o.m.table.Name, err)
		}
		toUTC(meta)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("select from %s: %w", o.m.table.Name, err))
	}
	return result, nil
}

func (o ops[T]) Count(ctx context.Context, where query.Filter) (int64, error) {
	b := o.m.builder()
	b.write("SELECT COUNT(*) FROM ", quoteIdent(o.m.table.Name))
	if err := b.where(live(where)); err != nil {
		return 0, err
	}
	var n int64
	if err := o.exec.QueryRowContext(ctx, b.String(), b.args...).Scan(&n); err != nil {
		return 0, classify(fmt.Errorf("count %s: %w", o.m.table.Name, err))
	}
	return n, nil
}

// Insert writes rows with multi-row INSERT statements, as many rows per
// statement as the dialect's bind limit allows. Managed fields are taken
// from the records as they are; stamping them is the caller's job. On a
// Store the statements are independent; call it on a Tx when they must
// succeed or fail together.
func (o ops[T]) Insert(ctx context.Context, rows ...T) (int64, error) {
	var total int64
	for chunk := range slices.Chunk(rows, o.m.rowsPerInsert()) {
		n, err := o.insert(ctx, chunk)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (o ops[T]) insert(ctx context.Context, rows []T) (int64, error) {
	b := o.m.builder()
	b.write(o.m.insertHead)
	for i, r := range rows {
		meta := r.Meta()
		values := append([]any{meta.ID, meta.CreatedAt, meta.UpdatedAt, meta.DeletedAt}, o.m.table.Values(r)...)
		if i > 0 {
			b.write(", ")
		}
		b.write("(")
		for j, v := range values {
			if j > 0 {
				b.write(", ")
			}
			b.write(b.arg(v))
		}
		b.write(")")
	}
	return o.execCount(ctx, "insert into", b)
}

func (o ops[T]) Update(ctx context.Context, where query.Filter, plan updates.Plan) (int64, error) {
	b := o.m.builder()
	b.write("UPDATE ", quoteIdent(o.m.table.Name))
	if err := b.set(plan); err != nil {
		return 0, err
	}
	if err := b.where(live(where)); err != nil {
		return 0, err
	}
	return o.execCount(ctx, "update", b)
}

func (o ops[T]) Delete(ctx context.Context, where query.Filter, includeDeleted bool) (int64, error) {
	if !includeDeleted {
		where = live(where)
	}
	b := o.m.builder()
	b.write("DELETE FROM ", quoteIdent(o.m.table.Name))
	if err := b.where(where); err != nil {
		return 0, err
	}
	return o.execCount(ctx, "delete from", b)
}

func (o ops[T]) execCount(ctx context.Context, verb string, b *builder) (int64, error) {
	res, err := o.exec.ExecContext(ctx, b.String(), b.args...)
	if err != nil {
		return 0, classify(fmt.Errorf("%s %s: %w", verb, o.m.table.Name, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func toUTC(e *models.Entity) {
	e.CreatedAt = e.CreatedAt.UTC()
	if e.UpdatedAt != nil {
		t := e.UpdatedAt.UTC()
		e.UpdatedAt = &t
	}
	if e.DeletedAt != nil {
		t := e.DeletedAt.UTC()
		e.DeletedAt = &t
	}
}

// PostgreSQL error codes that are not plain database failures.
const (
	pgDuplicateColumn  = "42701"
	pgDatatypeMismatch = "42804"
	pgQueryCanceled    = "57014"
)

// classify attaches sentinels to driver errors that the repository layer
// reports differently: server-side cancellation and assignments the
// database rejected.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgQueryCanceled:
		return fmt.Errorf("%w: %w", context.Canceled, err)
	case pgDuplicateColumn, pgDatatypeMismatch:
		return fmt.Errorf("%w: %w", store.ErrInvalidAssignment, err)
	}
	return err
}
