package sqlstore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophdata/internal/models"
	"github.com/dmitrijs2005/gophdata/internal/query"
	"github.com/dmitrijs2005/gophdata/internal/store"
	"github.com/dmitrijs2005/gophdata/internal/updates"
)

var (
	ErrUnknownColumn = errors.New("unknown column")
	ErrBadFilter     = errors.New("malformed filter")
)

// builder accumulates SQL text and positional arguments.
type builder struct {
	dialect Dialect
	columns map[string]struct{}
	sb      strings.Builder
	args    []any
}

func newBuilder(d Dialect, columns map[string]struct{}) *builder {
	return &builder{dialect: d, columns: columns}
}

func (b *builder) String() string { return b.sb.String() }

func (b *builder) write(parts ...string) {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, normalize(v))
	return b.dialect.placeholder(len(b.args))
}

func (b *builder) column(name string) (string, error) {
	if _, ok := b.columns[name]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return quoteIdent(name), nil
}

// normalize stores times in UTC and turns nil pointers into NULL.
func normalize(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC()
	}
	return v
}

// where writes " WHERE ..." for f. A nil filter writes nothing.
func (b *builder) where(f query.Filter) error {
	if f == nil {
		return nil
	}
	b.write(" WHERE ")
	return b.filter(f)
}

func (b *builder) filter(f query.Filter) error {
	switch f := f.(type) {
	case query.Cond:
		return b.cond(f)
	case query.And:
		return b.group(f, " AND ", "1=1")
	case query.Or:
		return b.group(f, " OR ", "1=0")
	case query.Not:
		if f.Filter == nil {
			b.write("1=0")
			return nil
		}
		b.write("NOT (")
		if err := b.filter(f.Filter); err != nil {
			return err
		}
		b.write(")")
		return nil
	case nil:
		b.write("1=1")
		return nil
	}
	return fmt.Errorf("%w: %T", ErrBadFilter, f)
}

func (b *builder) group(members []query.Filter, sep, empty string) error {
	if len(members) == 0 {
		b.write(empty)
		return nil
	}
	for i, m := range members {
		if i > 0 {
			b.write(sep)
		}
		b.write("(")
		if err := b.filter(m); err != nil {
			return err
		}
		b.write(")")
	}
	return nil
}

func (b *builder) cond(c query.Cond) error {
	col, err := b.column(c.Column)
	if err != nil {
		return err
	}

	switch c.Op {
	case query.OpIsNull, query.OpNotNull:
		b.write(col, " ", string(c.Op))
	case query.OpEq, query.OpNe:
		if normalize(c.Value) == nil {
			if c.Op == query.OpEq {
				b.write(col, " IS NULL")
			} else {
				b.write(col, " IS NOT NULL")
			}
			return nil
		}
		b.write(col, " ", string(c.Op), " ", b.arg(c.Value))
	case query.OpLt, query.OpLte, query.OpGt, query.OpGte, query.OpLike:
		b.write(col, " ", string(c.Op), " ", b.arg(c.Value))
	case query.OpIn:
		values, ok := c.Value.([]any)
		if !ok {
			return fmt.Errorf("%w: IN expects a list, got %T", ErrBadFilter, c.Value)
		}
		if len(values) == 0 {
			b.write("1=0")
			return nil
		}
		b.write(col, " IN (")
		for i, v := range values {
			if i > 0 {
				b.write(", ")
			}
			b.write(b.arg(v))
		}
		b.write(")")
	default:
		return fmt.Errorf("%w: operator %q", ErrBadFilter, c.Op)
	}
	return nil
}

func (b *builder) orderBy(sorts []query.Sort) error {
	for i, s := range sorts {
		col, err := b.column(s.Column)
		if err != nil {
			return err
		}
		if i == 0 {
			b.write(" ORDER BY ")
		} else {
			b.write(", ")
		}
		b.write(col)
		if s.Descending {
			b.write(" DESC")
		} else {
			b.write(" ASC")
		}
	}
	return nil
}

func (b *builder) page(p *query.Page) error {
	if p == nil {
		return nil
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Take > 0 {
		b.write(" LIMIT ", b.arg(p.Take))
	} else {
		b.write(" LIMIT ", b.dialect.noLimit)
	}
	b.write(" OFFSET ", b.arg(p.Skip))
	return nil
}

// set writes the SET list of an UPDATE.
func (b *builder) set(plan updates.Plan) error {
	assignments := plan.Assignments()
	if len(assignments) == 0 {
		return fmt.Errorf("%w: empty plan", store.ErrInvalidAssignment)
	}
	b.write(" SET ")
	for i, a := range assignments {
		col, err := b.column(a.Column())
		if err != nil {
			return fmt.Errorf("%w: %w", store.ErrInvalidAssignment, err)
		}
		if i > 0 {
			b.write(", ")
		}
		b.write(col, " = ")
		switch a.Kind() {
		case updates.KindLiteral:
			b.write(b.arg(a.Value()))
		case updates.KindColumn:
			src, err := b.column(a.Source())
			if err != nil {
				return fmt.Errorf("%w: %w", store.ErrInvalidAssignment, err)
			}
			b.write(src)
		case updates.KindIncrement:
			b.write(col, " + ", b.arg(a.Value()))
		default:
			return fmt.Errorf("%w: kind %d", store.ErrInvalidAssignment, a.Kind())
		}
	}
	return nil
}

// live restricts f to rows that are not soft-deleted.
func live(f query.Filter) query.Filter {
	return query.All(f, query.IsNull(models.ColumnDeletedAt))
}
