package query

import (
	"errors"

	"github.com/dmitrijs2005/gophdata/internal/models"
)

var ErrInvalidPage = errors.New("invalid page")

// Sort orders results by one column.
type Sort struct {
	Column     string
	Descending bool
}

func Asc(column string) Sort  { return Sort{Column: column} }
func Desc(column string) Sort { return Sort{Column: column, Descending: true} }

// Page is an offset window. Take <= 0 means no limit.
type Page struct {
	Skip int
	Take int
}

func (p Page) Validate() error {
	if p.Skip < 0 || p.Take < 0 {
		return ErrInvalidPage
	}
	return nil
}

// Query is a complete read request.
type Query struct {
	Where Filter
	Sort  []Sort
	Page  *Page
	// IncludeDeleted lifts the live-only scope. Reads default to live rows.
	IncludeDeleted bool
}

// OrderBy returns the effective ordering. Paginated or sorted queries end
// with id ascending so that pages are disjoint and stable.
func (q Query) OrderBy() []Sort {
	if len(q.Sort) == 0 && q.Page == nil {
		return nil
	}
	out := make([]Sort, 0, len(q.Sort)+1)
	for _, s := range q.Sort {
		out = append(out, s)
		if s.Column == models.ColumnID {
			return out
		}
	}
	return append(out, Asc(models.ColumnID))
}
