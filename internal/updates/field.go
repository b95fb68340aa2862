// Package updates composes partial updates. Each entity declares its
// mutable columns once in a Registry; callers combine typed assignments
// into a Spec, and Finalize turns a Spec into the Plan a store executes.
//
// All assignment values are evaluated against the row as it was before
// the update, so ToField and Increment read pre-update values.
package updates

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophdata/internal/models"
)

// Registry holds the mutable columns of one entity type.
type Registry struct {
	entity  string
	columns []string
}

func NewRegistry(entity string) *Registry {
	return &Registry{entity: entity}
}

func (r *Registry) Entity() string { return r.entity }

// Columns returns the registered columns in definition order.
func (r *Registry) Columns() []string { return slices.Clone(r.columns) }

func (r *Registry) Has(column string) bool { return slices.Contains(r.columns, column) }

// Field is a typed handle on one column of an entity.
type Field[V any] struct {
	reg    *Registry
	column string
}

// Define registers column on reg. It panics on managed, empty or duplicate
// columns; call it from package-level var blocks.
func Define[V any](reg *Registry, column string) Field[V] {
	switch {
	case reg == nil:
		panic("updates: Define with nil registry")
	case column == "":
		panic(fmt.Sprintf("updates: %s: empty column name", reg.entity))
	case slices.Contains(models.ManagedColumns, column):
		panic(fmt.Sprintf("updates: %s: %q is managed by the engine", reg.entity, column))
	case reg.Has(column):
		panic(fmt.Sprintf("updates: %s: %q defined twice", reg.entity, column))
	}
	reg.columns = append(reg.columns, column)
	return Field[V]{reg: reg, column: column}
}

// Managed fields. They can be referenced as a source but never assigned.
var (
	ID        = Field[uuid.UUID]{column: models.ColumnID}
	CreatedAt = Field[time.Time]{column: models.ColumnCreatedAt}
	UpdatedAt = Field[*time.Time]{column: models.ColumnUpdatedAt}
	DeletedAt = Field[*time.Time]{column: models.ColumnDeletedAt}
)

func (f Field[V]) Column() string { return f.column }

// To assigns a literal value.
func (f Field[V]) To(v V) Assignment {
	return Assignment{reg: f.reg, column: f.column, kind: KindLiteral, value: v}
}

// ToField copies the current value of src.
func (f Field[V]) ToField(src Field[V]) Assignment {
	return Assignment{reg: f.reg, column: f.column, kind: KindColumn, source: src.column, sourceReg: src.reg}
}

type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Increment adds delta to the current value of f.
func Increment[V Number](f Field[V], delta V) Assignment {
	return Assignment{reg: f.reg, column: f.column, kind: KindIncrement, value: delta}
}
