package updates

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/gophdata/internal/models"
)

var (
	ErrEmptySpec      = errors.New("update has no assignments")
	ErrManagedField   = errors.New("field is managed by the engine")
	ErrUnknownField   = errors.New("field does not belong to entity")
	ErrProtectedField = errors.New("field cannot be updated")
)

// Kind tells a store how to produce the new value.
type Kind int

const (
	KindLiteral Kind = iota
	KindColumn
	KindIncrement
)

// Assignment sets one column.
type Assignment struct {
	reg       *Registry
	column    string
	kind      Kind
	value     any
	source    string
	sourceReg *Registry
}

func (a Assignment) Column() string { return a.column }
func (a Assignment) Kind() Kind      { return a.kind }

// Value is the literal for KindLiteral and the delta for KindIncrement.
func (a Assignment) Value() any { return a.value }

// Source is the column read by KindColumn.
func (a Assignment) Source() string { return a.source }

// Spec is an ordered list of caller assignments.
type Spec struct {
	assignments []Assignment
}

func Of(assignments ...Assignment) Spec {
	return Spec{assignments: slices.Clone(assignments)}
}

// With returns a copy of s extended with more assignments.
func (s Spec) With(assignments ...Assignment) Spec {
	return Spec{assignments: append(slices.Clone(s.assignments), assignments...)}
}

func (s Spec) Len() int { return len(s.assignments) }

// Plan is a validated spec plus the engine assignments.
type Plan struct {
	assignments []Assignment
}

func (p Plan) Assignments() []Assignment { return slices.Clone(p.assignments) }

// Validate checks s against reg without building a plan.
func Validate(s Spec, reg *Registry, protected ...string) error {
	if len(s.assignments) == 0 {
		return ErrEmptySpec
	}
	for _, a := range s.assignments {
		if err := check(a, reg, protected); err != nil {
			return err
		}
	}
	return nil
}

func check(a Assignment, reg *Registry, protected []string) error {
	if slices.Contains(models.ManagedColumns, a.column) {
		return fmt.Errorf("%w: %s", ErrManagedField, a.column)
	}
	if a.reg == nil || a.reg != reg || !reg.Has(a.column) {
		return fmt.Errorf("%w: %q on %s", ErrUnknownField, a.column, reg.Entity())
	}
	if slices.Contains(protected, a.column) {
		return fmt.Errorf("%w: %s", ErrProtectedField, a.column)
	}
	if a.kind == KindColumn {
		managed := a.sourceReg == nil && slices.Contains(models.ManagedColumns, a.source)
		if !managed && (a.sourceReg != reg || !reg.Has(a.source)) {
			return fmt.Errorf("%w: source %q on %s", ErrUnknownField, a.source, reg.Entity())
		}
	}
	return nil
}

// Finalize validates s, merges it (the last assignment to a column wins,
// first-appearance order is kept) and appends the engine assignments
// updated_at = now, created_at = created_at, deleted_at = NULL.
func Finalize(s Spec, reg *Registry, now time.Time, protected ...string) (Plan, error) {
	if err := Validate(s, reg, protected...); err != nil {
		return Plan{}, err
	}

	merged := make([]Assignment, 0, len(s.assignments)+3)
	index := make(map[string]int, len(s.assignments))
	for _, a := range s.assignments {
		if i, ok := index[a.column]; ok {
			merged[i] = a
			continue
		}
		index[a.column] = len(merged)
		merged = append(merged, a)
	}

	now = now.UTC()
	merged = append(merged,
		UpdatedAt.To(&now),
		CreatedAt.ToField(CreatedAt),
		DeletedAt.To(nil),
	)
	return Plan{assignments: merged}, nil
}

// SoftDeletePlan marks rows deleted at now.
func SoftDeletePlan(now time.Time) Plan {
	now = now.UTC()
	return Plan{assignments: []Assignment{
		DeletedAt.To(&now),
		UpdatedAt.To(&now),
	}}
}
