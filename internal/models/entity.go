// Package models defines the engine-managed metadata embedded in every
// persisted record.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Entity carries the fields the engine owns. Callers never set them.
type Entity struct {
	// ID is assigned on insert; caller-supplied values are overwritten.
	ID uuid.UUID
	// CreatedAt is set once on insert and never changes.
	CreatedAt time.Time
	// UpdatedAt is set on insert and on every successful update.
	UpdatedAt *time.Time
	// DeletedAt is nil for live rows and set by soft delete.
	DeletedAt *time.Time
}

// Meta gives generic code access to the embedded metadata.
func (e *Entity) Meta() *Entity { return e }

// IsDeleted reports whether the entity has been soft-deleted.
func (e *Entity) IsDeleted() bool { return e.DeletedAt != nil }

// Stamp prepares e for insertion.
func (e *Entity) Stamp(id uuid.UUID, now time.Time) {
	now = now.UTC()
	e.ID = id
	e.CreatedAt = now
	e.UpdatedAt = &now
	e.DeletedAt = nil
}

// Record is implemented by pointers to structs embedding Entity.
type Record interface {
	Meta() *Entity
}

// PartitionedEntity is an Entity scoped to a partition (for example an
// organization). The key is immutable once inserted.
type PartitionedEntity struct {
	Entity
	PartitionKey uuid.UUID
}

func (p *PartitionedEntity) Partition() *PartitionedEntity { return p }

// PartitionedRecord is implemented by pointers to structs embedding
// PartitionedEntity.
type PartitionedRecord interface {
	Record
	Partition() *PartitionedEntity
}

// Column names of the managed fields.
const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
	ColumnDeletedAt = "deleted_at"
)

// ManagedColumns lists the columns the update path never accepts.
var ManagedColumns = []string{ColumnID, ColumnCreatedAt, ColumnUpdatedAt, ColumnDeletedAt}
