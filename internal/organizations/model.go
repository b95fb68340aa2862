// Package organizations is the tenant directory: organizations and the
// members that belong to each of them. Members are partitioned by
// organization id.
package organizations

import (
	"github.com/dmitrijs2005/gophdata/internal/models"
	"github.com/dmitrijs2005/gophdata/internal/sqlstore"
	"github.com/dmitrijs2005/gophdata/internal/updates"
)

type Organization struct {
	models.Entity
	Name string
}

type Member struct {
	models.PartitionedEntity
	Email string
	Role  string
}

// Roles a member can have.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

var (
	OrganizationFields = updates.NewRegistry("organization")
	OrganizationName   = updates.Define[string](OrganizationFields, "name")

	MemberFields = updates.NewRegistry("member")
	MemberEmail  = updates.Define[string](MemberFields, "email")
	MemberRole   = updates.Define[string](MemberFields, "role")
)

var (
	_ models.Record            = (*Organization)(nil)
	_ models.PartitionedRecord = (*Member)(nil)
)

var OrganizationTable = sqlstore.Table[*Organization]{
	Name:    "organizations",
	Columns: []string{"name"},
	New:     func() *Organization { return &Organization{} },
	Values:  func(o *Organization) []any { return []any{o.Name} },
	Targets: func(o *Organization) []any { return []any{&o.Name} },
}

var MemberTable = sqlstore.Table[*Member]{
	Name:            "members",
	Columns:         []string{"org_id", "email", "role"},
	PartitionColumn: "org_id",
	New:             func() *Member { return &Member{} },
	Values:          func(m *Member) []any { return []any{m.PartitionKey, m.Email, m.Role} },
	Targets:         func(m *Member) []any { return []any{&m.PartitionKey, &m.Email, &m.Role} },
}
