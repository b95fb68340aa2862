package organizations

import (
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophdata/internal/logging"
	"github.com/dmitrijs2005/gophdata/internal/repository"
	"github.com/dmitrijs2005/gophdata/internal/sqlstore"
)

// Repositories vends the repositories of this package bound to one
// database handle.
type Repositories struct {
	Organizations *repository.Repository[*Organization]
	Members       *repository.Partitioned[*Member]
	// AllMembers spans every organization. It backs maintenance jobs and
	// must not be exposed to tenant-facing code.
	AllMembers *repository.Repository[*Member]
}

func NewRepositories(db *sql.DB, dialect sqlstore.Dialect, logger logging.Logger, opts ...repository.Option) (*Repositories, error) {
	orgStore, err := sqlstore.New(db, dialect, OrganizationTable)
	if err != nil {
		return nil, fmt.Errorf("organizations store: %w", err)
	}
	memberStore, err := sqlstore.New(db, dialect, MemberTable)
	if err != nil {
		return nil, fmt.Errorf("members store: %w", err)
	}

	orgs, err := repository.New[*Organization](orgStore, OrganizationFields, logger, opts...)
	if err != nil {
		return nil, err
	}
	members, err := repository.NewPartitioned[*Member](memberStore, MemberFields, logger, opts...)
	if err != nil {
		return nil, err
	}
	all, err := repository.New[*Member](memberStore, MemberFields, logger, opts...)
	if err != nil {
		return nil, err
	}
	return &Repositories{Organizations: orgs, Members: members, AllMembers: all}, nil
}
