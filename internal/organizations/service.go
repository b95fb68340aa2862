package organizations

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophdata/internal/cleanup"
	"github.com/dmitrijs2005/gophdata/internal/query"
	"github.com/dmitrijs2005/gophdata/internal/results"
	"github.com/dmitrijs2005/gophdata/internal/updates"
)

type Service struct {
	repos *Repositories
}

func NewService(repos *Repositories) *Service {
	return &Service{repos: repos}
}

func (s *Service) AddOrganization(ctx context.Context, name string) results.Result[*Organization] {
	name = strings.TrimSpace(name)
	if name == "" {
		return results.FromError[*Organization](results.InsertFailed("organization name is required"))
	}
	return s.repos.Organizations.Insert(ctx, &Organization{Name: name})
}

func (s *Service) GetOrganizationByID(ctx context.Context, id uuid.UUID) results.Result[*Organization] {
	return s.repos.Organizations.GetByID(ctx, id)
}

func (s *Service) GetOrganizationByName(ctx context.Context, name string) results.Result[*Organization] {
	return s.repos.Organizations.GetByFilter(ctx, query.Eq("name", strings.TrimSpace(name)))
}

func (s *Service) ListOrganizations(ctx context.Context, page query.Page) results.Result[[]*Organization] {
	return s.repos.Organizations.GetMany(ctx, page, query.Asc("name"))
}

func (s *Service) UpdateOrganizationName(ctx context.Context, id uuid.UUID, name string) results.Result[results.Empty] {
	name = strings.TrimSpace(name)
	if name == "" {
		return results.FromError[results.Empty](results.UpdateFailed("organization name is required"))
	}
	return s.repos.Organizations.Update(ctx, id, updates.Of(OrganizationName.To(name)))
}

// DeleteOrganization soft-deletes the live members of the organization and
// then the organization itself. The two steps are separate statements: a
// failure in the first leaves everything as it was, a failure in the
// second leaves a live organization without members. Either way calling
// it again finishes the job.
func (s *Service) DeleteOrganization(ctx context.Context, id uuid.UUID) results.Result[results.Empty] {
	members := s.repos.Members.SoftDeleteWhere(ctx, id, nil)
	if members.HasError() && members.Err().Code() != results.CodeBulkDeleteFailed {
		return results.Propagate[results.Empty](members)
	}
	return s.repos.Organizations.SoftDelete(ctx, id)
}

// AddMember adds email to a live organization.
func (s *Service) AddMember(ctx context.Context, orgID uuid.UUID, email, role string) results.Result[*Member] {
	if org := s.repos.Organizations.GetByID(ctx, orgID); org.HasError() {
		return results.Propagate[*Member](org)
	}
	if !validRole(role) {
		return results.FromError[*Member](results.InsertFailed("unknown role " + role))
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return results.FromError[*Member](results.InsertFailed("member email is required"))
	}
	return s.repos.Members.Insert(ctx, orgID, &Member{Email: email, Role: role})
}

func (s *Service) ListMembers(ctx context.Context, orgID uuid.UUID, page query.Page) results.Result[[]*Member] {
	return s.repos.Members.GetMany(ctx, orgID, page, query.Asc("email"))
}

func (s *Service) ChangeRole(ctx context.Context, orgID, memberID uuid.UUID, role string) results.Result[results.Empty] {
	if !validRole(role) {
		return results.FromError[results.Empty](results.UpdateFailed("unknown role " + role))
	}
	return s.repos.Members.Update(ctx, orgID, memberID, updates.Of(MemberRole.To(role)))
}

func (s *Service) RemoveMember(ctx context.Context, orgID, memberID uuid.UUID) results.Result[results.Empty] {
	return s.repos.Members.SoftDelete(ctx, orgID, memberID)
}

// OrganizationGuard keeps an organization until none of its member rows
// remain, live or soft-deleted.
func (s *Service) OrganizationGuard() cleanup.Guard[*Organization] {
	return func(ctx context.Context, org *Organization) results.Result[bool] {
		left := s.repos.Members.Find(ctx, org.ID, query.Query{
			Page:           &query.Page{Take: 1},
			IncludeDeleted: true,
		})
		if left.HasError() {
			return results.Propagate[bool](left)
		}
		return results.Ok(len(left.Value()) == 0)
	}
}

func validRole(role string) bool {
	return slices.Contains([]string{RoleOwner, RoleAdmin, RoleMember}, role)
}
