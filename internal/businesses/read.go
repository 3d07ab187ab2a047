package businesses

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/citydirectory/directory-backend/internal/search"
	"github.com/citydirectory/directory-backend/pkg/db/models"
	"github.com/citydirectory/directory-backend/pkg/enums"
	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
	"github.com/citydirectory/directory-backend/pkg/pagination"
	"github.com/citydirectory/directory-backend/pkg/visibility"
)

// QueueKind selects which moderation queue to page through.
type QueueKind string

const (
	QueueBusinesses QueueKind = "businesses"
	QueueEdits      QueueKind = "edits"
)

// QueueParams pages the moderation queue oldest first.
type QueueParams struct {
	Kind   QueueKind
	Limit  int
	Cursor string
}

func (s *service) GetPublic(ctx context.Context, businessID uuid.UUID) (*search.Listing, error) {
	business, err := loadBusiness(ctx, s.repo, businessID)
	if err != nil {
		return nil, err
	}
	if err := visibility.EnsureBusinessVisible(business, s.includeTest); err != nil {
		return nil, err
	}
	ratings, err := s.ratings.RatingsFor(ctx, []uuid.UUID{business.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ratings")
	}
	listing := search.NewListing(*business, ratings[business.ID])
	return &listing, nil
}

// GetManaged returns the full listing to its owner or any admin.
func (s *service) GetManaged(ctx context.Context, actor Actor, businessID uuid.UUID) (*ManagedBusinessDTO, error) {
	business, err := loadBusiness(ctx, s.repo, businessID)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.ActorRoleAdmin {
		if err := ensureOwner(actor, business); err != nil {
			return nil, err
		}
	}
	edit, err := findEdit(ctx, s.repo, business.ID)
	if err != nil {
		return nil, err
	}
	dto := toManagedDTO(*business, edit)
	return &dto, nil
}

func (s *service) ListOwned(ctx context.Context, actor Actor) ([]ManagedBusinessDTO, error) {
	if actor.Role != enums.ActorRoleOwner || actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "owner role required")
	}
	rows, err := s.repo.ListOwned(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list owned businesses")
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	edits, err := s.repo.PendingEditsFor(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending edits")
	}

	out := make([]ManagedBusinessDTO, 0, len(rows))
	for _, row := range rows {
		var edit *models.PendingEdit
		if e, ok := edits[row.ID]; ok {
			edit = &e
		}
		out = append(out, toManagedDTO(row, edit))
	}
	return out, nil
}

func (s *service) ListModerationQueue(ctx context.Context, params QueueParams) (*QueueResult, error) {
	kind := QueueKind(strings.ToLower(strings.TrimSpace(string(params.Kind))))
	if kind == "" {
		kind = QueueBusinesses
	}
	if kind != QueueBusinesses && kind != QueueEdits {
		errs := pkgerrors.FieldErrors{}
		errs.Add("kind", "kind must be businesses or edits")
		return nil, errs.Err()
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.LimitWithBuffer(params.Limit)

	result := &QueueResult{
		Businesses: []ManagedBusinessDTO{},
		Edits:      []PendingEditDTO{},
	}
	if kind == QueueEdits {
		rows, err := s.repo.ListPendingEdits(ctx, limit, cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending edits")
		}
		rows, next := pagination.Trim(rows, params.Limit, func(e models.PendingEdit) pagination.Cursor {
			return pagination.Cursor{At: e.UpdatedAt, ID: e.ID}
		})
		for _, row := range rows {
			result.Edits = append(result.Edits, toPendingEditDTO(row))
		}
		result.Cursor = next
		return result, nil
	}

	rows, err := s.repo.ListByStatus(ctx, enums.BusinessStatusPending, limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending businesses")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(b models.Business) pagination.Cursor {
		return pagination.Cursor{At: b.CreatedAt, ID: b.ID}
	})
	for _, row := range rows {
		result.Businesses = append(result.Businesses, toManagedDTO(row, nil))
	}
	result.Cursor = next
	return result, nil
}
