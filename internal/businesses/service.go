package businesses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citydirectory/directory-backend/internal/moderation"
	"github.com/citydirectory/directory-backend/internal/search"
	"github.com/citydirectory/directory-backend/pkg/db/models"
	"github.com/citydirectory/directory-backend/pkg/enums"
	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
	"github.com/citydirectory/directory-backend/pkg/logger"
	"github.com/citydirectory/directory-backend/pkg/metrics"
	"github.com/citydirectory/directory-backend/pkg/outbox"
	"github.com/citydirectory/directory-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type searchInvalidator interface {
	BumpSearchGeneration(ctx context.Context) error
}

type taxonomyLookup interface {
	CategoryByRef(ctx context.Context, ref string) (*models.Category, error)
	SubcategoryByRef(ctx context.Context, categoryID uuid.UUID, ref string) (*models.Subcategory, error)
	CityByRef(ctx context.Context, ref string) (*models.City, error)
	NeighborhoodByRef(ctx context.Context, cityID uuid.UUID, ref string) (*models.Neighborhood, error)
}

type ratingsSource interface {
	RatingsFor(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]search.RatingSummary, error)
}

// Actor is the authenticated caller of an owner or admin operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

func (a Actor) ref() *outbox.ActorRef {
	return &outbox.ActorRef{UserID: a.UserID, Role: a.Role.String()}
}

// FlagsInput carries admin-only listing flags; nil leaves a flag unchanged.
type FlagsInput struct {
	IsVisible   *bool `json:"is_visible,omitempty"`
	IsVerified  *bool `json:"is_verified,omitempty"`
	IsPinned    *bool `json:"is_pinned,omitempty"`
	PinnedOrder *int  `json:"pinned_order,omitempty"`
	IsTest      *bool `json:"is_test,omitempty"`
}

// AdminUpdateInput edits a listing directly, bypassing the pending edit flow.
type AdminUpdateInput struct {
	Fields *types.ListingFields `json:"fields,omitempty"`
	Flags  FlagsInput           `json:"flags"`
}

// ApproveInput controls whether an approved listing goes live immediately.
// Visible defaults to true.
type ApproveInput struct {
	Visible *bool `json:"visible,omitempty"`
}

// Service runs the listing moderation workflow.
type Service interface {
	Submit(ctx context.Context, actor Actor, fields types.ListingFields) (*ManagedBusinessDTO, error)
	UpdateOwned(ctx context.Context, actor Actor, businessID uuid.UUID, fields types.ListingFields) (*ManagedBusinessDTO, error)
	Resubmit(ctx context.Context, actor Actor, businessID uuid.UUID, fields types.ListingFields) (*ManagedBusinessDTO, error)
	ProposeEdit(ctx context.Context, actor Actor, businessID uuid.UUID, fields types.ListingFields) (*ManagedBusinessDTO, error)
	DismissEdit(ctx context.Context, actor Actor, businessID uuid.UUID) error

	Approve(ctx context.Context, actor Actor, businessID uuid.UUID, in ApproveInput) (*ManagedBusinessDTO, error)
	Reject(ctx context.Context, actor Actor, businessID uuid.UUID, reason *string) (*ManagedBusinessDTO, error)
	ApproveEdit(ctx context.Context, actor Actor, businessID uuid.UUID) (*ManagedBusinessDTO, error)
	RejectEdit(ctx context.Context, actor Actor, businessID uuid.UUID, reason *string) (*ManagedBusinessDTO, error)
	AdminUpdate(ctx context.Context, actor Actor, businessID uuid.UUID, in AdminUpdateInput) (*ManagedBusinessDTO, error)

	GetPublic(ctx context.Context, businessID uuid.UUID) (*search.Listing, error)
	GetManaged(ctx context.Context, actor Actor, businessID uuid.UUID) (*ManagedBusinessDTO, error)
	ListOwned(ctx context.Context, actor Actor) ([]ManagedBusinessDTO, error)
	ListModerationQueue(ctx context.Context, params QueueParams) (*QueueResult, error)
}

type ServiceParams struct {
	Repo        Repository
	Tx          txRunner
	Outbox      outboxPublisher
	Taxonomy    taxonomyLookup
	Ratings     ratingsSource
	Invalidator searchInvalidator
	Metrics     *metrics.ModerationMetrics
	Logger      *logger.Logger
	IncludeTest bool
	Now         func() time.Time
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	taxonomy    taxonomyLookup
	ratings     ratingsSource
	invalidator searchInvalidator
	metrics     *metrics.ModerationMetrics
	logg        *logger.Logger
	includeTest bool
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("businesses repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Taxonomy == nil {
		return nil, fmt.Errorf("taxonomy lookup required")
	}
	if params.Ratings == nil {
		return nil, fmt.Errorf("ratings source required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Now == nil {
		params.Now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:        params.Repo,
		tx:          params.Tx,
		outbox:      params.Outbox,
		taxonomy:    params.Taxonomy,
		ratings:     params.Ratings,
		invalidator: params.Invalidator,
		metrics:     params.Metrics,
		logg:        params.Logger,
		includeTest: params.IncludeTest,
		now:         params.Now,
	}, nil
}

func (s *service) Submit(ctx context.Context, actor Actor, fields types.ListingFields) (*ManagedBusinessDTO, error) {
	if !actor.Role.IsValid() || actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "actor required")
	}
	prepared, err := s.prepareFields(ctx, fields)
	if err != nil {
		return nil, err
	}
	transition, err := moderation.TransitionBusiness(nil, moderation.EventSubmit)
	if err != nil {
		return nil, err
	}

	business := &models.Business{Status: transition.To}
	business.ApplyFields(prepared)
	if actor.Role == enums.ActorRoleOwner {
		owner := actor.UserID
		business.OwnerID = &owner
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, business); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create business")
		}
		return s.emitBusiness(ctx, tx, enums.EventBusinessSubmitted, actor, nil, *business)
	})
	if err != nil {
		return nil, asDependency(err, "submit business")
	}

	s.recordBusiness(ctx, transition, business.ID)
	dto := toManagedDTO(*business, nil)
	return &dto, nil
}

// UpdateOwned routes an owner's change by the listing's status: pending rows
// are edited in place, rejected rows are resubmitted and approved rows get a
// pending edit.
func (s *service) UpdateOwned(ctx context.Context, actor Actor, businessID uuid.UUID, fields types.ListingFields) (*ManagedBusinessDTO, error) {
	return s.ownerChange(ctx, actor, businessID, fields, nil)
}

func (s *service) Resubmit(ctx context.Context, actor Actor, businessID uuid.UUID, fields types.ListingFields) (*ManagedBusinessDTO, error) {
	event := moderation.EventResubmit
	return s.ownerChange(ctx, actor, businessID, fields, &event)
}

func (s *service) ProposeEdit(ctx context.Context, actor Actor, businessID uuid.UUID, fields types.ListingFields) (*ManagedBusinessDTO, error) {
	event := moderation.EventOwnerEdit
	return s.ownerChange(ctx, actor, businessID, fields, &event)
}

func (s *service) ownerChange(ctx context.Context, actor Actor, businessID uuid.UUID, fields types.ListingFields, forced *moderation.BusinessEvent) (*ManagedBusinessDTO, error) {
	prepared, err := s.prepareFields(ctx, fields)
	if err != nil {
		return nil, err
	}

	var (
		out            *ManagedBusinessDTO
		transition     moderation.Transition
		editTransition *moderation.EditTransition
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		business, err := loadBusiness(ctx, repo, businessID)
		if err != nil {
			return err
		}
		if err := ensureOwner(actor, business); err != nil {
			return err
		}

		event := ownerEventFor(business.Status)
		if forced != nil {
			event = *forced
		}
		transition, err = moderation.TransitionBusiness(&business.Status, event)
		if err != nil {
			return err
		}

		switch {
		case transition.Effects.Has(moderation.EffectUpsertPendingEdit):
			edit, et, err := s.upsertEdit(ctx, tx, repo, actor, business.ID, prepared)
			if err != nil {
				return err
			}
			editTransition = &et
			dto := toManagedDTO(*business, edit)
			out = &dto
			return nil
		case transition.Effects.Has(moderation.EffectClearRejection):
			ok, err := repo.UpdateModeration(ctx, business.ID, business.Status, moderationUpdate{
				Status: transition.To,
				Fields: &prepared,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resubmit business")
			}
			if !ok {
				return concurrentChange()
			}
		case transition.Effects.Has(moderation.EffectApplyFields):
			ok, err := repo.UpdateFields(ctx, business.ID, business.Status, prepared)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update business")
			}
			if !ok {
				return concurrentChange()
			}
		}

		updated, err := loadBusiness(ctx, repo, business.ID)
		if err != nil {
			return err
		}
		if transition.StatusChanged() {
			if err := s.emitBusiness(ctx, tx, enums.EventBusinessStatusChanged, actor, transition.From, *updated); err != nil {
				return err
			}
		}
		edit, err := findEdit(ctx, repo, business.ID)
		if err != nil {
			return err
		}
		dto := toManagedDTO(*updated, edit)
		out = &dto
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "update business")
	}

	s.recordBusiness(ctx, transition, businessID)
	if editTransition != nil {
		s.recordEdit(*editTransition)
	}
	return out, nil
}

// upsertEdit stores prepared as the business's only pending edit and leaves
// the live row alone.
func (s *service) upsertEdit(ctx context.Context, tx *gorm.DB, repo Repository, actor Actor, businessID uuid.UUID, prepared types.ListingFields) (*models.PendingEdit, moderation.EditTransition, error) {
	existing, err := findEdit(ctx, repo, businessID)
	if err != nil {
		return nil, moderation.EditTransition{}, err
	}
	var current *enums.PendingEditStatus
	if existing != nil {
		current = &existing.Status
	}
	transition, err := moderation.TransitionEdit(current, moderation.EditEventSubmit)
	if err != nil {
		return nil, moderation.EditTransition{}, err
	}

	edit := &models.PendingEdit{
		BusinessID:  businessID,
		SubmittedBy: actor.UserID,
		Changes:     prepared,
		Status:      *transition.To,
	}
	if err := repo.UpsertPendingEdit(ctx, edit); err != nil {
		return nil, moderation.EditTransition{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store pending edit")
	}
	stored, err := findEdit(ctx, repo, businessID)
	if err != nil {
		return nil, moderation.EditTransition{}, err
	}
	if stored == nil {
		return nil, moderation.EditTransition{}, pkgerrors.New(pkgerrors.CodeInternal, "pending edit missing after upsert")
	}

	if err := s.emitEdit(ctx, tx, enums.EventPendingEditSubmitted, actor, *stored, false); err != nil {
		return nil, moderation.EditTransition{}, err
	}
	return stored, transition, nil
}

func (s *service) DismissEdit(ctx context.Context, actor Actor, businessID uuid.UUID) error {
	var transition moderation.EditTransition
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		business, err := loadBusiness(ctx, repo, businessID)
		if err != nil {
			return err
		}
		if err := ensureOwner(actor, business); err != nil {
			return err
		}
		edit, err := findEdit(ctx, repo, businessID)
		if err != nil {
			return err
		}
		transition, err = moderation.TransitionEdit(editStatusOf(edit), moderation.EditEventDismiss)
		if err != nil {
			return err
		}
		ok, err := repo.DeletePendingEdit(ctx, businessID, edit.Status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete pending edit")
		}
		if !ok {
			return concurrentChange()
		}
		return s.emitEdit(ctx, tx, enums.EventPendingEditDismissed, actor, *edit, false)
	})
	if err != nil {
		return asDependency(err, "dismiss pending edit")
	}
	s.recordEdit(transition)
	return nil
}

// prepareFields normalizes the listing, runs the submission guard and checks
// that the subcategory and neighborhood hang under the chosen parents.
func (s *service) prepareFields(ctx context.Context, fields types.ListingFields) (types.ListingFields, error) {
	prepared := fields.Normalized()
	if err := moderation.ValidateListing(prepared); err != nil {
		return types.ListingFields{}, err
	}

	errs := pkgerrors.FieldErrors{}
	if _, err := s.taxonomy.CategoryByRef(ctx, prepared.CategoryID.String()); err != nil {
		if !isNotFound(err) {
			return types.ListingFields{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup category")
		}
		errs.Add(moderation.FieldCategory, "category does not exist")
	} else if prepared.SubcategoryID != nil {
		if _, err := s.taxonomy.SubcategoryByRef(ctx, prepared.CategoryID, prepared.SubcategoryID.String()); err != nil {
			if !isNotFound(err) {
				return types.ListingFields{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subcategory")
			}
			errs.Add(moderation.FieldSubcategory, "subcategory does not belong to the category")
		}
	}

	if _, err := s.taxonomy.CityByRef(ctx, prepared.CityID.String()); err != nil {
		if !isNotFound(err) {
			return types.ListingFields{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup city")
		}
		errs.Add(moderation.FieldCity, "city does not exist")
	} else if prepared.NeighborhoodID != nil {
		if _, err := s.taxonomy.NeighborhoodByRef(ctx, prepared.CityID, prepared.NeighborhoodID.String()); err != nil {
			if !isNotFound(err) {
				return types.ListingFields{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup neighborhood")
			}
			errs.Add(moderation.FieldNeighborhood, "neighborhood does not belong to the city")
		}
	}

	if err := errs.Err(); err != nil {
		return types.ListingFields{}, err
	}
	return prepared, nil
}

func (s *service) emitBusiness(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, actor Actor, previous *enums.BusinessStatus, b models.Business) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateBusiness,
		AggregateID:   b.ID,
		Actor:         actor.ref(),
		Data: outbox.BusinessStatusChangedEvent{
			BusinessID:      b.ID,
			OwnerID:         b.OwnerID,
			PreviousStatus:  previous,
			Status:          b.Status,
			IsVisible:       b.IsVisible,
			RejectionReason: b.RejectionReason,
			ChangedAt:       s.now(),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit business event")
	}
	return nil
}

func (s *service) emitEdit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, actor Actor, edit models.PendingEdit, merged bool) error {
	var status *enums.PendingEditStatus
	if eventType != enums.EventPendingEditDismissed && !merged {
		current := edit.Status
		status = &current
	}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePendingEdit,
		AggregateID:   edit.ID,
		Actor:         actor.ref(),
		Data: outbox.PendingEditEvent{
			PendingEditID:   edit.ID,
			BusinessID:      edit.BusinessID,
			SubmittedBy:     edit.SubmittedBy,
			Status:          status,
			Merged:          merged,
			RejectionReason: edit.RejectionReason,
			ChangedAt:       s.now(),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit pending edit event")
	}
	return nil
}

func (s *service) recordBusiness(ctx context.Context, transition moderation.Transition, businessID uuid.UUID) {
	s.metrics.IncTransition("business", string(transition.Event))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"business_id": businessID.String(),
		"event":       string(transition.Event),
		"status":      transition.To.String(),
	})
	s.logg.Info(logCtx, "business transition applied")
}

func (s *service) recordEdit(transition moderation.EditTransition) {
	s.metrics.IncTransition("pending_edit", string(transition.Event))
}

// invalidateSearch drops cached result sets after a change public readers can see.
func (s *service) invalidateSearch(ctx context.Context, businessID uuid.UUID) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.BumpSearchGeneration(ctx); err != nil {
		s.logg.Error(s.logg.WithBusinessID(ctx, businessID.String()), "search cache invalidation failed", err)
	}
}

func ownerEventFor(status enums.BusinessStatus) moderation.BusinessEvent {
	if status == enums.BusinessStatusRejected {
		return moderation.EventResubmit
	}
	return moderation.EventOwnerEdit
}

func ensureOwner(actor Actor, business *models.Business) error {
	if actor.Role != enums.ActorRoleOwner || business.OwnerID == nil || *business.OwnerID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "business is not owned by the caller")
	}
	return nil
}

func loadBusiness(ctx context.Context, repo Repository, id uuid.UUID) (*models.Business, error) {
	business, err := repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load business")
	}
	return business, nil
}

// findEdit returns nil when the business carries no edit.
func findEdit(ctx context.Context, repo Repository, businessID uuid.UUID) (*models.PendingEdit, error) {
	edit, err := repo.FindPendingEdit(ctx, businessID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending edit")
	}
	return edit, nil
}

func editStatusOf(edit *models.PendingEdit) *enums.PendingEditStatus {
	if edit == nil {
		return nil
	}
	return &edit.Status
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func concurrentChange() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "business was changed by another request")
}

// asDependency keeps typed errors and wraps raw transaction failures.
func asDependency(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
