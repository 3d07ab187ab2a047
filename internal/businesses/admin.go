package businesses

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citydirectory/directory-backend/internal/moderation"
	"github.com/citydirectory/directory-backend/pkg/enums"
	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
	"github.com/citydirectory/directory-backend/pkg/types"
)

func (s *service) Approve(ctx context.Context, actor Actor, businessID uuid.UUID, in ApproveInput) (*ManagedBusinessDTO, error) {
	visible := true
	if in.Visible != nil {
		visible = *in.Visible
	}
	return s.decide(ctx, actor, businessID, moderation.EventApprove, func(update *moderationUpdate) {
		update.IsVisible = &visible
	})
}

func (s *service) Reject(ctx context.Context, actor Actor, businessID uuid.UUID, reason *string) (*ManagedBusinessDTO, error) {
	reason = trimReason(reason)
	if err := moderation.ValidateReason(reason); err != nil {
		return nil, err
	}
	return s.decide(ctx, actor, businessID, moderation.EventReject, func(update *moderationUpdate) {
		update.RejectionReason = reason
	})
}

// decide applies an admin approve or reject to a pending listing.
func (s *service) decide(ctx context.Context, actor Actor, businessID uuid.UUID, event moderation.BusinessEvent, fill func(*moderationUpdate)) (*ManagedBusinessDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var (
		out        *ManagedBusinessDTO
		transition moderation.Transition
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		business, err := loadBusiness(ctx, repo, businessID)
		if err != nil {
			return err
		}
		transition, err = moderation.TransitionBusiness(&business.Status, event)
		if err != nil {
			return err
		}

		reviewedAt := s.now()
		reviewer := actor.UserID
		update := moderationUpdate{
			Status:     transition.To,
			ReviewedAt: &reviewedAt,
			ReviewedBy: &reviewer,
		}
		fill(&update)

		ok, err := repo.UpdateModeration(ctx, business.ID, business.Status, update)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store moderation decision")
		}
		if !ok {
			return concurrentChange()
		}

		updated, err := loadBusiness(ctx, repo, business.ID)
		if err != nil {
			return err
		}
		if err := s.emitBusiness(ctx, tx, enums.EventBusinessStatusChanged, actor, transition.From, *updated); err != nil {
			return err
		}
		dto := toManagedDTO(*updated, nil)
		out = &dto
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "moderate business")
	}

	s.recordBusiness(ctx, transition, businessID)
	if transition.Effects.Has(moderation.EffectSetVisibility) {
		s.invalidateSearch(ctx, businessID)
	}
	return out, nil
}

// ApproveEdit copies the proposed values onto the live listing and removes the edit.
func (s *service) ApproveEdit(ctx context.Context, actor Actor, businessID uuid.UUID) (*ManagedBusinessDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var (
		out        *ManagedBusinessDTO
		transition moderation.EditTransition
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		business, err := loadBusiness(ctx, repo, businessID)
		if err != nil {
			return err
		}
		edit, err := findEdit(ctx, repo, businessID)
		if err != nil {
			return err
		}
		transition, err = moderation.TransitionEdit(editStatusOf(edit), moderation.EditEventApprove)
		if err != nil {
			return err
		}

		if transition.Effects.Has(moderation.EffectMergeIntoBusiness) {
			ok, err := repo.UpdateFields(ctx, business.ID, business.Status, edit.Changes)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge pending edit")
			}
			if !ok {
				return concurrentChange()
			}
		}
		if transition.Effects.Has(moderation.EffectDeletePendingEdit) {
			ok, err := repo.DeletePendingEdit(ctx, businessID, edit.Status)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete pending edit")
			}
			if !ok {
				return concurrentChange()
			}
		}
		if err := s.emitEdit(ctx, tx, enums.EventPendingEditReviewed, actor, *edit, true); err != nil {
			return err
		}

		updated, err := loadBusiness(ctx, repo, business.ID)
		if err != nil {
			return err
		}
		dto := toManagedDTO(*updated, nil)
		out = &dto
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "approve pending edit")
	}

	s.recordEdit(transition)
	s.invalidateSearch(ctx, businessID)
	return out, nil
}

// RejectEdit keeps the live listing unchanged and leaves the edit visible to
// the owner until dismissed.
func (s *service) RejectEdit(ctx context.Context, actor Actor, businessID uuid.UUID, reason *string) (*ManagedBusinessDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reason = trimReason(reason)
	if err := moderation.ValidateReason(reason); err != nil {
		return nil, err
	}

	var (
		out        *ManagedBusinessDTO
		transition moderation.EditTransition
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		business, err := loadBusiness(ctx, repo, businessID)
		if err != nil {
			return err
		}
		edit, err := findEdit(ctx, repo, businessID)
		if err != nil {
			return err
		}
		transition, err = moderation.TransitionEdit(editStatusOf(edit), moderation.EditEventReject)
		if err != nil {
			return err
		}

		ok, err := repo.ReviewPendingEdit(ctx, businessID, edit.Status, editReview{
			Status:          *transition.To,
			RejectionReason: reason,
			ReviewedAt:      s.now(),
			ReviewedBy:      actor.UserID,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject pending edit")
		}
		if !ok {
			return concurrentChange()
		}

		reviewed, err := findEdit(ctx, repo, businessID)
		if err != nil {
			return err
		}
		if reviewed == nil {
			return concurrentChange()
		}
		if err := s.emitEdit(ctx, tx, enums.EventPendingEditReviewed, actor, *reviewed, false); err != nil {
			return err
		}
		dto := toManagedDTO(*business, reviewed)
		out = &dto
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "reject pending edit")
	}

	s.recordEdit(transition)
	return out, nil
}

// AdminUpdate edits a listing in any status and sets its curation flags.
func (s *service) AdminUpdate(ctx context.Context, actor Actor, businessID uuid.UUID, in AdminUpdateInput) (*ManagedBusinessDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if in.Flags.PinnedOrder != nil && *in.Flags.PinnedOrder < 0 {
		errs := pkgerrors.FieldErrors{}
		errs.Add("pinned_order", "pinned order must be zero or greater")
		return nil, errs.Err()
	}

	var prepared *types.ListingFields
	if in.Fields != nil {
		fields, err := s.prepareFields(ctx, *in.Fields)
		if err != nil {
			return nil, err
		}
		prepared = &fields
	}

	var (
		out        *ManagedBusinessDTO
		transition moderation.Transition
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		business, err := loadBusiness(ctx, repo, businessID)
		if err != nil {
			return err
		}
		transition, err = moderation.TransitionBusiness(&business.Status, moderation.EventAdminEdit)
		if err != nil {
			return err
		}

		if prepared != nil {
			ok, err := repo.UpdateFields(ctx, business.ID, business.Status, *prepared)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update business")
			}
			if !ok {
				return concurrentChange()
			}
		}
		if err := repo.UpdateFlags(ctx, business.ID, in.Flags); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update business flags")
		}

		updated, err := loadBusiness(ctx, repo, business.ID)
		if err != nil {
			return err
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
		return nil, asDependency(err, "admin update business")
	}

	s.recordBusiness(ctx, transition, businessID)
	s.invalidateSearch(ctx, businessID)
	return out, nil
}

func requireAdmin(actor Actor) error {
	if actor.Role != enums.ActorRoleAdmin || actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

func trimReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*reason)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
