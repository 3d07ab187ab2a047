package moderation

import (
	"fmt"

	"github.com/citydirectory/directory-backend/pkg/enums"
	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
)

// BusinessEvent is something an owner or admin does to a listing.
type BusinessEvent string

const (
	EventSubmit    BusinessEvent = "submit"
	EventApprove   BusinessEvent = "approve"
	EventReject    BusinessEvent = "reject"
	EventResubmit  BusinessEvent = "resubmit"
	EventOwnerEdit BusinessEvent = "owner_edit"
	EventAdminEdit BusinessEvent = "admin_edit"
)

// EditEvent is something an owner or admin does to a pending edit.
type EditEvent string

const (
	EditEventSubmit  EditEvent = "submit_edit"
	EditEventApprove EditEvent = "approve_edit"
	EditEventReject  EditEvent = "reject_edit"
	EditEventDismiss EditEvent = "dismiss_edit"
)

// Effect is a persistence step the caller must perform to complete a transition.
type Effect string

const (
	EffectCreateBusiness    Effect = "create_business"
	EffectApplyFields       Effect = "apply_fields"
	EffectSetVisibility     Effect = "set_visibility"
	EffectStoreRejection    Effect = "store_rejection"
	EffectClearRejection    Effect = "clear_rejection"
	EffectUpsertPendingEdit Effect = "upsert_pending_edit"
	EffectStoreEditReview   Effect = "store_edit_review"
	EffectMergeIntoBusiness Effect = "merge_into_business"
	EffectDeletePendingEdit Effect = "delete_pending_edit"
)

type Effects []Effect

func (e Effects) Has(effect Effect) bool {
	for _, candidate := range e {
		if candidate == effect {
			return true
		}
	}
	return false
}

// Transition is the outcome of a business event. From is nil for a listing
// that does not exist yet.
type Transition struct {
	From    *enums.BusinessStatus
	Event   BusinessEvent
	To      enums.BusinessStatus
	Effects Effects
}

// StatusChanged is false for edits that leave the listing where it was.
func (t Transition) StatusChanged() bool {
	return t.From == nil || *t.From != t.To
}

// EditTransition is the outcome of a pending edit event. From is nil when no
// edit row exists; To is nil when the row is removed.
type EditTransition struct {
	From    *enums.PendingEditStatus
	Event   EditEvent
	To      *enums.PendingEditStatus
	Effects Effects
}

// Removed reports whether the edit row goes away.
func (t EditTransition) Removed() bool {
	return t.To == nil
}

// TransitionBusiness resolves the next listing status for event. Owner edits
// on an approved listing keep it approved and route the change into a pending
// edit; the live row is only touched by admin events.
func TransitionBusiness(current *enums.BusinessStatus, event BusinessEvent) (Transition, error) {
	if current == nil {
		if event != EventSubmit {
			return Transition{}, illegal("business", "none", string(event))
		}
		return Transition{
			Event:   event,
			To:      enums.BusinessStatusPending,
			Effects: Effects{EffectCreateBusiness},
		}, nil
	}
	if !current.IsValid() {
		return Transition{}, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown business status %q", *current))
	}

	from := *current
	out := Transition{From: current, Event: event}

	switch {
	case event == EventAdminEdit:
		out.To = from
		out.Effects = Effects{EffectApplyFields}
	case from == enums.BusinessStatusPending && event == EventApprove:
		out.To = enums.BusinessStatusApproved
		out.Effects = Effects{EffectSetVisibility}
	case from == enums.BusinessStatusPending && event == EventReject:
		out.To = enums.BusinessStatusRejected
		out.Effects = Effects{EffectStoreRejection}
	case from == enums.BusinessStatusPending && event == EventOwnerEdit:
		// nothing public yet, so the pending row is edited in place
		out.To = enums.BusinessStatusPending
		out.Effects = Effects{EffectApplyFields}
	case from == enums.BusinessStatusRejected && event == EventResubmit:
		out.To = enums.BusinessStatusPending
		out.Effects = Effects{EffectApplyFields, EffectClearRejection}
	case from == enums.BusinessStatusApproved && event == EventOwnerEdit:
		out.To = enums.BusinessStatusApproved
		out.Effects = Effects{EffectUpsertPendingEdit}
	default:
		return Transition{}, illegal("business", string(from), string(event))
	}
	return out, nil
}

// TransitionEdit resolves the next pending edit status for event. A new
// submission replaces whatever edit row exists, pending or rejected.
func TransitionEdit(current *enums.PendingEditStatus, event EditEvent) (EditTransition, error) {
	if current != nil && !current.IsValid() {
		return EditTransition{}, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown pending edit status %q", *current))
	}

	from := "none"
	if current != nil {
		from = string(*current)
	}
	out := EditTransition{From: current, Event: event}

	switch {
	case event == EditEventSubmit:
		out.To = editStatus(enums.PendingEditStatusPending)
		out.Effects = Effects{EffectUpsertPendingEdit}
	case current == nil:
		return EditTransition{}, pkgerrors.New(pkgerrors.CodeNotFound, "pending edit not found")
	case *current == enums.PendingEditStatusPending && event == EditEventApprove:
		out.Effects = Effects{EffectMergeIntoBusiness, EffectDeletePendingEdit}
	case *current == enums.PendingEditStatusPending && event == EditEventReject:
		out.To = editStatus(enums.PendingEditStatusRejected)
		out.Effects = Effects{EffectStoreEditReview}
	case *current == enums.PendingEditStatusRejected && event == EditEventDismiss:
		out.Effects = Effects{EffectDeletePendingEdit}
	default:
		return EditTransition{}, illegal("pending edit", from, string(event))
	}
	return out, nil
}

func editStatus(s enums.PendingEditStatus) *enums.PendingEditStatus {
	return &s
}

func illegal(entity, from, event string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("%s cannot %s from %s", entity, event, from)).
		WithDetails(map[string]string{"entity": entity, "from": from, "event": event})
}
