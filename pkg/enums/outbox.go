package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateBusiness    OutboxAggregateType = "business"
	AggregatePendingEdit OutboxAggregateType = "pending_edit"
	AggregateReview      OutboxAggregateType = "review"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBusiness,
	AggregatePendingEdit,
	AggregateReview,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventBusinessSubmitted     OutboxEventType = "business_submitted"
	EventBusinessStatusChanged OutboxEventType = "business_status_changed"
	EventPendingEditSubmitted  OutboxEventType = "pending_edit_submitted"
	EventPendingEditReviewed   OutboxEventType = "pending_edit_reviewed"
	EventPendingEditDismissed  OutboxEventType = "pending_edit_dismissed"
	EventReviewCreated         OutboxEventType = "review_created"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBusinessSubmitted,
	EventBusinessStatusChanged,
	EventPendingEditSubmitted,
	EventPendingEditReviewed,
	EventPendingEditDismissed,
	EventReviewCreated,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
