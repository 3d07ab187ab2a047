package enums

import "fmt"

// BusinessStatus maps to the business_status enum in Postgres.
type BusinessStatus string

const (
	BusinessStatusPending  BusinessStatus = "pending"
	BusinessStatusApproved BusinessStatus = "approved"
	BusinessStatusRejected BusinessStatus = "rejected"
)

var validBusinessStatuses = []BusinessStatus{
	BusinessStatusPending,
	BusinessStatusApproved,
	BusinessStatusRejected,
}

// String implements fmt.Stringer.
func (s BusinessStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BusinessStatus.
func (s BusinessStatus) IsValid() bool {
	for _, candidate := range validBusinessStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsPublic reports whether listings in this status may reach public surfaces.
func (s BusinessStatus) IsPublic() bool {
	return s == BusinessStatusApproved
}

// ParseBusinessStatus converts raw input into a BusinessStatus.
func ParseBusinessStatus(value string) (BusinessStatus, error) {
	for _, candidate := range validBusinessStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid business status %q", value)
}

// PendingEditStatus maps to the pending_edit_status enum in Postgres. Approved
// edits are merged and removed, so there is no approved value.
type PendingEditStatus string

const (
	PendingEditStatusPending  PendingEditStatus = "PENDING"
	PendingEditStatusRejected PendingEditStatus = "REJECTED"
)

var validPendingEditStatuses = []PendingEditStatus{
	PendingEditStatusPending,
	PendingEditStatusRejected,
}

// String implements fmt.Stringer.
func (s PendingEditStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PendingEditStatus.
func (s PendingEditStatus) IsValid() bool {
	for _, candidate := range validPendingEditStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePendingEditStatus converts raw input into a PendingEditStatus.
func ParsePendingEditStatus(value string) (PendingEditStatus, error) {
	for _, candidate := range validPendingEditStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pending edit status %q", value)
}
