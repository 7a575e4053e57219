package enums

import "fmt"

// CrushStatus maps to the status column of the crushes table.
// The only legal transition is pending -> matched.
type CrushStatus string

const (
	CrushStatusPending CrushStatus = "pending"
	CrushStatusMatched CrushStatus = "matched"
)

var validCrushStatuses = []CrushStatus{
	CrushStatusPending,
	CrushStatusMatched,
}

// String implements fmt.Stringer.
func (s CrushStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known crush status.
func (s CrushStatus) IsValid() bool {
	for _, candidate := range validCrushStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s CrushStatus) CanTransitionTo(next CrushStatus) bool {
	return s == CrushStatusPending && next == CrushStatusMatched
}

// ParseCrushStatus converts raw input into CrushStatus.
func ParseCrushStatus(value string) (CrushStatus, error) {
	for _, candidate := range validCrushStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid crush status %q", value)
}
