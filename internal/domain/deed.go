package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrDeedNotFound is returned when an operation targets an unknown or deleted deed.
	ErrDeedNotFound = errors.New("deed not found")
	// ErrEntryNotFound is returned when an entry cannot be located.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrInvalidCutoffHour is returned for cutoff hours outside 0-23.
	ErrInvalidCutoffHour = errors.New("cutoff hour must be between 0 and 23")
)

// Polarity marks whether a deed's points are rewarding or penalizing.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

// UnitType describes what a deed's raw amount measures.
type UnitType string

const (
	UnitCount    UnitType = "count"
	UnitDuration UnitType = "duration"
	UnitQuantity UnitType = "quantity"
	UnitBoolean  UnitType = "boolean"
	UnitRating   UnitType = "rating"
)

// Deed is a user-defined trackable behavior with a point formula.
type Deed struct {
	ID            string
	TenantID      string
	UserID        string
	Name          string
	Emoji         string
	Color         string
	Category      string
	Polarity      Polarity
	UnitType      UnitType
	UnitLabel     string
	PointsPerUnit float64
	DailyCap      *float64
	Private       bool
	ShowOnStats   bool
	Archived      bool
	SortOrder     int
	CreatedAt     time.Time
}

// Validate checks the fields a caller controls at create/update time.
func (d Deed) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("name is required")
	}
	switch d.Polarity {
	case PolarityPositive, PolarityNegative:
	default:
		return fmt.Errorf("unknown polarity %q", d.Polarity)
	}
	switch d.UnitType {
	case UnitCount, UnitDuration, UnitQuantity, UnitBoolean, UnitRating:
	default:
		return fmt.Errorf("unknown unit type %q", d.UnitType)
	}
	if d.DailyCap != nil && *d.DailyCap < 0 {
		return errors.New("daily cap must be >= 0")
	}
	return nil
}

// Entry is one logged occurrence of a deed. Points are computed once at
// append time and never recomputed, even if earlier entries in the same
// app-day are later deleted.
type Entry struct {
	ID        string
	DeedID    string
	Timestamp time.Time
	Amount    float64
	Points    float64
	Note      string
	CreatedAt time.Time
}

// Preferences holds per-user engine settings.
type Preferences struct {
	CutoffHour int
	UpdatedAt  time.Time
}

// ValidateCutoffHour rejects cutoff hours outside 0-23. Clamping is never
// acceptable here: it would silently shift every day boundary.
func ValidateCutoffHour(hour int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: got %d", ErrInvalidCutoffHour, hour)
	}
	return nil
}
