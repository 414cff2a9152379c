package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultActivityPoints is awarded when an activity does not specify points
	DefaultActivityPoints = 10
	// DefaultTrainingDuration is the nominal module length in minutes
	DefaultTrainingDuration = 30
	// DefaultEventLength is how long an attendance event runs when no end time is given
	DefaultEventLength = 24 * time.Hour
)

// Target is the stored entity a QR payload references: an attendance event,
// a training module, a participation activity or a competency.
// Kind-specific fields are left zero for the other kinds.
type Target struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// attendance
	Location  string     `json:"location,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// training
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	ContentURL      string `json:"content_url,omitempty"`

	// participation
	Points int `json:"points,omitempty"`

	// competency
	Category string `json:"category,omitempty"`

	// Token of the most recently issued payload for this target
	LastToken    string     `json:"last_token,omitempty"`
	LastIssuedAt *time.Time `json:"last_issued_at,omitempty"`
}

// Validate checks the fields every kind requires, plus the ones the
// admin forms insist on for each kind
func (t *Target) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("target ID cannot be empty")
	}
	if !t.Kind.Valid() {
		return fmt.Errorf("invalid target kind %q", t.Kind)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%s name cannot be empty", t.Kind.TargetNoun())
	}

	switch t.Kind {
	case KindAttendance, KindParticipation:
		if strings.TrimSpace(t.Location) == "" {
			return fmt.Errorf("%s location cannot be empty", t.Kind.TargetNoun())
		}
	case KindTraining:
		if strings.TrimSpace(t.Description) == "" {
			return fmt.Errorf("training module description cannot be empty")
		}
		if t.DurationMinutes < 0 {
			return fmt.Errorf("training module duration cannot be negative")
		}
	case KindCompetency:
		if strings.TrimSpace(t.Category) == "" {
			return fmt.Errorf("competency category cannot be empty")
		}
	}

	if t.Points < 0 {
		return fmt.Errorf("points cannot be negative")
	}

	return nil
}

// AwardedPoints returns the points a participation scan earns
func (t *Target) AwardedPoints() int {
	if t == nil || t.Points <= 0 {
		return DefaultActivityPoints
	}
	return t.Points
}
