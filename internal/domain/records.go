package domain

import "time"

// AttendanceStatus is the state of a single attendance record
type AttendanceStatus string

const (
	AttendanceCheckedIn  AttendanceStatus = "checked-in"
	AttendanceCheckedOut AttendanceStatus = "checked-out"
)

// AttendanceRecord tracks one check-in/check-out cycle at an event
type AttendanceRecord struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	UserName     string           `json:"user_name"`
	EventID      string           `json:"event_id"`
	EventName    string           `json:"event_name"`
	CheckInTime  time.Time        `json:"check_in_time"`
	CheckOutTime *time.Time       `json:"check_out_time,omitempty"`
	Location     string           `json:"location,omitempty"`
	Status       AttendanceStatus `json:"status"`
}

// ProgressStatus is how far a user is through a training module
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not-started"
	ProgressInProgress ProgressStatus = "in-progress"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressFailed     ProgressStatus = "failed"
)

// TrainingProgress is a user's progress record for one training module
type TrainingProgress struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	UserName         string         `json:"user_name,omitempty"`
	ModuleID         string         `json:"module_id"`
	ModuleName       string         `json:"module_name"`
	Status           ProgressStatus `json:"status"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	LastScanAt       *time.Time     `json:"last_scan_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	Score            *int           `json:"score,omitempty"`
	TimeSpentMinutes *int           `json:"time_spent_minutes,omitempty"`
}

// ParticipationRecord is one awarded participation in an activity
type ParticipationRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserName     string    `json:"user_name"`
	ActivityID   string    `json:"activity_id"`
	ActivityName string    `json:"activity_name"`
	Timestamp    time.Time `json:"timestamp"`
	Points       int       `json:"points"`
}

// AssessmentStatus is the outcome an assessor records for a competency
type AssessmentStatus string

const (
	AssessmentAchieved         AssessmentStatus = "achieved"
	AssessmentInProgress       AssessmentStatus = "in-progress"
	AssessmentNeedsImprovement AssessmentStatus = "needs-improvement"
)

// Valid reports whether s is a recognised assessment status
func (s AssessmentStatus) Valid() bool {
	switch s {
	case AssessmentAchieved, AssessmentInProgress, AssessmentNeedsImprovement:
		return true
	default:
		return false
	}
}

// CompetencyRecord is an assessor's judgement of a student against a competency
type CompetencyRecord struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	UserName       string           `json:"user_name"`
	CompetencyID   string           `json:"competency_id"`
	CompetencyName string           `json:"competency_name"`
	AssessorID     string           `json:"assessor_id"`
	AssessorName   string           `json:"assessor_name"`
	Status         AssessmentStatus `json:"status"`
	AssessmentDate time.Time        `json:"assessment_date"`
	Notes          string           `json:"notes,omitempty"`
	EvidenceURL    string           `json:"evidence_url,omitempty"`
}
