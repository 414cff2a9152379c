package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
)

var (
	// ErrWrongKind means a valid payload was scanned in a context expecting another kind
	ErrWrongKind = errors.New("wrong QR code kind")
	// ErrNoWorkflow means no workflow is registered for the payload's kind
	ErrNoWorkflow = errors.New("no workflow registered")
)

// WrongKindError carries the expected and scanned kinds of a rejected payload
type WrongKindError struct {
	Expected domain.Kind
	Got      domain.Kind
}

func (e *WrongKindError) Error() string {
	return fmt.Sprintf("%v: expected %s, got %s", ErrWrongKind, e.Expected, e.Got)
}

// Unwrap lets errors.Is match ErrWrongKind
func (e *WrongKindError) Unwrap() error {
	return ErrWrongKind
}

// Message is the text shown to the person scanning
func (e *WrongKindError) Message() string {
	return fmt.Sprintf("This QR code is not for %s. Please scan %s QR code.", e.Expected, scanNoun(e.Expected))
}

func scanNoun(k domain.Kind) string {
	switch k {
	case domain.KindAttendance:
		return "an attendance"
	case domain.KindTraining:
		return "a training module"
	case domain.KindParticipation:
		return "an activity"
	case domain.KindCompetency:
		return "a competency"
	default:
		return "a valid"
	}
}

// CheckKind rejects a validated payload whose kind differs from the scan context
func CheckKind(expected domain.Kind, p *domain.Payload) error {
	if p == nil {
		return fmt.Errorf("%w: no payload", ErrWrongKind)
	}
	if p.Kind != expected {
		return &WrongKindError{Expected: expected, Got: p.Kind}
	}
	return nil
}

// Action names what a workflow did with a scan
type Action string

const (
	ActionCheckedIn          Action = "checked_in"
	ActionCheckedOut         Action = "checked_out"
	ActionTrainingStarted    Action = "training_started"
	ActionTrainingContinued  Action = "training_continued"
	ActionTrainingCompleted  Action = "training_completed"
	ActionAlreadyCompleted   Action = "already_completed"
	ActionPointsAwarded      Action = "points_awarded"
	ActionAssessmentPending  Action = "assessment_pending"
	ActionAssessmentRecorded Action = "assessment_recorded"
)

// Outcome is the result of a workflow handling an accepted payload
type Outcome struct {
	Kind            domain.Kind `json:"kind"`
	Action          Action      `json:"action"`
	Message         string      `json:"message"`
	TargetID        string      `json:"targetId"`
	TargetName      string      `json:"targetName"`
	RecordID        string      `json:"recordId,omitempty"`
	Points          int         `json:"points,omitempty"`
	NeedsAssessment bool        `json:"needsAssessment,omitempty"`

	Certificate *domain.Certificate `json:"certificate,omitempty"`
}

// Workflow consumes accepted payloads of a single kind
type Workflow interface {
	Handle(ctx context.Context, session domain.Session, payload *domain.Payload) (*Outcome, error)
}

// WorkflowFunc adapts a function to Workflow
type WorkflowFunc func(ctx context.Context, session domain.Session, payload *domain.Payload) (*Outcome, error)

// Handle implements Workflow
func (f WorkflowFunc) Handle(ctx context.Context, session domain.Session, payload *domain.Payload) (*Outcome, error) {
	return f(ctx, session, payload)
}

// Dispatcher routes accepted payloads to the workflow registered for their kind
type Dispatcher struct {
	mu        sync.RWMutex
	workflows map[domain.Kind]Workflow
	logger    *logrus.Logger
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher(logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}

	return &Dispatcher{
		workflows: make(map[domain.Kind]Workflow),
		logger:    logger,
	}
}

// Register installs the workflow for a kind, replacing any previous one
func (d *Dispatcher) Register(kind domain.Kind, workflow Workflow) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.workflows[kind] = workflow
	d.logger.WithField("kind", kind).Debug("workflow registered")
}

// Registered reports whether a kind has a workflow
func (d *Dispatcher) Registered(kind domain.Kind) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.workflows[kind]
	return ok
}

// Dispatch hands the payload to the workflow for its kind
func (d *Dispatcher) Dispatch(ctx context.Context, session domain.Session, payload *domain.Payload) (*Outcome, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: no payload", ErrNoWorkflow)
	}

	d.mu.RLock()
	workflow, ok := d.workflows[payload.Kind]
	d.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w for kind %q", ErrNoWorkflow, payload.Kind)
	}

	d.logger.WithFields(logrus.Fields{
		"operation": "dispatch",
		"kind":      payload.Kind,
		"target_id": payload.TargetID,
		"user_id":   session.UserID,
	}).Debug("dispatching payload")

	return workflow.Handle(ctx, session, payload)
}
