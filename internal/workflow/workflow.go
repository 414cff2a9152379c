// Package workflow holds the per-kind handlers that turn an accepted scan into
// stored records: attendance check-in/out, training progress, participation
// points and competency assessment.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
	"github.com/DaDevFox/task-systems/checkin-core/internal/events"
)

var (
	ErrInvalidSession      = errors.New("invalid session")
	ErrNotAssessor         = errors.New("only assessors can scan competency QR codes")
	ErrAlreadyParticipated = errors.New("already participated today")
	ErrNotStarted          = errors.New("training not started")
	ErrInvalidAssessment   = errors.New("invalid assessment")
)

// UserMessage returns the text shown to the scanner for workflow errors,
// or "" if err is not a workflow error
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotAssessor):
		return "Only assessors can scan competency QR codes. Please contact your supervisor."
	case errors.Is(err, ErrAlreadyParticipated):
		return "You have already participated in this activity today!"
	case errors.Is(err, ErrNotStarted):
		return "Scan the training module QR code before completing it."
	case errors.Is(err, ErrInvalidSession):
		return "Please set your name before scanning."
	case errors.Is(err, ErrInvalidAssessment):
		return "Please fill in all required fields"
	default:
		return ""
	}
}

type options struct {
	now      func() time.Time
	location *time.Location
}

// Option customises a workflow
type Option func(*options)

// WithClock overrides the wall clock used to stamp records
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLocation sets the time zone that defines a calendar day for participation limits
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func defaults(publisher events.Publisher, logger *logrus.Logger) (events.Publisher, *logrus.Logger) {
	if publisher == nil {
		publisher = events.Discard{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return publisher, logger
}

func checkSession(session domain.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return nil
}
