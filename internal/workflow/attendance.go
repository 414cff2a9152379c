package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/checkin-core/internal/dispatch"
	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
	"github.com/DaDevFox/task-systems/checkin-core/internal/events"
	"github.com/DaDevFox/task-systems/checkin-core/internal/repository"
)

// Attendance toggles a user between checked in and checked out of an event
type Attendance struct {
	repo      repository.AttendanceRepository
	publisher events.Publisher
	logger    *logrus.Logger
	opts      options

	mu sync.Mutex
}

// NewAttendance creates the attendance workflow
func NewAttendance(repo repository.AttendanceRepository, publisher events.Publisher, logger *logrus.Logger, opts ...Option) *Attendance {
	publisher, logger = defaults(publisher, logger)
	return &Attendance{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		opts:      buildOptions(opts),
	}
}

// Handle checks the user out if they have an open check-in for the event, otherwise checks them in
func (a *Attendance) Handle(ctx context.Context, session domain.Session, payload *domain.Payload) (*dispatch.Outcome, error) {
	if err := checkSession(session); err != nil {
		return nil, err
	}

	logger := a.logger.WithFields(logrus.Fields{
		"operation": "attendance",
		"event_id":  payload.TargetID,
		"user_id":   session.UserID,
	})

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.opts.now()

	open, err := a.repo.FindOpenAttendance(ctx, session.UserID, payload.TargetID)
	switch {
	case err == nil:
		open.CheckOutTime = &now
		open.Status = domain.AttendanceCheckedOut
		if err := a.repo.SaveAttendance(ctx, open); err != nil {
			logger.WithError(err).Error("failed to check out")
			return nil, fmt.Errorf("failed to check out: %w", err)
		}

		logger.Info("checked out")
		a.publisher.Publish(ctx, events.NewEvent(events.EventAttendanceCheckedOut, session.UserID, map[string]interface{}{
			"event_id":  payload.TargetID,
			"record_id": open.ID,
		}))
		return &dispatch.Outcome{
			Kind:       domain.KindAttendance,
			Action:     dispatch.ActionCheckedOut,
			Message:    fmt.Sprintf("Successfully checked out from %s", payload.DisplayName),
			TargetID:   payload.TargetID,
			TargetName: payload.DisplayName,
			RecordID:   open.ID,
		}, nil

	case errors.Is(err, repository.ErrNotFound):
		// fall through to check-in

	default:
		logger.WithError(err).Error("failed to look up attendance")
		return nil, fmt.Errorf("failed to look up attendance: %w", err)
	}

	record := &domain.AttendanceRecord{
		UserID:      session.UserID,
		UserName:    session.UserName,
		EventID:     payload.TargetID,
		EventName:   payload.DisplayName,
		CheckInTime: now,
		Status:      domain.AttendanceCheckedIn,
	}
	if err := a.repo.SaveAttendance(ctx, record); err != nil {
		logger.WithError(err).Error("failed to check in")
		return nil, fmt.Errorf("failed to check in: %w", err)
	}

	logger.Info("checked in")
	a.publisher.Publish(ctx, events.NewEvent(events.EventAttendanceCheckedIn, session.UserID, map[string]interface{}{
		"event_id":  payload.TargetID,
		"record_id": record.ID,
	}))
	return &dispatch.Outcome{
		Kind:       domain.KindAttendance,
		Action:     dispatch.ActionCheckedIn,
		Message:    fmt.Sprintf("Successfully checked in to %s", payload.DisplayName),
		TargetID:   payload.TargetID,
		TargetName: payload.DisplayName,
		RecordID:   record.ID,
	}, nil
}
