package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/checkin-core/internal/dispatch"
	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
	"github.com/DaDevFox/task-systems/checkin-core/internal/events"
	"github.com/DaDevFox/task-systems/checkin-core/internal/repository"
)

// Participation awards points for taking part in an activity, at most once per activity per day
type Participation struct {
	records   repository.ParticipationRepository
	targets   repository.TargetRepository
	publisher events.Publisher
	logger    *logrus.Logger
	opts      options

	// serialises the check-then-insert so concurrent scans cannot double award
	mu sync.Mutex
}

// NewParticipation creates the participation workflow. targets may be nil, in
// which case every activity awards the default points.
func NewParticipation(records repository.ParticipationRepository, targets repository.TargetRepository, publisher events.Publisher, logger *logrus.Logger, opts ...Option) *Participation {
	publisher, logger = defaults(publisher, logger)
	return &Participation{
		records:   records,
		targets:   targets,
		publisher: publisher,
		logger:    logger,
		opts:      buildOptions(opts),
	}
}

// Handle records participation unless the user already took part in the activity today
func (p *Participation) Handle(ctx context.Context, session domain.Session, payload *domain.Payload) (*dispatch.Outcome, error) {
	if err := checkSession(session); err != nil {
		return nil, err
	}

	logger := p.logger.WithFields(logrus.Fields{
		"operation":   "participation",
		"activity_id": payload.TargetID,
		"user_id":     session.UserID,
	})

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.opts.now()

	existing, err := p.records.ListParticipation(ctx, session.UserID, payload.TargetID)
	if err != nil {
		logger.WithError(err).Error("failed to look up participation")
		return nil, fmt.Errorf("failed to look up participation: %w", err)
	}
	for _, record := range existing {
		if p.sameDay(record.Timestamp, now) {
			logger.Debug("already participated today")
			return nil, fmt.Errorf("%w: %s", ErrAlreadyParticipated, payload.TargetID)
		}
	}

	points := p.points(ctx, payload.TargetID, logger)
	record := &domain.ParticipationRecord{
		UserID:       session.UserID,
		UserName:     session.UserName,
		ActivityID:   payload.TargetID,
		ActivityName: payload.DisplayName,
		Timestamp:    now,
		Points:       points,
	}
	if err := p.records.SaveParticipation(ctx, record); err != nil {
		logger.WithError(err).Error("failed to record participation")
		return nil, fmt.Errorf("failed to record participation: %w", err)
	}

	logger.WithField("points", points).Info("participation recorded")
	p.publisher.Publish(ctx, events.NewEvent(events.EventParticipationRecorded, session.UserID, map[string]interface{}{
		"activity_id": payload.TargetID,
		"record_id":   record.ID,
		"points":      points,
	}))

	return &dispatch.Outcome{
		Kind:       domain.KindParticipation,
		Action:     dispatch.ActionPointsAwarded,
		Message:    fmt.Sprintf("+%d points! You participated in %s", points, payload.DisplayName),
		TargetID:   payload.TargetID,
		TargetName: payload.DisplayName,
		RecordID:   record.ID,
		Points:     points,
	}, nil
}

// TotalPoints sums every point the user has been awarded
func (p *Participation) TotalPoints(ctx context.Context, userID string) (int, error) {
	records, err := p.records.ListParticipation(ctx, userID, "")
	if err != nil {
		return 0, fmt.Errorf("failed to list participation: %w", err)
	}

	total := 0
	for _, record := range records {
		total += record.Points
	}
	return total, nil
}

// points looks up the activity's configured points; missing activities award the default
func (p *Participation) points(ctx context.Context, activityID string, logger *logrus.Entry) int {
	if p.targets == nil {
		return domain.DefaultActivityPoints
	}

	activity, err := p.targets.GetTarget(ctx, domain.KindParticipation, activityID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.WithError(err).Warn("failed to load activity, awarding default points")
		}
		return domain.DefaultActivityPoints
	}
	return activity.AwardedPoints()
}

func (p *Participation) sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(p.opts.location).Date()
	by, bm, bd := b.In(p.opts.location).Date()
	return ay == by && am == bm && ad == bd
}
