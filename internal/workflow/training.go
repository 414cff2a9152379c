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

// CompletionScore is recorded when a module is completed without a quiz result
const CompletionScore = 100

// Training starts, resumes and completes training modules. Scans and
// completions are serialised so a user never gets two progress records.
type Training struct {
	mu           sync.Mutex
	repo         repository.TrainingRepository
	certificates CertificateIssuer
	publisher    events.Publisher
	logger       *logrus.Logger
	opts         options
}

// NewTraining creates the training workflow. With a nil issuer completions
// carry no certificate.
func NewTraining(repo repository.TrainingRepository, certificates CertificateIssuer, publisher events.Publisher, logger *logrus.Logger, opts ...Option) *Training {
	publisher, logger = defaults(publisher, logger)
	return &Training{
		repo:         repo,
		certificates: certificates,
		publisher:    publisher,
		logger:       logger,
		opts:         buildOptions(opts),
	}
}

// Handle starts the module on first scan and resumes it afterwards; completed modules are left alone
func (t *Training) Handle(ctx context.Context, session domain.Session, payload *domain.Payload) (*dispatch.Outcome, error) {
	if err := checkSession(session); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	logger := t.logger.WithFields(logrus.Fields{
		"operation": "training_scan",
		"module_id": payload.TargetID,
		"user_id":   session.UserID,
	})
	now := t.opts.now()

	outcome := &dispatch.Outcome{
		Kind:       domain.KindTraining,
		TargetID:   payload.TargetID,
		TargetName: payload.DisplayName,
	}

	progress, err := t.repo.GetProgress(ctx, session.UserID, payload.TargetID)
	switch {
	case err == nil && progress.Status == domain.ProgressCompleted:
		outcome.Action = dispatch.ActionAlreadyCompleted
		outcome.RecordID = progress.ID
		outcome.Message = fmt.Sprintf("You've already completed %s. View your certificate!", payload.DisplayName)
		outcome.Certificate = t.certificate(ctx, logger, progress)
		return outcome, nil

	case err == nil:
		progress.Status = domain.ProgressInProgress
		progress.LastScanAt = &now
		if err := t.repo.SaveProgress(ctx, progress); err != nil {
			logger.WithError(err).Error("failed to resume training")
			return nil, fmt.Errorf("failed to resume training: %w", err)
		}

		logger.Info("training resumed")
		outcome.Action = dispatch.ActionTrainingContinued
		outcome.RecordID = progress.ID
		outcome.Message = fmt.Sprintf("Continuing %s. Access your training materials.", payload.DisplayName)
		return outcome, nil

	case !errors.Is(err, repository.ErrNotFound):
		logger.WithError(err).Error("failed to look up training progress")
		return nil, fmt.Errorf("failed to look up training progress: %w", err)
	}

	progress = &domain.TrainingProgress{
		UserID:     session.UserID,
		UserName:   session.UserName,
		ModuleID:   payload.TargetID,
		ModuleName: payload.DisplayName,
		Status:     domain.ProgressInProgress,
		StartedAt:  &now,
		LastScanAt: &now,
	}
	if err := t.repo.SaveProgress(ctx, progress); err != nil {
		logger.WithError(err).Error("failed to start training")
		return nil, fmt.Errorf("failed to start training: %w", err)
	}

	logger.Info("training started")
	t.publisher.Publish(ctx, events.NewEvent(events.EventTrainingStarted, session.UserID, map[string]interface{}{
		"module_id": payload.TargetID,
		"record_id": progress.ID,
	}))

	outcome.Action = dispatch.ActionTrainingStarted
	outcome.RecordID = progress.ID
	outcome.Message = fmt.Sprintf("Started %s. Good luck!", payload.DisplayName)
	return outcome, nil
}

// Complete marks the user's progress on a module as completed. Time spent is
// counted in whole minutes from the most recent scan of the module.
func (t *Training) Complete(ctx context.Context, session domain.Session, moduleID string) (*dispatch.Outcome, error) {
	if err := checkSession(session); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	logger := t.logger.WithFields(logrus.Fields{
		"operation": "training_complete",
		"module_id": moduleID,
		"user_id":   session.UserID,
	})

	progress, err := t.repo.GetProgress(ctx, session.UserID, moduleID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotStarted, moduleID)
	}
	if err != nil {
		logger.WithError(err).Error("failed to look up training progress")
		return nil, fmt.Errorf("failed to look up training progress: %w", err)
	}

	outcome := &dispatch.Outcome{
		Kind:       domain.KindTraining,
		TargetID:   moduleID,
		TargetName: progress.ModuleName,
		RecordID:   progress.ID,
	}

	if progress.Status == domain.ProgressCompleted {
		outcome.Action = dispatch.ActionAlreadyCompleted
		outcome.Message = fmt.Sprintf("You've already completed %s. View your certificate!", progress.ModuleName)
		outcome.Certificate = t.certificate(ctx, logger, progress)
		return outcome, nil
	}

	now := t.opts.now()
	since := progress.LastScanAt
	if since == nil {
		since = progress.StartedAt
	}
	spent := 0
	if since != nil && now.After(*since) {
		spent = int(now.Sub(*since).Minutes())
	}
	score := CompletionScore

	progress.Status = domain.ProgressCompleted
	progress.CompletedAt = &now
	progress.TimeSpentMinutes = &spent
	progress.Score = &score

	if err := t.repo.SaveProgress(ctx, progress); err != nil {
		logger.WithError(err).Error("failed to complete training")
		return nil, fmt.Errorf("failed to complete training: %w", err)
	}

	logger.WithField("time_spent_minutes", spent).Info("training completed")
	t.publisher.Publish(ctx, events.NewEvent(events.EventTrainingCompleted, session.UserID, map[string]interface{}{
		"module_id":          moduleID,
		"record_id":          progress.ID,
		"time_spent_minutes": spent,
		"score":              score,
	}))

	outcome.Action = dispatch.ActionTrainingCompleted
	outcome.Message = "Training completed! Certificate is ready."
	outcome.Certificate = t.certificate(ctx, logger, progress)
	return outcome, nil
}

// certificate issues or fetches the certificate for completed progress. A
// failure is logged and does not undo the completion.
func (t *Training) certificate(ctx context.Context, logger *logrus.Entry, progress *domain.TrainingProgress) *domain.Certificate {
	if t.certificates == nil {
		return nil
	}

	certificate, err := t.certificates.Issue(ctx, progress)
	if err != nil {
		logger.WithError(err).Error("failed to issue certificate")
		return nil
	}
	return certificate
}
