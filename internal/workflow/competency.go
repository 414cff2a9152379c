package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/checkin-core/internal/dispatch"
	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
	"github.com/DaDevFox/task-systems/checkin-core/internal/events"
	"github.com/DaDevFox/task-systems/checkin-core/internal/repository"
)

// Assessment is what an assessor fills in after scanning a competency code
type Assessment struct {
	StudentID   string
	StudentName string
	Status      domain.AssessmentStatus
	Notes       string
	EvidenceURL string
}

// Competency lets assessors record a student's result against a competency
type Competency struct {
	repo      repository.CompetencyRepository
	publisher events.Publisher
	logger    *logrus.Logger
	opts      options
}

// NewCompetency creates the competency workflow
func NewCompetency(repo repository.CompetencyRepository, publisher events.Publisher, logger *logrus.Logger, opts ...Option) *Competency {
	publisher, logger = defaults(publisher, logger)
	return &Competency{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		opts:      buildOptions(opts),
	}
}

// Handle only authorises the scan; nothing is stored until RecordAssessment
func (c *Competency) Handle(ctx context.Context, session domain.Session, payload *domain.Payload) (*dispatch.Outcome, error) {
	if err := checkSession(session); err != nil {
		return nil, err
	}
	if !session.IsAssessor() {
		c.logger.WithFields(logrus.Fields{
			"operation": "competency_scan",
			"user_id":   session.UserID,
			"role":      session.Role,
		}).Warn("non-assessor scanned competency code")
		return nil, fmt.Errorf("%w: role %s", ErrNotAssessor, session.Role)
	}

	return &dispatch.Outcome{
		Kind:            domain.KindCompetency,
		Action:          dispatch.ActionAssessmentPending,
		Message:         fmt.Sprintf("Assess %s", payload.DisplayName),
		TargetID:        payload.TargetID,
		TargetName:      payload.DisplayName,
		NeedsAssessment: true,
	}, nil
}

// RecordAssessment stores the assessor's result for the competency in payload
func (c *Competency) RecordAssessment(ctx context.Context, session domain.Session, payload *domain.Payload, assessment Assessment) (*dispatch.Outcome, error) {
	if _, err := c.Handle(ctx, session, payload); err != nil {
		return nil, err
	}

	studentName := strings.TrimSpace(assessment.StudentName)
	if studentName == "" {
		return nil, fmt.Errorf("%w: student name is required", ErrInvalidAssessment)
	}

	status := assessment.Status
	if status == "" {
		status = domain.AssessmentAchieved
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidAssessment, status)
	}

	studentID := strings.TrimSpace(assessment.StudentID)
	if studentID == "" {
		studentID = "student_" + domain.GenerateID()[:8]
	}

	record := &domain.CompetencyRecord{
		UserID:         studentID,
		UserName:       studentName,
		CompetencyID:   payload.TargetID,
		CompetencyName: payload.DisplayName,
		AssessorID:     session.UserID,
		AssessorName:   session.UserName,
		Status:         status,
		AssessmentDate: c.opts.now(),
		Notes:          strings.TrimSpace(assessment.Notes),
		EvidenceURL:    strings.TrimSpace(assessment.EvidenceURL),
	}

	logger := c.logger.WithFields(logrus.Fields{
		"operation":     "record_assessment",
		"competency_id": payload.TargetID,
		"assessor_id":   session.UserID,
		"student_id":    studentID,
	})

	if err := c.repo.SaveCompetencyRecord(ctx, record); err != nil {
		logger.WithError(err).Error("failed to record assessment")
		return nil, fmt.Errorf("failed to record assessment: %w", err)
	}

	logger.WithField("status", status).Info("assessment recorded")
	c.publisher.Publish(ctx, events.NewEvent(events.EventCompetencyAssessed, session.UserID, map[string]interface{}{
		"competency_id": payload.TargetID,
		"student_id":    studentID,
		"status":        string(status),
		"record_id":     record.ID,
	}))

	return &dispatch.Outcome{
		Kind:       domain.KindCompetency,
		Action:     dispatch.ActionAssessmentRecorded,
		Message:    fmt.Sprintf("Competency assessment recorded for %s - %s", studentName, payload.DisplayName),
		TargetID:   payload.TargetID,
		TargetName: payload.DisplayName,
		RecordID:   record.ID,
	}, nil
}
