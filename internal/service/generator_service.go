package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
	"github.com/DaDevFox/task-systems/checkin-core/internal/events"
	"github.com/DaDevFox/task-systems/checkin-core/internal/qrcode"
	"github.com/DaDevFox/task-systems/checkin-core/internal/repository"
	"github.com/DaDevFox/task-systems/checkin-core/internal/security"
)

// ErrInvalidTarget means the admin's form input was rejected before anything was stored
var ErrInvalidTarget = errors.New("invalid target")

// TargetSpec is what an admin fills in to create a new QR target
type TargetSpec struct {
	Kind            domain.Kind
	ID              string
	Name            string
	Description     string
	Location        string
	StartTime       *time.Time
	EndTime         *time.Time
	DurationMinutes int
	ContentURL      string
	Points          int
	Category        string

	// ValidFor bounds how long the issued code is accepted. Zero uses the
	// service default; negative issues a code that never expires.
	ValidFor time.Duration
}

// Issued is a stored target together with the code just issued for it
type Issued struct {
	Target *domain.Target
	Code   *qrcode.Code
}

// GeneratorService creates targets and issues QR codes for them
type GeneratorService struct {
	targets         repository.TargetRepository
	encoder         *qrcode.Encoder
	publisher       events.Publisher
	logger          *logrus.Logger
	defaultValidity time.Duration
	now             func() time.Time
}

// GeneratorOption customises a GeneratorService
type GeneratorOption func(*GeneratorService)

// WithDefaultValidity sets how long codes stay valid when TargetSpec.ValidFor is zero.
// Zero or negative means codes never expire.
func WithDefaultValidity(d time.Duration) GeneratorOption {
	return func(s *GeneratorService) {
		s.defaultValidity = d
	}
}

// WithGeneratorClock overrides the clock used to compute expiry
func WithGeneratorClock(now func() time.Time) GeneratorOption {
	return func(s *GeneratorService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewGeneratorService creates a new generator service
func NewGeneratorService(targets repository.TargetRepository, encoder *qrcode.Encoder, publisher events.Publisher, logger *logrus.Logger, opts ...GeneratorOption) *GeneratorService {
	if logger == nil {
		logger = logrus.New()
	}
	if publisher == nil {
		publisher = events.Discard{}
	}
	if encoder == nil {
		encoder = qrcode.NewEncoder(logger)
	}

	s := &GeneratorService{
		targets:   targets,
		encoder:   encoder,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate validates the admin input, stores the target and issues its first code.
// The target is persisted before encoding so the code always points at a stored entity.
func (s *GeneratorService) Generate(ctx context.Context, session domain.Session, spec TargetSpec) (*Issued, error) {
	logger := s.logger.WithFields(logrus.Fields{
		"operation": "generate_qr",
		"kind":      spec.Kind,
		"name":      spec.Name,
		"user_id":   session.UserID,
	})

	if err := ValidateSpec(spec); err != nil {
		logger.WithError(err).Warn("rejected target input")
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	target := &domain.Target{
		ID:              spec.ID,
		Kind:            spec.Kind,
		Name:            strings.TrimSpace(spec.Name),
		Description:     strings.TrimSpace(spec.Description),
		Active:          true,
		CreatedBy:       session.UserID,
		Location:        strings.TrimSpace(spec.Location),
		StartTime:       spec.StartTime,
		EndTime:         spec.EndTime,
		DurationMinutes: spec.DurationMinutes,
		ContentURL:      strings.TrimSpace(spec.ContentURL),
		Points:          spec.Points,
		Category:        strings.TrimSpace(spec.Category),
	}
	if target.Kind == domain.KindTraining && target.DurationMinutes == 0 {
		target.DurationMinutes = domain.DefaultTrainingDuration
	}
	if target.Kind == domain.KindParticipation && target.Points == 0 {
		target.Points = domain.DefaultActivityPoints
	}

	if err := s.targets.CreateTarget(ctx, target); err != nil {
		logger.WithError(err).Error("failed to store target")
		return nil, fmt.Errorf("failed to store %s: %w", spec.Kind.TargetNoun(), err)
	}

	return s.issue(ctx, session, target, spec.ValidFor, logger)
}

// Regenerate issues a fresh code for an existing target
func (s *GeneratorService) Regenerate(ctx context.Context, session domain.Session, kind domain.Kind, id string, validFor time.Duration) (*Issued, error) {
	logger := s.logger.WithFields(logrus.Fields{
		"operation": "regenerate_qr",
		"kind":      kind,
		"target_id": id,
		"user_id":   session.UserID,
	})

	target, err := s.targets.GetTarget(ctx, kind, id)
	if err != nil {
		logger.WithError(err).Warn("target lookup failed")
		return nil, fmt.Errorf("failed to load %s %s: %w", kind.TargetNoun(), id, err)
	}

	return s.issue(ctx, session, target, validFor, logger)
}

// Targets lists stored targets of a kind
func (s *GeneratorService) Targets(ctx context.Context, kind domain.Kind) ([]*domain.Target, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidTarget, kind)
	}
	return s.targets.ListTargets(ctx, kind)
}

func (s *GeneratorService) issue(ctx context.Context, session domain.Session, target *domain.Target, validFor time.Duration, logger *logrus.Entry) (*Issued, error) {
	code, err := s.encoder.Encode(qrcode.Descriptor{
		Kind:        target.Kind,
		TargetID:    target.ID,
		DisplayName: target.Name,
		ExpiresAt:   s.expiry(validFor),
	})
	if err != nil {
		logger.WithError(err).Error("failed to encode QR code")
		return nil, fmt.Errorf("failed to generate QR code for %s: %w", target.Name, err)
	}

	issuedAt := code.Payload.IssuedTime()
	target.LastToken = code.Payload.Token
	target.LastIssuedAt = &issuedAt
	if err := s.targets.UpdateTarget(ctx, target); err != nil {
		// The code is valid without this bookkeeping; report but do not fail.
		logger.WithError(err).Warn("failed to record issued token")
	}

	logger.WithFields(logrus.Fields{
		"target_id":   target.ID,
		"has_expiry":  code.Payload.ExpiresAt != nil,
		"text_length": len(code.Text),
	}).Info("QR code issued")

	data := map[string]interface{}{
		"kind":      string(target.Kind),
		"target_id": target.ID,
		"name":      target.Name,
	}
	if code.Payload.ExpiresAt != nil {
		data["valid_until"] = *code.Payload.ExpiresAt
	}
	s.publisher.Publish(ctx, events.NewEvent(events.EventCodeGenerated, session.UserID, data))

	return &Issued{Target: target, Code: code}, nil
}

func (s *GeneratorService) expiry(validFor time.Duration) *time.Time {
	if validFor == 0 {
		validFor = s.defaultValidity
	}
	if validFor <= 0 {
		return nil
	}
	expires := s.now().Add(validFor)
	return &expires
}

// ValidateSpec applies the per-kind required fields an admin form enforces
func ValidateSpec(spec TargetSpec) error {
	var errs security.ValidationErrors

	if !spec.Kind.Valid() {
		errs.Add(fmt.Errorf("unknown kind %q", spec.Kind))
		return errs.Err()
	}

	noun := spec.Kind.TargetNoun()
	if spec.ID != "" {
		errs.Add(security.ValidateID(spec.ID))
	}
	errs.Add(security.ValidateName(spec.Name, noun+" name"))
	errs.Add(security.ValidateDescription(spec.Description, "description"))

	switch spec.Kind {
	case domain.KindAttendance, domain.KindParticipation:
		errs.Add(security.ValidateName(spec.Location, noun+" location"))
	case domain.KindTraining:
		if strings.TrimSpace(spec.Description) == "" {
			errs.Add(fmt.Errorf("%s description cannot be empty", noun))
		}
		errs.Add(security.ValidateURL(spec.ContentURL, "content url"))
		errs.Add(security.ValidateRange(spec.DurationMinutes, "duration minutes", 0, 24*60))
	case domain.KindCompetency:
		errs.Add(security.ValidateName(spec.Category, "competency category"))
	}

	errs.Add(security.ValidateRange(spec.Points, "points", 0, security.MaxPoints))

	if spec.StartTime != nil && spec.EndTime != nil && spec.EndTime.Before(*spec.StartTime) {
		errs.Add(fmt.Errorf("end time is before start time"))
	}

	return errs.Err()
}
