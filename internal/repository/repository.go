package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
)

// Repository maps domain types onto a Store. It implements every
// *Repository interface in this package.
type Repository struct {
	store  Store
	logger *logrus.Logger
	now    func() time.Time
}

// NewRepository wraps a store
func NewRepository(store Store, logger *logrus.Logger) *Repository {
	if logger == nil {
		logger = logrus.New()
	}

	return &Repository{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Store returns the underlying document store
func (r *Repository) Store() Store {
	return r.store
}

// Close closes the underlying store
func (r *Repository) Close() error {
	return r.store.Close()
}

// CreateTarget stores a new target, assigning an ID if it has none
func (r *Repository) CreateTarget(ctx context.Context, target *domain.Target) error {
	if target == nil {
		return ErrInvalidDocument
	}
	if target.ID == "" {
		target.ID = domain.GenerateID()
	}

	if err := target.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	collection, err := TargetCollection(target.Kind)
	if err != nil {
		return err
	}

	var existing domain.Target
	err = r.store.Get(ctx, collection, target.ID, &existing)
	if err == nil {
		return fmt.Errorf("%w: %s with ID %s", ErrAlreadyExists, target.Kind.TargetNoun(), target.ID)
	}
	if !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "failed to check if target exists")
	}

	now := r.now()
	target.CreatedAt = now
	target.UpdatedAt = now

	if err := r.store.Put(ctx, collection, target.ID, target); err != nil {
		return errors.Wrap(err, "failed to create target")
	}

	r.logger.WithFields(logrus.Fields{
		"kind":      target.Kind,
		"target_id": target.ID,
		"name":      target.Name,
	}).Debug("target created")

	return nil
}

// UpdateTarget replaces an existing target
func (r *Repository) UpdateTarget(ctx context.Context, target *domain.Target) error {
	if target == nil {
		return ErrInvalidDocument
	}
	if err := target.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	existing, err := r.GetTarget(ctx, target.Kind, target.ID)
	if err != nil {
		return err
	}

	target.CreatedAt = existing.CreatedAt
	target.UpdatedAt = r.now()

	collection, _ := TargetCollection(target.Kind)
	if err := r.store.Put(ctx, collection, target.ID, target); err != nil {
		return errors.Wrap(err, "failed to update target")
	}

	return nil
}

// GetTarget loads a target of the given kind
func (r *Repository) GetTarget(ctx context.Context, kind domain.Kind, id string) (*domain.Target, error) {
	collection, err := TargetCollection(kind)
	if err != nil {
		return nil, err
	}

	var target domain.Target
	if err := r.store.Get(ctx, collection, id, &target); err != nil {
		return nil, err
	}

	return &target, nil
}

// ListTargets returns all targets of a kind, oldest first
func (r *Repository) ListTargets(ctx context.Context, kind domain.Kind) ([]*domain.Target, error) {
	collection, err := TargetCollection(kind)
	if err != nil {
		return nil, err
	}

	targets, err := scanAll[domain.Target](ctx, r.store, collection, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s targets", kind)
	}

	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].CreatedAt.Before(targets[j].CreatedAt)
	})

	return targets, nil
}

// SaveAttendance creates or replaces an attendance record
func (r *Repository) SaveAttendance(ctx context.Context, record *domain.AttendanceRecord) error {
	if record == nil || record.UserID == "" || record.EventID == "" {
		return fmt.Errorf("%w: attendance record needs user and event", ErrInvalidDocument)
	}
	if record.ID == "" {
		record.ID = domain.GenerateID()
	}

	return r.store.Put(ctx, CollectionAttendance, record.ID, record)
}

// FindOpenAttendance returns the user's checked-in record for an event, if any
func (r *Repository) FindOpenAttendance(ctx context.Context, userID, eventID string) (*domain.AttendanceRecord, error) {
	records, err := scanAll(ctx, r.store, CollectionAttendance, func(a *domain.AttendanceRecord) bool {
		return a.UserID == userID && a.EventID == eventID && a.Status == domain.AttendanceCheckedIn
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search attendance")
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no open attendance for %s at %s", ErrNotFound, userID, eventID)
	}

	// Most recent check-in wins if an earlier one was never closed
	sort.Slice(records, func(i, j int) bool {
		return records[i].CheckInTime.After(records[j].CheckInTime)
	})
	return records[0], nil
}

// ListAttendance returns a user's attendance history, newest first
func (r *Repository) ListAttendance(ctx context.Context, userID string) ([]*domain.AttendanceRecord, error) {
	records, err := scanAll(ctx, r.store, CollectionAttendance, func(a *domain.AttendanceRecord) bool {
		return a.UserID == userID
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list attendance")
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CheckInTime.After(records[j].CheckInTime)
	})
	return records, nil
}

// SaveProgress creates or replaces a training progress record
func (r *Repository) SaveProgress(ctx context.Context, progress *domain.TrainingProgress) error {
	if progress == nil || progress.UserID == "" || progress.ModuleID == "" {
		return fmt.Errorf("%w: training progress needs user and module", ErrInvalidDocument)
	}
	if progress.ID == "" {
		progress.ID = domain.GenerateID()
	}

	return r.store.Put(ctx, CollectionTrainingProgress, progress.ID, progress)
}

// GetProgress returns the user's progress on a module
func (r *Repository) GetProgress(ctx context.Context, userID, moduleID string) (*domain.TrainingProgress, error) {
	records, err := scanAll(ctx, r.store, CollectionTrainingProgress, func(p *domain.TrainingProgress) bool {
		return p.UserID == userID && p.ModuleID == moduleID
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search training progress")
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no progress for %s on %s", ErrNotFound, userID, moduleID)
	}

	// completed records win, then the earliest start
	sort.SliceStable(records, func(i, j int) bool {
		ci := records[i].Status == domain.ProgressCompleted
		cj := records[j].Status == domain.ProgressCompleted
		if ci != cj {
			return ci
		}
		return startedBefore(records[i], records[j])
	})
	return records[0], nil
}

func startedBefore(a, b *domain.TrainingProgress) bool {
	switch {
	case a.StartedAt == nil:
		return false
	case b.StartedAt == nil:
		return true
	default:
		return a.StartedAt.Before(*b.StartedAt)
	}
}

// SaveParticipation stores an awarded participation
func (r *Repository) SaveParticipation(ctx context.Context, record *domain.ParticipationRecord) error {
	if record == nil || record.UserID == "" || record.ActivityID == "" {
		return fmt.Errorf("%w: participation record needs user and activity", ErrInvalidDocument)
	}
	if record.ID == "" {
		record.ID = domain.GenerateID()
	}

	return r.store.Put(ctx, CollectionParticipation, record.ID, record)
}

// ListParticipation returns a user's participation, optionally for one activity, newest first
func (r *Repository) ListParticipation(ctx context.Context, userID, activityID string) ([]*domain.ParticipationRecord, error) {
	records, err := scanAll(ctx, r.store, CollectionParticipation, func(p *domain.ParticipationRecord) bool {
		return p.UserID == userID && (activityID == "" || p.ActivityID == activityID)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list participation")
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

// SaveCompetencyRecord stores an assessment
func (r *Repository) SaveCompetencyRecord(ctx context.Context, record *domain.CompetencyRecord) error {
	if record == nil || record.UserID == "" || record.CompetencyID == "" {
		return fmt.Errorf("%w: competency record needs student and competency", ErrInvalidDocument)
	}
	if !record.Status.Valid() {
		return fmt.Errorf("%w: invalid assessment status %q", ErrInvalidDocument, record.Status)
	}
	if record.ID == "" {
		record.ID = domain.GenerateID()
	}

	return r.store.Put(ctx, CollectionCompetencyRecords, record.ID, record)
}

// ListCompetencyRecords returns assessments for a competency, newest first
func (r *Repository) ListCompetencyRecords(ctx context.Context, competencyID string) ([]*domain.CompetencyRecord, error) {
	records, err := scanAll(ctx, r.store, CollectionCompetencyRecords, func(c *domain.CompetencyRecord) bool {
		return c.CompetencyID == competencyID
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list competency records")
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].AssessmentDate.After(records[j].AssessmentDate)
	})
	return records, nil
}

// SaveTemplate creates or replaces a certificate template, assigning an ID if it has none
func (r *Repository) SaveTemplate(ctx context.Context, template *domain.CertificateTemplate) error {
	if template == nil {
		return ErrInvalidDocument
	}
	if template.ID == "" {
		template.ID = domain.GenerateID()
	}
	if template.CreatedAt.IsZero() {
		template.CreatedAt = r.now()
	}
	if err := template.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if err := r.store.Put(ctx, CollectionCertTemplates, template.ID, template); err != nil {
		return errors.Wrapf(err, "failed to save certificate template %s", template.ID)
	}
	return nil
}

// GetTemplate returns a certificate template by ID
func (r *Repository) GetTemplate(ctx context.Context, id string) (*domain.CertificateTemplate, error) {
	var template domain.CertificateTemplate
	if err := r.store.Get(ctx, CollectionCertTemplates, id, &template); err != nil {
		return nil, err
	}
	return &template, nil
}

// ListTemplates returns every certificate template, oldest first
func (r *Repository) ListTemplates(ctx context.Context) ([]*domain.CertificateTemplate, error) {
	templates, err := scanAll[domain.CertificateTemplate](ctx, r.store, CollectionCertTemplates, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list certificate templates")
	}

	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].CreatedAt.Before(templates[j].CreatedAt)
	})
	return templates, nil
}

// DefaultTemplate returns the template marked default, or ErrNotFound when none is
func (r *Repository) DefaultTemplate(ctx context.Context) (*domain.CertificateTemplate, error) {
	templates, err := r.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	for _, template := range templates {
		if template.IsDefault {
			return template, nil
		}
	}
	return nil, fmt.Errorf("%w: no default certificate template", ErrNotFound)
}

// SaveCertificate stores an issued certificate
func (r *Repository) SaveCertificate(ctx context.Context, certificate *domain.Certificate) error {
	if certificate == nil || certificate.UserID == "" || certificate.ModuleID == "" || certificate.VerificationCode == "" {
		return fmt.Errorf("%w: certificate needs user, module and verification code", ErrInvalidDocument)
	}
	if certificate.ID == "" {
		certificate.ID = domain.GenerateID()
	}

	return r.store.Put(ctx, CollectionCertificates, certificate.ID, certificate)
}

// FindCertificate returns the certificate issued to a user for a module
func (r *Repository) FindCertificate(ctx context.Context, userID, moduleID string) (*domain.Certificate, error) {
	return r.findCertificate(ctx, func(c *domain.Certificate) bool {
		return c.UserID == userID && c.ModuleID == moduleID
	}, fmt.Sprintf("%s on %s", userID, moduleID))
}

// FindCertificateByCode looks a certificate up by its verification code
func (r *Repository) FindCertificateByCode(ctx context.Context, code string) (*domain.Certificate, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty verification code", ErrNotFound)
	}
	return r.findCertificate(ctx, func(c *domain.Certificate) bool {
		return c.VerificationCode == code
	}, "code "+code)
}

func (r *Repository) findCertificate(ctx context.Context, keep func(*domain.Certificate) bool, what string) (*domain.Certificate, error) {
	certificates, err := scanAll(ctx, r.store, CollectionCertificates, keep)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search certificates")
	}
	if len(certificates) == 0 {
		return nil, fmt.Errorf("%w: no certificate for %s", ErrNotFound, what)
	}

	sort.SliceStable(certificates, func(i, j int) bool {
		return certificates[i].IssuedAt.Before(certificates[j].IssuedAt)
	})
	return certificates[0], nil
}

// scanAll decodes every document of a collection, keeping those accepted by keep (nil keeps all)
func scanAll[T any](ctx context.Context, store Store, collection string, keep func(*T) bool) ([]*T, error) {
	var result []*T

	err := store.Scan(ctx, collection, func(id string, raw []byte) error {
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("failed to unmarshal %s/%s: %w", collection, id, err)
		}
		if keep == nil || keep(&doc) {
			result = append(result, &doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
