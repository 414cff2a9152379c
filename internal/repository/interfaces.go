package repository

import (
	"context"
	"fmt"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
)

// Store is a minimal document store: JSON documents addressed by collection and id
type Store interface {
	// Put creates or replaces a document
	Put(ctx context.Context, collection, id string, doc any) error

	// Get decodes the document into doc, returning ErrNotFound if it does not exist
	Get(ctx context.Context, collection, id string, doc any) error

	// Delete removes a document, returning ErrNotFound if it does not exist
	Delete(ctx context.Context, collection, id string) error

	// Scan visits every document in a collection in key order
	Scan(ctx context.Context, collection string, visit func(id string, raw []byte) error) error

	// Close releases the underlying database
	Close() error
}

// TargetRepository stores the entities QR payloads point at
type TargetRepository interface {
	CreateTarget(ctx context.Context, target *domain.Target) error
	UpdateTarget(ctx context.Context, target *domain.Target) error
	GetTarget(ctx context.Context, kind domain.Kind, id string) (*domain.Target, error)
	ListTargets(ctx context.Context, kind domain.Kind) ([]*domain.Target, error)
}

// AttendanceRepository stores check-in/check-out records
type AttendanceRepository interface {
	SaveAttendance(ctx context.Context, record *domain.AttendanceRecord) error
	FindOpenAttendance(ctx context.Context, userID, eventID string) (*domain.AttendanceRecord, error)
	ListAttendance(ctx context.Context, userID string) ([]*domain.AttendanceRecord, error)
}

// TrainingRepository stores training progress
type TrainingRepository interface {
	SaveProgress(ctx context.Context, progress *domain.TrainingProgress) error
	GetProgress(ctx context.Context, userID, moduleID string) (*domain.TrainingProgress, error)
}

// ParticipationRepository stores awarded participation
type ParticipationRepository interface {
	SaveParticipation(ctx context.Context, record *domain.ParticipationRecord) error
	ListParticipation(ctx context.Context, userID, activityID string) ([]*domain.ParticipationRecord, error)
}

// CompetencyRepository stores competency assessments
type CompetencyRepository interface {
	SaveCompetencyRecord(ctx context.Context, record *domain.CompetencyRecord) error
	ListCompetencyRecords(ctx context.Context, competencyID string) ([]*domain.CompetencyRecord, error)
}

// CertificateRepository stores certificate templates and issued certificates
type CertificateRepository interface {
	SaveTemplate(ctx context.Context, template *domain.CertificateTemplate) error
	GetTemplate(ctx context.Context, id string) (*domain.CertificateTemplate, error)
	ListTemplates(ctx context.Context) ([]*domain.CertificateTemplate, error)
	DefaultTemplate(ctx context.Context) (*domain.CertificateTemplate, error)
	SaveCertificate(ctx context.Context, certificate *domain.Certificate) error
	FindCertificate(ctx context.Context, userID, moduleID string) (*domain.Certificate, error)
	FindCertificateByCode(ctx context.Context, code string) (*domain.Certificate, error)
}

// Collection names
const (
	CollectionEvents            = "events"
	CollectionTrainingModules   = "training_modules"
	CollectionActivities        = "activities"
	CollectionCompetencies      = "competencies"
	CollectionAttendance        = "attendance"
	CollectionTrainingProgress  = "training_progress"
	CollectionParticipation     = "participation"
	CollectionCompetencyRecords = "competency_records"
	CollectionCertTemplates     = "certificate_templates"
	CollectionCertificates      = "certificates"
)

// Collections lists every collection the repository writes to
func Collections() []string {
	return []string{
		CollectionEvents,
		CollectionTrainingModules,
		CollectionActivities,
		CollectionCompetencies,
		CollectionAttendance,
		CollectionTrainingProgress,
		CollectionParticipation,
		CollectionCompetencyRecords,
		CollectionCertTemplates,
		CollectionCertificates,
	}
}

// TargetCollection maps a payload kind to the collection holding its targets
func TargetCollection(kind domain.Kind) (string, error) {
	switch kind {
	case domain.KindAttendance:
		return CollectionEvents, nil
	case domain.KindTraining:
		return CollectionTrainingModules, nil
	case domain.KindParticipation:
		return CollectionActivities, nil
	case domain.KindCompetency:
		return CollectionCompetencies, nil
	default:
		return "", fmt.Errorf("%w: no collection for kind %q", ErrInvalidDocument, kind)
	}
}

// Common errors
var (
	ErrNotFound        = fmt.Errorf("document not found")
	ErrAlreadyExists   = fmt.Errorf("document already exists")
	ErrInvalidDocument = fmt.Errorf("invalid document")
)
