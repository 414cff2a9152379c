package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
	"github.com/DaDevFox/task-systems/checkin-core/internal/events"
	"github.com/DaDevFox/task-systems/checkin-core/internal/qrcode"
	"github.com/DaDevFox/task-systems/checkin-core/internal/repository"
)

// VerificationCodeLength is the length of the code printed on certificates
const VerificationCodeLength = 12

// ErrInvalidTemplate is returned for certificate templates that fail validation
var ErrInvalidTemplate = errors.New("invalid certificate template")

// CertificateIssuer issues the completion certificate for finished training
type CertificateIssuer interface {
	Issue(ctx context.Context, progress *domain.TrainingProgress) (*domain.Certificate, error)
}

// Certificates issues completion certificates and manages their templates
type Certificates struct {
	mu        sync.Mutex
	repo      repository.CertificateRepository
	codes     qrcode.TokenGenerator
	publisher events.Publisher
	logger    *logrus.Logger
	opts      options
}

// NewCertificates creates the certificate workflow. A nil code generator
// falls back to base36 codes of VerificationCodeLength. Codes are stored
// uppercase so they can be read back off a printed certificate.
func NewCertificates(repo repository.CertificateRepository, codes qrcode.TokenGenerator, publisher events.Publisher, logger *logrus.Logger, opts ...Option) *Certificates {
	publisher, logger = defaults(publisher, logger)
	if codes == nil {
		codes = qrcode.NewTokenGenerator(VerificationCodeLength, qrcode.Base36Alphabet)
	}

	upper := func() (string, error) {
		code, err := codes()
		return strings.ToUpper(code), err
	}

	return &Certificates{
		repo:      repo,
		codes:     upper,
		publisher: publisher,
		logger:    logger,
		opts:      buildOptions(opts),
	}
}

// Issue returns the certificate for a completed module, creating it on first
// call. The default template is used, or the built-in one when none is set.
func (c *Certificates) Issue(ctx context.Context, progress *domain.TrainingProgress) (*domain.Certificate, error) {
	if progress == nil || progress.Status != domain.ProgressCompleted {
		return nil, fmt.Errorf("%w: module not completed", ErrNotStarted)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	logger := c.logger.WithFields(logrus.Fields{
		"operation": "issue_certificate",
		"module_id": progress.ModuleID,
		"user_id":   progress.UserID,
	})

	existing, err := c.repo.FindCertificate(ctx, progress.UserID, progress.ModuleID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		logger.WithError(err).Error("failed to look up certificate")
		return nil, fmt.Errorf("failed to look up certificate: %w", err)
	}

	template, err := c.DefaultTemplate(ctx)
	if err != nil {
		return nil, err
	}

	code, err := c.codes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}

	now := c.opts.now()
	completedAt := now
	if progress.CompletedAt != nil {
		completedAt = *progress.CompletedAt
	}

	certificate := &domain.Certificate{
		UserID:           progress.UserID,
		UserName:         progress.UserName,
		ModuleID:         progress.ModuleID,
		ModuleName:       progress.ModuleName,
		CompletedAt:      completedAt,
		TemplateID:       template.ID,
		VerificationCode: code,
		IssuedAt:         now,
	}
	if err := c.repo.SaveCertificate(ctx, certificate); err != nil {
		logger.WithError(err).Error("failed to save certificate")
		return nil, fmt.Errorf("failed to save certificate: %w", err)
	}

	logger.WithField("template_id", template.ID).Info("certificate issued")
	c.publisher.Publish(ctx, events.NewEvent(events.EventCertificateIssued, progress.UserID, map[string]interface{}{
		"module_id":         progress.ModuleID,
		"certificate_id":    certificate.ID,
		"template_id":       template.ID,
		"verification_code": code,
	}))

	return certificate, nil
}

// Find returns the certificate already issued to a user for a module
func (c *Certificates) Find(ctx context.Context, userID, moduleID string) (*domain.Certificate, error) {
	return c.repo.FindCertificate(ctx, userID, moduleID)
}

// Verify looks a certificate up by the code printed on it
func (c *Certificates) Verify(ctx context.Context, code string) (*domain.Certificate, error) {
	return c.repo.FindCertificateByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

// DefaultTemplate returns the template marked default, or the built-in fallback
func (c *Certificates) DefaultTemplate(ctx context.Context) (*domain.CertificateTemplate, error) {
	template, err := c.repo.DefaultTemplate(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.FallbackTemplate(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load default template: %w", err)
	}
	return template, nil
}

// Templates lists stored templates
func (c *Certificates) Templates(ctx context.Context) ([]*domain.CertificateTemplate, error) {
	return c.repo.ListTemplates(ctx)
}

// SaveTemplate stores a template. Saving a default template clears the flag on every other one.
func (c *Certificates) SaveTemplate(ctx context.Context, session domain.Session, template *domain.CertificateTemplate) error {
	if err := checkSession(session); err != nil {
		return err
	}
	if template == nil {
		return fmt.Errorf("%w: no template", ErrInvalidTemplate)
	}
	if template.ID == "" {
		template.ID = domain.GenerateID()
	}
	if template.ID == domain.FallbackTemplateID {
		return fmt.Errorf("%w: %q is reserved for the built-in template", ErrInvalidTemplate, domain.FallbackTemplateID)
	}
	if template.CreatedAt.IsZero() {
		template.CreatedAt = c.opts.now()
	}
	if template.CreatedBy == "" {
		template.CreatedBy = session.UserID
	}
	if err := template.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if template.IsDefault {
		if err := c.clearDefault(ctx, template.ID); err != nil {
			return err
		}
	}
	if err := c.repo.SaveTemplate(ctx, template); err != nil {
		return fmt.Errorf("failed to save certificate template: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"operation":   "save_certificate_template",
		"template_id": template.ID,
		"is_default":  template.IsDefault,
	}).Info("certificate template saved")
	return nil
}

// SetDefault marks a stored template as the default
func (c *Certificates) SetDefault(ctx context.Context, session domain.Session, id string) (*domain.CertificateTemplate, error) {
	if err := checkSession(session); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	template, err := c.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.clearDefault(ctx, id); err != nil {
		return nil, err
	}

	template.IsDefault = true
	if err := c.repo.SaveTemplate(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save certificate template: %w", err)
	}
	return template, nil
}

func (c *Certificates) clearDefault(ctx context.Context, keepID string) error {
	templates, err := c.repo.ListTemplates(ctx)
	if err != nil {
		return fmt.Errorf("failed to list certificate templates: %w", err)
	}
	for _, t := range templates {
		if !t.IsDefault || t.ID == keepID {
			continue
		}
		t.IsDefault = false
		if err := c.repo.SaveTemplate(ctx, t); err != nil {
			return fmt.Errorf("failed to clear default on %s: %w", t.ID, err)
		}
	}
	return nil
}
