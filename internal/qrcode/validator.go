package qrcode

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
)

// Validator classifies scanned text as an accepted payload or a rejection.
// It keeps no state between calls: the same text may be accepted any number
// of times, and deduplication belongs to the workflow that consumes it.
type Validator struct {
	logger *logrus.Logger
	now    func() time.Time
}

// ValidatorOption customises a Validator
type ValidatorOption func(*Validator)

// WithValidatorClock overrides the wall clock used for expiry checks
func WithValidatorClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// NewValidator creates a validator using the system clock
func NewValidator(logger *logrus.Logger, opts ...ValidatorOption) *Validator {
	if logger == nil {
		logger = logrus.New()
	}

	v := &Validator{
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Validate parses raw scanned text, checks structure then expiry, and returns
// the typed payload. Errors wrap ErrMalformedPayload, ErrIncompletePayload or
// ErrExpiredPayload.
func (v *Validator) Validate(raw string) (*domain.Payload, error) {
	payload, err := Parse(raw)
	if err != nil {
		v.reject(err, raw)
		return nil, err
	}

	if err := CheckStructure(payload); err != nil {
		v.reject(err, raw)
		return nil, err
	}

	now := v.now()
	if payload.ExpiredAt(now) {
		err := fmt.Errorf("%w: valid until %d, now %d", ErrExpiredPayload, *payload.ExpiresAt, now.UnixMilli())
		v.reject(err, raw)
		return nil, err
	}

	return payload, nil
}

// Parse deserializes the canonical text form without checking completeness
func Parse(raw string) (*domain.Payload, error) {
	var payload domain.Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &payload, nil
}

// CheckStructure verifies every required field is present and the kind is recognised
func CheckStructure(p *domain.Payload) error {
	var missing []string

	if !p.Kind.Valid() {
		if p.Kind == "" {
			missing = append(missing, "type")
		} else {
			return fmt.Errorf("%w: unrecognised type %q", ErrIncompletePayload, p.Kind)
		}
	}
	if strings.TrimSpace(p.TargetID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(p.DisplayName) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.Token) == "" {
		missing = append(missing, "token")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompletePayload, strings.Join(missing, ", "))
	}
	return nil
}

func (v *Validator) reject(err error, raw string) {
	v.logger.WithFields(logrus.Fields{
		"operation":  "validate_qr",
		"reason":     Reason(err),
		"raw_length": len(raw),
	}).WithError(err).Debug("scanned code rejected")
}
