package qrcode

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
)

// Descriptor names what a generated code points at
type Descriptor struct {
	Kind        domain.Kind
	TargetID    string
	DisplayName string
	ExpiresAt   *time.Time
}

// Code is the output of a single encode: the payload, its canonical text and the PNG image
type Code struct {
	Payload domain.Payload
	Text    string
	PNG     []byte
}

// DataURI returns the image as a data URI suitable for an <img> src
func (c *Code) DataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(c.PNG)
}

// Encoder builds, serializes and renders QR payloads. It holds no mutable
// state and is safe for concurrent use.
type Encoder struct {
	logger   *logrus.Logger
	now      func() time.Time
	tokens   TokenGenerator
	renderer renderer
}

// EncoderOption customises an Encoder
type EncoderOption func(*Encoder)

// WithEncoderClock overrides the clock used for IssuedAt
func WithEncoderClock(now func() time.Time) EncoderOption {
	return func(e *Encoder) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTokenGenerator overrides how payload tokens are produced
func WithTokenGenerator(tokens TokenGenerator) EncoderOption {
	return func(e *Encoder) {
		if tokens != nil {
			e.tokens = tokens
		}
	}
}

// WithImageSize sets the side of the rendered image in pixels
func WithImageSize(size int) EncoderOption {
	return func(e *Encoder) {
		if size > 0 {
			e.renderer.size = size
		}
	}
}

// WithQuietZone sets the margin around the symbol in modules
func WithQuietZone(modules int) EncoderOption {
	return func(e *Encoder) {
		if modules >= 0 {
			e.renderer.quietZone = modules
		}
	}
}

// NewEncoder creates an encoder using legacy-shaped tokens and a 400px, 2-module-margin image
func NewEncoder(logger *logrus.Logger, opts ...EncoderOption) *Encoder {
	if logger == nil {
		logger = logrus.New()
	}

	e := &Encoder{
		logger:   logger,
		now:      time.Now,
		tokens:   LegacyTokens(),
		renderer: defaultRenderer(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Encode stamps a new payload for the descriptor and renders it.
// The target must already be persisted by the caller.
func (e *Encoder) Encode(d Descriptor) (*Code, error) {
	logger := e.logger.WithFields(logrus.Fields{
		"operation": "encode_qr",
		"kind":      d.Kind,
		"target_id": d.TargetID,
	})

	if err := checkDescriptor(d); err != nil {
		logger.WithError(err).Warn("rejected encode request")
		return nil, err
	}

	token, err := e.tokens()
	if err != nil {
		logger.WithError(err).Error("failed to generate payload token")
		return nil, fmt.Errorf("%w: token generation: %v", ErrEncoding, err)
	}

	payload := domain.Payload{
		Kind:        d.Kind,
		TargetID:    d.TargetID,
		DisplayName: d.DisplayName,
		IssuedAt:    e.now().UnixMilli(),
		ExpiresAt:   domain.MillisPtr(d.ExpiresAt),
		Token:       token,
	}

	text, err := Serialize(&payload)
	if err != nil {
		logger.WithError(err).Error("failed to serialize payload")
		return nil, err
	}

	image, err := e.renderer.render(text)
	if err != nil {
		logger.WithError(err).WithField("text_length", len(text)).Error("failed to render QR image")
		return nil, err
	}

	logger.WithField("bytes", len(image)).Debug("QR code generated")
	return &Code{Payload: payload, Text: text, PNG: image}, nil
}

// Render draws arbitrary text as a QR image using the encoder's layout
func (e *Encoder) Render(text string) ([]byte, error) {
	return e.renderer.render(text)
}

// Serialize writes the canonical text form of a payload
func Serialize(p *domain.Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("%w: marshal payload: %v", ErrEncoding, err)
	}
	return string(data), nil
}

func checkDescriptor(d Descriptor) error {
	switch {
	case d.Kind == "":
		return fmt.Errorf("%w: kind is required", ErrInvalidInput)
	case !d.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, d.Kind)
	case strings.TrimSpace(d.TargetID) == "":
		return fmt.Errorf("%w: target id is required", ErrInvalidInput)
	case strings.TrimSpace(d.DisplayName) == "":
		return fmt.Errorf("%w: display name is required", ErrInvalidInput)
	}
	return nil
}
