package qrcode

import "errors"

// Encoder failures. These are fatal to the generate action and must reach the admin.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrEncoding     = errors.New("qr encoding failed")
)

// Validator rejections. These are never fatal; the scan session stays open.
var (
	ErrMalformedPayload  = errors.New("malformed payload")
	ErrIncompletePayload = errors.New("incomplete payload")
	ErrExpiredPayload    = errors.New("expired payload")
)

// RejectionReason is a stable machine-readable code for a rejected scan
type RejectionReason string

const (
	ReasonNone       RejectionReason = ""
	ReasonMalformed  RejectionReason = "malformed_payload"
	ReasonIncomplete RejectionReason = "incomplete_payload"
	ReasonExpired    RejectionReason = "expired_payload"
)

// Reason classifies a validator error. Errors that did not come from the
// validator yield ReasonNone.
func Reason(err error) RejectionReason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrMalformedPayload):
		return ReasonMalformed
	case errors.Is(err, ErrIncompletePayload):
		return ReasonIncomplete
	case errors.Is(err, ErrExpiredPayload):
		return ReasonExpired
	default:
		return ReasonNone
	}
}

// UserMessage turns a validator error into the text shown to the person scanning
func UserMessage(err error) string {
	switch Reason(err) {
	case ReasonMalformed, ReasonIncomplete:
		return "Invalid QR code"
	case ReasonExpired:
		return "This QR code has expired. Please ask the organiser for a new one."
	default:
		if err == nil {
			return ""
		}
		return "Unable to read QR code. Please try again."
	}
}
