package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies which workflow consumes a scanned payload
type Kind string

const (
	KindAttendance    Kind = "attendance"
	KindTraining      Kind = "training"
	KindParticipation Kind = "participation"
	KindCompetency    Kind = "competency"
)

// Kinds returns every recognised payload kind in display order
func Kinds() []Kind {
	return []Kind{KindAttendance, KindTraining, KindParticipation, KindCompetency}
}

// Valid reports whether k is one of the four recognised kinds
func (k Kind) Valid() bool {
	switch k {
	case KindAttendance, KindTraining, KindParticipation, KindCompetency:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	return string(k)
}

// TargetNoun is the human name of the entity a kind points at
func (k Kind) TargetNoun() string {
	switch k {
	case KindAttendance:
		return "event"
	case KindTraining:
		return "training module"
	case KindParticipation:
		return "activity"
	case KindCompetency:
		return "competency"
	default:
		return "target"
	}
}

// ParseKind converts free text into a Kind, rejecting anything outside the closed set
func ParseKind(s string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.Valid() {
		return "", fmt.Errorf("unknown kind %q (expected one of attendance, training, participation, competency)", s)
	}
	return kind, nil
}

// Payload is the data embedded in a QR code. The JSON field names are the
// interchange format of codes that are already printed and must not change.
type Payload struct {
	Kind        Kind   `json:"type"`
	TargetID    string `json:"id"`
	DisplayName string `json:"name"`
	IssuedAt    int64  `json:"timestamp"`
	ExpiresAt   *int64 `json:"validUntil,omitempty"`
	Token       string `json:"token"`
}

// IssuedTime returns IssuedAt as a time.Time
func (p *Payload) IssuedTime() time.Time {
	return time.UnixMilli(p.IssuedAt)
}

// ExpiryTime returns the expiry instant, if the payload has one
func (p *Payload) ExpiryTime() (time.Time, bool) {
	if p.ExpiresAt == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*p.ExpiresAt), true
}

// ExpiredAt reports whether the payload is past its expiry at the given instant.
// Payloads without an expiry never expire.
func (p *Payload) ExpiredAt(now time.Time) bool {
	if p.ExpiresAt == nil {
		return false
	}
	return now.UnixMilli() > *p.ExpiresAt
}

// MillisPtr converts an optional time into the optional millisecond form used on the wire
func MillisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
