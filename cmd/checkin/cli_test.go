package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
)

func TestParseValidFor(t *testing.T) {
	d, err := parseValidFor("")
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = parseValidFor(" never ")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), d)

	d, err = parseValidFor("2h")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, d)

	_, err = parseValidFor("0s")
	assert.Error(t, err)
	_, err = parseValidFor("tomorrow")
	assert.Error(t, err)
}

func TestParseTimeFlag(t *testing.T) {
	got, err := parseTimeFlag("start", "")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseTimeFlag("start", "2024-03-01T09:00:00Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)))

	_, err = parseTimeFlag("end", "9am")
	assert.ErrorContains(t, err, "--end")
}

func TestPayloadArg(t *testing.T) {
	raw, err := payloadArg([]string{`{"type":"competency"}`}, strings.NewReader("ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, `{"type":"competency"}`, raw)

	raw, err = payloadArg(nil, strings.NewReader("  {\"id\":\"cpr\"}\r\nsecond\n"))
	require.NoError(t, err)
	assert.Equal(t, `{"id":"cpr"}`, raw)

	_, err = payloadArg(nil, strings.NewReader(""))
	assert.Error(t, err)
}

func TestTargetDetail(t *testing.T) {
	tests := []struct {
		target   domain.Target
		expected string
	}{
		{domain.Target{Kind: domain.KindAttendance, Location: "Hall A"}, "Hall A"},
		{domain.Target{Kind: domain.KindTraining, DurationMinutes: 45}, "45 min"},
		{domain.Target{Kind: domain.KindParticipation, Location: "Pier"}, "Pier, 10 pts"},
		{domain.Target{Kind: domain.KindCompetency, Category: "safety"}, "safety"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, targetDetail(&tt.target), string(tt.target.Kind))
	}
}

func TestRequireAdmin(t *testing.T) {
	assert.NoError(t, requireAdmin(domain.Session{Role: domain.RoleAdmin}))
	assert.Error(t, requireAdmin(domain.Session{Role: domain.RoleAssessor}))
}

func TestDecodeTemplate(t *testing.T) {
	tmpl, err := decodeTemplate(strings.NewReader(`{"id":"gold","name":"Gold","layout":"modern","font_family":"serif","is_default":true}`))
	require.NoError(t, err)
	assert.Equal(t, "gold", tmpl.ID)
	assert.Equal(t, domain.LayoutModern, tmpl.Layout)
	assert.True(t, tmpl.IsDefault)

	_, err = decodeTemplate(strings.NewReader(`{"id":"gold","colour":"red"}`))
	assert.ErrorContains(t, err, "invalid template JSON")
}

func TestPrintCertificate(t *testing.T) {
	var buf bytes.Buffer
	printCertificate(&buf, &domain.Certificate{
		UserName:         "Sam Student",
		ModuleName:       "Fire Safety",
		CompletedAt:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		VerificationCode: "ABC123DEF456",
	})

	out := buf.String()
	assert.Contains(t, out, "Sam Student")
	assert.Contains(t, out, "completed Fire Safety")
	assert.Contains(t, out, "Verification code: ABC123DEF456")
}
