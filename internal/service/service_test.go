package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaDevFox/task-systems/checkin-core/internal/dispatch"
	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
	"github.com/DaDevFox/task-systems/checkin-core/internal/events"
	"github.com/DaDevFox/task-systems/checkin-core/internal/qrcode"
	"github.com/DaDevFox/task-systems/checkin-core/internal/repository"
	"github.com/DaDevFox/task-systems/checkin-core/internal/scanner"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestApp(t *testing.T, cfg AppConfig) (*App, *clock) {
	t.Helper()
	c := &clock{now: baseTime}
	cfg.Now = c.Now
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	app := NewApp(repository.NewInMemoryStore(), cfg, testLogger())
	t.Cleanup(func() { app.Close() })
	return app, c
}

var (
	admin   = domain.Session{UserID: "user_adm00001", UserName: "Ada Admin", Role: domain.RoleAdmin}
	student = domain.Session{UserID: "user_stu00001", UserName: "Sam Student", Role: domain.RoleStudent}
)

func TestGenerateStoresTargetAndIssuesCode(t *testing.T) {
	app, _ := newTestApp(t, AppConfig{})
	ctx := context.Background()

	var mu sync.Mutex
	var generated []events.Event
	app.Events.Subscribe(events.EventCodeGenerated, func(ctx context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		generated = append(generated, e)
		return nil
	})

	issued, err := app.Generator.Generate(ctx, admin, TargetSpec{
		Kind:     domain.KindAttendance,
		Name:     "Orientation Day",
		Location: "Hall A",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, issued.Target.ID)
	assert.Equal(t, issued.Target.ID, issued.Code.Payload.TargetID)
	assert.Equal(t, "Orientation Day", issued.Code.Payload.DisplayName)
	assert.Equal(t, baseTime.UnixMilli(), issued.Code.Payload.IssuedAt)
	assert.Nil(t, issued.Code.Payload.ExpiresAt)
	assert.True(t, strings.HasPrefix(issued.Code.DataURI(), "data:image/png;base64,"))

	stored, err := app.Repo.GetTarget(ctx, domain.KindAttendance, issued.Target.ID)
	require.NoError(t, err)
	assert.Equal(t, issued.Code.Payload.Token, stored.LastToken)
	assert.Equal(t, admin.UserID, stored.CreatedBy)
	assert.True(t, stored.Active)

	app.Events.Wait()
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, generated, 1)
	assert.Equal(t, issued.Target.ID, generated[0].Data["target_id"])
}

func TestGenerateAppliesKindDefaults(t *testing.T) {
	app, _ := newTestApp(t, AppConfig{})
	ctx := context.Background()

	training, err := app.Generator.Generate(ctx, admin, TargetSpec{
		Kind:        domain.KindTraining,
		Name:        "Fire Safety",
		Description: "Evacuation basics",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTrainingDuration, training.Target.DurationMinutes)

	activity, err := app.Generator.Generate(ctx, admin, TargetSpec{
		Kind:     domain.KindParticipation,
		Name:     "Beach Cleanup",
		Location: "North Beach",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultActivityPoints, activity.Target.Points)
}

func TestGenerateValidation(t *testing.T) {
	app, _ := newTestApp(t, AppConfig{})
	ctx := context.Background()

	tests := []struct {
		name string
		spec TargetSpec
	}{
		{"unknown kind", TargetSpec{Kind: "party", Name: "x"}},
		{"attendance without location", TargetSpec{Kind: domain.KindAttendance, Name: "Orientation"}},
		{"training without description", TargetSpec{Kind: domain.KindTraining, Name: "Fire Safety"}},
		{"participation without name", TargetSpec{Kind: domain.KindParticipation, Location: "Hall"}},
		{"competency without category", TargetSpec{Kind: domain.KindCompetency, Name: "CPR"}},
		{"bad id", TargetSpec{Kind: domain.KindCompetency, ID: "a/b", Name: "CPR", Category: "First aid"}},
		{"bad content url", TargetSpec{Kind: domain.KindTraining, Name: "Fire", Description: "d", ContentURL: "file:///etc/passwd"}},
		{"negative points", TargetSpec{Kind: domain.KindParticipation, Name: "x", Location: "y", Points: -5}},
		{"end before start", TargetSpec{
			Kind: domain.KindAttendance, Name: "x", Location: "y",
			StartTime: timePtr(baseTime), EndTime: timePtr(baseTime.Add(-time.Hour)),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.Generator.Generate(ctx, admin, tt.spec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTarget), err.Error())
		})
	}

	// Nothing was stored for any rejected input
	for _, kind := range domain.Kinds() {
		targets, err := app.Repo.ListTargets(ctx, kind)
		require.NoError(t, err)
		assert.Empty(t, targets, kind)
	}
}

func TestGenerateSurfacesEncoderFailure(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewRepository(repository.NewInMemoryStore(), testLogger())
	encoder := qrcode.NewEncoder(testLogger(), qrcode.WithTokenGenerator(func() (string, error) {
		return "", errors.New("entropy exhausted")
	}))
	generator := NewGeneratorService(repo, encoder, nil, testLogger())

	_, err := generator.Generate(ctx, admin, TargetSpec{Kind: domain.KindCompetency, Name: "CPR", Category: "First aid"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, qrcode.ErrEncoding))
	assert.Contains(t, err.Error(), "failed to generate QR code for CPR")
}

func TestGenerateExpiry(t *testing.T) {
	app, _ := newTestApp(t, AppConfig{DefaultValidity: 2 * time.Hour})
	ctx := context.Background()
	spec := TargetSpec{Kind: domain.KindCompetency, Name: "CPR", Category: "First aid"}

	issued, err := app.Generator.Generate(ctx, admin, spec)
	require.NoError(t, err)
	require.NotNil(t, issued.Code.Payload.ExpiresAt)
	assert.Equal(t, baseTime.Add(2*time.Hour).UnixMilli(), *issued.Code.Payload.ExpiresAt)

	spec.ValidFor = 10 * time.Minute
	issued, err = app.Generator.Generate(ctx, admin, spec)
	require.NoError(t, err)
	assert.Equal(t, baseTime.Add(10*time.Minute).UnixMilli(), *issued.Code.Payload.ExpiresAt)

	spec.ValidFor = -1
	issued, err = app.Generator.Generate(ctx, admin, spec)
	require.NoError(t, err)
	assert.Nil(t, issued.Code.Payload.ExpiresAt)
}

func TestRegenerate(t *testing.T) {
	app, c := newTestApp(t, AppConfig{})
	ctx := context.Background()

	first, err := app.Generator.Generate(ctx, admin, TargetSpec{
		Kind: domain.KindParticipation, ID: "act-1", Name: "Beach Cleanup", Location: "North Beach",
	})
	require.NoError(t, err)

	c.Advance(time.Minute)
	second, err := app.Generator.Regenerate(ctx, admin, domain.KindParticipation, "act-1", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, first.Code.Payload.Token, second.Code.Payload.Token)
	assert.Equal(t, baseTime.Add(time.Minute).UnixMilli(), second.Code.Payload.IssuedAt)
	require.NotNil(t, second.Code.Payload.ExpiresAt)

	stored, err := app.Repo.GetTarget(ctx, domain.KindParticipation, "act-1")
	require.NoError(t, err)
	assert.Equal(t, second.Code.Payload.Token, stored.LastToken)

	_, err = app.Generator.Regenerate(ctx, admin, domain.KindParticipation, "missing", 0)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestProcessTrainingCodeInAttendanceContext(t *testing.T) {
	app, _ := newTestApp(t, AppConfig{})
	ctx := context.Background()

	issued, err := app.Generator.Generate(ctx, admin, TargetSpec{
		Kind: domain.KindTraining, ID: "mod-42", Name: "Fire Safety", Description: "Evacuation basics",
	})
	require.NoError(t, err)

	// The validator alone accepts the payload
	payload, err := qrcode.NewValidator(testLogger()).Validate(issued.Code.Text)
	require.NoError(t, err)
	assert.Equal(t, domain.KindTraining, payload.Kind)

	result := app.Scans.Process(ctx, student, domain.KindAttendance, issued.Code.Text)
	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonWrongKind, result.Reason)
	assert.Equal(t, "This QR code is not for attendance. Please scan an attendance QR code.", result.Message)
	assert.True(t, errors.Is(result.Err, dispatch.ErrWrongKind))

	history, err := app.Repo.ListAttendance(ctx, student.UserID)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = app.Repo.GetProgress(ctx, student.UserID, "mod-42")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestProcessRejections(t *testing.T) {
	app, c := newTestApp(t, AppConfig{})
	ctx := context.Background()

	issued, err := app.Generator.Generate(ctx, admin, TargetSpec{
		Kind: domain.KindAttendance, Name: "Orientation Day", Location: "Hall A", ValidFor: time.Minute,
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     string
		reason  qrcode.RejectionReason
		message string
	}{
		{"not json", "not json", qrcode.ReasonMalformed, "Invalid QR code"},
		{"empty object", "{}", qrcode.ReasonIncomplete, "Invalid QR code"},
		{"bogus type", `{"type":"bogus","id":"1","name":"n","timestamp":0,"token":"t"}`, qrcode.ReasonIncomplete, "Invalid QR code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := app.Scans.Process(ctx, student, domain.KindAttendance, tt.raw)
			assert.False(t, result.Accepted)
			assert.Equal(t, tt.reason, result.Reason)
			assert.Equal(t, tt.message, result.Message)
		})
	}

	c.Advance(time.Minute + time.Millisecond)
	result := app.Scans.Process(ctx, student, domain.KindAttendance, issued.Code.Text)
	assert.False(t, result.Accepted)
	assert.Equal(t, qrcode.ReasonExpired, result.Reason)

	result = app.Scans.Process(ctx, domain.Session{}, domain.KindCompetency,
		`{"type":"competency","id":"cpr","name":"CPR","timestamp":0,"token":"t"}`)
	assert.Equal(t, ReasonInvalidSession, result.Reason)
}

func TestProcessDispatchesWorkflows(t *testing.T) {
	app, _ := newTestApp(t, AppConfig{})
	ctx := context.Background()

	event, err := app.Generator.Generate(ctx, admin, TargetSpec{Kind: domain.KindAttendance, Name: "Orientation Day", Location: "Hall A"})
	require.NoError(t, err)

	result := app.Scans.Process(ctx, student, domain.KindAttendance, event.Code.Text)
	require.True(t, result.Accepted, result.Message)
	assert.Equal(t, dispatch.ActionCheckedIn, result.Outcome.Action)
	assert.Equal(t, "Successfully checked in to Orientation Day", result.Message)

	// Same text accepted again: validation is stateless, the workflow toggles
	result = app.Scans.Process(ctx, student, domain.KindAttendance, event.Code.Text)
	require.True(t, result.Accepted)
	assert.Equal(t, dispatch.ActionCheckedOut, result.Outcome.Action)

	activity, err := app.Generator.Generate(ctx, admin, TargetSpec{Kind: domain.KindParticipation, Name: "Choir", Location: "Music Room", Points: 15})
	require.NoError(t, err)

	result = app.Scans.Process(ctx, student, domain.KindParticipation, activity.Code.Text)
	require.True(t, result.Accepted)
	assert.Equal(t, 15, result.Outcome.Points)

	result = app.Scans.Process(ctx, student, domain.KindParticipation, activity.Code.Text)
	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonAlreadyParticipated, result.Reason)
	assert.Equal(t, "You have already participated in this activity today!", result.Message)

	competency, err := app.Generator.Generate(ctx, admin, TargetSpec{Kind: domain.KindCompetency, Name: "CPR", Category: "First aid"})
	require.NoError(t, err)

	result = app.Scans.Process(ctx, student, domain.KindCompetency, competency.Code.Text)
	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonNotAssessor, result.Reason)

	result = app.Scans.Process(ctx, admin, domain.KindCompetency, competency.Code.Text)
	require.True(t, result.Accepted)
	assert.True(t, result.Outcome.NeedsAssessment)
}

func TestProcessUnregisteredKind(t *testing.T) {
	validator := qrcode.NewValidator(testLogger())
	scans := NewScanService(validator, dispatch.NewDispatcher(testLogger()), nil, testLogger())

	result := scans.Process(context.Background(), student, domain.KindCompetency,
		`{"type":"competency","id":"cpr","name":"CPR","timestamp":0,"token":"t"}`)
	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonProcessingFailed, result.Reason)
	assert.Equal(t, "Failed to process scan. Please try again.", result.Message)
	assert.True(t, errors.Is(result.Err, dispatch.ErrNoWorkflow))
}

func TestResultsSessionSurvivesRejections(t *testing.T) {
	app, _ := newTestApp(t, AppConfig{})
	ctx := context.Background()

	event, err := app.Generator.Generate(ctx, admin, TargetSpec{Kind: domain.KindAttendance, Name: "Orientation Day", Location: "Hall A"})
	require.NoError(t, err)
	training, err := app.Generator.Generate(ctx, admin, TargetSpec{Kind: domain.KindTraining, Name: "Fire Safety", Description: "d"})
	require.NoError(t, err)

	src := scanner.NewSliceSource("garbage", training.Code.Text, event.Code.Text, event.Code.Text)

	var results []ScanResult
	for result := range app.Scans.Results(ctx, student, domain.KindAttendance, src) {
		results = append(results, result)
	}

	require.Len(t, results, 4)
	assert.Equal(t, qrcode.ReasonMalformed, results[0].Reason)
	assert.Equal(t, ReasonWrongKind, results[1].Reason)
	assert.True(t, results[2].Accepted)
	assert.True(t, results[3].Accepted)
	assert.Equal(t, dispatch.ActionCheckedOut, results[3].Outcome.Action)
}

func TestResultsStopOnAccept(t *testing.T) {
	app, _ := newTestApp(t, AppConfig{})
	ctx := context.Background()

	event, err := app.Generator.Generate(ctx, admin, TargetSpec{Kind: domain.KindAttendance, Name: "Orientation Day", Location: "Hall A"})
	require.NoError(t, err)

	src := scanner.NewSliceSource("{}", event.Code.Text, event.Code.Text)

	var results []ScanResult
	for result := range app.Scans.Results(ctx, student, domain.KindAttendance, src, StopOnAccept()) {
		results = append(results, result)
	}

	require.Len(t, results, 2)
	assert.False(t, results[0].Accepted)
	assert.True(t, results[1].Accepted)

	// The third capture was never consumed
	remaining, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, event.Code.Text, remaining)
}

func TestResultsReportsUnreadableCaptures(t *testing.T) {
	app, _ := newTestApp(t, AppConfig{})
	src := scanner.NewImageSource(testLogger(), "/nonexistent/capture.png")

	var results []ScanResult
	for result := range app.Scans.Results(context.Background(), student, domain.KindAttendance, src) {
		results = append(results, result)
	}

	require.Len(t, results, 1)
	assert.Equal(t, ReasonUnreadable, results[0].Reason)
	assert.Equal(t, "Unable to read QR code. Please try again.", results[0].Message)
}

func TestResultsSessionSurvivesOversizedLine(t *testing.T) {
	app, _ := newTestApp(t, AppConfig{})
	ctx := context.Background()

	event, err := app.Generator.Generate(ctx, admin, TargetSpec{Kind: domain.KindAttendance, Name: "Orientation Day", Location: "Hall A"})
	require.NoError(t, err)

	input := strings.Repeat("x", 70*1024) + "\n" + event.Code.Text + "\n"
	var results []ScanResult
	for result := range app.Scans.Results(ctx, student, domain.KindAttendance, scanner.NewLineSource(strings.NewReader(input))) {
		results = append(results, result)
	}

	require.Len(t, results, 2)
	assert.Equal(t, ReasonUnreadable, results[0].Reason)
	assert.True(t, results[1].Accepted)
	assert.Equal(t, dispatch.ActionCheckedIn, results[1].Outcome.Action)
}

func TestScanEventsPublished(t *testing.T) {
	app, _ := newTestApp(t, AppConfig{})
	ctx := context.Background()

	var mu sync.Mutex
	counts := map[events.EventType]int{}
	app.Events.SubscribeAll(func(ctx context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		counts[e.Type]++
		return nil
	})

	event, err := app.Generator.Generate(ctx, admin, TargetSpec{Kind: domain.KindAttendance, Name: "Orientation Day", Location: "Hall A"})
	require.NoError(t, err)
	app.Scans.Process(ctx, student, domain.KindAttendance, event.Code.Text)
	app.Scans.Process(ctx, student, domain.KindAttendance, "nope")
	app.Events.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, counts[events.EventCodeGenerated])
	assert.Equal(t, 1, counts[events.EventScanAccepted])
	assert.Equal(t, 1, counts[events.EventScanRejected])
	assert.Equal(t, 1, counts[events.EventAttendanceCheckedIn])
}

func TestStrongTokens(t *testing.T) {
	app, _ := newTestApp(t, AppConfig{StrongTokens: true})
	issued, err := app.Generator.Generate(context.Background(), admin, TargetSpec{Kind: domain.KindCompetency, Name: "CPR", Category: "First aid"})
	require.NoError(t, err)
	assert.Len(t, issued.Code.Payload.Token, qrcode.StrongTokenLength)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
