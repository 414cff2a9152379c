package service

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/checkin-core/internal/dispatch"
	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
	"github.com/DaDevFox/task-systems/checkin-core/internal/events"
	"github.com/DaDevFox/task-systems/checkin-core/internal/qrcode"
	"github.com/DaDevFox/task-systems/checkin-core/internal/repository"
	"github.com/DaDevFox/task-systems/checkin-core/internal/workflow"
)

// AppConfig holds the knobs shared by the server and the CLI
type AppConfig struct {
	DefaultValidity time.Duration
	StrongTokens    bool
	Location        *time.Location
	Now             func() time.Time
}

// App bundles every service wired against one store
type App struct {
	Repo          *repository.Repository
	Events        *events.PubSub
	Generator     *GeneratorService
	Scans         *ScanService
	Attendance    *workflow.Attendance
	Training      *workflow.Training
	Certificates  *workflow.Certificates
	Participation *workflow.Participation
	Competency    *workflow.Competency
}

// NewApp wires encoder, validator, workflows and services over store
func NewApp(store repository.Store, cfg AppConfig, logger *logrus.Logger) *App {
	if logger == nil {
		logger = logrus.New()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	repo := repository.NewRepository(store, logger)
	pubsub := events.NewPubSub(logger)

	tokens := qrcode.LegacyTokens()
	if cfg.StrongTokens {
		tokens = qrcode.StrongTokens()
	}
	encoder := qrcode.NewEncoder(logger, qrcode.WithEncoderClock(now), qrcode.WithTokenGenerator(tokens))
	validator := qrcode.NewValidator(logger, qrcode.WithValidatorClock(now))

	wfOpts := []workflow.Option{workflow.WithClock(now), workflow.WithLocation(cfg.Location)}
	certificates := workflow.NewCertificates(repo, nil, pubsub, logger, wfOpts...)
	app := &App{
		Repo:          repo,
		Events:        pubsub,
		Attendance:    workflow.NewAttendance(repo, pubsub, logger, wfOpts...),
		Training:      workflow.NewTraining(repo, certificates, pubsub, logger, wfOpts...),
		Certificates:  certificates,
		Participation: workflow.NewParticipation(repo, repo, pubsub, logger, wfOpts...),
		Competency:    workflow.NewCompetency(repo, pubsub, logger, wfOpts...),
	}

	dispatcher := dispatch.NewDispatcher(logger)
	dispatcher.Register(domain.KindAttendance, app.Attendance)
	dispatcher.Register(domain.KindTraining, app.Training)
	dispatcher.Register(domain.KindParticipation, app.Participation)
	dispatcher.Register(domain.KindCompetency, app.Competency)

	app.Generator = NewGeneratorService(repo, encoder, pubsub, logger,
		WithDefaultValidity(cfg.DefaultValidity),
		WithGeneratorClock(now),
	)
	app.Scans = NewScanService(validator, dispatcher, pubsub, logger)

	return app
}

// Close waits for in-flight event handlers and closes the store
func (a *App) Close() error {
	a.Events.Wait()
	return a.Repo.Close()
}
