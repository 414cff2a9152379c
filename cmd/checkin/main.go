package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/DaDevFox/task-systems/checkin-core/internal/config"
	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
	"github.com/DaDevFox/task-systems/checkin-core/internal/logging"
	"github.com/DaDevFox/task-systems/checkin-core/internal/repository"
	"github.com/DaDevFox/task-systems/checkin-core/internal/service"
)

var (
	cfg     *config.Config
	verbose bool
	logger  *logrus.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "checkin",
		Short: "QR check-in for attendance, training, participation and competencies",
		Long: "Generate QR codes for events, training modules, activities and competencies, " +
			"then scan them to check in, track training, earn points and record assessments.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initClient()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newTargetsCommand())
	rootCmd.AddCommand(newScanCommand())
	rootCmd.AddCommand(newCompleteCommand())
	rootCmd.AddCommand(newAssessCommand())
	rootCmd.AddCommand(newPointsCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newCertificateCommand())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func initClient() {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logging.SetOutput(os.Stderr)
	logger = logging.Configure(level, "text", false)

	loaded, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Warn("failed to load config, using defaults")
	}
	cfg = loaded
}

// openApp opens the local store named by the config and wires the services over it
func openApp() (*service.App, error) {
	dbType, err := repository.ParseDatabaseType(cfg.DatabaseType)
	if err != nil {
		return nil, err
	}

	var path string
	switch dbType {
	case repository.DatabaseTypeBolt:
		path = filepath.Join(cfg.DataDir, "checkin")
	case repository.DatabaseTypeBadger:
		path = filepath.Join(cfg.DataDir, "badger")
	}

	store, err := repository.NewStore(path, dbType, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store in %s: %w", dbType, cfg.DataDir, err)
	}

	loc, err := config.LoadLocation(cfg.Timezone)
	if err != nil {
		store.Close()
		return nil, err
	}

	validity, err := parseValidFor(cfg.DefaultValidity)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("invalid default_validity in config: %w", err)
	}
	if validity < 0 {
		validity = 0
	}

	return service.NewApp(store, service.AppConfig{
		DefaultValidity: validity,
		StrongTokens:    cfg.StrongTokens,
		Location:        loc,
	}, logger), nil
}

// withApp runs fn against an open app and the configured session
func withApp(fn func(ctx context.Context, app *service.App, session domain.Session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		session, err := cfg.Session()
		if err != nil {
			return err
		}

		app, err := openApp()
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(); err != nil {
				logger.WithError(err).Warn("failed to close store")
			}
		}()

		return fn(cmd.Context(), app, session, args)
	}
}

func requireAdmin(session domain.Session) error {
	if session.Role != domain.RoleAdmin {
		return fmt.Errorf("this command requires the admin role (run 'checkin config set-role admin')")
	}
	return nil
}
