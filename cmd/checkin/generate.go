package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
	"github.com/DaDevFox/task-systems/checkin-core/internal/service"
)

func newGenerateCommand() *cobra.Command {
	var (
		spec     service.TargetSpec
		validFor string
		start    string
		end      string
		out      string
	)

	cmd := &cobra.Command{
		Use:   "generate <attendance|training|participation|competency> <name>",
		Short: "Create a target and write its QR code as a PNG",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(func(ctx context.Context, app *service.App, session domain.Session, args []string) error {
			if err := requireAdmin(session); err != nil {
				return err
			}

			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			spec.Kind = kind
			spec.Name = strings.Join(args[1:], " ")

			if spec.ValidFor, err = parseValidFor(validFor); err != nil {
				return err
			}
			if spec.StartTime, err = parseTimeFlag("start", start); err != nil {
				return err
			}
			if spec.EndTime, err = parseTimeFlag("end", end); err != nil {
				return err
			}

			issued, err := app.Generator.Generate(ctx, session, spec)
			if err != nil {
				return err
			}

			return writeIssued(issued, out)
		}),
	}

	cmd.Flags().StringVar(&spec.ID, "id", "", "Target ID (generated when empty)")
	cmd.Flags().StringVarP(&spec.Description, "description", "d", "", "Description (required for training modules)")
	cmd.Flags().StringVarP(&spec.Location, "location", "l", "", "Location (required for events and activities)")
	cmd.Flags().StringVar(&start, "start", "", "Event start time (RFC 3339)")
	cmd.Flags().StringVar(&end, "end", "", "Event end time (RFC 3339)")
	cmd.Flags().IntVar(&spec.DurationMinutes, "duration", 0, "Training duration in minutes")
	cmd.Flags().StringVar(&spec.ContentURL, "content-url", "", "Training material URL")
	cmd.Flags().IntVarP(&spec.Points, "points", "p", 0, "Points an activity awards")
	cmd.Flags().StringVarP(&spec.Category, "category", "c", "", "Competency category")
	cmd.Flags().StringVar(&validFor, "valid-for", "", "How long the code stays valid, e.g. 2h, or \"never\"")
	cmd.Flags().StringVarP(&out, "out", "o", "", "PNG output path (default <id>.png)")

	return cmd
}

func newExportCommand() *cobra.Command {
	var (
		kindFlag string
		validFor string
		out      string
	)

	cmd := &cobra.Command{
		Use:   "export [target-id]",
		Short: "Issue a fresh QR code for an existing target",
		Long:  "Issue a fresh QR code for an existing target. Without an ID, pick the target interactively.",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, app *service.App, session domain.Session, args []string) error {
			if err := requireAdmin(session); err != nil {
				return err
			}

			d, err := parseValidFor(validFor)
			if err != nil {
				return err
			}

			var target *domain.Target
			if len(args) == 1 {
				kind, err := domain.ParseKind(kindFlag)
				if err != nil {
					return fmt.Errorf("--kind is required with a target ID: %w", err)
				}
				target = &domain.Target{Kind: kind, ID: args[0]}
			} else {
				target, err = pickTarget(ctx, app, kindFlag)
				if err != nil {
					return err
				}
			}

			issued, err := app.Generator.Regenerate(ctx, session, target.Kind, target.ID, d)
			if err != nil {
				return err
			}

			return writeIssued(issued, out)
		}),
	}

	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "", "Target kind")
	cmd.Flags().StringVar(&validFor, "valid-for", "", "How long the code stays valid, e.g. 2h, or \"never\"")
	cmd.Flags().StringVarP(&out, "out", "o", "", "PNG output path (default <id>.png)")

	return cmd
}

func newTargetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "targets [kind]",
		Short: "List stored targets",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, app *service.App, session domain.Session, args []string) error {
			kinds := domain.Kinds()
			if len(args) == 1 {
				kind, err := domain.ParseKind(args[0])
				if err != nil {
					return err
				}
				kinds = []domain.Kind{kind}
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tID\tNAME\tDETAIL\tLAST ISSUED")
			for _, kind := range kinds {
				targets, err := app.Generator.Targets(ctx, kind)
				if err != nil {
					return err
				}
				for _, t := range targets {
					issued := "-"
					if t.LastIssuedAt != nil {
						issued = t.LastIssuedAt.Local().Format("2006-01-02 15:04")
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Kind, t.ID, t.Name, targetDetail(t), issued)
				}
			}
			return w.Flush()
		}),
	}
}

// pickTarget lets the admin choose a stored target with a fuzzy finder
func pickTarget(ctx context.Context, app *service.App, kindFlag string) (*domain.Target, error) {
	kinds := domain.Kinds()
	if kindFlag != "" {
		kind, err := domain.ParseKind(kindFlag)
		if err != nil {
			return nil, err
		}
		kinds = []domain.Kind{kind}
	}

	var targets []*domain.Target
	for _, kind := range kinds {
		found, err := app.Generator.Targets(ctx, kind)
		if err != nil {
			return nil, err
		}
		targets = append(targets, found...)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets stored yet (run 'checkin generate')")
	}

	idx, err := fuzzyfinder.Find(targets,
		func(i int) string {
			return fmt.Sprintf("[%s] %s", targets[i].Kind, targets[i].Name)
		},
		fuzzyfinder.WithContext(ctx),
		fuzzyfinder.WithPromptString("target> "),
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i < 0 {
				return ""
			}
			t := targets[i]
			return fmt.Sprintf("%s\n\nID: %s\n%s\n\n%s", t.Name, t.ID, targetDetail(t), t.Description)
		}))
	if errors.Is(err, fuzzyfinder.ErrAbort) {
		return nil, fmt.Errorf("no target selected")
	}
	if err != nil {
		return nil, err
	}

	return targets[idx], nil
}

func targetDetail(t *domain.Target) string {
	switch t.Kind {
	case domain.KindAttendance:
		return t.Location
	case domain.KindTraining:
		return fmt.Sprintf("%d min", t.DurationMinutes)
	case domain.KindParticipation:
		return fmt.Sprintf("%s, %d pts", t.Location, t.AwardedPoints())
	case domain.KindCompetency:
		return t.Category
	default:
		return ""
	}
}

func writeIssued(issued *service.Issued, out string) error {
	if out == "" {
		out = issued.Target.ID + ".png"
	}
	if err := os.WriteFile(out, issued.Code.PNG, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	fmt.Printf("%s %q (%s)\n", strings.ToUpper(issued.Target.Kind.TargetNoun()[:1])+issued.Target.Kind.TargetNoun()[1:], issued.Target.Name, issued.Target.ID)
	if expiry, ok := issued.Code.Payload.ExpiryTime(); ok {
		fmt.Printf("Valid until: %s\n", expiry.Local().Format(time.RFC1123))
	}
	fmt.Printf("QR code written to %s\n", out)
	fmt.Printf("Payload: %s\n", issued.Code.Text)
	return nil
}

// parseValidFor reads a Go duration; "never" means no expiry and empty defers to the default
func parseValidFor(raw string) (time.Duration, error) {
	switch raw = strings.TrimSpace(raw); raw {
	case "":
		return 0, nil
	case "never":
		return -1, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid validity %q: use a positive duration like 2h or \"never\"", raw)
	}
	return d, nil
}

func parseTimeFlag(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s time %q: %w", name, raw, err)
	}
	return &t, nil
}
