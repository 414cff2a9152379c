package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
	"github.com/DaDevFox/task-systems/checkin-core/internal/scanner"
	"github.com/DaDevFox/task-systems/checkin-core/internal/service"
	"github.com/DaDevFox/task-systems/checkin-core/internal/workflow"
)

func newScanCommand() *cobra.Command {
	var (
		images []string
		once   bool
	)

	cmd := &cobra.Command{
		Use:   "scan <attendance|training|participation|competency>",
		Short: "Scan QR codes in one context",
		Long: "Scan QR codes in one context. Payload text is read line by line from stdin " +
			"(a USB scanner in keyboard mode works) unless --image files are given.",
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *service.App, session domain.Session, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}

			var src scanner.Source
			if len(images) > 0 {
				src = scanner.NewImageSource(logger, images...)
			} else {
				src = scanner.NewLineSource(os.Stdin)
				fmt.Fprintf(os.Stderr, "Scanning %s codes as %s. Ctrl-D to finish.\n", kind, session.UserName)
			}

			var opts []service.ResultsOption
			if once {
				opts = append(opts, service.StopOnAccept())
			}

			accepted, rejected := 0, 0
			for result := range app.Scans.Results(ctx, session, kind, src, opts...) {
				if result.Accepted {
					accepted++
					fmt.Printf("✓ %s\n", result.Message)
				} else {
					rejected++
					fmt.Printf("✗ %s\n", result.Message)
				}
			}

			fmt.Fprintf(os.Stderr, "%d accepted, %d rejected\n", accepted, rejected)
			return nil
		}),
	}

	cmd.Flags().StringSliceVarP(&images, "image", "i", nil, "Decode QR codes from image files instead of stdin")
	cmd.Flags().BoolVar(&once, "once", false, "Stop after the first accepted scan")

	return cmd
}

func newCompleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <module-id>",
		Short: "Mark a started training module as completed",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *service.App, session domain.Session, args []string) error {
			outcome, err := app.Training.Complete(ctx, session, args[0])
			if err != nil {
				if msg := workflow.UserMessage(err); msg != "" {
					return fmt.Errorf("%s", msg)
				}
				return err
			}
			fmt.Println(outcome.Message)
			if outcome.Certificate != nil {
				fmt.Printf("Verification code: %s\n", outcome.Certificate.VerificationCode)
			}
			return nil
		}),
	}
}

func newAssessCommand() *cobra.Command {
	var assessment workflow.Assessment
	var status string

	cmd := &cobra.Command{
		Use:   "assess [payload]",
		Short: "Record a competency assessment from a scanned competency code",
		Long:  "Record a competency assessment. The scanned payload is taken from the argument or the first line of stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, app *service.App, session domain.Session, args []string) error {
			raw, err := payloadArg(args, os.Stdin)
			if err != nil {
				return err
			}

			payload, rejected := app.Scans.Validate(domain.KindCompetency, raw)
			if rejected != nil {
				return fmt.Errorf("%s", rejected.Message)
			}

			assessment.Status = domain.AssessmentStatus(strings.ToLower(strings.TrimSpace(status)))
			outcome, err := app.Competency.RecordAssessment(ctx, session, payload, assessment)
			if err != nil {
				if msg := workflow.UserMessage(err); msg != "" {
					return fmt.Errorf("%s: %w", msg, err)
				}
				return err
			}

			fmt.Println(outcome.Message)
			return nil
		}),
	}

	cmd.Flags().StringVar(&assessment.StudentID, "student-id", "", "Student ID (generated when empty)")
	cmd.Flags().StringVar(&assessment.StudentName, "student", "", "Student name")
	cmd.Flags().StringVar(&status, "status", string(domain.AssessmentAchieved), "achieved, in-progress or needs-improvement")
	cmd.Flags().StringVar(&assessment.Notes, "notes", "", "Assessment notes")
	cmd.Flags().StringVar(&assessment.EvidenceURL, "evidence-url", "", "Link to supporting evidence")
	_ = cmd.MarkFlagRequired("student")

	return cmd
}

func newPointsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "points",
		Short: "Show participation points earned by the current user",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, app *service.App, session domain.Session, args []string) error {
			total, err := app.Participation.TotalPoints(ctx, session.UserID)
			if err != nil {
				return err
			}
			records, err := app.Repo.ListParticipation(ctx, session.UserID, "")
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t+%d\n", r.Timestamp.Local().Format("2006-01-02 15:04"), r.ActivityName, r.Points)
			}
			fmt.Fprintf(w, "Total\t\t%d\n", total)
			return w.Flush()
		}),
	}
}

func newHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show attendance history for the current user",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, app *service.App, session domain.Session, args []string) error {
			records, err := app.Repo.ListAttendance(ctx, session.UserID)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No attendance recorded yet")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EVENT\tCHECKED IN\tCHECKED OUT\tSTATUS")
			for _, r := range records {
				out := "-"
				if r.CheckOutTime != nil {
					out = r.CheckOutTime.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.EventName, r.CheckInTime.Local().Format("2006-01-02 15:04"), out, r.Status)
			}
			return w.Flush()
		}),
	}
}

func payloadArg(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read payload: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("no payload given (pass it as an argument or pipe it on stdin)")
	}
	return line, nil
}
