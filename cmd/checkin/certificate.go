package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
	"github.com/DaDevFox/task-systems/checkin-core/internal/service"
)

func newCertificateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certificate",
		Short: "Show, verify and design training completion certificates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <module-id>",
		Short: "Show your certificate for a completed training module",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *service.App, session domain.Session, args []string) error {
			certificate, err := app.Certificates.Find(ctx, session.UserID, args[0])
			if err != nil {
				return fmt.Errorf("no certificate for %s (complete the module first): %w", args[0], err)
			}
			printCertificate(os.Stdout, certificate)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "verify <code>",
		Short: "Look a certificate up by its verification code",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *service.App, session domain.Session, args []string) error {
			certificate, err := app.Certificates.Verify(ctx, args[0])
			if err != nil {
				return fmt.Errorf("certificate %s not found: %w", args[0], err)
			}
			printCertificate(os.Stdout, certificate)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "templates",
		Short: "List certificate templates",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, app *service.App, session domain.Session, args []string) error {
			templates, err := app.Certificates.Templates(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tLAYOUT\tDEFAULT")
			if len(templates) == 0 {
				fallback := domain.FallbackTemplate()
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", fallback.ID, fallback.Name, fallback.Layout, "built-in")
			}
			for _, t := range templates {
				def := ""
				if t.IsDefault {
					def = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Layout, def)
			}
			return w.Flush()
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add-template <file.json>",
		Short: "Store a certificate template read from a JSON file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *service.App, session domain.Session, args []string) error {
			if err := requireAdmin(session); err != nil {
				return err
			}

			template, err := readTemplate(args[0])
			if err != nil {
				return err
			}
			if err := app.Certificates.SaveTemplate(ctx, session, template); err != nil {
				return err
			}

			fmt.Printf("Template %q saved (%s)\n", template.Name, template.ID)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-default <template-id>",
		Short: "Use a stored template for new certificates",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *service.App, session domain.Session, args []string) error {
			if err := requireAdmin(session); err != nil {
				return err
			}

			template, err := app.Certificates.SetDefault(ctx, session, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("New certificates use %q\n", template.Name)
			return nil
		}),
	})

	return cmd
}

func readTemplate(path string) (*domain.CertificateTemplate, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open template: %w", err)
		}
		defer f.Close()
		r = f
	}

	return decodeTemplate(r)
}

func decodeTemplate(r io.Reader) (*domain.CertificateTemplate, error) {
	var template domain.CertificateTemplate
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&template); err != nil {
		return nil, fmt.Errorf("invalid template JSON: %w", err)
	}
	return &template, nil
}

func printCertificate(w io.Writer, c *domain.Certificate) {
	fmt.Fprintf(w, "Certificate of Completion\n\n")
	fmt.Fprintf(w, "  %s\n", c.UserName)
	fmt.Fprintf(w, "  completed %s\n", c.ModuleName)
	fmt.Fprintf(w, "  on %s\n\n", c.CompletedAt.Local().Format(time.DateOnly))
	fmt.Fprintf(w, "Verification code: %s\n", c.VerificationCode)
}
