// Package cli implements the reportctl command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"timereport/api/internal/app"
	"timereport/api/internal/report"
)

// Generator produces reports for a validated request.
type Generator interface {
	GenerateReports(ctx context.Context, input app.ReportRequest) ([]report.UserReport, error)
}

// Factory builds a Generator from an optional config file path.
type Factory func(configPath string) (Generator, error)

// Options wires the command to its collaborators.
type Options struct {
	NewGenerator Factory
	// IsTerminal reports whether stdout is a terminal.
	IsTerminal func() bool
}

func NewRootCmd(opts Options) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "reportctl",
		Short:         "Summarize Redmine time entries per user",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (environment variables take precedence)")
	root.AddCommand(newGenerateCmd(opts, &configPath))
	return root
}

func newGenerateCmd(opts Options, configPath *string) *cobra.Command {
	var (
		users    []string
		from, to string
		raw      bool
	)

	cmd := &cobra.Command{
		Use:     "generate",
		Short:   "Print per-user reports of issues worked on in a date range",
		Example: "  reportctl generate --users 12,17 --from 2024-01-01 --to 2024-01-31",
		RunE: func(cmd *cobra.Command, args []string) error {
			userIDs, err := parseUserIDs(users)
			if err != nil {
				return err
			}

			gen, err := opts.NewGenerator(*configPath)
			if err != nil {
				return err
			}

			reports, err := gen.GenerateReports(cmd.Context(), app.ReportRequest{UserIDs: userIDs, From: from, To: to})
			if err != nil {
				return err
			}

			markdown := formatReports(reports)
			if raw || opts.IsTerminal == nil || !opts.IsTerminal() {
				_, err = io.WriteString(cmd.OutOrStdout(), markdown)
				return err
			}
			return renderTerminal(cmd.OutOrStdout(), markdown)
		},
	}

	cmd.Flags().StringSliceVar(&users, "users", nil, "comma-separated Redmine user ids")
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day (inclusive), YYYY-MM-DD")
	cmd.Flags().BoolVar(&raw, "raw", false, "print raw markdown even on a terminal")
	_ = cmd.MarkFlagRequired("users")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func parseUserIDs(values []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func formatReports(reports []report.UserReport) string {
	var b strings.Builder
	for _, r := range reports {
		fmt.Fprintf(&b, "## User %d\n\n", r.UserID)
		if r.Report == "" {
			b.WriteString("_No time entries._\n\n")
			continue
		}
		b.WriteString(r.Report)
	}
	return b.String()
}

func renderTerminal(w io.Writer, markdown string) error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
