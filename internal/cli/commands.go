package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"truckgate/internal/checkpoint"
	"truckgate/internal/checkpoint/models"
	"truckgate/pkg/platform/fsutil"
)

// NewIssueCommand creates the issue command.
func NewIssueCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "issue <driver name>",
		Short:         "Register a driver and generate their code image",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			stores, svc, err := rootOpts.open(cmd)
			if err != nil {
				return out.Failure(nil, err)
			}
			defer stores.Close()
			res, err := svc.Issue(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return out.Failure(nil, WrapExitError(ExitFailure, "issue code", err))
			}
			view := issueView{Code: res.Code, QRImage: res.QRImage, DriverName: res.DriverName, GeneratedAt: res.GeneratedAt}
			return out.Success(view, func(w io.Writer) {
				fmt.Fprintf(w, "Issued %s to %s\n", res.Code, res.DriverName)
				fmt.Fprintf(w, "Image: %s\n", res.QRImage)
			})
		},
	}
}

type issueView struct {
	Code        string    `json:"qr_code"`
	QRImage     string    `json:"qr_image"`
	DriverName  string    `json:"driver_name"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NewValidateCommand creates the validate command. A refused code exits 1.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "validate <payload>",
		Short:         "Validate a scanned payload and record the attempt",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			stores, svc, err := rootOpts.open(cmd)
			if err != nil {
				return out.Failure(nil, err)
			}
			defer stores.Close()
			res := svc.Validate(cmd.Context(), args[0])
			view := validationView{
				Authorized: res.Authorized,
				DriverName: res.DriverName,
				Code:       res.Code,
				Message:    res.Message,
				Status:     res.Outcome.String(),
			}
			if !res.Authorized {
				return out.Failure(view, NewExitError(ExitFailure, res.Outcome.String()+": "+res.Message))
			}
			return out.Success(view, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s (%s)\n", res.Outcome, res.DriverName, res.Message)
			})
		},
	}
}

type validationView struct {
	Authorized bool   `json:"authorized"`
	DriverName string `json:"driver_name"`
	Code       string `json:"qr_code"`
	Message    string `json:"message"`
	Status     string `json:"status"`
}

// NewLogsCommand creates the logs command.
func NewLogsCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:           "logs",
		Short:         "Show entry statistics and the most recent attempts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			stores, _, err := rootOpts.open(cmd)
			if err != nil {
				return out.Failure(nil, err)
			}
			defer stores.Close()
			ctx := cmd.Context()
			stats, err := stores.Entries.Stats(ctx)
			if err != nil {
				return out.Failure(nil, WrapExitError(ExitCommandError, "read entry log", err))
			}
			entries, err := stores.Entries.Recent(ctx, limit)
			if err != nil {
				return out.Failure(nil, WrapExitError(ExitCommandError, "read entry log", err))
			}
			view := logsView{Stats: stats, Entries: entries}
			return out.Success(view, func(w io.Writer) {
				fmt.Fprintf(w, "total=%d valid=%d invalid=%d system_errors=%d\n",
					stats.Total, stats.Valid, stats.Invalid, stats.SystemErrors)
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIMESTAMP\tSTATUS\tDRIVER\tCODE\tNOTES")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						e.Timestamp.Format(time.RFC3339), e.Status, e.DriverName, e.QRCode, e.Notes)
				}
				_ = tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of recent entries to show (0 for all)")
	return cmd
}

type logsView struct {
	Stats   models.Stats      `json:"stats"`
	Entries []models.LogEntry `json:"entries"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:           "export",
		Short:         "Write the tabular entry log to stdout or a file",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			stores, svc, err := rootOpts.open(cmd)
			if err != nil {
				return out.Failure(nil, err)
			}
			defer stores.Close()
			if output == "" || output == "-" {
				if err := svc.ExportCSV(cmd.Context(), cmd.OutOrStdout()); err != nil {
					return out.Failure(nil, WrapExitError(ExitCommandError, "export entry log", err))
				}
				return nil
			}
			if err := exportToFile(cmd.Context(), svc, output); err != nil {
				return out.Failure(nil, WrapExitError(ExitCommandError, "export entry log", err))
			}
			return out.Success(map[string]string{"path": output}, func(w io.Writer) {
				fmt.Fprintf(w, "Wrote %s\n", output)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file (default stdout)")
	return cmd
}

type csvExporter interface {
	ExportCSV(ctx context.Context, w io.Writer) error
}

func exportToFile(ctx context.Context, svc csvExporter, path string) error {
	var buf strings.Builder
	if err := svc.ExportCSV(ctx, &buf); err != nil {
		return err
	}
	return fsutil.AtomicWrite(path, []byte(buf.String()), 0o644)
}

// NewVerifyCommand creates the verify command. It exits 1 when the JSON and
// tabular entry logs disagree.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "verify",
		Short:         "Check that the stores load and the entry log representations agree",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			stores, err := openForVerify(rootOpts)
			if err != nil {
				return out.Failure(nil, WrapExitError(ExitFailure, "verify", err))
			}
			defer stores.Close()
			ctx := cmd.Context()
			if err := stores.Entries.Verify(ctx); err != nil {
				return out.Failure(nil, WrapExitError(ExitFailure, "verify", err))
			}
			drivers, err := stores.Registry.Count(ctx)
			if err != nil {
				return out.Failure(nil, WrapExitError(ExitFailure, "verify", err))
			}
			stats, err := stores.Entries.Stats(ctx)
			if err != nil {
				return out.Failure(nil, WrapExitError(ExitFailure, "verify", err))
			}
			report := map[string]int{"drivers": drivers, "entries": stats.Total}
			return out.Success(report, func(w io.Writer) {
				fmt.Fprintf(w, "OK: %d drivers, %d entries\n", drivers, stats.Total)
			})
		},
	}
}

// openForVerify refuses to create anything: a missing data directory is an error.
func openForVerify(o *RootOptions) (*checkpoint.Stores, error) {
	if _, err := os.Stat(o.DataDir); err != nil {
		return nil, err
	}
	return checkpoint.OpenStores(o.storage())
}
