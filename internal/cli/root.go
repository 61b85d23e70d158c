// Package cli implements checkpointctl, the offline administration tool that
// works directly against a checkpoint data directory.
package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"truckgate/internal/checkpoint"
	"truckgate/internal/checkpoint/service"
	"truckgate/internal/platform/config"
	"truckgate/internal/platform/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DataDir    string
	StaticDir  string
	Format     string // "json" | "text"
	Verbose    bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for checkpointctl.
func NewRootCommand() *cobra.Command {
	defaults := config.Default().Storage
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "checkpointctl",
		Short: "Administer a truck entry checkpoint",
		Long:  "Issue driver codes, validate payloads and inspect the entry log of a checkpoint data directory.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.applyConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "server YAML config to take the storage directories from")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", defaults.DataDir, "directory holding drivers.json and the entry log")
	cmd.PersistentFlags().StringVar(&opts.StaticDir, "static-dir", defaults.StaticDir, "directory holding generated code images")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log service activity to stderr")

	cmd.AddCommand(NewIssueCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewLogsCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))

	return cmd
}

// applyConfig fills the storage directories from the server config file.
// Explicit --data-dir and --static-dir flags win.
func (o *RootOptions) applyConfig(cmd *cobra.Command) error {
	if o.ConfigPath == "" {
		return nil
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cmd.Flags().Changed("data-dir") {
		o.DataDir = cfg.Storage.DataDir
	}
	if !cmd.Flags().Changed("static-dir") {
		o.StaticDir = cfg.Storage.StaticDir
	}
	return nil
}

func (o *RootOptions) storage() config.Storage {
	return config.Storage{DataDir: o.DataDir, StaticDir: o.StaticDir}
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
	}
}

// open loads the stores and builds a service over them.
func (o *RootOptions) open(cmd *cobra.Command) (*checkpoint.Stores, *checkpoint.Service, error) {
	stores, err := checkpoint.OpenStores(o.storage())
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "open data directory", err)
	}
	var w io.Writer = io.Discard
	if o.Verbose {
		w = cmd.ErrOrStderr()
	}
	log := logger.NewWithWriter(w, "debug", "text")
	return stores, checkpoint.NewService(stores, service.WithLogger(log)), nil
}
