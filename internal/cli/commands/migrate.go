package commands

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/conduit-admin/internal/cli/ui"
	"github.com/conduit-lang/conduit-admin/internal/logging"
	"github.com/conduit-lang/conduit-admin/internal/orm/migrate"
)

// categorizeDatabaseError returns a short message for common database errors;
// verbose returns the full error
func categorizeDatabaseError(err error, verbose bool) string {
	if verbose {
		return err.Error()
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "dirty"):
		return "database is dirty after a failed migration - fix the schema and use --verbose for details"
	case strings.Contains(errStr, "syntax"):
		return "SQL syntax error - use --verbose for details"
	case strings.Contains(errStr, "already exists"):
		return "object already exists - use --verbose for details"
	case strings.Contains(errStr, "permission denied"), strings.Contains(errStr, "access denied"):
		return "permission denied - check database user privileges"
	case strings.Contains(errStr, "connect"), strings.Contains(errStr, "no such host"):
		return "cannot reach the database - check database.url"
	}
	return "migration failed - use --verbose for details"
}

// NewMigrateCommand creates the migrate command
func NewMigrateCommand(opts *globalOptions) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the admins table",
		Long: `Apply or roll back the bundled migrations that create the admins table.

Available subcommands:
  up       - Apply all pending migrations
  down     - Drop the admins table
  version  - Show the applied migration version`,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed error messages")

	cmd.AddCommand(newMigrateUpCommand(opts, &verbose))
	cmd.AddCommand(newMigrateDownCommand(opts, &verbose))
	cmd.AddCommand(newMigrateVersionCommand(opts))

	return cmd
}

// withRunner opens the configured database and hands a migration runner to fn
func withRunner(cmd *cobra.Command, opts *globalOptions, fn func(*migrate.Runner) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	conn, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	runner, err := migrate.New(conn, logger)
	if err != nil {
		return err
	}
	return fn(runner)
}

func newMigrateUpCommand(opts *globalOptions, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, opts, func(r *migrate.Runner) error {
				if err := r.Up(); err != nil {
					return fmt.Errorf("%s", categorizeDatabaseError(err, *verbose))
				}
				ui.Success(cmd.OutOrStdout(), "Database is up to date", opts.noColor)
				return nil
			})
		},
	}
}

func newMigrateDownCommand(opts *globalOptions, verbose *bool) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				confirmed := false
				prompt := &survey.Confirm{
					Message: "This drops the admins table and every account in it. Continue?",
					Default: false,
				}
				if err := survey.AskOne(prompt, &confirmed); err != nil {
					return err
				}
				if !confirmed {
					ui.Warning(cmd.OutOrStdout(), "Rollback cancelled", opts.noColor)
					return nil
				}
			}
			return withRunner(cmd, opts, func(r *migrate.Runner) error {
				if err := r.Down(); err != nil {
					return fmt.Errorf("%s", categorizeDatabaseError(err, *verbose))
				}
				ui.Success(cmd.OutOrStdout(), "Migrations rolled back", opts.noColor)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func newMigrateVersionCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the applied migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, opts, func(r *migrate.Runner) error {
				v, dirty, err := r.Version()
				if err != nil {
					return err
				}
				ui.KeyValues(cmd.OutOrStdout(), opts.noColor,
					[2]string{"Version", fmt.Sprint(v)},
					[2]string{"Dirty", fmt.Sprint(dirty)},
				)
				return nil
			})
		},
	}
}
