// Package commands implements the conduit-admin command line
package commands

import (
	"context"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/conduit-admin/internal/cli/config"
	"github.com/conduit-lang/conduit-admin/internal/cli/ui"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	configPath string
	noColor    bool
}

func (g *globalOptions) loadConfig() (*config.Config, error) {
	return config.Load(g.configPath)
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "conduit-admin",
		Short: "Admin dashboard for SQL databases",
		Long: color.CyanString(`conduit-admin - an admin dashboard for SQL databases

Describe your tables in a YAML manifest and get list, filter, create, update,
delete and export pages behind a login.

Configuration is read from conduit-admin.yml and CONDUIT_ADMIN_* variables.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ./conduit-admin.yml)")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand(opts))
	rootCmd.AddCommand(NewServeCommand(opts))
	rootCmd.AddCommand(NewMigrateCommand(opts))
	rootCmd.AddCommand(NewCreateAdminCommand(opts))
	rootCmd.AddCommand(NewCheckCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}
			ui.KeyValues(cmd.OutOrStdout(), opts.noColor,
				[2]string{"conduit-admin version", Version},
				[2]string{"Git commit", GitCommit},
				[2]string{"Build date", BuildDate},
				[2]string{"Go version", goVer},
			)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprint(rootCmd.ErrOrStderr(), ui.Format(ui.Message{Problem: "Error: " + err.Error()}))
		return err
	}
	return nil
}
