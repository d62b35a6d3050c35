package commands

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/conduit-admin/internal/admin"
	"github.com/conduit-lang/conduit-admin/internal/admin/manifest"
	"github.com/conduit-lang/conduit-admin/internal/admin/models"
	"github.com/conduit-lang/conduit-admin/internal/admin/resources"
	"github.com/conduit-lang/conduit-admin/internal/cli/ui"
	"github.com/conduit-lang/conduit-admin/internal/orm/db"
	"github.com/conduit-lang/conduit-admin/internal/orm/schema"
)

// NewCheckCommand creates the check command
func NewCheckCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [manifest]",
		Short: "Validate the manifest",
		Long: `Load the manifest and list the models and navigation it describes.

The database is not contacted. The manifest path defaults to the manifest
setting of the configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			path := cfg.Manifest
			if len(args) == 1 {
				path = args[0]
			}

			driver, dsn, dialect, err := db.Resolve(cfg.Database.URL, cfg.Database.Driver)
			if err != nil {
				return err
			}
			// sql.Open does not connect; filters only query at render time
			conn, err := sql.Open(driver, dsn)
			if err != nil {
				return err
			}
			defer conn.Close()

			m, err := manifest.Load(path)
			if err != nil {
				return err
			}
			registry := schema.NewRegistry()
			if err := registry.Register(models.AdminSchema()); err != nil {
				return err
			}
			built, err := m.Build(manifest.BuildOptions{
				Registry: registry,
				DB:       conn,
				Dialect:  dialect,
				Related:  admin.RelatedOptions(registry, conn, dialect),
			})
			if err != nil {
				return err
			}
			nav, err := resources.Navigation(cfg.Admin.Path, built.Resources)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			modelTable := ui.NewTable(out, opts.noColor, "MODEL", "TABLE", "COLUMNS")
			for _, name := range registry.List() {
				s, _ := registry.Get(name)
				modelTable.AddRow(s.Name, s.Table, fmt.Sprint(len(s.Columns)))
			}
			modelTable.Render()
			fmt.Fprintln(out)

			links := ui.NewTable(out, opts.noColor, "NAVIGATION", "URL")
			for _, item := range nav {
				addNav(links, item, 0)
			}
			links.Render()
			fmt.Fprintln(out)

			ui.Success(out, path+" is valid", opts.noColor)
			return nil
		},
	}
}

func addNav(t *ui.Table, item resources.NavItem, depth int) {
	t.AddRow(strings.Repeat("  ", depth)+item.Label, item.URL)
	for _, child := range item.Children {
		addNav(t, child, depth+1)
	}
}
