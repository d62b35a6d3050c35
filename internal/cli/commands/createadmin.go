package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/conduit-admin/internal/admin/models"
	"github.com/conduit-lang/conduit-admin/internal/cli/ui"
)

// ErrPasswordMismatch is returned when the two password prompts differ
var ErrPasswordMismatch = errors.New("passwords do not match")

// askFunc asks survey questions; tests replace it
var askFunc = func(qs []*survey.Question, response interface{}) error {
	return survey.Ask(qs, response)
}

type adminAnswers struct {
	Username string
	Password string
	Confirm  string
}

// NewCreateAdminCommand creates the createadmin command
func NewCreateAdminCommand(opts *globalOptions) *cobra.Command {
	var answers adminAnswers

	cmd := &cobra.Command{
		Use:   "createadmin",
		Short: "Create an admin account",
		Long: `Create an account that can sign in to the dashboard.

Missing --username or --password values are asked for interactively.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := promptAdmin(&answers); err != nil {
				return err
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			conn, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			store := models.NewAdminStore(conn.DB, conn.Dialect)
			return createAdmin(cmd.Context(), cmd.OutOrStdout(), store, answers, opts.noColor)
		},
	}

	cmd.Flags().StringVarP(&answers.Username, "username", "u", "", "admin username")
	cmd.Flags().StringVarP(&answers.Password, "password", "p", "", "admin password")

	return cmd
}

// promptAdmin fills in what the flags left empty
func promptAdmin(a *adminAnswers) error {
	var qs []*survey.Question
	if a.Username == "" {
		qs = append(qs, &survey.Question{
			Name:     "username",
			Prompt:   &survey.Input{Message: "Username:"},
			Validate: survey.ComposeValidators(survey.Required, survey.MaxLength(50)),
		})
	}
	if a.Password == "" {
		qs = append(qs,
			&survey.Question{
				Name:     "password",
				Prompt:   &survey.Password{Message: "Password:"},
				Validate: survey.Required,
			},
			&survey.Question{
				Name:   "confirm",
				Prompt: &survey.Password{Message: "Confirm password:"},
			},
		)
	}
	if len(qs) == 0 {
		return nil
	}

	prompted := a.Password == ""
	if err := askFunc(qs, a); err != nil {
		return err
	}
	if prompted && a.Password != a.Confirm {
		return ErrPasswordMismatch
	}
	return nil
}

func createAdmin(ctx context.Context, w io.Writer, store *models.AdminStore, a adminAnswers, noColor bool) error {
	created, err := store.Create(ctx, a.Username, a.Password)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	ui.Success(w, fmt.Sprintf("Admin %s created (id %d)", created.Username, created.ID), noColor)
	return nil
}
