package main

import (
	"fmt"

	"github.com/spf13/cobra"

	domainauth "github.com/matiasleandrokruk/toolscope/internal/domain/auth"
	"github.com/matiasleandrokruk/toolscope/internal/infra/sqlite"
)

func clientCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage API clients",
	}

	var workspace, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Register an API client, creating its workspace if needed",
		Long: `Prints the client id and secret. The secret is shown once; exchange both
for a bearer token at POST /auth/token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := sqlite.Open(a.cfg.DBPath, a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			creds, err := domainauth.NewAuthService(db).RegisterClient(cmd.Context(), domainauth.RegisterClientInput{
				WorkspaceName: workspace,
				ClientName:    name,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "workspace_id: %s\nclient_id: %s\nclient_secret: %s\n",
				creds.WorkspaceID, creds.ClientID, creds.Secret)
			return err
		},
	}
	create.Flags().StringVar(&workspace, "workspace", "", "Workspace name")
	create.Flags().StringVar(&name, "name", "", "Client name")
	_ = create.MarkFlagRequired("workspace")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	return cmd
}
