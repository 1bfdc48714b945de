package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/toolscope/internal/domain/tool"
	"github.com/matiasleandrokruk/toolscope/internal/infra/config"
	"github.com/matiasleandrokruk/toolscope/pkg/auth"
)

func envCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage the local env file",
	}

	var (
		force    bool
		port     string
		keywords string
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write an env file with defaults and a fresh JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := auth.GenerateSecret()
			if err != nil {
				return err
			}

			overrides := map[string]string{}
			if a.dbPath != "" {
				overrides[config.EnvDBPath] = a.dbPath
			}
			if port != "" {
				overrides[config.EnvPort] = port
			}
			if keywords != "" {
				overrides[config.EnvKeywordsFile] = keywords
			}

			if err := config.InitEnvFile(a.envFile, secret, overrides, force); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "wrote %s\n", a.envFile); err != nil {
				return err
			}
			if keywords == "" {
				return nil
			}

			if _, err := os.Stat(keywords); err == nil && !force {
				_, err = fmt.Fprintf(out, "kept existing %s\n", keywords)
				return err
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("stat keywords file: %w", err)
			}
			// Seed the file with the built-in vocabularies so it can be edited in place.
			if err := config.WriteKeywords(keywords, config.Keywords{
				Search: tool.SearchKeywords(),
				Action: tool.ActionKeywords(),
			}); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "wrote %s\n", keywords)
			return err
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Rewrite an existing env file, keeping its other values, and reset the keywords file")
	initCmd.Flags().StringVar(&port, "port", "", "HTTP port")
	initCmd.Flags().StringVar(&keywords, "keywords", "", "Also write the default vocabularies to this YAML file")

	cmd.AddCommand(initCmd)
	return cmd
}
