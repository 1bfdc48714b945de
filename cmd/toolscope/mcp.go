package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/toolscope/internal/domain/tool"
	"github.com/matiasleandrokruk/toolscope/internal/infra/mcpserver"
	"github.com/matiasleandrokruk/toolscope/internal/infra/sqlite"
)

func mcpCmd(a *app) *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the classifier as MCP tools over stdio",
		Long: `Runs an MCP server on stdin/stdout exposing filter_search_tools and
build_tools_context. With --workspace, catalog_search_tools is added and filter
calls are recorded as classification runs of that workspace. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			classifier, err := newClassifier(a)
			if err != nil {
				return err
			}

			var opts []mcpserver.Option
			if workspaceID != "" {
				db, err := sqlite.Open(a.cfg.DBPath, a.logger)
				if err != nil {
					return err
				}
				defer db.Close()
				opts = append(opts, mcpserver.WithCatalog(tool.NewToolRegistry(db, classifier), workspaceID))
			}

			return mcpserver.Serve(ctx, mcpserver.New(classifier, a.logger, opts...))
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "Workspace whose catalog is exposed")
	return cmd
}
