// Package main is the toolscope entry point: the catalog HTTP server, the MCP stdio
// server and one-shot classification commands.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/toolscope/internal/infra/config"
	"github.com/matiasleandrokruk/toolscope/internal/infra/logging"
	"github.com/matiasleandrokruk/toolscope/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// app carries what PersistentPreRunE resolves for every subcommand.
type app struct {
	envFile string
	dbPath  string
	cfg     config.Config
	logger  zerolog.Logger
}

func run(args []string, in io.Reader, out, errOut io.Writer) int {
	root := newRootCmd(&app{})
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(errOut, "Error:", err) //nolint:errcheck
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "toolscope",
		Short: "Classify agent tools into read-only search tools and side-effecting actions",
		Long: `toolscope keeps a catalog of tool descriptors gathered from MCP servers,
A2A agent cards and JSON files, and exposes the search-only subset to agents.

Examples:
  toolscope env init
  toolscope migrate up
  toolscope client create --workspace acme --name planner
  toolscope serve
  toolscope filter --file tools.json
  toolscope mcp --workspace <id>`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadEnvFile(a.envFile); err != nil {
				return err
			}
			a.cfg = config.Load()
			if a.dbPath != "" {
				a.cfg.DBPath = a.dbPath
			}
			a.logger = logging.New(a.cfg.LogLevel, a.cfg.LogFormat, cmd.ErrOrStderr())
			return nil
		},
	}
	root.SetVersionTemplate(version.String() + "\n")

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Env file loaded before reading configuration")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "Database path (overrides "+config.EnvDBPath+")")

	root.AddCommand(
		serveCmd(a),
		migrateCmd(a),
		filterCmd(a),
		contextCmd(a),
		mcpCmd(a),
		clientCmd(a),
		envCmd(a),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}
