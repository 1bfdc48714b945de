package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/toolscope/internal/domain/tool"
	"github.com/matiasleandrokruk/toolscope/internal/infra/config"
)

func filterCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Print the search tools of a JSON tool list",
		Long: `Reads a JSON array of {name, description} objects, or an MCP tools/list
result ({"tools": [...]}), from --file or stdin and prints the tools that
only search or read, in input order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			classifier, tools, err := loadTools(cmd, a, file)
			if err != nil {
				return err
			}
			kept, err := classifier.FilterSearchTools(tools)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(kept)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Tool list file (default stdin)")
	return cmd
}

func contextCmd(a *app) *cobra.Command {
	var (
		file   string
		search bool
	)
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Render a tool list as prompt text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			classifier, tools, err := loadTools(cmd, a, file)
			if err != nil {
				return err
			}
			if search {
				if tools, err = classifier.FilterSearchTools(tools); err != nil {
					return err
				}
			}
			text := classifier.BuildToolsContext(tools)
			if text == "" {
				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Tool list file (default stdin)")
	cmd.Flags().BoolVar(&search, "search-only", false, "Filter to search tools before rendering")
	return cmd
}

// loadTools reads descriptors from path or stdin and builds a classifier with the
// configured vocabularies.
func loadTools(cmd *cobra.Command, a *app, path string) (*tool.Classifier, []tool.Descriptor, error) {
	var (
		raw []byte
		err error
	)
	if path == "" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read tools: %w", err)
	}
	tools, err := tool.ParseDescriptors(raw)
	if err != nil {
		return nil, nil, err
	}
	classifier, err := newClassifier(a)
	if err != nil {
		return nil, nil, err
	}
	return classifier, tools, nil
}

// newClassifier applies the keywords file once, without watching it.
func newClassifier(a *app) (*tool.Classifier, error) {
	classifier := tool.NewClassifier(a.logger)
	if a.cfg.KeywordsFile == "" {
		return classifier, nil
	}
	k, err := config.LoadKeywords(a.cfg.KeywordsFile)
	if err != nil {
		return nil, err
	}
	if err := classifier.SetKeywords(k.Search, k.Action); err != nil {
		return nil, fmt.Errorf("apply keywords file: %w", err)
	}
	return classifier, nil
}
