package api

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/matiasleandrokruk/toolscope/internal/api/handlers"
	"github.com/matiasleandrokruk/toolscope/internal/domain/tool"
	"github.com/matiasleandrokruk/toolscope/internal/infra/a2acard"
	"github.com/matiasleandrokruk/toolscope/internal/infra/mcpclient"
)

// SourcePolicy is the operator's limit on what API clients may register as sources.
// A zero policy allows only http(s) MCP servers and A2A agents.
type SourcePolicy struct {
	// MCPCommands lists the executables stdio MCP sources may launch.
	MCPCommands []string
	// FileRoot is the directory file sources must live under. Empty disables them.
	FileRoot string
}

// NewSourceResolver maps a registered source to its fetcher by kind, refusing
// anything outside policy with handlers.ErrSourceNotAllowed.
func NewSourceResolver(policy SourcePolicy, logger zerolog.Logger) handlers.SourceResolver {
	return func(src *tool.ToolSource) (tool.Source, error) {
		switch src.Kind {
		case tool.SourceKindMCP:
			s, err := mcpclient.FromURI(src.URI, logger, mcpclient.AllowCommands(policy.MCPCommands...))
			if errors.Is(err, mcpclient.ErrCommandNotAllowed) {
				return nil, fmt.Errorf("%w: %w", handlers.ErrSourceNotAllowed, err)
			}
			if err != nil {
				return nil, err
			}
			return s, nil
		case tool.SourceKindA2A:
			return a2acard.NewSource(src.URI, logger), nil
		case tool.SourceKindFile:
			path, err := confinePath(policy.FileRoot, src.URI)
			if err != nil {
				return nil, err
			}
			return tool.FileSource{Path: path}, nil
		case tool.SourceKindManual:
			return nil, fmt.Errorf("%w: %s", handlers.ErrSourceNotSyncable, src.Kind)
		}
		return nil, fmt.Errorf("%w: %q", tool.ErrInvalidSourceKind, src.Kind)
	}
}

// confinePath resolves uri against root, following symlinks that exist, and
// refuses results outside root. Relative URIs are relative to root.
func confinePath(root, uri string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", fmt.Errorf("%w: file sources are disabled", handlers.ErrSourceNotAllowed)
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve file root: %w", err)
	}
	rootReal := realPath(rootAbs)

	path := strings.TrimSpace(uri)
	if !filepath.IsAbs(path) {
		path = filepath.Join(rootAbs, path)
	}
	path = realPath(filepath.Clean(path))

	rel, err := filepath.Rel(rootReal, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q is outside the file source root", handlers.ErrSourceNotAllowed, uri)
	}
	return path, nil
}

// realPath evaluates symlinks in path, or in its parent when path does not exist yet.
func realPath(path string) string {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}
	if _, err := os.Lstat(path); err == nil {
		// A dangling symlink: keep it lexical; reading it will fail.
		return path
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(path)); err == nil {
		return filepath.Join(dir, filepath.Base(path))
	}
	return path
}
