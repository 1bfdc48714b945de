// Package mcpclient lists the tools of a Model Context Protocol server so they
// can be synced into the catalog.
package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/matiasleandrokruk/toolscope/internal/domain/tool"
	"github.com/matiasleandrokruk/toolscope/internal/version"
)

// ErrUnsupportedURI is returned for source URIs that are neither stdio commands
// nor http(s) endpoints.
var ErrUnsupportedURI = errors.New("unsupported mcp source uri")

// ErrCommandNotAllowed is returned for stdio URIs whose command is not on the
// operator's allowlist.
var ErrCommandNotAllowed = errors.New("mcp command not allowed")

const stdioScheme = "stdio:"

// TransportFactory builds a fresh transport per connection. Command transports
// own a process and cannot be reused.
type TransportFactory func() (mcp.Transport, error)

// Source connects to an MCP server, lists its tools and disconnects.
type Source struct {
	name      string
	transport TransportFactory
	logger    zerolog.Logger
}

// NewSource wraps an arbitrary transport factory. name only appears in logs.
func NewSource(name string, transport TransportFactory, logger zerolog.Logger) *Source {
	return &Source{
		name:      name,
		transport: transport,
		logger:    logger.With().Str("component", "mcp_client").Str("server", name).Logger(),
	}
}

// URIOption configures FromURI.
type URIOption func(*uriOptions)

type uriOptions struct {
	commands map[string]struct{}
}

// AllowCommands permits stdio URIs whose command is exactly one of names.
// Without it every stdio URI is refused.
func AllowCommands(names ...string) URIOption {
	return func(o *uriOptions) {
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				o.commands[n] = struct{}{}
			}
		}
	}
}

// FromURI accepts "stdio:<command> [args...]" or an http(s) streamable endpoint.
func FromURI(uri string, logger zerolog.Logger, opts ...URIOption) (*Source, error) {
	o := uriOptions{commands: map[string]struct{}{}}
	for _, opt := range opts {
		opt(&o)
	}

	uri = strings.TrimSpace(uri)
	if rest, ok := strings.CutPrefix(uri, stdioScheme); ok {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return nil, fmt.Errorf("%w: %q has no command", ErrUnsupportedURI, uri)
		}
		if _, ok := o.commands[fields[0]]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrCommandNotAllowed, fields[0])
		}
		return NewSource(fields[0], func() (mcp.Transport, error) {
			return &mcp.CommandTransport{Command: exec.Command(fields[0], fields[1:]...)}, nil
		}, logger), nil
	}

	u, err := url.Parse(uri)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURI, uri)
	}
	return NewSource(u.Host, func() (mcp.Transport, error) {
		return &mcp.StreamableClientTransport{Endpoint: uri}, nil
	}, logger), nil
}

// Fetch implements tool.Source. It follows list pagination until the server
// stops returning a cursor.
func (s *Source) Fetch(ctx context.Context) ([]tool.Descriptor, error) {
	transport, err := s.transport()
	if err != nil {
		return nil, fmt.Errorf("mcp transport: %w", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: version.Name, Version: version.Version}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp connect %s: %w", s.name, err)
	}
	defer session.Close()

	var out []tool.Descriptor
	params := &mcp.ListToolsParams{}
	for page := 1; ; page++ {
		res, err := session.ListTools(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("mcp list tools %s: %w", s.name, err)
		}
		for _, t := range res.Tools {
			if t == nil {
				continue
			}
			out = append(out, tool.Descriptor{Name: t.Name, Description: t.Description})
		}
		s.logger.Debug().Int("page", page).Int("tools", len(res.Tools)).Msg("listed tools")
		if res.NextCursor == "" {
			break
		}
		params = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}

	s.logger.Info().Int("tools", len(out)).Msg("fetched mcp tools")
	if out == nil {
		out = []tool.Descriptor{}
	}
	return out, nil
}
