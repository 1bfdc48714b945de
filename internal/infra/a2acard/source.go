// Package a2acard turns the skills advertised in an A2A agent card into tool
// descriptors.
package a2acard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/rs/zerolog"

	"github.com/matiasleandrokruk/toolscope/internal/domain/tool"
)

// WellKnownPath is where A2A agents publish their card.
const WellKnownPath = "/.well-known/agent-card.json"

const maxCardBytes = 1 << 20

// Source fetches an agent card over HTTP. URI is either the agent base URL or
// the full card URL.
type Source struct {
	URI    string
	Client *http.Client
	logger zerolog.Logger
}

func NewSource(uri string, logger zerolog.Logger) *Source {
	return &Source{
		URI:    uri,
		Client: &http.Client{Timeout: 15 * time.Second},
		logger: logger.With().Str("component", "a2a_card").Logger(),
	}
}

// CardURL resolves the agent card location for uri.
func CardURL(uri string) string {
	uri = strings.TrimSpace(uri)
	if strings.HasSuffix(uri, ".json") {
		return uri
	}
	return strings.TrimRight(uri, "/") + WellKnownPath
}

// Fetch implements tool.Source.
func (s *Source) Fetch(ctx context.Context) ([]tool.Descriptor, error) {
	card, err := s.FetchCard(ctx)
	if err != nil {
		return nil, err
	}
	descs := Descriptors(card)
	s.logger.Info().Str("agent", card.Name).Int("skills", len(descs)).Msg("fetched agent card")
	return descs, nil
}

func (s *Source) FetchCard(ctx context.Context) (*a2a.AgentCard, error) {
	url := CardURL(s.URI)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("agent card request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch agent card %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch agent card %s: status %d", url, resp.StatusCode)
	}

	var card a2a.AgentCard
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxCardBytes)).Decode(&card); err != nil {
		return nil, fmt.Errorf("decode agent card %s: %w", url, err)
	}
	return &card, nil
}

// Descriptors maps each skill to a descriptor. The skill ID names the tool; the
// display name stands in when the ID or the description is missing.
func Descriptors(card *a2a.AgentCard) []tool.Descriptor {
	out := make([]tool.Descriptor, 0, len(card.Skills))
	for _, skill := range card.Skills {
		name := skill.ID
		if strings.TrimSpace(name) == "" {
			name = skill.Name
		}
		desc := skill.Description
		if strings.TrimSpace(desc) == "" {
			desc = skill.Name
		}
		out = append(out, tool.Descriptor{Name: name, Description: desc})
	}
	return out
}
