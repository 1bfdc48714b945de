package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/matiasleandrokruk/toolscope/internal/infra/eventbus"
)

// Event topics published by the catalog.
const (
	TopicSourceSynced     = "tool.source.synced"
	TopicKeywordsReloaded = "tool.keywords.reloaded"
)

// ErrSourceFetch wraps every error returned by Source.Fetch during a sync.
var ErrSourceFetch = errors.New("source fetch failed")

// SourceSyncedEvent is the payload of TopicSourceSynced.
type SourceSyncedEvent struct {
	WorkspaceID string
	SourceID    string
	Total       int
	Search      int
	Action      int
	Ambiguous   int
	SyncedAt    time.Time
}

// SyncResult summarizes one source sync.
type SyncResult struct {
	Definitions []*ToolDefinition
	Partition   Partition
	Run         *ClassificationRun
}

// SyncObserver counts sync outcomes per source kind; status is "ok" or "error".
type SyncObserver interface {
	ObserveSync(kind, status string)
}

// SyncService pulls descriptors from external sources into the catalog.
type SyncService struct {
	registry *ToolRegistry
	bus      eventbus.EventBus
	logger   zerolog.Logger
	observer SyncObserver
}

func NewSyncService(registry *ToolRegistry, bus eventbus.EventBus, logger zerolog.Logger) *SyncService {
	return &SyncService{
		registry: registry,
		bus:      bus,
		logger:   logger.With().Str("component", "tool_sync").Logger(),
	}
}

// WithObserver attaches o and returns s.
func (s *SyncService) WithObserver(o SyncObserver) *SyncService {
	s.observer = o
	return s
}

// Sync fetches src and replaces every definition owned by sourceID with the result.
// A failed fetch leaves the catalog untouched.
func (s *SyncService) Sync(ctx context.Context, workspaceID, sourceID string, src Source) (*SyncResult, error) {
	source, err := s.registry.GetSource(ctx, workspaceID, sourceID)
	if err != nil {
		return nil, err
	}

	res, err := s.sync(ctx, workspaceID, sourceID, src)
	if s.observer != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.observer.ObserveSync(string(source.Kind), status)
	}
	return res, err
}

func (s *SyncService) sync(ctx context.Context, workspaceID, sourceID string, src Source) (*SyncResult, error) {
	tools, err := src.Fetch(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("source_id", sourceID).Msg("source fetch failed")
		return nil, fmt.Errorf("%w: source %s: %w", ErrSourceFetch, sourceID, err)
	}

	defs, err := s.registry.ReplaceSourceTools(ctx, workspaceID, sourceID, tools)
	if err != nil {
		return nil, err
	}
	// Counts come from what was stored, even if keywords reloaded mid-sync.
	partition := partitionDefinitions(defs)

	sid := sourceID
	run, err := s.registry.RecordRun(ctx, RecordRunInput{
		WorkspaceID: workspaceID,
		SourceID:    &sid,
		Trigger:     TriggerSync,
		Input:       len(tools),
		Output:      len(partition.Search),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("workspace_id", workspaceID).
		Str("source_id", sourceID).
		Int("total", len(tools)).
		Int("search", len(partition.Search)).
		Int("action", len(partition.Action)).
		Int("ambiguous", len(partition.Ambiguous)).
		Msg("source synced")

	if s.bus != nil {
		s.bus.Publish(TopicSourceSynced, SourceSyncedEvent{
			WorkspaceID: workspaceID,
			SourceID:    sourceID,
			Total:       len(tools),
			Search:      len(partition.Search),
			Action:      len(partition.Action),
			Ambiguous:   len(partition.Ambiguous),
			SyncedAt:    run.CreatedAt,
		})
	}

	return &SyncResult{Definitions: defs, Partition: partition, Run: run}, nil
}

// partitionDefinitions groups stored definitions by their persisted category.
func partitionDefinitions(defs []*ToolDefinition) Partition {
	p := Partition{
		Search:    []Descriptor{},
		Action:    []Descriptor{},
		Ambiguous: []Descriptor{},
	}
	for _, d := range defs {
		desc := Descriptor{Name: d.Name, Description: d.Description}
		switch d.Category {
		case CategorySearch:
			p.Search = append(p.Search, desc)
		case CategoryAction:
			p.Action = append(p.Action, desc)
		default:
			p.Ambiguous = append(p.Ambiguous, desc)
		}
	}
	return p
}
