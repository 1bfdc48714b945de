package tool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matiasleandrokruk/toolscope/pkg/uuid"
)

var (
	ErrSourceNotFound    = errors.New("tool source not found")
	ErrSourceExists      = errors.New("tool source already exists")
	ErrInvalidSourceKind = errors.New("invalid tool source kind")
)

// SourceKind says where a source's descriptors come from.
type SourceKind string

const (
	SourceKindMCP    SourceKind = "mcp"
	SourceKindA2A    SourceKind = "a2a"
	SourceKindFile   SourceKind = "file"
	SourceKindManual SourceKind = "manual"
)

func (k SourceKind) Valid() bool {
	switch k {
	case SourceKindMCP, SourceKindA2A, SourceKindFile, SourceKindManual:
		return true
	}
	return false
}

// Source yields the current tool list of an external provider.
type Source interface {
	Fetch(ctx context.Context) ([]Descriptor, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Descriptor, error)

func (f SourceFunc) Fetch(ctx context.Context) ([]Descriptor, error) { return f(ctx) }

// StaticSource serves a fixed descriptor list.
type StaticSource []Descriptor

func (s StaticSource) Fetch(context.Context) ([]Descriptor, error) {
	return append([]Descriptor(nil), s...), nil
}

// ToolSource is a registered provider of tools for a workspace.
type ToolSource struct {
	ID           string
	WorkspaceID  string
	Name         string
	Kind         SourceKind
	URI          string
	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CreateSourceInput struct {
	WorkspaceID string
	Name        string
	Kind        SourceKind
	URI         string
}

func (r *ToolRegistry) CreateSource(ctx context.Context, in CreateSourceInput) (*ToolSource, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSourceKind, in.Kind)
	}

	now := time.Now().UTC()
	item := &ToolSource{
		ID:          uuid.NewString(),
		WorkspaceID: in.WorkspaceID,
		Name:        name,
		Kind:        in.Kind,
		URI:         strings.TrimSpace(in.URI),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tool_source (id, workspace_id, name, kind, uri, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.WorkspaceID, item.Name, string(item.Kind), item.URI, formatTime(now), formatTime(now))
	if isUniqueConstraintError(err) {
		return nil, fmt.Errorf("%w: %q", ErrSourceExists, name)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

const selectSourceColumns = `
	SELECT id, workspace_id, name, kind, uri, last_synced_at, created_at, updated_at
	FROM tool_source`

func (r *ToolRegistry) GetSource(ctx context.Context, workspaceID, id string) (*ToolSource, error) {
	row := r.db.QueryRowContext(ctx, selectSourceColumns+` WHERE workspace_id = ? AND id = ?`, workspaceID, id)
	item, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSourceNotFound
	}
	return item, err
}

func (r *ToolRegistry) ListSources(ctx context.Context, workspaceID string) ([]*ToolSource, error) {
	rows, err := r.db.QueryContext(ctx, selectSourceColumns+`
		WHERE workspace_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*ToolSource, 0)
	for rows.Next() {
		item, scanErr := scanSource(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// DeleteSource removes a source; the schema cascades the delete to its definitions.
func (r *ToolRegistry) DeleteSource(ctx context.Context, workspaceID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tool_source WHERE workspace_id = ? AND id = ?`, workspaceID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSourceNotFound
	}
	return nil
}

// ReplaceSourceTools swaps the definitions owned by a source for tools, atomically,
// and stamps the source's last sync time.
func (r *ToolRegistry) ReplaceSourceTools(ctx context.Context, workspaceID, sourceID string, tools []Descriptor) ([]*ToolDefinition, error) {
	if err := ValidateDescriptors(tools); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	items := make([]*ToolDefinition, 0, len(tools))
	for _, t := range tools {
		sid := sourceID
		item, err := r.newDefinition(CreateToolDefinitionInput{
			WorkspaceID: workspaceID,
			SourceID:    &sid,
			Name:        t.Name,
			Description: t.Description,
		}, now)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE tool_source SET last_synced_at = ?, updated_at = ? WHERE workspace_id = ? AND id = ?
	`, formatTime(now), formatTime(now), workspaceID, sourceID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrSourceNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tool_definition WHERE source_id = ?`, sourceID); err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := insertDefinition(ctx, tx, item); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanSource(scan toolScanner) (*ToolSource, error) {
	var (
		item       ToolSource
		kindRaw    string
		syncedRaw  sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scan.Scan(
		&item.ID,
		&item.WorkspaceID,
		&item.Name,
		&kindRaw,
		&item.URI,
		&syncedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	item.Kind = SourceKind(kindRaw)
	if syncedRaw.Valid {
		ts := parseTime(syncedRaw.String)
		item.LastSyncedAt = &ts
	}
	item.CreatedAt = parseTime(createdRaw)
	item.UpdatedAt = parseTime(updatedRaw)
	return &item, nil
}
