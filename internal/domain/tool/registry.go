package tool

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matiasleandrokruk/toolscope/pkg/uuid"
)

var (
	ErrToolDefinitionNotFound = errors.New("tool definition not found")
	ErrToolDefinitionExists   = errors.New("tool definition already exists")
	ErrInvalidInputSchema     = errors.New("input schema must be a valid json object")
)

// timeLayout is fixed width so TEXT timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const defaultInputSchema = `{"type":"object","properties":{}}`

// ToolDefinition is a catalogued tool with its persisted classification.
type ToolDefinition struct {
	ID          string
	WorkspaceID string
	SourceID    *string
	Name        string
	Description string
	InputSchema json.RawMessage
	Category    Category
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (d ToolDefinition) ToolName() string        { return d.Name }
func (d ToolDefinition) ToolDescription() string { return d.Description }

type CreateToolDefinitionInput struct {
	WorkspaceID string
	SourceID    *string
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ListFilter narrows ListToolDefinitions. Zero values match everything.
type ListFilter struct {
	Category Category
	SourceID string
}

// ToolRegistry persists tool definitions per workspace and keeps their category in
// step with the classifier.
type ToolRegistry struct {
	db         *sql.DB
	classifier *Classifier
}

func NewToolRegistry(db *sql.DB, classifier *Classifier) *ToolRegistry {
	return &ToolRegistry{db: db, classifier: classifier}
}

// Classifier exposes the classifier used for persisted categories.
func (r *ToolRegistry) Classifier() *Classifier {
	return r.classifier
}

func (r *ToolRegistry) CreateToolDefinition(ctx context.Context, in CreateToolDefinitionInput) (*ToolDefinition, error) {
	item, err := r.newDefinition(in, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := insertDefinition(ctx, r.db, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (r *ToolRegistry) newDefinition(in CreateToolDefinitionInput, now time.Time) (*ToolDefinition, error) {
	desc := Descriptor{Name: strings.TrimSpace(in.Name), Description: strings.TrimSpace(in.Description)}
	if err := validateDescriptor(0, desc); err != nil {
		return nil, err
	}

	if len(in.InputSchema) == 0 {
		in.InputSchema = json.RawMessage(defaultInputSchema)
	}
	var schema map[string]any
	if err := json.Unmarshal(in.InputSchema, &schema); err != nil {
		return nil, ErrInvalidInputSchema
	}

	return &ToolDefinition{
		ID:          uuid.NewString(),
		WorkspaceID: in.WorkspaceID,
		SourceID:    in.SourceID,
		Name:        desc.Name,
		Description: desc.Description,
		InputSchema: in.InputSchema,
		Category:    r.classifier.Classify(desc),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertDefinition(ctx context.Context, db execer, item *ToolDefinition) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO tool_definition (
			id, workspace_id, source_id, name, description, input_schema,
			category, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ID,
		item.WorkspaceID,
		item.SourceID,
		item.Name,
		item.Description,
		string(item.InputSchema),
		string(item.Category),
		formatTime(item.CreatedAt),
		formatTime(item.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: %q", ErrToolDefinitionExists, item.Name)
	}
	return err
}

const selectDefinitionColumns = `
	SELECT id, workspace_id, source_id, name, description, input_schema,
	       category, created_at, updated_at
	FROM tool_definition`

func (r *ToolRegistry) GetToolDefinition(ctx context.Context, workspaceID, id string) (*ToolDefinition, error) {
	row := r.db.QueryRowContext(ctx, selectDefinitionColumns+`
		WHERE workspace_id = ? AND id = ?
	`, workspaceID, id)

	item, err := scanToolDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrToolDefinitionNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *ToolRegistry) ListToolDefinitions(ctx context.Context, workspaceID string, filter ListFilter) ([]*ToolDefinition, error) {
	query := selectDefinitionColumns + ` WHERE workspace_id = ?`
	args := []any{workspaceID}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(filter.Category))
	}
	if filter.SourceID != "" {
		query += ` AND source_id = ?`
		args = append(args, filter.SourceID)
	}
	query += ` ORDER BY created_at ASC, rowid ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*ToolDefinition, 0)
	for rows.Next() {
		item, scanErr := scanToolDefinition(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ToolRegistry) DeleteToolDefinition(ctx context.Context, workspaceID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tool_definition WHERE workspace_id = ? AND id = ?`, workspaceID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrToolDefinitionNotFound
	}
	return nil
}

// ListSearchTools returns the workspace's catalogued tools that pass the search
// filter with the current keyword sets, and records the run.
func (r *ToolRegistry) ListSearchTools(ctx context.Context, workspaceID string) ([]*ToolDefinition, error) {
	all, err := r.ListToolDefinitions(ctx, workspaceID, ListFilter{})
	if err != nil {
		return nil, err
	}
	retained, err := Filter(r.classifier, all)
	if err != nil {
		return nil, err
	}
	if _, err := r.RecordRun(ctx, RecordRunInput{
		WorkspaceID: workspaceID,
		Trigger:     TriggerCatalog,
		Input:       len(all),
		Output:      len(retained),
	}); err != nil {
		return nil, err
	}
	return retained, nil
}

// Reclassify recomputes every stored category with the current keyword sets and
// returns how many rows changed.
func (r *ToolRegistry) Reclassify(ctx context.Context, workspaceID string) (int, error) {
	items, err := r.ListToolDefinitions(ctx, workspaceID, ListFilter{})
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := formatTime(time.Now().UTC())
	changed := 0
	for _, item := range items {
		category := r.classifier.Classify(item)
		if category == item.Category {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE tool_definition SET category = ?, updated_at = ? WHERE id = ?
		`, string(category), now, item.ID); err != nil {
			return 0, err
		}
		changed++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return changed, nil
}

type toolScanner interface {
	Scan(dest ...any) error
}

func scanToolDefinition(scan toolScanner) (*ToolDefinition, error) {
	var (
		item        ToolDefinition
		sourceIDRaw sql.NullString
		schemaRaw   string
		categoryRaw string
		createdRaw  string
		updatedRaw  string
	)

	if err := scan.Scan(
		&item.ID,
		&item.WorkspaceID,
		&sourceIDRaw,
		&item.Name,
		&item.Description,
		&schemaRaw,
		&categoryRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	if sourceIDRaw.Valid {
		v := sourceIDRaw.String
		item.SourceID = &v
	}
	item.InputSchema = json.RawMessage(schemaRaw)
	item.Category = Category(categoryRaw)
	item.CreatedAt = parseTime(createdRaw)
	item.UpdatedAt = parseTime(updatedRaw)

	return &item, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts both our layout and SQLite's datetime('now') output.
func parseTime(raw string) time.Time {
	if t, err := time.Parse(timeLayout, raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.DateTime, raw); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func isUniqueConstraintError(err error) bool {
	if err == nil || err == sql.ErrNoRows {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
