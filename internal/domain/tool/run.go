package tool

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matiasleandrokruk/toolscope/pkg/uuid"
)

// Trigger records which surface asked for a classification.
type Trigger string

const (
	TriggerAPI     Trigger = "api"
	TriggerCatalog Trigger = "catalog"
	TriggerSync    Trigger = "sync"
	TriggerMCP     Trigger = "mcp"
	TriggerCLI     Trigger = "cli"
)

// ClassificationRun is the persisted diagnostic record of one filter pass.
type ClassificationRun struct {
	ID          string
	WorkspaceID string
	SourceID    *string
	Trigger     Trigger
	Input       int
	Output      int
	Excluded    int
	CreatedAt   time.Time
}

type RecordRunInput struct {
	WorkspaceID string
	SourceID    *string
	Trigger     Trigger
	Input       int
	Output      int
}

const defaultRunLimit = 50

func (r *ToolRegistry) RecordRun(ctx context.Context, in RecordRunInput) (*ClassificationRun, error) {
	if in.Output > in.Input || in.Output < 0 {
		return nil, fmt.Errorf("invalid run counts: input=%d output=%d", in.Input, in.Output)
	}
	run := &ClassificationRun{
		ID:          uuid.NewString(),
		WorkspaceID: in.WorkspaceID,
		SourceID:    in.SourceID,
		Trigger:     in.Trigger,
		Input:       in.Input,
		Output:      in.Output,
		Excluded:    in.Input - in.Output,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO classification_run (
			id, workspace_id, source_id, trigger, input_count, output_count, excluded_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.WorkspaceID, run.SourceID, string(run.Trigger), run.Input, run.Output, run.Excluded, formatTime(run.CreatedAt))
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the newest runs first.
func (r *ToolRegistry) ListRuns(ctx context.Context, workspaceID string, limit int) ([]*ClassificationRun, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workspace_id, source_id, trigger, input_count, output_count, excluded_count, created_at
		FROM classification_run
		WHERE workspace_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*ClassificationRun, 0)
	for rows.Next() {
		var (
			run         ClassificationRun
			sourceIDRaw sql.NullString
			triggerRaw  string
			createdRaw  string
		)
		if err := rows.Scan(&run.ID, &run.WorkspaceID, &sourceIDRaw, &triggerRaw,
			&run.Input, &run.Output, &run.Excluded, &createdRaw); err != nil {
			return nil, err
		}
		if sourceIDRaw.Valid {
			v := sourceIDRaw.String
			run.SourceID = &v
		}
		run.Trigger = Trigger(triggerRaw)
		run.CreatedAt = parseTime(createdRaw)
		out = append(out, &run)
	}
	return out, rows.Err()
}
