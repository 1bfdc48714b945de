// Package audit appends and reads audit_event rows. There is no update or delete path.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/matiasleandrokruk/toolscope/pkg/uuid"
)

var ErrAuditEventNotFound = errors.New("audit event not found")

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// AuditService provides audit logging capabilities
//
//nolint:revive // matches the AuditLogger contract used by middleware
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// Log appends event. ID and CreatedAt are filled in when empty.
func (s *AuditService) Log(ctx context.Context, event *AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	details := event.Details
	if len(details) == 0 {
		details = json.RawMessage("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_event (
			id, workspace_id, actor_id, actor_type, action, entity_type, entity_id,
			details, outcome, trace_id, ip_address, user_agent, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.WorkspaceID,
		event.ActorID,
		string(event.ActorType),
		event.Action,
		event.EntityType,
		event.EntityID,
		string(details),
		string(event.Outcome),
		event.TraceID,
		event.IPAddress,
		event.UserAgent,
		event.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// LogWithDetails is a helper for common case with structured details
func (s *AuditService) LogWithDetails(
	ctx context.Context,
	workspaceID string,
	actorID string,
	actorType ActorType,
	action string,
	entityType *string,
	entityID *string,
	details *EventDetails,
	outcome Outcome,
) error {
	var detailsJSON json.RawMessage
	if details != nil {
		var err error
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			return err
		}
	}

	return s.Log(ctx, &AuditEvent{
		WorkspaceID: workspaceID,
		ActorID:     actorID,
		ActorType:   actorType,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Details:     detailsJSON,
		Outcome:     outcome,
	})
}

const selectEventColumns = `
	SELECT id, workspace_id, actor_id, actor_type, action, entity_type, entity_id,
	       details, outcome, trace_id, ip_address, user_agent, created_at
	FROM audit_event`

// GetByID retrieves a single audit event by ID
func (s *AuditService) GetByID(ctx context.Context, id string) (*AuditEvent, error) {
	event, err := scanEvent(s.db.QueryRowContext(ctx, selectEventColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAuditEventNotFound
	}
	return event, err
}

// ListByWorkspace returns one page of a workspace's events, newest first, and the total count.
func (s *AuditService) ListByWorkspace(ctx context.Context, workspaceID string, limit, offset int) ([]*AuditEvent, int, error) {
	events, err := s.list(ctx, selectEventColumns+`
		WHERE workspace_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, workspaceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_event WHERE workspace_id = ?`, workspaceID).Scan(&total); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// ListByActor retrieves audit events for a specific actor
func (s *AuditService) ListByActor(ctx context.Context, actorID string, limit int) ([]*AuditEvent, error) {
	return s.list(ctx, selectEventColumns+`
		WHERE actor_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, actorID, limit)
}

func (s *AuditService) list(ctx context.Context, query string, args ...any) ([]*AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*AuditEvent, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*AuditEvent, error) {
	var (
		e          AuditEvent
		actorType  string
		details    string
		outcome    string
		createdRaw string
		entityType sql.NullString
		entityID   sql.NullString
		traceID    sql.NullString
		ipAddress  sql.NullString
		userAgent  sql.NullString
	)
	if err := row.Scan(&e.ID, &e.WorkspaceID, &e.ActorID, &actorType, &e.Action, &entityType, &entityID,
		&details, &outcome, &traceID, &ipAddress, &userAgent, &createdRaw); err != nil {
		return nil, err
	}
	e.ActorType = ActorType(actorType)
	e.Outcome = Outcome(outcome)
	e.Details = json.RawMessage(details)
	e.EntityType = nullablePtr(entityType)
	e.EntityID = nullablePtr(entityID)
	e.TraceID = nullablePtr(traceID)
	e.IPAddress = nullablePtr(ipAddress)
	e.UserAgent = nullablePtr(userAgent)
	if t, err := time.Parse(timeLayout, createdRaw); err == nil {
		e.CreatedAt = t
	}
	return &e, nil
}

func nullablePtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
