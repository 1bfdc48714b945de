// Package auth registers API clients and exchanges their credentials for JWTs.
// A client belongs to one workspace; its secret is shown once and stored as a bcrypt hash.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	domainaudit "github.com/matiasleandrokruk/toolscope/internal/domain/audit"
	pkgauth "github.com/matiasleandrokruk/toolscope/pkg/auth"
	"github.com/matiasleandrokruk/toolscope/pkg/uuid"
)

// ErrInvalidCredentials covers unknown clients, revoked clients and wrong secrets alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrClientNotFound    = errors.New("api client not found")
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type RegisterClientInput struct {
	WorkspaceName string
	ClientName    string
}

// ClientCredentials is returned once, at registration. Secret is not recoverable later.
type ClientCredentials struct {
	ClientID    string
	WorkspaceID string
	Secret      string
}

// TokenResult is a signed JWT with the identity it carries.
type TokenResult struct {
	Token       string
	ClientID    string
	WorkspaceID string
}

// AuthService defines the client credential operations.
//
//nolint:revive // auth.AuthService is referenced by handlers and the CLI
type AuthService interface {
	RegisterClient(ctx context.Context, input RegisterClientInput) (*ClientCredentials, error)
	CreateClient(ctx context.Context, workspaceID, name string) (*ClientCredentials, error)
	IssueToken(ctx context.Context, clientID, secret string) (*TokenResult, error)
	RevokeClient(ctx context.Context, workspaceID, clientID string) error
}

type authService struct {
	db          *sql.DB
	auditLogger auditLogger
}

type auditLogger interface {
	LogWithDetails(
		ctx context.Context,
		workspaceID string,
		actorID string,
		actorType domainaudit.ActorType,
		action string,
		entityType *string,
		entityID *string,
		details *domainaudit.EventDetails,
		outcome domainaudit.Outcome,
	) error
}

// NewAuthService creates a new AuthService backed by the provided DB.
func NewAuthService(db *sql.DB) AuthService {
	return &authService{db: db}
}

// NewAuthServiceWithAudit creates a new AuthService with audit logging.
func NewAuthServiceWithAudit(db *sql.DB, logger auditLogger) AuthService {
	return &authService{db: db, auditLogger: logger}
}

// RegisterClient creates a workspace and its first client in one transaction.
func (s *authService) RegisterClient(ctx context.Context, input RegisterClientInput) (*ClientCredentials, error) {
	workspaceName := strings.TrimSpace(input.WorkspaceName)
	clientName := strings.TrimSpace(input.ClientName)
	if workspaceName == "" || clientName == "" {
		return nil, fmt.Errorf("workspace name and client name are required")
	}

	secret, hash, err := newSecret()
	if err != nil {
		return nil, err
	}

	creds := &ClientCredentials{
		ClientID:    uuid.NewString(),
		WorkspaceID: uuid.NewString(),
		Secret:      secret,
	}
	now := time.Now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workspace (id, name, slug, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, creds.WorkspaceID, workspaceName, generateSlug(workspaceName, creds.WorkspaceID), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	if err := insertClient(ctx, tx, creds.ClientID, creds.WorkspaceID, clientName, hash, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logAuth(ctx, creds.WorkspaceID, creds.ClientID, "register_client", "", domainaudit.OutcomeSuccess)
	return creds, nil
}

// CreateClient adds another client to an existing workspace.
func (s *authService) CreateClient(ctx context.Context, workspaceID, name string) (*ClientCredentials, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("client name is required")
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM workspace WHERE id = ?`, workspaceID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, err
	}

	secret, hash, err := newSecret()
	if err != nil {
		return nil, err
	}
	creds := &ClientCredentials{ClientID: uuid.NewString(), WorkspaceID: workspaceID, Secret: secret}
	if err := insertClient(ctx, s.db, creds.ClientID, workspaceID, name, hash, time.Now().UTC().Format(timeLayout)); err != nil {
		return nil, err
	}

	s.logAuth(ctx, workspaceID, creds.ClientID, "create_client", "", domainaudit.OutcomeSuccess)
	return creds, nil
}

// IssueToken verifies a client's secret and returns a JWT scoped to its workspace.
func (s *authService) IssueToken(ctx context.Context, clientID, secret string) (*TokenResult, error) {
	var workspaceID, hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT workspace_id, secret_hash
		FROM api_client
		WHERE id = ? AND status = 'active'
	`, clientID).Scan(&workspaceID, &hash)
	if err != nil {
		s.logAuth(ctx, "unknown", clientID, "issue_token", "client_not_found_or_query_error", domainaudit.OutcomeDenied)
		return nil, ErrInvalidCredentials
	}

	if !pkgauth.VerifySecret(hash, secret) {
		s.logAuth(ctx, workspaceID, clientID, "issue_token", "invalid_secret", domainaudit.OutcomeDenied)
		return nil, ErrInvalidCredentials
	}

	token, err := pkgauth.GenerateJWT(clientID, workspaceID)
	if err != nil {
		s.logAuth(ctx, workspaceID, clientID, "issue_token", "jwt_generation_failed", domainaudit.OutcomeError)
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE api_client SET last_used_at = ? WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), clientID); err != nil {
		return nil, fmt.Errorf("touch api client: %w", err)
	}

	s.logAuth(ctx, workspaceID, clientID, "issue_token", "", domainaudit.OutcomeSuccess)
	return &TokenResult{Token: token, ClientID: clientID, WorkspaceID: workspaceID}, nil
}

// RevokeClient blocks future token issuance. Tokens already issued stay valid until expiry.
func (s *authService) RevokeClient(ctx context.Context, workspaceID, clientID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE api_client SET status = 'revoked' WHERE workspace_id = ? AND id = ?
	`, workspaceID, clientID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrClientNotFound
	}
	s.logAuth(ctx, workspaceID, clientID, "revoke_client", "", domainaudit.OutcomeSuccess)
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertClient(ctx context.Context, db execer, id, workspaceID, name, hash, now string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO api_client (id, workspace_id, name, secret_hash, status, created_at)
		VALUES (?, ?, ?, ?, 'active', ?)
	`, id, workspaceID, name, hash, now)
	if err != nil {
		return fmt.Errorf("failed to create api client: %w", err)
	}
	return nil
}

func newSecret() (secret, hash string, err error) {
	secret, err = pkgauth.GenerateSecret()
	if err != nil {
		return "", "", err
	}
	hash, err = pkgauth.HashSecret(secret)
	if err != nil {
		return "", "", err
	}
	return secret, hash, nil
}

// slugChar lowercases letters, keeps digits, maps spaces and dashes to '-' and drops
// everything else.
func slugChar(c rune) rune {
	switch {
	case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return c
	case c >= 'A' && c <= 'Z':
		return c + 32
	case c == ' ', c == '-':
		return '-'
	default:
		return -1
	}
}

// generateSlug suffixes the full workspace ID; v7 prefixes collide within a millisecond.
func generateSlug(name, id string) string {
	return strings.Map(slugChar, name) + "-" + id
}

func (s *authService) logAuth(ctx context.Context, workspaceID, clientID, action, reason string, outcome domainaudit.Outcome) {
	if s.auditLogger == nil {
		return
	}
	var details *domainaudit.EventDetails
	if reason != "" {
		details = &domainaudit.EventDetails{Metadata: map[string]any{"reason": reason}}
	}
	_ = s.auditLogger.LogWithDetails(
		ctx,
		workspaceID,
		clientID,
		domainaudit.ActorTypeClient,
		action,
		nil,
		nil,
		details,
		outcome,
	)
}
