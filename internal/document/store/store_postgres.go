package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"intake/internal/document/models"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
	txcontext "intake/pkg/platform/tx"
)

const (
	uniqueViolation     = pq.ErrorCode("23505")
	foreignKeyViolation = pq.ErrorCode("23503")
)

// PostgresStore persists attachments in the document_attachments table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Create inserts an attachment. It returns sentinel.ErrNotFound while the
// request row is not visible yet.
func (s *PostgresStore) Create(ctx context.Context, a *models.Attachment) error {
	query := `
		INSERT INTO document_attachments (id, service_request_id, requirement_id, file_name, content_ref, attached_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(a.ID),
		uuid.UUID(a.ServiceRequestID),
		a.RequirementID,
		a.FileName,
		a.ContentRef,
		a.AttachedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case uniqueViolation:
				return sentinel.ErrConflict
			case foreignKeyViolation:
				return sentinel.ErrNotFound
			}
		}
		return fmt.Errorf("insert document attachment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListForRequirement(ctx context.Context, requestID id.ServiceRequestID, requirementID string) ([]models.Attachment, error) {
	query := `
		SELECT id, service_request_id, requirement_id, file_name, content_ref, attached_at
		FROM document_attachments
		WHERE service_request_id = $1 AND ($2 = '' OR requirement_id = $2)
		ORDER BY attached_at, id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(requestID), requirementID)
	if err != nil {
		return nil, fmt.Errorf("list document attachments: %w", err)
	}
	defer rows.Close()

	out := []models.Attachment{}
	for rows.Next() {
		var (
			a        models.Attachment
			attachID uuid.UUID
			reqID    uuid.UUID
		)
		if err := rows.Scan(&attachID, &reqID, &a.RequirementID, &a.FileName, &a.ContentRef, &a.AttachedAt); err != nil {
			return nil, fmt.Errorf("scan document attachment: %w", err)
		}
		a.ID = id.AttachmentID(attachID)
		a.ServiceRequestID = id.ServiceRequestID(reqID)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document attachments: %w", err)
	}
	return out, nil
}
