package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"intake/internal/approval/models"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
	txcontext "intake/pkg/platform/tx"
)

const (
	uniqueViolation     = pq.ErrorCode("23505")
	foreignKeyViolation = pq.ErrorCode("23503")
)

// PostgresStore persists approval steps in the approval_steps table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// CreateMany inserts steps one row at a time on the caller's transaction, if any.
// A step for an unknown request returns sentinel.ErrNotFound.
func (s *PostgresStore) CreateMany(ctx context.Context, steps []models.ApprovalStep) error {
	query := `
		INSERT INTO approval_steps (id, service_request_id, name, approver, sequence, completed, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	exec := s.execer(ctx)
	for _, step := range steps {
		var completedAt sql.NullTime
		if step.CompletedAt != nil {
			completedAt = sql.NullTime{Time: *step.CompletedAt, Valid: true}
		}
		_, err := exec.ExecContext(ctx, query,
			uuid.UUID(step.ID),
			uuid.UUID(step.ServiceRequestID),
			step.Name,
			step.Approver,
			step.Sequence,
			step.Completed,
			completedAt,
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
			return fmt.Errorf("insert approval step: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListByRequest(ctx context.Context, requestID id.ServiceRequestID) ([]models.ApprovalStep, error) {
	query := `
		SELECT id, service_request_id, name, approver, sequence, completed, completed_at
		FROM approval_steps
		WHERE service_request_id = $1
		ORDER BY sequence, name
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(requestID))
	if err != nil {
		return nil, fmt.Errorf("list approval steps: %w", err)
	}
	defer rows.Close()

	out := []models.ApprovalStep{}
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval step: %w", err)
		}
		out = append(out, *step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approval steps: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, stepID id.ApprovalStepID) (*models.ApprovalStep, error) {
	query := `
		SELECT id, service_request_id, name, approver, sequence, completed, completed_at
		FROM approval_steps
		WHERE id = $1
	`
	step, err := scanStep(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(stepID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find approval step: %w", err)
	}
	return step, nil
}

func (s *PostgresStore) Update(ctx context.Context, step *models.ApprovalStep) error {
	query := `
		UPDATE approval_steps
		SET name = $2, approver = $3, sequence = $4, completed = $5, completed_at = $6
		WHERE id = $1
	`
	var completedAt sql.NullTime
	if step.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *step.CompletedAt, Valid: true}
	}
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(step.ID),
		step.Name,
		step.Approver,
		step.Sequence,
		step.Completed,
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("update approval step: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update approval step: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStep(row rowScanner) (*models.ApprovalStep, error) {
	var (
		step        models.ApprovalStep
		stepID      uuid.UUID
		requestID   uuid.UUID
		completedAt sql.NullTime
	)
	if err := row.Scan(&stepID, &requestID, &step.Name, &step.Approver, &step.Sequence, &step.Completed, &completedAt); err != nil {
		return nil, err
	}
	step.ID = id.ApprovalStepID(stepID)
	step.ServiceRequestID = id.ServiceRequestID(requestID)
	if completedAt.Valid {
		t := completedAt.Time
		step.CompletedAt = &t
	}
	return &step, nil
}
