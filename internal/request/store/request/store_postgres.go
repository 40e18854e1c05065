package request

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"intake/internal/request/models"
	"intake/internal/visibility"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
	txcontext "intake/pkg/platform/tx"
)

const uniqueViolation = pq.ErrorCode("23505")

// PostgresStore persists service requests in PostgreSQL. Field values are kept
// in a JSONB column.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed request store.
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

func (s *PostgresStore) Create(ctx context.Context, req *models.ServiceRequest) error {
	values, err := json.Marshal(req.Values)
	if err != nil {
		return fmt.Errorf("marshal field values: %w", err)
	}
	query := `
		INSERT INTO service_requests (id, name, service_id, service_name, status_id, field_values, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(req.ID),
		req.Name,
		req.ServiceID.String(),
		req.ServiceName,
		req.StatusID,
		values,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert service request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, req *models.ServiceRequest) error {
	values, err := json.Marshal(req.Values)
	if err != nil {
		return fmt.Errorf("marshal field values: %w", err)
	}
	query := `
		UPDATE service_requests
		SET name = $2, status_id = $3, field_values = $4, updated_at = $5
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(req.ID),
		req.Name,
		req.StatusID,
		values,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update service request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update service request: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.ServiceRequestID) (*models.ServiceRequest, error) {
	query := `
		SELECT id, name, service_id, service_name, status_id, field_values, created_at, updated_at
		FROM service_requests
		WHERE id = $1
	`
	req, err := scanRequest(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(requestID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find service request: %w", err)
	}
	return req, nil
}

// Search matches term against request and service names with ILIKE, newest first.
func (s *PostgresStore) Search(ctx context.Context, term string, limit int) ([]*models.ServiceRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + escapeLike(term) + "%"
	query := `
		SELECT id, name, service_id, service_name, status_id, field_values, created_at, updated_at
		FROM service_requests
		WHERE name ILIKE $1 OR service_name ILIKE $1
		ORDER BY created_at DESC, name
		LIMIT $2
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search service requests: %w", err)
	}
	defer rows.Close()

	var out []*models.ServiceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service requests: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.ServiceRequest, error) {
	var (
		req       models.ServiceRequest
		requestID uuid.UUID
		serviceID string
		raw       []byte
	)
	if err := row.Scan(&requestID, &req.Name, &serviceID, &req.ServiceName, &req.StatusID, &raw, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return nil, err
	}
	req.ID = id.ServiceRequestID(requestID)
	req.ServiceID = id.ServiceID(serviceID)
	req.Values = visibility.Values{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req.Values); err != nil {
			return nil, fmt.Errorf("unmarshal field values: %w", err)
		}
	}
	return &req, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
