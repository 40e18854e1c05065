//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"intake/internal/approval/models"
	"intake/internal/platform/postgres"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
	"intake/pkg/testutil/containers"
)

type PostgresApprovalStoreSuite struct {
	suite.Suite
	pg        *containers.PostgresContainer
	store     *PostgresStore
	ctx       context.Context
	requestID id.ServiceRequestID
}

func TestPostgresApprovalStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresApprovalStoreSuite))
}

func (s *PostgresApprovalStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(postgres.Migrate(s.ctx, s.pg.DB))
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresApprovalStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx, "approval_steps", "service_requests"))
	s.requestID = id.ServiceRequestID(uuid.New())
	now := time.Now().UTC()
	_, err := s.pg.DB.ExecContext(s.ctx, `
		INSERT INTO service_requests (id, name, service_id, service_name, created_at, updated_at)
		VALUES ($1, 'SR', 'permit', 'Permit', $2, $2)`, uuid.UUID(s.requestID), now)
	s.Require().NoError(err)
}

func (s *PostgresApprovalStoreSuite) TestLifecycle() {
	b := newStep(s.requestID, "B", 2)
	a := newStep(s.requestID, "A", 1)
	s.Require().NoError(s.store.CreateMany(s.ctx, []models.ApprovalStep{b, a}))

	steps, err := s.store.ListByRequest(s.ctx, s.requestID)
	s.Require().NoError(err)
	s.Require().Len(steps, 2)
	s.Equal("A", steps[0].Name, "ordered by sequence")
	s.Nil(steps[0].CompletedAt)

	done := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	a.Complete(done)
	s.Require().NoError(s.store.Update(s.ctx, &a))

	found, err := s.store.FindByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(found.Completed)
	s.Require().NotNil(found.CompletedAt)
	s.True(done.Equal(*found.CompletedAt))
}

func (s *PostgresApprovalStoreSuite) TestErrors() {
	a := newStep(s.requestID, "A", 1)
	s.Require().NoError(s.store.CreateMany(s.ctx, []models.ApprovalStep{a}))
	s.ErrorIs(s.store.CreateMany(s.ctx, []models.ApprovalStep{a}), sentinel.ErrConflict)

	orphan := newStep(id.ServiceRequestID(uuid.New()), "X", 1)
	s.ErrorIs(s.store.CreateMany(s.ctx, []models.ApprovalStep{orphan}), sentinel.ErrNotFound)

	_, err := s.store.FindByID(s.ctx, id.ApprovalStepID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Update(s.ctx, &orphan), sentinel.ErrNotFound)
}
