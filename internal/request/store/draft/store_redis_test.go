//go:build integration

package draft

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"intake/internal/visibility"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
	"intake/pkg/testutil/containers"
)

type RedisDraftStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
	ctx   context.Context
}

func TestRedisDraftStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisDraftStoreSuite))
}

func (s *RedisDraftStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = NewRedis(s.redis.Client, time.Hour)
}

func (s *RedisDraftStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisDraftStoreSuite) TestLifecycle() {
	d := newDraft(time.Now().UTC())
	d.Values["Type"] = visibility.String("Company")
	s.Require().NoError(s.store.Create(s.ctx, d))
	s.ErrorIs(s.store.Create(s.ctx, d), sentinel.ErrConflict)

	found, err := s.store.FindByID(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(d.ServiceID, found.ServiceID)
	s.Equal("Company", found.Values.Get("Type").Text())
	s.True(d.StartedAt.Equal(found.StartedAt))

	now := time.Now().UTC()
	updated, err := s.store.SetValue(s.ctx, d.ID, "Area", visibility.Number(250), now)
	s.Require().NoError(err)
	area, ok := updated.Values.Get("Area").Float()
	s.True(ok)
	s.Equal(250.0, area)
	s.True(now.Equal(updated.UpdatedAt))

	ttl, err := s.redis.Client.TTL(s.ctx, key(d.ID)).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))

	s.Require().NoError(s.store.Delete(s.ctx, d.ID))
	_, err = s.store.FindByID(s.ctx, d.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisDraftStoreSuite) TestSetValueOnMissingDraft() {
	_, err := s.store.SetValue(s.ctx, id.DraftID(uuid.New()), "Type", visibility.Null(), time.Now())
	s.ErrorIs(err, sentinel.ErrNotFound)

	keys, err := s.redis.Client.Keys(s.ctx, draftKeyPrefix+"*").Result()
	s.Require().NoError(err)
	s.Empty(keys, "missing drafts are not recreated")
}

func (s *RedisDraftStoreSuite) TestCreateWritesHashAndTTLTogether() {
	d := newDraft(time.Now().UTC())
	d.Values["Type"] = visibility.String("Company")
	s.Require().NoError(s.store.Create(s.ctx, d))

	ttl, err := s.redis.Client.TTL(s.ctx, key(d.ID)).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))

	clash := newDraft(time.Now().UTC())
	clash.ID = d.ID
	clash.Values["Type"] = visibility.String("Individual")
	s.ErrorIs(s.store.Create(s.ctx, clash), sentinel.ErrConflict)

	found, err := s.store.FindByID(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal("Company", found.Values.Get("Type").Text(), "a rejected create leaves the existing draft untouched")
}

func (s *RedisDraftStoreSuite) TestConcurrentCreateHasOneWinner() {
	d := newDraft(time.Now().UTC())
	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.store.Create(s.ctx, d)
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		s.ErrorIs(err, sentinel.ErrConflict)
	}
	s.Equal(1, created)
}
