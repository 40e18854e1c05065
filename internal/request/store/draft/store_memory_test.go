package draft

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/request/models"
	"intake/internal/visibility"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
)

func newDraft(updated time.Time) *models.Draft {
	return &models.Draft{
		ID:        id.DraftID(uuid.New()),
		ServiceID: "permit",
		Values:    visibility.Values{},
		StartedAt: updated,
		UpdatedAt: updated,
	}
}

func TestInMemoryDraftStore(t *testing.T) {
	ctx := context.Background()

	t.Run("set value is the single mutator", func(t *testing.T) {
		store := NewInMemory(time.Hour)
		d := newDraft(time.Now())
		require.NoError(t, store.Create(ctx, d))
		assert.ErrorIs(t, store.Create(ctx, d), sentinel.ErrConflict)

		now := time.Now()
		updated, err := store.SetValue(ctx, d.ID, "Type", visibility.String("Company"), now)
		require.NoError(t, err)
		assert.Equal(t, "Company", updated.Values.Get("Type").Text())
		assert.Equal(t, now, updated.UpdatedAt)

		updated.Values["Type"] = visibility.String("mutated")
		found, err := store.FindByID(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, "Company", found.Values.Get("Type").Text())
	})

	t.Run("expired drafts are gone", func(t *testing.T) {
		store := NewInMemory(time.Minute)
		d := newDraft(time.Now().Add(-2 * time.Minute))
		require.NoError(t, store.Create(ctx, d))

		_, err := store.FindByID(ctx, d.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = store.SetValue(ctx, d.ID, "Type", visibility.Null(), time.Now())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("zero ttl keeps drafts", func(t *testing.T) {
		store := NewInMemory(0)
		d := newDraft(time.Now().Add(-24 * time.Hour))
		require.NoError(t, store.Create(ctx, d))
		_, err := store.FindByID(ctx, d.ID)
		assert.NoError(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		store := NewInMemory(0)
		d := newDraft(time.Now())
		require.NoError(t, store.Create(ctx, d))
		require.NoError(t, store.Delete(ctx, d.ID))
		_, err := store.FindByID(ctx, d.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.NoError(t, store.Delete(ctx, d.ID), "deleting twice is fine")
	})
}
