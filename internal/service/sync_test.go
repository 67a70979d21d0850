package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arthur094/checkship/internal/domain"
	"github.com/Arthur094/checkship/internal/synccache"
)

// failingRemote fails on the vehicle fetch, partway through a refresh.
type failingRemote struct {
	staticRemote
}

func (r *failingRemote) Vehicles(context.Context, uuid.UUID) ([]domain.Vehicle, error) {
	return nil, errors.New("connection refused")
}

func TestSyncRefreshUpdatesStatus(t *testing.T) {
	cache := synccache.New(synccache.NewMemoryStore(), testLogger())
	tpl := &domain.Template{ID: uuid.New(), GroupID: uuid.New(), Version: 1, Name: "Checklist"}
	svc := NewSyncService(cache, &staticRemote{tpl: tpl}, testLogger())

	before, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, before.LastSync.IsZero())
	assert.False(t, before.Fresh)

	require.NoError(t, svc.Refresh(context.Background(), uuid.New()))

	after, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, after.LastSync.IsZero())
	assert.True(t, after.Fresh)
	assert.WithinDuration(t, time.Now(), after.LastSync, 5*time.Second)
}

func TestSyncRefreshFailureLeavesCacheIntact(t *testing.T) {
	cache := synccache.New(synccache.NewMemoryStore(), testLogger())
	tpl := &domain.Template{ID: uuid.New(), GroupID: uuid.New(), Version: 1, Name: "Checklist"}
	svc := NewSyncService(cache, &staticRemote{tpl: tpl}, testLogger())

	require.NoError(t, svc.Refresh(context.Background(), uuid.New()))
	firstSync, err := svc.Status(context.Background())
	require.NoError(t, err)

	// A later refresh against an unreachable remote must not clobber
	// the previously cached data.
	broken := NewSyncService(cache, &failingRemote{staticRemote{tpl: tpl}}, testLogger())
	err = broken.Refresh(context.Background(), uuid.New())
	require.Error(t, err)

	after, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, firstSync.LastSync, after.LastSync)

	templates, err := cache.Templates(context.Background())
	require.NoError(t, err)
	assert.Len(t, templates, 1)
}

func TestSyncStatusCountsQueues(t *testing.T) {
	cache := synccache.New(synccache.NewMemoryStore(), testLogger())
	tpl := &domain.Template{ID: uuid.New(), GroupID: uuid.New(), Version: 1, Name: "Checklist"}
	svc := NewSyncService(cache, &staticRemote{tpl: tpl}, testLogger())

	require.NoError(t, cache.SaveDraft(context.Background(), synccache.Draft{
		VehicleID:  uuid.New(),
		TemplateID: tpl.ID,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}))
	_, err := cache.EnqueuePending(context.Background(), domain.Inspection{
		TemplateID: tpl.ID,
		VehicleID:  uuid.New(),
	})
	require.NoError(t, err)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.Drafts)
	assert.Equal(t, 1, status.Pending)
}
