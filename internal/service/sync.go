// This file implements the sync service: a thin surface over the offline
// cache for explicit refreshes and sync status reporting.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Arthur094/checkship/internal/synccache"
)

// SyncStatus summarizes the offline cache state.
type SyncStatus struct {
	LastSync time.Time `json:"last_sync"`
	Fresh    bool      `json:"fresh"`
	Drafts   int       `json:"drafts"`
	Pending  int       `json:"pending"`
}

// SyncService defines explicit sync operations.
type SyncService interface {
	// Refresh replaces the cached reference data for the user. Fails
	// without touching the cache when the remote store is unreachable.
	Refresh(ctx context.Context, userID uuid.UUID) error

	// Status reports cache freshness and local queue depths.
	Status(ctx context.Context) (*SyncStatus, error)
}

type syncService struct {
	cache  *synccache.Cache
	remote synccache.RemoteSource
	logger *slog.Logger
}

// NewSyncService creates a new SyncService.
func NewSyncService(cache *synccache.Cache, remote synccache.RemoteSource, logger *slog.Logger) SyncService {
	return &syncService{
		cache:  cache,
		remote: remote,
		logger: logger,
	}
}

func (s *syncService) Refresh(ctx context.Context, userID uuid.UUID) error {
	return s.cache.Refresh(ctx, userID, s.remote)
}

func (s *syncService) Status(ctx context.Context) (*SyncStatus, error) {
	drafts, err := s.cache.ListDrafts(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.cache.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	return &SyncStatus{
		LastSync: s.cache.LastSync(ctx),
		Fresh:    s.cache.IsFresh(ctx, 0),
		Drafts:   len(drafts),
		Pending:  len(pending),
	}, nil
}
