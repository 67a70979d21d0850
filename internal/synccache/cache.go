package synccache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Arthur094/checkship/internal/domain"
	"github.com/Arthur094/checkship/internal/metrics"
)

// Cache key layout. Reference data lives under "ref:" and is replaced
// wholesale on refresh; drafts and the pending queue live under their own
// prefixes and are never touched by a refresh.
const (
	keyVehicles      = "ref:vehicles"
	keyTemplates     = "ref:templates"
	keyRecent        = "ref:recent"
	keyProfile       = "ref:profile"
	keySyncedAt      = "ref:synced_at"
	draftKeyPrefix   = "draft:"
	pendingKeyPrefix = "pending:"
)

// DefaultMaxAge is the freshness window applied when callers pass none.
const DefaultMaxAge = 24 * time.Hour

// RemoteSource is the read side of the remote store the cache refreshes
// from. Implemented by the repository layer; faked in tests.
type RemoteSource interface {
	Vehicles(ctx context.Context, userID uuid.UUID) ([]domain.Vehicle, error)
	TemplateAssignments(ctx context.Context, userID uuid.UUID) ([]domain.TemplateAssignment, error)
	TemplateByID(ctx context.Context, id uuid.UUID) (*domain.Template, error)
	RecentInspections(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Inspection, error)
	Profile(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// Cache is the offline reference cache plus the draft and pending queues.
type Cache struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Cache over the given backend.
func New(store Store, logger *slog.Logger) *Cache {
	return &Cache{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// =============================================================================
// Refresh
// =============================================================================

// RecentInspectionLimit caps how many completed-inspection summaries a
// refresh pulls down.
const RecentInspectionLimit = 20

// Refresh pulls the user's reference data from the remote source and
// replaces the cached copies with a fresh sync timestamp.
//
// All categories are gathered before anything is written: if any remote call
// fails the previous cache contents are left untouched and the error is
// reported as unavailable, so reads keep serving the stale copies.
func (c *Cache) Refresh(ctx context.Context, userID uuid.UUID, remote RemoteSource) error {
	const op = "synccache.refresh"

	vehicles, err := remote.Vehicles(ctx, userID)
	if err != nil {
		metrics.CacheRefreshes.WithLabelValues("error").Inc()
		return domain.Unavailable(err, op, "failed to fetch vehicles")
	}

	assignments, err := remote.TemplateAssignments(ctx, userID)
	if err != nil {
		metrics.CacheRefreshes.WithLabelValues("error").Inc()
		return domain.Unavailable(err, op, "failed to fetch template assignments")
	}

	// A template assigned to multiple vehicles appears once in the cached
	// template list.
	seen := make(map[uuid.UUID]struct{}, len(assignments))
	templates := make([]domain.Template, 0, len(assignments))
	for _, a := range assignments {
		if _, dup := seen[a.TemplateID]; dup {
			continue
		}
		seen[a.TemplateID] = struct{}{}

		tpl, err := remote.TemplateByID(ctx, a.TemplateID)
		if err != nil {
			metrics.CacheRefreshes.WithLabelValues("error").Inc()
			return domain.Unavailable(err, op, "failed to fetch template")
		}
		templates = append(templates, *tpl)
	}

	recent, err := remote.RecentInspections(ctx, userID, RecentInspectionLimit)
	if err != nil {
		metrics.CacheRefreshes.WithLabelValues("error").Inc()
		return domain.Unavailable(err, op, "failed to fetch recent inspections")
	}

	profile, err := remote.Profile(ctx, userID)
	if err != nil {
		metrics.CacheRefreshes.WithLabelValues("error").Inc()
		return domain.Unavailable(err, op, "failed to fetch profile")
	}

	// Everything gathered; write the categories.
	syncedAt := c.now().UTC()
	writes := []struct {
		key   string
		value any
	}{
		{keyVehicles, vehicles},
		{keyTemplates, templates},
		{keyRecent, recent},
		{keyProfile, profile},
		{keySyncedAt, syncedAt},
	}
	for _, w := range writes {
		if err := c.setJSON(ctx, w.key, w.value); err != nil {
			metrics.CacheRefreshes.WithLabelValues("error").Inc()
			return domain.Internal(err, op, "failed to write cache")
		}
	}

	c.logger.Info("reference cache refreshed",
		"user_id", userID,
		"vehicles", len(vehicles),
		"templates", len(templates),
		"recent", len(recent),
	)
	metrics.CacheRefreshes.WithLabelValues("ok").Inc()
	metrics.CacheLastSync.Set(float64(syncedAt.Unix()))
	return nil
}

// =============================================================================
// Reads
// =============================================================================

// Vehicles returns the cached vehicle list.
func (c *Cache) Vehicles(ctx context.Context) ([]domain.Vehicle, error) {
	var out []domain.Vehicle
	err := c.getJSON(ctx, keyVehicles, &out)
	return out, err
}

// Templates returns the cached template list.
func (c *Cache) Templates(ctx context.Context) ([]domain.Template, error) {
	var out []domain.Template
	err := c.getJSON(ctx, keyTemplates, &out)
	return out, err
}

// TemplateByID returns one cached template by id.
func (c *Cache) TemplateByID(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	const op = "synccache.template"

	templates, err := c.Templates(ctx)
	if err != nil {
		return nil, err
	}
	for i := range templates {
		if templates[i].ID == id {
			return &templates[i], nil
		}
	}
	return nil, domain.NotFound(op, "template", id.String())
}

// RecentInspections returns the cached completed-inspection summaries.
func (c *Cache) RecentInspections(ctx context.Context) ([]domain.Inspection, error) {
	var out []domain.Inspection
	err := c.getJSON(ctx, keyRecent, &out)
	return out, err
}

// Profile returns the cached user profile.
func (c *Cache) Profile(ctx context.Context) (*domain.User, error) {
	var out domain.User
	if err := c.getJSON(ctx, keyProfile, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LastSync returns the timestamp of the last successful refresh, or zero if
// the cache has never been refreshed.
func (c *Cache) LastSync(ctx context.Context) time.Time {
	var at time.Time
	if err := c.getJSON(ctx, keySyncedAt, &at); err != nil {
		return time.Time{}
	}
	return at
}

// IsFresh reports whether the last refresh happened within maxAge. Pass zero
// to apply DefaultMaxAge.
func (c *Cache) IsFresh(ctx context.Context, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	at := c.LastSync(ctx)
	return !at.IsZero() && c.now().Sub(at) <= maxAge
}

// =============================================================================
// JSON helpers
// =============================================================================

func (c *Cache) setJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, data)
}

func (c *Cache) getJSON(ctx context.Context, key string, out any) error {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
