package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Arthur094/checkship/internal/domain"
)

// Remote adapts the repositories to the sync cache's remote interfaces
// (synccache.RemoteSource and synccache.RemoteWriter).
type Remote struct {
	repo *Repository
}

// NewRemote wraps the repository set for cache refreshes and reconciliation.
func NewRemote(repo *Repository) *Remote {
	return &Remote{repo: repo}
}

// Vehicles returns the vehicles visible to the user. The fleet is shared, so
// every inspector sees all active vehicles.
func (r *Remote) Vehicles(ctx context.Context, userID uuid.UUID) ([]domain.Vehicle, error) {
	return r.repo.Vehicles.ListActive(ctx)
}

// TemplateAssignments returns the template assignments of the active fleet.
func (r *Remote) TemplateAssignments(ctx context.Context, userID uuid.UUID) ([]domain.TemplateAssignment, error) {
	return r.repo.Vehicles.ListAssignments(ctx)
}

// TemplateByID returns one template version.
func (r *Remote) TemplateByID(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	return r.repo.Templates.GetByID(ctx, id)
}

// RecentInspections returns the user's most recent submitted inspections.
func (r *Remote) RecentInspections(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Inspection, error) {
	return r.repo.Inspections.ListRecent(ctx, userID, limit)
}

// Profile returns the user's account record.
func (r *Remote) Profile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return r.repo.Users.GetByID(ctx, userID)
}

// SaveCompleted persists an inspection that was finalized offline, honoring
// the idempotency key generated when it was queued.
func (r *Remote) SaveCompleted(ctx context.Context, insp domain.Inspection, idempotencyKey string) error {
	return r.repo.Inspections.SaveCompleted(ctx, insp, idempotencyKey)
}
