package synccache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Arthur094/checkship/internal/domain"
	"github.com/Arthur094/checkship/internal/metrics"
)

// LocalIDPrefix distinguishes locally generated pending-inspection ids from
// server-assigned ones.
const LocalIDPrefix = "local-"

// =============================================================================
// Drafts
// =============================================================================

// Draft is a locally saved, possibly incomplete inspection-in-progress,
// keyed by (vehicle, template). Exactly one draft exists per key; saving
// again overwrites.
type Draft struct {
	VehicleID    uuid.UUID          `json:"vehicle_id"`
	TemplateID   uuid.UUID          `json:"template_id"`
	Responses    domain.ResponseSet `json:"responses"`
	VehiclePlate string             `json:"vehicle_plate,omitempty"`
	TemplateName string             `json:"template_name,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func draftKey(vehicleID, templateID uuid.UUID) string {
	return fmt.Sprintf("%s%s:%s", draftKeyPrefix, vehicleID, templateID)
}

// SaveDraft stores the draft, overwriting any previous draft for the same
// key. CreatedAt is preserved from an existing draft; UpdatedAt always moves.
func (c *Cache) SaveDraft(ctx context.Context, draft Draft) error {
	now := c.now().UTC()
	if existing, err := c.LoadDraft(ctx, draft.VehicleID, draft.TemplateID); err == nil {
		draft.CreatedAt = existing.CreatedAt
	} else {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now
	return c.setJSON(ctx, draftKey(draft.VehicleID, draft.TemplateID), draft)
}

// LoadDraft returns the draft for the key, or ErrMiss if none exists.
func (c *Cache) LoadDraft(ctx context.Context, vehicleID, templateID uuid.UUID) (Draft, error) {
	var draft Draft
	err := c.getJSON(ctx, draftKey(vehicleID, templateID), &draft)
	return draft, err
}

// DeleteDraft removes the draft for the key. Removing an absent draft is a
// no-op.
func (c *Cache) DeleteDraft(ctx context.Context, vehicleID, templateID uuid.UUID) error {
	return c.store.Delete(ctx, draftKey(vehicleID, templateID))
}

// ListDrafts returns all saved drafts.
func (c *Cache) ListDrafts(ctx context.Context) ([]Draft, error) {
	keys, err := c.store.Keys(ctx, draftKeyPrefix)
	if err != nil {
		return nil, err
	}
	drafts := make([]Draft, 0, len(keys))
	for _, key := range keys {
		var draft Draft
		if err := c.getJSON(ctx, key, &draft); err != nil {
			if errors.Is(err, ErrMiss) {
				continue
			}
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

// =============================================================================
// Pending Inspections
// =============================================================================

// PendingInspection is a fully completed inspection payload that could not
// reach the remote store and awaits reconciliation.
type PendingInspection struct {
	// LocalID is the locally generated queue id, prefixed to never
	// collide with server ids.
	LocalID string `json:"local_id"`

	// IdempotencyKey is generated once at enqueue time and reused on
	// every reconciliation attempt, so a retried remote write can never
	// create a duplicate inspection.
	IdempotencyKey string `json:"idempotency_key"`

	Inspection domain.Inspection `json:"inspection"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
	Attempts   int               `json:"attempts"`
}

func pendingKey(localID string) string {
	return pendingKeyPrefix + localID
}

// EnqueuePending appends a completed inspection to the offline queue,
// stamping it with a local id and a stable idempotency key.
func (c *Cache) EnqueuePending(ctx context.Context, insp domain.Inspection) (PendingInspection, error) {
	pending := PendingInspection{
		LocalID:        LocalIDPrefix + uuid.NewString(),
		IdempotencyKey: uuid.NewString(),
		Inspection:     insp,
		EnqueuedAt:     c.now().UTC(),
	}
	if err := c.setJSON(ctx, pendingKey(pending.LocalID), pending); err != nil {
		return PendingInspection{}, err
	}
	metrics.PendingQueueDepth.Inc()
	c.logger.Info("inspection queued for sync",
		"local_id", pending.LocalID,
		"template_id", insp.TemplateID,
		"vehicle_id", insp.VehicleID,
	)
	return pending, nil
}

// UpdatePending persists mutated bookkeeping (attempt counts) for a queued
// entry.
func (c *Cache) UpdatePending(ctx context.Context, pending PendingInspection) error {
	return c.setJSON(ctx, pendingKey(pending.LocalID), pending)
}

// ListPending returns all queued inspections awaiting reconciliation.
func (c *Cache) ListPending(ctx context.Context) ([]PendingInspection, error) {
	keys, err := c.store.Keys(ctx, pendingKeyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]PendingInspection, 0, len(keys))
	for _, key := range keys {
		var pending PendingInspection
		if err := c.getJSON(ctx, key, &pending); err != nil {
			if errors.Is(err, ErrMiss) {
				continue
			}
			return nil, err
		}
		out = append(out, pending)
	}
	return out, nil
}

// RemovePending drops a reconciled entry from the queue.
func (c *Cache) RemovePending(ctx context.Context, localID string) error {
	if err := c.store.Delete(ctx, pendingKey(localID)); err != nil {
		return err
	}
	metrics.PendingQueueDepth.Dec()
	return nil
}
