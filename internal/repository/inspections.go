package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Arthur094/checkship/internal/domain"
)

// InspectionRepo persists inspections. Responses, score and analysis state
// are stored as JSONB since their shape follows the template tree rather than
// a fixed schema.
type InspectionRepo struct {
	pool *pgxpool.Pool
}

const inspectionColumns = `
	id, template_id, vehicle_id, inspector_id, template_version,
	responses, status, started_at, completed_at,
	score, analysis, driver_signature_url, analyst_signature_url`

// GetByID returns one inspection.
func (r *InspectionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Inspection, error) {
	const op = "repository.inspection.get"
	query := `SELECT ` + inspectionColumns + ` FROM inspections WHERE id = $1`

	insp, err := scanInspection(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "inspection", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load inspection")
	}
	return insp, nil
}

// FindInProgress returns the inspector's open inspection for the given
// template and vehicle, if one exists. Used to resume instead of starting a
// duplicate.
func (r *InspectionRepo) FindInProgress(ctx context.Context, templateID, vehicleID, inspectorID uuid.UUID) (*domain.Inspection, error) {
	const op = "repository.inspection.find_in_progress"
	query := `SELECT ` + inspectionColumns + ` FROM inspections
		WHERE template_id = $1 AND vehicle_id = $2 AND inspector_id = $3 AND status = 'in_progress'
		ORDER BY started_at DESC
		LIMIT 1`

	insp, err := scanInspection(r.pool.QueryRow(ctx, query, templateID, vehicleID, inspectorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "in-progress inspection", templateID.String())
		}
		return nil, domain.Internal(err, op, "failed to load inspection")
	}
	return insp, nil
}

// Insert persists a new inspection and locks its template version in the same
// transaction, making the version immutable from the first reference on.
func (r *InspectionRepo) Insert(ctx context.Context, insp *domain.Inspection) error {
	const op = "repository.inspection.insert"
	const query = `
		INSERT INTO inspections (
			id, template_id, vehicle_id, inspector_id, template_version,
			responses, status, started_at, completed_at,
			score, analysis, driver_signature_url, analyst_signature_url
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	responses, score, analysis, err := marshalInspectionJSON(insp)
	if err != nil {
		return domain.Internal(err, op, "failed to encode inspection")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, query,
		insp.ID, insp.TemplateID, insp.VehicleID, insp.InspectorID, insp.TemplateVersion,
		responses, insp.Status, insp.StartedAt, insp.CompletedAt,
		score, analysis, insp.DriverSignatureURL, insp.AnalystSignatureURL,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to insert inspection")
	}

	_, err = tx.Exec(ctx, `UPDATE templates SET locked = TRUE WHERE id = $1 AND NOT locked`, insp.TemplateID)
	if err != nil {
		return domain.Internal(err, op, "failed to lock template version")
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, op, "failed to commit inspection")
	}
	return nil
}

// Update rewrites the mutable portion of an inspection: responses, lifecycle
// status, score, analysis state and signatures.
func (r *InspectionRepo) Update(ctx context.Context, insp *domain.Inspection) error {
	const op = "repository.inspection.update"
	const query = `
		UPDATE inspections SET
			responses = $2, status = $3, completed_at = $4,
			score = $5, analysis = $6,
			driver_signature_url = $7, analyst_signature_url = $8
		WHERE id = $1`

	responses, score, analysis, err := marshalInspectionJSON(insp)
	if err != nil {
		return domain.Internal(err, op, "failed to encode inspection")
	}

	tag, err := r.pool.Exec(ctx, query,
		insp.ID, responses, insp.Status, insp.CompletedAt,
		score, analysis, insp.DriverSignatureURL, insp.AnalystSignatureURL,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to update inspection")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "inspection", insp.ID.String())
	}
	return nil
}

// ListRecent returns the inspector's most recently started non-draft
// inspections, newest first.
func (r *InspectionRepo) ListRecent(ctx context.Context, inspectorID uuid.UUID, limit int) ([]domain.Inspection, error) {
	const op = "repository.inspection.list_recent"
	query := `SELECT ` + inspectionColumns + ` FROM inspections
		WHERE inspector_id = $1 AND status <> 'in_progress'
		ORDER BY started_at DESC
		LIMIT $2`

	return r.list(ctx, op, query, inspectorID, limit)
}

// ListPendingAnalysis returns every inspection awaiting approval, oldest
// first so reviewers drain the queue in submission order.
func (r *InspectionRepo) ListPendingAnalysis(ctx context.Context) ([]domain.Inspection, error) {
	const op = "repository.inspection.list_pending_analysis"
	query := `SELECT ` + inspectionColumns + ` FROM inspections
		WHERE status = 'pending'
		ORDER BY started_at`

	return r.list(ctx, op, query)
}

// CountForTemplate returns how many inspections reference a template version.
func (r *InspectionRepo) CountForTemplate(ctx context.Context, templateID uuid.UUID) (int, error) {
	const op = "repository.inspection.count_for_template"
	const query = `SELECT count(*) FROM inspections WHERE template_id = $1`

	var n int
	if err := r.pool.QueryRow(ctx, query, templateID).Scan(&n); err != nil {
		return 0, domain.Internal(err, op, "failed to count inspections")
	}
	return n, nil
}

// SaveCompleted persists an inspection finalized offline, keyed by the
// idempotency key stamped at enqueue time. A replay whose key was already
// written changes nothing, so a retry after a lost acknowledgement cannot
// duplicate. Inspections that began online upsert into their existing row.
func (r *InspectionRepo) SaveCompleted(ctx context.Context, insp domain.Inspection, idempotencyKey string) error {
	const op = "repository.inspection.save_completed"
	const query = `
		INSERT INTO inspections (
			id, template_id, vehicle_id, inspector_id, template_version,
			responses, status, started_at, completed_at,
			score, analysis, driver_signature_url, analyst_signature_url,
			idempotency_key
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			responses = EXCLUDED.responses,
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			score = EXCLUDED.score,
			analysis = EXCLUDED.analysis,
			driver_signature_url = EXCLUDED.driver_signature_url,
			analyst_signature_url = EXCLUDED.analyst_signature_url,
			idempotency_key = EXCLUDED.idempotency_key
		WHERE inspections.status = 'in_progress'`

	if idempotencyKey == "" {
		return domain.Invalid(op, "idempotency key is required")
	}

	responses, score, analysis, err := marshalInspectionJSON(&insp)
	if err != nil {
		return domain.Internal(err, op, "failed to encode inspection")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	// A previously acknowledged replay is a success, not a conflict.
	var done bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM inspections WHERE idempotency_key = $1)`,
		idempotencyKey,
	).Scan(&done)
	if err != nil {
		return domain.Internal(err, op, "failed to check idempotency key")
	}
	if done {
		return nil
	}

	_, err = tx.Exec(ctx, query,
		insp.ID, insp.TemplateID, insp.VehicleID, insp.InspectorID, insp.TemplateVersion,
		responses, insp.Status, insp.StartedAt, insp.CompletedAt,
		score, analysis, insp.DriverSignatureURL, insp.AnalystSignatureURL,
		idempotencyKey,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to save inspection")
	}

	_, err = tx.Exec(ctx, `UPDATE templates SET locked = TRUE WHERE id = $1 AND NOT locked`, insp.TemplateID)
	if err != nil {
		return domain.Internal(err, op, "failed to lock template version")
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, op, "failed to commit inspection")
	}
	return nil
}

func (r *InspectionRepo) list(ctx context.Context, op, query string, args ...any) ([]domain.Inspection, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list inspections")
	}
	defer rows.Close()

	var out []domain.Inspection
	for rows.Next() {
		insp, err := scanInspection(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan inspection")
		}
		out = append(out, *insp)
	}
	if rows.Err() != nil {
		return nil, domain.Internal(rows.Err(), op, "failed to read inspections")
	}
	return out, nil
}

// =============================================================================
// Row mapping
// =============================================================================

func marshalInspectionJSON(insp *domain.Inspection) (responses, score, analysis []byte, err error) {
	responses, err = json.Marshal(insp.Responses)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal responses: %w", err)
	}
	if insp.Score != nil {
		score, err = json.Marshal(insp.Score)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal score: %w", err)
		}
	}
	analysis, err = json.Marshal(insp.Analysis)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal analysis: %w", err)
	}
	return responses, score, analysis, nil
}

func scanInspection(row pgx.Row) (*domain.Inspection, error) {
	var insp domain.Inspection
	var responses, score, analysis []byte

	err := row.Scan(
		&insp.ID, &insp.TemplateID, &insp.VehicleID, &insp.InspectorID, &insp.TemplateVersion,
		&responses, &insp.Status, &insp.StartedAt, &insp.CompletedAt,
		&score, &analysis, &insp.DriverSignatureURL, &insp.AnalystSignatureURL,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(responses, &insp.Responses); err != nil {
		return nil, fmt.Errorf("unmarshal responses: %w", err)
	}
	if len(score) > 0 {
		insp.Score = &domain.Score{}
		if err := json.Unmarshal(score, insp.Score); err != nil {
			return nil, fmt.Errorf("unmarshal score: %w", err)
		}
	}
	if err := json.Unmarshal(analysis, &insp.Analysis); err != nil {
		return nil, fmt.Errorf("unmarshal analysis: %w", err)
	}
	return &insp, nil
}
