package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Arthur094/checkship/internal/domain"
)

// VehicleRepo persists the vehicle fleet and its template assignments.
type VehicleRepo struct {
	pool *pgxpool.Pool
}

// GetByID returns one vehicle.
func (r *VehicleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vehicle, error) {
	const op = "repository.vehicle.get"
	const query = `
		SELECT id, plate, model, year, active, created_at
		FROM vehicles
		WHERE id = $1`

	var v domain.Vehicle
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&v.ID, &v.Plate, &v.Model, &v.Year, &v.Active, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "vehicle", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load vehicle")
	}
	return &v, nil
}

// ListActive returns the active fleet ordered by plate.
func (r *VehicleRepo) ListActive(ctx context.Context) ([]domain.Vehicle, error) {
	const op = "repository.vehicle.list_active"
	const query = `
		SELECT id, plate, model, year, active, created_at
		FROM vehicles
		WHERE active
		ORDER BY plate`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list vehicles")
	}
	defer rows.Close()

	var out []domain.Vehicle
	for rows.Next() {
		var v domain.Vehicle
		if err := rows.Scan(&v.ID, &v.Plate, &v.Model, &v.Year, &v.Active, &v.CreatedAt); err != nil {
			return nil, domain.Internal(err, op, "failed to scan vehicle")
		}
		out = append(out, v)
	}
	if rows.Err() != nil {
		return nil, domain.Internal(rows.Err(), op, "failed to read vehicles")
	}
	return out, nil
}

// ListAssignments returns every vehicle-to-template assignment for the
// active fleet.
func (r *VehicleRepo) ListAssignments(ctx context.Context) ([]domain.TemplateAssignment, error) {
	const op = "repository.vehicle.list_assignments"
	const query = `
		SELECT vt.vehicle_id, vt.template_id, vt.assigned_at
		FROM vehicle_templates vt
		JOIN vehicles v ON v.id = vt.vehicle_id
		WHERE v.active
		ORDER BY vt.assigned_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list assignments")
	}
	defer rows.Close()

	var out []domain.TemplateAssignment
	for rows.Next() {
		var a domain.TemplateAssignment
		if err := rows.Scan(&a.VehicleID, &a.TemplateID, &a.AssignedAt); err != nil {
			return nil, domain.Internal(err, op, "failed to scan assignment")
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, domain.Internal(rows.Err(), op, "failed to read assignments")
	}
	return out, nil
}

// AssignTemplate links a template group to a vehicle. Re-assigning is a
// no-op.
func (r *VehicleRepo) AssignTemplate(ctx context.Context, vehicleID, templateID uuid.UUID) error {
	const op = "repository.vehicle.assign_template"
	const query = `
		INSERT INTO vehicle_templates (vehicle_id, template_id, assigned_at)
		VALUES ($1, $2, now())
		ON CONFLICT (vehicle_id, template_id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, vehicleID, templateID); err != nil {
		return domain.Internal(err, op, "failed to assign template")
	}
	return nil
}
