package domain

import (
	"time"

	"github.com/google/uuid"
)

// Vehicle is a fleet vehicle that templates are assigned to and inspections
// are executed against.
type Vehicle struct {
	ID        uuid.UUID `json:"id"`
	Plate     string    `json:"plate"`
	Model     string    `json:"model,omitempty"`
	Year      int       `json:"year,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// TemplateAssignment binds a template group to a vehicle. The driver app
// resolves the group's published version when starting an inspection.
type TemplateAssignment struct {
	VehicleID  uuid.UUID `json:"vehicle_id"`
	TemplateID uuid.UUID `json:"template_id"`
	AssignedAt time.Time `json:"assigned_at"`
}
