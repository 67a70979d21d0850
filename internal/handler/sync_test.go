package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Arthur094/checkship/internal/domain"
	"github.com/Arthur094/checkship/internal/synccache"
)

// fakeSyncRemote is a one-vehicle, one-template remote for cache refreshes.
type fakeSyncRemote struct {
	vehicle domain.Vehicle
	tpl     domain.Template
}

func (f *fakeSyncRemote) Vehicles(_ context.Context, _ uuid.UUID) ([]domain.Vehicle, error) {
	return []domain.Vehicle{f.vehicle}, nil
}

func (f *fakeSyncRemote) TemplateAssignments(_ context.Context, _ uuid.UUID) ([]domain.TemplateAssignment, error) {
	return []domain.TemplateAssignment{{VehicleID: f.vehicle.ID, TemplateID: f.tpl.ID}}, nil
}

func (f *fakeSyncRemote) TemplateByID(_ context.Context, id uuid.UUID) (*domain.Template, error) {
	if id != f.tpl.ID {
		return nil, domain.NotFound("test.template_by_id", "template", id.String())
	}
	tpl := f.tpl
	return &tpl, nil
}

func (f *fakeSyncRemote) RecentInspections(_ context.Context, _ uuid.UUID, _ int) ([]domain.Inspection, error) {
	return []domain.Inspection{}, nil
}

func (f *fakeSyncRemote) Profile(_ context.Context, userID uuid.UUID) (*domain.User, error) {
	return &domain.User{ID: userID, Role: domain.RoleDriver}, nil
}

func newSyncFixture(t *testing.T) (*SyncHandler, *synccache.Cache) {
	t.Helper()
	cache := synccache.New(synccache.NewMemoryStore(), testLogger())
	return NewSyncHandler(nil, cache, testLogger()), cache
}

// A store that was never refreshed serves empty lists, not errors.
func TestSyncReadsEmptyBeforeFirstRefresh(t *testing.T) {
	h, _ := newSyncFixture(t)

	endpoints := []struct {
		name    string
		key     string
		handler http.HandlerFunc
	}{
		{"vehicles", "vehicles", h.Vehicles},
		{"templates", "templates", h.Templates},
		{"inspections", "inspections", h.RecentInspections},
	}

	for _, ep := range endpoints {
		t.Run(ep.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ep.handler(rec, httptest.NewRequest("GET", "/api/sync/"+ep.name, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200 from fresh install, got %d", rec.Code)
			}

			var body map[string]json.RawMessage
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if string(body[ep.key]) != "[]" {
				t.Fatalf("expected empty %s list, got %s", ep.key, body[ep.key])
			}
		})
	}
}

func TestSyncReadsServeRefreshedData(t *testing.T) {
	h, cache := newSyncFixture(t)

	remote := &fakeSyncRemote{
		vehicle: domain.Vehicle{ID: uuid.New(), Plate: "RTA-2B45", Active: true, CreatedAt: time.Now().UTC()},
		tpl:     domain.Template{ID: uuid.New(), GroupID: uuid.New(), Version: 1, Name: "Pre-trip check"},
	}
	if err := cache.Refresh(context.Background(), uuid.New(), remote); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	rec := httptest.NewRecorder()
	h.Vehicles(rec, httptest.NewRequest("GET", "/api/sync/vehicles", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Vehicles []domain.Vehicle `json:"vehicles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Vehicles) != 1 || body.Vehicles[0].Plate != "RTA-2B45" {
		t.Fatalf("expected the refreshed vehicle, got %+v", body.Vehicles)
	}
}
