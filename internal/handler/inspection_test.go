package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/Arthur094/checkship/internal/auth"
	"github.com/Arthur094/checkship/internal/domain"
	"github.com/Arthur094/checkship/internal/service"
)

// fakeInspectionService records calls and returns canned results.
type fakeInspectionService struct {
	beginResult  *service.BeginResult
	beginErr     error
	submitResult *service.SubmitResult
	submitErr    error
	recordErr    error

	lastHandle service.Handle
	lastItemID string
}

func (f *fakeInspectionService) Begin(ctx context.Context, templateID, vehicleID, inspectorID uuid.UUID) (*service.BeginResult, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.beginResult, nil
}

func (f *fakeInspectionService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Inspection, error) {
	return nil, domain.NotFound("fake.GetByID", "inspection", id.String())
}

func (f *fakeInspectionService) RecordAnswer(ctx context.Context, h service.Handle, itemID string, patch domain.AnswerPatch) (*domain.Inspection, error) {
	f.lastHandle = h
	f.lastItemID = itemID
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	return &domain.Inspection{ID: h.ID}, nil
}

func (f *fakeInspectionService) AttachPhoto(ctx context.Context, h service.Handle, itemID, filename string, photo io.Reader) (*domain.Inspection, error) {
	f.lastHandle = h
	f.lastItemID = itemID
	return &domain.Inspection{ID: h.ID}, nil
}

func (f *fakeInspectionService) SaveDraft(ctx context.Context, h service.Handle, responses domain.ResponseSet) error {
	f.lastHandle = h
	return nil
}

func (f *fakeInspectionService) Submit(ctx context.Context, h service.Handle, opts service.SubmitOptions) (*service.SubmitResult, error) {
	f.lastHandle = h
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitResult, nil
}

func asDriver(req *http.Request, id uuid.UUID) *http.Request {
	user := &domain.User{ID: id, Name: "Ana", Role: domain.RoleDriver}
	return req.WithContext(auth.SetUser(req.Context(), user))
}

func TestBeginHandler_CreatesInspection(t *testing.T) {
	inspectorID := uuid.New()
	fake := &fakeInspectionService{
		beginResult: &service.BeginResult{
			Inspection: &domain.Inspection{ID: uuid.New()},
			Resumed:    false,
		},
	}
	h := NewInspectionHandler(fake, testLogger())

	body := fmt.Sprintf(`{"template_id":%q,"vehicle_id":%q}`, uuid.New(), uuid.New())
	req := httptest.NewRequest("POST", "/api/inspections", bytes.NewBufferString(body))
	req = asDriver(req, inspectorID)
	rec := httptest.NewRecorder()

	h.Begin(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestBeginHandler_ResumedReturns200(t *testing.T) {
	fake := &fakeInspectionService{
		beginResult: &service.BeginResult{
			Inspection: &domain.Inspection{ID: uuid.New()},
			Resumed:    true,
		},
	}
	h := NewInspectionHandler(fake, testLogger())

	body := fmt.Sprintf(`{"template_id":%q,"vehicle_id":%q}`, uuid.New(), uuid.New())
	req := asDriver(httptest.NewRequest("POST", "/api/inspections", bytes.NewBufferString(body)), uuid.New())
	rec := httptest.NewRecorder()

	h.Begin(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for resumed inspection, got %d", rec.Code)
	}
}

func TestBeginHandler_MissingIDs(t *testing.T) {
	h := NewInspectionHandler(&fakeInspectionService{}, testLogger())

	req := asDriver(httptest.NewRequest("POST", "/api/inspections", bytes.NewBufferString(`{}`)), uuid.New())
	rec := httptest.NewRecorder()

	h.Begin(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRecordAnswerHandler_StampsCaller(t *testing.T) {
	inspectorID := uuid.New()
	fake := &fakeInspectionService{}
	h := NewInspectionHandler(fake, testLogger())

	payload := map[string]any{
		"handle": map[string]any{
			"template_id":  uuid.New(),
			"vehicle_id":   uuid.New(),
			"inspector_id": uuid.New(), // spoofed, must be overwritten
		},
		"item_id": "tires",
		"patch":   map[string]any{"observation": "worn tread"},
	}
	body, _ := json.Marshal(payload)
	req := asDriver(httptest.NewRequest("POST", "/api/inspections/answers", bytes.NewBuffer(body)), inspectorID)
	rec := httptest.NewRecorder()

	h.RecordAnswer(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if fake.lastHandle.InspectorID != inspectorID {
		t.Error("handler must overwrite the handle's inspector with the authenticated caller")
	}
	if fake.lastItemID != "tires" {
		t.Errorf("expected item tires, got %q", fake.lastItemID)
	}
}

func TestRecordAnswerHandler_LockedInspection(t *testing.T) {
	fake := &fakeInspectionService{
		recordErr: domain.Locked("fake.RecordAnswer", "inspection is no longer editable"),
	}
	h := NewInspectionHandler(fake, testLogger())

	payload := map[string]any{
		"handle":  map[string]any{"template_id": uuid.New(), "vehicle_id": uuid.New()},
		"item_id": "tires",
		"patch":   map[string]any{},
	}
	body, _ := json.Marshal(payload)
	req := asDriver(httptest.NewRequest("POST", "/api/inspections/answers", bytes.NewBuffer(body)), uuid.New())
	rec := httptest.NewRecorder()

	h.RecordAnswer(rec, req)

	if rec.Code != http.StatusLocked {
		t.Fatalf("expected 423, got %d", rec.Code)
	}
}

func TestSubmitHandler_DeferredSignatureReturns202(t *testing.T) {
	fake := &fakeInspectionService{
		submitResult: &service.SubmitResult{NeedsSignature: true},
	}
	h := NewInspectionHandler(fake, testLogger())

	payload := map[string]any{
		"handle": map[string]any{"template_id": uuid.New(), "vehicle_id": uuid.New()},
	}
	body, _ := json.Marshal(payload)
	req := asDriver(httptest.NewRequest("POST", "/api/inspections/submit", bytes.NewBuffer(body)), uuid.New())
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for deferred submission, got %d", rec.Code)
	}
}

func TestSubmitHandler_MissingPhoto(t *testing.T) {
	fake := &fakeInspectionService{
		submitErr: &domain.MissingPhotoError{ItemID: "tires", ItemName: "Tire condition"},
	}
	h := NewInspectionHandler(fake, testLogger())

	payload := map[string]any{
		"handle": map[string]any{"template_id": uuid.New(), "vehicle_id": uuid.New()},
	}
	body, _ := json.Marshal(payload)
	req := asDriver(httptest.NewRequest("POST", "/api/inspections/submit", bytes.NewBuffer(body)), uuid.New())
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}
