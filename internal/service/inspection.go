// Package service contains the business logic layer.
//
// This file implements the inspection pipeline: beginning an inspection
// against a vehicle and template, recording answers, attaching photo
// evidence and submitting with validation, scoring and offline fallback.
package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Arthur094/checkship/internal/domain"
	"github.com/Arthur094/checkship/internal/metrics"
	"github.com/Arthur094/checkship/internal/storage"
	"github.com/Arthur094/checkship/internal/synccache"
)

// =============================================================================
// Store Interfaces
// =============================================================================

// InspectionStore is the slice of the repository the pipeline needs.
// Implemented by repository.InspectionRepo; faked in tests.
type InspectionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Inspection, error)
	FindInProgress(ctx context.Context, templateID, vehicleID, inspectorID uuid.UUID) (*domain.Inspection, error)
	Insert(ctx context.Context, insp *domain.Inspection) error
	Update(ctx context.Context, insp *domain.Inspection) error
}

// TemplateReader loads template versions. Implemented by
// repository.TemplateRepo; faked in tests.
type TemplateReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Template, error)
}

// =============================================================================
// Interface Definition
// =============================================================================

// Handle identifies an inspection-in-progress in either store. Online
// inspections carry their server id; offline ones are backed by the local
// draft keyed by (vehicle, template) and receive a server id at submission.
type Handle struct {
	ID          uuid.UUID `json:"id,omitempty"`
	TemplateID  uuid.UUID `json:"template_id"`
	VehicleID   uuid.UUID `json:"vehicle_id"`
	InspectorID uuid.UUID `json:"inspector_id"`
	Offline     bool      `json:"offline,omitempty"`
}

// BeginResult reports how an inspection was started.
type BeginResult struct {
	Inspection *domain.Inspection `json:"inspection"`
	Handle     Handle             `json:"handle"`

	// Resumed is true when an existing in-progress inspection or local
	// draft was picked up instead of a new one being created.
	Resumed bool `json:"resumed"`
}

// SubmitOptions carries the optional inputs to a submission.
type SubmitOptions struct {
	// DriverSignatureURL is the captured driver signature. When the
	// template requires one and none was captured earlier, submission
	// defers until it is supplied.
	DriverSignatureURL string
}

// SubmitResult reports the effect of a submission attempt.
type SubmitResult struct {
	Inspection *domain.Inspection `json:"inspection"`

	// NeedsSignature is true when submission was deferred awaiting the
	// driver signature. Nothing was mutated.
	NeedsSignature bool `json:"needs_signature,omitempty"`

	// Queued is true when the remote store could not be reached and the
	// finalized inspection was queued for reconciliation instead.
	Queued  bool   `json:"queued,omitempty"`
	LocalID string `json:"local_id,omitempty"`
}

// InspectionService defines the inspection pipeline operations.
type InspectionService interface {
	// Begin resumes the inspector's open inspection for the template and
	// vehicle, or creates a new one. When the remote store is unreachable
	// it falls back to the local draft store.
	Begin(ctx context.Context, templateID, vehicleID, inspectorID uuid.UUID) (*BeginResult, error)

	// GetByID retrieves an inspection.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Inspection, error)

	// RecordAnswer merges a partial answer update into one item's answer.
	// Returns domain.ELOCKED if the inspection is no longer editable and
	// domain.ENOTFOUND if the item does not exist in the template.
	RecordAnswer(ctx context.Context, h Handle, itemID string, patch domain.AnswerPatch) (*domain.Inspection, error)

	// AttachPhoto uploads photo evidence for an item, downscaling it
	// first. When the object store is unreachable the encoded photo is
	// retained inline in the answer and uploaded by a later sync.
	AttachPhoto(ctx context.Context, h Handle, itemID, filename string, photo io.Reader) (*domain.Inspection, error)

	// SaveDraft persists the full response set without completeness
	// validation, so partially filled inspections survive restarts.
	SaveDraft(ctx context.Context, h Handle, responses domain.ResponseSet) error

	// Submit validates, scores and finalizes the inspection. Mandatory
	// photo checks fail closed on the first offending item in traversal
	// order. A single remote persistence attempt is made; on failure the
	// finalized inspection is queued for reconciliation.
	Submit(ctx context.Context, h Handle, opts SubmitOptions) (*SubmitResult, error)
}

// =============================================================================
// Implementation
// =============================================================================

type inspectionService struct {
	inspections InspectionStore
	templates   TemplateReader
	cache       *synccache.Cache
	store       storage.Storage
	logger      *slog.Logger
	now         func() time.Time
}

// NewInspectionService creates a new InspectionService.
func NewInspectionService(
	inspections InspectionStore,
	templates TemplateReader,
	cache *synccache.Cache,
	store storage.Storage,
	logger *slog.Logger,
) InspectionService {
	return &inspectionService{
		inspections: inspections,
		templates:   templates,
		cache:       cache,
		store:       store,
		logger:      logger,
		now:         time.Now,
	}
}

// =============================================================================
// Begin
// =============================================================================

func (s *inspectionService) Begin(ctx context.Context, templateID, vehicleID, inspectorID uuid.UUID) (*BeginResult, error) {
	const op = "inspection.begin"

	tpl, err := s.template(ctx, templateID)
	if err != nil {
		return nil, err
	}

	handle := Handle{
		TemplateID:  templateID,
		VehicleID:   vehicleID,
		InspectorID: inspectorID,
	}

	// Resume the open inspection if one exists.
	insp, err := s.inspections.FindInProgress(ctx, templateID, vehicleID, inspectorID)
	if err == nil {
		handle.ID = insp.ID
		s.logger.Info("inspection resumed", "inspection_id", insp.ID, "inspector_id", inspectorID)
		return &BeginResult{Inspection: insp, Handle: handle, Resumed: true}, nil
	}
	if domain.ErrorCode(err) != domain.ENOTFOUND {
		// Remote store unreachable; work against the local draft.
		s.logger.Warn("remote store unreachable, using local draft", "error", err)
		return s.beginOffline(ctx, tpl, handle)
	}

	if tpl.Status != domain.TemplateStatusPublished {
		return nil, domain.Invalid(op, "template version is not published")
	}

	now := s.now().UTC()
	insp = &domain.Inspection{
		ID:              uuid.New(),
		TemplateID:      templateID,
		VehicleID:       vehicleID,
		InspectorID:     inspectorID,
		TemplateVersion: tpl.Version,
		Responses:       domain.ResponseSet{},
		Status:          domain.InspectionStatusInProgress,
		StartedAt:       now,
	}
	if err := s.inspections.Insert(ctx, insp); err != nil {
		s.logger.Warn("failed to create inspection remotely, using local draft", "error", err)
		return s.beginOffline(ctx, tpl, handle)
	}

	handle.ID = insp.ID
	s.logger.Info("inspection started",
		"inspection_id", insp.ID,
		"template_id", templateID,
		"vehicle_id", vehicleID,
		"inspector_id", inspectorID,
	)
	metrics.InspectionsStarted.Inc()

	return &BeginResult{Inspection: insp, Handle: handle}, nil
}

// beginOffline resumes or creates the local draft for the handle's key.
func (s *inspectionService) beginOffline(ctx context.Context, tpl *domain.Template, h Handle) (*BeginResult, error) {
	h.Offline = true

	draft, err := s.cache.LoadDraft(ctx, h.VehicleID, h.TemplateID)
	if err == nil {
		return &BeginResult{
			Inspection: s.draftInspection(draft, tpl, h),
			Handle:     h,
			Resumed:    true,
		}, nil
	}

	draft = synccache.Draft{
		VehicleID:    h.VehicleID,
		TemplateID:   h.TemplateID,
		Responses:    domain.ResponseSet{},
		TemplateName: tpl.Name,
	}
	if err := s.cache.SaveDraft(ctx, draft); err != nil {
		return nil, err
	}
	metrics.InspectionsStarted.Inc()
	metrics.DraftsSaved.Inc()

	return &BeginResult{Inspection: s.draftInspection(draft, tpl, h), Handle: h}, nil
}

// draftInspection hydrates a transient Inspection view from a draft. The id
// stays zero until submission assigns one.
func (s *inspectionService) draftInspection(draft synccache.Draft, tpl *domain.Template, h Handle) *domain.Inspection {
	startedAt := draft.CreatedAt
	if startedAt.IsZero() {
		startedAt = s.now().UTC()
	}
	return &domain.Inspection{
		TemplateID:      h.TemplateID,
		VehicleID:       h.VehicleID,
		InspectorID:     h.InspectorID,
		TemplateVersion: tpl.Version,
		Responses:       draft.Responses,
		Status:          domain.InspectionStatusInProgress,
		StartedAt:       startedAt,
	}
}

// =============================================================================
// GetByID
// =============================================================================

func (s *inspectionService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Inspection, error) {
	return s.inspections.GetByID(ctx, id)
}

// =============================================================================
// RecordAnswer
// =============================================================================

func (s *inspectionService) RecordAnswer(ctx context.Context, h Handle, itemID string, patch domain.AnswerPatch) (*domain.Inspection, error) {
	const op = "inspection.record_answer"

	insp, tpl, err := s.load(ctx, h)
	if err != nil {
		return nil, err
	}
	if !insp.IsEditable() {
		return nil, domain.Locked(op, "inspection is no longer editable")
	}

	item, ok := tpl.FindItem(itemID)
	if !ok {
		return nil, domain.NotFound(op, "item", itemID)
	}
	if patch.Value != nil && !patch.Value.IsZero() {
		if err := validateAnswerValue(op, item, *patch.Value); err != nil {
			return nil, err
		}
	}

	if insp.Responses == nil {
		insp.Responses = domain.ResponseSet{}
	}
	insp.Responses[itemID] = insp.Responses[itemID].Apply(patch, s.now().UTC())

	if err := s.persist(ctx, h, insp, tpl); err != nil {
		return nil, err
	}
	return insp, nil
}

// validateAnswerValue checks that the value shape matches the item type.
func validateAnswerValue(op string, item domain.Item, v domain.AnswerValue) error {
	switch item.Type {
	case domain.ItemTypeEvaluative, domain.ItemTypeText, domain.ItemTypeDate, domain.ItemTypeRegistry:
		if v.Kind() != domain.AnswerKindString {
			return domain.Invalid(op, "item "+item.ID+" expects a text answer")
		}
	case domain.ItemTypeNumeric:
		if v.Kind() != domain.AnswerKindNumber {
			return domain.Invalid(op, "item "+item.ID+" expects a numeric answer")
		}
	case domain.ItemTypeSelection:
		if item.Config.MultipleChoice {
			if v.Kind() != domain.AnswerKindStrings {
				return domain.Invalid(op, "item "+item.ID+" expects a list of options")
			}
		} else if v.Kind() != domain.AnswerKindString {
			return domain.Invalid(op, "item "+item.ID+" expects a single option")
		}
	}
	return nil
}

// =============================================================================
// AttachPhoto
// =============================================================================

func (s *inspectionService) AttachPhoto(ctx context.Context, h Handle, itemID, filename string, photo io.Reader) (*domain.Inspection, error) {
	const op = "inspection.attach_photo"

	insp, tpl, err := s.load(ctx, h)
	if err != nil {
		return nil, err
	}
	if !insp.IsEditable() {
		return nil, domain.Locked(op, "inspection is no longer editable")
	}

	item, ok := tpl.FindItem(itemID)
	if !ok {
		return nil, domain.NotFound(op, "item", itemID)
	}
	answer := insp.Responses[itemID]
	if !domain.ShouldShowAttachmentField(item, answer) {
		return nil, domain.Invalid(op, "item "+item.ID+" does not accept photo evidence")
	}

	prepared, err := storage.PreparePhoto(photo)
	if err != nil {
		return nil, domain.Invalid(op, "unsupported or corrupt image")
	}

	patch := domain.AnswerPatch{}
	if h.Offline {
		// No object store reachable by definition; retain inline until
		// the reconciler pushes the inspection.
		inline := base64.StdEncoding.EncodeToString(prepared)
		patch.InlineImage = &inline
	} else {
		key := storage.PhotoKey(insp.ID, filename)
		err := s.store.Put(ctx, key, bytes.NewReader(prepared), storage.PutOptions{
			ContentType: "image/jpeg",
		})
		if err != nil {
			s.logger.Warn("photo upload failed, retaining inline", "inspection_id", insp.ID, "item_id", itemID, "error", err)
			metrics.PhotoUploads.WithLabelValues("error").Inc()
			inline := base64.StdEncoding.EncodeToString(prepared)
			patch.InlineImage = &inline
		} else {
			url, err := s.store.URL(ctx, key, 0)
			if err != nil {
				return nil, err
			}
			metrics.PhotoUploads.WithLabelValues("ok").Inc()
			patch.ImageURL = &url
			patch.AddPhotos = []string{url}
		}
	}

	if insp.Responses == nil {
		insp.Responses = domain.ResponseSet{}
	}
	insp.Responses[itemID] = answer.Apply(patch, s.now().UTC())

	if err := s.persist(ctx, h, insp, tpl); err != nil {
		return nil, err
	}
	return insp, nil
}

// =============================================================================
// SaveDraft
// =============================================================================

func (s *inspectionService) SaveDraft(ctx context.Context, h Handle, responses domain.ResponseSet) error {
	const op = "inspection.save_draft"

	insp, tpl, err := s.load(ctx, h)
	if err != nil {
		return err
	}
	if !insp.IsEditable() {
		return domain.Locked(op, "inspection is no longer editable")
	}

	insp.Responses = responses
	if err := s.persist(ctx, h, insp, tpl); err != nil {
		return err
	}
	metrics.DraftsSaved.Inc()
	return nil
}

// =============================================================================
// Submit
// =============================================================================

func (s *inspectionService) Submit(ctx context.Context, h Handle, opts SubmitOptions) (*SubmitResult, error) {
	const op = "inspection.submit"

	insp, tpl, err := s.load(ctx, h)
	if err != nil {
		return nil, err
	}
	if !insp.IsEditable() {
		return nil, domain.Locked(op, "inspection has already been submitted")
	}

	// Mandatory photo validation, first offender in traversal order wins.
	if err := validateRequiredPhotos(tpl, insp.Responses); err != nil {
		return nil, err
	}

	// Driver signature gating: defer without mutating anything.
	if tpl.Settings.RequireDriverSignature && insp.DriverSignatureURL == "" && opts.DriverSignatureURL == "" {
		return &SubmitResult{Inspection: insp, NeedsSignature: true}, nil
	}
	if opts.DriverSignatureURL != "" {
		insp.DriverSignatureURL = opts.DriverSignatureURL
	}

	if tpl.Settings.ScoringEnabled {
		score := domain.CalculateScore(tpl, insp.Responses)
		insp.Score = &score
	}

	now := s.now().UTC()
	if err := insp.Finalize(tpl, now); err != nil {
		return nil, err
	}

	if h.Offline {
		return s.queueSubmission(ctx, h, insp)
	}

	if err := s.inspections.Update(ctx, insp); err != nil {
		s.logger.Warn("remote submission failed, queueing for sync", "inspection_id", insp.ID, "error", err)
		return s.queueSubmission(ctx, h, insp)
	}

	s.logger.Info("inspection submitted",
		"inspection_id", insp.ID,
		"status", insp.Status,
		"requires_analysis", tpl.RequiresAnalysis,
	)
	metrics.InspectionsSubmitted.WithLabelValues("online").Inc()

	return &SubmitResult{Inspection: insp}, nil
}

// queueSubmission parks a finalized inspection in the pending queue and
// drops the matching draft. Draft-born inspections receive their permanent
// id here.
func (s *inspectionService) queueSubmission(ctx context.Context, h Handle, insp *domain.Inspection) (*SubmitResult, error) {
	if insp.ID == uuid.Nil {
		insp.ID = uuid.New()
	}

	pending, err := s.cache.EnqueuePending(ctx, *insp)
	if err != nil {
		return nil, err
	}
	if err := s.cache.DeleteDraft(ctx, h.VehicleID, h.TemplateID); err != nil {
		s.logger.Warn("failed to delete draft after queueing", "local_id", pending.LocalID, "error", err)
	}
	metrics.InspectionsSubmitted.WithLabelValues("offline").Inc()

	return &SubmitResult{Inspection: insp, Queued: true, LocalID: pending.LocalID}, nil
}

// validateRequiredPhotos returns a MissingPhotoError for the first item in
// traversal order whose mandatory photo is absent.
func validateRequiredPhotos(tpl *domain.Template, responses domain.ResponseSet) error {
	var missing *domain.MissingPhotoError
	tpl.WalkItems(func(item domain.Item) bool {
		answer := responses[item.ID]
		if domain.IsPhotoMandatory(item, answer) && !answer.HasPhotoEvidence() {
			missing = &domain.MissingPhotoError{ItemID: item.ID, ItemName: item.Name}
			return false
		}
		return true
	})
	if missing != nil {
		return missing
	}
	return nil
}

// =============================================================================
// Shared helpers
// =============================================================================

// template loads a template version, falling back to the offline cache when
// the remote store is unreachable.
func (s *inspectionService) template(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	tpl, err := s.templates.GetByID(ctx, id)
	if err == nil {
		return tpl, nil
	}
	if domain.ErrorCode(err) == domain.ENOTFOUND {
		return nil, err
	}
	cached, cacheErr := s.cache.TemplateByID(ctx, id)
	if cacheErr != nil {
		return nil, err
	}
	return cached, nil
}

// load materializes the working inspection and its template for a handle.
func (s *inspectionService) load(ctx context.Context, h Handle) (*domain.Inspection, *domain.Template, error) {
	const op = "inspection.load"

	tpl, err := s.template(ctx, h.TemplateID)
	if err != nil {
		return nil, nil, err
	}

	if h.Offline {
		draft, err := s.cache.LoadDraft(ctx, h.VehicleID, h.TemplateID)
		if err != nil {
			return nil, nil, domain.NotFound(op, "draft", h.VehicleID.String())
		}
		return s.draftInspection(draft, tpl, h), tpl, nil
	}

	insp, err := s.inspections.GetByID(ctx, h.ID)
	if err != nil {
		return nil, nil, err
	}
	return insp, tpl, nil
}

// persist writes the working inspection back to its backing store.
func (s *inspectionService) persist(ctx context.Context, h Handle, insp *domain.Inspection, tpl *domain.Template) error {
	if h.Offline {
		return s.cache.SaveDraft(ctx, synccache.Draft{
			VehicleID:    h.VehicleID,
			TemplateID:   h.TemplateID,
			Responses:    insp.Responses,
			TemplateName: tpl.Name,
		})
	}
	return s.inspections.Update(ctx, insp)
}
