// This file implements the analysis service: the approval workflow applied
// to submitted inspections by one or two sequential reviewers.
package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Arthur094/checkship/internal/domain"
	"github.com/Arthur094/checkship/internal/metrics"
	"github.com/Arthur094/checkship/internal/storage"
)

// AnalysisStore is the slice of the repository the analysis service needs.
type AnalysisStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Inspection, error)
	Update(ctx context.Context, insp *domain.Inspection) error
	ListPendingAnalysis(ctx context.Context) ([]domain.Inspection, error)
}

// ApprovalRequest carries one reviewer's decision input.
type ApprovalRequest struct {
	AnalystID uuid.UUID

	// Reason is required for rejections.
	Reason string

	// Signature is the captured analyst signature image, when the
	// template requires one. Nil means none was captured.
	Signature io.Reader
}

// AnalysisService defines the approval workflow operations.
type AnalysisService interface {
	// ListPending returns inspections awaiting review, oldest first.
	ListPending(ctx context.Context) ([]domain.Inspection, error)

	// Approve grants the current approval step. When the template
	// requires an analyst signature and none is supplied the outcome
	// reports NeedsSignature and nothing is persisted.
	Approve(ctx context.Context, inspectionID uuid.UUID, req ApprovalRequest) (*domain.ApprovalOutcome, error)

	// Reject rejects the inspection. Requires a non-empty reason and is
	// terminal regardless of remaining steps.
	Reject(ctx context.Context, inspectionID uuid.UUID, req ApprovalRequest) (*domain.ApprovalOutcome, error)
}

type analysisService struct {
	inspections AnalysisStore
	templates   TemplateReader
	store       storage.Storage
	logger      *slog.Logger
	now         func() time.Time
}

// NewAnalysisService creates a new AnalysisService.
func NewAnalysisService(
	inspections AnalysisStore,
	templates TemplateReader,
	store storage.Storage,
	logger *slog.Logger,
) AnalysisService {
	return &analysisService{
		inspections: inspections,
		templates:   templates,
		store:       store,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *analysisService) ListPending(ctx context.Context) ([]domain.Inspection, error) {
	return s.inspections.ListPendingAnalysis(ctx)
}

func (s *analysisService) Approve(ctx context.Context, inspectionID uuid.UUID, req ApprovalRequest) (*domain.ApprovalOutcome, error) {
	return s.decide(ctx, inspectionID, req, "approved",
		func(insp *domain.Inspection, tpl *domain.Template, d domain.Decision) (domain.ApprovalOutcome, error) {
			return insp.Approve(tpl, d)
		})
}

func (s *analysisService) Reject(ctx context.Context, inspectionID uuid.UUID, req ApprovalRequest) (*domain.ApprovalOutcome, error) {
	return s.decide(ctx, inspectionID, req, "rejected",
		func(insp *domain.Inspection, tpl *domain.Template, d domain.Decision) (domain.ApprovalOutcome, error) {
			return insp.Reject(tpl, d)
		})
}

// decide runs the shared approve/reject flow: load, optional signature
// upload, domain transition, persist.
func (s *analysisService) decide(
	ctx context.Context,
	inspectionID uuid.UUID,
	req ApprovalRequest,
	result string,
	apply func(*domain.Inspection, *domain.Template, domain.Decision) (domain.ApprovalOutcome, error),
) (*domain.ApprovalOutcome, error) {
	const op = "analysis.decide"

	insp, err := s.inspections.GetByID(ctx, inspectionID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.templates.GetByID(ctx, insp.TemplateID)
	if err != nil {
		return nil, err
	}

	step := insp.Analysis.CurrentStep + 1
	if want := tpl.DesignatedApprover(step); want != nil && *want != req.AnalystID {
		return nil, domain.Invalid(op, "decision is reserved for the designated approver of this step")
	}

	decision := domain.Decision{
		By:     req.AnalystID,
		At:     s.now().UTC(),
		Reason: req.Reason,
	}
	if req.Signature != nil {
		url, err := s.uploadSignature(ctx, insp.ID, req.Signature)
		if err != nil {
			return nil, err
		}
		decision.SignatureURL = url
	}

	outcome, err := apply(insp, tpl, decision)
	if err != nil {
		return nil, err
	}
	if outcome.NeedsSignature {
		return &outcome, nil
	}

	if err := s.inspections.Update(ctx, insp); err != nil {
		return nil, err
	}

	s.logger.Info("analysis decision recorded",
		"inspection_id", insp.ID,
		"analyst_id", req.AnalystID,
		"result", result,
		"step", outcome.Step,
		"terminal", outcome.Terminal,
	)
	metrics.ApprovalDecisions.WithLabelValues(result).Inc()

	return &outcome, nil
}

// uploadSignature stores a captured analyst signature and returns its URL.
func (s *analysisService) uploadSignature(ctx context.Context, inspectionID uuid.UUID, sig io.Reader) (string, error) {
	const op = "analysis.upload_signature"

	data, err := io.ReadAll(sig)
	if err != nil {
		return "", domain.Invalid(op, "failed to read signature image")
	}

	key := storage.SignatureKey(inspectionID, "analyst")
	err = s.store.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{ContentType: "image/png"})
	if err != nil {
		return "", domain.Unavailable(err, op, "failed to store signature")
	}
	return s.store.URL(ctx, key, 0)
}
