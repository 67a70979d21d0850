package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arthur094/checkship/internal/domain"
)

func (f *fakeInspectionStore) ListPendingAnalysis(_ context.Context) ([]domain.Inspection, error) {
	var out []domain.Inspection
	for _, insp := range f.inspections {
		if insp.Status == domain.InspectionStatusPending {
			out = append(out, *insp)
		}
	}
	return out, nil
}

// newAnalysisFixture returns the service plus a pending inspection awaiting
// the given number of approval steps.
func newAnalysisFixture(t *testing.T, steps int) (AnalysisService, *fakeInspectionStore, *fakeStorage, *domain.Template, uuid.UUID) {
	t.Helper()

	tpl := &domain.Template{
		ID:                     uuid.New(),
		GroupID:                uuid.New(),
		Version:                1,
		Status:                 domain.TemplateStatusPublished,
		Name:                   "Pre-trip check",
		RequiresAnalysis:       true,
		AnalysisApprovalsCount: steps,
	}

	insp := &domain.Inspection{
		ID:          uuid.New(),
		TemplateID:  tpl.ID,
		VehicleID:   uuid.New(),
		InspectorID: uuid.New(),
		Responses:   domain.ResponseSet{},
		Status:      domain.InspectionStatusPending,
		StartedAt:   time.Now().UTC(),
		Analysis: domain.Analysis{
			Status:     domain.AnalysisStatusPending,
			TotalSteps: steps,
		},
	}

	inspections := newFakeInspectionStore()
	inspections.inspections[insp.ID] = insp
	templates := &fakeTemplateReader{templates: map[uuid.UUID]*domain.Template{tpl.ID: tpl}}
	store := newFakeStorage()

	svc := NewAnalysisService(inspections, templates, store, testLogger())
	return svc, inspections, store, tpl, insp.ID
}

func TestApproveSingleStepCompletes(t *testing.T) {
	svc, inspections, _, _, id := newAnalysisFixture(t, 1)

	outcome, err := svc.Approve(context.Background(), id, ApprovalRequest{AnalystID: uuid.New()})
	require.NoError(t, err)

	assert.True(t, outcome.Terminal)
	assert.Equal(t, 1, outcome.Step)
	assert.Equal(t, domain.InspectionStatusCompleted, outcome.Status)

	stored := inspections.inspections[id]
	assert.Equal(t, domain.AnalysisStatusApproved, stored.Analysis.Status)
	require.NotNil(t, stored.CompletedAt)
	require.NotNil(t, stored.Analysis.First)
	assert.Equal(t, domain.AnalysisStatusApproved, stored.Analysis.First.Result)
}

func TestApproveTwoStepsSequential(t *testing.T) {
	svc, inspections, _, _, id := newAnalysisFixture(t, 2)

	first, err := svc.Approve(context.Background(), id, ApprovalRequest{AnalystID: uuid.New()})
	require.NoError(t, err)
	assert.False(t, first.Terminal)
	assert.Equal(t, domain.InspectionStatusPending, first.Status)
	assert.Equal(t, domain.AnalysisStatusPending, inspections.inspections[id].Analysis.Status)

	second, err := svc.Approve(context.Background(), id, ApprovalRequest{AnalystID: uuid.New()})
	require.NoError(t, err)
	assert.True(t, second.Terminal)
	assert.Equal(t, 2, second.Step)
	assert.Equal(t, domain.InspectionStatusCompleted, inspections.inspections[id].Status)
}

func TestApproveEnforcesDesignatedApprover(t *testing.T) {
	svc, inspections, _, tpl, id := newAnalysisFixture(t, 2)

	first := uuid.New()
	second := uuid.New()
	tpl.AnalysisFirstApprover = &first
	tpl.AnalysisSecondApprover = &second

	_, err := svc.Approve(context.Background(), id, ApprovalRequest{AnalystID: second})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, 0, inspections.inspections[id].Analysis.CurrentStep)

	outcome, err := svc.Approve(context.Background(), id, ApprovalRequest{AnalystID: first})
	require.NoError(t, err)
	assert.False(t, outcome.Terminal)

	// Step one's analyst cannot also grant step two.
	_, err = svc.Approve(context.Background(), id, ApprovalRequest{AnalystID: first})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	outcome, err = svc.Approve(context.Background(), id, ApprovalRequest{AnalystID: second})
	require.NoError(t, err)
	assert.True(t, outcome.Terminal)
}

func TestRejectEnforcesDesignatedApprover(t *testing.T) {
	svc, inspections, _, tpl, id := newAnalysisFixture(t, 1)

	designated := uuid.New()
	tpl.AnalysisFirstApprover = &designated

	_, err := svc.Reject(context.Background(), id, ApprovalRequest{
		AnalystID: uuid.New(),
		Reason:    "brake wear exceeds limit",
	})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, domain.InspectionStatusPending, inspections.inspections[id].Status)

	outcome, err := svc.Reject(context.Background(), id, ApprovalRequest{
		AnalystID: designated,
		Reason:    "brake wear exceeds limit",
	})
	require.NoError(t, err)
	assert.True(t, outcome.Terminal)
}

func TestApproveAllowsAnyAnalystWhenUnassigned(t *testing.T) {
	svc, _, _, _, id := newAnalysisFixture(t, 1)

	outcome, err := svc.Approve(context.Background(), id, ApprovalRequest{AnalystID: uuid.New()})
	require.NoError(t, err)
	assert.True(t, outcome.Terminal)
}

func TestRejectRequiresReason(t *testing.T) {
	svc, inspections, _, _, id := newAnalysisFixture(t, 1)

	_, err := svc.Reject(context.Background(), id, ApprovalRequest{AnalystID: uuid.New()})
	require.Error(t, err)
	assert.Equal(t, domain.InspectionStatusPending, inspections.inspections[id].Status)

	outcome, err := svc.Reject(context.Background(), id, ApprovalRequest{
		AnalystID: uuid.New(),
		Reason:    "tire photos missing context",
	})
	require.NoError(t, err)
	assert.True(t, outcome.Terminal)
	assert.Equal(t, domain.InspectionStatusRejected, inspections.inspections[id].Status)
}

func TestRejectAtStepOneSkipsStepTwo(t *testing.T) {
	svc, inspections, _, _, id := newAnalysisFixture(t, 2)

	outcome, err := svc.Reject(context.Background(), id, ApprovalRequest{
		AnalystID: uuid.New(),
		Reason:    "odometer reading implausible",
	})
	require.NoError(t, err)

	assert.True(t, outcome.Terminal)
	stored := inspections.inspections[id]
	assert.Equal(t, domain.InspectionStatusRejected, stored.Status)
	assert.Nil(t, stored.Analysis.Second)
}

func TestApproveDefersForAnalystSignature(t *testing.T) {
	svc, inspections, store, tpl, id := newAnalysisFixture(t, 1)
	tpl.Settings.RequireAnalystSignature = true

	deferred, err := svc.Approve(context.Background(), id, ApprovalRequest{AnalystID: uuid.New()})
	require.NoError(t, err)
	assert.True(t, deferred.NeedsSignature)
	assert.Equal(t, domain.InspectionStatusPending, inspections.inspections[id].Status)

	outcome, err := svc.Approve(context.Background(), id, ApprovalRequest{
		AnalystID: uuid.New(),
		Signature: strings.NewReader("signature-png-bytes"),
	})
	require.NoError(t, err)
	assert.True(t, outcome.Terminal)
	assert.NotEmpty(t, inspections.inspections[id].AnalystSignatureURL)
	assert.Len(t, store.objects, 1)
}

func TestApproveTerminalInspection(t *testing.T) {
	svc, inspections, _, _, id := newAnalysisFixture(t, 1)
	inspections.inspections[id].Status = domain.InspectionStatusCompleted
	inspections.inspections[id].Analysis.Status = domain.AnalysisStatusApproved

	_, err := svc.Approve(context.Background(), id, ApprovalRequest{AnalystID: uuid.New()})
	assert.Equal(t, domain.ETRANSITION, domain.ErrorCode(err))
}

func TestListPendingReturnsAwaitingReview(t *testing.T) {
	svc, inspections, _, _, id := newAnalysisFixture(t, 1)

	pending, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)

	inspections.inspections[id].Status = domain.InspectionStatusRejected
	pending, err = svc.ListPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}
