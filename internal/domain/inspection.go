// This file defines the Inspection domain type, its lifecycle and the
// approval workflow state machine.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Inspection Status
// =============================================================================

// InspectionStatus represents the lifecycle state of an inspection.
type InspectionStatus string

const (
	// InspectionStatusInProgress indicates an inspection is being filled
	// out. The only state in which responses may change.
	InspectionStatusInProgress InspectionStatus = "in_progress"

	// InspectionStatusPending indicates a submitted inspection awaiting
	// one or two sequential approvals.
	InspectionStatusPending InspectionStatus = "pending"

	// InspectionStatusCompleted indicates a finalized inspection, either
	// approved or submitted without an analysis requirement. Terminal.
	InspectionStatusCompleted InspectionStatus = "completed"

	// InspectionStatusRejected indicates an approver rejected the
	// inspection. Terminal.
	InspectionStatusRejected InspectionStatus = "rejected"
)

// String returns the string representation of the status.
func (s InspectionStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s InspectionStatus) IsValid() bool {
	switch s {
	case InspectionStatusInProgress, InspectionStatusPending,
		InspectionStatusCompleted, InspectionStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further lifecycle transitions are permitted.
func (s InspectionStatus) Terminal() bool {
	return s == InspectionStatusCompleted || s == InspectionStatusRejected
}

// CanTransitionTo checks if the inspection can transition to the target status.
//
// Valid transitions:
// - in_progress -> pending (submitted, template requires analysis)
// - in_progress -> completed (submitted, no analysis required)
// - pending -> completed (all approvals granted)
// - pending -> rejected (any approver rejects)
func (s InspectionStatus) CanTransitionTo(target InspectionStatus) bool {
	switch s {
	case InspectionStatusInProgress:
		return target == InspectionStatusPending || target == InspectionStatusCompleted
	case InspectionStatusPending:
		return target == InspectionStatusCompleted || target == InspectionStatusRejected
	}
	return false
}

// =============================================================================
// Analysis (approval workflow) State
// =============================================================================

// AnalysisStatus is the review outcome of a submitted inspection.
type AnalysisStatus string

const (
	// AnalysisStatusNone means the template carries no analysis
	// requirement and no review ever ran.
	AnalysisStatusNone AnalysisStatus = ""

	AnalysisStatusPending  AnalysisStatus = "pending"
	AnalysisStatusApproved AnalysisStatus = "approved"
	AnalysisStatusRejected AnalysisStatus = "rejected"
)

// String returns the string representation of the status.
func (s AnalysisStatus) String() string {
	return string(s)
}

// Terminal reports whether the analysis can no longer change.
func (s AnalysisStatus) Terminal() bool {
	return s == AnalysisStatusApproved || s == AnalysisStatusRejected
}

// StepResult records one approver's decision.
type StepResult struct {
	Result AnalysisStatus `json:"result"` // approved or rejected
	By     uuid.UUID      `json:"by"`
	At     time.Time      `json:"at"`
	Reason string         `json:"reason,omitempty"`
}

// Analysis holds the approval workflow state of an inspection.
type Analysis struct {
	Status AnalysisStatus `json:"status,omitempty"`

	// CurrentStep is the 0-based count of approvals granted so far.
	CurrentStep int `json:"current_step"`

	// TotalSteps is 1 or 2 as configured on the template at submission.
	TotalSteps int `json:"total_steps"`

	First  *StepResult `json:"first,omitempty"`
	Second *StepResult `json:"second,omitempty"`
}

// =============================================================================
// Inspection
// =============================================================================

// Inspection is one filled-out execution of a template against a vehicle by
// an inspector.
//
// Once the status leaves in_progress the inspection is logically immutable
// except for the analysis fields written by the approval workflow.
type Inspection struct {
	ID          uuid.UUID `json:"id"`
	TemplateID  uuid.UUID `json:"template_id"`
	VehicleID   uuid.UUID `json:"vehicle_id"`
	InspectorID uuid.UUID `json:"inspector_id"`

	// TemplateVersion pins the template version the responses were
	// recorded against.
	TemplateVersion int `json:"template_version,omitempty"`

	Responses ResponseSet      `json:"responses"`
	Status    InspectionStatus `json:"status"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Score    *Score   `json:"score,omitempty"`
	Analysis Analysis `json:"analysis"`

	DriverSignatureURL  string `json:"driver_signature_url,omitempty"`
	AnalystSignatureURL string `json:"analyst_signature_url,omitempty"`
}

// IsEditable returns true if responses may still be recorded.
func (i *Inspection) IsEditable() bool {
	return i.Status == InspectionStatusInProgress
}

// Deadline returns the analysis deadline for a submitted inspection, or zero
// if the template configures no timer. The deadline is informational only;
// expiry never forces a transition.
func (i *Inspection) Deadline(tpl *Template) time.Time {
	if !tpl.AnalysisHasTimer || tpl.AnalysisTimerMinutes <= 0 {
		return time.Time{}
	}
	return i.StartedAt.Add(time.Duration(tpl.AnalysisTimerMinutes) * time.Minute)
}

// Overdue reports whether the analysis deadline has passed for a still
// pending inspection.
func (i *Inspection) Overdue(tpl *Template, now time.Time) bool {
	d := i.Deadline(tpl)
	return !d.IsZero() && i.Status == InspectionStatusPending && now.After(d)
}

// =============================================================================
// Submission Transition
// =============================================================================

// Finalize moves a validated, scored inspection out of in_progress.
//
// If the template requires analysis the inspection enters pending with the
// workflow initialized; otherwise it completes directly with the analysis
// implicitly approved.
func (i *Inspection) Finalize(tpl *Template, now time.Time) error {
	const op = "inspection.finalize"

	if i.Status != InspectionStatusInProgress {
		return InvalidTransition(op, i.Status, InspectionStatusCompleted)
	}

	if tpl.RequiresAnalysis {
		i.Status = InspectionStatusPending
		i.Analysis = Analysis{
			Status:      AnalysisStatusPending,
			CurrentStep: 0,
			TotalSteps:  tpl.TotalSteps(),
		}
		return nil
	}

	i.Status = InspectionStatusCompleted
	i.Analysis = Analysis{Status: AnalysisStatusApproved}
	i.CompletedAt = &now
	return nil
}

// =============================================================================
// Approval / Rejection Transitions
// =============================================================================

// Decision carries one approver's input to an approve or reject transition.
type Decision struct {
	By     uuid.UUID
	At     time.Time
	Reason string

	// SignatureURL is the captured analyst signature. When the template
	// requires one and it is absent, the transition defers: no state
	// changes and the caller re-invokes with the signature supplied.
	SignatureURL string
}

// ApprovalOutcome reports the effect of an approve or reject call.
type ApprovalOutcome struct {
	// NeedsSignature is true when the transition was deferred awaiting an
	// analyst signature. Nothing was mutated.
	NeedsSignature bool

	// Step is the 1-based step the decision landed on.
	Step int

	// Terminal is true once the analysis reached approved or rejected.
	Terminal bool

	Status InspectionStatus
}

// Approve grants the current approval step.
//
// On the final step the analysis becomes approved and the inspection
// completes; otherwise it remains pending awaiting the next approver.
// Attempts against a non-pending inspection fail with an invalid transition
// error and mutate nothing.
func (i *Inspection) Approve(tpl *Template, d Decision) (ApprovalOutcome, error) {
	const op = "inspection.approve"

	if err := i.guardAnalysis(op); err != nil {
		return ApprovalOutcome{}, err
	}
	if tpl.Settings.RequireAnalystSignature && d.SignatureURL == "" {
		return ApprovalOutcome{NeedsSignature: true, Status: i.Status}, nil
	}

	step := i.Analysis.CurrentStep + 1
	if step > i.Analysis.TotalSteps {
		return ApprovalOutcome{}, InvalidTransition(op, i.Status, InspectionStatusCompleted)
	}

	i.recordStep(step, StepResult{
		Result: AnalysisStatusApproved,
		By:     d.By,
		At:     d.At,
	})
	i.Analysis.CurrentStep = step
	if d.SignatureURL != "" {
		i.AnalystSignatureURL = d.SignatureURL
	}

	if step >= i.Analysis.TotalSteps {
		i.Analysis.Status = AnalysisStatusApproved
		i.Status = InspectionStatusCompleted
		at := d.At
		i.CompletedAt = &at
		return ApprovalOutcome{Step: step, Terminal: true, Status: i.Status}, nil
	}

	return ApprovalOutcome{Step: step, Status: i.Status}, nil
}

// Reject rejects the inspection at the current step.
//
// Rejection requires a non-empty reason and is terminal regardless of the
// configured step count: a reject at step 1 of a 2-step workflow skips
// step 2 entirely.
func (i *Inspection) Reject(tpl *Template, d Decision) (ApprovalOutcome, error) {
	const op = "inspection.reject"

	if err := i.guardAnalysis(op); err != nil {
		return ApprovalOutcome{}, err
	}
	if strings.TrimSpace(d.Reason) == "" {
		return ApprovalOutcome{}, &MissingReasonError{Op: op}
	}
	if tpl.Settings.RequireAnalystSignature && d.SignatureURL == "" {
		return ApprovalOutcome{NeedsSignature: true, Status: i.Status}, nil
	}

	step := i.Analysis.CurrentStep + 1
	i.recordStep(step, StepResult{
		Result: AnalysisStatusRejected,
		By:     d.By,
		At:     d.At,
		Reason: d.Reason,
	})
	if d.SignatureURL != "" {
		i.AnalystSignatureURL = d.SignatureURL
	}

	i.Analysis.Status = AnalysisStatusRejected
	i.Status = InspectionStatusRejected
	return ApprovalOutcome{Step: step, Terminal: true, Status: i.Status}, nil
}

// guardAnalysis verifies that an approval transition is currently allowed.
func (i *Inspection) guardAnalysis(op string) error {
	if i.Analysis.Status.Terminal() {
		return InvalidTransition(op, i.Analysis.Status, AnalysisStatusPending)
	}
	if i.Status != InspectionStatusPending {
		return InvalidTransition(op, i.Status, InspectionStatusPending)
	}
	return nil
}

// recordStep stores a decision in the slot for the given 1-based step.
func (i *Inspection) recordStep(step int, result StepResult) {
	r := result
	if step == 1 {
		i.Analysis.First = &r
	} else {
		i.Analysis.Second = &r
	}
}
