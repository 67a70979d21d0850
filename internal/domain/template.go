// This file defines the checklist template tree: templates, areas, sub-areas
// and items, plus template versioning and feature settings.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Item Types
// =============================================================================

// ItemType identifies the input kind of a checklist item. Only evaluative
// items participate in scoring.
type ItemType string

const (
	ItemTypeEvaluative ItemType = "avaliativo"
	ItemTypeNumeric    ItemType = "numerico"
	ItemTypeText       ItemType = "texto"
	ItemTypeDate       ItemType = "data"
	ItemTypeRegistry   ItemType = "cadastro"
	ItemTypeSelection  ItemType = "lista_selecao"
)

// String returns the string representation of the item type.
func (t ItemType) String() string {
	return string(t)
}

// IsValid returns true if the item type is a recognized value.
func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypeEvaluative, ItemTypeNumeric, ItemTypeText,
		ItemTypeDate, ItemTypeRegistry, ItemTypeSelection:
		return true
	}
	return false
}

// Scorable reports whether answers to this item type contribute points.
func (t ItemType) Scorable() bool {
	return t == ItemTypeEvaluative
}

// =============================================================================
// Template Tree
// =============================================================================

// ItemConfig is the per-type configuration bag of an item.
type ItemConfig struct {
	// Scale names the discrete answer set of an evaluative item
	// (e.g. "conforme", "bom_regular_ruim", "sim_nao", "thumbs", "smiley").
	// Informational for rendering; the matching itself is vocabulary-wide.
	Scale string `json:"scale,omitempty"`

	// RequirePhotoAlways is the legacy flag forcing a photo regardless of
	// the answer given.
	RequirePhotoAlways bool `json:"require_photo_always,omitempty"`

	// RequirePhotoOn lists answer tokens that make a photo mandatory once
	// the recorded answer matches one of them semantically.
	RequirePhotoOn []string `json:"require_photo_on,omitempty"`

	// AllowPhoto exposes the optional photo affordance even when no
	// trigger fires.
	AllowPhoto bool `json:"allow_photo,omitempty"`

	// Options and MultipleChoice configure selection items.
	Options        []string `json:"options,omitempty"`
	MultipleChoice bool     `json:"multiple_choice,omitempty"`

	// NumericKind and RegistryKind refine numeric and registry items.
	NumericKind  string `json:"numeric_kind,omitempty"`
	RegistryKind string `json:"registry_kind,omitempty"`
}

// Item is a single checklist question. Item IDs are unique within a template
// and stable across template edits; answers are keyed by them.
type Item struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Type   ItemType   `json:"type"`
	Config ItemConfig `json:"config"`
}

// SubArea groups items beneath an area.
type SubArea struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// Area is a top-level section of a template with direct items and sub-areas.
type Area struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Items    []Item    `json:"items"`
	SubAreas []SubArea `json:"sub_areas,omitempty"`
}

// =============================================================================
// Template Settings
// =============================================================================

// DefaultMinScoreToPass is the pass threshold applied when a template does
// not configure one.
const DefaultMinScoreToPass = 70.0

// Settings holds the feature toggles of a template.
type Settings struct {
	RequireDriverSignature  bool    `json:"require_driver_signature,omitempty"`
	RequireAnalystSignature bool    `json:"require_analyst_signature,omitempty"`
	ScoringEnabled          bool    `json:"scoring_enabled,omitempty"`
	MinScoreToPass          float64 `json:"min_score_to_pass,omitempty"`
	AllowGalleryAttachments bool    `json:"allow_gallery_attachments,omitempty"`
	ShowTimestamps          bool    `json:"show_timestamps,omitempty"`
}

// =============================================================================
// Template Status
// =============================================================================

// TemplateStatus represents the publication state of a template version.
type TemplateStatus string

const (
	// TemplateStatusDraft indicates a version still being edited.
	TemplateStatusDraft TemplateStatus = "draft"

	// TemplateStatusPublished indicates the single active version of its group.
	TemplateStatusPublished TemplateStatus = "published"

	// TemplateStatusArchived indicates a superseded version kept for
	// historical inspections.
	TemplateStatusArchived TemplateStatus = "archived"
)

// String returns the string representation of the status.
func (s TemplateStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s TemplateStatus) IsValid() bool {
	switch s {
	case TemplateStatusDraft, TemplateStatusPublished, TemplateStatusArchived:
		return true
	}
	return false
}

// CanTransitionTo checks if the template can move to the target status.
//
// Valid transitions:
// - draft -> published (publishing archives the group's current published version)
// - published -> archived (superseded by a newer version)
func (s TemplateStatus) CanTransitionTo(target TemplateStatus) bool {
	switch s {
	case TemplateStatusDraft:
		return target == TemplateStatusPublished
	case TemplateStatusPublished:
		return target == TemplateStatusArchived
	}
	return false
}

// =============================================================================
// Template
// =============================================================================

// Template is one version of a checklist definition.
//
// All versions of one logical template share a GroupID; at most one version
// per group is published at a time. A version becomes immutable once at least
// one inspection references it.
type Template struct {
	ID          uuid.UUID
	GroupID     uuid.UUID
	Version     int
	Status      TemplateStatus
	Name        string
	Subject     string
	Description string
	Settings    Settings
	Areas       []Area

	// Analysis (approval workflow) configuration
	RequiresAnalysis       bool
	AnalysisApprovalsCount int // 1 or 2 sequential approvers
	AnalysisFirstApprover  *uuid.UUID
	AnalysisSecondApprover *uuid.UUID
	AnalysisHasTimer       bool
	AnalysisTimerMinutes   int

	// Locked is set once an inspection references this version.
	Locked bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PassThreshold returns the configured minimum passing score, falling back
// to DefaultMinScoreToPass when unset.
func (t *Template) PassThreshold() float64 {
	if t.Settings.MinScoreToPass > 0 {
		return t.Settings.MinScoreToPass
	}
	return DefaultMinScoreToPass
}

// TotalSteps returns the number of approval steps the workflow runs,
// normalizing unset configuration to a single step.
func (t *Template) TotalSteps() int {
	if t.AnalysisApprovalsCount == 2 {
		return 2
	}
	return 1
}

// DesignatedApprover returns the analyst assigned to the given 1-based
// analysis step, or nil when any analyst may decide it.
func (t *Template) DesignatedApprover(step int) *uuid.UUID {
	switch step {
	case 1:
		return t.AnalysisFirstApprover
	case 2:
		return t.AnalysisSecondApprover
	}
	return nil
}

// IsEditable returns true if the template version can still be modified.
func (t *Template) IsEditable() bool {
	return t.Status == TemplateStatusDraft && !t.Locked
}

// WalkItems visits every item in submission traversal order: areas in order,
// each area's direct items before its sub-areas, sub-areas in order. The walk
// stops early when fn returns false.
func (t *Template) WalkItems(fn func(item Item) bool) {
	for _, area := range t.Areas {
		for _, item := range area.Items {
			if !fn(item) {
				return
			}
		}
		for _, sub := range area.SubAreas {
			for _, item := range sub.Items {
				if !fn(item) {
					return
				}
			}
		}
	}
}

// FindItem returns the item with the given ID, or false if absent.
func (t *Template) FindItem(id string) (Item, bool) {
	var found Item
	ok := false
	t.WalkItems(func(item Item) bool {
		if item.ID == id {
			found = item
			ok = true
			return false
		}
		return true
	})
	return found, ok
}

// Validate checks the structural invariants of the template tree.
func (t *Template) Validate() error {
	const op = "template.validate"

	if t.Name == "" {
		return Invalid(op, "template name is required")
	}
	if t.RequiresAnalysis && t.AnalysisApprovalsCount != 1 && t.AnalysisApprovalsCount != 2 {
		return Invalid(op, "analysis approvals count must be 1 or 2")
	}

	seen := make(map[string]struct{})
	var dup string
	t.WalkItems(func(item Item) bool {
		if item.ID == "" {
			dup = "item with empty id"
			return false
		}
		if _, exists := seen[item.ID]; exists {
			dup = "duplicate item id " + item.ID
			return false
		}
		seen[item.ID] = struct{}{}
		return true
	})
	if dup != "" {
		return Invalid(op, dup)
	}
	return nil
}
