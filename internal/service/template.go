// This file implements template management: creating checklist templates,
// editing drafts, versioning and the publish lifecycle.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Arthur094/checkship/internal/domain"
)

// TemplateStore is the slice of the repository the template service needs.
type TemplateStore interface {
	TemplateReader
	GetPublishedByGroup(ctx context.Context, groupID uuid.UUID) (*domain.Template, error)
	ListPublished(ctx context.Context) ([]domain.Template, error)
	ListVersions(ctx context.Context, groupID uuid.UUID) ([]domain.Template, error)
	Insert(ctx context.Context, tpl *domain.Template) error
	Update(ctx context.Context, tpl *domain.Template) error
	Publish(ctx context.Context, id uuid.UUID) error
}

// TemplateService defines template management operations.
type TemplateService interface {
	// Create stores a new template group as a draft version 1.
	Create(ctx context.Context, tpl domain.Template) (*domain.Template, error)

	// Update rewrites a draft version. Returns domain.ELOCKED when the
	// version is published or referenced by an inspection.
	Update(ctx context.Context, tpl domain.Template) error

	// Publish promotes a draft to the group's published version,
	// archiving the previous one.
	Publish(ctx context.Context, id uuid.UUID) error

	// NewVersion clones the group's latest version into a fresh editable
	// draft with the version number bumped.
	NewVersion(ctx context.Context, groupID uuid.UUID) (*domain.Template, error)

	GetByID(ctx context.Context, id uuid.UUID) (*domain.Template, error)
	ListPublished(ctx context.Context) ([]domain.Template, error)
}

type templateService struct {
	templates TemplateStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewTemplateService creates a new TemplateService.
func NewTemplateService(templates TemplateStore, logger *slog.Logger) TemplateService {
	return &templateService{
		templates: templates,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *templateService) Create(ctx context.Context, tpl domain.Template) (*domain.Template, error) {
	now := s.now().UTC()
	tpl.ID = uuid.New()
	tpl.GroupID = uuid.New()
	tpl.Version = 1
	tpl.Status = domain.TemplateStatusDraft
	tpl.Locked = false
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	if err := s.templates.Insert(ctx, &tpl); err != nil {
		return nil, err
	}

	s.logger.Info("template created", "template_id", tpl.ID, "group_id", tpl.GroupID, "name", tpl.Name)
	return &tpl, nil
}

func (s *templateService) Update(ctx context.Context, tpl domain.Template) error {
	const op = "template.update"

	current, err := s.templates.GetByID(ctx, tpl.ID)
	if err != nil {
		return err
	}
	if !current.IsEditable() {
		return domain.Locked(op, "template version is published or referenced by inspections")
	}

	// Identity and lineage are immutable on update.
	tpl.GroupID = current.GroupID
	tpl.Version = current.Version
	tpl.Status = current.Status
	tpl.CreatedAt = current.CreatedAt
	tpl.UpdatedAt = s.now().UTC()

	if err := tpl.Validate(); err != nil {
		return err
	}
	return s.templates.Update(ctx, &tpl)
}

func (s *templateService) Publish(ctx context.Context, id uuid.UUID) error {
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := tpl.Validate(); err != nil {
		return err
	}
	if err := s.templates.Publish(ctx, id); err != nil {
		return err
	}

	s.logger.Info("template published", "template_id", id, "group_id", tpl.GroupID, "version", tpl.Version)
	return nil
}

func (s *templateService) NewVersion(ctx context.Context, groupID uuid.UUID) (*domain.Template, error) {
	const op = "template.new_version"

	versions, err := s.templates.ListVersions(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, domain.NotFound(op, "template group", groupID.String())
	}

	// ListVersions returns newest first.
	latest := versions[0]
	now := s.now().UTC()

	next := latest
	next.ID = uuid.New()
	next.Version = latest.Version + 1
	next.Status = domain.TemplateStatusDraft
	next.Locked = false
	next.CreatedAt = now
	next.UpdatedAt = now

	if err := s.templates.Insert(ctx, &next); err != nil {
		return nil, err
	}

	s.logger.Info("template version created",
		"template_id", next.ID,
		"group_id", groupID,
		"version", next.Version,
	)
	return &next, nil
}

func (s *templateService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	return s.templates.GetByID(ctx, id)
}

func (s *templateService) ListPublished(ctx context.Context) ([]domain.Template, error) {
	return s.templates.ListPublished(ctx)
}
