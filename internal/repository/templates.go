package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Arthur094/checkship/internal/domain"
)

// TemplateRepo persists checklist template versions. The settings and the
// area tree are stored as JSONB; the analysis configuration is flattened into
// columns so pending-review queries can filter on it.
type TemplateRepo struct {
	pool *pgxpool.Pool
}

const templateColumns = `
	id, group_id, version, status, name, subject, description,
	settings, areas,
	requires_analysis, analysis_approvals_count,
	analysis_first_approver, analysis_second_approver,
	analysis_has_timer, analysis_timer_minutes,
	locked, created_at, updated_at`

// GetByID returns one template version.
func (r *TemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	const op = "repository.template.get"
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = $1`

	tpl, err := scanTemplate(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "template", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load template")
	}
	return tpl, nil
}

// GetPublishedByGroup returns the group's currently published version.
func (r *TemplateRepo) GetPublishedByGroup(ctx context.Context, groupID uuid.UUID) (*domain.Template, error) {
	const op = "repository.template.published_by_group"
	query := `SELECT ` + templateColumns + ` FROM templates WHERE group_id = $1 AND status = 'published'`

	tpl, err := scanTemplate(r.pool.QueryRow(ctx, query, groupID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "published template", groupID.String())
		}
		return nil, domain.Internal(err, op, "failed to load published template")
	}
	return tpl, nil
}

// ListPublished returns all published template versions ordered by name.
func (r *TemplateRepo) ListPublished(ctx context.Context) ([]domain.Template, error) {
	const op = "repository.template.list_published"
	query := `SELECT ` + templateColumns + ` FROM templates WHERE status = 'published' ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list templates")
	}
	defer rows.Close()

	var out []domain.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan template")
		}
		out = append(out, *tpl)
	}
	if rows.Err() != nil {
		return nil, domain.Internal(rows.Err(), op, "failed to read templates")
	}
	return out, nil
}

// ListVersions returns every version of one template group, newest first.
func (r *TemplateRepo) ListVersions(ctx context.Context, groupID uuid.UUID) ([]domain.Template, error) {
	const op = "repository.template.list_versions"
	query := `SELECT ` + templateColumns + ` FROM templates WHERE group_id = $1 ORDER BY version DESC`

	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list template versions")
	}
	defer rows.Close()

	var out []domain.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan template")
		}
		out = append(out, *tpl)
	}
	if rows.Err() != nil {
		return nil, domain.Internal(rows.Err(), op, "failed to read template versions")
	}
	return out, nil
}

// Insert persists a new template version.
func (r *TemplateRepo) Insert(ctx context.Context, tpl *domain.Template) error {
	const op = "repository.template.insert"
	const query = `
		INSERT INTO templates (
			id, group_id, version, status, name, subject, description,
			settings, areas,
			requires_analysis, analysis_approvals_count,
			analysis_first_approver, analysis_second_approver,
			analysis_has_timer, analysis_timer_minutes,
			locked, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	settings, areas, err := marshalTemplateJSON(tpl)
	if err != nil {
		return domain.Internal(err, op, "failed to encode template")
	}

	_, err = r.pool.Exec(ctx, query,
		tpl.ID, tpl.GroupID, tpl.Version, tpl.Status, tpl.Name, tpl.Subject, tpl.Description,
		settings, areas,
		tpl.RequiresAnalysis, tpl.AnalysisApprovalsCount,
		tpl.AnalysisFirstApprover, tpl.AnalysisSecondApprover,
		tpl.AnalysisHasTimer, tpl.AnalysisTimerMinutes,
		tpl.Locked, tpl.CreatedAt, tpl.UpdatedAt,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to insert template")
	}
	return nil
}

// Update rewrites an existing template version. Callers enforce editability;
// the query itself refuses to touch locked rows so a stale in-memory copy
// cannot clobber a version an inspection already references.
func (r *TemplateRepo) Update(ctx context.Context, tpl *domain.Template) error {
	const op = "repository.template.update"
	const query = `
		UPDATE templates SET
			status = $2, name = $3, subject = $4, description = $5,
			settings = $6, areas = $7,
			requires_analysis = $8, analysis_approvals_count = $9,
			analysis_first_approver = $10, analysis_second_approver = $11,
			analysis_has_timer = $12, analysis_timer_minutes = $13,
			updated_at = $14
		WHERE id = $1 AND NOT locked`

	settings, areas, err := marshalTemplateJSON(tpl)
	if err != nil {
		return domain.Internal(err, op, "failed to encode template")
	}

	tag, err := r.pool.Exec(ctx, query,
		tpl.ID, tpl.Status, tpl.Name, tpl.Subject, tpl.Description,
		settings, areas,
		tpl.RequiresAnalysis, tpl.AnalysisApprovalsCount,
		tpl.AnalysisFirstApprover, tpl.AnalysisSecondApprover,
		tpl.AnalysisHasTimer, tpl.AnalysisTimerMinutes,
		tpl.UpdatedAt,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to update template")
	}
	if tag.RowsAffected() == 0 {
		return domain.Locked(op, "template is locked or does not exist")
	}
	return nil
}

// Publish promotes a draft version to published and archives the group's
// previously published version in the same transaction.
func (r *TemplateRepo) Publish(ctx context.Context, id uuid.UUID) error {
	const op = "repository.template.publish"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var groupID uuid.UUID
	var status domain.TemplateStatus
	err = tx.QueryRow(ctx, `SELECT group_id, status FROM templates WHERE id = $1 FOR UPDATE`, id).
		Scan(&groupID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFound(op, "template", id.String())
		}
		return domain.Internal(err, op, "failed to load template")
	}
	if !status.CanTransitionTo(domain.TemplateStatusPublished) {
		return domain.InvalidTransition(op, status, domain.TemplateStatusPublished)
	}

	_, err = tx.Exec(ctx, `
		UPDATE templates SET status = 'archived', updated_at = now()
		WHERE group_id = $1 AND status = 'published'`, groupID)
	if err != nil {
		return domain.Internal(err, op, "failed to archive current version")
	}

	_, err = tx.Exec(ctx, `
		UPDATE templates SET status = 'published', updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, op, "failed to publish template")
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, op, "failed to commit publish")
	}
	return nil
}

// =============================================================================
// Row mapping
// =============================================================================

func marshalTemplateJSON(tpl *domain.Template) (settings, areas []byte, err error) {
	settings, err = json.Marshal(tpl.Settings)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal settings: %w", err)
	}
	areas, err = json.Marshal(tpl.Areas)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal areas: %w", err)
	}
	return settings, areas, nil
}

func scanTemplate(row pgx.Row) (*domain.Template, error) {
	var tpl domain.Template
	var settings, areas []byte

	err := row.Scan(
		&tpl.ID, &tpl.GroupID, &tpl.Version, &tpl.Status, &tpl.Name, &tpl.Subject, &tpl.Description,
		&settings, &areas,
		&tpl.RequiresAnalysis, &tpl.AnalysisApprovalsCount,
		&tpl.AnalysisFirstApprover, &tpl.AnalysisSecondApprover,
		&tpl.AnalysisHasTimer, &tpl.AnalysisTimerMinutes,
		&tpl.Locked, &tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(settings, &tpl.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := json.Unmarshal(areas, &tpl.Areas); err != nil {
		return nil, fmt.Errorf("unmarshal areas: %w", err)
	}
	return &tpl, nil
}
