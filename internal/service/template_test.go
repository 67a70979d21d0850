package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arthur094/checkship/internal/domain"
)

// fakeTemplateStore keeps template versions in memory.
type fakeTemplateStore struct {
	templates map[uuid.UUID]*domain.Template
}

func newFakeTemplateStore() *fakeTemplateStore {
	return &fakeTemplateStore{templates: make(map[uuid.UUID]*domain.Template)}
}

func (f *fakeTemplateStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	tpl, ok := f.templates[id]
	if !ok {
		return nil, domain.NotFound("fakeTemplateStore.GetByID", "template", id.String())
	}
	clone := *tpl
	return &clone, nil
}

func (f *fakeTemplateStore) GetPublishedByGroup(ctx context.Context, groupID uuid.UUID) (*domain.Template, error) {
	for _, tpl := range f.templates {
		if tpl.GroupID == groupID && tpl.Status == domain.TemplateStatusPublished {
			clone := *tpl
			return &clone, nil
		}
	}
	return nil, domain.NotFound("fakeTemplateStore.GetPublishedByGroup", "template group", groupID.String())
}

func (f *fakeTemplateStore) ListPublished(ctx context.Context) ([]domain.Template, error) {
	var out []domain.Template
	for _, tpl := range f.templates {
		if tpl.Status == domain.TemplateStatusPublished {
			out = append(out, *tpl)
		}
	}
	return out, nil
}

func (f *fakeTemplateStore) ListVersions(ctx context.Context, groupID uuid.UUID) ([]domain.Template, error) {
	var out []domain.Template
	for _, tpl := range f.templates {
		if tpl.GroupID == groupID {
			out = append(out, *tpl)
		}
	}
	// Newest first, matching the repository's ORDER BY version DESC.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Version > out[i].Version {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeTemplateStore) Insert(ctx context.Context, tpl *domain.Template) error {
	clone := *tpl
	f.templates[tpl.ID] = &clone
	return nil
}

func (f *fakeTemplateStore) Update(ctx context.Context, tpl *domain.Template) error {
	current, ok := f.templates[tpl.ID]
	if !ok {
		return domain.NotFound("fakeTemplateStore.Update", "template", tpl.ID.String())
	}
	if current.Locked {
		return domain.Locked("fakeTemplateStore.Update", "template version is locked")
	}
	clone := *tpl
	f.templates[tpl.ID] = &clone
	return nil
}

func (f *fakeTemplateStore) Publish(ctx context.Context, id uuid.UUID) error {
	tpl, ok := f.templates[id]
	if !ok {
		return domain.NotFound("fakeTemplateStore.Publish", "template", id.String())
	}
	if !tpl.Status.CanTransitionTo(domain.TemplateStatusPublished) {
		return domain.InvalidTransition("fakeTemplateStore.Publish", tpl.Status, domain.TemplateStatusPublished)
	}
	for _, other := range f.templates {
		if other.GroupID == tpl.GroupID && other.Status == domain.TemplateStatusPublished {
			other.Status = domain.TemplateStatusArchived
		}
	}
	tpl.Status = domain.TemplateStatusPublished
	return nil
}

func draftTemplate() domain.Template {
	return domain.Template{
		Name:    "Pre-trip checklist",
		Subject: "vehicle",
		Areas: []domain.Area{{
			ID:   "cab",
			Name: "Cab",
			Items: []domain.Item{
				{ID: "mirrors", Name: "Mirrors", Type: domain.ItemTypeEvaluative},
			},
		}},
	}
}

func TestTemplateCreateStartsAsDraftV1(t *testing.T) {
	store := newFakeTemplateStore()
	svc := NewTemplateService(store, testLogger())

	created, err := svc.Create(context.Background(), draftTemplate())
	require.NoError(t, err)

	assert.Equal(t, 1, created.Version)
	assert.Equal(t, domain.TemplateStatusDraft, created.Status)
	assert.False(t, created.Locked)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.NotEqual(t, uuid.Nil, created.GroupID)
}

func TestTemplateCreateRejectsDuplicateItemIDs(t *testing.T) {
	store := newFakeTemplateStore()
	svc := NewTemplateService(store, testLogger())

	tpl := draftTemplate()
	tpl.Areas[0].Items = append(tpl.Areas[0].Items, domain.Item{
		ID: "mirrors", Name: "Mirrors again", Type: domain.ItemTypeEvaluative,
	})

	_, err := svc.Create(context.Background(), tpl)
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestTemplateUpdateRefusesPublishedVersion(t *testing.T) {
	store := newFakeTemplateStore()
	svc := NewTemplateService(store, testLogger())

	created, err := svc.Create(context.Background(), draftTemplate())
	require.NoError(t, err)
	require.NoError(t, svc.Publish(context.Background(), created.ID))

	update := *created
	update.Name = "Renamed"
	err = svc.Update(context.Background(), update)
	require.Error(t, err)
	assert.Equal(t, domain.ELOCKED, domain.ErrorCode(err))
}

func TestTemplateUpdatePreservesLineage(t *testing.T) {
	store := newFakeTemplateStore()
	svc := NewTemplateService(store, testLogger())

	created, err := svc.Create(context.Background(), draftTemplate())
	require.NoError(t, err)

	update := *created
	update.Name = "Renamed"
	update.GroupID = uuid.New() // must be ignored
	update.Version = 99         // must be ignored
	require.NoError(t, svc.Update(context.Background(), update))

	got, err := svc.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, created.GroupID, got.GroupID)
	assert.Equal(t, 1, got.Version)
}

func TestTemplatePublishArchivesPrevious(t *testing.T) {
	store := newFakeTemplateStore()
	svc := NewTemplateService(store, testLogger())

	v1, err := svc.Create(context.Background(), draftTemplate())
	require.NoError(t, err)
	require.NoError(t, svc.Publish(context.Background(), v1.ID))

	v2, err := svc.NewVersion(context.Background(), v1.GroupID)
	require.NoError(t, err)
	require.NoError(t, svc.Publish(context.Background(), v2.ID))

	published, err := svc.ListPublished(context.Background())
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, v2.ID, published[0].ID)

	old, err := svc.GetByID(context.Background(), v1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TemplateStatusArchived, old.Status)
}

func TestTemplateNewVersionClonesLatest(t *testing.T) {
	store := newFakeTemplateStore()
	svc := NewTemplateService(store, testLogger())

	v1, err := svc.Create(context.Background(), draftTemplate())
	require.NoError(t, err)
	require.NoError(t, svc.Publish(context.Background(), v1.ID))

	// Simulate the first inspection locking the published version.
	store.templates[v1.ID].Locked = true

	v2, err := svc.NewVersion(context.Background(), v1.GroupID)
	require.NoError(t, err)

	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, domain.TemplateStatusDraft, v2.Status)
	assert.False(t, v2.Locked)
	assert.Equal(t, v1.Name, v2.Name)
	assert.NotEqual(t, v1.ID, v2.ID)
}

func TestTemplateNewVersionUnknownGroup(t *testing.T) {
	store := newFakeTemplateStore()
	svc := NewTemplateService(store, testLogger())

	_, err := svc.NewVersion(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
