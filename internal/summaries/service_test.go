package summaries_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisisbrief/crisisbrief/internal/authz"
	"github.com/crisisbrief/crisisbrief/internal/shared"
	"github.com/crisisbrief/crisisbrief/internal/summaries"
	_ "github.com/crisisbrief/crisisbrief/testing"
)

type stubRepo struct {
	items map[string]*summaries.Summary
}

func newStubRepo(seed ...*summaries.Summary) *stubRepo {
	r := &stubRepo{items: make(map[string]*summaries.Summary)}
	for _, s := range seed {
		r.items[s.ID] = s
	}
	return r
}

func (r *stubRepo) Create(ctx context.Context, s summaries.Summary) (string, error) {
	if s.ID == "" {
		s.ID = "generated"
	}
	r.items[s.ID] = &s
	return s.ID, nil
}

func (r *stubRepo) ListByRecipient(ctx context.Context, recipient string) ([]summaries.Summary, error) {
	out := make([]summaries.Summary, 0)
	for _, s := range r.items {
		if s.Recipient == recipient {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *stubRepo) GetByID(ctx context.Context, id string) (*summaries.Summary, error) {
	s, ok := r.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *stubRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

type recordingDispatcher struct {
	requests []summaries.GenerationRequest
}

func (d *recordingDispatcher) EnqueueSummaryGeneration(ctx context.Context, req summaries.GenerationRequest) error {
	d.requests = append(d.requests, req)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func owner() *authz.Identity {
	return &authz.Identity{ID: "u1", Email: "owner@test.local", Role: shared.RoleUser}
}

func TestGetEnforcesOwnership(t *testing.T) {
	repo := newStubRepo(&summaries.Summary{ID: "s1", Recipient: "owner@test.local", Title: "Flood Report"})
	svc := summaries.NewService(repo, &recordingDispatcher{}, discardLogger())

	got, err := svc.Get(context.Background(), owner(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Flood Report", got.Title)

	other := &authz.Identity{ID: "u2", Email: "other@test.local", Role: shared.RoleUser}
	_, err = svc.Get(context.Background(), other, "s1")
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	admin := &authz.Identity{ID: "a1", Email: "admin@test.local", Role: shared.RoleAdmin}
	_, err = svc.Get(context.Background(), admin, "s1")
	assert.NoError(t, err)
}

func TestRequestGenerationFiltersURLs(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	svc := summaries.NewService(newStubRepo(), dispatcher, discardLogger())

	err := svc.RequestGeneration(context.Background(), owner(), "Wildfire", "tpl-1", []string{
		"https://example.com/a",
		"https://example.com/a", // duplicate
		"not a url",
		"ftp://example.com/b", // wrong scheme
		"  https://example.com/c  ",
		"",
	})
	require.NoError(t, err)
	require.Len(t, dispatcher.requests, 1)

	req := dispatcher.requests[0]
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/c"}, req.URLs)
	assert.Equal(t, "tpl-1", req.TemplateID)
}

func TestRequestGenerationRequiresInput(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	svc := summaries.NewService(newStubRepo(), dispatcher, discardLogger())

	err := svc.RequestGeneration(context.Background(), owner(), "", "", []string{"https://example.com/a"})
	assert.ErrorIs(t, err, shared.ErrValidation, "category is required")

	err = svc.RequestGeneration(context.Background(), owner(), "Wildfire", "", []string{"junk"})
	assert.ErrorIs(t, err, shared.ErrValidation, "at least one valid url is required")

	assert.Empty(t, dispatcher.requests)
}
