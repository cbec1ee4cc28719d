package jobs_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisisbrief/crisisbrief/internal/genai"
	"github.com/crisisbrief/crisisbrief/internal/shared"
	"github.com/crisisbrief/crisisbrief/internal/summaries"
	"github.com/crisisbrief/crisisbrief/internal/templates"
	"github.com/crisisbrief/crisisbrief/internal/users"
	"github.com/crisisbrief/crisisbrief/jobs"
	_ "github.com/crisisbrief/crisisbrief/testing"
)

type templateRepo struct {
	items map[string]*templates.Template
}

func newTemplateRepo(seed ...*templates.Template) *templateRepo {
	r := &templateRepo{items: make(map[string]*templates.Template)}
	for _, t := range seed {
		r.items[t.ID] = t
	}
	return r
}

func (r *templateRepo) Create(ctx context.Context, t templates.Template) (string, error) {
	if t.ID == "" {
		t.ID = "tpl-stored"
	}
	r.items[t.ID] = &t
	return t.ID, nil
}

func (r *templateRepo) ListByRecipient(ctx context.Context, recipient string) ([]templates.Template, error) {
	return nil, nil
}

func (r *templateRepo) ListAll(ctx context.Context) ([]templates.Template, error) { return nil, nil }

func (r *templateRepo) GetByID(ctx context.Context, id string) (*templates.Template, error) {
	t, ok := r.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *templateRepo) Delete(ctx context.Context, id string) error {
	delete(r.items, id)
	return nil
}

type summaryRepo struct {
	items map[string]*summaries.Summary
}

func newSummaryRepo() *summaryRepo {
	return &summaryRepo{items: make(map[string]*summaries.Summary)}
}

func (r *summaryRepo) Create(ctx context.Context, s summaries.Summary) (string, error) {
	if s.ID == "" {
		s.ID = "sum-stored"
	}
	r.items[s.ID] = &s
	return s.ID, nil
}

func (r *summaryRepo) ListByRecipient(ctx context.Context, recipient string) ([]summaries.Summary, error) {
	return nil, nil
}

func (r *summaryRepo) GetByID(ctx context.Context, id string) (*summaries.Summary, error) {
	s, ok := r.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *summaryRepo) Delete(ctx context.Context, id string) error {
	delete(r.items, id)
	return nil
}

type userRepo struct {
	store map[string]*users.User
}

func newUserRepo(seed ...*users.User) *userRepo {
	r := &userRepo{store: make(map[string]*users.User)}
	for _, u := range seed {
		r.store[u.ID] = u
	}
	return r
}

func (r *userRepo) List(ctx context.Context) ([]users.User, error) { return nil, nil }

func (r *userRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	u, ok := r.store[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	for _, u := range r.store {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *userRepo) UpdateRole(ctx context.Context, id string, role shared.Role) error { return nil }

func (r *userRepo) SetEmailNotifications(ctx context.Context, id string, enabled bool) error {
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error { return nil }

func (r *userRepo) CountAdmins(ctx context.Context) (int, error) {
	n := 0
	for _, u := range r.store {
		if u.Role == shared.RoleAdmin {
			n++
		}
	}
	return n, nil
}

type recordingMail struct {
	sent []jobs.SendEmailPayload
}

func (m *recordingMail) EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	m.sent = append(m.sent, payload)
	return &asynq.TaskInfo{}, nil
}

type nullDispatcher struct{}

func (nullDispatcher) EnqueueTemplateGeneration(ctx context.Context, req templates.GenerationRequest) error {
	return nil
}

func (nullDispatcher) EnqueueSummaryGeneration(ctx context.Context, req summaries.GenerationRequest) error {
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func genTemplateTask(t *testing.T, payload jobs.GenerateTemplatePayload) *asynq.Task {
	t.Helper()
	task, err := jobs.NewGenerateTemplateTask(payload)
	require.NoError(t, err)
	return task
}

func genSummaryTask(t *testing.T, payload jobs.GenerateSummaryPayload) *asynq.Task {
	t.Helper()
	task, err := jobs.NewGenerateSummaryTask(payload)
	require.NoError(t, err)
	return task
}

func fakeGenAI(t *testing.T) (*genai.Client, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/generate-template":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"template":   "Hurricane <name> made landfall near <area>.",
				"attributes": []string{"name", "area"},
			})
		case "/generate-summary":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"summary": "Condensed coverage of the event.",
				"title":   "Hurricane Strikes Coast",
			})
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	return genai.NewClient(srv.URL), srv.Close
}

func TestTemplateGenerationStoresAndNotifies(t *testing.T) {
	client, done := fakeGenAI(t)
	defer done()

	tplRepo := newTemplateRepo()
	mail := &recordingMail{}
	job := &jobs.TemplateGenerationJob{
		GenAI:     client,
		Templates: templates.NewService(tplRepo, nullDispatcher{}, discardLogger()),
		Users: users.NewService(newUserRepo(&users.User{
			ID: "u1", Email: "ada@test.local", FirstName: "Ada", LastName: "Lovelace",
			EmailNotifications: true,
		})),
		Mail:   mail,
		Logger: discardLogger(),
	}

	task := genTemplateTask(t, jobs.GenerateTemplatePayload{
		Recipient: "ada@test.local",
		Category:  "Hurricane",
		Notes:     "past landfalls",
	})
	require.NoError(t, job.Handle(context.Background(), task))

	stored, err := tplRepo.GetByID(context.Background(), "tpl-stored")
	require.NoError(t, err)
	assert.Equal(t, "ada@test.local", stored.Recipient)
	assert.Contains(t, stored.Content, "<name>")
	assert.Equal(t, []string{"name", "area"}, stored.Attributes)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "ada@test.local", mail.sent[0].To)
	assert.Equal(t, "Your Hurricane Template is Ready!", mail.sent[0].Subject)
	assert.Contains(t, mail.sent[0].Body, "Hi Ada Lovelace,")
}

func TestTemplateGenerationSkipsMailWhenNotificationsOff(t *testing.T) {
	client, done := fakeGenAI(t)
	defer done()

	mail := &recordingMail{}
	job := &jobs.TemplateGenerationJob{
		GenAI:     client,
		Templates: templates.NewService(newTemplateRepo(), nullDispatcher{}, discardLogger()),
		Users: users.NewService(newUserRepo(&users.User{
			ID: "u1", Email: "ada@test.local", EmailNotifications: false,
		})),
		Mail:   mail,
		Logger: discardLogger(),
	}

	task := genTemplateTask(t, jobs.GenerateTemplatePayload{Recipient: "ada@test.local", Category: "Flood"})
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Empty(t, mail.sent)
}

func TestTemplateGenerationBadPayloadSkipsRetry(t *testing.T) {
	job := &jobs.TemplateGenerationJob{Logger: discardLogger()}
	task := asynq.NewTask(jobs.TaskTypeGenerateTemplate, []byte("{not json"))
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestTemplateGenerationUpstreamFailureIsRetryable(t *testing.T) {
	// Port 0 is never listening, so the generation call fails at transport.
	job := &jobs.TemplateGenerationJob{
		GenAI:     genai.NewClient("http://127.0.0.1:0"),
		Templates: templates.NewService(newTemplateRepo(), nullDispatcher{}, discardLogger()),
		Logger:    discardLogger(),
	}
	task := genTemplateTask(t, jobs.GenerateTemplatePayload{Recipient: "ada@test.local", Category: "Flood"})

	err := job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestSummaryGenerationUsesStoredTemplate(t *testing.T) {
	client, done := fakeGenAI(t)
	defer done()

	sumRepo := newSummaryRepo()
	job := &jobs.SummaryGenerationJob{
		GenAI:          client,
		Summaries:      summaries.NewService(sumRepo, nullDispatcher{}, discardLogger()),
		TemplateSource: newTemplateRepo(&templates.Template{ID: "tpl-1", Content: "Flood hit <area>."}),
		Users:          users.NewService(newUserRepo()),
		Mail:           &recordingMail{},
		Logger:         discardLogger(),
	}

	task := genSummaryTask(t, jobs.GenerateSummaryPayload{
		Recipient:  "ada@test.local",
		Category:   "Hurricane",
		URLs:       []string{"https://example.com/a"},
		TemplateID: "tpl-1",
	})
	require.NoError(t, job.Handle(context.Background(), task))

	stored, err := sumRepo.GetByID(context.Background(), "sum-stored")
	require.NoError(t, err)
	assert.Equal(t, "Hurricane Strikes Coast", stored.Title)
	assert.Equal(t, "tpl-1", stored.TemplateID)
}

func TestSummaryGenerationToleratesMissingTemplate(t *testing.T) {
	client, done := fakeGenAI(t)
	defer done()

	sumRepo := newSummaryRepo()
	job := &jobs.SummaryGenerationJob{
		GenAI:          client,
		Summaries:      summaries.NewService(sumRepo, nullDispatcher{}, discardLogger()),
		TemplateSource: newTemplateRepo(),
		Users:          users.NewService(newUserRepo()),
		Logger:         discardLogger(),
	}

	task := genSummaryTask(t, jobs.GenerateSummaryPayload{
		Recipient:  "ada@test.local",
		Category:   "Hurricane",
		URLs:       []string{"https://example.com/a"},
		TemplateID: "gone",
	})
	require.NoError(t, job.Handle(context.Background(), task))

	stored, err := sumRepo.GetByID(context.Background(), "sum-stored")
	require.NoError(t, err)
	assert.Empty(t, stored.TemplateID, "a summary must not reference a template that no longer exists")
}
