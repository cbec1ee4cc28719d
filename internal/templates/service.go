package templates

import (
	"context"
	"log/slog"
	"strings"

	"github.com/crisisbrief/crisisbrief/internal/authz"
	"github.com/crisisbrief/crisisbrief/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, t Template) (string, error)
	ListByRecipient(ctx context.Context, recipient string) ([]Template, error)
	ListAll(ctx context.Context) ([]Template, error)
	GetByID(ctx context.Context, id string) (*Template, error)
	Delete(ctx context.Context, id string) error
}

// Dispatcher enqueues background generation work.
type Dispatcher interface {
	EnqueueTemplateGeneration(ctx context.Context, req GenerationRequest) error
}

// Service holds the template business rules.
type Service struct {
	repo       RepositoryPort
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, dispatcher Dispatcher, logger *slog.Logger) *Service {
	return &Service{repo: repo, dispatcher: dispatcher, logger: logger}
}

// ListFor returns the templates visible to the identity: their own.
func (s *Service) ListFor(ctx context.Context, ident *authz.Identity) ([]Template, error) {
	return s.repo.ListByRecipient(ctx, ident.Email)
}

// ListAll returns every template. Callers gate this behind the admin check.
func (s *Service) ListAll(ctx context.Context) ([]Template, error) {
	return s.repo.ListAll(ctx)
}

// Get fetches one template, enforcing that only the owner or an admin can
// read it. A template someone else owns reads as ErrUnauthorized, not
// ErrNotFound, so the caller can distinguish the cases in logs.
func (s *Service) Get(ctx context.Context, ident *authz.Identity, id string) (*Template, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Recipient != ident.Email && !ident.IsAdmin() {
		return nil, shared.ErrUnauthorized
	}
	return t, nil
}

// Delete removes a template with the same ownership rule as Get.
func (s *Service) Delete(ctx context.Context, ident *authz.Identity, id string) error {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t.Recipient != ident.Email && !ident.IsAdmin() {
		return shared.ErrUnauthorized
	}
	return s.repo.Delete(ctx, id)
}

// RequestGeneration validates and enqueues a generation run for the identity.
func (s *Service) RequestGeneration(ctx context.Context, ident *authz.Identity, category, notes string, attributes []string) error {
	req := GenerationRequest{
		Recipient:  ident.Email,
		Category:   strings.TrimSpace(category),
		Notes:      strings.TrimSpace(notes),
		Attributes: cleanAttributes(attributes),
	}
	if req.Category == "" {
		return shared.ErrValidation
	}
	if err := s.dispatcher.EnqueueTemplateGeneration(ctx, req); err != nil {
		s.logger.Error("enqueue template generation", slog.String("recipient", req.Recipient), slog.Any("error", err))
		return err
	}
	s.logger.Info("template generation queued", slog.String("recipient", req.Recipient), slog.String("category", req.Category))
	return nil
}

// Store persists a finished generation result. Used by the worker.
func (s *Service) Store(ctx context.Context, t Template) (string, error) {
	return s.repo.Create(ctx, t)
}

// CreateManual stores a hand-written template, bypassing generation. Admins
// use this to seed templates for events the generation service handles badly.
func (s *Service) CreateManual(ctx context.Context, ident *authz.Identity, t Template) (string, error) {
	t.Recipient = strings.TrimSpace(t.Recipient)
	if t.Recipient == "" {
		t.Recipient = ident.Email
	}
	t.Category = strings.TrimSpace(t.Category)
	t.Content = strings.TrimSpace(t.Content)
	t.Attributes = cleanAttributes(t.Attributes)
	if t.Category == "" || t.Content == "" {
		return "", shared.ErrValidation
	}
	id, err := s.repo.Create(ctx, t)
	if err != nil {
		return "", err
	}
	s.logger.Info("template created manually", slog.String("id", id), slog.String("by", ident.Email))
	return id, nil
}

func cleanAttributes(attrs []string) []string {
	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
