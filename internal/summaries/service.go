package summaries

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/crisisbrief/crisisbrief/internal/authz"
	"github.com/crisisbrief/crisisbrief/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, s Summary) (string, error)
	ListByRecipient(ctx context.Context, recipient string) ([]Summary, error)
	GetByID(ctx context.Context, id string) (*Summary, error)
	Delete(ctx context.Context, id string) error
}

// Dispatcher enqueues background generation work.
type Dispatcher interface {
	EnqueueSummaryGeneration(ctx context.Context, req GenerationRequest) error
}

// Service holds the summary business rules.
type Service struct {
	repo       RepositoryPort
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, dispatcher Dispatcher, logger *slog.Logger) *Service {
	return &Service{repo: repo, dispatcher: dispatcher, logger: logger}
}

// ListFor returns the summaries owned by the identity.
func (s *Service) ListFor(ctx context.Context, ident *authz.Identity) ([]Summary, error) {
	return s.repo.ListByRecipient(ctx, ident.Email)
}

// Get fetches one summary. Only the owner or an admin can read it.
func (s *Service) Get(ctx context.Context, ident *authz.Identity, id string) (*Summary, error) {
	sum, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sum.Recipient != ident.Email && !ident.IsAdmin() {
		return nil, shared.ErrUnauthorized
	}
	return sum, nil
}

// Delete removes a summary with the same ownership rule as Get.
func (s *Service) Delete(ctx context.Context, ident *authz.Identity, id string) error {
	sum, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sum.Recipient != ident.Email && !ident.IsAdmin() {
		return shared.ErrUnauthorized
	}
	return s.repo.Delete(ctx, id)
}

// RequestGeneration validates the input and enqueues a generation run. At
// least one well-formed source URL and a category are required.
func (s *Service) RequestGeneration(ctx context.Context, ident *authz.Identity, category, templateID string, urls []string) error {
	req := GenerationRequest{
		Recipient:  ident.Email,
		Category:   strings.TrimSpace(category),
		TemplateID: strings.TrimSpace(templateID),
		URLs:       cleanURLs(urls),
	}
	if req.Category == "" || len(req.URLs) == 0 {
		return shared.ErrValidation
	}
	if err := s.dispatcher.EnqueueSummaryGeneration(ctx, req); err != nil {
		s.logger.Error("enqueue summary generation", slog.String("recipient", req.Recipient), slog.Any("error", err))
		return err
	}
	s.logger.Info("summary generation queued",
		slog.String("recipient", req.Recipient),
		slog.String("category", req.Category),
		slog.Int("urls", len(req.URLs)))
	return nil
}

// Store persists a finished generation result. Used by the worker.
func (s *Service) Store(ctx context.Context, sum Summary) (string, error) {
	return s.repo.Create(ctx, sum)
}

func cleanURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		out = append(out, raw)
	}
	return out
}
