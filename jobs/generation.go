package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/crisisbrief/crisisbrief/internal/genai"
	jobmetrics "github.com/crisisbrief/crisisbrief/internal/jobs"
	"github.com/crisisbrief/crisisbrief/internal/shared"
	"github.com/crisisbrief/crisisbrief/internal/summaries"
	"github.com/crisisbrief/crisisbrief/internal/templates"
	"github.com/crisisbrief/crisisbrief/internal/users"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// MailEnqueuer queues notification emails after a finished generation run.
type MailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// TemplateLookup resolves a stored template for summary generation.
type TemplateLookup interface {
	GetByID(ctx context.Context, id string) (*templates.Template, error)
}

// TemplateGenerationJob turns queued template requests into stored templates.
type TemplateGenerationJob struct {
	GenAI     *genai.Client
	Templates *templates.Service
	Users     *users.Service
	Mail      MailEnqueuer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle processes TaskTypeGenerateTemplate tasks. Upstream outages surface
// as retryable errors so Asynq re-runs the task.
func (j *TemplateGenerationJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("template generation: handler not configured")
	}
	var payload GenerateTemplatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeGenerateTemplate)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("recipient", payload.Recipient), slog.String("category", payload.Category))
	logger.Info("starting template generation")
	start := time.Now()

	result, err := j.GenAI.GenerateTemplate(ctx, payload.Category, payload.Notes)
	if err != nil {
		resultErr = err
		logger.Error("generate template", slog.Any("error", err))
		return resultErr
	}

	attributes := result.Attributes
	if len(attributes) == 0 {
		attributes = payload.Attributes
	}
	id, err := j.Templates.Store(ctx, templates.Template{
		Recipient:  payload.Recipient,
		Category:   payload.Category,
		Content:    result.Template,
		Attributes: attributes,
	})
	if err != nil {
		resultErr = err
		logger.Error("store template", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddGeneration("template", payload.Category)
	logger.Info("template generated", slog.String("id", id), slog.Duration("duration", time.Since(start)))

	notifyGeneration(ctx, j.Users, j.Mail, logger, payload.Recipient,
		fmt.Sprintf("Your %s Template is Ready!", payload.Category),
		fmt.Sprintf("Your template for '%s' has been generated.\n\nYou can now return to the site to view the template.", payload.Category))
	return resultErr
}

// SummaryGenerationJob turns queued summary requests into stored summaries.
type SummaryGenerationJob struct {
	GenAI          *genai.Client
	Summaries      *summaries.Service
	TemplateSource TemplateLookup
	Users          *users.Service
	Mail           MailEnqueuer
	Logger         *slog.Logger
	Metrics        *jobmetrics.Metrics
}

// Handle processes TaskTypeGenerateSummary tasks.
func (j *SummaryGenerationJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("summary generation: handler not configured")
	}
	var payload GenerateSummaryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeGenerateSummary)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("recipient", payload.Recipient), slog.String("category", payload.Category))
	logger.Info("starting summary generation", slog.Int("urls", len(payload.URLs)))
	start := time.Now()

	var templateContent string
	if payload.TemplateID != "" && j.TemplateSource != nil {
		tpl, err := j.TemplateSource.GetByID(ctx, payload.TemplateID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			// Generate without the template rather than failing the run. The
			// stored summary must not reference a template that is gone.
			logger.Warn("template for summary missing", slog.String("template_id", payload.TemplateID))
			payload.TemplateID = ""
		case err != nil:
			resultErr = err
			logger.Error("load template", slog.String("template_id", payload.TemplateID), slog.Any("error", err))
			return resultErr
		default:
			templateContent = tpl.Content
		}
	}

	result, err := j.GenAI.GenerateSummary(ctx, payload.Category, payload.URLs, templateContent)
	if err != nil {
		resultErr = err
		logger.Error("generate summary", slog.Any("error", err))
		return resultErr
	}

	id, err := j.Summaries.Store(ctx, summaries.Summary{
		Recipient:  payload.Recipient,
		Category:   payload.Category,
		Title:      result.Title,
		Content:    result.Summary,
		TemplateID: payload.TemplateID,
	})
	if err != nil {
		resultErr = err
		logger.Error("store summary", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddGeneration("summary", payload.Category)
	logger.Info("summary generated", slog.String("id", id), slog.Duration("duration", time.Since(start)))

	notifyGeneration(ctx, j.Users, j.Mail, logger, payload.Recipient,
		fmt.Sprintf("Your %s Summary is Ready!", payload.Category),
		fmt.Sprintf("Your summary for '%s' has been generated from %d articles.\n\nSummary:\n%s\n\nYou can now return to the site to view the summary.",
			payload.Category, len(payload.URLs), result.Summary))
	return resultErr
}

// GenAIHealthcheckJob pings the generation service on a schedule so outages
// show up in the logs before a user hits them.
type GenAIHealthcheckJob struct {
	GenAI  *genai.Client
	Logger *slog.Logger
}

// Handle processes TaskTypeGenAIHealthcheck tasks.
func (j *GenAIHealthcheckJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.GenAI == nil {
		return errors.New("genai healthcheck: handler not configured")
	}
	if err := j.GenAI.Ping(ctx); err != nil {
		j.logger().Warn("generation service unreachable", slog.Any("error", err))
		return err
	}
	j.logger().Debug("generation service healthy")
	return nil
}

func (j *GenAIHealthcheckJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeGenAIHealthcheck))
	}
	return slog.Default()
}

// notifyGeneration queues the confirmation email when the recipient still
// exists and has notifications switched on.
func notifyGeneration(ctx context.Context, userSvc *users.Service, mail MailEnqueuer, logger *slog.Logger, recipient, subject, body string) {
	if userSvc == nil || mail == nil {
		return
	}
	account, err := userSvc.GetByEmail(ctx, recipient)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			logger.Warn("lookup recipient for notification", slog.Any("error", err))
		}
		return
	}
	if !account.EmailNotifications {
		return
	}
	greeting := "Hi " + account.Name() + ",\n\n"
	if _, err := mail.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      recipient,
		Subject: subject,
		Body:    greeting + body,
	}); err != nil {
		logger.Warn("enqueue notification email", slog.Any("error", err))
	}
}

func (j *TemplateGenerationJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeGenerateTemplate))
	}
	return slog.Default().With(slog.String("job", TaskTypeGenerateTemplate))
}

func (j *TemplateGenerationJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SummaryGenerationJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeGenerateSummary))
	}
	return slog.Default().With(slog.String("job", TaskTypeGenerateSummary))
}

func (j *SummaryGenerationJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
