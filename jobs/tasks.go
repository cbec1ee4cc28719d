package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeGenerateTemplate runs a template generation against the
	// generation service and stores the result.
	TaskTypeGenerateTemplate = "genai:template"
	// TaskTypeGenerateSummary runs a summary generation against the
	// generation service and stores the result.
	TaskTypeGenerateSummary = "genai:summary"
	// TaskTypeGenAIHealthcheck pings the generation service.
	TaskTypeGenAIHealthcheck = "genai:healthcheck"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// GenerateTemplatePayload carries a queued template generation request.
type GenerateTemplatePayload struct {
	Recipient  string   `json:"recipient"`
	Category   string   `json:"category"`
	Notes      string   `json:"notes"`
	Attributes []string `json:"attributes,omitempty"`
}

// GenerateSummaryPayload carries a queued summary generation request.
type GenerateSummaryPayload struct {
	Recipient  string   `json:"recipient"`
	Category   string   `json:"category"`
	URLs       []string `json:"urls"`
	TemplateID string   `json:"template_id,omitempty"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewGenerateTemplateTask constructs an Asynq task.
func NewGenerateTemplateTask(payload GenerateTemplatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGenerateTemplate, data), nil
}

// NewGenerateSummaryTask constructs an Asynq task.
func NewGenerateSummaryTask(payload GenerateSummaryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGenerateSummary, data), nil
}

// NewGenAIHealthcheckTask constructs the periodic healthcheck task.
func NewGenAIHealthcheckTask() *asynq.Task {
	return asynq.NewTask(TaskTypeGenAIHealthcheck, nil)
}
