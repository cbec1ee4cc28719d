package summaries

import "time"

// Summary is a generated crisis-event summary. TemplateID is set when the
// summary was shaped by one of the recipient's templates.
type Summary struct {
	ID         string
	Recipient  string
	Category   string
	Title      string
	Content    string
	TemplateID string
	CreatedAt  time.Time
}

// GenerationRequest carries the input for a new summary generation run.
type GenerationRequest struct {
	Recipient  string
	Category   string
	URLs       []string
	TemplateID string
}
