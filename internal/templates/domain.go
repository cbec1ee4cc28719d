package templates

import "time"

// Template is a generated crisis-communication template. Recipient is the
// email of the account that requested it.
type Template struct {
	ID         string
	Recipient  string
	Category   string
	Content    string
	Attributes []string
	CreatedAt  time.Time
}

// SuggestedCategories seeds the category picker. The field itself accepts
// free text.
var SuggestedCategories = []string{"Hurricane", "Earthquake", "Mass Shooting", "Wildfire", "Flood"}

// GenerationRequest captures the input for a new template generation run.
type GenerationRequest struct {
	Recipient  string
	Category   string
	Notes      string
	Attributes []string
}
