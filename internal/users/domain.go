package users

import (
	"strings"
	"time"

	"github.com/crisisbrief/crisisbrief/internal/shared"
)

// User represents a registered account.
type User struct {
	ID                 string
	Email              string
	FirstName          string
	LastName           string
	Image              string
	Role               shared.Role
	EmailNotifications bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Name returns the display name assembled from the stored name parts.
func (u User) Name() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
