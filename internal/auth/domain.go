package auth

import (
	"time"

	"github.com/crisisbrief/crisisbrief/internal/shared"
)

// User is the credential-bearing view of an account, used only while
// authenticating. Everything else reads users through the users module.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         shared.Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Registration carries the validated input for a new account.
type Registration struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}
