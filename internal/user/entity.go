package user

import (
	"net/mail"
	"strings"
	"time"

	"github.com/kazz187/agileboard/pkg/cerr"
)

type User struct {
	ID           string    `yaml:"id"`
	Email        string    `yaml:"email"`
	Name         string    `yaml:"name"`
	PasswordHash string    `yaml:"password_hash"`
	CreatedAt    time.Time `yaml:"created_at"`
}

// NormalizeEmail lower-cases and validates an address.
func NormalizeEmail(s string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return "", cerr.NewError(cerr.InvalidArgument, "invalid email", err).
			AddViolation("email", "email must be a valid address")
	}
	return strings.ToLower(addr.Address), nil
}
