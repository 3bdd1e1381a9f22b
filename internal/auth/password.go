package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/kazz187/agileboard/pkg/cerr"
)

const minPasswordLength = 8

func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", cerr.NewError(cerr.InvalidArgument, "password too short", nil).
			AddViolation("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", cerr.NewError(cerr.InvalidArgument, "password too long", err)
		}
		return "", cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to hash password: %w", err))
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
