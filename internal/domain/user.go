package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

var (
	ErrUserInvalidEmail    = fmt.Errorf("%w: user email is malformed", ErrInvalidArgument)
	ErrUserNameRequired    = fmt.Errorf("%w: first and last name are required", ErrInvalidArgument)
	ErrUserPasswordTooWeak = fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidArgument)
	ErrUserPasswordTooLong = fmt.Errorf("%w: password must be at most 72 bytes", ErrInvalidArgument)
	ErrUnknownRole         = fmt.Errorf("%w: unknown role", ErrInvalidArgument)
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(s)); r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// User is keyed by email: ID and Email always hold the same value.
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NormalizeEmail lowercases and trims an address so it can serve as an id.
func NormalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return "", ErrUserInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

func (u *User) Validate() error {
	if u.FirstName == "" || u.LastName == "" {
		return ErrUserNameRequired
	}
	if _, err := NormalizeEmail(u.Email); err != nil {
		return err
	}
	if _, err := ParseRole(string(u.Role)); err != nil {
		return err
	}
	return nil
}
