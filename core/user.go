package core

import (
	"context"
	"errors"
)

type User struct {
	Name     string `json:"name"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UserWithoutSecrets struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

var (
	ErrConflictedUser = errors.New("user already exists")
)

// Validate validates the user input.
func (u *User) Validate() error {
	return validate.Struct(u)
}

type UserStore interface {
	CreateUser(ctx context.Context, user User) error

	GetUserByUsername(ctx context.Context, username string) (*UserWithoutSecrets, error)

	// ComparePassword reports whether the password matches the stored
	// hash for the username.
	ComparePassword(ctx context.Context, username, password string) (bool, error)
}
