package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type UserRole string

const (
	RoleReporter UserRole = "REPORTER"
	RoleSeeker   UserRole = "SEEKER"
)

func ParseUserRole(s string) (UserRole, error) {
	switch UserRole(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return RoleReporter, nil
	case RoleReporter:
		return RoleReporter, nil
	case RoleSeeker:
		return RoleSeeker, nil
	default:
		return "", Invalid("role", fmt.Sprintf("unknown role %q", s))
	}
}

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
}

// UserStore persiste usuários. Email é único (ErrEmailTaken).
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id int64) (*User, error)
}
