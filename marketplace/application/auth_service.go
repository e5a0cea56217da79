package application

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"roomlink-api/marketplace/domain"

	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer emite o bearer token de uma identidade.
type TokenIssuer interface {
	Issue(subject string) (string, error)
}

type AuthService struct {
	Users  domain.UserStore
	Tokens TokenIssuer
	// Cost do bcrypt; 0 usa bcrypt.DefaultCost.
	Cost int
	Now  func() time.Time
}

type RegisterInput struct {
	Email    string
	Password string
	Role     string
}

// MaxPasswordBytes é o limite do bcrypt; acima disso GenerateFromPassword falha.
const MaxPasswordBytes = 72

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	if email == "" {
		return domain.Invalid("email", "must not be blank")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return domain.Invalid("email", "must be a well-formed email address")
	}
	if strings.TrimSpace(password) == "" {
		return domain.Invalid("password", "must not be blank")
	}
	if len(password) > MaxPasswordBytes {
		return domain.Invalid("password", "must be at most 72 bytes")
	}
	return nil
}

// Register cria o usuário e devolve um token para ele.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (string, error) {
	email := normalizeEmail(in.Email)
	if err := validateCredentials(email, in.Password); err != nil {
		return "", err
	}
	role, err := domain.ParseUserRole(in.Role)
	if err != nil {
		return "", err
	}

	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now(),
	}
	if err := s.Users.CreateUser(ctx, u); err != nil {
		return "", err
	}
	return s.Tokens.Issue(u.Email)
}

// VerifyCredentials confere email+senha contra o store.
func (s *AuthService) VerifyCredentials(ctx context.Context, email, password string) (bool, error) {
	u, err := s.Users.FindUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil, nil
}

// Login devolve um novo token ou domain.ErrCredentialMismatch.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return "", err
	}
	ok, err := s.VerifyCredentials(ctx, email, password)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrCredentialMismatch
	}
	return s.Tokens.Issue(email)
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
