package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL é a validade de um token quando nenhuma é configurada.
const DefaultTTL = 24 * time.Hour

var (
	ErrEmptySubject     = errors.New("token subject is empty")
	ErrEmptySecret      = errors.New("token secret is empty")
	ErrMalformed        = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("expired token")
)

// strict: bits de padding diferentes de zero no último caractere não são ignorados,
// então qualquer alteração na assinatura é detectada.
var sigEncoding = base64.RawURLEncoding.Strict()

type (
	// Issuer emite e valida bearer tokens (JWS HS256). Não guarda estado além do
	// segredo, que é imutável após a construção.
	Issuer interface {
		Issue(subject string) (string, error)
		Verify(token string) (string, error)
	}
	issuer struct {
		secret []byte
		ttl    time.Duration
		now    func() time.Time
	}
)

type Option func(*issuer)

// WithTTL define a validade dos tokens emitidos.
func WithTTL(ttl time.Duration) Option {
	return func(i *issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithClock troca o relógio (testes).
func WithClock(now func() time.Time) Option {
	return func(i *issuer) { i.now = now }
}

func NewIssuer(secret []byte, opts ...Option) (Issuer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	i := &issuer{
		secret: append([]byte(nil), secret...),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

type Claims struct {
	jwt.RegisteredClaims
}

func (i *issuer) Issue(subject string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", ErrEmptySubject
	}

	now := i.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify devolve o subject do token.
//
// Ordem: estrutura (ErrMalformed), assinatura (ErrInvalidSignature),
// claims e expiração (ErrMalformed / ErrExpired).
func (i *issuer) Verify(tokenString string) (string, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", ErrMalformed
	}
	if !i.validSignature(parts[0]+"."+parts[1], parts[2]) {
		return "", ErrInvalidSignature
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(i.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "", ErrInvalidSignature
	default:
		return "", ErrMalformed
	}

	if claims.Subject == "" {
		return "", ErrMalformed
	}
	return claims.Subject, nil
}

func (i *issuer) validSignature(signingInput, sig string) bool {
	provided, err := sigEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, i.secret)
	h.Write([]byte(signingInput))
	return hmac.Equal(h.Sum(nil), provided)
}
