package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrCredentialMismatch = errors.New("credential mismatch")
	ErrTooLarge           = errors.New("upload exceeds size limit")

	// ErrUnknownIdentity: token válido cujo subject não é um usuário cadastrado.
	ErrUnknownIdentity = errors.New("token subject is not a registered user")
)

// ValidationError descreve um campo inválido em uma requisição.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
