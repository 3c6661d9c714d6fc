package types

import "errors"

// wrappedError lets a variant carry its own user-facing message while still
// matching its base sentinel through errors.Is.
type wrappedError struct {
	msg  string
	base error
}

func (e *wrappedError) Error() string { return e.msg }
func (e *wrappedError) Unwrap() error { return e.base }

// Query failure taxonomy. Every orchestrator exit resolves to success-with-data
// or one of these; the messages are what the HTTP layer shows to callers, in
// the language the service speaks.
var (
	// ErrNotConfigured means the transport credentials are missing. Fatal,
	// never retried.
	ErrNotConfigured = errors.New("Credenciales de Telegram no configuradas.")

	// ErrNotAuthorized means the transport session exists but is not logged in.
	ErrNotAuthorized = errors.New("Cliente no autorizado.")

	// ErrNoResponse means the channel produced zero usable messages.
	ErrNoResponse = errors.New("No se obtuvo respuesta del bot.")

	// ErrNoPrimaryResponse is the ErrNoResponse variant for the unescalated
	// primary path, the only one that feeds the circuit breaker.
	ErrNoPrimaryResponse error = &wrappedError{
		msg:  "No se obtuvo respuesta del bot principal.",
		base: ErrNoResponse,
	}

	// ErrInvalidFormat means the external service rejected the command shape.
	ErrInvalidFormat = errors.New("Formato incorrecto.")

	// ErrNotFound means the external service affirmatively reported no data.
	ErrNotFound = errors.New("No se encontraron resultados.")
)
