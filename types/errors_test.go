package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPrimaryResponseErrorUnwraps tests that the primary-specific error
// still matches the generic no-response error
func TestPrimaryResponseErrorUnwraps(t *testing.T) {
	assert.True(t, errors.Is(ErrNoPrimaryResponse, ErrNoResponse))
	assert.Equal(t, "No se obtuvo respuesta del bot principal.", ErrNoPrimaryResponse.Error())
	assert.Equal(t, "No se obtuvo respuesta del bot.", ErrNoResponse.Error())
}

// TestFailureMessages tests the user-facing text of the named failures
func TestFailureMessages(t *testing.T) {
	assert.Equal(t, "Credenciales de Telegram no configuradas.", ErrNotConfigured.Error())
	assert.Equal(t, "Cliente no autorizado.", ErrNotAuthorized.Error())
	assert.Equal(t, "Formato incorrecto.", ErrInvalidFormat.Error())
	assert.Equal(t, "No se encontraron resultados.", ErrNotFound.Error())
}
