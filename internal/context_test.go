package internal

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRequestIDRoundTrip tests storing and reading the request ID
func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req_abc12345")
	assert.Equal(t, "req_abc12345", GetRequestID(ctx))
}

// TestRequestIDFallback tests the placeholder for contexts without an ID
func TestRequestIDFallback(t *testing.T) {
	assert.Equal(t, "unknown", GetRequestID(context.Background()))
}

// TestNewRequestIDShape tests the generated ID format
func TestNewRequestIDShape(t *testing.T) {
	id := NewRequestID()
	assert.True(t, strings.HasPrefix(id, "req_"))
	assert.Len(t, id, len("req_")+8)
	assert.NotEqual(t, id, NewRequestID())
}
