package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationError(t *testing.T) {
	err := &ConfigurationError{Backend: "ollama", Reason: "no endpoint resolvable"}
	assert.Contains(t, err.Error(), "ollama")
	assert.Contains(t, err.Error(), "no endpoint resolvable")
}

func TestInvalidRequestError(t *testing.T) {
	err := &InvalidRequestError{Reason: "conversation has no sendable messages"}
	assert.Contains(t, err.Error(), "invalid request")
	assert.Contains(t, err.Error(), "no sendable messages")
}

func TestTransportError(t *testing.T) {
	tests := []struct {
		name         string
		err          *TransportError
		wantContains []string
	}{
		{
			name:         "http status error",
			err:          &TransportError{Backend: "openai", StatusCode: 429, Message: "rate limited"},
			wantContains: []string{"openai", "429", "rate limited"},
		},
		{
			name:         "network failure wraps cause",
			err:          &TransportError{Backend: "ollama", Cause: errors.New("connection refused")},
			wantContains: []string{"ollama", "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, want := range tt.wantContains {
				assert.Contains(t, tt.err.Error(), want)
			}
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &TransportError{Backend: "openai", Cause: cause}

	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("calling backend: %w", err)
	var te *TransportError
	require.ErrorAs(t, wrapped, &te)
	assert.Equal(t, "openai", te.Backend)
}

func TestProtocolError(t *testing.T) {
	err := &ProtocolError{Backend: "openai", Reason: "missing response body"}
	assert.Contains(t, err.Error(), "protocol error")
	assert.Contains(t, err.Error(), "missing response body")

	cause := errors.New("unexpected end of JSON input")
	withCause := &ProtocolError{Backend: "ollama", Reason: "unparseable terminal payload", Cause: cause}
	assert.ErrorIs(t, withCause, cause)
}

func TestCapabilityError(t *testing.T) {
	err := &CapabilityError{Backend: "ollama", Capability: "embeddings"}
	assert.Contains(t, err.Error(), "ollama")
	assert.Contains(t, err.Error(), "embeddings")
	assert.Contains(t, err.Error(), "not supported")
}

func TestErrorsMatchWithAs(t *testing.T) {
	var err error = &InvalidRequestError{Reason: "empty"}
	var ire *InvalidRequestError
	assert.ErrorAs(t, err, &ire)

	err = fmt.Errorf("outer: %w", &CapabilityError{Backend: "ollama", Capability: "embeddings"})
	var ce *CapabilityError
	assert.ErrorAs(t, err, &ce)
}
