package provider

import "fmt"

// ConfigurationError reports missing or invalid backend configuration, such
// as no resolvable endpoint. It is fatal: construction fails and nothing is
// retried.
type ConfigurationError struct {
	Backend string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Backend, e.Reason)
}

// InvalidRequestError reports a request that cannot be sent, such as a
// conversation that yields zero sendable messages after role mapping.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// TransportError reports an HTTP or network failure. A non-2xx response
// sets StatusCode and the best-effort extracted Message; a network-level
// failure (DNS, connection refused, timeout) sets Cause instead. The
// adapter never retries; retry policy belongs to the caller.
type TransportError struct {
	Backend    string
	StatusCode int
	Message    string
	Cause      error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: transport error: %v", e.Backend, e.Cause)
	}
	return fmt.Sprintf("%s: transport error (status %d): %s", e.Backend, e.StatusCode, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ProtocolError reports a response that violates the backend's protocol,
// such as a missing body on a streaming request. The stream is aborted.
type ProtocolError struct {
	Backend string
	Reason  string
	Cause   error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: protocol error: %s: %v", e.Backend, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: protocol error: %s", e.Backend, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// CapabilityError reports an operation the backend does not support, such
// as embeddings on a backend without a native embedding endpoint. The call
// fails fast instead of attempting a best-effort fallback.
type CapabilityError struct {
	Backend    string
	Capability string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %s not supported", e.Backend, e.Capability)
}
