package provider

import "context"

// Provider is the core abstraction for chat-completion backends.
// All backend implementations must satisfy this interface.
type Provider interface {
	// Name returns the backend identifier (e.g., "openai", "ollama").
	Name() string

	// Call executes a non-streaming generation request.
	Call(ctx context.Context, req *Request) (*Response, error)
}

// StreamingProvider extends Provider with streaming capability.
type StreamingProvider interface {
	Provider

	// CallStream executes a streaming generation request. The returned
	// stream must be closed by the caller on every path.
	CallStream(ctx context.Context, req *Request) (ResponseStream, error)
}

// Embedder is implemented by backends that support embedding requests.
// Backends without native embedding support return a *CapabilityError.
type Embedder interface {
	// Embed computes embedding vectors for the given inputs.
	Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)
}

// ResponseStream is a pull-based iterator over response increments. No work
// happens between pulls: the adapter issues one outbound call per request
// and reads the body only when Next is called.
type ResponseStream interface {
	// Next advances to the next increment, returning false when the stream
	// is exhausted or failed.
	Next() bool

	// Current returns the current increment.
	Current() *StreamChunk

	// Err returns the error that terminated the stream, if any.
	Err() error

	// Close releases the underlying connection. Safe to call on every exit
	// path, including after an error or cancellation.
	Close() error

	// Accumulated returns the response assembled from every increment seen
	// so far.
	Accumulated() *Response
}

// EmbeddingRequest asks a backend for embedding vectors.
type EmbeddingRequest struct {
	Model string
	Input []string
}

// EmbeddingResponse carries embedding vectors in input order.
type EmbeddingResponse struct {
	Model      string
	Embeddings [][]float64
	Usage      *Usage
}
