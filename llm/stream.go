package llm

import (
	"context"
	"fmt"
	"iter"

	"github.com/i2y/marengo/provider"
)

// Stream represents a streaming response from an LLM.
type Stream struct {
	stream provider.ResponseStream
	err    error
}

// StreamChunk represents a single increment in a streaming response.
// Deltas concatenate to the full text, and tool calls arrive complete.
type StreamChunk = provider.StreamChunk

// Chunks returns an iterator over the stream chunks.
// This uses Go 1.23+ range-over-func.
//
// Example:
//
//	stream, err := llm.CallStream(ctx, "Write a story", opts...)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	for chunk := range stream.Chunks() {
//	    fmt.Print(chunk.Delta)
//	}
func (s *Stream) Chunks() iter.Seq[StreamChunk] {
	return func(yield func(StreamChunk) bool) {
		for s.stream.Next() {
			if !yield(*s.stream.Current()) {
				return
			}
		}
		s.err = s.stream.Err()
	}
}

// Err returns any error that occurred during streaming.
func (s *Stream) Err() error {
	return s.err
}

// Close closes the stream and releases resources.
func (s *Stream) Close() error {
	return s.stream.Close()
}

// Response returns the accumulated response after streaming is complete.
// Should be called after iterating through all chunks.
func (s *Stream) Response() Response[string] {
	accumulated := s.stream.Accumulated()
	return newParsedResponse(accumulated, accumulated.Text(), nil)
}

// CallStream makes a streaming LLM call.
//
// Example:
//
//	stream, err := llm.CallStream(ctx, "Write a short story",
//	    llm.WithProvider(provider.BackendOpenAI),
//	)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	for chunk := range stream.Chunks() {
//	    fmt.Print(chunk.Delta)
//	}
//
//	if err := stream.Err(); err != nil {
//	    return err
//	}
func CallStream(ctx context.Context, prompt string, opts ...Option) (*Stream, error) {
	cfg := newCallConfig()
	cfg.apply(opts...)

	if cfg.backend == "" {
		return nil, ErrProviderRequired
	}

	p, err := provider.Get(cfg.backend)
	if err != nil {
		return nil, fmt.Errorf("getting provider: %w", err)
	}

	// Check if provider supports streaming
	sp, ok := p.(provider.StreamingProvider)
	if !ok {
		return nil, fmt.Errorf("provider %q does not support streaming", cfg.backend)
	}

	req := cfg.buildRequest(prompt)

	stream, err := sp.CallStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("starting stream: %w", err)
	}

	return &Stream{stream: stream}, nil
}

// CallMessagesStream makes a streaming LLM call with message history.
func CallMessagesStream(ctx context.Context, messages []Message, opts ...Option) (*Stream, error) {
	cfg := newCallConfig()
	cfg.apply(opts...)

	if cfg.backend == "" {
		return nil, ErrProviderRequired
	}

	p, err := provider.Get(cfg.backend)
	if err != nil {
		return nil, fmt.Errorf("getting provider: %w", err)
	}

	sp, ok := p.(provider.StreamingProvider)
	if !ok {
		return nil, fmt.Errorf("provider %q does not support streaming", cfg.backend)
	}

	req := cfg.buildRequestFromMessages(messages)

	stream, err := sp.CallStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("starting stream: %w", err)
	}

	return &Stream{stream: stream}, nil
}
