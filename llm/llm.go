// Package llm provides the main API for making LLM calls.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/i2y/marengo/provider"
	"github.com/i2y/marengo/schema"
)

// Call makes an LLM call and returns a text response.
//
// Example:
//
//	resp, err := llm.Call(ctx, "Recommend a fantasy book",
//	    llm.WithProvider(provider.BackendOpenAI),
//	)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(resp.Text())
func Call(ctx context.Context, prompt string, opts ...Option) (Response[string], error) {
	cfg := newCallConfig()
	cfg.apply(opts...)

	if cfg.backend == "" {
		return Response[string]{}, ErrProviderRequired
	}

	p, err := provider.Get(cfg.backend)
	if err != nil {
		return Response[string]{}, fmt.Errorf("getting provider: %w", err)
	}

	req := cfg.buildRequest(prompt)

	resp, err := p.Call(ctx, req)
	if err != nil {
		return Response[string]{}, fmt.Errorf("calling provider: %w", err)
	}

	// Build message history for Resume support
	messages := buildMessagesFromRequest(req, resp)
	config := &responseConfig{
		backend: cfg.backend,
		model:   cfg.model,
		tools:   cfg.tools,
	}

	return newResponseWithHistory(resp, resp.Text(), nil, messages, config), nil
}

// CallParse makes an LLM call with structured output and parses the response into type T.
// The JSON schema is automatically generated from T.
//
// Example:
//
//	type Book struct {
//	    Title  string `json:"title" jsonschema:"required,description=Book title"`
//	    Author string `json:"author" jsonschema:"required"`
//	}
//
//	resp, err := llm.CallParse[Book](ctx, "Recommend a sci-fi book",
//	    llm.WithProvider(provider.BackendOpenAI),
//	)
//	if err != nil {
//	    return err
//	}
//	book := resp.MustParse()
//	fmt.Printf("%s by %s\n", book.Title, book.Author)
func CallParse[T any](ctx context.Context, prompt string, opts ...Option) (Response[T], error) {
	cfg := newCallConfig()
	cfg.apply(opts...)

	if cfg.backend == "" {
		return Response[T]{}, ErrProviderRequired
	}

	typeName, err := applySchema[T](cfg)
	if err != nil {
		return Response[T]{}, err
	}

	p, err := provider.Get(cfg.backend)
	if err != nil {
		return Response[T]{}, fmt.Errorf("getting provider: %w", err)
	}

	req := cfg.buildRequest(prompt)

	resp, err := p.Call(ctx, req)
	if err != nil {
		return Response[T]{}, fmt.Errorf("calling provider: %w", err)
	}

	parsed, parseErr := parseResponse[T](resp, typeName)

	// Build message history for Resume support
	messages := buildMessagesFromRequest(req, resp)
	config := &responseConfig{
		backend: cfg.backend,
		model:   cfg.model,
		tools:   cfg.tools,
	}

	return newResponseWithHistory(resp, parsed, parseErr, messages, config), nil
}

// CallMessages makes an LLM call with a full message history.
// This is useful for multi-turn conversations.
//
// Example:
//
//	messages := []llm.Message{
//	    llm.UserMessage("Hello"),
//	    llm.AssistantMessage("Hi! How can I help?"),
//	    llm.UserMessage("Tell me a joke"),
//	}
//
//	resp, err := llm.CallMessages(ctx, messages,
//	    llm.WithProvider(provider.BackendOpenAI),
//	)
func CallMessages(ctx context.Context, messages []Message, opts ...Option) (Response[string], error) {
	cfg := newCallConfig()
	cfg.apply(opts...)

	if cfg.backend == "" {
		return Response[string]{}, ErrProviderRequired
	}

	p, err := provider.Get(cfg.backend)
	if err != nil {
		return Response[string]{}, fmt.Errorf("getting provider: %w", err)
	}

	req := cfg.buildRequestFromMessages(messages)

	resp, err := p.Call(ctx, req)
	if err != nil {
		return Response[string]{}, fmt.Errorf("calling provider: %w", err)
	}

	// Build message history for Resume support
	historyMessages := buildMessagesFromRequest(req, resp)
	config := &responseConfig{
		backend: cfg.backend,
		model:   cfg.model,
		tools:   cfg.tools,
	}

	return newResponseWithHistory(resp, resp.Text(), nil, historyMessages, config), nil
}

// CallMessagesParse makes an LLM call with messages and parses the response.
// Combines CallMessages with structured output parsing.
func CallMessagesParse[T any](ctx context.Context, messages []Message, opts ...Option) (Response[T], error) {
	cfg := newCallConfig()
	cfg.apply(opts...)

	if cfg.backend == "" {
		return Response[T]{}, ErrProviderRequired
	}

	typeName, err := applySchema[T](cfg)
	if err != nil {
		return Response[T]{}, err
	}

	p, err := provider.Get(cfg.backend)
	if err != nil {
		return Response[T]{}, fmt.Errorf("getting provider: %w", err)
	}

	req := cfg.buildRequestFromMessages(messages)

	resp, err := p.Call(ctx, req)
	if err != nil {
		return Response[T]{}, fmt.Errorf("calling provider: %w", err)
	}

	parsed, parseErr := parseResponse[T](resp, typeName)

	// Build message history for Resume support
	historyMessages := buildMessagesFromRequest(req, resp)
	config := &responseConfig{
		backend: cfg.backend,
		model:   cfg.model,
		tools:   cfg.tools,
	}

	return newResponseWithHistory(resp, parsed, parseErr, historyMessages, config), nil
}

// applySchema generates the JSON schema for T and attaches it to the config,
// returning the schema name.
func applySchema[T any](cfg *callConfig) (string, error) {
	jsonSchema, err := schema.Generate[T]()
	if err != nil {
		return "", fmt.Errorf("generating schema: %w", err)
	}

	var zero T
	typeName := reflect.TypeOf(zero).Name()
	if typeName == "" {
		typeName = "response"
	}

	cfg.jsonSchema = &provider.JSONSchema{
		Name:   typeName,
		Strict: true,
		Schema: jsonSchema,
	}
	return typeName, nil
}

// parseResponse unmarshals the response text into T.
func parseResponse[T any](resp *provider.Response, typeName string) (T, error) {
	var parsed T
	text := resp.Text()
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return parsed, &ParseError{
			Content: text,
			Target:  typeName,
			Cause:   err,
		}
	}
	return parsed, nil
}

// buildMessagesFromRequest creates the full message history from request and
// response. The assistant turn reuses the response blocks, so text and tool
// calls keep their wire order.
func buildMessagesFromRequest(req *provider.Request, resp *provider.Response) []Message {
	messages := make([]Message, 0, len(req.Messages)+1)
	messages = append(messages, req.Messages...)

	if len(resp.Blocks) > 0 {
		messages = append(messages, Message{
			Role:   RoleAssistant,
			Blocks: resp.Blocks,
		})
	} else {
		messages = append(messages, AssistantMessage(resp.Text()))
	}

	return messages
}
