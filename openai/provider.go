// Package openai provides the OpenAI-compatible backend: the OpenAI API
// itself plus aggregators and local servers that speak the same protocol.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/i2y/marengo/models"
	"github.com/i2y/marengo/provider"
)

const (
	defaultModel          = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
)

func init() {
	provider.Register(provider.BackendOpenAI, func() (provider.Provider, error) {
		return New()
	})
}

// Provider implements the OpenAI chat completion and embeddings APIs.
type Provider struct {
	client *client
	model  string
}

// Option configures the OpenAI provider.
type Option func(*providerConfig)

type providerConfig struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *providerConfig) {
		c.apiKey = key
	}
}

// WithBaseURL sets a custom base URL, e.g. an aggregator or a local
// OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(c *providerConfig) {
		c.baseURL = url
	}
}

// WithModel sets the model used when the request does not pin one.
func WithModel(model string) Option {
	return func(c *providerConfig) {
		c.model = model
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *providerConfig) {
		c.httpClient = client
	}
}

// New creates a new OpenAI provider. The API key falls back to
// OPENAI_API_KEY and the base URL to OPENAI_BASE_URL; both may stay empty,
// since OpenAI-compatible servers exist that require neither.
func New(opts ...Option) (*Provider, error) {
	cfg := &providerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.apiKey == "" {
		cfg.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.baseURL == "" {
		cfg.baseURL = os.Getenv("OPENAI_BASE_URL")
	}

	if cfg.baseURL != "" {
		u, err := url.Parse(cfg.baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, &provider.ConfigurationError{
				Backend: "openai",
				Reason:  "base URL must be absolute: " + cfg.baseURL,
			}
		}
	}

	return &Provider{
		client: newClient(cfg.apiKey, cfg.baseURL, cfg.httpClient),
		model:  cfg.model,
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openai"
}

// Call implements provider.Provider.
func (p *Provider) Call(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	apiReq, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}

	apiResp, err := p.client.chatCompletion(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	return convertResponse(apiResp, apiReq.Model), nil
}

// CallStream implements provider.StreamingProvider.
func (p *Provider) CallStream(ctx context.Context, req *provider.Request) (provider.ResponseStream, error) {
	apiReq, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}

	stream, err := p.client.chatCompletionStream(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	return &openaiStream{
		reader: stream,
		calls:  newCallAccumulator(),
		model:  apiReq.Model,
	}, nil
}

// Embed implements provider.Embedder.
func (p *Provider) Embed(ctx context.Context, req *provider.EmbeddingRequest) (*provider.EmbeddingResponse, error) {
	if len(req.Input) == 0 {
		return nil, &provider.InvalidRequestError{Reason: "embedding input is empty"}
	}

	model := req.Model
	if model == "" {
		model = defaultEmbeddingModel
	}

	apiResp, err := p.client.embeddings(ctx, &embeddingRequest{Model: model, Input: req.Input})
	if err != nil {
		return nil, err
	}

	data := make([]embeddingData, len(apiResp.Data))
	copy(data, apiResp.Data)
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := &provider.EmbeddingResponse{
		Model:      apiResp.Model,
		Embeddings: make([][]float64, 0, len(data)),
	}
	if out.Model == "" {
		out.Model = model
	}
	for _, d := range data {
		out.Embeddings = append(out.Embeddings, d.Embedding)
	}
	if apiResp.Usage != nil {
		out.Usage = &provider.Usage{
			PromptTokens:     apiResp.Usage.PromptTokens,
			CompletionTokens: apiResp.Usage.CompletionTokens,
			TotalTokens:      apiResp.Usage.TotalTokens,
		}
	}
	return out, nil
}

// buildRequest converts a provider.Request to the wire request. The history
// is reconciled first so the API never sees unmatched tool traffic.
func (p *Provider) buildRequest(req *provider.Request) (*chatCompletionRequest, error) {
	messages := convertMessages(provider.ReconcileHistory(req.Messages))
	if len(messages) == 0 {
		return nil, &provider.InvalidRequestError{Reason: "conversation has no sendable messages"}
	}

	apiReq := &chatCompletionRequest{
		Model:            models.Resolve("openai", p.model, defaultModel, req.Model),
		Messages:         messages,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		TopP:             req.TopP,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
		Seed:             req.Seed,
		N:                req.CandidateCount,
		Stop:             req.StopSequences,
	}

	if req.System != "" {
		apiReq.Messages = append([]message{{Role: "system", Content: req.System}}, apiReq.Messages...)
	}

	for _, tool := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, toolDef{
			Type: "function",
			Function: functionDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	apiReq.ToolChoice = convertToolChoice(req.ToolChoice)

	if req.JSONSchema != nil {
		apiReq.ResponseFormat = &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaFormat{
				Name:   req.JSONSchema.Name,
				Strict: req.JSONSchema.Strict,
				Schema: makeAllPropertiesRequired(req.JSONSchema.Schema),
			},
		}
	}

	return apiReq, nil
}

// convertToolChoice maps the unified tool choice to the wire encoding, which
// is a string for the modes and an object for a named tool.
func convertToolChoice(choice *provider.ToolChoice) any {
	if choice == nil {
		return nil
	}
	switch choice.Mode {
	case provider.ToolChoiceNone:
		return "none"
	case provider.ToolChoiceAny:
		return "required"
	case provider.ToolChoiceNamed:
		return namedToolChoice{Type: "function", Function: namedFunction{Name: choice.Name}}
	default:
		return nil
	}
}

// convertMessages flattens unified messages to wire messages. One unified
// message may produce several: each tool result becomes its own message with
// role "tool", emitted before the turn's remaining content so it stays
// adjacent to the assistant turn that requested it.
func convertMessages(msgs []provider.Message) []message {
	var out []message
	for _, msg := range msgs {
		out = append(out, convertMessage(msg)...)
	}
	return out
}

func convertMessage(msg provider.Message) []message {
	var out []message
	var parts []contentPart
	var calls []toolCall

	for _, block := range msg.Blocks {
		switch block.Kind {
		case provider.BlockText:
			parts = append(parts, contentPart{Type: "text", Text: block.Text})
		case provider.BlockBinary:
			parts = append(parts, contentPart{
				Type:     "image_url",
				ImageURL: &imageURL{URL: dataURI(block.MIMEType, block.Data)},
			})
		case provider.BlockFile:
			parts = append(parts, contentPart{Type: "text", Text: "[file: " + block.Path + "]"})
		case provider.BlockToolCall:
			calls = append(calls, toolCall{
				ID:   block.ToolCall.ID,
				Type: "function",
				Function: functionCall{
					Name:      block.ToolCall.Name,
					Arguments: block.ToolCall.Arguments,
				},
			})
		case provider.BlockToolResult:
			out = append(out, message{
				Role:       "tool",
				ToolCallID: block.ToolResult.CallID,
				Content:    block.ToolResult.Output,
			})
		}
	}

	if len(parts) == 0 && len(calls) == 0 {
		return out
	}

	role := string(msg.Role)
	if role == string(provider.RoleTool) {
		// Leftover non-result content in a tool turn has no wire slot of
		// its own.
		role = string(provider.RoleUser)
	}

	apiMsg := message{Role: role, ToolCalls: calls}
	if len(parts) == 1 && parts[0].Type == "text" {
		apiMsg.Content = parts[0].Text
	} else if len(parts) > 0 {
		apiMsg.Content = parts
	}

	return append(out, apiMsg)
}

func dataURI(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// convertResponse normalizes the wire response. Multi-candidate responses
// normalize to the first choice.
func convertResponse(resp *chatCompletionResponse, requestModel string) *provider.Response {
	result := &provider.Response{
		ID:    resp.ID,
		Model: resp.Model,
	}
	if result.ID == "" {
		result.ID = provider.NewResponseID()
	}
	if result.Model == "" {
		result.Model = requestModel
	}
	if resp.Usage != nil {
		result.Usage = &provider.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	if len(resp.Choices) == 0 {
		return result
	}

	choice := resp.Choices[0]
	result.FinishReason = provider.MapFinishReason(choice.FinishReason)

	if choice.Message.Content != "" {
		result.Blocks = append(result.Blocks, provider.TextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		call := provider.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
		if call.ID == "" {
			call.ID = provider.NewCallID()
		}
		result.Blocks = append(result.Blocks, provider.ToolCallBlock(call))
		result.ToolCalls = append(result.ToolCalls, call)
	}

	return result
}

// makeAllPropertiesRequired ensures all properties in the schema are listed
// as required, which the structured output API demands in strict mode.
func makeAllPropertiesRequired(schema json.RawMessage) json.RawMessage {
	if schema == nil {
		return nil
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(schema, &schemaMap); err != nil {
		return schema
	}

	makeRequiredRecursive(schemaMap)

	result, err := json.Marshal(schemaMap)
	if err != nil {
		return schema
	}
	return result
}

func makeRequiredRecursive(schemaMap map[string]any) {
	props, ok := schemaMap["properties"].(map[string]any)
	if !ok {
		return
	}

	required := make([]string, 0, len(props))
	for key := range props {
		required = append(required, key)
	}
	sort.Strings(required)
	schemaMap["required"] = required

	for _, val := range props {
		propMap, ok := val.(map[string]any)
		if !ok {
			continue
		}
		if propMap["type"] == "object" {
			makeRequiredRecursive(propMap)
		}
		if items, ok := propMap["items"].(map[string]any); ok {
			if items["type"] == "object" {
				makeRequiredRecursive(items)
			}
		}
	}
}

// openaiStream adapts the SSE frame reader to the unified pull stream. Each
// Next reads frames until one yields a non-empty increment; tool-call
// fragments fold into the accumulator and surface as completed calls.
type openaiStream struct {
	reader *streamReader
	calls  *callAccumulator
	model  string

	id      string
	current *provider.StreamChunk
	err     error
	done    bool

	accText   strings.Builder
	accCalls  []provider.ToolCall
	accFinish provider.FinishReason
	accUsage  *provider.Usage
}

func (s *openaiStream) Next() bool {
	if s.done || s.err != nil {
		return false
	}

	for {
		frame, err := s.reader.ReadChunk()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return s.finish()
			}
			s.err = &provider.TransportError{Backend: "openai", Cause: err}
			return false
		}

		if inc := s.convertFrame(frame); inc != nil {
			s.current = inc
			return true
		}
	}
}

// finish drains the accumulator at end of stream. Calls that never met the
// opportunistic emission condition surface in one final increment.
func (s *openaiStream) finish() bool {
	s.done = true
	remaining := s.calls.finalize()
	if len(remaining) == 0 {
		return false
	}
	s.accCalls = append(s.accCalls, remaining...)
	s.current = &provider.StreamChunk{
		ID:        s.responseID(),
		Model:     s.model,
		ToolCalls: remaining,
	}
	return true
}

// convertFrame folds one wire frame into the stream state and returns the
// unified increment, or nil when the frame contributed nothing visible.
func (s *openaiStream) convertFrame(frame *streamChunk) *provider.StreamChunk {
	if s.id == "" && frame.ID != "" {
		s.id = frame.ID
	}
	if frame.Model != "" {
		s.model = frame.Model
	}

	inc := &provider.StreamChunk{ID: s.responseID(), Model: s.model}
	empty := true

	if frame.Usage != nil {
		inc.Usage = &provider.Usage{
			PromptTokens:     frame.Usage.PromptTokens,
			CompletionTokens: frame.Usage.CompletionTokens,
			TotalTokens:      frame.Usage.TotalTokens,
		}
		s.accUsage = inc.Usage
		empty = false
	}

	if len(frame.Choices) > 0 {
		choice := frame.Choices[0]

		if choice.Delta.Content != "" {
			inc.Delta = choice.Delta.Content
			s.accText.WriteString(choice.Delta.Content)
			empty = false
		}

		for _, fragment := range choice.Delta.ToolCalls {
			if call, ok := s.calls.apply(fragment); ok {
				inc.ToolCalls = append(inc.ToolCalls, call)
				s.accCalls = append(s.accCalls, call)
				empty = false
			}
		}

		if choice.FinishReason != nil {
			if reason := provider.MapFinishReason(*choice.FinishReason); reason != "" {
				inc.FinishReason = reason
				s.accFinish = reason
				empty = false
			}
		}
	}

	if empty {
		return nil
	}
	return inc
}

func (s *openaiStream) responseID() string {
	if s.id == "" {
		s.id = provider.NewResponseID()
	}
	return s.id
}

func (s *openaiStream) Current() *provider.StreamChunk {
	return s.current
}

func (s *openaiStream) Err() error {
	return s.err
}

func (s *openaiStream) Close() error {
	return s.reader.Close()
}

func (s *openaiStream) Accumulated() *provider.Response {
	resp := &provider.Response{
		ID:           s.responseID(),
		Model:        s.model,
		FinishReason: s.accFinish,
		Usage:        s.accUsage,
	}
	if text := s.accText.String(); text != "" {
		resp.Blocks = append(resp.Blocks, provider.TextBlock(text))
	}
	for _, call := range s.accCalls {
		resp.Blocks = append(resp.Blocks, provider.ToolCallBlock(call))
		resp.ToolCalls = append(resp.ToolCalls, call)
	}
	return resp
}
