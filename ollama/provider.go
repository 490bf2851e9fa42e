// Package ollama provides the Ollama backend. The API has no native
// tool-calling syntax, so tool traffic travels through the fenced textual
// protocol: the request builder teaches the model the protocol through a
// system-prompt addendum and encodes prior tool turns as fenced blocks, and
// the response mapper extracts fenced calls back out of the generated text.
package ollama

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/i2y/marengo/models"
	"github.com/i2y/marengo/provider"
	"github.com/i2y/marengo/toolfence"
)

const defaultModel = "llama3.2"

func init() {
	provider.Register(provider.BackendOllama, func() (provider.Provider, error) {
		return New()
	})
}

// Provider implements the Ollama chat API.
type Provider struct {
	client *client
	model  string
}

// Option configures the Ollama provider.
type Option func(*providerConfig)

type providerConfig struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// WithBaseURL sets the server address.
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

// New creates a new Ollama provider. The server address falls back to
// OLLAMA_HOST and then to localhost; bare host:port values get an http
// scheme, matching the CLI's convention for that variable.
func New(opts ...Option) (*Provider, error) {
	cfg := &providerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.baseURL == "" {
		cfg.baseURL = os.Getenv("OLLAMA_HOST")
	}
	if cfg.baseURL != "" {
		if !strings.Contains(cfg.baseURL, "://") {
			cfg.baseURL = "http://" + cfg.baseURL
		}
		u, err := url.Parse(cfg.baseURL)
		if err != nil || u.Host == "" {
			return nil, &provider.ConfigurationError{
				Backend: "ollama",
				Reason:  "server address must be host:port or a URL: " + cfg.baseURL,
			}
		}
	}

	return &Provider{
		client: newClient(cfg.baseURL, cfg.httpClient),
		model:  cfg.model,
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "ollama"
}

// Call implements provider.Provider.
func (p *Provider) Call(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	apiReq, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}

	apiResp, err := p.client.chat(ctx, apiReq)
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

	stream, err := p.client.chatStream(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	return &ollamaStream{
		reader: stream,
		id:     provider.NewResponseID(),
		model:  apiReq.Model,
	}, nil
}

// Embed implements provider.Embedder. The backend exposes no embedding
// endpoint this adapter supports.
func (p *Provider) Embed(ctx context.Context, req *provider.EmbeddingRequest) (*provider.EmbeddingResponse, error) {
	return nil, &provider.CapabilityError{Backend: "ollama", Capability: "embeddings"}
}

// buildRequest converts a provider.Request to the wire request. Tool
// definitions become a system-prompt addendum and prior tool turns are
// re-encoded as fenced blocks.
func (p *Provider) buildRequest(req *provider.Request) (*chatRequest, error) {
	messages := convertMessages(provider.ReconcileHistory(req.Messages))
	if len(messages) == 0 {
		return nil, &provider.InvalidRequestError{Reason: "conversation has no sendable messages"}
	}

	system := req.System
	if len(req.Tools) > 0 && (req.ToolChoice == nil || req.ToolChoice.Mode != provider.ToolChoiceNone) {
		addendum := toolfence.CatalogPrompt(req.Tools, req.ToolChoice)
		if system == "" {
			system = addendum
		} else {
			system += "\n\n" + addendum
		}
	}
	if system != "" {
		messages = append([]message{{Role: "system", Content: system}}, messages...)
	}

	apiReq := &chatRequest{
		Model:    models.Resolve("ollama", p.model, defaultModel, req.Model),
		Messages: messages,
	}

	if req.JSONSchema != nil {
		apiReq.Format = req.JSONSchema.Schema
	}

	if opts := convertOptions(req); opts != nil {
		apiReq.Options = opts
	}

	return apiReq, nil
}

func convertOptions(req *provider.Request) *chatOptions {
	if req.Temperature == nil && req.TopP == nil && req.Seed == nil &&
		req.MaxTokens == nil && req.PresencePenalty == nil &&
		req.FrequencyPenalty == nil && len(req.StopSequences) == 0 {
		return nil
	}
	return &chatOptions{
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		Seed:             req.Seed,
		NumPredict:       req.MaxTokens,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
		Stop:             req.StopSequences,
	}
}

// convertMessages renders unified messages to wire messages, one per turn.
// Tool calls and results become fenced blocks inside the turn's content;
// turns holding results are sent with the user role.
func convertMessages(msgs []provider.Message) []message {
	out := make([]message, 0, len(msgs))
	for _, msg := range msgs {
		if m, ok := convertMessage(msg); ok {
			out = append(out, m)
		}
	}
	return out
}

func convertMessage(msg provider.Message) (message, bool) {
	var sections []string
	var images []string

	for _, block := range msg.Blocks {
		switch block.Kind {
		case provider.BlockText:
			if block.Text != "" {
				sections = append(sections, block.Text)
			}
		case provider.BlockBinary:
			images = append(images, base64.StdEncoding.EncodeToString(block.Data))
		case provider.BlockFile:
			sections = append(sections, "[file: "+block.Path+"]")
		case provider.BlockToolCall:
			sections = append(sections, toolfence.EncodeCall(*block.ToolCall))
		case provider.BlockToolResult:
			sections = append(sections, toolfence.EncodeResult(*block.ToolResult))
		}
	}

	if len(sections) == 0 && len(images) == 0 {
		return message{}, false
	}

	role := string(msg.Role)
	if role == string(provider.RoleTool) {
		role = string(provider.RoleUser)
	}

	return message{
		Role:    role,
		Content: strings.Join(sections, "\n\n"),
		Images:  images,
	}, true
}

// convertResponse normalizes a completed response: fenced calls are
// extracted out of the generated text and the remainder stays visible.
func convertResponse(resp *chatResponse, requestModel string) *provider.Response {
	visible, calls := toolfence.Extract(resp.Message.Content)

	result := &provider.Response{
		ID:           provider.NewResponseID(),
		Model:        resp.Model,
		FinishReason: provider.MapFinishReason(resp.DoneReason),
		Usage:        convertUsage(resp),
	}
	if result.Model == "" {
		result.Model = requestModel
	}

	if visible != "" {
		result.Blocks = append(result.Blocks, provider.TextBlock(visible))
	}
	for _, call := range calls {
		result.Blocks = append(result.Blocks, provider.ToolCallBlock(call))
		result.ToolCalls = append(result.ToolCalls, call)
	}

	return result
}

// convertUsage maps the evaluation counters when the frame carries them.
func convertUsage(resp *chatResponse) *provider.Usage {
	if resp.PromptEvalCount == 0 && resp.EvalCount == 0 {
		return nil
	}
	return &provider.Usage{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}
}

// ollamaStream adapts the line reader to the unified pull stream. Text
// deltas pass through as they arrive; fence extraction needs completed text,
// so calls surface on the final frame (or at EOF) from the accumulated text.
type ollamaStream struct {
	reader *lineReader
	id     string
	model  string

	current *provider.StreamChunk
	err     error
	done    bool

	accText    strings.Builder
	accVisible string
	accCalls   []provider.ToolCall
	accFinish  provider.FinishReason
	accUsage   *provider.Usage
}

func (s *ollamaStream) Next() bool {
	if s.done || s.err != nil {
		return false
	}

	for {
		frame, err := s.reader.ReadObject()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return s.finish(nil)
			}
			s.err = &provider.TransportError{Backend: "ollama", Cause: err}
			return false
		}

		if frame.Model != "" {
			s.model = frame.Model
		}

		if frame.Done {
			return s.finish(frame)
		}

		if frame.Message.Content == "" {
			continue
		}

		s.accText.WriteString(frame.Message.Content)
		s.current = &provider.StreamChunk{
			ID:    s.id,
			Model: s.model,
			Delta: frame.Message.Content,
		}
		return true
	}
}

// finish emits the terminal increment: calls extracted from the accumulated
// text, plus the finish reason and counters when a done frame supplied them.
func (s *ollamaStream) finish(frame *chatResponse) bool {
	s.done = true

	inc := &provider.StreamChunk{ID: s.id, Model: s.model}
	if frame != nil {
		if frame.Message.Content != "" {
			s.accText.WriteString(frame.Message.Content)
			inc.Delta = frame.Message.Content
		}
		inc.FinishReason = provider.MapFinishReason(frame.DoneReason)
		inc.Usage = convertUsage(frame)
		s.accFinish = inc.FinishReason
		s.accUsage = inc.Usage
	}

	s.accVisible, s.accCalls = toolfence.Extract(s.accText.String())
	inc.ToolCalls = s.accCalls

	if inc.Delta == "" && len(inc.ToolCalls) == 0 && inc.FinishReason == "" && inc.Usage == nil {
		return false
	}
	s.current = inc
	return true
}

func (s *ollamaStream) Current() *provider.StreamChunk {
	return s.current
}

func (s *ollamaStream) Err() error {
	return s.err
}

func (s *ollamaStream) Close() error {
	return s.reader.Close()
}

// Accumulated assembles the response from the increments seen so far. Before
// the stream ends the text is the raw concatenation; once finished, fences
// have been extracted exactly once, so the call ids here match the ones the
// final increment delivered.
func (s *ollamaStream) Accumulated() *provider.Response {
	text := s.accText.String()
	if s.done {
		text = s.accVisible
	}

	resp := &provider.Response{
		ID:           s.id,
		Model:        s.model,
		FinishReason: s.accFinish,
		Usage:        s.accUsage,
	}
	if text != "" {
		resp.Blocks = append(resp.Blocks, provider.TextBlock(text))
	}
	for _, call := range s.accCalls {
		resp.Blocks = append(resp.Blocks, provider.ToolCallBlock(call))
		resp.ToolCalls = append(resp.ToolCalls, call)
	}
	return resp
}
