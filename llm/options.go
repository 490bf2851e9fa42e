package llm

import (
	"encoding/json"

	"github.com/i2y/marengo/provider"
)

// Option configures an LLM call.
type Option func(*callConfig)

// callConfig holds all configuration for a call.
type callConfig struct {
	backend          provider.Backend
	model            string
	temperature      *float64
	maxTokens        *int
	topP             *float64
	presencePenalty  *float64
	frequencyPenalty *float64
	seed             *int
	candidateCount   *int
	stopSequences    []string
	systemMessage    string
	toolChoice       *provider.ToolChoice
	tools            []Tool
	messages         []Message
	jsonSchema       *provider.JSONSchema
}

func newCallConfig() *callConfig {
	return &callConfig{}
}

func (c *callConfig) apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithProvider sets the backend (e.g., provider.BackendOpenAI).
func WithProvider(backend provider.Backend) Option {
	return func(c *callConfig) {
		c.backend = backend
	}
}

// WithModel sets the model to use (e.g., "gpt-4o-mini"). When unset, the
// backend resolves a model from its own configuration.
func WithModel(name string) Option {
	return func(c *callConfig) {
		c.model = name
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *callConfig) {
		c.temperature = &t
	}
}

// WithMaxTokens sets the maximum tokens in the response.
func WithMaxTokens(n int) Option {
	return func(c *callConfig) {
		c.maxTokens = &n
	}
}

// WithTopP sets the nucleus sampling parameter (0.0 to 1.0).
// Tokens are selected from the most to least probable until the sum
// of their probabilities equals this value.
func WithTopP(p float64) Option {
	return func(c *callConfig) {
		c.topP = &p
	}
}

// WithPresencePenalty penalizes tokens that already appeared in the text.
func WithPresencePenalty(p float64) Option {
	return func(c *callConfig) {
		c.presencePenalty = &p
	}
}

// WithFrequencyPenalty penalizes tokens by how often they appeared so far.
func WithFrequencyPenalty(p float64) Option {
	return func(c *callConfig) {
		c.frequencyPenalty = &p
	}
}

// WithSeed sets a random seed for reproducibility.
func WithSeed(seed int) Option {
	return func(c *callConfig) {
		c.seed = &seed
	}
}

// WithCandidateCount requests multiple candidates from backends that support
// it. Responses still normalize to the first candidate.
func WithCandidateCount(n int) Option {
	return func(c *callConfig) {
		c.candidateCount = &n
	}
}

// WithStopSequences sets stop sequences to end generation.
// The model will stop generating text if one of these strings is encountered.
func WithStopSequences(seqs ...string) Option {
	return func(c *callConfig) {
		c.stopSequences = seqs
	}
}

// WithSystemMessage sets a system message.
func WithSystemMessage(msg string) Option {
	return func(c *callConfig) {
		c.systemMessage = msg
	}
}

// WithToolChoice directs how the model may use the provided tools.
func WithToolChoice(choice provider.ToolChoice) Option {
	return func(c *callConfig) {
		c.toolChoice = &choice
	}
}

// WithTools adds tools the model can use.
func WithTools(tools ...Tool) Option {
	return func(c *callConfig) {
		c.tools = append(c.tools, tools...)
	}
}

// WithMessages sets the conversation history.
// This is useful for multi-turn conversations with Call.
func WithMessages(msgs ...Message) Option {
	return func(c *callConfig) {
		c.messages = append(c.messages, msgs...)
	}
}

// buildRequest creates a provider.Request from the config and prompt.
func (c *callConfig) buildRequest(prompt string) *provider.Request {
	messages := c.messages
	if prompt != "" {
		messages = append(messages, UserMessage(prompt))
	}
	return c.buildRequestFromMessages(messages)
}

// buildRequestFromMessages creates a provider.Request from messages.
func (c *callConfig) buildRequestFromMessages(messages []Message) *provider.Request {
	req := &provider.Request{
		Model:            c.model,
		System:           c.systemMessage,
		Messages:         messages,
		Temperature:      c.temperature,
		MaxTokens:        c.maxTokens,
		TopP:             c.topP,
		PresencePenalty:  c.presencePenalty,
		FrequencyPenalty: c.frequencyPenalty,
		Seed:             c.seed,
		CandidateCount:   c.candidateCount,
		StopSequences:    c.stopSequences,
		ToolChoice:       c.toolChoice,
		JSONSchema:       c.jsonSchema,
	}

	for _, tool := range c.tools {
		params, _ := json.Marshal(tool.Parameters())
		req.Tools = append(req.Tools, provider.ToolDef{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  params,
		})
	}

	return req
}
