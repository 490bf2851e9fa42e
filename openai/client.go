package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/i2y/marengo/provider"
)

const defaultBaseURL = "https://api.openai.com/v1"

// attribution headers requested by the OpenRouter aggregator.
const (
	referer   = "https://github.com/i2y/marengo"
	appTitle  = "marengo"
	routerDom = "openrouter.ai"
)

// client wraps the HTTP client for OpenAI-compatible API calls.
type client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// newClient creates a new client. The API key may be empty: local
// OpenAI-compatible servers accept unauthenticated requests.
func newClient(apiKey, baseURL string, httpClient *http.Client) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// setHeaders applies common headers. OpenRouter endpoints additionally get
// the attribution headers its API documents.
func (c *client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if host := req.URL.Hostname(); host == routerDom || strings.HasSuffix(host, "."+routerDom) {
		req.Header.Set("HTTP-Referer", referer)
		req.Header.Set("X-Title", appTitle)
	}
}

// post sends a JSON request and returns the raw HTTP response. Network
// failures become transport errors; status checking is the caller's job.
func (c *client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &provider.InvalidRequestError{Reason: "marshaling request: " + err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &provider.ConfigurationError{Backend: "openai", Reason: "creating request: " + err.Error()}
	}
	c.setHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &provider.TransportError{Backend: "openai", Cause: err}
	}
	return httpResp, nil
}

// chatCompletion sends a non-streaming chat completion request.
func (c *client) chatCompletion(ctx context.Context, req *chatCompletionRequest) (*chatCompletionResponse, error) {
	httpResp, err := c.post(ctx, "/chat/completions", req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &provider.TransportError{Backend: "openai", Cause: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, parseError(httpResp.StatusCode, respBody)
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &provider.ProtocolError{Backend: "openai", Reason: "parsing response", Cause: err}
	}
	return &resp, nil
}

// chatCompletionStream sends a streaming chat completion request and returns
// a reader over the SSE body. No goroutine is started; the body is consumed
// as the caller pulls.
func (c *client) chatCompletionStream(ctx context.Context, req *chatCompletionRequest) (*streamReader, error) {
	streamReq := *req
	streamReq.Stream = true
	streamReq.StreamOptions = &streamOptions{IncludeUsage: true}

	httpResp, err := c.post(ctx, "/chat/completions", &streamReq)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer func() { _ = httpResp.Body.Close() }()
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, parseError(httpResp.StatusCode, respBody)
	}

	if httpResp.Body == nil {
		return nil, &provider.ProtocolError{Backend: "openai", Reason: "streaming response has no body"}
	}

	return &streamReader{
		reader: bufio.NewReader(httpResp.Body),
		closer: httpResp.Body,
	}, nil
}

// embeddings sends an embeddings request.
func (c *client) embeddings(ctx context.Context, req *embeddingRequest) (*embeddingResponse, error) {
	httpResp, err := c.post(ctx, "/embeddings", req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &provider.TransportError{Backend: "openai", Cause: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, parseError(httpResp.StatusCode, respBody)
	}

	var resp embeddingResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &provider.ProtocolError{Backend: "openai", Reason: "parsing response", Cause: err}
	}
	return &resp, nil
}

// parseError converts a non-2xx response body into a transport error,
// extracting the structured message when the body carries one.
func parseError(statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return &provider.TransportError{
			Backend:    "openai",
			StatusCode: statusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
	return &provider.TransportError{
		Backend:    "openai",
		StatusCode: statusCode,
		Message:    errResp.Error.Message,
	}
}

// streamReader reads SSE frames from a chat completion stream.
type streamReader struct {
	reader *bufio.Reader
	closer io.Closer
	eof    bool
}

// ReadChunk returns the next decodable frame. Lines without the data marker
// and frames that fail to decode are dropped without terminating the stream.
// Returns io.EOF on the terminator sentinel or when the body ends.
func (s *streamReader) ReadChunk() (*streamChunk, error) {
	for {
		if s.eof {
			return nil, io.EOF
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err != io.EOF || len(line) == 0 {
				return nil, err
			}
			// The body ended mid-line; decode what arrived before
			// reporting EOF on the next call.
			s.eof = true
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil, io.EOF
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		return &chunk, nil
	}
}

// Close closes the underlying body.
func (s *streamReader) Close() error {
	return s.closer.Close()
}
