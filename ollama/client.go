package ollama

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

const defaultBaseURL = "http://localhost:11434"

// client wraps the HTTP client for the Ollama API. The API is local-first:
// no authentication, newline-delimited JSON for streaming.
type client struct {
	baseURL    string
	httpClient *http.Client
}

func newClient(baseURL string, httpClient *http.Client) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &provider.InvalidRequestError{Reason: "marshaling request: " + err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &provider.ConfigurationError{Backend: "ollama", Reason: "creating request: " + err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &provider.TransportError{Backend: "ollama", Cause: err}
	}
	return httpResp, nil
}

// chat sends a non-streaming chat request.
func (c *client) chat(ctx context.Context, req *chatRequest) (*chatResponse, error) {
	req.Stream = false

	httpResp, err := c.post(ctx, "/api/chat", req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &provider.TransportError{Backend: "ollama", Cause: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, parseError(httpResp.StatusCode, respBody)
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &provider.ProtocolError{Backend: "ollama", Reason: "parsing response", Cause: err}
	}
	return &resp, nil
}

// chatStream sends a streaming chat request and returns a reader over the
// newline-delimited body.
func (c *client) chatStream(ctx context.Context, req *chatRequest) (*lineReader, error) {
	req.Stream = true

	httpResp, err := c.post(ctx, "/api/chat", req)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer func() { _ = httpResp.Body.Close() }()
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, parseError(httpResp.StatusCode, respBody)
	}

	if httpResp.Body == nil {
		return nil, &provider.ProtocolError{Backend: "ollama", Reason: "streaming response has no body"}
	}

	return &lineReader{
		reader: bufio.NewReader(httpResp.Body),
		closer: httpResp.Body,
	}, nil
}

// parseError converts a non-2xx response body into a transport error.
func parseError(statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &provider.TransportError{
			Backend:    "ollama",
			StatusCode: statusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
	return &provider.TransportError{
		Backend:    "ollama",
		StatusCode: statusCode,
		Message:    errResp.Error,
	}
}

// lineReader reads newline-delimited JSON frames. Blank and undecodable
// lines are dropped without terminating the stream; a trailing line without
// its newline is still decoded before EOF is reported.
type lineReader struct {
	reader *bufio.Reader
	closer io.Closer
	eof    bool
}

// ReadObject returns the next decodable frame, or io.EOF at end of body.
func (r *lineReader) ReadObject() (*chatResponse, error) {
	for {
		if r.eof {
			return nil, io.EOF
		}

		line, err := r.reader.ReadString('\n')
		if err != nil {
			if err != io.EOF || len(line) == 0 {
				return nil, err
			}
			r.eof = true
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var resp chatResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			continue
		}
		return &resp, nil
	}
}

// Close closes the underlying body.
func (r *lineReader) Close() error {
	return r.closer.Close()
}
