package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/marengo/provider"
)

func newCaptureServer(t *testing.T, payload string, captured *[]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if captured != nil {
			*captured = body
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(t *testing.T, baseURL string, opts ...Option) *Provider {
	t.Helper()
	p, err := New(append([]Option{WithBaseURL(baseURL)}, opts...)...)
	require.NoError(t, err)
	return p
}

func userMessage(text string) provider.Message {
	return provider.Message{
		Role:   provider.RoleUser,
		Blocks: []provider.ContentBlock{provider.TextBlock(text)},
	}
}

func ndjsonBody(t *testing.T, frames ...chatResponse) string {
	t.Helper()
	var sb strings.Builder
	for _, f := range frames {
		b, err := json.Marshal(f)
		require.NoError(t, err)
		sb.Write(b)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestCall_Text(t *testing.T) {
	var captured []byte
	payload := `{
		"model": "llama3.2",
		"message": {"role": "assistant", "content": "Hello there"},
		"done": true,
		"done_reason": "stop",
		"prompt_eval_count": 10,
		"eval_count": 5
	}`
	srv := newCaptureServer(t, payload, &captured)
	p := newTestProvider(t, srv.URL)

	resp, err := p.Call(context.Background(), &provider.Request{
		Messages: []provider.Message{userMessage("Say hi")},
	})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.ID, "resp_"))
	assert.Equal(t, "llama3.2", resp.Model)
	assert.Equal(t, "Hello there", resp.Text())
	assert.Equal(t, provider.FinishReasonStop, resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 10, resp.Usage.PromptTokens)
	assert.Equal(t, 5, resp.Usage.CompletionTokens)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	var wire chatRequest
	require.NoError(t, json.Unmarshal(captured, &wire))
	assert.Equal(t, defaultModel, wire.Model)
	assert.False(t, wire.Stream)
}

func TestCall_ExtractsFencedCall(t *testing.T) {
	content := "I'll list the files.\n\n```tool_call\n{\"name\": \"run_shell\", \"arguments\": {\"command\": \"ls\"}}\n```"
	frame := chatResponse{
		Model:      "llama3.2",
		Message:    message{Role: "assistant", Content: content},
		Done:       true,
		DoneReason: "stop",
	}
	body, err := json.Marshal(frame)
	require.NoError(t, err)

	srv := newCaptureServer(t, string(body), nil)
	p := newTestProvider(t, srv.URL)

	resp, err := p.Call(context.Background(), &provider.Request{
		Messages: []provider.Message{userMessage("list files")},
	})

	require.NoError(t, err)
	assert.Equal(t, "I'll list the files.", resp.Text())
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "run_shell", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"command": "ls"}`, resp.ToolCalls[0].Arguments)
	assert.True(t, strings.HasPrefix(resp.ToolCalls[0].ID, "call_"))

	require.Len(t, resp.Blocks, 2)
	assert.Equal(t, provider.BlockText, resp.Blocks[0].Kind)
	assert.Equal(t, provider.BlockToolCall, resp.Blocks[1].Kind)
}

func TestCall_NoCounters(t *testing.T) {
	payload := `{"model": "llama3.2", "message": {"role": "assistant", "content": "hi"}, "done": true}`
	srv := newCaptureServer(t, payload, nil)
	p := newTestProvider(t, srv.URL)

	resp, err := p.Call(context.Background(), &provider.Request{
		Messages: []provider.Message{userMessage("hi")},
	})

	require.NoError(t, err)
	assert.Nil(t, resp.Usage)
	assert.Equal(t, provider.FinishReason(""), resp.FinishReason)
}

func TestCall_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model not found"}`))
	}))
	t.Cleanup(srv.Close)
	p := newTestProvider(t, srv.URL)

	_, err := p.Call(context.Background(), &provider.Request{
		Messages: []provider.Message{userMessage("hi")},
	})

	var te *provider.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
	assert.Equal(t, "model not found", te.Message)
}

func TestBuildRequest_SystemAddendum(t *testing.T) {
	p := newTestProvider(t, "http://localhost:1")
	tools := []provider.ToolDef{{
		Name:        "run_shell",
		Description: "Run a shell command",
		Parameters:  json.RawMessage(`{"type": "object"}`),
	}}

	t.Run("tools add the protocol prompt", func(t *testing.T) {
		apiReq, err := p.buildRequest(&provider.Request{
			System:   "Be helpful.",
			Messages: []provider.Message{userMessage("hi")},
			Tools:    tools,
		})

		require.NoError(t, err)
		require.GreaterOrEqual(t, len(apiReq.Messages), 2)
		sys := apiReq.Messages[0]
		assert.Equal(t, "system", sys.Role)
		assert.True(t, strings.HasPrefix(sys.Content, "Be helpful."))
		assert.Contains(t, sys.Content, "run_shell")
		assert.Contains(t, sys.Content, "```tool_call")
	})

	t.Run("tool choice none suppresses the prompt", func(t *testing.T) {
		apiReq, err := p.buildRequest(&provider.Request{
			System:     "Be helpful.",
			Messages:   []provider.Message{userMessage("hi")},
			Tools:      tools,
			ToolChoice: &provider.ToolChoice{Mode: provider.ToolChoiceNone},
		})

		require.NoError(t, err)
		assert.Equal(t, "Be helpful.", apiReq.Messages[0].Content)
	})

	t.Run("named choice adds a directive", func(t *testing.T) {
		apiReq, err := p.buildRequest(&provider.Request{
			Messages:   []provider.Message{userMessage("hi")},
			Tools:      tools,
			ToolChoice: &provider.ToolChoice{Mode: provider.ToolChoiceNamed, Name: "run_shell"},
		})

		require.NoError(t, err)
		assert.Contains(t, apiReq.Messages[0].Content, `must call the tool named "run_shell"`)
	})
}

func TestBuildRequest_EncodesToolTraffic(t *testing.T) {
	p := newTestProvider(t, "http://localhost:1")

	apiReq, err := p.buildRequest(&provider.Request{
		Messages: []provider.Message{
			userMessage("list files"),
			{
				Role: provider.RoleAssistant,
				Blocks: []provider.ContentBlock{
					provider.TextBlock("Running."),
					provider.ToolCallBlock(provider.ToolCall{
						ID: "call_1", Name: "run_shell", Arguments: `{"command": "ls"}`,
					}),
				},
			},
			{
				Role: provider.RoleTool,
				Blocks: []provider.ContentBlock{
					provider.ToolResultBlock(provider.ToolResult{
						CallID: "call_1",
						Name:   "run_shell",
						Output: `{"stdout": "go.mod\n"}`,
					}),
				},
			},
		},
	})

	require.NoError(t, err)
	require.Len(t, apiReq.Messages, 3)

	assistant := apiReq.Messages[1]
	assert.Equal(t, "assistant", assistant.Role)
	assert.Contains(t, assistant.Content, "Running.")
	assert.Contains(t, assistant.Content, "```tool_call")
	assert.Contains(t, assistant.Content, `"run_shell"`)

	// Results travel back as user-role fenced blocks carrying the call id.
	result := apiReq.Messages[2]
	assert.Equal(t, "user", result.Role)
	assert.Contains(t, result.Content, "```tool_result")
	assert.Contains(t, result.Content, "call_1")
	assert.Contains(t, result.Content, "stdout")
}

func TestBuildRequest_DropsUnansweredCalls(t *testing.T) {
	p := newTestProvider(t, "http://localhost:1")

	apiReq, err := p.buildRequest(&provider.Request{
		Messages: []provider.Message{
			userMessage("list files"),
			{
				Role: provider.RoleAssistant,
				Blocks: []provider.ContentBlock{
					provider.TextBlock("I will run it."),
					provider.ToolCallBlock(provider.ToolCall{
						ID: "call_gone", Name: "run_shell", Arguments: `{}`,
					}),
				},
			},
			userMessage("never mind"),
		},
	})

	require.NoError(t, err)
	for _, m := range apiReq.Messages {
		assert.NotContains(t, m.Content, "run_shell")
		assert.NotContains(t, m.Content, "call_gone")
	}
}

func TestBuildRequest_ModelResolution(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		hint       string
		want       string
	}{
		{name: "configured wins", configured: "qwen2.5-coder", hint: "llama3.2", want: "qwen2.5-coder"},
		{name: "hint used when unconfigured", hint: "mistral-nemo", want: "mistral-nemo"},
		{name: "registry path hint passes", hint: "library/llama3.1", want: "library/llama3.1"},
		{name: "foreign hint falls back", hint: "gpt-4o", want: defaultModel},
		{name: "nothing set falls back", want: defaultModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, "http://localhost:1", WithModel(tt.configured))

			apiReq, err := p.buildRequest(&provider.Request{
				Model:    tt.hint,
				Messages: []provider.Message{userMessage("hi")},
			})

			require.NoError(t, err)
			assert.Equal(t, tt.want, apiReq.Model)
		})
	}
}

func TestBuildRequest_FormatAndOptions(t *testing.T) {
	p := newTestProvider(t, "http://localhost:1")
	schema := json.RawMessage(`{"type": "object", "properties": {"city": {"type": "string"}}}`)
	temp := 0.1
	maxTokens := 64

	apiReq, err := p.buildRequest(&provider.Request{
		Messages:      []provider.Message{userMessage("hi")},
		JSONSchema:    &provider.JSONSchema{Name: "out", Schema: schema},
		Temperature:   &temp,
		MaxTokens:     &maxTokens,
		StopSequences: []string{"END"},
	})

	require.NoError(t, err)
	assert.Equal(t, schema, apiReq.Format)
	require.NotNil(t, apiReq.Options)
	assert.Equal(t, &temp, apiReq.Options.Temperature)
	assert.Equal(t, &maxTokens, apiReq.Options.NumPredict)
	assert.Equal(t, []string{"END"}, apiReq.Options.Stop)
}

func TestBuildRequest_NoOptionsWhenUnset(t *testing.T) {
	p := newTestProvider(t, "http://localhost:1")

	apiReq, err := p.buildRequest(&provider.Request{
		Messages: []provider.Message{userMessage("hi")},
	})

	require.NoError(t, err)
	assert.Nil(t, apiReq.Options)
	assert.Nil(t, apiReq.Format)
}

func TestBuildRequest_Images(t *testing.T) {
	p := newTestProvider(t, "http://localhost:1")
	data := []byte{0x89, 0x50, 0x4e, 0x47}

	apiReq, err := p.buildRequest(&provider.Request{
		Messages: []provider.Message{{
			Role: provider.RoleUser,
			Blocks: []provider.ContentBlock{
				provider.TextBlock("what is this?"),
				provider.BinaryBlock("image/png", data),
			},
		}},
	})

	require.NoError(t, err)
	require.Len(t, apiReq.Messages, 1)
	require.Len(t, apiReq.Messages[0].Images, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString(data), apiReq.Messages[0].Images[0])
}

func TestBuildRequest_EmptyConversation(t *testing.T) {
	p := newTestProvider(t, "http://localhost:1")

	_, err := p.buildRequest(&provider.Request{System: "hello"})

	var ire *provider.InvalidRequestError
	assert.True(t, errors.As(err, &ire))
}

func TestRoundTrip_TextTurnsPreserved(t *testing.T) {
	p := newTestProvider(t, "http://localhost:1")

	conversation := []provider.Message{
		userMessage("What is the capital of France?"),
		{Role: provider.RoleAssistant, Blocks: []provider.ContentBlock{provider.TextBlock("Paris.")}},
		userMessage("And of Japan?"),
	}

	apiReq, err := p.buildRequest(&provider.Request{Messages: conversation})
	require.NoError(t, err)

	// Outbound: order and text survive verbatim.
	require.Len(t, apiReq.Messages, len(conversation))
	for i, msg := range conversation {
		assert.Equal(t, string(msg.Role), apiReq.Messages[i].Role)
		assert.Equal(t, msg.Text(), apiReq.Messages[i].Content)
	}

	// Inbound: a synthetic continuation with no fences maps back verbatim.
	resp := convertResponse(&chatResponse{
		Model:      apiReq.Model,
		Message:    message{Role: "assistant", Content: "Tokyo."},
		Done:       true,
		DoneReason: "stop",
	}, apiReq.Model)

	assert.Equal(t, "Tokyo.", resp.Text())
	assert.Equal(t, provider.FinishReasonStop, resp.FinishReason)
	require.Len(t, resp.Blocks, 1)
	assert.Equal(t, provider.BlockText, resp.Blocks[0].Kind)
}

func TestNew_HostNormalization(t *testing.T) {
	p, err := New(WithBaseURL("remote:11434"))
	require.NoError(t, err)
	assert.Equal(t, "http://remote:11434", p.client.baseURL)

	t.Setenv("OLLAMA_HOST", "envhost:9999")
	p, err = New()
	require.NoError(t, err)
	assert.Equal(t, "http://envhost:9999", p.client.baseURL)
}

func newStreamServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func drain(t *testing.T, stream provider.ResponseStream) []*provider.StreamChunk {
	t.Helper()
	var chunks []*provider.StreamChunk
	for stream.Next() {
		chunks = append(chunks, stream.Current())
	}
	require.NoError(t, stream.Err())
	return chunks
}

func TestCallStream_Text(t *testing.T) {
	body := ndjsonBody(t,
		chatResponse{Model: "llama3.2", Message: message{Role: "assistant", Content: "Hel"}},
		chatResponse{Model: "llama3.2", Message: message{Role: "assistant", Content: "lo"}},
		chatResponse{Model: "llama3.2", Done: true, DoneReason: "stop", PromptEvalCount: 8, EvalCount: 2},
	)
	srv := newStreamServer(t, body)
	p := newTestProvider(t, srv.URL)

	stream, err := p.CallStream(context.Background(), &provider.Request{
		Messages: []provider.Message{userMessage("Say hi")},
	})
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	chunks := drain(t, stream)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Hel", chunks[0].Delta)
	assert.Equal(t, "lo", chunks[1].Delta)
	assert.Equal(t, provider.FinishReasonStop, chunks[2].FinishReason)
	require.NotNil(t, chunks[2].Usage)
	assert.Equal(t, 10, chunks[2].Usage.TotalTokens)

	for _, c := range chunks {
		assert.NotEmpty(t, c.ID)
		assert.NotEmpty(t, c.Model)
	}

	acc := stream.Accumulated()
	assert.Equal(t, "Hello", acc.Text())
	assert.Equal(t, provider.FinishReasonStop, acc.FinishReason)
}

func TestCallStream_FencedToolCall(t *testing.T) {
	body := ndjsonBody(t,
		chatResponse{Message: message{Role: "assistant", Content: "On it.\n\n"}},
		chatResponse{Message: message{Role: "assistant", Content: "```tool_call\n{\"name\": \"run_shell\", "}},
		chatResponse{Message: message{Role: "assistant", Content: "\"arguments\": {\"command\": \"ls\"}}\n```"}},
		chatResponse{Model: "llama3.2", Done: true, DoneReason: "stop"},
	)
	srv := newStreamServer(t, body)
	p := newTestProvider(t, srv.URL)

	stream, err := p.CallStream(context.Background(), &provider.Request{
		Messages: []provider.Message{userMessage("list files")},
	})
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	chunks := drain(t, stream)

	// Three raw deltas, then the terminal increment carrying the extracted
	// call and the finish reason.
	require.Len(t, chunks, 4)
	final := chunks[3]
	require.Len(t, final.ToolCalls, 1)
	assert.Equal(t, "run_shell", final.ToolCalls[0].Name)
	assert.JSONEq(t, `{"command": "ls"}`, final.ToolCalls[0].Arguments)
	assert.Equal(t, provider.FinishReasonStop, final.FinishReason)

	acc := stream.Accumulated()
	assert.Equal(t, "On it.", acc.Text())
	require.Len(t, acc.ToolCalls, 1)
	assert.Equal(t, final.ToolCalls[0].ID, acc.ToolCalls[0].ID)
}

func TestCallStream_EOFWithoutDone(t *testing.T) {
	body := ndjsonBody(t,
		chatResponse{Message: message{Role: "assistant", Content: "partial answer"}},
	)
	srv := newStreamServer(t, body)
	p := newTestProvider(t, srv.URL)

	stream, err := p.CallStream(context.Background(), &provider.Request{
		Messages: []provider.Message{userMessage("hi")},
	})
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	chunks := drain(t, stream)

	require.Len(t, chunks, 1)
	assert.Equal(t, "partial answer", chunks[0].Delta)

	acc := stream.Accumulated()
	assert.Equal(t, "partial answer", acc.Text())
	assert.Equal(t, provider.FinishReason(""), acc.FinishReason)
	assert.Nil(t, acc.Usage)
}

func TestCallStream_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "out of memory"}`))
	}))
	t.Cleanup(srv.Close)
	p := newTestProvider(t, srv.URL)

	_, err := p.CallStream(context.Background(), &provider.Request{
		Messages: []provider.Message{userMessage("hi")},
	})

	var te *provider.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "out of memory", te.Message)
}

func TestEmbed_NotSupported(t *testing.T) {
	p := newTestProvider(t, "http://localhost:1")

	_, err := p.Embed(context.Background(), &provider.EmbeddingRequest{Input: []string{"x"}})

	var ce *provider.CapabilityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "embeddings", ce.Capability)
}
