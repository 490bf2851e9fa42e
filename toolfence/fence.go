// Package toolfence implements the textual tool-call protocol for backends
// without native tool-calling syntax. Tool calls and results travel as
// tagged fenced blocks inside ordinary chat text, so the protocol is a
// serialization format of its own, independent of any transport.
package toolfence

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/i2y/marengo/provider"
)

var (
	fenceCallRE   = regexp.MustCompile("(?s)```tool_call[ \t]*\r?\n(.*?)```")
	bracketCallRE = regexp.MustCompile(`(?s)\[tool_call\](.*?)\[/tool_call\]`)
	fenceResultRE = regexp.MustCompile("(?s)```tool_result[ \t]*\r?\n(.*?)```")
)

// Accepted key aliases inside a tool_call payload.
var (
	nameKeys = []string{"name", "tool", "tool_name", "function"}
	argKeys  = []string{"arguments", "args", "parameters", "input"}
)

// Extract scans completed text for tool_call fences (and the bracket-tag
// variant) and returns the visible text with decoded fences stripped plus
// the calls, in order of appearance. Call ids are generated. Fenced content
// that does not decode stays in the visible text unchanged; when nothing
// decodes the text is returned verbatim.
func Extract(text string) (string, []provider.ToolCall) {
	spans := findCallSpans(text)
	if len(spans) == 0 {
		return text, nil
	}

	var calls []provider.ToolCall
	var sb strings.Builder
	last := 0
	for _, sp := range spans {
		if sp.start < last {
			continue
		}
		call, ok := decodeCall(sp.payload)
		if !ok {
			continue
		}
		sb.WriteString(text[last:sp.start])
		last = sp.end
		calls = append(calls, call)
	}
	if len(calls) == 0 {
		return text, nil
	}
	sb.WriteString(text[last:])
	return strings.TrimSpace(sb.String()), calls
}

// EncodeCall renders a call as a fenced tool_call block.
func EncodeCall(call provider.ToolCall) string {
	payload := struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}{
		Name:      call.Name,
		Arguments: asJSON(call.Arguments),
	}
	data, _ := json.Marshal(payload)
	return "```tool_call\n" + string(data) + "\n```"
}

// EncodeResult renders a result as a fenced tool_result block carrying the
// call id, tool name, and output object.
func EncodeResult(result provider.ToolResult) string {
	payload := struct {
		CallID string          `json:"call_id"`
		Name   string          `json:"name"`
		Output json.RawMessage `json:"output"`
	}{
		CallID: result.CallID,
		Name:   result.Name,
		Output: asJSON(result.Output),
	}
	data, _ := json.Marshal(payload)
	return "```tool_result\n" + string(data) + "\n```"
}

// DecodeResult parses the first fenced tool_result block in text.
func DecodeResult(text string) (provider.ToolResult, bool) {
	m := fenceResultRE.FindStringSubmatch(text)
	if m == nil {
		return provider.ToolResult{}, false
	}
	var payload struct {
		CallID string          `json:"call_id"`
		Name   string          `json:"name"`
		Output json.RawMessage `json:"output"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &payload); err != nil {
		return provider.ToolResult{}, false
	}
	return provider.ToolResult{
		CallID: payload.CallID,
		Name:   payload.Name,
		Output: unquote(string(payload.Output)),
	}, true
}

type span struct {
	start, end int
	payload    string
}

func findCallSpans(text string) []span {
	var spans []span
	for _, re := range []*regexp.Regexp{fenceCallRE, bracketCallRE} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			spans = append(spans, span{
				start:   m[0],
				end:     m[1],
				payload: text[m[2]:m[3]],
			})
		}
	}
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].start < spans[j-1].start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
	return spans
}

func decodeCall(raw string) (provider.ToolCall, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &obj); err != nil {
		return provider.ToolCall{}, false
	}

	var name string
	for _, key := range nameKeys {
		v, ok := obj[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, &name); err == nil && name != "" {
			break
		}
		name = ""
	}
	if name == "" {
		return provider.ToolCall{}, false
	}

	args := "{}"
	for _, key := range argKeys {
		if v, ok := obj[key]; ok {
			args = string(v)
			if inner := unquote(args); inner != args && json.Valid([]byte(inner)) {
				args = inner
			}
			break
		}
	}

	return provider.ToolCall{
		ID:        provider.NewCallID(),
		Name:      name,
		Arguments: args,
	}, true
}

// asJSON passes valid JSON through untouched and quotes anything else as a
// JSON string. The empty string becomes an empty object.
func asJSON(s string) json.RawMessage {
	if s == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	quoted, _ := json.Marshal(s)
	return quoted
}

// unquote unwraps a JSON string value to its content; models sometimes
// deliver argument objects doubly encoded. Everything else passes through.
func unquote(s string) string {
	if !strings.HasPrefix(s, `"`) {
		return s
	}
	var inner string
	if err := json.Unmarshal([]byte(s), &inner); err != nil {
		return s
	}
	return inner
}
