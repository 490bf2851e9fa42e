package provider

import "strings"

// FinishReason indicates why the model stopped generating. The empty value
// means no reason has arrived yet (stream still open).
type FinishReason string

const (
	FinishReasonStop             FinishReason = "stop"
	FinishReasonMaxOutputReached FinishReason = "max_output_reached"
	FinishReasonSafetyBlocked    FinishReason = "safety_blocked"
	FinishReasonOther            FinishReason = "other"
)

// MapFinishReason maps a wire finish reason to the unified vocabulary. The
// table is shared by all backends. A tool-call reason is suppressed: the
// presence of tool calls represents it.
func MapFinishReason(reason string) FinishReason {
	switch reason {
	case "":
		return ""
	case "stop":
		return FinishReasonStop
	case "length":
		return FinishReasonMaxOutputReached
	case "content_filter":
		return FinishReasonSafetyBlocked
	case "tool_calls":
		return ""
	default:
		return FinishReasonOther
	}
}

// Usage reports unit counts as supplied by the backend. A nil *Usage means
// the backend supplied none; counts are never fabricated.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a completed generation normalized to the unified model.
type Response struct {
	ID    string
	Model string

	// Blocks holds text and tool calls in wire order.
	Blocks []ContentBlock

	// ToolCalls lists the completed calls, in slot order.
	ToolCalls []ToolCall

	FinishReason FinishReason
	Usage        *Usage
}

// Text concatenates the response's text blocks in order.
func (r *Response) Text() string {
	var sb strings.Builder
	for _, b := range r.Blocks {
		if b.Kind == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// StreamChunk is one unified response increment. Increments for a single
// response are ordered and concatenable: joining every Delta yields the full
// text, the union of ToolCalls yields the full call set, and the last
// non-empty FinishReason and Usage win.
type StreamChunk struct {
	ID    string
	Model string

	Delta        string
	ToolCalls    []ToolCall
	FinishReason FinishReason
	Usage        *Usage
}
