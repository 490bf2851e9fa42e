// Package provider defines the unified conversation model shared by all
// backends, the backend interfaces, and the registry used to select one.
package provider

import (
	"encoding/json"
	"strings"
)

// Role identifies the author of a message.
type Role string

// Role constants.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// BlockKind identifies the payload carried by a ContentBlock.
type BlockKind string

// Block kinds.
const (
	BlockText       BlockKind = "text"
	BlockBinary     BlockKind = "inline_binary"
	BlockFile       BlockKind = "file_reference"
	BlockToolCall   BlockKind = "tool_call"
	BlockToolResult BlockKind = "tool_result"
)

// ContentBlock is one unit of payload within a message. Exactly one payload
// group is populated, selected by Kind.
type ContentBlock struct {
	Kind BlockKind

	// BlockText
	Text string

	// BlockBinary and BlockFile
	MIMEType string

	// BlockBinary
	Data []byte

	// BlockFile
	Path string

	// BlockToolCall
	ToolCall *ToolCall

	// BlockToolResult
	ToolResult *ToolResult
}

// TextBlock creates a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockText, Text: text}
}

// BinaryBlock creates an inline binary content block.
func BinaryBlock(mimeType string, data []byte) ContentBlock {
	return ContentBlock{Kind: BlockBinary, MIMEType: mimeType, Data: data}
}

// FileBlock creates a file reference content block.
func FileBlock(path, mimeType string) ContentBlock {
	return ContentBlock{Kind: BlockFile, Path: path, MIMEType: mimeType}
}

// ToolCallBlock creates a tool call content block.
func ToolCallBlock(call ToolCall) ContentBlock {
	return ContentBlock{Kind: BlockToolCall, ToolCall: &call}
}

// ToolResultBlock creates a tool result content block.
func ToolResultBlock(result ToolResult) ContentBlock {
	return ContentBlock{Kind: BlockToolResult, ToolResult: &result}
}

// Message is one role-tagged turn in a conversation.
//
// Invariant: every tool result block must reference a tool call block that
// appears earlier in the same conversation. ReconcileHistory repairs
// conversations that violate this before they are sent to a backend that
// enforces it.
type Message struct {
	Role   Role
	Blocks []ContentBlock
}

// Text concatenates the message's text blocks in order.
func (m Message) Text() string {
	var sb strings.Builder
	for _, b := range m.Blocks {
		if b.Kind == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ToolCall is a tool invocation requested by the model. Arguments holds the
// raw JSON text of the argument object.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolResult carries the outcome of an executed tool call back to the model.
// Output is raw JSON, or plain text when the tool produced none.
type ToolResult struct {
	CallID string
	Name   string
	Output string
}

// ToolDef describes one tool available to the model.
type ToolDef struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema
}

// ToolChoiceMode selects how the model may use the tool catalog.
type ToolChoiceMode string

// Tool choice modes. An unknown or zero mode behaves as ToolChoiceAuto.
const (
	ToolChoiceAuto  ToolChoiceMode = "auto"
	ToolChoiceNone  ToolChoiceMode = "none"
	ToolChoiceAny   ToolChoiceMode = "any"
	ToolChoiceNamed ToolChoiceMode = "named"
)

// ToolChoice directs the model's tool usage for one request.
type ToolChoice struct {
	Mode ToolChoiceMode

	// Name is the required tool when Mode is ToolChoiceNamed.
	Name string
}

// JSONSchema represents a JSON Schema for structured output.
type JSONSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// Request is a provider-agnostic generation request. Model is a generic
// hint; each backend resolves the effective model name against its own
// configuration.
type Request struct {
	Model    string
	System   string
	Messages []Message

	Tools      []ToolDef
	ToolChoice *ToolChoice
	JSONSchema *JSONSchema // For structured output

	Temperature      *float64
	TopP             *float64
	PresencePenalty  *float64
	FrequencyPenalty *float64
	MaxTokens        *int
	Seed             *int
	CandidateCount   *int
	StopSequences    []string
}
