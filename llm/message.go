package llm

import "github.com/i2y/marengo/provider"

// Message is an alias for provider.Message for convenience.
type Message = provider.Message

// Role is an alias for provider.Role for convenience.
type Role = provider.Role

// ContentBlock is an alias for provider.ContentBlock for convenience.
type ContentBlock = provider.ContentBlock

// Role constants.
const (
	RoleSystem    = provider.RoleSystem
	RoleUser      = provider.RoleUser
	RoleAssistant = provider.RoleAssistant
	RoleTool      = provider.RoleTool
)

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{
		Role:   RoleSystem,
		Blocks: []ContentBlock{provider.TextBlock(content)},
	}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{
		Role:   RoleUser,
		Blocks: []ContentBlock{provider.TextBlock(content)},
	}
}

// UserMessageWithImage creates a user message carrying text and one inline
// image.
func UserMessageWithImage(content, mimeType string, data []byte) Message {
	return Message{
		Role: RoleUser,
		Blocks: []ContentBlock{
			provider.TextBlock(content),
			provider.BinaryBlock(mimeType, data),
		},
	}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{
		Role:   RoleAssistant,
		Blocks: []ContentBlock{provider.TextBlock(content)},
	}
}

// AssistantMessageWithToolCalls creates an assistant message with tool calls.
func AssistantMessageWithToolCalls(content string, toolCalls []ToolCall) Message {
	blocks := make([]ContentBlock, 0, len(toolCalls)+1)
	if content != "" {
		blocks = append(blocks, provider.TextBlock(content))
	}
	for _, tc := range toolCalls {
		blocks = append(blocks, provider.ToolCallBlock(tc))
	}
	return Message{
		Role:   RoleAssistant,
		Blocks: blocks,
	}
}

// ToolMessage creates a tool result message answering a specific call.
func ToolMessage(toolCallID, toolName, content string) Message {
	return Message{
		Role: RoleTool,
		Blocks: []ContentBlock{
			provider.ToolResultBlock(provider.ToolResult{
				CallID: toolCallID,
				Name:   toolName,
				Output: content,
			}),
		},
	}
}
