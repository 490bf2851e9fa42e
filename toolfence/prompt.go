package toolfence

import (
	"fmt"
	"strings"

	"github.com/i2y/marengo/provider"
)

// CatalogPrompt renders the system-prompt addendum that teaches a model the
// fenced tool protocol: the available tools, how to emit a tool_call block,
// and how results come back. An empty tool list yields an empty string.
func CatalogPrompt(tools []provider.ToolDef, choice *provider.ToolChoice) string {
	if len(tools) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("You have access to the following tools:\n\n")
	for _, tool := range tools {
		fmt.Fprintf(&sb, "- %s: %s\n", tool.Name, tool.Description)
		if len(tool.Parameters) > 0 {
			fmt.Fprintf(&sb, "  Parameters schema: %s\n", string(tool.Parameters))
		}
	}

	sb.WriteString("\nTo call a tool, reply with a fenced block tagged tool_call that contains a single JSON object:\n\n")
	sb.WriteString("```tool_call\n{\"name\": \"<tool name>\", \"arguments\": {<arguments matching the schema>}}\n```\n\n")
	sb.WriteString("Emit one block per call and no other text inside the block. ")
	sb.WriteString("Tool results arrive in later user messages as fenced blocks tagged tool_result ")
	sb.WriteString("containing {\"call_id\", \"name\", \"output\"}.")

	if choice != nil {
		switch choice.Mode {
		case provider.ToolChoiceNamed:
			fmt.Fprintf(&sb, "\n\nYou must call the tool named %q now.", choice.Name)
		case provider.ToolChoiceAny:
			sb.WriteString("\n\nYou must call one of the tools now.")
		}
	}

	return sb.String()
}
