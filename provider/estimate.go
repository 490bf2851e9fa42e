package provider

// EstimateTokens returns an order-of-magnitude token estimate for a
// conversation, derived from its total character length. It is explicitly
// an estimate, not a tokenizer result, and never returns less than 1 for
// non-empty input.
func EstimateTokens(messages []Message) int {
	chars := 0
	for _, msg := range messages {
		for _, b := range msg.Blocks {
			switch b.Kind {
			case BlockText:
				chars += len(b.Text)
			case BlockBinary:
				chars += len(b.Data)
			case BlockFile:
				chars += len(b.Path)
			case BlockToolCall:
				if b.ToolCall != nil {
					chars += len(b.ToolCall.Name) + len(b.ToolCall.Arguments)
				}
			case BlockToolResult:
				if b.ToolResult != nil {
					chars += len(b.ToolResult.Name) + len(b.ToolResult.Output)
				}
			}
		}
	}
	if chars == 0 {
		return 0
	}
	if n := chars / 4; n > 0 {
		return n
	}
	return 1
}
