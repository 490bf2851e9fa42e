package provider

// ReconcileHistory returns a copy of messages that satisfies the pairing
// invariant: every tool call block has a matching tool result and every tool
// result references a call seen earlier. Backends that reject dangling
// references run this before building a request.
//
// The walk collects every call id and every result id whose call is already
// known. When all calls are matched the copy is content-preserving.
// Otherwise the copy drops tool result blocks whose call id was never seen
// and tool call blocks left without a result; messages emptied by the
// filtering are dropped entirely. The input is never mutated, and the pass
// is idempotent.
func ReconcileHistory(messages []Message) []Message {
	calls := make(map[string]bool)
	matched := make(map[string]bool)
	for _, msg := range messages {
		for _, b := range msg.Blocks {
			switch b.Kind {
			case BlockToolCall:
				if b.ToolCall != nil {
					calls[b.ToolCall.ID] = true
				}
			case BlockToolResult:
				if b.ToolResult != nil && calls[b.ToolResult.CallID] {
					matched[b.ToolResult.CallID] = true
				}
			}
		}
	}

	clean := true
	for id := range calls {
		if !matched[id] {
			clean = false
			break
		}
	}

	if clean {
		out := make([]Message, len(messages))
		for i, msg := range messages {
			out[i] = copyMessage(msg)
		}
		return out
	}

	out := make([]Message, 0, len(messages))
	for _, msg := range messages {
		blocks := make([]ContentBlock, 0, len(msg.Blocks))
		for _, b := range msg.Blocks {
			switch b.Kind {
			case BlockToolCall:
				if b.ToolCall != nil && !matched[b.ToolCall.ID] {
					continue
				}
			case BlockToolResult:
				if b.ToolResult == nil || !calls[b.ToolResult.CallID] || !matched[b.ToolResult.CallID] {
					continue
				}
			}
			blocks = append(blocks, b)
		}
		if len(blocks) == 0 {
			continue
		}
		out = append(out, Message{Role: msg.Role, Blocks: blocks})
	}
	return out
}

func copyMessage(msg Message) Message {
	blocks := make([]ContentBlock, len(msg.Blocks))
	copy(blocks, msg.Blocks)
	return Message{Role: msg.Role, Blocks: blocks}
}
