package provider

import "github.com/google/uuid"

// NewCallID generates an identifier for a tool call that arrived without
// one on the wire.
func NewCallID() string {
	return "call_" + uuid.NewString()[:8]
}

// NewResponseID generates an identifier for a response whose wire payload
// carried none. Every mapped response increment must carry a non-empty
// identifier.
func NewResponseID() string {
	return "resp_" + uuid.NewString()[:8]
}
