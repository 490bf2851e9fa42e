package openai

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/i2y/marengo/provider"
)

// callAccumulator assembles streamed tool-call fragments into completed
// calls. Fragments carry a slot index; the id and name arrive on the first
// fragment of a slot while arguments arrive as string pieces across many.
// A call is emitted at most once: opportunistically as soon as its name is
// known and its concatenated arguments parse as JSON, otherwise at finalize.
type callAccumulator struct {
	slots map[int]*callSlot
}

type callSlot struct {
	id        string
	name      string
	args      strings.Builder
	lastValid string
	emitted   bool
}

func newCallAccumulator() *callAccumulator {
	return &callAccumulator{slots: make(map[int]*callSlot)}
}

// apply folds one fragment into its slot. It returns a completed call and
// true the first time the slot's emission condition is met. Fragments for an
// already-emitted slot are absorbed without effect.
func (a *callAccumulator) apply(fragment streamToolCall) (provider.ToolCall, bool) {
	slot, ok := a.slots[fragment.Index]
	if !ok {
		slot = &callSlot{}
		a.slots[fragment.Index] = slot
	}

	if slot.id == "" && fragment.ID != "" {
		slot.id = fragment.ID
	}
	if slot.name == "" && fragment.Function.Name != "" {
		slot.name = fragment.Function.Name
	}
	if fragment.Function.Arguments != "" {
		slot.args.WriteString(fragment.Function.Arguments)
	}

	raw := slot.args.String()
	if raw != "" && json.Valid([]byte(raw)) {
		slot.lastValid = raw
	}

	if slot.emitted || slot.name == "" || slot.lastValid != raw || raw == "" {
		return provider.ToolCall{}, false
	}

	slot.emitted = true
	return slot.call(fragment.Index, raw), true
}

// finalize completes every slot not yet emitted, in slot order. Arguments
// fall back from the full concatenation to the last fragment boundary that
// parsed, and finally to a wrapper object carrying the raw text.
func (a *callAccumulator) finalize() []provider.ToolCall {
	indexes := make([]int, 0, len(a.slots))
	for idx, slot := range a.slots {
		if !slot.emitted {
			indexes = append(indexes, idx)
		}
	}
	sort.Ints(indexes)

	calls := make([]provider.ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		slot := a.slots[idx]
		slot.emitted = true
		calls = append(calls, slot.call(idx, finalArguments(slot)))
	}
	return calls
}

func finalArguments(slot *callSlot) string {
	raw := slot.args.String()
	switch {
	case raw == "":
		return "{}"
	case json.Valid([]byte(raw)):
		return raw
	case slot.lastValid != "":
		return slot.lastValid
	default:
		wrapped, _ := json.Marshal(struct {
			Raw string `json:"raw"`
		}{Raw: raw})
		return string(wrapped)
	}
}

func (s *callSlot) call(index int, arguments string) provider.ToolCall {
	id := s.id
	if id == "" {
		id = provider.NewCallID()
	}
	name := s.name
	if name == "" {
		name = fmt.Sprintf("tool_%d", index)
	}
	return provider.ToolCall{ID: id, Name: name, Arguments: arguments}
}
