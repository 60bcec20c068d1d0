package service

import (
	"fmt"
	"strings"

	"github.com/bookbrain-ai/bookbrain-be/types"
)

// ContextAssembler packs retrieved passages into a bounded prompt
// context. Passages go in whole, best score first, each prefixed with its
// citation line; the first passage that would overflow the budget ends
// packing.
type ContextAssembler struct {
	maxChars int
}

func NewContextAssembler(maxChars int) *ContextAssembler {
	if maxChars <= 0 {
		maxChars = 8000
	}
	return &ContextAssembler{maxChars: maxChars}
}

// Assemble builds the prompt payload. When grounded is false the history
// passes through untouched and no context is attached.
func (a *ContextAssembler) Assemble(passages []types.Passage, history []types.Message, grounded bool) *types.PromptPayload {
	payload := &types.PromptPayload{
		History:  history,
		Grounded: grounded,
	}
	if !grounded || len(passages) == 0 {
		return payload
	}

	var sb strings.Builder
	used := 0
	for _, p := range passages {
		block := fmt.Sprintf("[%s]\n%s", p.Citation(), p.Text)
		cost := len(block)
		if used > 0 {
			cost += 2 // blank line between blocks
		}
		if used+cost > a.maxChars {
			break
		}
		if used > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(block)
		used += cost
		payload.Passages = append(payload.Passages, p)
	}
	payload.Context = sb.String()
	return payload
}
