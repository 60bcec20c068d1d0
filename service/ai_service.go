package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bookbrain-ai/bookbrain-be/types"
)

// AIService generates answers from an assembled prompt payload.
type AIService interface {
	Chat(ctx context.Context, payload *types.PromptPayload) (*types.Message, error)
	ChatStream(ctx context.Context, payload *types.PromptPayload, handler types.StreamHandler) error
}

const baseSystemPrompt = "You are a reading assistant for a personal book library. " +
	"Answer clearly and concisely, and cite the book and pages you drew on."

// buildSystemPrompt folds the retrieved context into the system message.
// When grounded, the model is told to answer only from the provided
// excerpts; without them it behaves as a plain assistant.
func buildSystemPrompt(payload *types.PromptPayload) string {
	if !payload.Grounded || payload.Context == "" {
		return baseSystemPrompt
	}
	var sb strings.Builder
	sb.WriteString(baseSystemPrompt)
	sb.WriteString("\n\nAnswer using only the excerpts below. ")
	sb.WriteString("If they do not contain the answer, say so instead of guessing.\n\n")
	sb.WriteString(payload.Context)
	return sb.String()
}

type knowledgeSearchArgs struct {
	Query string `json:"query"`
}

// newKnowledgeSearchHandler adapts the retrieval service into a function
// call the model can invoke mid-conversation to look something up.
func newKnowledgeSearchHandler(retrieval *RetrievalService, topK int) types.FunctionHandler {
	return func(ctx context.Context, args []byte) (interface{}, error) {
		var req knowledgeSearchArgs
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, fmt.Errorf("failed to parse search arguments: %w", err)
		}
		passages, err := retrieval.Retrieve(ctx, req.Query, topK)
		if err != nil {
			if err == types.ErrNoKnowledgeBase {
				return "No books are currently included in the knowledge base.", nil
			}
			return nil, err
		}
		if len(passages) == 0 {
			return "No relevant passages found.", nil
		}
		var sb strings.Builder
		for i, p := range passages {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(fmt.Sprintf("[%s]\n%s", p.Citation(), p.Text))
		}
		return sb.String(), nil
	}
}
