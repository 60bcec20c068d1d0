package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/bookbrain-ai/bookbrain-be/types"
)

// ChatService ties retrieval, context assembly and the chat model
// together. Grounded chats retrieve passages for the latest user message
// before answering; when the knowledge base is empty the chat degrades to
// an ungrounded answer instead of failing.
type ChatService struct {
	retrieval *RetrievalService
	assembler *ContextAssembler
	ai        AIService
	topK      int
}

func NewChatService(retrieval *RetrievalService, assembler *ContextAssembler, ai AIService, topK int) *ChatService {
	return &ChatService{
		retrieval: retrieval,
		assembler: assembler,
		ai:        ai,
		topK:      topK,
	}
}

func (s *ChatService) Chat(ctx context.Context, messages []types.Message, grounded bool, limit int) (*types.ChatResponse, error) {
	if len(messages) == 0 {
		return nil, errors.New("no messages provided")
	}
	if limit <= 0 {
		limit = s.topK
	}

	var passages []types.Passage
	if grounded {
		query := latestUserMessage(messages)
		if query == "" {
			return nil, errors.New("no user message to ground on")
		}
		var err error
		passages, err = s.retrieval.Retrieve(ctx, query, limit)
		if errors.Is(err, types.ErrNoKnowledgeBase) {
			log.Println("No documents included, answering without grounding")
			grounded = false
		} else if err != nil {
			return nil, fmt.Errorf("retrieval failed: %w", err)
		}
	}

	payload := s.assembler.Assemble(passages, messages, grounded)
	res, err := s.ai.Chat(ctx, payload)
	if err != nil {
		return nil, err
	}

	return &types.ChatResponse{
		Message:   res.Content,
		Citations: payload.Passages,
	}, nil
}

func (s *ChatService) ChatStream(ctx context.Context, messages []types.Message, grounded bool, limit int, handler types.StreamHandler) ([]types.Passage, error) {
	if len(messages) == 0 {
		return nil, errors.New("no messages provided")
	}
	if limit <= 0 {
		limit = s.topK
	}

	var passages []types.Passage
	if grounded {
		query := latestUserMessage(messages)
		if query == "" {
			return nil, errors.New("no user message to ground on")
		}
		var err error
		passages, err = s.retrieval.Retrieve(ctx, query, limit)
		if errors.Is(err, types.ErrNoKnowledgeBase) {
			grounded = false
		} else if err != nil {
			return nil, fmt.Errorf("retrieval failed: %w", err)
		}
	}

	payload := s.assembler.Assemble(passages, messages, grounded)
	if err := s.ai.ChatStream(ctx, payload, handler); err != nil {
		return nil, err
	}
	return payload.Passages, nil
}

func latestUserMessage(messages []types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" || messages[i].Role == "" {
			return messages[i].Content
		}
	}
	return ""
}
