package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiService is an alternative chat backend. Multiple API keys are
// rotated on failure so free-tier rate limits do not stall a chat.
type GeminiService struct {
	apiKeys       []string
	currentKey    int
	client        *genai.Client
	model         *genai.GenerativeModel
	functionsCall map[string]types.FunctionHandler
	mu            sync.Mutex
}

func NewGeminiService(apiKeys []string, modelName string) (*GeminiService, error) {
	if len(apiKeys) == 0 {
		return nil, errors.New("no API keys provided")
	}

	service := &GeminiService{
		apiKeys:       apiKeys,
		currentKey:    0,
		functionsCall: make(map[string]types.FunctionHandler),
	}

	if err := service.initClient(); err != nil {
		return nil, err
	}

	service.model = service.client.GenerativeModel(modelName)
	return service, nil
}

func (s *GeminiService) initClient() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(s.apiKeys[s.currentKey]))
	if err != nil {
		return err
	}
	s.client = client
	return nil
}

func (s *GeminiService) rotateAPIKey() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentKey = (s.currentKey + 1) % len(s.apiKeys)
	if err := s.client.Close(); err != nil {
		return err
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(s.apiKeys[s.currentKey]))
	if err != nil {
		return err
	}
	s.client = client
	return nil
}

func (s *GeminiService) Chat(ctx context.Context, payload *types.PromptPayload) (*types.Message, error) {
	history, prompt := s.buildHistory(payload)
	if prompt == "" {
		return nil, errors.New("no user message to answer")
	}

	chat := s.model.StartChat()
	chat.History = history

	resp, err := chat.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		if err := s.rotateAPIKey(); err != nil {
			return nil, err
		}
		chat = s.model.StartChat()
		chat.History = history
		resp, err = chat.SendMessage(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}
	}

	if len(resp.Candidates) == 0 {
		return nil, errors.New("no response generated")
	}

	candidate := resp.Candidates[0]
	if funcs := candidate.FunctionCalls(); len(funcs) > 0 {
		resp, err = s.handleFunctionCall(ctx, chat, funcs)
		if err != nil {
			return nil, err
		}
	}
	content := ""
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					content += string(text)
				}
			}
		}
	}

	return &types.Message{Role: "assistant", Content: content}, nil
}

func (s *GeminiService) ChatStream(ctx context.Context, payload *types.PromptPayload, handler types.StreamHandler) error {
	if handler == nil {
		return errors.New("stream handler is required")
	}
	_, prompt := s.buildHistory(payload)
	if prompt == "" {
		return errors.New("no user message to answer")
	}
	full := buildSystemPrompt(payload) + "\n\n" + prompt
	iter := s.model.GenerateContentStream(ctx, genai.Text(full))

	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if err := s.rotateAPIKey(); err != nil {
				return err
			}
			iter = s.model.GenerateContentStream(ctx, genai.Text(full))
			resp, err = iter.Next()
			if err != nil {
				return err
			}
		}

		if len(resp.Candidates) == 0 {
			continue
		}

		for _, candidate := range resp.Candidates {
			for _, part := range candidate.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					handler(string(text))
				}
			}
		}
	}
	return nil
}

// buildHistory converts the payload into Gemini chat history, folding the
// system prompt into the first turn since the API has no system role in
// chat history. The last user message becomes the prompt.
func (s *GeminiService) buildHistory(payload *types.PromptPayload) ([]*genai.Content, string) {
	system := buildSystemPrompt(payload)
	history := []*genai.Content{
		{Parts: []genai.Part{genai.Text(system)}, Role: "user"},
		{Parts: []genai.Part{genai.Text("Understood.")}, Role: "model"},
	}
	prompt := ""
	for i, msg := range payload.History {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		if i == len(payload.History)-1 && role == "user" {
			prompt = msg.Content
			break
		}
		history = append(history, &genai.Content{
			Parts: []genai.Part{genai.Text(msg.Content)},
			Role:  role,
		})
	}
	return history, prompt
}

func (s *GeminiService) handleFunctionCall(ctx context.Context, chat *genai.ChatSession, functions []genai.FunctionCall) (*genai.GenerateContentResponse, error) {
	funcResults := []genai.Part{}
	for _, function := range functions {
		handler, exists := s.functionsCall[function.Name]
		if !exists {
			return nil, fmt.Errorf("unknown function: %s", function.Name)
		}

		argsBytes, err := json.Marshal(function.Args)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal function args: %v", err)
		}
		result, err := handler(ctx, argsBytes)
		if err != nil {
			return nil, fmt.Errorf("function execution failed: %v", err)
		}
		funcResults = append(funcResults, genai.FunctionResponse{
			Name:     function.Name,
			Response: map[string]any{"result": result},
		})
	}
	resp, err := chat.SendMessage(ctx, funcResults...)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, errors.New("no response generated")
	}
	candidate := resp.Candidates[0]
	if funcs := candidate.FunctionCalls(); len(funcs) > 0 {
		return s.handleFunctionCall(ctx, chat, funcs)
	}

	return resp, nil
}

// RegisterFunction adds a callable tool to the model.
func (s *GeminiService) RegisterFunction(name, description string, parameters map[string]*genai.Schema, handler types.FunctionHandler) {
	functionDeclaration := &genai.FunctionDeclaration{
		Name:        name,
		Description: description,
		Parameters: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: parameters,
			Required:   make([]string, 0, len(parameters)),
		},
	}
	for paramName := range parameters {
		functionDeclaration.Parameters.Required = append(
			functionDeclaration.Parameters.Required,
			paramName,
		)
	}

	tool := &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{functionDeclaration},
	}

	s.model.Tools = append(s.model.Tools, tool)
	s.functionsCall[name] = handler
}

// RegisterKnowledgeSearch exposes the retrieval engine as a Gemini tool.
func (s *GeminiService) RegisterKnowledgeSearch(retrieval *RetrievalService, topK int) {
	s.RegisterFunction(
		"search_knowledge_base",
		"Search the user's included books for passages relevant to a query. Returns cited excerpts.",
		map[string]*genai.Schema{
			"query": {
				Type:        genai.TypeString,
				Description: "The search query",
			},
		},
		newKnowledgeSearchHandler(retrieval, topK),
	)
}
