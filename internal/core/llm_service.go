package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultChatModelName      = "gemini-1.5-flash-latest"
	defaultEmbeddingModelName = "text-embedding-004"

	geminiRoleUser  = "user"
	geminiRoleModel = "model"
)

// LLMService is the Gemini backend: a LanguageModel for the orchestrator and an Embedder
// for the stores.
type LLMService struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	temperature    float32
	maxTokens      int32
}

func NewLLMService(ctx context.Context, apiKey, chatModel, embeddingModel string) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if chatModel == "" {
		chatModel = defaultChatModelName
	}
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModelName
	}
	return &LLMService{
		client:         client,
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		temperature:    0,
		maxTokens:      800,
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		} else {
			log.Println("GenAI client closed.")
		}
	}
}

func (s *LLMService) Embed(ctx context.Context, text string) ([]float32, error) {
	em := s.client.EmbeddingModel(s.embeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

func (s *LLMService) Generate(ctx context.Context, req ModelRequest) (ModelReply, error) {
	model := s.client.GenerativeModel(s.chatModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.System)},
	}
	temp, maxTokens := s.temperature, s.maxTokens
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     &temp,
		MaxOutputTokens: &maxTokens,
	}
	if len(req.Capabilities) > 0 {
		model.Tools = []*genai.Tool{toGeminiTool(req.Capabilities)}
		mode := genai.FunctionCallingNone
		if req.AllowCapabilityCalls {
			mode = genai.FunctionCallingAuto
		}
		model.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode},
		}
	}

	contents := toGeminiContents(req.History, req.Messages)
	if len(contents) == 0 {
		return ModelReply{}, fmt.Errorf("prompt history is empty for chat completion")
	}
	last := contents[len(contents)-1]
	if last.Role != geminiRoleUser {
		return ModelReply{}, fmt.Errorf("last message is not from 'user', cannot proceed with chat completion")
	}

	chatSession := model.StartChat()
	chatSession.History = contents[:len(contents)-1]
	resp, err := chatSession.SendMessage(ctx, last.Parts...)
	if err != nil {
		return ModelReply{}, fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}
	return replyFromResponse(resp)
}

func toGeminiTool(defs []ToolDefinition) *genai.Tool {
	tool := &genai.Tool{}
	for _, def := range defs {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(def.Params)),
		}
		for _, p := range def.Params {
			t := genai.TypeString
			if p.Type == ParamInteger {
				t = genai.TypeInteger
			}
			schema.Properties[p.Name] = &genai.Schema{Type: t, Description: p.Description}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		tool.FunctionDeclarations = append(tool.FunctionDeclarations, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  schema,
		})
	}
	return tool
}

// toGeminiContents lays out stored turns then the in-flight messages as alternating
// user/model contents.
func toGeminiContents(history []Turn, messages []Message) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range history {
		role := geminiRoleUser
		if turn.Role == RoleAssistant {
			role = geminiRoleModel
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(turn.Text)}})
	}
	for _, msg := range messages {
		switch {
		case msg.Result != nil:
			contents = append(contents, &genai.Content{
				Role: geminiRoleUser,
				Parts: []genai.Part{genai.FunctionResponse{
					Name:     msg.Result.Name,
					Response: map[string]any{"result": msg.Result.Content},
				}},
			})
		case msg.Call != nil:
			var parts []genai.Part
			if msg.Text != "" {
				parts = append(parts, genai.Text(msg.Text))
			}
			parts = append(parts, genai.FunctionCall{Name: msg.Call.Name, Args: msg.Call.Args})
			contents = append(contents, &genai.Content{Role: geminiRoleModel, Parts: parts})
		default:
			role := geminiRoleUser
			if msg.Role == RoleAssistant {
				role = geminiRoleModel
			}
			contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Text)}})
		}
	}
	return contents
}

// replyFromResponse takes the first candidate. When it carries several function calls only
// the first is honored.
func replyFromResponse(resp *genai.GenerateContentResponse) (ModelReply, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ModelReply{}, fmt.Errorf("gemini response was empty or had no valid candidates/parts")
	}

	var text strings.Builder
	var calls []genai.FunctionCall
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			calls = append(calls, p)
		case *genai.FunctionCall:
			calls = append(calls, *p)
		default:
			log.Printf("Gemini response part was not text or a function call: %T", part)
		}
	}

	if len(calls) > 0 {
		if len(calls) > 1 {
			log.Printf("Gemini requested %d function calls in one reply; only %q is honored", len(calls), calls[0].Name)
		}
		args := calls[0].Args
		if args == nil {
			args = map[string]any{}
		}
		return ModelReply{
			Kind: ReplyCapabilityCall,
			Text: text.String(),
			Call: &CapabilityCall{Name: calls[0].Name, Args: args},
		}, nil
	}
	if text.Len() == 0 {
		return ModelReply{}, fmt.Errorf("gemini response had no text")
	}
	return ModelReply{Kind: ReplyAnswer, Text: text.String()}, nil
}
