package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/apeSh1t/rag-research-assistant/internal/embed"
)

const systemPrompt = `You are a solution planning expert. Your task is to analyze user problems and formulate detailed step-by-step solution plans. Simple problems can be solved directly by LLM calculation, while complex problems require querying the knowledge base and calling tools.

IMPORTANT: You must ALWAYS output in ENGLISH, regardless of the user's input language.

Available Tools:
- search_knowledge: Query the knowledge base for relevant methods and principles.

Workflow:
1. Encountering unknown problems or concepts, call search_knowledge to query the knowledge base.
2. If search yields no results, try analyzing the problem and changing the query to search again. You must make decisions based on knowledge, and search at least once.
3. Based on the returned information, formulate a detailed execution plan. If the knowledge base returns a method description, understand it; if it can be solved directly by LLM calculation, add an llm_reasoning step; if still unclear, continue querying the knowledge base.
4. Based on the expected return of the tool or llm_reasoning, continue to analyze whether the goal is achieved and what to do next.
5. Recursively handle all sub-problems until the user's problem can be completely solved and the desired result is obtained.
6. Before outputting, analyze the plan to assess if every step is clear, if it solves the user's problem, and if the final output is simple and easy to understand. Otherwise, repeat the steps above.
7. When you get the final result, you MUST start your final answer with "Final Answer:".

Please clearly describe your every action during the thinking process, for example: "I will first search for knowledge about...", "Based on the search results, I found..., next I will...".`

const searchToolName = "search_knowledge"

var searchTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        searchToolName,
		Description: "Search the knowledge base for relevant information.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "The search query."}
			},
			"required": ["query"]
		}`),
	},
}

// KnowledgeRetriever is the knowledge base surface the agent calls through
// its search tool.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// Exchange is one prior question/answer pair of the conversation.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ReasoningStep records one tool round for the non-streaming response.
type ReasoningStep struct {
	Thought     string `json:"thought"`
	Tool        string `json:"tool"`
	ToolInput   string `json:"tool_input"`
	Observation string `json:"observation"`
}

// Options configures the agent.
type Options struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxIterations int
	KB            KnowledgeRetriever
	Stats         *embed.LLMStats
	Log           *slog.Logger
}

// Agent answers questions by iteratively calling the chat model with the
// knowledge-search tool until the model stops requesting tool calls.
type Agent struct {
	log           *slog.Logger
	client        *openai.Client
	model         string
	kb            KnowledgeRetriever
	maxIterations int
	stats         *embed.LLMStats
}

func New(opts Options) *Agent {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 10
	}
	return &Agent{
		log:           opts.Log,
		client:        openai.NewClientWithConfig(cfg),
		model:         opts.Model,
		kb:            opts.KB,
		maxIterations: opts.MaxIterations,
		stats:         opts.Stats,
	}
}

// buildInput folds the conversation history into one prompt, matching the
// non-streaming and streaming paths exactly.
func buildInput(query string, history []Exchange) string {
	if len(history) == 0 {
		return fmt.Sprintf("Please formulate a detailed solution plan for the following problem:\n\n%s", query)
	}
	var ctx strings.Builder
	for i, ex := range history {
		if i > 0 {
			ctx.WriteString("\n")
		}
		fmt.Fprintf(&ctx, "Q: %s\nA: %s", ex.Question, ex.Answer)
	}
	return fmt.Sprintf("Conversation history:\n%s\n\nCurrent question: %s\n\nPlease formulate a detailed solution plan for the current question.", ctx.String(), query)
}

func initialMessages(query string, history []Exchange) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: buildInput(query, history)},
	}
}

// runTool executes one search_knowledge call. Unknown tools and bad argument
// payloads come back as observations so the model can correct itself.
func (a *Agent) runTool(ctx context.Context, name, arguments string) (string, error) {
	if name != searchToolName {
		return fmt.Sprintf("Unknown tool: %s", name), nil
	}
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return fmt.Sprintf("Invalid tool arguments: %v", err), nil
	}
	return a.kb.Retrieve(ctx, args.Query)
}

// Chat runs the agent loop without streaming and returns the final answer
// plus the tool rounds it took to get there.
func (a *Agent) Chat(ctx context.Context, query string, history []Exchange) (string, []ReasoningStep, error) {
	messages := initialMessages(query, history)
	var steps []ReasoningStep

	for iter := 0; iter < a.maxIterations; iter++ {
		start := time.Now()
		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       a.model,
			Temperature: 0.1,
			Messages:    messages,
			Tools:       []openai.Tool{searchTool},
		})
		if a.stats != nil {
			a.stats.Record(time.Since(start).Milliseconds())
		}
		if err != nil {
			return "", steps, fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", steps, fmt.Errorf("chat completion returned no choices")
		}

		msg := resp.Choices[0].Message
		messages = append(messages, msg)

		if len(msg.ToolCalls) == 0 {
			return stripAnswerMarkers(msg.Content), steps, nil
		}

		for _, call := range msg.ToolCalls {
			a.log.Debug("tool call", "tool", call.Function.Name, "input", call.Function.Arguments)
			observation, err := a.runTool(ctx, call.Function.Name, call.Function.Arguments)
			if err != nil {
				return "", steps, fmt.Errorf("tool %s: %w", call.Function.Name, err)
			}
			steps = append(steps, ReasoningStep{
				Thought:     stripThoughtLabel(msg.Content),
				Tool:        call.Function.Name,
				ToolInput:   call.Function.Arguments,
				Observation: observation,
			})
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    observation,
				ToolCallID: call.ID,
			})
		}
	}

	return "", steps, fmt.Errorf("no final answer after %d iterations", a.maxIterations)
}

// ChatStream runs the agent loop and pushes classified events through emit as
// they happen. A non-nil return means the stream ended abnormally; the caller
// is expected to surface it as a single error event.
func (a *Agent) ChatStream(ctx context.Context, query string, history []Exchange, emit func(StreamEvent) error) error {
	messages := initialMessages(query, history)
	classifier := NewStreamClassifier()

	emitAll := func(events []StreamEvent) error {
		for _, ev := range events {
			if err := emit(ev); err != nil {
				return err
			}
		}
		return nil
	}

	for iter := 0; iter < a.maxIterations; iter++ {
		content, toolCalls, err := a.streamOnce(ctx, messages, classifier, emitAll)
		if err != nil {
			return err
		}

		messages = append(messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   content,
			ToolCalls: toolCalls,
		})

		if len(toolCalls) == 0 {
			return emitAll(classifier.OnFinish(content))
		}

		for _, call := range toolCalls {
			if err := emitAll(classifier.OnToolStart(call.Function.Name, call.Function.Arguments)); err != nil {
				return err
			}
			observation, err := a.runTool(ctx, call.Function.Name, call.Function.Arguments)
			if err != nil {
				return fmt.Errorf("tool %s: %w", call.Function.Name, err)
			}
			if err := emitAll(classifier.OnToolEnd(call.Function.Name, observation)); err != nil {
				return err
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    observation,
				ToolCallID: call.ID,
			})
		}
	}

	return fmt.Errorf("no final answer after %d iterations", a.maxIterations)
}

// streamOnce performs one streamed completion, feeding content deltas to the
// classifier and accumulating tool-call fragments by index.
func (a *Agent) streamOnce(ctx context.Context, messages []openai.ChatCompletionMessage, classifier *StreamClassifier, emitAll func([]StreamEvent) error) (string, []openai.ToolCall, error) {
	start := time.Now()
	stream, err := a.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.1,
		Messages:    messages,
		Tools:       []openai.Tool{searchTool},
		Stream:      true,
	})
	if err != nil {
		return "", nil, fmt.Errorf("create completion stream: %w", err)
	}
	defer stream.Close()
	defer func() {
		if a.stats != nil {
			a.stats.Record(time.Since(start).Milliseconds())
		}
	}()

	var content strings.Builder
	var toolCalls []openai.ToolCall

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("receive stream chunk: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta

		if delta.Content != "" {
			content.WriteString(delta.Content)
			if err := emitAll(classifier.OnToken(delta.Content)); err != nil {
				return "", nil, err
			}
		}

		for _, fragment := range delta.ToolCalls {
			idx := len(toolCalls) - 1
			if fragment.Index != nil {
				idx = *fragment.Index
			}
			if idx < 0 {
				idx = 0
			}
			for idx >= len(toolCalls) {
				toolCalls = append(toolCalls, openai.ToolCall{Type: openai.ToolTypeFunction})
			}
			call := &toolCalls[idx]
			if fragment.ID != "" {
				call.ID = fragment.ID
			}
			if fragment.Function.Name != "" {
				call.Function.Name = fragment.Function.Name
			}
			call.Function.Arguments += fragment.Function.Arguments
		}
	}

	return content.String(), toolCalls, nil
}
