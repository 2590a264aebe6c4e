// Package agent builds the model-backed agents used by the routing workflow:
// an intent classifier, a conversational agent with tools, an image analysis
// agent, a document summarizer, and the memory extraction model binding.
//
// All agents share one execution core (Agent) that handles model selection,
// reasoning effort, retry with backoff, rate limiting, and token accounting.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/mrady9280/asfoor/internal/model"
)

// Reply is the result of one agent run.
type Reply struct {
	Text  string
	Usage model.Usage
}

// Config holds the dependencies and settings for one Agent.
type Config struct {
	Genkit      *genkit.Genkit
	Name        string // agent name, used in logs
	ModelName   string // provider-qualified model
	System      string // system instructions
	Tools       []ai.Tool
	Temperature float32
	MaxTokens   int
	MaxTurns    int // tool-call round limit, 0 = default
	Logger      *slog.Logger

	RetryConfig RetryConfig
	RateLimiter *rate.Limiter
}

func (c *Config) validate() error {
	if c.Genkit == nil {
		return fmt.Errorf("genkit instance is required")
	}
	if c.Name == "" {
		return fmt.Errorf("agent name is required")
	}
	if c.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	return nil
}

// Agent is one configured model-backed role.
//
// Agent is safe for concurrent use; all fields are immutable after New.
type Agent struct {
	g           *genkit.Genkit
	name        string
	modelName   string
	system      string
	toolRefs    []ai.ToolRef
	toolNames   string
	temperature float32
	maxTokens   int
	maxTurns    int
	logger      *slog.Logger

	retryConfig RetryConfig
	rateLimiter *rate.Limiter
}

// New creates an Agent from cfg.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	// Default: 10 requests/sec sustained, burst of 30.
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Cache tool refs and names at construction.
	toolRefs := make([]ai.ToolRef, len(cfg.Tools))
	names := make([]string, len(cfg.Tools))
	for i, t := range cfg.Tools {
		toolRefs[i] = t
		names[i] = t.Name()
	}

	return &Agent{
		g:           cfg.Genkit,
		name:        cfg.Name,
		modelName:   cfg.ModelName,
		system:      cfg.System,
		toolRefs:    toolRefs,
		toolNames:   strings.Join(names, ", "),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxTurns:    maxTurns,
		logger:      logger.With("agent", cfg.Name),
		retryConfig: retryConfig,
		rateLimiter: rl,
	}, nil
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Run executes the agent over the given message history.
// The last message is expected to be the current user turn. Messages are
// deep-copied before the model call; Genkit mutates message content in
// place, and shared history must never observe that.
func (a *Agent) Run(ctx context.Context, messages []*ai.Message, effort ReasoningEffort) (*Reply, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	budget := effort.thinkingBudget()
	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(a.temperature),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &budget,
		},
	}
	if a.maxTokens > 0 {
		genConfig.MaxOutputTokens = int32(a.maxTokens)
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithMessages(deepCopyMessages(messages)...),
		ai.WithConfig(genConfig),
		ai.WithMaxTurns(a.maxTurns),
	}
	if a.system != "" {
		opts = append(opts, ai.WithSystem(a.system))
	}
	if len(a.toolRefs) > 0 {
		opts = append(opts, ai.WithTools(a.toolRefs...))
	}

	a.logger.Debug("running agent",
		"model", a.modelName,
		"effort", effort.String(),
		"messages", len(messages),
		"tools", a.toolNames,
	)

	resp, err := a.generateWithRetry(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: agent %s: %v", model.ErrUpstream, a.name, err)
	}

	reply := &Reply{Text: strings.TrimSpace(resp.Text())}
	if resp.Usage != nil {
		reply.Usage = model.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}

	a.logger.Debug("agent finished", "usage", reply.Usage.String())
	return reply, nil
}

// RunText is a convenience wrapper for single-prompt runs.
func (a *Agent) RunText(ctx context.Context, prompt string, effort ReasoningEffort) (*Reply, error) {
	return a.Run(ctx, []*ai.Message{ai.NewUserMessage(ai.NewTextPart(prompt))}, effort)
}

// deepCopyMessages creates independent copies of messages so concurrent
// executions never share mutable content slices.
func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

// deepCopyPart copies an ai.Part. ToolRequest.Input and ToolResponse.Output
// are type any and copied by reference; Genkit only mutates msg.Content.
func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      shallowCopyMap(p.Custom),
		Metadata:    shallowCopyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Input: p.ToolRequest.Input,
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Output: p.ToolResponse.Output,
			Ref:    p.ToolResponse.Ref,
		}
	}
	if p.Resource != nil {
		cp.Resource = &ai.ResourcePart{Uri: p.Resource.Uri}
	}
	return cp
}

// shallowCopyMap copies map keys and values but not nested structures.
func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
