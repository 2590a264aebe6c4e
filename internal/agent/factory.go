package agent

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/mrady9280/asfoor/internal/config"
)

// Factory constructs the agents the workflow runs. The classifier, image
// agent, and summarizer are fixed for the process lifetime and built once;
// the chat agent carries per-user memory context in its system prompt and
// is built per turn.
type Factory struct {
	g      *genkit.Genkit
	cfg    *config.Config
	logger *slog.Logger

	tools      []ai.Tool
	classifier *Agent
	image      *Agent
	summarizer *Agent
}

// FactoryConfig holds the dependencies for NewFactory.
type FactoryConfig struct {
	Genkit   *genkit.Genkit
	Config   *config.Config
	Searcher Searcher
	Logger   *slog.Logger

	// HTTPClient is injected by tests; nil uses a default client.
	HTTPClient *http.Client
}

// NewFactory builds the fixed agents and the shared toolset.
func NewFactory(fc FactoryConfig) (*Factory, error) {
	if fc.Genkit == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if fc.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if fc.Searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	logger := fc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := fc.Config

	image, err := New(Config{
		Genkit:      fc.Genkit,
		Name:        "image",
		ModelName:   cfg.FullImageModel(),
		System:      imageInstructions,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build image agent: %w", err)
	}

	tools, err := BuildTools(ToolsConfig{
		Genkit:         fc.Genkit,
		Searcher:       fc.Searcher,
		ImageAgent:     image,
		SearXNGBaseURL: cfg.SearXNG.BaseURL,
		FetchTimeout:   time.Duration(cfg.WebFetch.TimeoutMs) * time.Millisecond,
		HTTPClient:     fc.HTTPClient,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build tools: %w", err)
	}

	// Routing must be deterministic, so the classifier runs cold and
	// without tool rounds.
	classifier, err := New(Config{
		Genkit:      fc.Genkit,
		Name:        "classifier",
		ModelName:   cfg.FullChatModel(),
		System:      classifierInstructions,
		Temperature: 0,
		MaxTokens:   cfg.MaxTokens,
		MaxTurns:    1,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}

	summarizer, err := New(Config{
		Genkit:      fc.Genkit,
		Name:        "summarizer",
		ModelName:   cfg.FullChatModel(),
		System:      summarizerInstructions,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		MaxTurns:    1,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build summarizer: %w", err)
	}

	return &Factory{
		g:          fc.Genkit,
		cfg:        cfg,
		logger:     logger,
		tools:      tools,
		classifier: classifier,
		image:      image,
		summarizer: summarizer,
	}, nil
}

// Classifier returns the intent classification agent.
func (f *Factory) Classifier() *Agent { return f.classifier }

// ImageAgent returns the image analysis agent.
func (f *Factory) ImageAgent() *Agent { return f.image }

// Summarizer returns the document summarization agent.
func (f *Factory) Summarizer() *Agent { return f.summarizer }

// ChatAgent builds the conversational agent for one turn. The given memory
// context, usually memory.ContextInstructions output, is appended to the
// system prompt.
func (f *Factory) ChatAgent(contextInstructions string) (*Agent, error) {
	return New(Config{
		Genkit:      f.g,
		Name:        "chat",
		ModelName:   f.cfg.FullChatModel(),
		System:      chatSystemWith(contextInstructions),
		Tools:       f.tools,
		Temperature: f.cfg.Temperature,
		MaxTokens:   f.cfg.MaxTokens,
		Logger:      f.logger,
	})
}
