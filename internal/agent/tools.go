package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	readability "github.com/go-shiori/go-readability"

	"github.com/mrady9280/asfoor/internal/index"
	"github.com/mrady9280/asfoor/internal/model"
	"github.com/mrady9280/asfoor/internal/security"
)

const (
	// maxSearchResults caps how many index hits the search tool hands the
	// model. More results dilute the context without improving answers.
	maxSearchResults = 5

	maxWebResults       = 5
	webSearchTimeout    = 10 * time.Second
	maxWebResponseBytes = 1 << 20 // 1 MB of SearXNG JSON is already absurd

	defaultFetchTimeout = 30 * time.Second
	maxFetchBytes       = 4 << 20
	maxFetchChars       = 8000
)

// Searcher is the document lookup the search tool needs.
// *index.Store satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...index.SearchOption) ([]index.Result, error)
}

// ToolsConfig holds the dependencies for BuildTools.
type ToolsConfig struct {
	Genkit         *genkit.Genkit
	Searcher       Searcher
	ImageAgent     *Agent // runs behind the analyzeImages tool
	SearXNGBaseURL string // empty disables web search
	FetchTimeout   time.Duration
	HTTPClient     *http.Client // optional, tests inject one
	Logger         *slog.Logger
}

// SearchDocumentsInput is the input for the searchDocuments tool.
type SearchDocumentsInput struct {
	Query string `json:"query" jsonschema_description:"Natural-language query to run against the document index"`
}

// AnalyzeImagesInput is the input for the analyzeImages tool.
type AnalyzeImagesInput struct {
	Prompt string `json:"prompt" jsonschema_description:"What to look for or answer about the attached images"`
}

// WebSearchInput is the input for the webSearch tool.
type WebSearchInput struct {
	Query string `json:"query" jsonschema_description:"Web search query"`
}

// WebFetchInput is the input for the webFetch tool.
type WebFetchInput struct {
	URL string `json:"url" jsonschema_description:"The URL of the page to fetch and read"`
}

// BuildTools defines the conversational agent's tools on g and returns them.
func BuildTools(cfg ToolsConfig) ([]ai.Tool, error) {
	if cfg.Genkit == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if cfg.Searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if cfg.ImageAgent == nil {
		return nil, fmt.Errorf("image agent is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: webSearchTimeout}
	}

	// Page fetches follow model-chosen URLs, so outside of tests they go
	// through a client that blocks private and metadata addresses.
	fetchClient := cfg.HTTPClient
	var validateFetch func(string) error
	if fetchClient == nil {
		guard := security.NewURLGuard()
		fetchClient = guard.Client(fetchTimeout)
		validateFetch = guard.Validate
	}

	search := genkit.DefineTool(
		cfg.Genkit, "searchDocuments",
		"Search the user's private document collection. Returns the most relevant passages.",
		observed(logger, "searchDocuments", func(ctx *ai.ToolContext, input SearchDocumentsInput) (string, error) {
			return searchDocuments(ctx, cfg.Searcher, input.Query)
		}),
	)

	analyze := genkit.DefineTool(
		cfg.Genkit, "analyzeImages",
		"Analyze the images attached to the current message. Use for any question about attached images.",
		observed(logger, "analyzeImages", func(ctx *ai.ToolContext, input AnalyzeImagesInput) (string, error) {
			return analyzeImages(ctx, cfg.ImageAgent, input.Prompt)
		}),
	)

	webSearch := genkit.DefineTool(
		cfg.Genkit, "webSearch",
		"Search the public web. Use for current events or information unlikely to be in the user's documents.",
		observed(logger, "webSearch", func(ctx *ai.ToolContext, input WebSearchInput) (string, error) {
			return searchWeb(ctx, httpClient, cfg.SearXNGBaseURL, input.Query)
		}),
	)

	webFetch := genkit.DefineTool(
		cfg.Genkit, "webFetch",
		"Fetch a web page and return its readable text content.",
		observed(logger, "webFetch", func(ctx *ai.ToolContext, input WebFetchInput) (string, error) {
			return fetchPage(ctx, fetchClient, validateFetch, input.URL)
		}),
	)

	return []ai.Tool{search, analyze, webSearch, webFetch}, nil
}

// observed wraps a tool function with invocation logging. Tool calls are the
// main thing to reconstruct when debugging a bad answer, so every call and
// failure is logged with its arguments.
func observed[In, Out any](logger *slog.Logger, name string, fn func(*ai.ToolContext, In) (Out, error)) func(*ai.ToolContext, In) (Out, error) {
	return func(ctx *ai.ToolContext, input In) (Out, error) {
		logger.Info("tool call", "tool", name, "args", fmt.Sprintf("%+v", input))
		out, err := fn(ctx, input)
		if err != nil {
			logger.Warn("tool failed", "tool", name, "error", err)
		}
		return out, err
	}
}

func searchDocuments(ctx context.Context, searcher Searcher, query string) (string, error) {
	results, err := searcher.Search(ctx, query, index.WithTopK(maxSearchResults))
	if err != nil {
		return "", fmt.Errorf("document search: %w", err)
	}
	if len(results) == 0 {
		return "No matching documents were found.", nil
	}

	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "<result filename=%q>%s</result>\n", r.Chunk.DocumentID, r.Chunk.Text)
	}
	return sb.String(), nil
}

func analyzeImages(ctx *ai.ToolContext, imageAgent *Agent, prompt string) (string, error) {
	atts := model.AttachmentsFromContext(ctx)
	var images []model.Attachment
	for _, att := range atts {
		if strings.HasPrefix(att.ContentType, "image/") {
			images = append(images, att)
		}
	}
	if len(images) == 0 {
		return "No images are attached to the current message.", nil
	}

	if strings.TrimSpace(prompt) == "" {
		prompt = "Describe the attached images."
	}
	parts := []*ai.Part{ai.NewTextPart(prompt)}
	for _, img := range images {
		parts = append(parts, ai.NewMediaPart(img.ContentType, img.DataURI()))
	}

	reply, err := imageAgent.Run(ctx, []*ai.Message{ai.NewUserMessage(parts...)}, EffortMedium)
	if err != nil {
		return "", fmt.Errorf("image analysis: %w", err)
	}
	return reply.Text, nil
}

// searxngResponse is the subset of SearXNG's JSON output the tool reads.
type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func searchWeb(ctx context.Context, client *http.Client, baseURL, query string) (string, error) {
	if baseURL == "" {
		return "Web search is not available: no search backend is configured. Answer from your own knowledge and say the web could not be consulted.", nil
	}

	endpoint := strings.TrimRight(baseURL, "/") + "/search?q=" + url.QueryEscape(query) + "&format=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("web search request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("web search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("web search: backend returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWebResponseBytes))
	if err != nil {
		return "", fmt.Errorf("web search: read response: %w", err)
	}

	var parsed searxngResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("web search: decode response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return "The web search returned no results.", nil
	}

	var sb strings.Builder
	for i, r := range parsed.Results {
		if i >= maxWebResults {
			break
		}
		fmt.Fprintf(&sb, "Title: %s\nURL: %s\n%s\n\n", r.Title, r.URL, r.Content)
	}
	return strings.TrimSpace(sb.String()), nil
}

func fetchPage(ctx context.Context, client *http.Client, validate func(string) error, pageURL string) (string, error) {
	pageURL = strings.TrimSpace(pageURL)
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("fetch page: unsupported scheme %q", u.Scheme)
	}
	if validate != nil {
		if err := validate(pageURL); err != nil {
			return "", fmt.Errorf("fetch page: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page %s: %w", pageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch page %s: status %d", pageURL, resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxFetchBytes), u)
	if err != nil {
		return "", fmt.Errorf("fetch page %s: %w", pageURL, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "The page has no readable text content.", nil
	}
	if len(text) > maxFetchChars {
		text = text[:maxFetchChars] + "\n[content truncated]"
	}
	if article.Title != "" {
		return "Title: " + article.Title + "\n\n" + text, nil
	}
	return text, nil
}
