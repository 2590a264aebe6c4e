// Package ingest walks document directories, summarizes each file with a
// model, and writes the summaries into the vector index. Chat threads are
// ingested the same way under a fixed personal document id.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mrady9280/asfoor/internal/agent"
	"github.com/mrady9280/asfoor/internal/index"
)

// PersonalDocumentID is the document id under which chat history summaries
// are indexed, so document search can surface past conversations.
const PersonalDocumentID = "PersonalInformation"

// maxSummaryInput bounds how much of a file is fed to the summarizer.
const maxSummaryInput = 24_000

// Summarizer is the slice of agent.Agent the ingester needs.
type Summarizer interface {
	RunText(ctx context.Context, prompt string, effort agent.ReasoningEffort) (*agent.Reply, error)
}

// Indexer is the slice of index.Store the ingester needs.
type Indexer interface {
	Upsert(ctx context.Context, chunk index.Chunk) error
}

// Config holds the dependencies for NewService.
type Config struct {
	Summarizer  Summarizer
	Index       Indexer
	Concurrency int // bounded file fan-out, defaults to 4
	Logger      *slog.Logger
}

// Service ingests documents and threads.
type Service struct {
	summarizer  Summarizer
	index       Indexer
	concurrency int
	logger      *slog.Logger

	// flights collapses concurrent ingestion runs over the same directory
	// and pattern into a single pass.
	flights singleflight.Group
}

// NewService creates the ingestion service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Summarizer == nil {
		return nil, fmt.Errorf("summarizer is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("index is required")
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		summarizer:  cfg.Summarizer,
		index:       cfg.Index,
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

// Report summarizes one ingestion run.
type Report struct {
	Files   int // matching files found
	Indexed int // files summarized and upserted
}

// IngestAll walks dir recursively, ingesting every file whose base name
// matches pattern. The first file failure aborts the remaining batch;
// chunks upserted before the abort stay valid, and rerunning is safe
// because chunk ids are deterministic.
//
// Concurrent calls with the same dir and pattern share one pass.
func (s *Service) IngestAll(ctx context.Context, dir, pattern string) (*Report, error) {
	key := dir + "\x00" + pattern
	v, err, shared := s.flights.Do(key, func() (any, error) {
		return s.ingestAll(ctx, dir, pattern)
	})
	if shared {
		s.logger.Debug("ingestion run shared with an in-flight pass", "dir", dir)
	}
	report, _ := v.(*Report)
	return report, err
}

func (s *Service) ingestAll(ctx context.Context, dir, pattern string) (*Report, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		match, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return fmt.Errorf("bad ingest pattern %q: %w", pattern, err)
		}
		if match {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	report := &Report{Files: len(files)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, path := range files {
		g.Go(func() error {
			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil {
				rel = path
			}
			if err := s.ingestFile(gctx, path, rel); err != nil {
				return fmt.Errorf("ingest %s: %w", rel, err)
			}
			mu.Lock()
			report.Indexed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("ingestion aborted",
			"dir", dir, "files", report.Files, "indexed", report.Indexed, "error", err)
		return report, err
	}

	s.logger.Info("ingestion complete",
		"dir", dir, "files", report.Files, "indexed", report.Indexed)
	return report, nil
}

func (s *Service) ingestFile(ctx context.Context, path, rel string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	text := strings.TrimSpace(string(content))
	if text == "" {
		return fmt.Errorf("file is empty")
	}

	summary, err := s.summarize(ctx, text)
	if err != nil {
		return err
	}

	return s.index.Upsert(ctx, index.Chunk{
		Key:        rel,
		DocumentID: filepath.Base(path),
		Text:       summary,
		RawContext: text,
	})
}

// IngestThread summarizes a conversation and indexes it under the personal
// document id, keyed by conversation so re-ingesting a continued thread
// replaces its previous summary.
func (s *Service) IngestThread(ctx context.Context, conversationID string, messages []*ai.Message) error {
	if strings.TrimSpace(conversationID) == "" {
		return fmt.Errorf("conversation id is required")
	}
	transcript := renderTranscript(messages)
	if transcript == "" {
		return fmt.Errorf("thread has no text content")
	}

	summary, err := s.summarize(ctx, transcript)
	if err != nil {
		return err
	}

	return s.index.Upsert(ctx, index.Chunk{
		Key:        "thread/" + conversationID,
		DocumentID: PersonalDocumentID,
		Text:       summary,
		RawContext: transcript,
	})
}

func (s *Service) summarize(ctx context.Context, text string) (string, error) {
	if len(text) > maxSummaryInput {
		// Cut on a rune boundary so the prompt stays valid UTF-8.
		cut := maxSummaryInput
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	reply, err := s.summarizer.RunText(ctx, text, agent.EffortLow)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	summary := strings.TrimSpace(reply.Text)
	if summary == "" {
		return "", fmt.Errorf("summarizer returned no text")
	}
	return summary, nil
}

// renderTranscript flattens a message history into role-prefixed lines.
func renderTranscript(messages []*ai.Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		text := strings.TrimSpace(msg.Text())
		if text == "" {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", msg.Role, text)
	}
	return strings.TrimSpace(sb.String())
}
