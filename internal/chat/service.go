package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/mrady9280/asfoor/internal/agent"
	"github.com/mrady9280/asfoor/internal/memory"
	"github.com/mrady9280/asfoor/internal/model"
	"github.com/mrady9280/asfoor/internal/workflow"
)

// Orchestrator runs the routing workflow for one turn.
// *workflow.Workflow satisfies it.
type Orchestrator interface {
	Execute(ctx context.Context, s *workflow.State) error
}

// MemoryStore is the slice of memory.Store the service needs.
type MemoryStore interface {
	Load(ctx context.Context, userID string) ([]string, error)
	Update(ctx context.Context, userID, lastUserMessage string) error
}

// Config holds the dependencies for NewService.
type Config struct {
	Workflow      Orchestrator
	Memory        MemoryStore
	DefaultUserID string
	Logger        *slog.Logger
}

// Service processes chat turns end to end.
type Service struct {
	workflow      Orchestrator
	memory        MemoryStore
	defaultUserID string
	logger        *slog.Logger
}

// NewService creates the chat service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Workflow == nil {
		return nil, fmt.Errorf("workflow is required")
	}
	if cfg.Memory == nil {
		return nil, fmt.Errorf("memory store is required")
	}
	if cfg.DefaultUserID == "" {
		return nil, fmt.Errorf("default user id is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		workflow:      cfg.Workflow,
		memory:        cfg.Memory,
		defaultUserID: cfg.DefaultUserID,
		logger:        logger,
	}, nil
}

// ProcessChatTurn runs one request through the workflow and returns the
// answer with the updated thread state.
//
// Memory is best effort on both sides of the turn: a failed fact load runs
// the turn without context, and a failed post-answer update is logged and
// swallowed. Only the workflow itself can fail the turn.
func (s *Service) ProcessChatTurn(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is required", model.ErrValidation)
	}
	// An attachment without any message is still invalid; tools need the
	// user's question to act on.
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message must not be empty", model.ErrValidation)
	}

	history, err := DeserializeThread(req.ThreadState)
	if err != nil {
		return nil, err
	}

	userID := req.UserID
	if userID == "" {
		userID = s.defaultUserID
	}

	facts, err := s.memory.Load(ctx, userID)
	if err != nil {
		s.logger.Warn("loading memory failed, continuing without context",
			"user", userID, "error", err)
		facts = nil
	}

	userTurn := ai.NewUserMessage(ai.NewTextPart(userTurnText(req)))
	messages := append(append([]*ai.Message{}, history...), userTurn)

	// Attachment bytes ride the context, not the reasoning messages; the
	// image tool pulls them from there.
	ctx = model.WithAttachments(ctx, req.Attachments)

	state := &workflow.State{
		Request:       req,
		Messages:      messages,
		MemoryContext: memory.ContextInstructions(facts),
		Effort:        agent.ParseReasoningEffort(req.ReasoningEffort),
	}
	if err := s.workflow.Execute(ctx, state); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrOrchestration, err)
	}

	messages = append(messages, ai.NewModelMessage(ai.NewTextPart(state.Answer)))
	threadState, err := SerializeThread(messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrOrchestration, err)
	}

	if err := s.memory.Update(ctx, userID, req.Message); err != nil {
		s.logger.Warn("memory update failed", "user", userID, "error", err)
	}

	s.logger.Info("chat turn complete",
		"conversation", req.ConversationID,
		"intent", string(state.Intent),
		"usage", state.Usage.String(),
	)

	return &model.ChatResponse{
		Answer:      state.Answer,
		ThreadState: threadState,
		Usage:       state.Usage,
	}, nil
}

// userTurnText renders the user message, appending a notification about
// attached files. The notification replaces the raw bytes in the reasoning
// context and points the model at the right tool.
func userTurnText(req *model.ChatRequest) string {
	if len(req.Attachments) == 0 {
		return req.Message
	}
	names := make([]string, len(req.Attachments))
	for i, att := range req.Attachments {
		names[i] = fmt.Sprintf("%s (%s)", att.Name, att.ContentType)
	}
	return req.Message + fmt.Sprintf(
		"\n\n[System notification: %d file(s) are attached to this message: %s. Use the analyzeImages tool to inspect attached images; do not ask the user to re-upload.]",
		len(req.Attachments), strings.Join(names, ", "))
}
