package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/mrady9280/asfoor/internal/agent"
)

// Runner is the slice of agent.Agent the executors need.
type Runner interface {
	Run(ctx context.Context, messages []*ai.Message, effort agent.ReasoningEffort) (*agent.Reply, error)
}

// ChatBuilder produces the per-turn conversational agent. The memory
// context varies by user and turn, so the chat agent cannot be fixed at
// workflow construction time.
type ChatBuilder interface {
	ChatAgent(contextInstructions string) (Runner, error)
}

// ChatBuilderFunc adapts a function to ChatBuilder.
type ChatBuilderFunc func(contextInstructions string) (Runner, error)

func (f ChatBuilderFunc) ChatAgent(contextInstructions string) (Runner, error) {
	return f(contextInstructions)
}

// IntentExecutor classifies the latest user turn and records the routing
// decision in the state.
type IntentExecutor struct {
	classifier Runner
	logger     *slog.Logger
}

// NewIntentExecutor builds the classification node.
func NewIntentExecutor(classifier Runner, logger *slog.Logger) *IntentExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntentExecutor{classifier: classifier, logger: logger}
}

func (e *IntentExecutor) Name() string { return "classify" }

// Execute runs the classifier. Classification failures are logged and fall
// back to the chat intent: a broken classifier must never take the whole
// turn down.
func (e *IntentExecutor) Execute(ctx context.Context, s *State) error {
	prompt := classificationPrompt(s)
	reply, err := e.classifier.Run(ctx,
		[]*ai.Message{ai.NewUserMessage(ai.NewTextPart(prompt))}, agent.EffortMinimal)
	if err != nil {
		e.logger.Warn("intent classification failed, defaulting to chat", "error", err)
		s.Intent = agent.IntentChat
		return nil
	}

	s.Usage.Add(reply.Usage)
	s.Intent = agent.ParseIntent(reply.Text)
	e.logger.Debug("intent classified", "intent", string(s.Intent), "raw", reply.Text)
	return nil
}

// classificationPrompt gives the classifier the message plus the attachment
// inventory; most routing decisions hinge on what was attached.
func classificationPrompt(s *State) string {
	var sb strings.Builder
	sb.WriteString("User message:\n")
	sb.WriteString(s.Request.Message)
	if len(s.Request.Attachments) > 0 {
		sb.WriteString("\n\nAttached files:\n")
		for _, att := range s.Request.Attachments {
			fmt.Fprintf(&sb, "- %s (%s)\n", att.Name, att.ContentType)
		}
	}
	return sb.String()
}

// ImageExecutor answers image questions directly from the attached image
// bytes. Its answer is composed into the final reply by the chat node.
type ImageExecutor struct {
	image  Runner
	logger *slog.Logger
}

// NewImageExecutor builds the image analysis node.
func NewImageExecutor(image Runner, logger *slog.Logger) *ImageExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageExecutor{image: image, logger: logger}
}

func (e *ImageExecutor) Name() string { return string(agent.IntentImage) }

func (e *ImageExecutor) Execute(ctx context.Context, s *State) error {
	parts := []*ai.Part{ai.NewTextPart(s.Request.Message)}
	images := 0
	for _, att := range s.Request.Attachments {
		if !strings.HasPrefix(att.ContentType, "image/") {
			continue
		}
		parts = append(parts, ai.NewMediaPart(att.ContentType, att.DataURI()))
		images++
	}
	if images == 0 {
		// Classified as an image request but nothing usable was attached.
		// Record that as the finding so the chat node explains it.
		e.logger.Debug("image intent without image attachments")
		s.Answer = "No usable image attachments were found on this message."
		return nil
	}

	reply, err := e.image.Run(ctx, []*ai.Message{ai.NewUserMessage(parts...)}, s.Effort)
	if err != nil {
		return fmt.Errorf("image analysis: %w", err)
	}

	s.Usage.Add(reply.Usage)
	s.Answer = reply.Text
	return nil
}

// ChatExecutor produces the final answer. When an earlier node already
// wrote an intermediate answer, the chat agent composes it into the reply
// instead of answering from scratch.
type ChatExecutor struct {
	builder ChatBuilder
	logger  *slog.Logger
}

// NewChatExecutor builds the conversational node.
func NewChatExecutor(builder ChatBuilder, logger *slog.Logger) *ChatExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatExecutor{builder: builder, logger: logger}
}

func (e *ChatExecutor) Name() string { return string(agent.IntentChat) }

func (e *ChatExecutor) Execute(ctx context.Context, s *State) error {
	chat, err := e.builder.ChatAgent(s.MemoryContext)
	if err != nil {
		return fmt.Errorf("build chat agent: %w", err)
	}

	messages := s.Messages
	if s.Answer != "" {
		note := "Analysis of the attached images produced these findings:\n\n" +
			s.Answer +
			"\n\nCompose the reply to the user's last message from these findings. Do not mention this note."
		messages = append(append([]*ai.Message{}, messages...),
			ai.NewUserMessage(ai.NewTextPart(note)))
	}

	reply, err := chat.Run(ctx, messages, s.Effort)
	if err != nil {
		return err
	}

	s.Usage.Add(reply.Usage)
	s.Answer = reply.Text
	return nil
}

// NewChatWorkflow wires the standard routing graph:
//
//	classify --(intent == ImageAgent)--> ImageAgent --(answer != "")--> ChatAgent
//	classify -------------(default)--------------------> ChatAgent
//
// An empty image answer ends the workflow without composition. File and
// audio intents route to chat, which explains what it can and cannot do
// with those attachments.
func NewChatWorkflow(classifier, image Runner, chat ChatBuilder, logger *slog.Logger) (*Workflow, error) {
	intentExec := NewIntentExecutor(classifier, logger)
	imageExec := NewImageExecutor(image, logger)
	chatExec := NewChatExecutor(chat, logger)

	return NewBuilder(intentExec.Name()).
		WithLogger(logger).
		AddExecutor(intentExec).
		AddExecutor(imageExec).
		AddExecutor(chatExec).
		AddEdge(intentExec.Name(), imageExec.Name(), func(s *State) bool {
			return s.Intent == agent.IntentImage
		}).
		AddEdge(intentExec.Name(), chatExec.Name(), nil).
		AddEdge(imageExec.Name(), chatExec.Name(), func(s *State) bool {
			return s.Answer != ""
		}).
		Build()
}
