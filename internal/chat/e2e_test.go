package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/mrady9280/asfoor/internal/agent"
	"github.com/mrady9280/asfoor/internal/config"
	"github.com/mrady9280/asfoor/internal/index"
	"github.com/mrady9280/asfoor/internal/memory"
	"github.com/mrady9280/asfoor/internal/model"
	"github.com/mrady9280/asfoor/internal/testutil"
	"github.com/mrady9280/asfoor/internal/workflow"
)

// emptySearcher returns no documents; the scenario under test relies on
// memory, not retrieval.
type emptySearcher struct{}

func (emptySearcher) Search(context.Context, string, ...index.SearchOption) ([]index.Result, error) {
	return nil, nil
}

// noopExtractor leaves the fact set unchanged.
type noopExtractor struct{}

func (noopExtractor) Extract(context.Context, []string, string) (memory.Update, error) {
	return memory.Update{}, nil
}

// TestProcessChatTurn_EndToEnd runs a full turn through the real factory,
// workflow, and memory store over the mock model: a stored fact about the
// user surfaces in the answer, and the returned thread state resumes.
func TestProcessChatTurn_EndToEnd(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)

	mock := testutil.NewMockLLM("I cannot help with that.")
	// The classifier prompt always opens with "User message:"; the chat
	// agent sees the bare user turn.
	mock.AddResponse("user message:", "ChatAgent")
	mock.AddResponse("dog's name", "Your dog's name is Rex.")
	mock.RegisterModel(g)

	cfg := &config.Config{
		ChatModel:   "mock/test-model",
		ImageModel:  "mock/test-model",
		Temperature: 0.7,
		MaxTokens:   512,
	}
	factory, err := agent.NewFactory(agent.FactoryConfig{
		Genkit:   g,
		Config:   cfg,
		Searcher: emptySearcher{},
		Logger:   testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("NewFactory() error: %v", err)
	}

	wf, err := workflow.NewChatWorkflow(
		factory.Classifier(),
		factory.ImageAgent(),
		workflow.ChatBuilderFunc(func(contextInstructions string) (workflow.Runner, error) {
			return factory.ChatAgent(contextInstructions)
		}),
		testutil.DiscardLogger(),
	)
	if err != nil {
		t.Fatalf("NewChatWorkflow() error: %v", err)
	}

	store, err := memory.NewStore(t.TempDir(), noopExtractor{}, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	if err := store.Persist(ctx, "alice", []string{"User has a dog named Rex"}); err != nil {
		t.Fatalf("Persist() error: %v", err)
	}

	svc, err := NewService(Config{
		Workflow:      wf,
		Memory:        store,
		DefaultUserID: "alice",
		Logger:        testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}

	resp, err := svc.ProcessChatTurn(ctx, &model.ChatRequest{
		Message:        "What's my dog's name?",
		ConversationID: "conv-1",
	})
	if err != nil {
		t.Fatalf("ProcessChatTurn() error: %v", err)
	}

	if !strings.Contains(resp.Answer, "Rex") {
		t.Errorf("answer = %q, want the remembered dog's name", resp.Answer)
	}
	if resp.ThreadState == "" {
		t.Error("thread state is empty after a completed turn")
	}

	history, err := DeserializeThread(resp.ThreadState)
	if err != nil {
		t.Fatalf("DeserializeThread() error: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("thread has %d messages, want user turn plus answer", len(history))
	}

	// Two model calls: one classification, one chat completion.
	if calls := mock.Calls(); len(calls) != 2 {
		t.Errorf("model calls = %d, want 2", len(calls))
	}
}
