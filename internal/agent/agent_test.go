package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/mrady9280/asfoor/internal/model"
	"github.com/mrady9280/asfoor/internal/testutil"
)

func newTestAgent(t *testing.T, mock *testutil.MockLLM, opts ...func(*Config)) *Agent {
	t.Helper()
	g := genkit.Init(context.Background())
	mock.RegisterModel(g)

	cfg := Config{
		Genkit:    g,
		Name:      "test",
		ModelName: "mock/test-model",
		Logger:    testutil.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return a
}

func TestNew_Validation(t *testing.T) {
	g := genkit.Init(context.Background())

	tests := []struct {
		name string
		cfg  Config
	}{
		{"nil genkit", Config{Name: "a", ModelName: "m"}},
		{"empty name", Config{Genkit: g, ModelName: "m"}},
		{"empty model", Config{Genkit: g, Name: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() succeeded, want error")
			}
		})
	}
}

func TestRun_ReturnsReplyText(t *testing.T) {
	a := newTestAgent(t, testutil.NewMockLLM("hello from the model"))

	reply, err := a.Run(context.Background(),
		[]*ai.Message{ai.NewUserMessage(ai.NewTextPart("hi"))}, EffortMedium)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if reply.Text != "hello from the model" {
		t.Errorf("Run() text = %q", reply.Text)
	}
}

func TestRun_RequiresMessages(t *testing.T) {
	a := newTestAgent(t, testutil.NewMockLLM("unused"))

	if _, err := a.Run(context.Background(), nil, EffortMedium); err == nil {
		t.Error("Run() with no messages succeeded, want error")
	}
}

func TestRunText(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddResponse("capital of egypt", "Cairo")
	a := newTestAgent(t, mock)

	reply, err := a.RunText(context.Background(), "What is the capital of Egypt?", EffortLow)
	if err != nil {
		t.Fatalf("RunText() error: %v", err)
	}
	if reply.Text != "Cairo" {
		t.Errorf("RunText() = %q, want %q", reply.Text, "Cairo")
	}
}

func TestRun_DoesNotMutateHistory(t *testing.T) {
	a := newTestAgent(t, testutil.NewMockLLM("ok"))

	history := []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("first")),
		ai.NewModelMessage(ai.NewTextPart("second")),
		ai.NewUserMessage(ai.NewTextPart("third")),
	}
	if _, err := a.Run(context.Background(), history, EffortMedium); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []string{"first", "second", "third"}
	for i, msg := range history {
		if len(msg.Content) != 1 || msg.Content[0].Text != want[i] {
			t.Errorf("history[%d] mutated: %+v", i, msg.Content)
		}
	}
}

func TestRun_WrapsUpstreamError(t *testing.T) {
	g := genkit.Init(context.Background())
	testutil.NewMockLLM("unused").RegisterModel(g)

	a, err := New(Config{
		Genkit:    g,
		Name:      "broken",
		ModelName: "mock/no-such-model",
		Logger:    testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	_, err = a.RunText(context.Background(), "hi", EffortMedium)
	if err == nil {
		t.Fatal("RunText() succeeded with unknown model")
	}
	if !errors.Is(err, model.ErrUpstream) {
		t.Errorf("error %v does not wrap ErrUpstream", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error %v does not name the agent", err)
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("googleapi: Error 429: rate limit exceeded"), true},
		{"server error", errors.New("got HTTP 503 Service Unavailable"), true},
		{"timeout", errors.New("context deadline exceeded: request timeout"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"invalid argument", errors.New("invalid argument: unknown field"), false},
		{"auth failure", errors.New("401 unauthorized"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDeepCopyMessages_Independent(t *testing.T) {
	original := []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("untouched")),
	}
	copied := deepCopyMessages(original)

	copied[0].Content[0].Text = "changed"
	copied[0].Content = append(copied[0].Content, ai.NewTextPart("extra"))

	if original[0].Content[0].Text != "untouched" {
		t.Errorf("original part text = %q, want %q", original[0].Content[0].Text, "untouched")
	}
	if len(original[0].Content) != 1 {
		t.Errorf("original part count = %d, want 1", len(original[0].Content))
	}
}

func TestDeepCopyMessages_Nil(t *testing.T) {
	if got := deepCopyMessages(nil); got != nil {
		t.Errorf("deepCopyMessages(nil) = %v, want nil", got)
	}
}
