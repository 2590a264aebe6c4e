package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"github.com/google/go-cmp/cmp"

	"github.com/mrady9280/asfoor/internal/testutil"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fences", `{"memory_to_add": []}`, `{"memory_to_add": []}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  ```json\n{}\n```  ", "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFences(tt.input); got != tt.want {
				t.Errorf("stripCodeFences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeDelimiters(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"normal text", "normal text"},
		{"a == b", "a == b"},
		{"===MESSAGE_x===", "--MESSAGE_x--"},
		{"==========", "--"},
	}
	for _, tt := range tests {
		if got := sanitizeDelimiters(tt.input); got != tt.want {
			t.Errorf("sanitizeDelimiters(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("a long string", 6); got != "a long..." {
		t.Errorf("truncate() = %q", got)
	}
}

func TestGenerateNonce_Unique(t *testing.T) {
	a, err := generateNonce()
	if err != nil {
		t.Fatalf("generateNonce() error: %v", err)
	}
	b, err := generateNonce()
	if err != nil {
		t.Fatalf("generateNonce() error: %v", err)
	}
	if a == b {
		t.Error("two nonces were identical")
	}
	if len(a) != 32 {
		t.Errorf("nonce length = %d, want 32 hex chars", len(a))
	}
}

func TestLLMExtractor_Extract(t *testing.T) {
	g := genkit.Init(context.Background())
	mock := testutil.NewMockLLM(`{"memory_to_add": [], "memory_to_remove": []}`)
	mock.AddResponse("adopted rex",
		`{"memory_to_add": ["Has a dog named Rex"], "memory_to_remove": ["Is looking for a dog"]}`)
	mock.AddResponse("fenced",
		"```json\n{\"memory_to_add\": [\"Likes fences\"], \"memory_to_remove\": []}\n```")
	mock.RegisterModel(g)

	ext, err := NewLLMExtractor(g, "mock/test-model")
	if err != nil {
		t.Fatalf("NewLLMExtractor() error: %v", err)
	}
	ctx := context.Background()

	t.Run("delta parsed", func(t *testing.T) {
		upd, err := ext.Extract(ctx, []string{"Is looking for a dog"}, "I adopted Rex today!")
		if err != nil {
			t.Fatalf("Extract() error: %v", err)
		}
		want := Update{
			Add:    []string{"Has a dog named Rex"},
			Remove: []string{"Is looking for a dog"},
		}
		if diff := cmp.Diff(want, upd); diff != "" {
			t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("code fences stripped", func(t *testing.T) {
		upd, err := ext.Extract(ctx, nil, "something fenced")
		if err != nil {
			t.Fatalf("Extract() error: %v", err)
		}
		if len(upd.Add) != 1 || upd.Add[0] != "Likes fences" {
			t.Errorf("Extract() = %+v", upd)
		}
	})

	t.Run("no change yields empty update", func(t *testing.T) {
		upd, err := ext.Extract(ctx, []string{"fact"}, "nothing notable here")
		if err != nil {
			t.Fatalf("Extract() error: %v", err)
		}
		if !upd.Empty() {
			t.Errorf("Extract() = %+v, want empty", upd)
		}
	})

	t.Run("empty message skips model call", func(t *testing.T) {
		before := len(mock.Calls())
		upd, err := ext.Extract(ctx, nil, "   ")
		if err != nil {
			t.Fatalf("Extract() error: %v", err)
		}
		if !upd.Empty() {
			t.Errorf("Extract() = %+v, want empty", upd)
		}
		if len(mock.Calls()) != before {
			t.Error("empty message should not call the model")
		}
	})
}

func TestLLMExtractor_PromptContainsFactsAndMessage(t *testing.T) {
	g := genkit.Init(context.Background())
	mock := testutil.NewMockLLM(`{"memory_to_add": [], "memory_to_remove": []}`)
	mock.RegisterModel(g)

	ext, err := NewLLMExtractor(g, "mock/test-model")
	if err != nil {
		t.Fatalf("NewLLMExtractor() error: %v", err)
	}

	if _, err := ext.Extract(context.Background(), []string{"Lives in Cairo"}, "my message"); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(calls))
	}
	prompt := calls[0].UserMessage
	if !strings.Contains(prompt, "Lives in Cairo") {
		t.Error("prompt missing known facts")
	}
	if !strings.Contains(prompt, "my message") {
		t.Error("prompt missing user message")
	}
}
