package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mrady9280/asfoor/internal/log"
)

// fakeExtractor returns a fixed update (or error) and records calls.
type fakeExtractor struct {
	upd   Update
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, _ []string, _ string) (Update, error) {
	f.calls++
	return f.upd, f.err
}

func newTestStore(t *testing.T, ext Extractor) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), ext, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	return s
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t, &fakeExtractor{})

	facts, err := s.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(facts) != 0 {
		t.Errorf("got %d facts, want 0", len(facts))
	}
}

func TestPersistLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t, &fakeExtractor{})
	ctx := context.Background()

	want := []string{"Has a dog named Rex", "Lives in Cairo"}
	if err := s.Persist(ctx, "user1", want); err != nil {
		t.Fatalf("Persist() error: %v", err)
	}

	got, err := s.Load(ctx, "user1")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPersist_OverwritesAtomically(t *testing.T) {
	s := newTestStore(t, &fakeExtractor{})
	ctx := context.Background()

	if err := s.Persist(ctx, "user1", []string{"old fact"}); err != nil {
		t.Fatalf("Persist() error: %v", err)
	}
	if err := s.Persist(ctx, "user1", []string{"new fact"}); err != nil {
		t.Fatalf("Persist() error: %v", err)
	}

	got, err := s.Load(ctx, "user1")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 1 || got[0] != "new fact" {
		t.Errorf("got %v, want [new fact]", got)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	for _, e := range entries {
		if len(e.Name()) > 7 && e.Name()[:8] == ".memory-" {
			t.Errorf("leftover temp file: %s", e.Name())
		}
	}
}

func TestUpdate_AppliesDelta(t *testing.T) {
	ext := &fakeExtractor{upd: Update{
		Add:    []string{"Has a dog named Rex"},
		Remove: []string{"Is looking for a dog"},
	}}
	s := newTestStore(t, ext)
	ctx := context.Background()

	if err := s.Persist(ctx, "user1", []string{"Is looking for a dog", "Lives in Cairo"}); err != nil {
		t.Fatalf("Persist() error: %v", err)
	}

	if err := s.Update(ctx, "user1", "I finally adopted Rex!"); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	got, err := s.Load(ctx, "user1")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := []string{"Lives in Cairo", "Has a dog named Rex"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("facts after update (-want +got):\n%s", diff)
	}
	if ext.calls != 1 {
		t.Errorf("extractor calls = %d, want 1", ext.calls)
	}
}

func TestUpdate_NoopSkipsWrite(t *testing.T) {
	s := newTestStore(t, &fakeExtractor{})
	ctx := context.Background()

	if err := s.Update(ctx, "user1", "just chatting"); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	path, err := s.factPath("user1")
	if err != nil {
		t.Fatalf("factPath() error: %v", err)
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("no-op update should not create the fact file")
	}
}

func TestUpdate_ExtractorErrorPropagates(t *testing.T) {
	wantErr := errors.New("model unavailable")
	s := newTestStore(t, &fakeExtractor{err: wantErr})

	if err := s.Update(context.Background(), "user1", "hello"); !errors.Is(err, wantErr) {
		t.Errorf("Update() = %v, want wrapped %v", err, wantErr)
	}
}

func TestSanitizeUserID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"mrady_context_memory", "mrady_context_memory"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{"user@example.com", "user_example.com"},
		{"...", ""},
		{"..hidden", "hidden"},
	}
	for _, tt := range tests {
		if got := sanitizeUserID(tt.in); got != tt.want {
			t.Errorf("sanitizeUserID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFactPath_StaysInsideDir(t *testing.T) {
	s := newTestStore(t, &fakeExtractor{})

	path, err := s.factPath("../escape")
	if err != nil {
		t.Fatalf("factPath() error: %v", err)
	}
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == ".." || filepath.IsAbs(rel) || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
		t.Errorf("fact path escapes memory dir: %s", path)
	}
}
