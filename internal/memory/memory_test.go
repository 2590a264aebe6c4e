package memory

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name  string
		facts []string
		upd   Update
		want  []string
	}{
		{
			name:  "empty update keeps facts",
			facts: []string{"a", "b"},
			upd:   Update{},
			want:  []string{"a", "b"},
		},
		{
			name:  "additions append in order",
			facts: []string{"a"},
			upd:   Update{Add: []string{"b", "c"}},
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "removals apply before additions",
			facts: []string{"Is looking for a dog"},
			upd: Update{
				Add:    []string{"Has a dog named Rex"},
				Remove: []string{"Is looking for a dog"},
			},
			want: []string{"Has a dog named Rex"},
		},
		{
			// Removal hits the stored copy only; the addition then
			// re-inserts the fact.
			name:  "re-adding a removed fact keeps it",
			facts: []string{"likes tea"},
			upd: Update{
				Add:    []string{"likes tea"},
				Remove: []string{"likes tea"},
			},
			want: []string{"likes tea"},
		},
		{
			name:  "duplicates collapse",
			facts: []string{"a", "a", "b"},
			upd:   Update{Add: []string{"b", "a"}},
			want:  []string{"a", "b"},
		},
		{
			name:  "blank additions dropped",
			facts: []string{"a"},
			upd:   Update{Add: []string{"", "   ", "b"}},
			want:  []string{"a", "b"},
		},
		{
			name:  "removal of unknown fact is a no-op",
			facts: []string{"a"},
			upd:   Update{Remove: []string{"z"}},
			want:  []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := merge(tt.facts, tt.upd)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("merge() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	facts := []string{"a", "b"}
	merge(facts, Update{Add: []string{"c"}, Remove: []string{"a"}})
	if facts[0] != "a" || facts[1] != "b" {
		t.Errorf("merge mutated its input: %v", facts)
	}
}

func TestMerge_TruncatesLongFacts(t *testing.T) {
	long := strings.Repeat("x", MaxFactLength+100)
	got := merge(nil, Update{Add: []string{long}})
	if len(got) != 1 || len(got[0]) != MaxFactLength {
		t.Errorf("long fact not truncated: len=%d", len(got[0]))
	}
}

func TestMerge_TruncatesOnRuneBoundary(t *testing.T) {
	// Three-byte runes put the byte cap mid-rune; the cut must back off
	// instead of persisting invalid UTF-8.
	long := "x" + strings.Repeat("界", MaxFactLength)
	got := merge(nil, Update{Add: []string{long}})
	if len(got) != 1 {
		t.Fatalf("merged %d facts, want 1", len(got))
	}
	if len(got[0]) > MaxFactLength {
		t.Errorf("fact length = %d bytes, want at most %d", len(got[0]), MaxFactLength)
	}
	if !utf8.ValidString(got[0]) {
		t.Errorf("truncated fact is not valid UTF-8: %q", got[0])
	}
}

func TestMerge_CapsFactCount(t *testing.T) {
	facts := make([]string, MaxFactsPerUser)
	for i := range facts {
		facts[i] = fmt.Sprintf("fact %d", i)
	}

	got := merge(facts, Update{Add: []string{"the newest fact"}})
	if len(got) != MaxFactsPerUser {
		t.Fatalf("got %d facts, want cap %d", len(got), MaxFactsPerUser)
	}
	if got[len(got)-1] != "the newest fact" {
		t.Error("newest fact missing after cap")
	}
	if got[0] != "fact 1" {
		t.Errorf("oldest fact should be evicted first, got head %q", got[0])
	}
}

func TestContextInstructions(t *testing.T) {
	if got := ContextInstructions(nil); got != "" {
		t.Errorf("ContextInstructions(nil) = %q, want empty", got)
	}

	got := ContextInstructions([]string{"Has a dog named Rex", "Lives in Cairo"})
	if !strings.Contains(got, "Has a dog named Rex | Lives in Cairo") {
		t.Errorf("facts not pipe-joined in order: %q", got)
	}
}

func TestNormalizeFact(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  plain  ", "plain"},
		{"line\nbreak", "line break"},
		{"cr\rlf\n", "cr lf"},
		{"\n\t \n", ""},
	}
	for _, tt := range tests {
		if got := normalizeFact(tt.in); got != tt.want {
			t.Errorf("normalizeFact(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
