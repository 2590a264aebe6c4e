// Package memory implements the contextual memory manager: a per-user store
// of short factual statements that is injected into every chat turn and
// reconciled after every answer.
//
// Facts live in one plain-text file per user (one fact per line) so they can
// be inspected and edited by hand. Writes are atomic (temp file + rename)
// and guarded by a cross-process file lock.
package memory

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"
)

// MaxFactLength caps a single fact. Longer facts are truncated on merge.
const MaxFactLength = 500

// MaxFactsPerUser caps the fact list. Oldest facts are dropped first when
// the reconciled list exceeds the cap.
const MaxFactsPerUser = 200

// Update is the reconciliation delta produced by the extraction agent.
type Update struct {
	Add    []string `json:"memory_to_add"`
	Remove []string `json:"memory_to_remove"`
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return len(u.Add) == 0 && len(u.Remove) == 0
}

// Extractor produces a memory update from the user's latest message given
// the currently known facts.
type Extractor interface {
	Extract(ctx context.Context, facts []string, lastUserMessage string) (Update, error)
}

// merge applies an update to a fact list: removals first, then additions,
// then order-preserving dedup. Removals apply to the existing facts only,
// so a fact listed in both Remove and Add survives as a re-addition. The
// input slice is not mutated.
func merge(facts []string, upd Update) []string {
	removed := make(map[string]struct{}, len(upd.Remove))
	for _, r := range upd.Remove {
		removed[normalizeFact(r)] = struct{}{}
	}

	merged := make([]string, 0, len(facts)+len(upd.Add))
	seen := make(map[string]struct{}, len(facts)+len(upd.Add))

	appendFact := func(f string) {
		f = truncateFact(normalizeFact(f))
		if f == "" {
			return
		}
		if _, dup := seen[f]; dup {
			return
		}
		seen[f] = struct{}{}
		merged = append(merged, f)
	}

	for _, f := range facts {
		if _, gone := removed[normalizeFact(f)]; gone {
			continue
		}
		appendFact(f)
	}
	for _, f := range upd.Add {
		appendFact(f)
	}

	if len(merged) > MaxFactsPerUser {
		merged = slices.Delete(merged, 0, len(merged)-MaxFactsPerUser)
	}
	return merged
}

// truncateFact caps a fact at MaxFactLength bytes, cutting on a rune
// boundary so a multi-byte character is never split.
func truncateFact(f string) string {
	if len(f) <= MaxFactLength {
		return f
	}
	cut := MaxFactLength
	for cut > 0 && !utf8.RuneStart(f[cut]) {
		cut--
	}
	return f[:cut]
}

// normalizeFact collapses a fact to a single trimmed line.
func normalizeFact(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(s)
}

// ContextInstructions renders the facts as a system-prompt fragment.
// Facts are pipe-joined in stored order; an empty fact list yields "".
func ContextInstructions(facts []string) string {
	if len(facts) == 0 {
		return ""
	}
	return "Known facts about the user, gathered from previous conversations: " +
		strings.Join(facts, " | ")
}
