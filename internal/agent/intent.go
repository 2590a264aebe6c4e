package agent

import "strings"

// Intent is the classifier's routing decision. The values are the literal
// agent names the classifier is instructed to answer with, which keeps the
// classifier output directly comparable to workflow node names.
type Intent string

const (
	IntentChat  Intent = "ChatAgent"
	IntentImage Intent = "ImageAgent"
	IntentFile  Intent = "FileAgent"
	IntentAudio Intent = "AudioAgent"
)

// AllIntents returns every possible classification result.
// The workflow builder uses this as the enumerable output domain when
// validating routing predicates.
func AllIntents() []Intent {
	return []Intent{IntentChat, IntentImage, IntentFile, IntentAudio}
}

// ParseIntent maps raw classifier output to an Intent. The model sometimes
// decorates its answer (quotes, punctuation, prose), so matching is a
// case-insensitive substring scan. Unrecognized output falls back to
// IntentChat, the safe default.
func ParseIntent(raw string) Intent {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "imageagent"):
		return IntentImage
	case strings.Contains(lower, "fileagent"):
		return IntentFile
	case strings.Contains(lower, "audioagent"):
		return IntentAudio
	default:
		return IntentChat
	}
}
