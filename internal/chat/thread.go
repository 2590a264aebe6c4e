// Package chat orchestrates one conversation turn: thread state handling,
// the routing workflow, and the memory update that follows a successful
// answer.
package chat

import (
	"encoding/json"
	"fmt"

	"github.com/firebase/genkit/go/ai"

	"github.com/mrady9280/asfoor/internal/model"
)

// threadEnvelope versions the serialized thread so the format can evolve
// without breaking callers that round-trip old states.
type threadEnvelope struct {
	Version  int           `json:"version"`
	Messages []*ai.Message `json:"messages"`
}

const threadVersion = 1

// SerializeThread encodes a conversation history into the opaque thread
// state string callers round-trip between turns.
func SerializeThread(messages []*ai.Message) (string, error) {
	env := threadEnvelope{Version: threadVersion, Messages: messages}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("serialize thread: %w", err)
	}
	return string(data), nil
}

// DeserializeThread decodes a thread state produced by SerializeThread.
// The empty string is a fresh conversation. Anything unparseable maps to
// model.ErrDeserialization; callers surface that as a client error rather
// than an internal one.
func DeserializeThread(state string) ([]*ai.Message, error) {
	if state == "" {
		return nil, nil
	}
	var env threadEnvelope
	if err := json.Unmarshal([]byte(state), &env); err != nil {
		return nil, fmt.Errorf("%w: thread state: %v", model.ErrDeserialization, err)
	}
	if env.Version != threadVersion {
		return nil, fmt.Errorf("%w: unsupported thread version %d", model.ErrDeserialization, env.Version)
	}
	return env.Messages, nil
}
