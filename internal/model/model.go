// Package model defines the shared request/response types and the error
// taxonomy used across the orchestration engine.
package model

import (
	"context"
	"encoding/base64"
	"fmt"
)

// Attachment is a file the user included with a chat turn.
// Data is immutable once received; nothing in the engine mutates it.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// DataURI encodes the attachment as a base64 data URI, the form media
// message parts expect.
func (a Attachment) DataURI() string {
	return "data:" + a.ContentType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// ChatRequest is one inbound chat turn. It is created per call, consumed
// within a single orchestration pass, then discarded.
type ChatRequest struct {
	Message         string       `json:"message"`
	ConversationID  string       `json:"conversationId"`
	ThreadState     string       `json:"threadState"`
	Attachments     []Attachment `json:"attachments"`
	ReasoningEffort string       `json:"reasoningEffort,omitempty"`

	// UserID keys the contextual memory. Empty means the configured
	// default user.
	UserID string `json:"userId,omitempty"`
}

// ChatResponse is the result of one chat turn. ThreadState is an opaque
// string the caller must round-trip byte-for-byte between turns of the
// same conversation.
type ChatResponse struct {
	Answer      string `json:"answer"`
	ThreadState string `json:"threadState"`
	Usage       Usage  `json:"usage"`
}

// Usage holds token accounting for a turn, accumulated across every model
// call the workflow made while producing the answer.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// Add accumulates another call's usage into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// String formats usage the way the audit log expects it.
func (u Usage) String() string {
	return fmt.Sprintf("Input Tokens: %d, Output Tokens: %d, Total Tokens: %d",
		u.InputTokens, u.OutputTokens, u.TotalTokens)
}

// attachmentsKey is the context key carrying the current turn's attachments
// down to tools (the analyze-images tool pulls bytes from here so that raw
// payloads never ride in the primary reasoning context).
type attachmentsKey struct{}

// WithAttachments returns a context carrying the turn's attachments.
func WithAttachments(ctx context.Context, atts []Attachment) context.Context {
	return context.WithValue(ctx, attachmentsKey{}, atts)
}

// AttachmentsFromContext returns the attachments stored by WithAttachments,
// or nil if none are present.
func AttachmentsFromContext(ctx context.Context) []Attachment {
	atts, _ := ctx.Value(attachmentsKey{}).([]Attachment)
	return atts
}
