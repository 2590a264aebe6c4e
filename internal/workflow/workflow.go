// Package workflow implements the routing graph that turns one chat request
// into one answer. A workflow is a validated DAG of named executors; edges
// carry predicates over the shared state, and execution walks the graph from
// the start node following the first matching edge at each step.
package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"

	"github.com/mrady9280/asfoor/internal/agent"
	"github.com/mrady9280/asfoor/internal/model"
)

// State is the mutable context one execution pass threads through the graph.
// Executors read what earlier nodes wrote and add their own results.
type State struct {
	Request *model.ChatRequest

	// Messages is the conversation history including the current user turn.
	Messages []*ai.Message

	// MemoryContext is the per-user memory preamble for the chat agent,
	// empty when nothing is known about the user.
	MemoryContext string

	Effort agent.ReasoningEffort

	// Intent is set by the classification node.
	Intent agent.Intent

	// Answer is the final response text. A non-empty Answer written by an
	// intermediate node (image analysis) is composed into the final answer
	// by the chat node.
	Answer string

	// Usage accumulates token counts across every model call of the pass.
	Usage model.Usage
}

// Executor is one node of the workflow graph.
type Executor interface {
	// Name identifies the node; edges reference executors by name.
	Name() string
	Execute(ctx context.Context, s *State) error
}

// Predicate guards an edge. Routing predicates should be pure functions of
// the state the source node produced; predicates over State.Intent are
// additionally checked for ambiguity at build time.
type Predicate func(s *State) bool

// Edge connects two executors. A nil Predicate marks the default edge,
// taken when no guarded edge from the same source matches.
type Edge struct {
	Source    string
	Target    string
	Predicate Predicate
}

// Workflow is a validated executor graph. Build one with a Builder.
// A Workflow is immutable and safe for concurrent Execute calls, each with
// its own State.
type Workflow struct {
	start     string
	executors map[string]Executor
	edges     map[string][]Edge // per source, in declaration order
	logger    *slog.Logger
}

// Execute walks the graph from the start node until no outgoing edge
// matches. The state is mutated in place; after a successful pass,
// s.Answer holds the final response.
func (w *Workflow) Execute(ctx context.Context, s *State) error {
	if s == nil {
		return fmt.Errorf("%w: workflow state is required", model.ErrValidation)
	}

	current := w.start
	for {
		exec, ok := w.executors[current]
		if !ok {
			return fmt.Errorf("workflow references unknown executor %q", current)
		}

		w.logger.Debug("workflow step", "node", current, "intent", string(s.Intent))
		if err := exec.Execute(ctx, s); err != nil {
			return fmt.Errorf("executor %s: %w", current, err)
		}

		next, ok := w.nextNode(current, s)
		if !ok {
			w.logger.Debug("workflow finished", "node", current, "usage", s.Usage.String())
			return nil
		}
		current = next
	}
}

// nextNode picks the first matching outgoing edge in declaration order.
// Guarded edges are considered before the default edge regardless of where
// the default was declared.
func (w *Workflow) nextNode(source string, s *State) (string, bool) {
	var fallback string
	var hasFallback bool
	for _, e := range w.edges[source] {
		if e.Predicate == nil {
			fallback, hasFallback = e.Target, true
			continue
		}
		if e.Predicate(s) {
			return e.Target, true
		}
	}
	return fallback, hasFallback
}
