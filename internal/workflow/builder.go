package workflow

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mrady9280/asfoor/internal/agent"
)

// Builder assembles and validates a Workflow. Add executors and edges in
// any order, then call Build; all structural errors surface there.
type Builder struct {
	start     string
	executors map[string]Executor
	edges     []Edge
	logger    *slog.Logger
	errs      []error
}

// NewBuilder starts a workflow definition rooted at the named executor.
func NewBuilder(start string) *Builder {
	return &Builder{
		start:     start,
		executors: make(map[string]Executor),
	}
}

// WithLogger sets the workflow logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// AddExecutor registers a node. Names must be unique.
func (b *Builder) AddExecutor(e Executor) *Builder {
	if e == nil {
		b.errs = append(b.errs, fmt.Errorf("nil executor"))
		return b
	}
	name := e.Name()
	if name == "" {
		b.errs = append(b.errs, fmt.Errorf("executor with empty name"))
		return b
	}
	if _, dup := b.executors[name]; dup {
		b.errs = append(b.errs, fmt.Errorf("duplicate executor %q", name))
		return b
	}
	b.executors[name] = e
	return b
}

// AddEdge connects source to target. A nil predicate declares the default
// edge for the source; each source may have at most one.
func (b *Builder) AddEdge(source, target string, pred Predicate) *Builder {
	b.edges = append(b.edges, Edge{Source: source, Target: target, Predicate: pred})
	return b
}

// Build validates the graph and returns the runnable workflow.
//
// Validation rejects edges to unknown executors, more than one default edge
// per source, cycles, and ambiguous routing: two guarded edges from the
// same source whose predicates both accept the same intent.
func (b *Builder) Build() (*Workflow, error) {
	errs := b.errs

	if _, ok := b.executors[b.start]; !ok {
		errs = append(errs, fmt.Errorf("start executor %q not registered", b.start))
	}

	bySource := make(map[string][]Edge)
	for _, e := range b.edges {
		if _, ok := b.executors[e.Source]; !ok {
			errs = append(errs, fmt.Errorf("edge from unknown executor %q", e.Source))
			continue
		}
		if _, ok := b.executors[e.Target]; !ok {
			errs = append(errs, fmt.Errorf("edge %s -> %s targets unknown executor", e.Source, e.Target))
			continue
		}
		bySource[e.Source] = append(bySource[e.Source], e)
	}

	for source, edges := range bySource {
		defaults := 0
		for _, e := range edges {
			if e.Predicate == nil {
				defaults++
			}
		}
		if defaults > 1 {
			errs = append(errs, fmt.Errorf("executor %q has %d default edges, at most one allowed", source, defaults))
		}
		errs = append(errs, ambiguousEdges(source, edges)...)
	}

	if len(errs) == 0 {
		if cycle := findCycle(b.start, bySource); cycle != "" {
			errs = append(errs, fmt.Errorf("workflow contains a cycle through %q", cycle))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid workflow: %w", errors.Join(errs...))
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Workflow{
		start:     b.start,
		executors: b.executors,
		edges:     bySource,
		logger:    logger,
	}, nil
}

// ambiguousEdges probes every pair of guarded edges from one source against
// the enumerable intent domain. Two predicates accepting the same intent
// would make routing depend on declaration order, which is an authoring
// mistake rather than a feature.
func ambiguousEdges(source string, edges []Edge) []error {
	var errs []error
	for i := 0; i < len(edges); i++ {
		for j := i + 1; j < len(edges); j++ {
			if edges[i].Predicate == nil || edges[j].Predicate == nil {
				continue
			}
			for _, intent := range agent.AllIntents() {
				probe := &State{Intent: intent}
				if edges[i].Predicate(probe) && edges[j].Predicate(probe) {
					errs = append(errs, fmt.Errorf(
						"executor %q: edges to %q and %q both match intent %s",
						source, edges[i].Target, edges[j].Target, intent))
					break
				}
			}
		}
	}
	return errs
}

// findCycle runs a coloring DFS over the edge map and returns the name of a
// node on a cycle, or "" when the graph is acyclic.
func findCycle(start string, edges map[string][]Edge) string {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // fully explored
	)
	color := make(map[string]int)

	var visit func(node string) string
	visit = func(node string) string {
		color[node] = gray
		for _, e := range edges[node] {
			switch color[e.Target] {
			case gray:
				return e.Target
			case white:
				if hit := visit(e.Target); hit != "" {
					return hit
				}
			}
		}
		color[node] = black
		return ""
	}

	// Check every source, not just the start: unreachable subgraphs with
	// cycles are still authoring mistakes.
	if hit := visit(start); hit != "" {
		return hit
	}
	for source := range edges {
		if color[source] == white {
			if hit := visit(source); hit != "" {
				return hit
			}
		}
	}
	return ""
}
