package graph

import (
	"fmt"
	"slices"
)

// Violation describes the first invariant a graph fails.
type Violation struct {
	// Rule names the broken invariant (e.g., "partition", "aligned").
	Rule string `json:"rule"`

	// Message describes the offending tokens or edges.
	Message string `json:"message"`

	// Graph is the graph that was checked.
	Graph Graph `json:"-"`
}

func (v *Violation) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", v.Rule, v.Message)
}

// Invariant rule names.
const (
	RuleUniqueIDs    = "unique-ids"
	RuleEdgeKey      = "edge-key"
	RuleNonEmptyEdge = "nonempty-edge"
	RuleNormalForm   = "normal-form"
	RuleDanglingID   = "dangling-id"
	RulePartition    = "partition"
	RuleTokenShape   = "token-shape"
	RuleAligned      = "aligned"
	RuleInternal     = "internal"
)

// CheckInvariant validates every structural rule of g and that g is a
// fixed point of Align. It returns nil or a *Violation, and never panics.
func CheckInvariant(g Graph) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Violation{Rule: RuleInternal, Message: fmt.Sprint(r), Graph: g}
		}
	}()

	fail := func(rule, format string, args ...any) error {
		return &Violation{Rule: rule, Message: fmt.Sprintf(format, args...), Graph: g}
	}

	tokens := make(map[string]bool)
	for _, t := range AllTokens(g) {
		if tokens[t.ID] {
			return fail(RuleUniqueIDs, "token id %q occurs twice", t.ID)
		}
		tokens[t.ID] = true
	}

	owner := make(map[string]string)
	for _, key := range SortedEdgeIDs(g) {
		e := g.Edges[key]
		if key != EdgeID(e.IDs) || key != e.ID {
			return fail(RuleEdgeKey, "edge stored under %q has id %q and members %v", key, e.ID, e.IDs)
		}
		if len(e.IDs) == 0 {
			return fail(RuleNonEmptyEdge, "edge %q has no members", key)
		}
		if !edgesEqual(MergeEdges(e), e) {
			return fail(RuleNormalForm, "edge %q is not in normal form", key)
		}
		for _, id := range e.IDs {
			if !tokens[id] {
				return fail(RuleDanglingID, "edge %q references unknown token %q", key, id)
			}
			if prev, ok := owner[id]; ok {
				return fail(RulePartition, "token %q is in edges %q and %q", id, prev, key)
			}
			owner[id] = key
		}
	}
	for _, t := range AllTokens(g) {
		if _, ok := owner[t.ID]; !ok {
			return fail(RulePartition, "token %q is in no edge", t.ID)
		}
	}

	for _, side := range []Side{SideSource, SideTarget} {
		ts := g.Tokens(side)
		for i, t := range ts {
			if !wellShaped(t.Text, i == len(ts)-1) {
				return fail(RuleTokenShape, "%s token %q has text %q", side, t.ID, t.Text)
			}
		}
	}

	aligned := Align(g)
	for _, key := range SortedEdgeIDs(g) {
		if e, ok := aligned.Edges[key]; !ok || !edgesEqual(e, g.Edges[key]) {
			return fail(RuleAligned, "edge %q changes under alignment", key)
		}
	}
	if len(aligned.Edges) != len(g.Edges) {
		return fail(RuleAligned, "alignment yields %d edges, graph has %d", len(aligned.Edges), len(g.Edges))
	}
	return nil
}

func edgesEqual(a, b Edge) bool {
	return a.ID == b.ID && a.Manual == b.Manual &&
		slices.Equal(a.IDs, b.IDs) && slices.Equal(a.Labels, b.Labels)
}
