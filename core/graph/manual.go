package graph

import (
	"slices"
	"strconv"

	"github.com/FocuswithJustin/Rectify/core/errors"
)

// Connect merges the named edges into one manual edge.
func Connect(g Graph, edgeIDs []string) (Graph, error) {
	edges, err := lookupEdges(g, edgeIDs)
	if err != nil {
		return g, err
	}
	if len(edges) == 0 {
		return g, nil
	}
	merged := MergeEdges(append(edges, Edge{Manual: true})...)
	return Align(withEdges(g, edgeIDs, merged)), nil
}

// Disconnect moves each token id, one after the other, out of its edge
// into a manual edge of its own. What remains of the edge stays as a
// manual edge keeping the labels; a token that was alone keeps them.
func Disconnect(g Graph, ids []string) (Graph, error) {
	out := g
	for _, id := range ids {
		e, ok := EdgeMap(out)[id]
		if !ok {
			return g, errors.NewNotFound("token", id)
		}
		rest := slices.DeleteFunc(slices.Clone(e.IDs), func(m string) bool { return m == id })
		if len(rest) == 0 {
			out = withEdges(out, []string{e.ID}, NewEdge([]string{id}, e.Labels, true))
			continue
		}
		out = withEdges(out, []string{e.ID},
			NewEdge([]string{id}, nil, true),
			NewEdge(rest, e.Labels, true))
	}
	return Align(out), nil
}

// Isolate puts exactly the given tokens into one manual edge, taking
// each of them out of whatever edge it was in.
func Isolate(g Graph, ids []string) (Graph, error) {
	out, err := Disconnect(g, ids)
	if err != nil {
		return g, err
	}
	singles := make([]string, 0, len(ids))
	for _, id := range ids {
		key := EdgeID([]string{id})
		if !slices.Contains(singles, key) {
			singles = append(singles, key)
		}
	}
	return Connect(out, singles)
}

// Revert undoes the correction of the named edges. Their target tokens
// are removed and their source tokens are copied into the target, each
// copy in a fresh automatic edge with its original. A copy is placed
// after the target tokens aligned with the nearest preceding source
// token, or at the start of the target.
func Revert(g Graph, edgeIDs []string) (Graph, error) {
	edges, err := lookupEdges(g, edgeIDs)
	if err != nil {
		return g, err
	}

	reverted := make(map[string]bool)
	for _, e := range edges {
		for _, id := range e.IDs {
			reverted[id] = true
		}
	}

	target := slices.DeleteFunc(slices.Clone(g.Target), func(t Token) bool { return reverted[t.ID] })
	em := EdgeMap(g)
	next := NextID(g)
	copies := make(map[string]string)
	var added []Edge

	indexOf := func(id string) int {
		return slices.IndexFunc(target, func(t Token) bool { return t.ID == id })
	}
	// insertAt finds the position following the target image of the
	// source tokens before k.
	insertAt := func(k int) int {
		for p := k - 1; p >= 0; p-- {
			s := g.Source[p]
			if c, ok := copies[s.ID]; ok {
				return indexOf(c) + 1
			}
			at := -1
			for _, id := range em[s.ID].IDs {
				at = max(at, indexOf(id))
			}
			if at >= 0 {
				return at + 1
			}
		}
		return 0
	}

	for k, s := range g.Source {
		if !reverted[s.ID] {
			continue
		}
		c := Token{ID: "t" + strconv.Itoa(next), Text: s.Text}
		next++
		at := insertAt(k)
		target = slices.Insert(target, at, c)
		copies[s.ID] = c.ID
		added = append(added, NewEdge([]string{s.ID, c.ID}, nil, false))
	}

	out := withEdges(Graph{Source: g.Source, Target: target, Edges: g.Edges}, edgeIDs, added...)
	return Align(padTarget(out)), nil
}
