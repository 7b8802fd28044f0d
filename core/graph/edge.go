package graph

import (
	"slices"
	"strings"
)

// Edge groups token ids from either side into one correspondence.
type Edge struct {
	// ID is derived from IDs, see EdgeID.
	ID string `json:"id"`

	// IDs is sorted and free of duplicates.
	IDs []string `json:"ids"`

	// Labels are deduplicated, in order of first occurrence.
	Labels []string `json:"labels,omitempty"`

	// Manual edges are pinned by the annotator and left alone by Align.
	Manual bool `json:"manual,omitempty"`
}

// ZeroEdge is the neutral element of MergeEdges.
var ZeroEdge = MergeEdges()

// EdgeID returns the canonical edge id for a sorted id list.
func EdgeID(ids []string) string {
	return "e-" + strings.Join(ids, "-")
}

// NewEdge builds a canonical edge: ids are sorted and deduplicated,
// labels deduplicated.
func NewEdge(ids []string, labels []string, manual bool) Edge {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	if len(sorted) == 0 {
		sorted = nil
	}
	return Edge{
		ID:     EdgeID(sorted),
		IDs:    sorted,
		Labels: uniq(labels),
		Manual: manual,
	}
}

// MergeEdges unions ids and labels of edges. The result is manual if any
// input is. Called without arguments it returns the empty edge.
func MergeEdges(edges ...Edge) Edge {
	var ids, labels []string
	manual := false
	for _, e := range edges {
		ids = append(ids, e.IDs...)
		labels = append(labels, e.Labels...)
		manual = manual || e.Manual
	}
	return NewEdge(ids, labels, manual)
}

// Has reports whether id is a member of the edge.
func (e Edge) Has(id string) bool {
	_, found := slices.BinarySearch(e.IDs, id)
	return found
}

// WithManual returns a copy of e with the manual flag set to manual.
func (e Edge) WithManual(manual bool) Edge {
	e.Manual = manual
	return e
}

func uniq(xs []string) []string {
	var out []string
	seen := make(map[string]bool, len(xs))
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}

// edgeRecord keys edges by their id.
func edgeRecord(edges ...Edge) map[string]Edge {
	m := make(map[string]Edge, len(edges))
	for _, e := range edges {
		m[e.ID] = e
	}
	return m
}
