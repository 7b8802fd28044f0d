package diff

import (
	"github.com/FocuswithJustin/Rectify/core/graph"
)

// Kind names a Diff type in serialized form.
type Kind string

// Kind constants.
const (
	KindDragged Kind = "dragged"
	KindDropped Kind = "dropped"
	KindEdited  Kind = "edited"
)

// Record is the JSON form of a Diff.
type Record struct {
	Kind   Kind          `json:"kind"`
	Edge   string        `json:"edge"`
	Source []graph.Token `json:"source,omitempty"`
	Target []graph.Token `json:"target,omitempty"`
}

// Records converts diffs to their serialized form.
func Records(diffs []Diff) []Record {
	out := make([]Record, 0, len(diffs))
	Visit(diffs, Funcs{
		Dragged: func(d Dragged) {
			out = append(out, Record{Kind: KindDragged, Edge: d.ID, Source: []graph.Token{d.Source}})
		},
		Dropped: func(d Dropped) {
			out = append(out, Record{Kind: KindDropped, Edge: d.ID, Target: []graph.Token{d.Target}})
		},
		Edited: func(d Edited) {
			out = append(out, Record{Kind: KindEdited, Edge: d.ID, Source: d.Source, Target: d.Target})
		},
	})
	return out
}
