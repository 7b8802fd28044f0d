// Package diff orders the tokens of an alignment graph into a single
// stable sequence for rendering.
//
// CalculateRawDiff interleaves source and target tokens so that tokens
// of one edge sit next to each other wherever that is possible, and
// MergeDiff fuses each edge whose tokens ended up adjacent into a single
// Edited unit.
package diff

import (
	"github.com/FocuswithJustin/Rectify/core/graph"
)

// Diff is one unit of the rendering order: Dragged, Dropped or Edited.
type Diff interface {
	// EdgeID is the edge the unit belongs to.
	EdgeID() string

	// Accept calls the visitor method for the concrete type.
	Accept(v Visitor)

	diff()
}

// Dragged places a source token.
type Dragged struct {
	Source graph.Token
	ID     string
}

// Dropped places a target token.
type Dropped struct {
	Target graph.Token
	ID     string
}

// Edited places all tokens of one edge together.
type Edited struct {
	Source []graph.Token
	Target []graph.Token
	ID     string
}

func (d Dragged) EdgeID() string { return d.ID }
func (d Dropped) EdgeID() string { return d.ID }
func (d Edited) EdgeID() string  { return d.ID }

func (d Dragged) Accept(v Visitor) { v.VisitDragged(d) }
func (d Dropped) Accept(v Visitor) { v.VisitDropped(d) }
func (d Edited) Accept(v Visitor)  { v.VisitEdited(d) }

func (Dragged) diff() {}
func (Dropped) diff() {}
func (Edited) diff()  {}

// Visitor handles each kind of Diff.
type Visitor interface {
	VisitDragged(Dragged)
	VisitDropped(Dropped)
	VisitEdited(Edited)
}

// Visit dispatches every diff to v in order.
func Visit(diffs []Diff, v Visitor) {
	for _, d := range diffs {
		d.Accept(v)
	}
}

// Funcs adapts plain functions to a Visitor. Nil fields are skipped.
type Funcs struct {
	Dragged func(Dragged)
	Dropped func(Dropped)
	Edited  func(Edited)
}

func (f Funcs) VisitDragged(d Dragged) {
	if f.Dragged != nil {
		f.Dragged(d)
	}
}

func (f Funcs) VisitDropped(d Dropped) {
	if f.Dropped != nil {
		f.Dropped(d)
	}
}

func (f Funcs) VisitEdited(d Edited) {
	if f.Edited != nil {
		f.Edited(d)
	}
}

// LabelPredicate reports whether a label marks a deliberate word order
// change.
type LabelPredicate func(label string) bool

// Scale factors applied to the reward for a run of one edge.
const (
	manualScale        = 0.01
	orderChangingScale = 0.0001
)

type move int

const (
	moveNone move = iota
	moveRun
	moveDropped
	moveDragged
)

type cell struct {
	score float64
	move  move
	run   int
}

// CalculateRawDiff orders the tokens of g. It fills a table over source
// and target prefixes: each cell extends a shorter prefix by one dropped
// target token, one dragged source token, or a maximal run of token pairs
// sharing an edge, which earns the length of the run. Runs of manual
// edges, and of edges with an order-changing label, earn less, so long
// distance moves are not squeezed together.
//
// Ties prefer a run, then a dropped token, then a dragged token. Time and
// space are proportional to len(g.Source) * len(g.Target).
func CalculateRawDiff(g graph.Graph, isOrderChanging LabelPredicate) []Diff {
	em := graph.EdgeMap(g)
	src, tgt := g.Source, g.Target
	n, m := len(src), len(tgt)

	edgeOf := func(t graph.Token) graph.Edge { return em[t.ID] }
	weight := func(e graph.Edge) float64 {
		w := 1.0
		if e.Manual {
			w *= manualScale
		}
		if isOrderChanging != nil {
			for _, l := range e.Labels {
				if isOrderChanging(l) {
					w *= orderChangingScale
					break
				}
			}
		}
		return w
	}

	opt := make([][]cell, n+1)
	for i := range opt {
		opt[i] = make([]cell, m+1)
	}

	for i := 0; i <= n; i++ {
		for j := 0; j <= m; j++ {
			if i == 0 && j == 0 {
				continue
			}
			best := cell{score: -1}
			if i > 0 && j > 0 {
				e := edgeOf(src[i-1])
				if e.ID == edgeOf(tgt[j-1]).ID {
					k := 1
					for k < i && k < j && edgeOf(src[i-1-k]).ID == e.ID && edgeOf(tgt[j-1-k]).ID == e.ID {
						k++
					}
					score := opt[i-k][j-k].score + float64(k)*weight(e)
					if score > best.score {
						best = cell{score: score, move: moveRun, run: k}
					}
				}
			}
			if j > 0 && opt[i][j-1].score > best.score {
				best = cell{score: opt[i][j-1].score, move: moveDropped}
			}
			if i > 0 && opt[i-1][j].score > best.score {
				best = cell{score: opt[i-1][j].score, move: moveDragged}
			}
			opt[i][j] = best
		}
	}

	var rev []Diff
	for i, j := n, m; i > 0 || j > 0; {
		c := opt[i][j]
		switch c.move {
		case moveRun:
			for k := 0; k < c.run; k++ {
				t, s := tgt[j-1-k], src[i-1-k]
				rev = append(rev, Dropped{Target: t, ID: edgeOf(t).ID}, Dragged{Source: s, ID: edgeOf(s).ID})
			}
			i -= c.run
			j -= c.run
		case moveDropped:
			t := tgt[j-1]
			rev = append(rev, Dropped{Target: t, ID: edgeOf(t).ID})
			j--
		default:
			s := src[i-1]
			rev = append(rev, Dragged{Source: s, ID: edgeOf(s).ID})
			i--
		}
	}

	out := make([]Diff, len(rev))
	for k, d := range rev {
		out[len(rev)-1-k] = d
	}
	return out
}

// MergeDiff fuses the units of each edge into one Edited unit when they
// are adjacent in diffs. Edges split over several places keep their
// Dragged and Dropped units.
func MergeDiff(diffs []Diff) []Diff {
	first := make(map[string]int)
	last := make(map[string]int)
	count := make(map[string]int)
	for i, d := range diffs {
		id := d.EdgeID()
		if _, ok := first[id]; !ok {
			first[id] = i
		}
		last[id] = i
		count[id]++
	}
	fuse := func(id string) bool {
		return last[id]-first[id]+1 == count[id]
	}

	var out []Diff
	at := make(map[string]int)
	for _, d := range diffs {
		id := d.EdgeID()
		if !fuse(id) {
			out = append(out, d)
			continue
		}
		k, ok := at[id]
		if !ok {
			k = len(out)
			at[id] = k
			out = append(out, Edited{ID: id})
		}
		e := out[k].(Edited)
		switch d := d.(type) {
		case Dragged:
			e.Source = append(e.Source, d.Source)
		case Dropped:
			e.Target = append(e.Target, d.Target)
		case Edited:
			e.Source = append(e.Source, d.Source...)
			e.Target = append(e.Target, d.Target...)
		}
		out[k] = e
	}
	return out
}

// CalculateDiff is MergeDiff of CalculateRawDiff.
func CalculateDiff(g graph.Graph, isOrderChanging LabelPredicate) []Diff {
	return MergeDiff(CalculateRawDiff(g, isOrderChanging))
}

// Rebuild recovers the graph a diff was calculated from, given its
// edges.
func Rebuild(diffs []Diff, edges map[string]graph.Edge) graph.Graph {
	var g graph.Graph
	Visit(diffs, Funcs{
		Dragged: func(d Dragged) { g.Source = append(g.Source, d.Source) },
		Dropped: func(d Dropped) { g.Target = append(g.Target, d.Target) },
		Edited: func(d Edited) {
			g.Source = append(g.Source, d.Source...)
			g.Target = append(g.Target, d.Target...)
		},
	})
	g.Edges = edges
	return g
}
