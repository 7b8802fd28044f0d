// Package segment finds sentence-sized units of an alignment graph that
// can be shown or edited on their own.
//
// A unit spans a range of source tokens and a range of target tokens such
// that no edge leaves the unit.
package segment

import (
	"github.com/FocuswithJustin/Rectify/core/graph"
	"github.com/FocuswithJustin/Rectify/core/unionfind"
)

// Subspan is a pair of token ranges, one per side.
type Subspan struct {
	Source graph.Span `json:"source"`
	Target graph.Span `json:"target"`
}

// Positions selects tokens by index on each side.
type Positions struct {
	Source []int `json:"source,omitempty"`
	Target []int `json:"target,omitempty"`
}

type position struct {
	side  graph.Side
	index int
}

// TargetSentence returns the naive sentence span around target token i.
func TargetSentence(g graph.Graph, i int) graph.Span {
	return graph.Sentence(graph.TargetTexts(g), i)
}

// SourceSentence returns the naive sentence span around source token i.
func SourceSentence(g graph.Graph, i int) graph.Span {
	return graph.Sentence(graph.SourceTexts(g), i)
}

// SentencesAround returns the smallest unit containing the given
// positions, every sentence they touch and every token sharing an edge
// with a token inside. Tokens right after the unit whose edge has no
// tokens on the other side are taken in as well, as are such tokens
// right before it.
func SentencesAround(g graph.Graph, pos Positions) Subspan {
	return around(g, pos, cursor{})
}

// cursor holds the first index per side a unit may use.
type cursor struct {
	source, target int
}

func (c cursor) at(side graph.Side) int {
	if side == graph.SideSource {
		return c.source
	}
	return c.target
}

// around is SentencesAround never extending below floor, and placing an
// empty side at its floor.
func around(g graph.Graph, pos Positions, floor cursor) Subspan {
	uf := unionfind.New[position]()
	em := graph.EdgeMap(g)
	tm := graph.TokenMap(g)

	for _, side := range []graph.Side{graph.SideSource, graph.SideTarget} {
		texts := graph.Texts(g.Tokens(side))
		for i := range texts {
			uf.Add(position{side, i})
			if i > 0 && !graph.Punc(texts[i-1]) {
				uf.Union(position{side, i - 1}, position{side, i})
			}
		}
	}
	for _, e := range g.Edges {
		var first *position
		for _, id := range e.IDs {
			info, ok := tm[id]
			if !ok {
				continue
			}
			p := position{info.Side, info.Index}
			if first == nil {
				first = &p
			} else {
				uf.Union(*first, p)
			}
		}
	}

	var seeds []position
	for _, i := range pos.Source {
		if i >= 0 && i < len(g.Source) {
			seeds = append(seeds, position{graph.SideSource, i})
		}
	}
	for _, i := range pos.Target {
		if i >= 0 && i < len(g.Target) {
			seeds = append(seeds, position{graph.SideTarget, i})
		}
	}
	if len(seeds) == 0 {
		return Subspan{
			Source: graph.Span{Begin: floor.source, End: floor.source},
			Target: graph.Span{Begin: floor.target, End: floor.target},
		}
	}
	for _, p := range seeds[1:] {
		uf.Union(seeds[0], p)
	}
	root := seeds[0]

	oneSided := func(t graph.Token) bool {
		sides := make(map[graph.Side]bool, 2)
		for _, id := range em[t.ID].IDs {
			if info, ok := tm[id]; ok {
				sides[info.Side] = true
			}
		}
		return len(sides) < 2
	}

	var span Subspan
	for {
		next := Subspan{
			Source: extent(uf, root, graph.SideSource, len(g.Source), floor.source),
			Target: extent(uf, root, graph.SideTarget, len(g.Target), floor.target),
		}
		for _, side := range []graph.Side{graph.SideSource, graph.SideTarget} {
			s := pick(&next, side)
			tokens := g.Tokens(side)
			if s.Len() == 0 {
				continue
			}
			for s.End < len(tokens) && oneSided(tokens[s.End]) {
				s.End++
			}
			for s.Begin > floor.at(side) && oneSided(tokens[s.Begin-1]) {
				s.Begin--
			}
			for i := s.Begin; i < s.End; i++ {
				uf.Union(root, position{side, i})
			}
		}
		if next == span {
			return span
		}
		span = next
	}
}

func pick(s *Subspan, side graph.Side) *graph.Span {
	if side == graph.SideSource {
		return &s.Source
	}
	return &s.Target
}

// extent returns the range of indexes on side connected to root. An empty
// range is placed at at.
func extent(uf *unionfind.UnionFind[position], root position, side graph.Side, n, at int) graph.Span {
	span := graph.Span{Begin: -1}
	for i := 0; i < n; i++ {
		if uf.Connected(root, position{side, i}) {
			if span.Begin < 0 {
				span.Begin = i
			}
			span.End = i + 1
		}
	}
	if span.Begin < 0 {
		return graph.Span{Begin: at, End: at}
	}
	return span
}

// AllSentences covers g with consecutive units, in order.
func AllSentences(g graph.Graph) []Subspan {
	var out []Subspan
	var floor cursor
	for floor.source < len(g.Source) || floor.target < len(g.Target) {
		var pos Positions
		if floor.source < len(g.Source) {
			pos.Source = []int{floor.source}
		}
		if floor.target < len(g.Target) {
			pos.Target = []int{floor.target}
		}
		s := around(g, pos, floor)
		out = append(out, s)
		floor = cursor{
			source: max(floor.source, s.Source.End),
			target: max(floor.target, s.Target.End),
		}
	}
	return out
}

// Subgraph restricts g to the tokens of s. Edges with at least one
// member inside are kept unchanged, so the result may reference tokens
// outside it.
func Subgraph(g graph.Graph, s Subspan) graph.Graph {
	source := g.Source[s.Source.Begin:s.Source.End]
	target := g.Target[s.Target.Begin:s.Target.End]
	inside := make(map[string]bool, len(source)+len(target))
	for _, t := range source {
		inside[t.ID] = true
	}
	for _, t := range target {
		inside[t.ID] = true
	}
	edges := make(map[string]graph.Edge)
	for id, e := range g.Edges {
		for _, m := range e.IDs {
			if inside[m] {
				edges[id] = e
				break
			}
		}
	}
	return graph.Graph{Source: source, Target: target, Edges: edges}
}
