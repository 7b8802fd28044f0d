package graph

import (
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/FocuswithJustin/Rectify/core/unionfind"
)

// charStream is the text of one side with the owning token of each rune.
// Whitespace runes have no owner.
type charStream struct {
	runes  []rune
	owners []string
}

func (cs *charStream) add(t Token) {
	for _, r := range t.Text {
		cs.runes = append(cs.runes, r)
		if unicode.IsSpace(r) {
			cs.owners = append(cs.owners, "")
		} else {
			cs.owners = append(cs.owners, t.ID)
		}
	}
}

// newDiffer returns a diff engine configured for minimal edit scripts.
// A zero timeout disables the half-match speedup, which may return
// non-minimal diffs.
func newDiffer() *diffmatchpatch.DiffMatchPatch {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return dmp
}

// matchedPairs calls fn for each pair of runes the minimal edit script
// between a and b keeps equal.
func matchedPairs(a, b []rune, fn func(i, j int)) {
	i, j := 0, 0
	for _, d := range newDiffer().DiffMainRunes(a, b, false) {
		n := len([]rune(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			for k := 0; k < n; k++ {
				fn(i+k, j+k)
			}
			i += n
			j += n
		case diffmatchpatch.DiffDelete:
			i += n
		case diffmatchpatch.DiffInsert:
			j += n
		}
	}
}

// Align recomputes the automatic edges of g from the text of its tokens.
// Manual edges are kept as they are, and their tokens take no part in the
// diff. Token sequences are never changed.
//
// Tokens on both sides are clustered by the runes a minimal character
// diff matches between them; a token with no matched rune gets an edge of
// its own. Labels of a previous edge move to the cluster of its first
// member.
func Align(g Graph) Graph {
	em := EdgeMap(g)
	auto := func(t Token) bool {
		e, ok := em[t.ID]
		return !ok || !e.Manual
	}

	var src, tgt charStream
	for _, t := range g.Source {
		if auto(t) {
			src.add(t)
		}
	}
	for _, t := range g.Target {
		if auto(t) {
			tgt.add(t)
		}
	}

	uf := unionfind.New[string]()
	matchedPairs(src.runes, tgt.runes, func(i, j int) {
		a, b := src.owners[i], tgt.owners[j]
		if a != "" && b != "" {
			uf.Union(a, b)
		}
	})

	all := AllTokens(g)
	for _, t := range all {
		if auto(t) {
			uf.Add(t.ID)
		}
	}

	var out []Edge
	for _, e := range g.Edges {
		if e.Manual {
			out = append(out, e)
		}
	}

	proto := make(map[string]Edge)
	var order []string
	for _, t := range all {
		if !auto(t) {
			continue
		}
		var labels []string
		if prev, ok := em[t.ID]; ok && prev.IDs[0] == t.ID {
			labels = prev.Labels
		}
		root := uf.Find(t.ID)
		acc, ok := proto[root]
		if !ok {
			acc = ZeroEdge
			order = append(order, root)
		}
		proto[root] = MergeEdges(acc, NewEdge([]string{t.ID}, labels, false))
	}
	for _, root := range order {
		out = append(out, proto[root])
	}

	return Graph{Source: g.Source, Target: g.Target, Edges: edgeRecord(out...)}
}
