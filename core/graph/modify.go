package graph

import (
	"slices"
	"strconv"

	"github.com/FocuswithJustin/Rectify/core/errors"
)

// ModifyTokens replaces target tokens [from, to) with the tokens of text.
//
// Text is snapped to token boundaries first:
//   - whitespace-only text is glued to the previous token, or to the next
//     one at the start of the side
//   - text not ending in whitespace takes in the following token
//   - text appended after a last token is glued to that token
//
// Edges that owned a replaced token are dissolved; their surviving
// members and the new tokens form one edge with the union of their
// labels, manual if any of them was.
func ModifyTokens(g Graph, from, to int, text string) (Graph, error) {
	out, err := spliceTokens(g, from, to, text, "t")
	if err != nil {
		return g, err
	}
	return Align(out), nil
}

// ModifySourceTokens is ModifyTokens for the source side.
func ModifySourceTokens(g Graph, from, to int, text string) (Graph, error) {
	out, err := spliceTokens(Invert(g), from, to, text, "s")
	if err != nil {
		return g, err
	}
	return Align(Invert(out)), nil
}

func spliceTokens(g Graph, from, to int, text, prefix string) (Graph, error) {
	n := len(g.Target)
	if from < 0 || from > n {
		return g, errors.NewRange("token index", from, n)
	}
	if to < from || to > n {
		return g, errors.NewRange("token index", to, n)
	}
	if text == "" && from == to {
		return g, nil
	}

	if text != "" && isBlank(text) {
		if from > 0 {
			return spliceTokens(g, from-1, to, g.Target[from-1].Text+text, prefix)
		}
		if to < n {
			return spliceTokens(g, from, to+1, text+g.Target[to].Text, prefix)
		}
	}
	if text != "" && !endsInSpace(text) && to < n {
		return spliceTokens(g, from, to+1, text+g.Target[to].Text, prefix)
	}
	if from > 0 && from == n && to == n {
		return spliceTokens(g, from-1, to, g.Target[from-1].Text+text, prefix)
	}

	next := NextID(g)
	texts := Tokenize(text)
	tokens := make([]Token, len(texts))
	for i, t := range texts {
		tokens[i] = Token{ID: prefix + strconv.Itoa(next+i), Text: t}
	}

	removed := make(map[string]bool, to-from)
	for _, t := range g.Target[from:to] {
		removed[t.ID] = true
	}
	target := slices.Concat(g.Target[:from], tokens, g.Target[to:])

	var dissolved []string
	merged := make([]Edge, 0, 1+len(removed))
	ids := make([]string, len(tokens))
	for i, t := range tokens {
		ids[i] = t.ID
	}
	for _, key := range SortedEdgeIDs(g) {
		e := g.Edges[key]
		if !slices.ContainsFunc(e.IDs, func(id string) bool { return removed[id] }) {
			continue
		}
		dissolved = append(dissolved, key)
		survivors := slices.DeleteFunc(slices.Clone(e.IDs), func(id string) bool { return removed[id] })
		merged = append(merged, Edge{IDs: survivors, Labels: e.Labels, Manual: e.Manual})
	}
	merged = append(merged, Edge{IDs: ids})

	out := withEdges(Graph{Source: g.Source, Target: target, Edges: g.Edges}, dissolved)
	if e := MergeEdges(merged...); len(e.IDs) > 0 {
		out.Edges[e.ID] = e
	}
	return out, nil
}

// Modify replaces the target characters [from, to) with text. The
// offsets count runes of the target text. The touched tokens are
// re-tokenized, keeping the untouched parts of the first and last of
// them; a token that merely begins at to is not touched.
func Modify(g Graph, from, to int, text string) (Graph, error) {
	out, err := modify(g, from, to, text, "t")
	if err != nil {
		return g, err
	}
	return Align(out), nil
}

// ModifySource is Modify for the source side.
func ModifySource(g Graph, from, to int, text string) (Graph, error) {
	out, err := modify(Invert(g), from, to, text, "s")
	if err != nil {
		return g, err
	}
	return Align(Invert(out)), nil
}

func modify(g Graph, from, to int, text, prefix string) (Graph, error) {
	if from > to {
		return g, errors.NewRange("character offset", from, to)
	}
	if len(g.Target) == 0 {
		if from != 0 || to != 0 {
			return g, errors.NewRange("character offset", to, 0)
		}
		return spliceTokens(g, 0, 0, text, prefix)
	}
	texts := Texts(g.Target)
	fromTok, fromOff, err := TokenAt(texts, from)
	if err != nil {
		return g, err
	}
	toTok, toOff, err := TokenAt(texts, to)
	if err != nil {
		return g, err
	}
	if text == "" && from == to {
		return g, nil
	}
	head := string([]rune(texts[fromTok])[:fromOff])
	if toOff == 0 && (toTok > fromTok || fromOff == 0) {
		// The range ends on a token boundary; leave the next token alone.
		return spliceTokens(g, fromTok, toTok, head+text, prefix)
	}
	tail := string([]rune(texts[toTok])[toOff:])
	return spliceTokens(g, fromTok, toTok+1, head+text+tail, prefix)
}

// SetTarget changes the target text to text with the smallest edit that
// does it: only the characters between the common prefix and the common
// suffix of the old and new text are replaced.
func SetTarget(g Graph, text string) (Graph, error) {
	out, err := setText(g, text, "t")
	if err != nil {
		return g, err
	}
	return Align(out), nil
}

// SetSource is SetTarget for the source side.
func SetSource(g Graph, text string) (Graph, error) {
	out, err := setText(Invert(g), text, "s")
	if err != nil {
		return g, err
	}
	return Align(Invert(out)), nil
}

func setText(g Graph, text, prefix string) (Graph, error) {
	old := TargetText(g)
	if old == text {
		return g, nil
	}
	dmp := newDiffer()
	p := dmp.DiffCommonPrefix(old, text)
	oldRest := string([]rune(old)[p:])
	newRest := []rune(text)[p:]
	s := dmp.DiffCommonSuffix(oldRest, string(newRest))
	mid := string(newRest[:len(newRest)-s])
	return modify(g, p, runeLen(old)-s, mid, prefix)
}

// Rearrange moves the target tokens [begin, end] to dest. Moving left,
// the tokens end up starting at dest; moving right, they end up ending at
// dest. Edges of the moved tokens become manual, since the aligner relies
// on the word order the move has broken.
func Rearrange(g Graph, begin, end, dest int) (Graph, error) {
	n := len(g.Target)
	if begin < 0 || begin >= n {
		return g, errors.NewRange("token index", begin, n-1)
	}
	if end < begin || end >= n {
		return g, errors.NewRange("token index", end, n-1)
	}
	if dest < 0 || dest >= n {
		return g, errors.NewRange("token index", dest, n-1)
	}

	em := EdgeMap(g)
	var pinned []Edge
	var keys []string
	for _, t := range g.Target[begin : end+1] {
		e := em[t.ID]
		if !slices.Contains(keys, e.ID) {
			keys = append(keys, e.ID)
			pinned = append(pinned, e.WithManual(true))
		}
	}

	out := withEdges(g, keys, pinned...)
	out.Target = rearrange(g.Target, begin, end, dest)
	return Align(padTarget(out)), nil
}

// rearrange moves xs[begin..end] so the window starts at dest when
// moving left and ends at dest when moving right. A dest inside the
// window leaves xs unchanged.
func rearrange[T any](xs []T, begin, end, dest int) []T {
	if dest >= begin && dest <= end {
		return slices.Clone(xs)
	}
	window := slices.Clone(xs[begin : end+1])
	rest := slices.Concat(xs[:begin], xs[end+1:])
	at := dest
	if dest > end {
		at = dest - len(window) + 1
	}
	return slices.Concat(rest[:at], window, rest[at:])
}

// padTarget reissues every non-final target token without trailing
// whitespace with a fresh id and a single trailing space.
func padTarget(g Graph) Graph {
	out := withEdges(g, nil)
	out.Target = slices.Clone(g.Target)
	em := EdgeMap(g)
	next := NextID(g)
	for i, t := range g.Target {
		if i == len(g.Target)-1 || endsInSpace(t.Text) {
			continue
		}
		fresh := Token{ID: "t" + strconv.Itoa(next), Text: t.Text + " "}
		next++
		out.Target[i] = fresh

		e := em[t.ID]
		ids := slices.DeleteFunc(slices.Clone(e.IDs), func(id string) bool { return id == t.ID })
		updated := NewEdge(append(ids, fresh.ID), e.Labels, e.Manual)
		delete(out.Edges, e.ID)
		out.Edges[updated.ID] = updated
		for _, id := range updated.IDs {
			em[id] = updated
		}
	}
	return out
}
