package graph

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Rectify/core/errors"
)

// Side identifies one of the two token sequences of a graph.
type Side string

// Side constants.
const (
	SideSource Side = "source"
	SideTarget Side = "target"
)

// Graph is the persistent parallel corpus value. Operations never modify
// a Graph; they return a new one sharing untouched parts.
type Graph struct {
	Source []Token          `json:"source"`
	Target []Token          `json:"target"`
	Edges  map[string]Edge `json:"edges"`
}

// TextLabels is a text with labels attached, used by FromUnaligned.
type TextLabels struct {
	Text   string   `json:"text"`
	Labels []string `json:"labels,omitempty"`
}

// Unaligned describes two sides without any correspondence.
type Unaligned struct {
	Source []TextLabels `json:"source"`
	Target []TextLabels `json:"target"`
}

// TokenInfo locates a token inside a graph.
type TokenInfo struct {
	Side  Side
	Index int
	Token Token
}

// Init tokenizes text and builds a graph whose target is a copy of the
// source, each target token aligned one-to-one with its source token.
func Init(text string, manual bool) Graph {
	return InitFrom(Tokenize(text), manual)
}

// InitFrom is Init for already tokenized text.
func InitFrom(texts []string, manual bool) Graph {
	source := Identify(texts, "s")
	target := Identify(texts, "t")
	edges := make([]Edge, len(texts))
	for i := range texts {
		edges[i] = NewEdge([]string{source[i].ID, target[i].ID}, nil, manual)
	}
	return Align(Graph{Source: source, Target: target, Edges: edgeRecord(edges...)})
}

// FromUnaligned builds a graph from two independently written sides.
// Every token starts in its own edge carrying its labels; Align then
// groups corresponding tokens.
func FromUnaligned(u Unaligned) Graph {
	var edges []Edge
	side := func(items []TextLabels, prefix string) []Token {
		tokens := make([]Token, len(items))
		for i, item := range items {
			tokens[i] = Token{ID: prefix + strconv.Itoa(i), Text: item.Text}
			edges = append(edges, NewEdge([]string{tokens[i].ID}, item.Labels, false))
		}
		return tokens
	}
	source := side(u.Source, "s")
	target := side(u.Target, "t")
	return Align(Graph{Source: source, Target: target, Edges: edgeRecord(edges...)})
}

// Empty is the graph with no tokens.
func Empty() Graph {
	return Graph{Edges: map[string]Edge{}}
}

// Tokens returns the tokens of one side.
func (g Graph) Tokens(side Side) []Token {
	if side == SideSource {
		return g.Source
	}
	return g.Target
}

// AllTokens returns source tokens followed by target tokens.
func AllTokens(g Graph) []Token {
	return slices.Concat(g.Source, g.Target)
}

// SourceText returns the concatenated source text.
func SourceText(g Graph) string {
	return strings.Join(Texts(g.Source), "")
}

// TargetText returns the concatenated target text.
func TargetText(g Graph) string {
	return strings.Join(Texts(g.Target), "")
}

// SourceTexts returns the text of every source token.
func SourceTexts(g Graph) []string {
	return Texts(g.Source)
}

// TargetTexts returns the text of every target token.
func TargetTexts(g Graph) []string {
	return Texts(g.Target)
}

// EdgeMap maps each token id to the edge it belongs to.
func EdgeMap(g Graph) map[string]Edge {
	m := make(map[string]Edge, len(g.Source)+len(g.Target))
	for _, e := range g.Edges {
		for _, id := range e.IDs {
			m[id] = e
		}
	}
	return m
}

// TokenMap maps each token id to its side, index and token.
func TokenMap(g Graph) map[string]TokenInfo {
	m := make(map[string]TokenInfo, len(g.Source)+len(g.Target))
	for i, t := range g.Source {
		m[t.ID] = TokenInfo{Side: SideSource, Index: i, Token: t}
	}
	for i, t := range g.Target {
		m[t.ID] = TokenInfo{Side: SideTarget, Index: i, Token: t}
	}
	return m
}

// SourceMap maps each source token id to its index.
func SourceMap(g Graph) map[string]int {
	return indexMap(g.Source)
}

// TargetMap maps each target token id to its index.
func TargetMap(g Graph) map[string]int {
	return indexMap(g.Target)
}

func indexMap(tokens []Token) map[string]int {
	m := make(map[string]int, len(tokens))
	for i, t := range tokens {
		m[t.ID] = i
	}
	return m
}

// TokenIDsToEdges returns the distinct edges owning ids, in order of
// first mention. Unknown ids are skipped.
func TokenIDsToEdges(g Graph, ids []string) []Edge {
	em := EdgeMap(g)
	seen := make(map[string]bool)
	var edges []Edge
	for _, id := range ids {
		e, ok := em[id]
		if ok && !seen[e.ID] {
			seen[e.ID] = true
			edges = append(edges, e)
		}
	}
	return edges
}

// TokenIDsToEdgeIDs is TokenIDsToEdges returning only the edge ids.
func TokenIDsToEdgeIDs(g Graph, ids []string) []string {
	edges := TokenIDsToEdges(g, ids)
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.ID
	}
	return out
}

// PartitionIDs splits ids into those on the source side and those on the
// target side. Unknown ids are dropped.
func PartitionIDs(g Graph, ids []string) (source, target []string) {
	tm := TokenMap(g)
	for _, id := range ids {
		info, ok := tm[id]
		switch {
		case !ok:
		case info.Side == SideSource:
			source = append(source, id)
		default:
			target = append(target, id)
		}
	}
	return source, target
}

// SortedEdgeIDs returns the keys of g.Edges in sorted order.
func SortedEdgeIDs(g Graph) []string {
	return slices.Sorted(maps.Keys(g.Edges))
}

// NextID returns one more than the largest number embedded in any token
// id of g, or 0 for a graph without tokens.
func NextID(g Graph) int {
	next := 0
	for _, t := range AllTokens(g) {
		for _, run := range digitRuns(t.ID) {
			n, err := strconv.Atoi(run)
			if err == nil && n+1 > next {
				next = n + 1
			}
		}
	}
	return next
}

func digitRuns(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r < '0' || r > '9' })
}

// Invert swaps the source and target sides.
func Invert(g Graph) Graph {
	return Graph{Source: g.Target, Target: g.Source, Edges: g.Edges}
}

// lookupEdges resolves edge ids, failing on the first unknown one.
func lookupEdges(g Graph, edgeIDs []string) ([]Edge, error) {
	edges := make([]Edge, 0, len(edgeIDs))
	for _, id := range edgeIDs {
		e, ok := g.Edges[id]
		if !ok {
			return nil, errors.NewNotFound("edge", id)
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// withEdges returns a copy of g whose edge map has the edges named in
// remove deleted and add inserted.
func withEdges(g Graph, remove []string, add ...Edge) Graph {
	edges := maps.Clone(g.Edges)
	if edges == nil {
		edges = map[string]Edge{}
	}
	for _, id := range remove {
		delete(edges, id)
	}
	for _, e := range add {
		edges[e.ID] = e
	}
	return Graph{Source: g.Source, Target: g.Target, Edges: edges}
}
