// Package syntax reads and writes alignment graphs in a compact one-line
// form, used for storage and for writing test fixtures by hand.
//
// A graph is written as source tokens, target tokens and edges separated
// by bars:
//
//	s0"apa " s1"bepa" | t0"apa " t1"bepa" | {s0 t0} !{s1 t1 : "WO"}
//
// Token texts and labels are Go-quoted strings. A leading "!" marks a
// manual edge.
package syntax

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/Rectify/core/errors"
	"github.com/FocuswithJustin/Rectify/core/graph"
)

//nolint:govet // participle grammar tags are not standard struct tags
type graphGrammar struct {
	Source []*tokenPart `@@*`
	Target []*tokenPart `"|" @@*`
	Edges  []*edgePart  `"|" @@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type tokenPart struct {
	ID   string `@Ident`
	Text string `@String`
}

//nolint:govet // participle grammar tags are not standard struct tags
type edgePart struct {
	Manual bool     `@"!"?`
	IDs    []string `"{" @Ident*`
	Labels []string `( ":" @String* )? "}"`
}

var graphLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_.\-]*`},
	{Name: "Punct", Pattern: `[|{}:!]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var graphParser = participle.MustBuild[graphGrammar](
	participle.Lexer(graphLexer),
	participle.Unquote("String"),
	participle.Elide("Whitespace"),
)

// Format writes g in compact form. Edges are written in id order.
func Format(g graph.Graph) string {
	var sb strings.Builder
	writeTokens(&sb, g.Source)
	sb.WriteString(" | ")
	writeTokens(&sb, g.Target)
	sb.WriteString(" | ")
	for i, id := range graph.SortedEdgeIDs(g) {
		e := g.Edges[id]
		if i > 0 {
			sb.WriteByte(' ')
		}
		if e.Manual {
			sb.WriteByte('!')
		}
		sb.WriteByte('{')
		sb.WriteString(strings.Join(e.IDs, " "))
		if len(e.Labels) > 0 {
			sb.WriteString(" :")
			for _, l := range e.Labels {
				sb.WriteByte(' ')
				sb.WriteString(strconv.Quote(l))
			}
		}
		sb.WriteByte('}')
	}
	return sb.String()
}

func writeTokens(sb *strings.Builder, tokens []graph.Token) {
	for i, t := range tokens {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.ID)
		sb.WriteString(strconv.Quote(t.Text))
	}
}

// Parse reads a graph in compact form and checks its invariants. Syntax
// errors are returned as *errors.ParseError, broken invariants as
// *graph.Violation.
func Parse(s string) (graph.Graph, error) {
	g, err := ParseUnchecked(s)
	if err != nil {
		return g, err
	}
	if err := graph.CheckInvariant(g); err != nil {
		return graph.Graph{}, err
	}
	return g, nil
}

// ParseUnchecked is Parse without the invariant check.
func ParseUnchecked(s string) (graph.Graph, error) {
	parsed, err := graphParser.ParseString("", s)
	if err != nil {
		return graph.Graph{}, &errors.ParseError{Format: "graph", Message: err.Error(), Err: err}
	}

	g := graph.Graph{
		Source: tokens(parsed.Source),
		Target: tokens(parsed.Target),
		Edges:  make(map[string]graph.Edge, len(parsed.Edges)),
	}
	for _, ep := range parsed.Edges {
		e := graph.NewEdge(ep.IDs, ep.Labels, ep.Manual)
		if _, dup := g.Edges[e.ID]; dup {
			return graph.Graph{}, errors.NewParse("graph", "", "duplicate edge "+e.ID)
		}
		g.Edges[e.ID] = e
	}
	return g, nil
}

func tokens(parts []*tokenPart) []graph.Token {
	out := make([]graph.Token, len(parts))
	for i, p := range parts {
		out[i] = graph.Token{ID: p.ID, Text: p.Text}
	}
	return out
}
