// Package corpus reads and writes essay collections in XML.
//
// Each essay holds a learner source text and its correction:
//
//	<corpus>
//	  <essay id="e1" level="B1">
//	    <source>Jag gilar katt .</source>
//	    <target>Jag gillar katter .</target>
//	  </essay>
//	</corpus>
//
// A side is either plain text or a list of <w> word elements, which may
// carry space-separated labels in a label attribute. Plain sides are
// aligned by diffing the target against the source. When an essay has an
// <edges> element its words must carry ids and the graph is taken as
// written. Write always produces that last, lossless form.
package corpus

import (
	"encoding/xml"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/Rectify/core/errors"
	"github.com/FocuswithJustin/Rectify/core/graph"
)

// DefaultFilter selects every essay.
const DefaultFilter = "//essay"

// Essay is one aligned learner text.
type Essay struct {
	ID    string
	Attrs map[string]string
	Graph graph.Graph
}

// Load reads the essays of an XML corpus. filter is an XPath expression
// selecting essay elements (e.g., "//essay[@level='B1']"); an empty
// filter selects all of them.
func Load(r io.Reader, filter string) ([]Essay, error) {
	if filter == "" {
		filter = DefaultFilter
	}
	expr, err := xpath.Compile(filter)
	if err != nil {
		return nil, &errors.ParseError{Format: "xpath", Message: err.Error(), Err: err}
	}

	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, &errors.ParseError{Format: "XML", Message: err.Error(), Err: err}
	}

	var essays []Essay
	for _, n := range xmlquery.QuerySelectorAll(doc, expr) {
		e, err := loadEssay(n)
		if err != nil {
			return nil, errors.Wrapf(err, "essay %q", n.SelectAttr("id"))
		}
		essays = append(essays, e)
	}
	return essays, nil
}

func loadEssay(n *xmlquery.Node) (Essay, error) {
	e := Essay{ID: n.SelectAttr("id"), Attrs: map[string]string{}}
	for _, a := range n.Attr {
		if a.Name.Local != "id" {
			e.Attrs[a.Name.Local] = a.Value
		}
	}

	src := n.SelectElement("source")
	if src == nil {
		return e, errors.NewValidation("source", "essay has no source")
	}
	tgt := n.SelectElement("target")
	if tgt == nil {
		tgt = src
	}

	if edges := n.SelectElement("edges"); edges != nil {
		g, err := loadGraph(src, tgt, edges)
		if err != nil {
			return e, err
		}
		e.Graph = g
		return e, nil
	}

	srcWords, tgtWords := src.SelectElements("w"), tgt.SelectElements("w")
	if len(srcWords) == 0 && len(tgtWords) == 0 {
		g, err := graph.SetTarget(graph.Init(plain(src), false), plain(tgt))
		if err != nil {
			return e, err
		}
		e.Graph = g
		return e, nil
	}

	e.Graph = graph.FromUnaligned(graph.Unaligned{
		Source: words(src, srcWords),
		Target: words(tgt, tgtWords),
	})
	return e, nil
}

// plain returns the text of a side without surrounding layout, ending in
// a single space.
func plain(n *xmlquery.Node) string {
	text := strings.TrimSpace(n.InnerText())
	if text == "" {
		return ""
	}
	return text + " "
}

func words(side *xmlquery.Node, ws []*xmlquery.Node) []graph.TextLabels {
	if len(ws) == 0 {
		var out []graph.TextLabels
		for _, t := range graph.Tokenize(plain(side)) {
			out = append(out, graph.TextLabels{Text: t})
		}
		return out
	}
	out := make([]graph.TextLabels, len(ws))
	for i, w := range ws {
		out[i] = graph.TextLabels{Text: w.InnerText(), Labels: strings.Fields(w.SelectAttr("label"))}
	}
	return out
}

func loadGraph(src, tgt, edges *xmlquery.Node) (graph.Graph, error) {
	side := func(n *xmlquery.Node) ([]graph.Token, error) {
		var tokens []graph.Token
		for _, w := range n.SelectElements("w") {
			id := w.SelectAttr("id")
			if id == "" {
				return nil, errors.NewValidation("w", "word without id in aligned essay")
			}
			tokens = append(tokens, graph.Token{ID: id, Text: w.InnerText()})
		}
		return tokens, nil
	}

	var g graph.Graph
	var err error
	if g.Source, err = side(src); err != nil {
		return g, err
	}
	if g.Target, err = side(tgt); err != nil {
		return g, err
	}
	g.Edges = map[string]graph.Edge{}
	for _, en := range edges.SelectElements("edge") {
		e := graph.NewEdge(strings.Fields(en.SelectAttr("ids")), strings.Fields(en.SelectAttr("labels")),
			en.SelectAttr("manual") == "true")
		g.Edges[e.ID] = e
	}
	if err := graph.CheckInvariant(g); err != nil {
		return graph.Graph{}, err
	}
	return g, nil
}

type xmlCorpus struct {
	XMLName xml.Name   `xml:"corpus"`
	Essays  []xmlEssay `xml:"essay"`
}

type xmlEssay struct {
	ID     string     `xml:"id,attr,omitempty"`
	Attrs  []xml.Attr `xml:",any,attr"`
	Source []xmlWord  `xml:"source>w"`
	Target []xmlWord  `xml:"target>w"`
	Edges  []xmlEdge  `xml:"edges>edge"`
}

type xmlWord struct {
	ID   string `xml:"id,attr"`
	Text string `xml:",chardata"`
}

type xmlEdge struct {
	IDs    string `xml:"ids,attr"`
	Labels string `xml:"labels,attr,omitempty"`
	Manual bool   `xml:"manual,attr,omitempty"`
}

// Write encodes essays as an XML corpus that Load reads back unchanged.
func Write(w io.Writer, essays []Essay) error {
	c := xmlCorpus{Essays: make([]xmlEssay, len(essays))}
	for i, e := range essays {
		xe := xmlEssay{ID: e.ID}
		for _, k := range slices.Sorted(maps.Keys(e.Attrs)) {
			xe.Attrs = append(xe.Attrs, xml.Attr{Name: xml.Name{Local: k}, Value: e.Attrs[k]})
		}
		for _, t := range e.Graph.Source {
			xe.Source = append(xe.Source, xmlWord{ID: t.ID, Text: t.Text})
		}
		for _, t := range e.Graph.Target {
			xe.Target = append(xe.Target, xmlWord{ID: t.ID, Text: t.Text})
		}
		for _, id := range graph.SortedEdgeIDs(e.Graph) {
			edge := e.Graph.Edges[id]
			xe.Edges = append(xe.Edges, xmlEdge{
				IDs:    strings.Join(edge.IDs, " "),
				Labels: strings.Join(edge.Labels, " "),
				Manual: edge.Manual,
			})
		}
		c.Essays[i] = xe
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return errors.NewIO("write", "", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(c); err != nil {
		return errors.NewIO("encode", "", err)
	}
	return nil
}
