// Package graph implements the parallel alignment graph used to correct
// learner text.
//
// A Graph holds two sides of tokens, the learner's source text and the
// corrected target text, and a set of edges that partition the tokens of
// both sides into correspondence groups.
//
// # Values
//
// Graph, Token and Edge are persistent values. Every operation in this
// package takes a Graph and returns a new one; slices and maps of the
// input are never written to.
//
//   - Token: immutable text unit with an id unique across both sides
//   - Edge: canonical, sorted group of token ids, optionally manual
//   - Graph: Source and Target tokens plus edges keyed by canonical id
//
// # Alignment
//
// Automatic edges are recomputed by Align after every edit from a
// character-level diff of the two sides. Manual edges are pinned by the
// annotator and are never altered by Align.
//
// # Example
//
//	g := graph.Init("apa bepa cepa ", false)
//	g, err := graph.SetTarget(g, "apa depa epa cepa ")
//	if err != nil {
//		return err
//	}
//	if err := graph.CheckInvariant(g); err != nil {
//		return err
//	}
package graph
