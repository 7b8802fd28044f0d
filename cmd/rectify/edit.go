package main

import (
	"context"

	"github.com/FocuswithJustin/Rectify/core/graph"
	"github.com/FocuswithJustin/Rectify/internal/session"
)

// EditGroup contains the edit operations. Every edit is validated and
// stored as a new revision.
type EditGroup struct {
	SetTarget  SetTargetCmd  `cmd:"" name:"set-target" help:"Replace the target text"`
	SetSource  SetSourceCmd  `cmd:"" name:"set-source" help:"Replace the source text"`
	Modify     ModifyCmd     `cmd:"" help:"Replace a range of the target (or source) with text"`
	Rearrange  RearrangeCmd  `cmd:"" help:"Move target tokens"`
	Connect    ConnectCmd    `cmd:"" help:"Merge edges into one manual edge"`
	Disconnect DisconnectCmd `cmd:"" help:"Split tokens off their edges"`
	Isolate    IsolateCmd    `cmd:"" help:"Give tokens their own manual edge"`
	Revert     RevertCmd     `cmd:"" help:"Undo the corrections of edges"`
	Restore    RestoreCmd    `cmd:"" help:"Restore an earlier revision"`
}

// edit applies cmd to the latest revision of doc through a session.
func (g *Globals) edit(doc string, cmd session.Command) error {
	ctx := context.Background()
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.Latest(ctx, doc); err != nil {
		return err
	}
	sess, err := session.New(ctx, graph.Empty(), session.Options{
		Store:           st,
		Document:        doc,
		CheckInvariants: true,
	})
	if err != nil {
		return err
	}
	res, err := sess.Apply(ctx, cmd)
	if err != nil {
		return err
	}

	if res.Violation != nil {
		g.printf("warning: %v\n", res.Violation)
	}
	if !res.Changed {
		g.printf("%s unchanged at revision %d\n", doc, res.Revision)
		return nil
	}
	g.printf("%s revision %d: %s\n", doc, res.Revision, graph.TargetText(res.Graph))
	return nil
}

// SetTargetCmd replaces the target text.
type SetTargetCmd struct {
	Document string `arg:"" help:"Document name"`
	Text     string `arg:"" help:"New target text"`
}

func (c *SetTargetCmd) Run(g *Globals) error {
	return g.edit(c.Document, session.Command{Op: session.OpSetTarget, Text: c.Text})
}

// SetSourceCmd replaces the source text.
type SetSourceCmd struct {
	Document string `arg:"" help:"Document name"`
	Text     string `arg:"" help:"New source text"`
}

func (c *SetSourceCmd) Run(g *Globals) error {
	return g.edit(c.Document, session.Command{Op: session.OpSetSource, Text: c.Text})
}

// ModifyCmd replaces [from, to) with text. Offsets count characters
// unless --tokens is given.
type ModifyCmd struct {
	Document string `arg:"" help:"Document name"`
	From     int    `arg:"" help:"Start offset"`
	To       int    `arg:"" help:"End offset (exclusive)"`
	Text     string `arg:"" optional:"" help:"Replacement text"`
	Tokens   bool   `help:"Offsets are token indices"`
	Source   bool   `help:"Edit the source side"`
}

func (c *ModifyCmd) Run(g *Globals) error {
	op := session.OpModify
	switch {
	case c.Source && c.Tokens:
		op = session.OpModifySourceTokens
	case c.Source:
		op = session.OpModifySource
	case c.Tokens:
		op = session.OpModifyTokens
	}
	return g.edit(c.Document, session.Command{Op: op, From: c.From, To: c.To, Text: c.Text})
}

// RearrangeCmd moves target tokens begin..end to dest.
type RearrangeCmd struct {
	Document string `arg:"" help:"Document name"`
	Begin    int    `arg:"" help:"First token to move"`
	End      int    `arg:"" help:"Last token to move (inclusive)"`
	Dest     int    `arg:"" help:"Destination index"`
}

func (c *RearrangeCmd) Run(g *Globals) error {
	return g.edit(c.Document, session.Command{Op: session.OpRearrange, Begin: c.Begin, End: c.End, Dest: c.Dest})
}

// ConnectCmd merges edges.
type ConnectCmd struct {
	Document string   `arg:"" help:"Document name"`
	Edges    []string `arg:"" help:"Edge ids"`
}

func (c *ConnectCmd) Run(g *Globals) error {
	return g.edit(c.Document, session.Command{Op: session.OpConnect, IDs: c.Edges})
}

// DisconnectCmd splits tokens off their edges.
type DisconnectCmd struct {
	Document string   `arg:"" help:"Document name"`
	Tokens   []string `arg:"" help:"Token ids"`
}

func (c *DisconnectCmd) Run(g *Globals) error {
	return g.edit(c.Document, session.Command{Op: session.OpDisconnect, IDs: c.Tokens})
}

// IsolateCmd puts tokens in their own edge.
type IsolateCmd struct {
	Document string   `arg:"" help:"Document name"`
	Tokens   []string `arg:"" help:"Token ids"`
}

func (c *IsolateCmd) Run(g *Globals) error {
	return g.edit(c.Document, session.Command{Op: session.OpIsolate, IDs: c.Tokens})
}

// RevertCmd reverts edges to their source.
type RevertCmd struct {
	Document string   `arg:"" help:"Document name"`
	Edges    []string `arg:"" help:"Edge ids"`
}

func (c *RevertCmd) Run(g *Globals) error {
	return g.edit(c.Document, session.Command{Op: session.OpRevert, IDs: c.Edges})
}

// RestoreCmd makes an earlier revision the latest one.
type RestoreCmd struct {
	Document string `arg:"" help:"Document name"`
	Seq      int    `arg:"" help:"Revision to restore"`
}

func (c *RestoreCmd) Run(g *Globals) error {
	return g.edit(c.Document, session.Command{Op: session.OpRestore, Seq: c.Seq})
}
