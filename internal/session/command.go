package session

import (
	"encoding/json"

	"github.com/FocuswithJustin/Rectify/core/errors"
	"github.com/FocuswithJustin/Rectify/core/graph"
)

// Operation names accepted in Command.Op.
const (
	OpModify             = "modify"
	OpModifyTokens       = "modify-tokens"
	OpModifySource       = "modify-source"
	OpModifySourceTokens = "modify-source-tokens"
	OpSetTarget          = "set-target"
	OpSetSource          = "set-source"
	OpRearrange          = "rearrange"
	OpConnect            = "connect"
	OpDisconnect         = "disconnect"
	OpIsolate            = "isolate"
	OpRevert             = "revert"
	// OpRestore replaces the graph with an earlier stored revision. It
	// needs a store and is handled by Session, not Command.Apply.
	OpRestore = "restore"
)

// Command is the wire form of one graph operation:
//
//	{"op":"modify","from":4,"to":8,"text":"depa"}
//	{"op":"rearrange","begin":1,"end":2,"dest":0}
//	{"op":"connect","ids":["e-s0-t0","e-s1-t1"]}
//
// From and To are character offsets for modify and modify-source, token
// indices for the -tokens variants. IDs are edge ids for connect and
// revert, token ids for disconnect and isolate.
type Command struct {
	Op    string   `json:"op"`
	From  int      `json:"from,omitempty"`
	To    int      `json:"to,omitempty"`
	Text  string   `json:"text,omitempty"`
	Begin int      `json:"begin,omitempty"`
	End   int      `json:"end,omitempty"`
	Dest  int      `json:"dest,omitempty"`
	IDs   []string `json:"ids,omitempty"`
	Seq   int      `json:"seq,omitempty"`
}

// ParseCommand decodes a JSON command.
func ParseCommand(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return c, &errors.ParseError{Format: "command", Message: err.Error(), Err: err}
	}
	if c.Op == "" {
		return c, errors.NewValidation("op", "missing operation")
	}
	return c, nil
}

// Apply runs the command against g and returns the resulting graph. On
// error g is returned unchanged.
func (c Command) Apply(g graph.Graph) (graph.Graph, error) {
	switch c.Op {
	case OpModify:
		return graph.Modify(g, c.From, c.To, c.Text)
	case OpModifyTokens:
		return graph.ModifyTokens(g, c.From, c.To, c.Text)
	case OpModifySource:
		return graph.ModifySource(g, c.From, c.To, c.Text)
	case OpModifySourceTokens:
		return graph.ModifySourceTokens(g, c.From, c.To, c.Text)
	case OpSetTarget:
		return graph.SetTarget(g, c.Text)
	case OpSetSource:
		return graph.SetSource(g, c.Text)
	case OpRearrange:
		return graph.Rearrange(g, c.Begin, c.End, c.Dest)
	case OpConnect:
		return graph.Connect(g, c.IDs)
	case OpDisconnect:
		return graph.Disconnect(g, c.IDs)
	case OpIsolate:
		return graph.Isolate(g, c.IDs)
	case OpRevert:
		return graph.Revert(g, c.IDs)
	case OpRestore:
		return g, &errors.UnsupportedError{Feature: "operation", Reason: "restore needs a revision store"}
	default:
		return g, errors.NewValidation("op", "unknown operation "+c.Op)
	}
}
