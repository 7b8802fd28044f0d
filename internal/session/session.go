// Package session holds the live graph of one document being edited.
//
// A Session is the single writer for its graph: operations are applied
// one at a time under a mutex, failed operations leave the last good
// graph in place, and successful ones are persisted to the revision
// store when one is configured.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/Rectify/core/errors"
	"github.com/FocuswithJustin/Rectify/core/graph"
	"github.com/FocuswithJustin/Rectify/internal/logging"
	"github.com/FocuswithJustin/Rectify/internal/store"
)

// Options configures a Session.
type Options struct {
	// Store persists revisions; nil keeps them in memory only.
	Store *store.Store
	// Document names the stored document. Required with Store.
	Document string
	// CheckInvariants validates every new graph and reports violations.
	CheckInvariants bool
}

// Result describes the outcome of Apply.
type Result struct {
	Graph    graph.Graph
	Revision int
	Changed  bool
	// Violation is set when CheckInvariants is on and the new graph
	// failed a check. The graph is still accepted.
	Violation *graph.Violation
}

// Session is safe for concurrent use.
type Session struct {
	ID string

	mu       sync.Mutex
	opts     Options
	current  graph.Graph
	hash     string
	revision int
}

// New opens a session on the stored document, or on g when the document
// has no revisions yet (g is then saved as the first one).
func New(ctx context.Context, g graph.Graph, opts Options) (*Session, error) {
	s := &Session{ID: uuid.NewString(), opts: opts, current: g}
	ctx = logging.WithSessionID(ctx, s.ID)

	if opts.Store != nil {
		if opts.Document == "" {
			return nil, errors.NewValidation("document", "required when a store is configured")
		}
		rev, err := opts.Store.Latest(ctx, opts.Document)
		switch {
		case err == nil:
			s.current = rev.Graph
			s.revision = rev.Seq
		case errors.Is(err, errors.ErrNotFound):
			rev, _, err = opts.Store.Save(ctx, opts.Document, "init", g)
			if err != nil {
				return nil, err
			}
			s.revision = rev.Seq
		default:
			return nil, err
		}
	}
	s.hash = store.Hash(s.current)
	logging.InfoContext(ctx, "session_opened", "document", opts.Document, "revision", s.revision)
	return s, nil
}

// Graph returns the current graph and its revision number.
func (s *Session) Graph() (graph.Graph, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.revision
}

// Document returns the stored document name, if any.
func (s *Session) Document() string {
	return s.opts.Document
}

// Apply runs cmd against the current graph. On error the current graph is
// kept and returned in the Result alongside the error.
func (s *Session) Apply(ctx context.Context, cmd Command) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = logging.WithSessionID(ctx, s.ID)
	start := time.Now()

	next, err := s.run(ctx, cmd)
	if err != nil {
		logging.EditRejected(ctx, cmd.Op, err)
		return Result{Graph: s.current, Revision: s.revision}, err
	}

	res := Result{Graph: next}
	if s.opts.CheckInvariants {
		if err := graph.CheckInvariant(next); err != nil {
			var v *graph.Violation
			if errors.As(err, &v) {
				res.Violation = v
				logging.InvariantViolation(ctx, v.Rule, v.Message, "op", cmd.Op)
			}
		}
	}

	hash := store.Hash(next)
	if hash == s.hash {
		res.Revision = s.revision
		return res, nil
	}

	revision := s.revision + 1
	if s.opts.Store != nil {
		rev, _, err := s.opts.Store.Save(ctx, s.opts.Document, cmd.Op, next)
		if err != nil {
			logging.EditRejected(ctx, cmd.Op, err)
			return Result{Graph: s.current, Revision: s.revision}, err
		}
		revision = rev.Seq
	}

	s.current, s.hash, s.revision = next, hash, revision
	res.Revision, res.Changed = revision, true
	logging.EditApplied(ctx, cmd.Op, revision, time.Since(start))
	return res, nil
}

func (s *Session) run(ctx context.Context, cmd Command) (graph.Graph, error) {
	if cmd.Op != OpRestore {
		return cmd.Apply(s.current)
	}
	if s.opts.Store == nil {
		return cmd.Apply(s.current)
	}
	rev, err := s.opts.Store.Revision(ctx, s.opts.Document, cmd.Seq)
	if err != nil {
		return s.current, err
	}
	return rev.Graph, nil
}
