// Package api serves one editing session over HTTP and WebSocket.
//
// Clients send session commands as JSON text frames on /ws; after every
// applied command all clients receive the new state. /state returns the
// same state over plain HTTP and /sentences the sentence units.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/FocuswithJustin/Rectify/core/diff"
	"github.com/FocuswithJustin/Rectify/core/graph"
	"github.com/FocuswithJustin/Rectify/core/segment"
	"github.com/FocuswithJustin/Rectify/internal/cache"
	"github.com/FocuswithJustin/Rectify/internal/logging"
	"github.com/FocuswithJustin/Rectify/internal/session"
	"github.com/FocuswithJustin/Rectify/internal/store"
)

// Message types sent to clients.
const (
	TypeState = "state"
	TypeError = "error"
)

// Message is the JSON frame sent to clients.
type Message struct {
	Type      string                `json:"type"`
	Document  string                `json:"document,omitempty"`
	Revision  int                   `json:"revision"`
	Source    []graph.Token         `json:"source,omitempty"`
	Target    []graph.Token         `json:"target,omitempty"`
	Edges     map[string]graph.Edge `json:"edges,omitempty"`
	Diff      []diff.Record         `json:"diff,omitempty"`
	Violation *graph.Violation      `json:"violation,omitempty"`
	Error     string                `json:"error,omitempty"`
	Timestamp string                `json:"timestamp"`
}

// Server exposes a session to WebSocket clients.
type Server struct {
	cfg             Config
	sess            *session.Session
	hub             *Hub
	diffs           *cache.TTLCache[string, []diff.Record]
	isOrderChanging diff.LabelPredicate
	started         time.Time
}

// New creates a server for sess.
func New(cfg Config, sess *session.Session) *Server {
	cfg = cfg.withDefaults()
	labels := slices.Clone(cfg.OrderChangingLabels)
	return &Server{
		cfg:             cfg,
		sess:            sess,
		hub:             NewHub(),
		diffs:           cache.New[string, []diff.Record](cfg.DiffCacheTTL),
		isOrderChanging: func(l string) bool { return slices.Contains(labels, l) },
		started:         time.Now(),
	}
}

// Handler returns the HTTP handler of the server. The WebSocket route is
// kept outside the logging middleware, which cannot hijack connections.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /healthz", s.handleHealth)
	api.HandleFunc("GET /state", s.handleState)
	api.HandleFunc("GET /sentences", s.handleSentences)

	mux := http.NewServeMux()
	mux.Handle("/ws", logging.RequestIDMiddleware(http.HandlerFunc(s.handleWebSocket)))
	mux.Handle("/", logging.CombinedMiddleware(api))
	return mux
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logging.ServerStartup(ln.Addr().String(),
		"document", s.sess.Document(),
		"session_id", s.sess.ID,
		"check_invariants", s.cfg.CheckInvariants)

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// state builds the state message for g.
func (s *Server) state(g graph.Graph, revision int, violation *graph.Violation) Message {
	records := s.diffs.GetOrCompute(store.Hash(g), func() []diff.Record {
		return diff.Records(diff.CalculateDiff(g, s.isOrderChanging))
	})
	return Message{
		Type:      TypeState,
		Document:  s.sess.Document(),
		Revision:  revision,
		Source:    g.Source,
		Target:    g.Target,
		Edges:     g.Edges,
		Diff:      records,
		Violation: violation,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// current builds the state message for the session's graph, including
// any invariant violation when checks are enabled.
func (s *Server) current() Message {
	g, rev := s.sess.Graph()
	var violation *graph.Violation
	if s.cfg.CheckInvariants {
		if err := graph.CheckInvariant(g); err != nil {
			violation, _ = err.(*graph.Violation)
		}
	}
	return s.state(g, rev, violation)
}

// apply runs one client command and returns the reply for the sender and
// whether it should be broadcast to everyone.
func (s *Server) apply(ctx context.Context, data []byte) (Message, bool) {
	cmd, err := session.ParseCommand(data)
	if err != nil {
		return errorMessage(err), false
	}
	res, err := s.sess.Apply(ctx, cmd)
	if err != nil {
		return errorMessage(err), false
	}
	return s.state(res.Graph, res.Revision, res.Violation), res.Changed
}

func errorMessage(err error) Message {
	return Message{Type: TypeError, Error: err.Error(), Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, rev := s.sess.Graph()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"session":  s.sess.ID,
		"revision": rev,
		"clients":  s.hub.ClientCount(),
		"uptime_s": int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.current())
}

func (s *Server) handleSentences(w http.ResponseWriter, r *http.Request) {
	g, _ := s.sess.Graph()
	respondJSON(w, http.StatusOK, segment.AllSentences(g))
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}
