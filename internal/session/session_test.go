package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/FocuswithJustin/Rectify/core/errors"
	"github.com/FocuswithJustin/Rectify/core/graph"
	"github.com/FocuswithJustin/Rectify/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "rev.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestApplyInMemory(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, graph.Init("apa bepa ", false), Options{CheckInvariants: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.ID == "" {
		t.Error("session has no ID")
	}

	res, err := s.Apply(ctx, Command{Op: OpSetTarget, Text: "apa cepa "})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !res.Changed || res.Revision != 1 || res.Violation != nil {
		t.Errorf("Apply() = changed %v revision %d violation %v", res.Changed, res.Revision, res.Violation)
	}

	res, err = s.Apply(ctx, Command{Op: OpSetTarget, Text: "apa cepa "})
	if err != nil {
		t.Fatal(err)
	}
	if res.Changed || res.Revision != 1 {
		t.Errorf("no-op Apply() = changed %v revision %d, want false 1", res.Changed, res.Revision)
	}
}

func TestApplyKeepsLastGoodGraph(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, graph.Init("apa bepa ", false), Options{})
	if err != nil {
		t.Fatal(err)
	}
	before, rev := s.Graph()

	res, err := s.Apply(ctx, Command{Op: OpConnect, IDs: []string{"e-nope"}})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("Apply() error = %v, want ErrNotFound", err)
	}
	if graph.TargetText(res.Graph) != graph.TargetText(before) || res.Revision != rev {
		t.Error("failed Apply() did not return the last good graph")
	}
	after, rev2 := s.Graph()
	if store.Hash(after) != store.Hash(before) || rev2 != rev {
		t.Error("failed Apply() changed the session graph")
	}
}

func TestApplyPersists(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	opts := Options{Store: st, Document: "essay-1"}

	s, err := New(ctx, graph.Init("apa bepa cepa ", false), opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, rev := s.Graph(); rev != 1 {
		t.Errorf("initial revision = %d, want 1", rev)
	}

	if _, err := s.Apply(ctx, Command{Op: OpModifyTokens, From: 1, To: 2, Text: "depa epa "}); err != nil {
		t.Fatal(err)
	}
	res, err := s.Apply(ctx, Command{Op: OpRearrange, Begin: 0, End: 0, Dest: 3})
	if err != nil {
		t.Fatal(err)
	}
	if res.Revision != 3 {
		t.Errorf("Revision = %d, want 3", res.Revision)
	}

	hist, err := st.History(ctx, "essay-1")
	if err != nil {
		t.Fatal(err)
	}
	var ops []string
	for _, r := range hist {
		ops = append(ops, r.Op)
	}
	if len(ops) != 3 || ops[0] != "init" || ops[1] != OpModifyTokens || ops[2] != OpRearrange {
		t.Errorf("stored ops = %v", ops)
	}

	// A new session on the same document resumes from the latest revision.
	again, err := New(ctx, graph.Empty(), opts)
	if err != nil {
		t.Fatal(err)
	}
	g, rev := again.Graph()
	if rev != 3 || graph.TargetText(g) != graph.TargetText(res.Graph) {
		t.Errorf("resumed session at revision %d with target %q", rev, graph.TargetText(g))
	}
	if again.ID == s.ID {
		t.Error("sessions share an ID")
	}
}

func TestApplyRestore(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	s, err := New(ctx, graph.Init("hej du ", false), Options{Store: st, Document: "d"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Apply(ctx, Command{Op: OpSetTarget, Text: "hej dig "}); err != nil {
		t.Fatal(err)
	}

	res, err := s.Apply(ctx, Command{Op: OpRestore, Seq: 1})
	if err != nil {
		t.Fatalf("restore error = %v", err)
	}
	if got := graph.TargetText(res.Graph); got != "hej du " {
		t.Errorf("restored target = %q, want %q", got, "hej du ")
	}
	if res.Revision != 3 {
		t.Errorf("restore revision = %d, want 3", res.Revision)
	}

	if _, err := s.Apply(ctx, Command{Op: OpRestore, Seq: 42}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("restore of missing revision error = %v, want ErrNotFound", err)
	}
}

func TestNewRequiresDocument(t *testing.T) {
	_, err := New(context.Background(), graph.Empty(), Options{Store: openStore(t)})
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("New() error = %v, want ErrInvalidInput", err)
	}
}

func TestApplyConcurrent(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, graph.Init("a ", false), Options{})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, _ := s.Graph()
			n := len(g.Target)
			s.Apply(ctx, Command{Op: OpModifyTokens, From: n, To: n, Text: "b "})
		}()
	}
	wg.Wait()

	g, rev := s.Graph()
	if err := graph.CheckInvariant(g); err != nil {
		t.Errorf("CheckInvariant() = %v", err)
	}
	if rev < 1 {
		t.Errorf("revision = %d after concurrent edits", rev)
	}
}
