package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/FocuswithJustin/Rectify/core/errors"
	"github.com/FocuswithJustin/Rectify/core/graph"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "revisions.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLatest(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	g := graph.Init("apa bepa cepa ", false)
	rev, created, err := s.Save(ctx, "essay-1", "init", g)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !created || rev.Seq != 1 {
		t.Errorf("Save() = seq %d, created %v, want 1, true", rev.Seq, created)
	}
	if rev.Hash != Hash(g) {
		t.Errorf("Hash = %s, want %s", rev.Hash, Hash(g))
	}

	g2, err := graph.ModifyTokens(g, 1, 2, "depa epa ")
	if err != nil {
		t.Fatal(err)
	}
	rev, created, err = s.Save(ctx, "essay-1", "modify", g2)
	if err != nil || !created || rev.Seq != 2 {
		t.Fatalf("Save() = %+v, %v, %v", rev, created, err)
	}

	latest, err := s.Latest(ctx, "essay-1")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Seq != 2 || latest.Op != "modify" {
		t.Errorf("Latest() = seq %d op %q, want 2 modify", latest.Seq, latest.Op)
	}
	if diff := cmp.Diff(g2, latest.Graph, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Latest().Graph mismatch (-want +got):\n%s", diff)
	}

	first, err := s.Revision(ctx, "essay-1", 1)
	if err != nil {
		t.Fatalf("Revision(1) error = %v", err)
	}
	if diff := cmp.Diff(g, first.Graph, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Revision(1).Graph mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveUnchangedIsNoop(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	g := graph.Init("hej ", false)

	if _, _, err := s.Save(ctx, "d", "init", g); err != nil {
		t.Fatal(err)
	}
	rev, created, err := s.Save(ctx, "d", "set-target", g)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if created {
		t.Error("Save() of an unchanged graph created a revision")
	}
	if rev.Seq != 1 || rev.Op != "init" {
		t.Errorf("Save() returned seq %d op %q, want the existing revision", rev.Seq, rev.Op)
	}

	hist, err := s.History(ctx, "d")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 {
		t.Errorf("len(History()) = %d, want 1", len(hist))
	}
}

func TestHistoryAndDocuments(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	g := graph.Init("a ", false)
	for i, text := range []string{"a ", "ab ", "abc "} {
		next, err := graph.SetTarget(g, text)
		if err != nil {
			t.Fatal(err)
		}
		if _, _, err := s.Save(ctx, "beta", "edit", next); err != nil {
			t.Fatalf("Save(%d) error = %v", i, err)
		}
	}
	if _, _, err := s.Save(ctx, "alpha", "init", g); err != nil {
		t.Fatal(err)
	}

	hist, err := s.History(ctx, "beta")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	var seqs []int
	for _, r := range hist {
		seqs = append(seqs, r.Seq)
		if r.CreatedAt.IsZero() {
			t.Errorf("revision %d has no timestamp", r.Seq)
		}
	}
	if diff := cmp.Diff([]int{1, 2, 3}, seqs); diff != "" {
		t.Errorf("History() seqs mismatch (-want +got):\n%s", diff)
	}

	docs, err := s.Documents(ctx)
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	if diff := cmp.Diff([]string{"alpha", "beta"}, docs); diff != "" {
		t.Errorf("Documents() mismatch (-want +got):\n%s", diff)
	}
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if _, _, err := s.Save(ctx, "d", "init", graph.Init("x ", false)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Latest unknown", func() error { _, err := s.Latest(ctx, "nope"); return err }},
		{"History unknown", func() error { _, err := s.History(ctx, "nope"); return err }},
		{"Revision unknown seq", func() error { _, err := s.Revision(ctx, "d", 9); return err }},
		{"Delete unknown", func() error { return s.Delete(ctx, "nope") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, errors.ErrNotFound) {
				t.Errorf("error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if _, _, err := s.Save(ctx, "d", "init", graph.Init("x ", false)); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "d"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM revisions`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d revisions left after Delete", n)
	}
}

func TestSaveRejectsBadNames(t *testing.T) {
	s := openTestStore(t)
	for _, name := range []string{"", "a/b", ".."} {
		_, _, err := s.Save(context.Background(), name, "init", graph.Empty())
		if !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidInput", name, err)
		}
	}
}

func TestHashDistinguishesManual(t *testing.T) {
	auto := graph.Init("apa ", false)
	manual := graph.Init("apa ", true)
	if Hash(auto) == Hash(manual) {
		t.Error("manual flag does not change the fingerprint")
	}
	if Hash(auto) != Hash(graph.Init("apa ", false)) {
		t.Error("fingerprint is not deterministic")
	}
}
