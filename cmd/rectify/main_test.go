package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/Rectify/core/errors"
	"github.com/FocuswithJustin/Rectify/core/graph"
	"github.com/FocuswithJustin/Rectify/core/syntax"
)

// Test helper functions

func newGlobals(t *testing.T) (*Globals, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return &Globals{DB: filepath.Join(t.TempDir(), "rectify.db"), out: &buf}, &buf
}

func initDoc(t *testing.T, g *Globals, doc, text string) {
	t.Helper()
	if err := (&InitCmd{Document: doc, Text: text}).Run(g); err != nil {
		t.Fatalf("InitCmd.Run() error = %v", err)
	}
}

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

// Tests for InitCmd

func TestInitCmd_Run(t *testing.T) {
	g, out := newGlobals(t)
	initDoc(t, g, "essay", "Jag gilar katt . ")

	if got, want := out.String(), "essay revision 1: 4 tokens\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	err := (&InitCmd{Document: "essay", Text: "again "}).Run(g)
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("second init error = %v, want ErrInvalidInput", err)
	}
}

func TestInitCmd_Run_FromFile(t *testing.T) {
	g, _ := newGlobals(t)
	path := createTestFile(t, t.TempDir(), "source.txt", "apa bepa\n")
	if err := (&InitCmd{Document: "doc", File: path, Manual: true}).Run(g); err != nil {
		t.Fatalf("InitCmd.Run() error = %v", err)
	}
	rev, err := g.latest(t.Context(), "doc")
	if err != nil {
		t.Fatal(err)
	}
	if got := graph.SourceText(rev.Graph); got != "apa bepa\n" {
		t.Errorf("source = %q", got)
	}
	for _, e := range rev.Graph.Edges {
		if !e.Manual {
			t.Errorf("edge %s is not manual", e.ID)
		}
	}
}

// Tests for EditGroup

func TestEditCmds_Run(t *testing.T) {
	g, out := newGlobals(t)
	initDoc(t, g, "essay", "Jag gilar katt . ")

	tests := []struct {
		name string
		run  func(*Globals) error
		want string
	}{
		{
			name: "set target",
			run:  (&SetTargetCmd{Document: "essay", Text: "Jag gillar katter . "}).Run,
			want: "essay revision 2: Jag gillar katter . \n",
		},
		{
			name: "unchanged",
			run:  (&SetTargetCmd{Document: "essay", Text: "Jag gillar katter . "}).Run,
			want: "essay unchanged at revision 2\n",
		},
		{
			name: "modify tokens",
			run:  (&ModifyCmd{Document: "essay", From: 2, To: 3, Text: "hundar ", Tokens: true}).Run,
			want: "essay revision 3: Jag gillar hundar . \n",
		},
		{
			name: "modify characters",
			run:  (&ModifyCmd{Document: "essay", From: 0, To: 3, Text: "Du"}).Run,
			want: "essay revision 4: Du gillar hundar . \n",
		},
		{
			name: "rearrange",
			run:  (&RearrangeCmd{Document: "essay", Begin: 2, End: 2, Dest: 1}).Run,
			want: "essay revision 5: Du hundar gillar . \n",
		},
		{
			name: "restore",
			run:  (&RestoreCmd{Document: "essay", Seq: 1}).Run,
			want: "essay revision 6: Jag gilar katt . \n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			if err := tt.run(g); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got := out.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEditCmds_Run_Errors(t *testing.T) {
	g, _ := newGlobals(t)
	initDoc(t, g, "essay", "apa bepa ")

	tests := []struct {
		name string
		run  func(*Globals) error
		want error
	}{
		{"missing document", (&SetTargetCmd{Document: "nope", Text: "x "}).Run, errors.ErrNotFound},
		{"unknown edge", (&ConnectCmd{Document: "essay", Edges: []string{"e-x"}}).Run, errors.ErrNotFound},
		{"unknown revert edge", (&RevertCmd{Document: "essay", Edges: []string{"e-x"}}).Run, errors.ErrNotFound},
		{"token out of range", (&ModifyCmd{Document: "essay", From: 5, To: 6, Tokens: true, Source: true}).Run, errors.ErrOutOfBounds},
		{"missing revision", (&RestoreCmd{Document: "essay", Seq: 9}).Run, errors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(g); !errors.Is(err, tt.want) {
				t.Errorf("Run() error = %v, want %v", err, tt.want)
			}
		})
	}

	rev, err := g.latest(t.Context(), "essay")
	if err != nil {
		t.Fatal(err)
	}
	if rev.Seq != 1 {
		t.Errorf("failed edits wrote revisions: latest = %d", rev.Seq)
	}
}

func TestManualEditCmds_Run(t *testing.T) {
	g, out := newGlobals(t)
	initDoc(t, g, "doc", "apa bepa cepa ")

	if err := (&ConnectCmd{Document: "doc", Edges: []string{"e-s0-t0", "e-s1-t1"}}).Run(g); err != nil {
		t.Fatalf("ConnectCmd.Run() error = %v", err)
	}
	if err := (&DisconnectCmd{Document: "doc", Tokens: []string{"t0"}}).Run(g); err != nil {
		t.Fatalf("DisconnectCmd.Run() error = %v", err)
	}
	if err := (&IsolateCmd{Document: "doc", Tokens: []string{"s2"}}).Run(g); err != nil {
		t.Fatalf("IsolateCmd.Run() error = %v", err)
	}
	if strings.Contains(out.String(), "warning") {
		t.Errorf("manual edits reported violations:\n%s", out.String())
	}

	rev, err := g.latest(t.Context(), "doc")
	if err != nil {
		t.Fatal(err)
	}
	if rev.Seq != 4 {
		t.Errorf("latest revision = %d, want 4", rev.Seq)
	}
	if err := graph.CheckInvariant(rev.Graph); err != nil {
		t.Errorf("CheckInvariant() = %v", err)
	}
}

// Tests for inspection commands

func TestShowCmd_Run(t *testing.T) {
	g, out := newGlobals(t)
	initDoc(t, g, "doc", "apa bepa ")
	out.Reset()

	if err := (&ShowCmd{Document: "doc", Seq: -1}).Run(g); err != nil {
		t.Fatalf("ShowCmd.Run() error = %v", err)
	}
	if want := syntax.Format(graph.Init("apa bepa ", false)) + "\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}

	out.Reset()
	if err := (&ShowCmd{Document: "doc", Seq: 1, Text: true}).Run(g); err != nil {
		t.Fatalf("ShowCmd.Run() error = %v", err)
	}
	if want := "source: apa bepa \ntarget: apa bepa \n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestDiffCmd_Run(t *testing.T) {
	g, out := newGlobals(t)
	initDoc(t, g, "essay", "Jag gilar katt . ")
	if err := (&SetTargetCmd{Document: "essay", Text: "Jag gillar katter . "}).Run(g); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	if err := (&DiffCmd{Document: "essay", Seq: -1}).Run(g); err != nil {
		t.Fatalf("DiffCmd.Run() error = %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "gillar") || !strings.Contains(text, "katter") {
		t.Errorf("diff does not show the corrections:\n%s", text)
	}
	if strings.Contains(text, `"Jag " -> "Jag "`) {
		t.Errorf("diff shows unchanged tokens:\n%s", text)
	}

	out.Reset()
	if err := (&DiffCmd{Document: "essay", Seq: 1}).Run(g); err != nil {
		t.Fatalf("DiffCmd.Run() error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("diff of the initial revision = %q, want nothing", out.String())
	}

	out.Reset()
	if err := (&DiffCmd{Document: "essay", Seq: -1, JSON: true}).Run(g); err != nil {
		t.Fatalf("DiffCmd.Run() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "[") || !strings.Contains(out.String(), `"kind": "edited"`) {
		t.Errorf("JSON diff = %s", out.String())
	}
}

func TestCheckCmd_Run(t *testing.T) {
	g, out := newGlobals(t)
	initDoc(t, g, "doc", "apa bepa ")
	dir := t.TempDir()

	good := createTestFile(t, dir, "good.graph", syntax.Format(graph.Init("a b ", false))+"\n")
	broken := createTestFile(t, dir, "broken.graph", `s0"a " | t0"a " | {s0}`)

	out.Reset()
	if err := (&CheckCmd{Document: "doc"}).Run(g); err != nil {
		t.Errorf("CheckCmd.Run(doc) error = %v", err)
	}
	if want := "doc revision 1: ok\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
	if err := (&CheckCmd{File: good}).Run(g); err != nil {
		t.Errorf("CheckCmd.Run(good) error = %v", err)
	}

	var v *graph.Violation
	if err := (&CheckCmd{File: broken}).Run(g); !errors.As(err, &v) {
		t.Errorf("CheckCmd.Run(broken) error = %v, want a violation", err)
	}
	if err := (&CheckCmd{}).Run(g); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("CheckCmd.Run() without input error = %v", err)
	}
}

func TestSentencesCmd_Run(t *testing.T) {
	g, out := newGlobals(t)
	initDoc(t, g, "doc", "Hej du. Vad gör du? ")
	out.Reset()

	if err := (&SentencesCmd{Document: "doc"}).Run(g); err != nil {
		t.Fatalf("SentencesCmd.Run() error = %v", err)
	}
	want := "0\t\"Hej du. \"\t\"Hej du. \"\n1\t\"Vad gör du? \"\t\"Vad gör du? \"\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestHistoryListDelete(t *testing.T) {
	g, out := newGlobals(t)
	initDoc(t, g, "b", "apa ")
	initDoc(t, g, "a", "apa ")
	if err := (&SetTargetCmd{Document: "a", Text: "bepa "}).Run(g); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	if err := (&HistoryCmd{Document: "a"}).Run(g); err != nil {
		t.Fatalf("HistoryCmd.Run() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "1\tinit") || !strings.HasPrefix(lines[1], "2\tset-target") {
		t.Errorf("history = %q", lines)
	}

	out.Reset()
	if err := (&ListCmd{}).Run(g); err != nil {
		t.Fatalf("ListCmd.Run() error = %v", err)
	}
	if out.String() != "a\nb\n" {
		t.Errorf("list = %q, want a and b", out.String())
	}

	if err := (&DeleteCmd{Document: "a"}).Run(g); err != nil {
		t.Fatalf("DeleteCmd.Run() error = %v", err)
	}
	if err := (&DeleteCmd{Document: "a"}).Run(g); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
	if err := (&HistoryCmd{Document: "a"}).Run(g); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("history of deleted document error = %v, want ErrNotFound", err)
	}
}

// Tests for ImportCmd and ExportCmd

const testCorpus = `<?xml version="1.0" encoding="UTF-8"?>
<corpus>
  <essay id="e1" level="B1">
    <source>Jag gilar katt .</source>
    <target>Jag gillar katter .</target>
  </essay>
  <essay id="e2" level="A2">
    <source>Hon springa .</source>
    <target>Hon springer .</target>
  </essay>
</corpus>
`

func TestImportCmd_Run_Corpus(t *testing.T) {
	g, out := newGlobals(t)
	path := createTestFile(t, t.TempDir(), "corpus.xml", testCorpus)

	if err := (&ImportCmd{Path: path, Filter: "//essay[@level='B1']"}).Run(g); err != nil {
		t.Fatalf("ImportCmd.Run() error = %v", err)
	}
	if want := "imported e1 revision 1\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}

	out.Reset()
	if err := (&ImportCmd{Path: path, Filter: "//essay"}).Run(g); err != nil {
		t.Fatalf("ImportCmd.Run() error = %v", err)
	}
	if want := "unchanged e1 revision 1\nimported e2 revision 1\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}

	rev, err := g.latest(t.Context(), "e2")
	if err != nil {
		t.Fatal(err)
	}
	if got := graph.TargetText(rev.Graph); got != "Hon springer . " {
		t.Errorf("e2 target = %q", got)
	}
}

func TestImportCmd_Run_BadFilter(t *testing.T) {
	g, _ := newGlobals(t)
	path := createTestFile(t, t.TempDir(), "corpus.xml", testCorpus)
	if err := (&ImportCmd{Path: path, Filter: "//essay["}).Run(g); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("ImportCmd.Run() error = %v, want ErrInvalidInput", err)
	}
}

func TestImportCmd_Run_Rejects(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
		want    error
	}{
		{"mislabelled bundle", "docs.tar.xz", testCorpus, errors.ErrInvalidInput},
		{"plain text", "notes.txt", "Jag gilar katt .", errors.ErrUnsupported},
		{"essay without id", "bad.xml", "<corpus><essay><source>a</source></essay></corpus>", errors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newGlobals(t)
			path := createTestFile(t, dir, tt.file, tt.content)
			if err := (&ImportCmd{Path: path}).Run(g); !errors.Is(err, tt.want) {
				t.Errorf("ImportCmd.Run() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	for _, name := range []string{"docs.tar.xz", "docs.tar.gz", "docs.xml"} {
		t.Run(name, func(t *testing.T) {
			src, _ := newGlobals(t)
			initDoc(t, src, "one", "Jag gilar katt . ")
			initDoc(t, src, "two", "apa bepa ")
			if err := (&SetTargetCmd{Document: "one", Text: "Jag gillar katter . "}).Run(src); err != nil {
				t.Fatal(err)
			}
			if err := (&RearrangeCmd{Document: "two", Begin: 1, End: 1, Dest: 0}).Run(src); err != nil {
				t.Fatal(err)
			}

			path := filepath.Join(t.TempDir(), name)
			if err := (&ExportCmd{Out: path}).Run(src); err != nil {
				t.Fatalf("ExportCmd.Run() error = %v", err)
			}

			dst, out := newGlobals(t)
			if err := (&ImportCmd{Path: path, Prefix: "copy-"}).Run(dst); err != nil {
				t.Fatalf("ImportCmd.Run() error = %v", err)
			}
			if want := "imported copy-one revision 1\nimported copy-two revision 1\n"; out.String() != want {
				t.Errorf("import output = %q, want %q", out.String(), want)
			}

			for _, doc := range []string{"one", "two"} {
				want, err := src.latest(t.Context(), doc)
				if err != nil {
					t.Fatal(err)
				}
				got, err := dst.latest(t.Context(), "copy-"+doc)
				if err != nil {
					t.Fatal(err)
				}
				if got.Hash != want.Hash {
					t.Errorf("%s: imported graph %q differs from exported %q",
						doc, syntax.Format(got.Graph), syntax.Format(want.Graph))
				}
			}
		})
	}
}

func TestExportCmd_Run_MissingDocument(t *testing.T) {
	g, _ := newGlobals(t)
	err := (&ExportCmd{Out: filepath.Join(t.TempDir(), "x.tar.xz"), Documents: []string{"nope"}}).Run(g)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("ExportCmd.Run() error = %v, want ErrNotFound", err)
	}
}

func TestServeCmd_Run_MissingDocument(t *testing.T) {
	g, _ := newGlobals(t)
	if err := (&ServeCmd{Document: "nope", Addr: "127.0.0.1:0"}).Run(g); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("ServeCmd.Run() error = %v, want ErrNotFound", err)
	}
}

func TestVersionCmd_Run(t *testing.T) {
	g, out := newGlobals(t)
	if err := (&VersionCmd{}).Run(g); err != nil {
		t.Fatalf("VersionCmd.Run() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "rectify version "+version) {
		t.Errorf("output = %q", out.String())
	}
}

// Tests for flag parsing

func TestParse(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("rectify"), kong.Exit(func(int) {}))
	if err != nil {
		t.Fatalf("kong.New() error = %v", err)
	}

	ctx, err := parser.Parse([]string{"--db", "x.db", "edit", "modify", "essay", "2", "3", "hundar ", "--tokens", "--source"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !strings.HasPrefix(ctx.Command(), "edit modify") {
		t.Errorf("Command() = %q", ctx.Command())
	}
	m := cli.Edit.Modify
	if m.Document != "essay" || m.From != 2 || m.To != 3 || m.Text != "hundar " || !m.Tokens || !m.Source {
		t.Errorf("parsed modify = %+v", m)
	}
	if !strings.HasSuffix(cli.DB, "x.db") {
		t.Errorf("DB = %q", cli.DB)
	}
	if cli.LogLevel != "warn" || cli.LogFormat != "text" {
		t.Errorf("log flags = %q %q, want defaults", cli.LogLevel, cli.LogFormat)
	}

	if _, err := parser.Parse([]string{"edit", "connect", "essay", "e-s0-t0", "e-s1-t1"}); err != nil {
		t.Fatalf("Parse(connect) error = %v", err)
	}
	if got := cli.Edit.Connect.Edges; len(got) != 2 || got[1] != "e-s1-t1" {
		t.Errorf("connect edges = %v", got)
	}
}
