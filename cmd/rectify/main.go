// Command rectify edits aligned learner texts.
// It keeps documents in a revision database and provides commands for
// editing, inspecting, importing, exporting and serving them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/Rectify/core/corpus"
	"github.com/FocuswithJustin/Rectify/core/diff"
	"github.com/FocuswithJustin/Rectify/core/errors"
	"github.com/FocuswithJustin/Rectify/core/graph"
	"github.com/FocuswithJustin/Rectify/core/segment"
	"github.com/FocuswithJustin/Rectify/core/syntax"
	"github.com/FocuswithJustin/Rectify/internal/api"
	"github.com/FocuswithJustin/Rectify/internal/archive"
	"github.com/FocuswithJustin/Rectify/internal/logging"
	"github.com/FocuswithJustin/Rectify/internal/session"
	"github.com/FocuswithJustin/Rectify/internal/sqlite"
	"github.com/FocuswithJustin/Rectify/internal/store"
	"github.com/FocuswithJustin/Rectify/internal/validation"
)

const version = "0.1.0"

// Globals are the flags shared by every command.
type Globals struct {
	LogLevel  string `name:"log-level" help:"Log level" default:"warn" enum:"debug,info,warn,error" env:"RECTIFY_LOG_LEVEL"`
	LogFormat string `name:"log-format" help:"Log format" default:"text" enum:"text,json" env:"RECTIFY_LOG_FORMAT"`
	DB        string `name:"db" help:"Revision database path" default:"rectify.db" type:"path" env:"RECTIFY_DB"`

	out io.Writer `kong:"-"`
}

// CLI defines the command-line interface for rectify.
type CLI struct {
	Globals

	Init      InitCmd      `cmd:"" help:"Create a document from a source text"`
	Edit      EditGroup    `cmd:"" help:"Apply an edit to a document"`
	Show      ShowCmd      `cmd:"" help:"Print a document in compact syntax"`
	Diff      DiffCmd      `cmd:"" help:"Show the corrections of a document"`
	Check     CheckCmd     `cmd:"" help:"Validate a document or compact syntax file"`
	Sentences SentencesCmd `cmd:"" help:"List the sentence units of a document"`
	History   HistoryCmd   `cmd:"" help:"List the revisions of a document"`
	List      ListCmd      `cmd:"" help:"List stored documents"`
	Delete    DeleteCmd    `cmd:"" help:"Delete a document and its history"`
	Import    ImportCmd    `cmd:"" help:"Import an XML corpus or a bundle"`
	Export    ExportCmd    `cmd:"" help:"Export documents to a bundle or an XML corpus"`
	Serve     ServeCmd     `cmd:"" help:"Serve a document for live editing"`
	Version   VersionCmd   `cmd:"" help:"Print version information"`
}

func (g *Globals) stdout() io.Writer {
	if g.out == nil {
		return os.Stdout
	}
	return g.out
}

func (g *Globals) printf(format string, args ...any) {
	fmt.Fprintf(g.stdout(), format, args...)
}

func (g *Globals) openStore() (*store.Store, error) {
	if err := validation.Path(g.DB); err != nil {
		return nil, err
	}
	return store.Open(g.DB)
}

// latest loads the newest revision of doc.
func (g *Globals) latest(ctx context.Context, doc string) (store.Revision, error) {
	st, err := g.openStore()
	if err != nil {
		return store.Revision{}, err
	}
	defer st.Close()
	return st.Latest(ctx, doc)
}

// readText returns the literal text, the contents of file, or stdin.
func readText(text, file string) (string, error) {
	switch {
	case text != "":
		return text, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", errors.NewIO("read", file, err)
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", errors.NewIO("read", "stdin", err)
		}
		return string(data), nil
	}
}

func joinTokens(tokens []graph.Token) string {
	return strings.Join(graph.Texts(tokens), "")
}

func labelSet(labels []string) diff.LabelPredicate {
	return func(l string) bool { return slices.Contains(labels, l) }
}

// InitCmd creates a document.
type InitCmd struct {
	Document string `arg:"" help:"Document name"`
	Text     string `arg:"" optional:"" help:"Source text (default: --file or stdin)"`
	File     string `help:"Read the source text from a file" type:"existingfile"`
	Manual   bool   `help:"Mark the initial alignment as manual"`
}

func (c *InitCmd) Run(g *Globals) error {
	ctx := context.Background()
	text, err := readText(c.Text, c.File)
	if err != nil {
		return err
	}
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.Latest(ctx, c.Document); err == nil {
		return errors.NewValidation("document", c.Document+" already exists")
	} else if !errors.Is(err, errors.ErrNotFound) {
		return err
	}
	rev, _, err := st.Save(ctx, c.Document, "init", graph.Init(text, c.Manual))
	if err != nil {
		return err
	}
	g.printf("%s revision %d: %d tokens\n", c.Document, rev.Seq, len(rev.Graph.Source))
	return nil
}

// ShowCmd prints a document.
type ShowCmd struct {
	Document string `arg:"" help:"Document name"`
	Seq      int    `help:"Revision to show (default: latest)" default:"-1"`
	Text     bool   `help:"Print the source and target texts instead"`
}

func (c *ShowCmd) Run(g *Globals) error {
	rev, err := revisionOf(g, c.Document, c.Seq)
	if err != nil {
		return err
	}
	if c.Text {
		g.printf("source: %s\ntarget: %s\n", graph.SourceText(rev.Graph), graph.TargetText(rev.Graph))
		return nil
	}
	g.printf("%s\n", syntax.Format(rev.Graph))
	return nil
}

// revisionOf loads revision seq of doc, or the latest for a negative seq.
func revisionOf(g *Globals, doc string, seq int) (store.Revision, error) {
	ctx := context.Background()
	if seq < 0 {
		return g.latest(ctx, doc)
	}
	st, err := g.openStore()
	if err != nil {
		return store.Revision{}, err
	}
	defer st.Close()
	return st.Revision(ctx, doc, seq)
}

// DiffCmd prints the diff of a document.
type DiffCmd struct {
	Document    string   `arg:"" help:"Document name"`
	Seq         int      `help:"Revision to diff (default: latest)" default:"-1"`
	OrderLabels []string `name:"order-labels" help:"Labels marking deliberate word order changes" default:"WO"`
	JSON        bool     `help:"Output as JSON"`
}

func (c *DiffCmd) Run(g *Globals) error {
	rev, err := revisionOf(g, c.Document, c.Seq)
	if err != nil {
		return err
	}
	records := diff.Records(diff.CalculateDiff(rev.Graph, labelSet(c.OrderLabels)))

	if c.JSON {
		enc := json.NewEncoder(g.stdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	for _, r := range records {
		switch r.Kind {
		case diff.KindDragged:
			g.printf("dragged %s: %q\n", r.Edge, joinTokens(r.Source))
		case diff.KindDropped:
			g.printf("dropped %s: %q\n", r.Edge, joinTokens(r.Target))
		default:
			src, tgt := joinTokens(r.Source), joinTokens(r.Target)
			if src == tgt {
				continue
			}
			g.printf("edited  %s: %q -> %q\n", r.Edge, src, tgt)
		}
	}
	return nil
}

// CheckCmd validates the alignment invariants of a graph.
type CheckCmd struct {
	Document string `arg:"" optional:"" help:"Document name"`
	File     string `help:"Check a compact syntax file instead" type:"existingfile"`
}

func (c *CheckCmd) Run(g *Globals) error {
	if c.File != "" {
		data, err := os.ReadFile(c.File)
		if err != nil {
			return errors.NewIO("read", c.File, err)
		}
		if _, err := syntax.Parse(strings.TrimSpace(string(data))); err != nil {
			return err
		}
		g.printf("%s: ok\n", c.File)
		return nil
	}
	if c.Document == "" {
		return errors.NewValidation("document", "a document or --file is required")
	}
	rev, err := g.latest(context.Background(), c.Document)
	if err != nil {
		return err
	}
	if err := graph.CheckInvariant(rev.Graph); err != nil {
		return err
	}
	g.printf("%s revision %d: ok\n", c.Document, rev.Seq)
	return nil
}

// SentencesCmd lists sentence units.
type SentencesCmd struct {
	Document string `arg:"" help:"Document name"`
}

func (c *SentencesCmd) Run(g *Globals) error {
	rev, err := g.latest(context.Background(), c.Document)
	if err != nil {
		return err
	}
	gr := rev.Graph
	for i, u := range segment.AllSentences(gr) {
		g.printf("%d\t%q\t%q\n", i,
			joinTokens(gr.Source[u.Source.Begin:u.Source.End]),
			joinTokens(gr.Target[u.Target.Begin:u.Target.End]))
	}
	return nil
}

// HistoryCmd lists revisions.
type HistoryCmd struct {
	Document string `arg:"" help:"Document name"`
	JSON     bool   `help:"Output as JSON"`
}

func (c *HistoryCmd) Run(g *Globals) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	revs, err := st.History(context.Background(), c.Document)
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(g.stdout())
		enc.SetIndent("", "  ")
		return enc.Encode(revs)
	}
	for _, r := range revs {
		g.printf("%d\t%-20s\t%s\t%s\n", r.Seq, r.Op, r.CreatedAt.Format(time.RFC3339), r.Hash[:12])
	}
	return nil
}

// ListCmd lists documents.
type ListCmd struct{}

func (c *ListCmd) Run(g *Globals) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	docs, err := st.Documents(context.Background())
	if err != nil {
		return err
	}
	for _, d := range docs {
		g.printf("%s\n", d)
	}
	return nil
}

// DeleteCmd removes a document.
type DeleteCmd struct {
	Document string `arg:"" help:"Document name"`
}

func (c *DeleteCmd) Run(g *Globals) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Delete(context.Background(), c.Document); err != nil {
		return err
	}
	g.printf("deleted %s\n", c.Document)
	return nil
}

// ImportCmd imports documents from a bundle or an XML corpus, told apart
// by their content.
type ImportCmd struct {
	Path   string `arg:"" help:"Corpus XML file or bundle" type:"existingfile"`
	Filter string `help:"XPath expression selecting essays" default:"//essay"`
	Prefix string `help:"Prefix for imported document names"`
}

func (c *ImportCmd) Run(g *Globals) error {
	docs, err := c.load()
	if err != nil {
		return err
	}
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	for _, d := range docs {
		name := c.Prefix + d.Name
		rev, changed, err := st.Save(ctx, name, "import", d.Graph)
		if err != nil {
			return errors.Wrapf(err, "import %s", name)
		}
		status := "imported"
		if !changed {
			status = "unchanged"
		}
		g.printf("%s %s revision %d\n", status, name, rev.Seq)
	}
	return nil
}

func (c *ImportCmd) load() ([]archive.Document, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, errors.NewIO("open", c.Path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.NewIO("stat", c.Path, err)
	}
	if info.Size() > validation.MaxFileSize {
		return nil, errors.NewValidation("file", fmt.Sprintf("%s is larger than %d bytes", c.Path, validation.MaxFileSize))
	}
	kind, err := validation.DetectFileType(f, c.Path)
	if err != nil {
		return nil, err
	}

	switch kind {
	case validation.FileTypeTarXZ, validation.FileTypeTarGZ:
		_, docs, err := archive.ReadBundle(c.Path)
		return docs, err
	case validation.FileTypeXML:
	default:
		return nil, &errors.UnsupportedError{Feature: "import format", Reason: string(kind)}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.NewIO("seek", c.Path, err)
	}
	essays, err := corpus.Load(f, c.Filter)
	if err != nil {
		return nil, err
	}
	docs := make([]archive.Document, len(essays))
	for i, e := range essays {
		docs[i] = archive.Document{Name: e.ID, Graph: e.Graph}
	}
	return docs, nil
}

// ExportCmd exports the latest revisions of documents. A path ending in
// .xml gets an XML corpus, anything else a bundle.
type ExportCmd struct {
	Out       string   `arg:"" help:"Output path (.tar.xz, .tar.gz or .xml)" type:"path"`
	Documents []string `arg:"" optional:"" help:"Documents to export (default: all)"`
}

func (c *ExportCmd) Run(g *Globals) error {
	if err := validation.Path(c.Out); err != nil {
		return err
	}
	ctx := context.Background()
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	names := c.Documents
	if len(names) == 0 {
		if names, err = st.Documents(ctx); err != nil {
			return err
		}
	}
	docs := make([]archive.Document, 0, len(names))
	for _, name := range names {
		rev, err := st.Latest(ctx, name)
		if err != nil {
			return err
		}
		docs = append(docs, archive.Document{Name: name, Revision: rev.Seq, Graph: rev.Graph})
	}

	if strings.HasSuffix(c.Out, ".xml") {
		if err := writeCorpus(c.Out, docs); err != nil {
			return err
		}
	} else if err := archive.WriteBundle(c.Out, docs, time.Now().UTC()); err != nil {
		return err
	}
	g.printf("exported %d documents to %s\n", len(docs), c.Out)
	return nil
}

func writeCorpus(path string, docs []archive.Document) error {
	essays := make([]corpus.Essay, len(docs))
	for i, d := range docs {
		essays[i] = corpus.Essay{ID: d.Name, Graph: d.Graph}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.NewIO("create", path, err)
	}
	if err := corpus.Write(f, essays); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ServeCmd serves one document over HTTP and WebSocket.
type ServeCmd struct {
	Document    string        `arg:"" help:"Document name"`
	Addr        string        `help:"Listen address" default:":8080" env:"RECTIFY_ADDR"`
	Check       bool          `help:"Validate every edit and report violations" env:"RECTIFY_CHECK_INVARIANTS"`
	Origins     []string      `help:"Allowed WebSocket origins (default: same host)" env:"RECTIFY_ALLOWED_ORIGINS"`
	OrderLabels []string      `name:"order-labels" help:"Labels marking deliberate word order changes" default:"WO"`
	DiffTTL     time.Duration `name:"diff-ttl" help:"Lifetime of cached diffs" default:"5m"`
}

func (c *ServeCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.Latest(ctx, c.Document); err != nil {
		return err
	}
	sess, err := session.New(ctx, graph.Empty(), session.Options{
		Store:           st,
		Document:        c.Document,
		CheckInvariants: c.Check,
	})
	if err != nil {
		return err
	}

	cfg := api.DefaultConfig()
	cfg.Addr = c.Addr
	cfg.CheckInvariants = c.Check
	cfg.AllowedOrigins = c.Origins
	cfg.OrderChangingLabels = c.OrderLabels
	cfg.DiffCacheTTL = c.DiffTTL
	return api.New(cfg, sess).ListenAndServe(ctx)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	g.printf("rectify version %s (sqlite driver %s, %s)\n", version, sqlite.DriverName(), sqlite.DriverType())
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("rectify"),
		kong.Description("Rectify - aligned learner text correction"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	logging.InitLogger(logging.ParseLevel(cli.LogLevel), logging.ParseFormat(cli.LogFormat))
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
