// Command termdoc converts rich-text markup to and from content trees,
// applies structural edits, stores document revisions and serves the
// live editing API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/termdoc/core/content"
	"github.com/FocuswithJustin/termdoc/core/editor"
	"github.com/FocuswithJustin/termdoc/core/errors"
	"github.com/FocuswithJustin/termdoc/core/markup"
	"github.com/FocuswithJustin/termdoc/core/query"
	"github.com/FocuswithJustin/termdoc/core/snapshot"
	"github.com/FocuswithJustin/termdoc/core/sqlite"
	"github.com/FocuswithJustin/termdoc/internal/api"
	"github.com/FocuswithJustin/termdoc/internal/config"
	"github.com/FocuswithJustin/termdoc/internal/store"
	"github.com/FocuswithJustin/termdoc/internal/validation"
)

const version = "0.4.0"

// CLI defines the command-line interface for termdoc.
type CLI struct {
	// Global flags
	DB string `name:"db" help:"Document database path" default:"termdoc.db" type:"path" env:"TERMDOC_DB"`

	Parse    ParseCmd   `cmd:"" help:"Parse markup into a content tree (JSON)"`
	Render   RenderCmd  `cmd:"" help:"Render a content tree (JSON) as markup"`
	Check    CheckCmd   `cmd:"" help:"Report the round-trip loss class of markup"`
	Query    QueryCmd   `cmd:"" help:"Evaluate an XPath expression against a document"`
	Edit     EditCmd    `cmd:"" help:"Apply an edit script to a document"`
	Doc      DocGroup   `cmd:"" help:"Stored document operations"`
	Snapshot SnapGroup  `cmd:"" help:"Snapshot archive operations"`
	Serve    ServeCmd   `cmd:"" help:"Start the REST and live session server"`
	Version  VersionCmd `cmd:"" help:"Print version information"`
}

// DocGroup contains stored document operations.
type DocGroup struct {
	Create  DocCreateCmd  `cmd:"" help:"Store a new document"`
	Get     DocGetCmd     `cmd:"" help:"Print a stored document"`
	List    DocListCmd    `cmd:"" help:"List stored documents"`
	Update  DocUpdateCmd  `cmd:"" help:"Store a new revision of a document"`
	History DocHistoryCmd `cmd:"" help:"List the revisions of a document"`
	Delete  DocDeleteCmd  `cmd:"" help:"Delete a document and its history"`
}

// SnapGroup contains snapshot operations.
type SnapGroup struct {
	Pack   SnapPackCmd   `cmd:"" help:"Write markup to a snapshot archive"`
	Unpack SnapUnpackCmd `cmd:"" help:"Verify a snapshot and extract its markup"`
}

// Env carries the process streams and context into commands.
type Env struct {
	Ctx    context.Context
	Stdin  io.Reader
	Stdout io.Writer
}

// readInput reads text from path, or stdin when path is "-".
func (e *Env) readInput(path string) (string, error) {
	if path == "-" {
		return validation.ReadInput(validation.Label(path), e.Stdin)
	}
	if err := validation.ValidatePath(path); err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewIO("read", path, err)
	}
	defer f.Close()
	return validation.ReadInput(path, f)
}

// writeOutput writes data to path, or stdout when path is empty or "-".
func (e *Env) writeOutput(path, data string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(e.Stdout, data)
		return err
	}
	if err := validation.ValidatePath(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

func (e *Env) printJSON(v any) error {
	enc := json.NewEncoder(e.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *Env) openStore(cli *CLI) (*store.Store, error) {
	st, err := store.Open(e.Ctx, cli.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

// openReader opens the database for commands that only read it.
func (e *Env) openReader(cli *CLI) (*store.Store, error) {
	st, err := store.OpenReadOnly(e.Ctx, cli.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

// ParseCmd parses markup into a content tree.
type ParseCmd struct {
	Input    string `arg:"" help:"Markup file, or - for stdin" default:"-"`
	Compact  bool   `help:"Write single-line JSON"`
	Warnings bool   `help:"List what the parser dropped or unwrapped"`
}

func (c *ParseCmd) Run(env *Env) error {
	m, err := env.readInput(c.Input)
	if err != nil {
		return err
	}
	tree, warnings := markup.ParseWithWarnings(m)
	if c.Compact {
		err = content.Encode(env.Stdout, tree)
	} else {
		err = content.EncodeIndent(env.Stdout, tree)
	}
	if err != nil {
		return err
	}
	if c.Warnings {
		for _, w := range warnings {
			fmt.Fprintf(env.Stdout, "warning: %s\n", w)
		}
	}
	return nil
}

// RenderCmd renders a content tree as markup.
type RenderCmd struct {
	Input string `arg:"" help:"Tree JSON file, or - for stdin" default:"-"`
	Out   string `short:"o" help:"Output path (default stdout)" type:"path"`
}

func (c *RenderCmd) Run(env *Env) error {
	data, err := env.readInput(c.Input)
	if err != nil {
		return err
	}
	tree, err := content.Decode([]byte(data))
	if err != nil {
		return fmt.Errorf("invalid tree: %w", err)
	}
	if errs := content.Structural(content.Validate(tree)); len(errs) > 0 {
		return fmt.Errorf("invalid tree: %w", errs[0])
	}
	return env.writeOutput(c.Out, markup.Serialize(tree)+"\n")
}

// CheckCmd reports how well markup survives a round trip.
type CheckCmd struct {
	Input string `arg:"" help:"Markup file, or - for stdin" default:"-"`
	Max   string `help:"Fail when the loss class is worse than this (L0, L1, L2)" default:"L2" enum:"L0,L1,L2"`
	Diff  bool   `help:"Print the canonical markup"`
}

func (c *CheckCmd) Run(env *Env) error {
	m, err := env.readInput(c.Input)
	if err != nil {
		return err
	}
	report := markup.ClassifyRoundTrip(m)
	fmt.Fprintf(env.Stdout, "%s: %s\n", report.LossClass, report.LossClass.Description())
	for _, w := range report.Warnings {
		fmt.Fprintf(env.Stdout, "  - %s\n", w)
	}
	if c.Diff && report.LossClass != content.LossL0 {
		fmt.Fprintf(env.Stdout, "canonical: %s\n", report.Canonical)
	}
	if report.LossClass.Level() > content.LossClass(c.Max).Level() {
		return fmt.Errorf("loss class %s exceeds %s", report.LossClass, c.Max)
	}
	return nil
}

// QueryCmd evaluates XPath against the projection of a document.
type QueryCmd struct {
	Expr  string `arg:"" help:"XPath expression"`
	Input string `arg:"" help:"Markup file, or - for stdin" default:"-"`
	Count bool   `help:"Print the number of matches only"`
	XML   bool   `name:"xml" help:"Print the XML projection and exit"`
}

func (c *QueryCmd) Run(env *Env) error {
	m, err := env.readInput(c.Input)
	if err != nil {
		return err
	}
	tree := markup.Parse(m)
	if c.XML {
		_, err := io.WriteString(env.Stdout, query.Format(tree, "  "))
		return err
	}
	if c.Count {
		n, err := query.Count(tree, c.Expr)
		if err != nil {
			return err
		}
		fmt.Fprintln(env.Stdout, n)
		return nil
	}
	matches, err := query.Select(tree, c.Expr)
	if err != nil {
		return err
	}
	for _, match := range matches {
		if match.Path != "" {
			fmt.Fprintf(env.Stdout, "%s\t%s\t%s\n", match.Path, match.Name, match.Text)
		} else {
			fmt.Fprintf(env.Stdout, "-\t%s\t%s\n", match.Name, match.Text)
		}
	}
	return nil
}

// EditCmd applies an edit script to markup.
type EditCmd struct {
	Input  string `arg:"" help:"Markup file, or - for stdin" default:"-"`
	Script string `short:"s" required:"" help:"Edit script file" type:"existingfile"`
	Out    string `short:"o" help:"Output path (default stdout)" type:"path"`
	Steps  bool   `help:"Print the outcome of each command"`
}

func (c *EditCmd) Run(env *Env) error {
	m, err := env.readInput(c.Input)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(c.Script)
	if err != nil {
		return errors.NewIO("read", c.Script, err)
	}
	script, err := editor.ParseScript(string(src))
	if err != nil {
		return err
	}

	doc := editor.FromMarkup(m)
	results, runErr := doc.Run(script)
	if c.Steps {
		for _, res := range results {
			line := fmt.Sprintf("%d\t%s\t%s", res.Command.Line, res.Command, res.Outcome)
			if res.Cursor != nil {
				line += "\tcursor " + res.Cursor.String()
			}
			fmt.Fprintln(env.Stdout, line)
		}
	}
	if runErr != nil {
		return runErr
	}
	return env.writeOutput(c.Out, doc.Markup()+"\n")
}

// DocCreateCmd stores a new document.
type DocCreateCmd struct {
	Title string `required:"" help:"Document title"`
	Input string `arg:"" help:"Markup file, or - for stdin" default:"-"`
}

func (c *DocCreateCmd) Run(env *Env, cli *CLI) error {
	m, err := env.readInput(c.Input)
	if err != nil {
		return err
	}
	st, err := env.openStore(cli)
	if err != nil {
		return err
	}
	defer st.Close()

	doc, err := st.Create(env.Ctx, c.Title, strings.TrimRight(m, "\n"))
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "Created: %s\n", doc.ID)
	fmt.Fprintf(env.Stdout, "  Revision: %d\n", doc.Revision)
	fmt.Fprintf(env.Stdout, "  BLAKE3: %s\n", doc.Hashes.BLAKE3)
	return nil
}

// DocGetCmd prints a stored document.
type DocGetCmd struct {
	ID   string `arg:"" help:"Document ID"`
	JSON bool   `name:"json" help:"Print the full record as JSON"`
	Tree bool   `help:"Print the content tree instead of markup"`
}

func (c *DocGetCmd) Run(env *Env, cli *CLI) error {
	st, err := env.openReader(cli)
	if err != nil {
		return err
	}
	defer st.Close()

	doc, err := st.Get(env.Ctx, c.ID)
	if err != nil {
		return err
	}
	switch {
	case c.JSON:
		return env.printJSON(doc)
	case c.Tree:
		return content.EncodeIndent(env.Stdout, markup.Parse(doc.Markup))
	default:
		_, err := fmt.Fprintln(env.Stdout, doc.Markup)
		return err
	}
}

// DocListCmd lists stored documents.
type DocListCmd struct{}

func (c *DocListCmd) Run(env *Env, cli *CLI) error {
	st, err := env.openReader(cli)
	if err != nil {
		return err
	}
	defer st.Close()

	docs, err := st.List(env.Ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(env.Stdout, "No documents")
		return nil
	}
	fmt.Fprintf(env.Stdout, "%-36s  %4s  %-12s  %-20s  %s\n", "ID", "REV", "HASH", "UPDATED", "TITLE")
	for _, d := range docs {
		fmt.Fprintf(env.Stdout, "%-36s  %4d  %-12s  %-20s  %s\n",
			d.ID, d.Revision, d.Hashes.Short(), d.UpdatedAt.UTC().Format("2006-01-02 15:04:05"), d.Title)
	}
	return nil
}

// DocUpdateCmd stores a new revision.
type DocUpdateCmd struct {
	ID    string `arg:"" help:"Document ID"`
	Input string `arg:"" help:"Markup file, or - for stdin" default:"-"`
}

func (c *DocUpdateCmd) Run(env *Env, cli *CLI) error {
	m, err := env.readInput(c.Input)
	if err != nil {
		return err
	}
	st, err := env.openStore(cli)
	if err != nil {
		return err
	}
	defer st.Close()

	doc, changed, err := st.Update(env.Ctx, c.ID, strings.TrimRight(m, "\n"))
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintf(env.Stdout, "Unchanged: %s (revision %d)\n", doc.ID, doc.Revision)
		return nil
	}
	fmt.Fprintf(env.Stdout, "Updated: %s (revision %d)\n", doc.ID, doc.Revision)
	return nil
}

// DocHistoryCmd lists the revisions of a document.
type DocHistoryCmd struct {
	ID string `arg:"" help:"Document ID"`
}

func (c *DocHistoryCmd) Run(env *Env, cli *CLI) error {
	st, err := env.openReader(cli)
	if err != nil {
		return err
	}
	defer st.Close()

	revs, err := st.History(env.Ctx, c.ID)
	if err != nil {
		return err
	}
	for _, r := range revs {
		fmt.Fprintf(env.Stdout, "%4d  %s  %s  %d bytes\n",
			r.Number, r.Hashes.Short(), r.CreatedAt.UTC().Format("2006-01-02 15:04:05"), len(r.Markup))
	}
	return nil
}

// DocDeleteCmd deletes a document.
type DocDeleteCmd struct {
	ID string `arg:"" help:"Document ID"`
}

func (c *DocDeleteCmd) Run(env *Env, cli *CLI) error {
	st, err := env.openStore(cli)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Delete(env.Ctx, c.ID); err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "Deleted: %s\n", c.ID)
	return nil
}

// SnapPackCmd writes a snapshot archive from a markup file or a stored
// document.
type SnapPackCmd struct {
	Input       string `arg:"" optional:"" help:"Markup file, or - for stdin"`
	Doc         string `help:"Snapshot a stored document instead of a file"`
	Out         string `short:"o" required:"" help:"Output archive path" type:"path"`
	Title       string `help:"Title recorded in the manifest"`
	Compression string `help:"Compression algorithm" default:"xz" enum:"xz,gzip"`
}

func (c *SnapPackCmd) Run(env *Env, cli *CLI) error {
	var snap *snapshot.Snapshot
	switch {
	case c.Doc != "":
		st, err := env.openReader(cli)
		if err != nil {
			return err
		}
		defer st.Close()
		doc, err := st.Get(env.Ctx, c.Doc)
		if err != nil {
			return err
		}
		snap = snapshot.New(doc.Markup)
		snap.Manifest.Title = doc.Title
		snap.Manifest.DocumentID = doc.ID
		snap.Manifest.Revision = doc.Revision
	case c.Input != "":
		m, err := env.readInput(c.Input)
		if err != nil {
			return err
		}
		snap = snapshot.New(strings.TrimRight(m, "\n"))
	default:
		return errors.NewValidation("input", "a markup file or --doc is required")
	}
	if c.Title != "" {
		snap.Manifest.Title = c.Title
	}

	opts := &snapshot.PackOptions{Compression: snapshot.CompressionType(c.Compression)}
	if err := snapshot.PackFile(c.Out, snap, opts); err != nil {
		return fmt.Errorf("failed to pack snapshot: %w", err)
	}
	fmt.Fprintf(env.Stdout, "Created: %s\n", c.Out)
	fmt.Fprintf(env.Stdout, "  SHA-256: %s\n", snap.Manifest.Hashes.SHA256)
	fmt.Fprintf(env.Stdout, "  BLAKE3: %s\n", snap.Manifest.Hashes.BLAKE3)
	fmt.Fprintf(env.Stdout, "  Blocks: %d\n", snap.Manifest.Blocks)
	return nil
}

// SnapUnpackCmd verifies a snapshot and extracts its markup.
type SnapUnpackCmd struct {
	Archive  string `arg:"" help:"Snapshot archive" type:"existingfile"`
	Out      string `short:"o" help:"Write markup here (default stdout)" type:"path"`
	Manifest bool   `help:"Print the manifest instead of the markup"`
	Import   bool   `help:"Store the markup as a new document"`
}

func (c *SnapUnpackCmd) Run(env *Env, cli *CLI) error {
	snap, err := snapshot.UnpackFile(c.Archive)
	if err != nil {
		return fmt.Errorf("failed to unpack snapshot: %w", err)
	}
	if c.Import {
		st, err := env.openStore(cli)
		if err != nil {
			return err
		}
		defer st.Close()
		title := snap.Manifest.Title
		if title == "" {
			title = "Imported snapshot"
		}
		doc, err := st.Create(env.Ctx, title, snap.Markup)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, "Imported: %s\n", doc.ID)
		return nil
	}
	if c.Manifest {
		return env.printJSON(snap.Manifest)
	}
	return env.writeOutput(c.Out, snap.Markup+"\n")
}

// ServeCmd starts the API server.
type ServeCmd struct {
	Config    string   `short:"c" help:"YAML configuration file" type:"existingfile"`
	Port      *int     `help:"HTTP server port (overrides config)"`
	Origins   []string `name:"origin" help:"Allowed origin for CORS and websockets (repeatable)"`
	LogLevel  string   `help:"Log level: debug, info, warn, error (overrides config)"`
	LogFormat string   `help:"Log format: json, text (overrides config)"`
}

// config loads the file (if any) and applies flag overrides. The global
// --db flag wins over the file only when set explicitly.
func (c *ServeCmd) config(cli *CLI, dbSet bool) (config.Config, error) {
	cfg := config.Default()
	if c.Config != "" {
		loaded, err := config.Load(c.Config)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if c.Port != nil {
		cfg.Port = *c.Port
	}
	if dbSet || c.Config == "" {
		cfg.Database = cli.DB
	}
	if len(c.Origins) > 0 {
		cfg.AllowedOrigins = c.Origins
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Log.Format = c.LogFormat
	}
	return cfg, cfg.Validate()
}

func (c *ServeCmd) Run(env *Env, cli *CLI, kctx *kong.Context) error {
	cfg, err := c.config(cli, flagSet(kctx, "db"))
	if err != nil {
		return err
	}
	if err := cfg.InitLogging(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(env.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	srv := api.New(cfg, st)
	srv.Version = version
	return srv.ListenAndServe(ctx)
}

func flagSet(kctx *kong.Context, name string) bool {
	for _, flag := range kctx.Flags() {
		if flag.Name == name && flag.Set {
			return true
		}
	}
	return false
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(env *Env) error {
	fmt.Fprintf(env.Stdout, "termdoc version %s\n", version)
	fmt.Fprintf(env.Stdout, "  snapshot format: %s\n", snapshot.Version)
	info := sqlite.GetInfo()
	fmt.Fprintf(env.Stdout, "  sqlite driver: %s (%s, %s)\n", info.DriverName, info.DriverType, info.Package)
	return nil
}

// newParser builds the kong parser writing help and errors to the given
// streams.
func newParser(cli *CLI, stdout, stderr io.Writer, exit func(int)) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("termdoc"),
		kong.Description("termdoc - rich-text markup and content tree converter"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Writers(stdout, stderr),
		kong.Exit(exit),
	)
}

// run parses args and executes the selected command.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, exit func(int)) error {
	var cli CLI
	parser, err := newParser(&cli, stdout, stderr, exit)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	env := &Env{Ctx: ctx, Stdin: stdin, Stdout: stdout}
	return kctx.Run(env, &cli)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Exit); err != nil {
		fmt.Fprintf(os.Stderr, "termdoc: error: %v\n", err)
		os.Exit(1)
	}
}
