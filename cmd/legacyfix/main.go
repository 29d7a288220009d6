// Command legacyfix migrates legacy game-save documents to current data
// versions. It runs single fixes, batches, chunk preparation and the REST
// API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"

	"github.com/FocuswithJustin/legacyfix/core/cache"
	"github.com/FocuswithJustin/legacyfix/core/chunkstore"
	"github.com/FocuswithJustin/legacyfix/core/fixer"
	"github.com/FocuswithJustin/legacyfix/core/journal"
	"github.com/FocuswithJustin/legacyfix/core/sqlite"
	"github.com/FocuswithJustin/legacyfix/internal/api"
	"github.com/FocuswithJustin/legacyfix/internal/batch"
	"github.com/FocuswithJustin/legacyfix/internal/config"
	"github.com/FocuswithJustin/legacyfix/internal/docio"
	"github.com/FocuswithJustin/legacyfix/internal/logging"
)

const version = "0.1.0"

// CLI defines the command-line interface for legacyfix.
type CLI struct {
	// Global flags
	Config    string `help:"Config file path" type:"path"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Log format (text, json)"`

	Fix     FixCmd       `cmd:"" help:"Migrate one document"`
	Value   ValueCmd     `cmd:"" help:"Migrate a bare identifier"`
	Chunk   ChunkCmd     `cmd:"" help:"Prepare a chunk for the current data version"`
	Batch   BatchCmd     `cmd:"" help:"Migrate many documents concurrently"`
	Tables  TablesCmd    `cmd:"" help:"List legacy lookup tables"`
	Journal JournalGroup `cmd:"" help:"Migration journal operations"`
	Serve   ServeCmd     `cmd:"" help:"Start REST API server"`
	Version VersionCmd   `cmd:"" help:"Print version information"`
}

// Env is passed to every command.
type Env struct {
	Config *config.Config
	Out    io.Writer
}

// NewEnv loads configuration and applies the global flags over it.
func NewEnv(cli *CLI, out io.Writer) (*Env, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Log.Format = cli.LogFormat
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	logging.InitLogger(level, format)
	return &Env{Config: cfg, Out: out}, nil
}

func (e *Env) engine() (*fixer.Engine, error) {
	cfg := e.Config.EngineConfig()
	cfg.Logger = logging.GetLogger()
	return fixer.New(cfg)
}

// openJournal opens path, or the configured journal when path is empty.
// It returns nil when neither is set.
func (e *Env) openJournal(path string) (*journal.Journal, error) {
	if path == "" {
		path = e.Config.Journal.Path
	}
	if path == "" {
		return nil, nil
	}
	return journal.Open(path)
}

// runner builds a batch runner, attaching the journal only when one is open.
func (e *Env) runner(engine *fixer.Engine, j *journal.Journal) *batch.Runner {
	r := &batch.Runner{Engine: engine, Logger: logging.GetLogger()}
	if j != nil {
		r.Journal = j
	}
	return r
}

// FixCmd migrates a single document file.
type FixCmd struct {
	Path        string `arg:"" help:"Document file (SNBT or binary, optionally compressed)" type:"existingfile"`
	Kind        string `required:"" help:"Document kind (Entity, ItemInstance, Chunk, ...)"`
	From        int    `default:"-1" help:"Source data version (-1 reads DataVersion from the document)"`
	To          int    `help:"Target data version (default from config)"`
	Out         string `help:"Output file (default stdout as SNBT)" type:"path"`
	Format      string `help:"Output format: snbt or binary (default same as input)"`
	JournalPath string `name:"journal" help:"Journal database path" type:"path"`
}

func (c *FixCmd) Run(env *Env) error {
	kind, err := fixer.ParseKind(c.Kind)
	if err != nil {
		return err
	}
	doc, format, err := docio.ReadDocument(c.Path)
	if err != nil {
		return err
	}
	if c.Format != "" {
		if format, err = docio.ParseFormat(c.Format); err != nil {
			return err
		}
	}
	source := c.From
	if source == fixer.UnknownVersion {
		source = int(doc.GetIntOr("DataVersion", fixer.UnknownVersion))
	}

	engine, err := env.engine()
	if err != nil {
		return err
	}
	j, err := env.openJournal(c.JournalPath)
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
	}

	out, changed, err := env.runner(engine, j).Fix(context.Background(), kind, doc, source, c.To, c.Path)
	if err != nil {
		return err
	}
	logging.Debug("document fixed", "path", c.Path, "kind", kind, "from", source, "changed", changed)

	if c.Out == "" {
		return docio.Write(env.Out, out, docio.SNBT)
	}
	if err := docio.WriteDocument(c.Out, out, format); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "%s -> %s (changed: %v)\n", c.Path, c.Out, changed)
	return nil
}

// ValueCmd migrates a block state, item name or biome id.
type ValueCmd struct {
	ValueKind string `arg:"" help:"Value kind (BlockState, ItemType, Biome)"`
	Value     string `arg:"" help:"Value to migrate"`
	From      int    `required:"" help:"Source data version"`
	To        int    `help:"Target data version (default from config)"`
}

func (c *ValueCmd) Run(env *Env) error {
	kind, err := fixer.ParseValueKind(c.ValueKind)
	if err != nil {
		return err
	}
	engine, err := env.engine()
	if err != nil {
		return err
	}
	target := c.To
	if target == 0 {
		target = engine.TargetVersion()
	}
	out, err := engine.UpdateValue(kind, c.Value, c.From, target)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Out, out)
	return nil
}

// ChunkCmd prepares a binary chunk document the way a chunk loader would.
type ChunkCmd struct {
	Path    string `arg:"" help:"Binary chunk file, optionally compressed" type:"existingfile"`
	Current int    `help:"Data version of the running loader (default target version)"`
	Out     string `help:"Write the prepared chunk to this file" type:"path"`
}

func (c *ChunkCmd) Run(env *Env) error {
	root, err := chunkstore.ReadCompound(func() (io.ReadCloser, error) {
		rc, _, err := docio.Open(c.Path)
		return rc, err
	})
	if err != nil {
		return err
	}
	engine, err := env.engine()
	if err != nil {
		return err
	}
	current := c.Current
	if current == 0 {
		current = engine.TargetVersion()
	}
	loader := &chunkstore.Loader{Fixer: engine, CurrentVersion: current, Logger: logging.GetLogger()}
	chunk, err := loader.Prepare(root)
	if err != nil {
		return err
	}

	level := chunk.Level()
	fmt.Fprintf(env.Out, "format: %s\ndata version: %d\nfixed: %v\n", chunk.Format, chunk.DataVersion, chunk.Fixed)
	if x, ok := level.GetInt("xPos"); ok {
		fmt.Fprintf(env.Out, "position: %d, %d\n", x, level.GetIntOr("zPos", 0))
	}
	if c.Out != "" {
		return docio.WriteDocument(c.Out, chunk.Root, docio.Binary)
	}
	return nil
}

// BatchCmd migrates many files with a worker pool.
type BatchCmd struct {
	Paths           []string `arg:"" help:"Document files" type:"existingfile"`
	Kind            string   `required:"" help:"Document kind"`
	From            int      `default:"-1" help:"Source data version"`
	FromDataVersion bool     `name:"from-data-version" help:"Read each document's DataVersion, falling back to --from"`
	To              int      `help:"Target data version (default from config)"`
	OutDir          string   `name:"out-dir" help:"Output directory (default rewrite in place)" type:"path"`
	Workers         int      `help:"Concurrent workers (default from config)"`
	JournalPath     string   `name:"journal" help:"Journal database path" type:"path"`
}

func (c *BatchCmd) Run(env *Env) error {
	kind, err := fixer.ParseKind(c.Kind)
	if err != nil {
		return err
	}
	engine, err := env.engine()
	if err != nil {
		return err
	}
	j, err := env.openJournal(c.JournalPath)
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
	}

	workers := c.Workers
	if workers == 0 {
		workers = env.Config.Batch.Workers
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := env.runner(engine, j).Run(ctx, c.Paths, batch.Options{
		Kind:            kind,
		Source:          c.From,
		FromDataVersion: c.FromDataVersion,
		Target:          c.To,
		OutDir:          c.OutDir,
		Workers:         workers,
	})
	for _, r := range summary.Results {
		if r.Err != nil {
			fmt.Fprintf(env.Out, "FAIL %s: %v\n", r.Path, r.Err)
		}
	}
	fmt.Fprintln(env.Out, summary)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", summary.Failed, summary.Files)
	}
	return nil
}

// TablesCmd lists the legacy tables or the entries of one.
type TablesCmd struct {
	Name string `arg:"" optional:"" help:"Table to print"`
}

func (c *TablesCmd) Run(env *Env) error {
	engine, err := env.engine()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if c.Name == "" {
		fmt.Fprintln(tw, "NAME\tKIND\tSIZE")
		for _, info := range engine.Tables().Describe() {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", info.Name, info.Kind, info.Size)
		}
		return nil
	}
	entries, err := engine.Tables().Entries(c.Name)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\n", e[0], e[1])
	}
	return nil
}

// JournalGroup contains journal operations.
type JournalGroup struct {
	List JournalListCmd `cmd:"" help:"List recorded migrations"`
}

// JournalListCmd prints recent journal entries.
type JournalListCmd struct {
	Path   string        `name:"journal" help:"Journal database path" type:"path"`
	Kind   string        `help:"Only this kind"`
	Failed bool          `help:"Only failed migrations"`
	Since  time.Duration `help:"Only entries newer than this"`
	Limit  int           `default:"20" help:"Maximum entries"`
}

func (c *JournalListCmd) Run(env *Env) error {
	path := c.Path
	if path == "" {
		path = env.Config.Journal.Path
	}
	if path == "" {
		return fmt.Errorf("no journal configured; pass --journal or set journal.path")
	}
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	f := journal.Filter{Kind: c.Kind, OnlyFailed: c.Failed, Limit: c.Limit}
	if c.Since > 0 {
		f.Since = time.Now().Add(-c.Since)
	}
	entries, err := j.List(context.Background(), f)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "WHEN\tKIND\tFROM\tTO\tCHANGED\tTOOK\tPATH\tERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%v\t%s\t%s\t%s\n",
			humanize.Time(e.CreatedAt), e.Kind, e.SourceVersion, e.TargetVersion,
			e.Changed, e.Duration, e.Path, e.Error)
	}
	return nil
}

// ServeCmd starts the REST API server.
type ServeCmd struct {
	Port      int      `help:"HTTP server port (default from config)"`
	Origins   []string `help:"Allowed CORS origins (default from config)"`
	APIKey    string   `name:"api-key" env:"LEGACYFIX_API_KEY" help:"Require this X-API-Key on requests"`
	RateLimit int      `name:"rate-limit" help:"Requests per minute per client (0 disables)"`
	Burst     int      `default:"10" help:"Rate limit burst size"`
}

func (c *ServeCmd) Run(env *Env) error {
	engine, err := env.engine()
	if err != nil {
		return err
	}
	j, err := env.openJournal("")
	if err != nil {
		return err
	}

	cfg := api.Config{
		Port:              env.Config.Server.Port,
		AllowedOrigins:    env.Config.Server.AllowedOrigins,
		RateLimitRequests: c.RateLimit,
		RateLimitBurst:    c.Burst,
		Auth:              api.AuthConfig{Enabled: c.APIKey != "", APIKey: c.APIKey},
	}
	if c.Port != 0 {
		cfg.Port = c.Port
	}
	if len(c.Origins) > 0 {
		cfg.AllowedOrigins = c.Origins
	}

	deps := api.Deps{Engine: engine, Cache: cache.NewDocumentCache(env.Config.Cache.MaxEntries, 0)}
	if j != nil {
		defer j.Close()
		deps.Journal = j
	}
	api.Version = version
	srv, err := api.New(cfg, deps)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(env *Env) error {
	info := sqlite.GetInfo()
	fmt.Fprintf(env.Out, "legacyfix version %s\n", version)
	fmt.Fprintf(env.Out, "target data version %d, legacy cutoff %d\n", env.Config.TargetVersion, env.Config.LegacyCutoff)
	fmt.Fprintf(env.Out, "sqlite driver %s (%s)\n", info.DriverName, info.DriverType)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("legacyfix"),
		kong.Description("legacyfix - migrate legacy save documents to current data versions"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	env, err := NewEnv(&cli, os.Stdout)
	ctx.FatalIfErrorf(err)
	err = ctx.Run(env)
	ctx.FatalIfErrorf(err)
}
