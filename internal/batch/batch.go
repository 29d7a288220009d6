// Package batch migrates many documents concurrently with one shared engine
// and records every outcome in the journal.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/FocuswithJustin/legacyfix/core/errors"
	"github.com/FocuswithJustin/legacyfix/core/fixer"
	"github.com/FocuswithJustin/legacyfix/core/journal"
	"github.com/FocuswithJustin/legacyfix/core/nbt"
	"github.com/FocuswithJustin/legacyfix/internal/docio"
)

// DefaultWorkers is used when Options.Workers is not positive.
const DefaultWorkers = 4

// Recorder stores migration outcomes. *journal.Journal satisfies it.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) (journal.Entry, error)
}

// Options controls one batch run.
type Options struct {
	Kind fixer.Kind
	// Source is the version documents were written at. With
	// FromDataVersion set it is only the fallback for documents lacking a
	// DataVersion field.
	Source          int
	FromDataVersion bool
	// Target of 0 means the engine's target version.
	Target int
	// OutDir receives one output file per input, under the input's base
	// name. Empty rewrites inputs in place.
	OutDir  string
	Workers int
	// Progress, when set, is called once per finished document. Calls are
	// serialized.
	Progress func(done, total int, r Result)
}

// Result is the outcome for one document.
type Result struct {
	Path     string        `json:"path"`
	Output   string        `json:"output,omitempty"`
	Changed  bool          `json:"changed"`
	BytesIn  int64         `json:"bytes_in"`
	BytesOut int64         `json:"bytes_out"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Summary aggregates a batch run.
type Summary struct {
	Files    int
	Changed  int
	Failed   int
	BytesIn  int64
	BytesOut int64
	Duration time.Duration
	Results  []Result
}

func (s Summary) String() string {
	return fmt.Sprintf("%s files, %s changed, %s failed, %s in, %s out, %s",
		humanize.Comma(int64(s.Files)), humanize.Comma(int64(s.Changed)), humanize.Comma(int64(s.Failed)),
		humanize.Bytes(uint64(s.BytesIn)), humanize.Bytes(uint64(s.BytesOut)),
		s.Duration.Round(time.Millisecond))
}

// Runner migrates documents with a shared engine.
type Runner struct {
	Engine *fixer.Engine
	// Journal may be nil.
	Journal Recorder
	Logger  *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Fix migrates doc and records the outcome under name. It returns the
// migrated document and whether it differs from the input.
func (r *Runner) Fix(ctx context.Context, kind fixer.Kind, doc *nbt.Document, source, target int, name string) (*nbt.Document, bool, error) {
	if target == 0 {
		target = r.Engine.TargetVersion()
	}
	start := time.Now()
	inDigest := journal.Digest(doc)
	out, err := r.Engine.Update(kind, doc, source, target)

	entry := journal.Entry{
		Kind:          kind.String(),
		SourceVersion: source,
		TargetVersion: target,
		InputDigest:   inDigest,
		Path:          name,
	}
	var changed bool
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.OutputDigest = journal.Digest(out)
		changed = entry.OutputDigest != inDigest
		entry.Changed = changed
	}
	entry.Duration = time.Since(start)

	if r.Journal != nil {
		if _, jerr := r.Journal.Record(ctx, entry); jerr != nil {
			r.logger().Warn("journal record failed", "path", name, "error", jerr)
		}
	}
	return out, changed, err
}

// Run migrates every file in paths. A failing file is reported in its
// Result and does not stop the others; only cancellation of ctx aborts the
// run.
func (r *Runner) Run(ctx context.Context, paths []string, opts Options) (Summary, error) {
	start := time.Now()
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]Result, len(paths))
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.runFile(gctx, path, opts)
			if results[i].Err != nil {
				r.logger().Warn("migration failed", "path", path, "error", results[i].Err)
			}
			if opts.Progress != nil {
				mu.Lock()
				done++
				opts.Progress(done, len(paths), results[i])
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()

	s := Summary{Files: len(paths), Results: results, Duration: time.Since(start)}
	for _, res := range results {
		s.BytesIn += res.BytesIn
		s.BytesOut += res.BytesOut
		switch {
		case res.Err != nil:
			s.Failed++
		case res.Changed:
			s.Changed++
		}
	}
	return s, err
}

func (r *Runner) runFile(ctx context.Context, path string, opts Options) Result {
	start := time.Now()
	res := Result{Path: path}
	if info, err := os.Stat(path); err == nil {
		res.BytesIn = info.Size()
	}

	doc, format, err := docio.ReadDocument(path)
	if err != nil {
		res.Err = err
		return res
	}

	source := opts.Source
	if opts.FromDataVersion {
		source = int(doc.GetIntOr("DataVersion", int32(opts.Source)))
	}
	out, changed, err := r.Fix(ctx, opts.Kind, doc, source, opts.Target, path)
	if err != nil {
		res.Err = err
		return res
	}
	res.Changed = changed

	res.Output = path
	if opts.OutDir != "" {
		res.Output = filepath.Join(opts.OutDir, filepath.Base(path))
	}
	if err := docio.WriteDocument(res.Output, out, format); err != nil {
		res.Err = errors.Wrapf(err, "write %s", res.Output)
		return res
	}
	if info, err := os.Stat(res.Output); err == nil {
		res.BytesOut = info.Size()
	}
	res.Duration = time.Since(start)
	return res
}
