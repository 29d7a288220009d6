package batch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/FocuswithJustin/legacyfix/core/fixer"
	"github.com/FocuswithJustin/legacyfix/core/journal"
	"github.com/FocuswithJustin/legacyfix/internal/docio"
)

type memRecorder struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (m *memRecorder) Record(_ context.Context, e journal.Entry) (journal.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return e, nil
}

func newRunner(t *testing.T, rec Recorder) *Runner {
	t.Helper()
	e, err := fixer.New(fixer.DefaultConfig())
	if err != nil {
		t.Fatalf("fixer.New() error = %v", err)
	}
	return &Runner{Engine: e, Journal: rec}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
	return path
}

func TestRun(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	paths := []string{
		writeFile(t, in, "horse.snbt", `{id:"EntityHorse",Type:1}`),
		writeFile(t, in, "modern.snbt", `{id:"minecraft:pig"}`),
		writeFile(t, in, "broken.snbt", `{id:`),
	}

	rec := &memRecorder{}
	r := newRunner(t, rec)
	var progress []int
	s, err := r.Run(context.Background(), paths, Options{
		Kind:    fixer.Entity,
		Source:  100,
		OutDir:  out,
		Workers: 2,
		Progress: func(done, total int, _ Result) {
			if total != 3 {
				t.Errorf("Progress total = %d, want 3", total)
			}
			progress = append(progress, done)
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if s.Files != 3 || s.Changed != 1 || s.Failed != 1 {
		t.Errorf("Summary = files %d changed %d failed %d, want 3/1/1", s.Files, s.Changed, s.Failed)
	}
	if len(progress) != 3 || progress[2] != 3 {
		t.Errorf("progress = %v", progress)
	}
	if s.Results[2].Err == nil {
		t.Error("broken file reported no error")
	}
	if s.BytesIn == 0 || s.BytesOut == 0 {
		t.Errorf("bytes in/out = %d/%d", s.BytesIn, s.BytesOut)
	}

	doc, format, err := docio.ReadDocument(filepath.Join(out, "horse.snbt"))
	if err != nil {
		t.Fatalf("ReadDocument() error = %v", err)
	}
	if format != docio.SNBT {
		t.Errorf("output format = %v, want SNBT", format)
	}
	if id := doc.GetStringOr("id", ""); id != "minecraft:donkey" {
		t.Errorf("migrated id = %q, want minecraft:donkey", id)
	}
	if _, err := os.Stat(filepath.Join(out, "broken.snbt")); !os.IsNotExist(err) {
		t.Errorf("broken input produced an output file: %v", err)
	}

	// The parse failure happens before migration, so only two entries.
	if len(rec.entries) != 2 {
		t.Fatalf("journal entries = %d, want 2", len(rec.entries))
	}
	for _, e := range rec.entries {
		if e.Kind != "Entity" || e.SourceVersion != 100 || e.TargetVersion != fixer.DefaultTargetVersion {
			t.Errorf("entry = %+v", e)
		}
		if e.InputDigest == "" || e.OutputDigest == "" {
			t.Errorf("entry digests missing: %+v", e)
		}
	}
}

func TestRunFromDataVersion(t *testing.T) {
	in := t.TempDir()
	paths := []string{
		writeFile(t, in, "old.snbt", `{id:"EntityHorse",Type:2,DataVersion:100}`),
		writeFile(t, in, "new.snbt", `{id:"EntityHorse",Type:2,DataVersion:4435}`),
	}
	r := newRunner(t, nil)
	s, err := r.Run(context.Background(), paths, Options{Kind: fixer.Entity, FromDataVersion: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if s.Changed != 1 || s.Failed != 0 {
		t.Errorf("Summary = %+v", s)
	}

	old, _, _ := docio.ReadDocument(paths[0])
	if id := old.GetStringOr("id", ""); id != "minecraft:mule" {
		t.Errorf("in-place id = %q, want minecraft:mule", id)
	}
	current, _, _ := docio.ReadDocument(paths[1])
	if id := current.GetStringOr("id", ""); id != "EntityHorse" {
		t.Errorf("current-version id = %q, want unchanged", id)
	}
}

func TestRunBinaryGzip(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := filepath.Join(in, "horse.dat")

	r := newRunner(t, nil)
	doc, _, err := docio.Read(strings.NewReader(`{id:"EntityHorse",Type:1}`))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if err := docio.WriteDocument(src, doc, docio.Binary); err != nil {
		t.Fatalf("WriteDocument() error = %v", err)
	}

	s, err := r.Run(context.Background(), []string{src}, Options{Kind: fixer.Entity, Source: 100, OutDir: out})
	if err != nil || s.Failed != 0 {
		t.Fatalf("Run() = %+v, %v", s, err)
	}
	got, format, err := docio.ReadDocument(filepath.Join(out, "horse.dat"))
	if err != nil {
		t.Fatalf("ReadDocument() error = %v", err)
	}
	if format != docio.Binary {
		t.Errorf("format = %v, want Binary", format)
	}
	if id := got.GetStringOr("id", ""); id != "minecraft:donkey" {
		t.Errorf("id = %q, want minecraft:donkey", id)
	}
}

func TestRunCancelled(t *testing.T) {
	in := t.TempDir()
	paths := []string{writeFile(t, in, "a.snbt", `{id:"Pig"}`)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRunner(t, nil)
	if _, err := r.Run(ctx, paths, Options{Kind: fixer.Entity}); err == nil {
		t.Error("Run() with cancelled context returned nil error")
	}
}

func TestRunWithJournal(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal.Open() error = %v", err)
	}
	defer j.Close()

	in := t.TempDir()
	paths := []string{writeFile(t, in, "horse.snbt", `{id:"EntityHorse",Type:1}`)}
	r := newRunner(t, j)
	if _, err := r.Run(context.Background(), paths, Options{Kind: fixer.Entity, Source: 100}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	entries, err := j.List(context.Background(), journal.Filter{Kind: "Entity"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || !entries[0].Changed || entries[0].Path != paths[0] {
		t.Errorf("entries = %+v", entries)
	}
}

func TestSummaryString(t *testing.T) {
	s := Summary{Files: 1200, Changed: 3, Failed: 1, BytesIn: 2_500_000, BytesOut: 1000}
	got := s.String()
	for _, want := range []string{"1,200 files", "3 changed", "1 failed", "2.5 MB in", "1.0 kB out"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}
