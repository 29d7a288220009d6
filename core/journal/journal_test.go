package journal

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/FocuswithJustin/legacyfix/core/errors"
	"github.com/FocuswithJustin/legacyfix/core/nbt"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestDigest(t *testing.T) {
	a, _ := nbt.ParseSNBT(`{id:"Pig",Health:10.0f}`)
	b, _ := nbt.ParseSNBT(`{id:"Pig",Health:10.0f}`)
	c, _ := nbt.ParseSNBT(`{id:"Cow",Health:10.0f}`)

	if Digest(a) != Digest(b) {
		t.Error("equal documents have different digests")
	}
	if Digest(a) == Digest(c) {
		t.Error("different documents share a digest")
	}
	if len(Digest(a)) != 64 {
		t.Errorf("Digest() length = %d, want 64", len(Digest(a)))
	}
}

func TestRecordAndGet(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	stored, err := j.Record(ctx, Entry{
		Kind:          "Entity",
		SourceVersion: 100,
		TargetVersion: 4435,
		InputDigest:   "in",
		OutputDigest:  "out",
		Changed:       true,
		Duration:      1500 * time.Microsecond,
		Path:          "horse.snbt",
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if stored.ID == "" || stored.CreatedAt.IsZero() {
		t.Fatalf("Record() did not assign id and time: %+v", stored)
	}

	got, err := j.Get(ctx, stored.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Kind != "Entity" || got.SourceVersion != 100 || !got.Changed || got.Path != "horse.snbt" {
		t.Errorf("Get() = %+v", got)
	}
	if got.Duration != 1500*time.Microsecond {
		t.Errorf("Duration = %v, want 1.5ms", got.Duration)
	}
	if !got.CreatedAt.Equal(stored.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, stored.CreatedAt)
	}
}

func TestGetNotFound(t *testing.T) {
	j := openTest(t)
	_, err := j.Get(context.Background(), "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRecordRequiresKind(t *testing.T) {
	j := openTest(t)
	if _, err := j.Record(context.Background(), Entry{}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Record(no kind) error = %v, want ErrInvalidInput", err)
	}
}

func TestList(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	entries := []Entry{
		{Kind: "Entity", CreatedAt: base},
		{Kind: "Chunk", CreatedAt: base.Add(time.Second), Error: "boom"},
		{Kind: "Entity", CreatedAt: base.Add(2 * time.Second)},
		{Kind: "Entity", CreatedAt: base.Add(3 * time.Second), Error: "bad"},
	}
	for _, e := range entries {
		if _, err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   []time.Time
	}{
		{"all newest first", Filter{}, []time.Time{base.Add(3 * time.Second), base.Add(2 * time.Second), base.Add(time.Second), base}},
		{"kind", Filter{Kind: "Chunk"}, []time.Time{base.Add(time.Second)}},
		{"failed", Filter{OnlyFailed: true}, []time.Time{base.Add(3 * time.Second), base.Add(time.Second)}},
		{"since", Filter{Since: base.Add(2 * time.Second)}, []time.Time{base.Add(3 * time.Second), base.Add(2 * time.Second)}},
		{"limit", Filter{Kind: "Entity", Limit: 1}, []time.Time{base.Add(3 * time.Second)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := j.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List() returned %d entries, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if !got[i].CreatedAt.Equal(tt.want[i]) {
					t.Errorf("entry %d CreatedAt = %v, want %v", i, got[i].CreatedAt, tt.want[i])
				}
			}
		})
	}
}

func TestConcurrentRecord(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := j.Record(ctx, Entry{Kind: "Entity"}); err != nil {
				t.Errorf("Record() error = %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := j.List(ctx, Filter{Limit: 50})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 20 {
		t.Errorf("List() returned %d entries, want 20", len(got))
	}
}
