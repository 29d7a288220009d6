package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/FocuswithJustin/legacyfix/core/fixer"
	"github.com/FocuswithJustin/legacyfix/core/journal"
	"github.com/FocuswithJustin/legacyfix/core/legacy"
)

func intPtr(v int) *int { return &v }

func TestHandleRootAndNotFound(t *testing.T) {
	s := newTestServer(t, Config{}, fixer.Config{})
	h := s.Handler()

	rec, env := do(t, h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Errorf("GET / = %d, success %v", rec.Code, env.Success)
	}

	rec, env = do(t, h, http.MethodGet, "/nope", nil)
	if rec.Code != http.StatusNotFound || env.Success || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("GET /nope = %d, %+v", rec.Code, env.Error)
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, Config{}, fixer.Config{})
	rec, env := do(t, s.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	info := decodeData[HealthInfo](t, env)
	if info.Status != "healthy" || info.TargetVersion != fixer.DefaultTargetVersion || info.LegacyCutoff != fixer.LegacyCutoff {
		t.Errorf("health = %+v", info)
	}
	if env.Meta == nil || env.Meta.Timestamp == "" {
		t.Error("meta timestamp missing")
	}
	if info.Cache == nil || info.Cache.MaxSize != 16 || info.CacheEntries != 0 {
		t.Errorf("cache stats = %+v, entries %d", info.Cache, info.CacheEntries)
	}
}

func TestHandleKinds(t *testing.T) {
	s := newTestServer(t, Config{}, fixer.Config{})
	_, env := do(t, s.Handler(), http.MethodGet, "/kinds", nil)
	info := decodeData[KindsInfo](t, env)
	if len(info.Documents) != len(fixer.Kinds()) || len(info.Values) != len(fixer.ValueKinds()) {
		t.Fatalf("kinds = %d documents, %d values", len(info.Documents), len(info.Values))
	}
	for _, k := range info.Documents {
		if k.Name == "Entity" {
			if k.Token != "entity" || len(k.Converters) == 0 {
				t.Errorf("Entity kind = %+v", k)
			}
			return
		}
	}
	t.Error("Entity kind missing")
}

func TestHandleTables(t *testing.T) {
	s := newTestServer(t, Config{}, fixer.Config{})
	h := s.Handler()

	_, env := do(t, h, http.MethodGet, "/tables", nil)
	tables := decodeData[[]legacy.Info](t, env)
	if len(tables) == 0 || env.Meta.Total != len(tables) {
		t.Fatalf("tables = %v, total %d", tables, env.Meta.Total)
	}

	rec, env := do(t, h, http.MethodGet, "/tables/"+tables[0].Name, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /tables/%s = %d", tables[0].Name, rec.Code)
	}
	entries := decodeData[[]TableEntry](t, env)
	if len(entries) == 0 {
		t.Errorf("table %s has no entries", tables[0].Name)
	}

	rec, _ = do(t, h, http.MethodGet, "/tables/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /tables/missing = %d, want 404", rec.Code)
	}
}

func TestHandleFix(t *testing.T) {
	s := newTestServer(t, Config{}, fixer.Config{})
	h := s.Handler()
	req := FixRequest{Kind: "Entity", SourceVersion: intPtr(100), SNBT: `{id:"EntityHorse",Type:1}`}

	rec, env := do(t, h, http.MethodPost, "/fix", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /fix = %d: %+v", rec.Code, env.Error)
	}
	first := decodeData[FixResult](t, env)
	if !strings.Contains(first.SNBT, "minecraft:donkey") || !first.Changed || first.Cached {
		t.Errorf("first result = %+v", first)
	}
	if len(first.Digest) != 64 {
		t.Errorf("digest = %q", first.Digest)
	}

	_, env = do(t, h, http.MethodPost, "/fix", req)
	second := decodeData[FixResult](t, env)
	if !second.Cached || second.SNBT != first.SNBT || second.Digest != first.Digest || !second.Changed {
		t.Errorf("second result = %+v, want cached copy of %+v", second, first)
	}

	entries, err := s.journal.List(context.Background(), journal.Filter{})
	if err != nil {
		t.Fatalf("journal List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("journal has %d entries, want 1 (cache hit is not migrated)", len(entries))
	}
}

func TestHandleFixDataVersion(t *testing.T) {
	s := newTestServer(t, Config{}, fixer.Config{})
	h := s.Handler()

	_, env := do(t, h, http.MethodPost, "/fix", FixRequest{Kind: "entity", SNBT: `{id:"EntityHorse",Type:1,DataVersion:702}`})
	res := decodeData[FixResult](t, env)
	if !strings.Contains(res.SNBT, "minecraft:donkey") {
		t.Errorf("DataVersion 702 result = %s", res.SNBT)
	}

	_, env = do(t, h, http.MethodPost, "/fix", FixRequest{Kind: "Entity", SNBT: `{id:"EntityHorse",Type:1,DataVersion:4435}`})
	res = decodeData[FixResult](t, env)
	if res.Changed {
		t.Errorf("current document changed: %s", res.SNBT)
	}
}

func TestHandleFixErrors(t *testing.T) {
	s := newTestServer(t, Config{}, fixer.Config{MaxDepth: 2})
	h := s.Handler()

	deep := `{id:"Pig",Passengers:[{id:"Pig",Passengers:[{id:"Pig",Passengers:[{id:"Pig",Passengers:[{id:"Pig"}]}]}]}]}`
	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"bad json", `{"kind":`, http.StatusBadRequest, "INVALID_JSON"},
		{"bad kind", FixRequest{Kind: "Dragon", SNBT: "{}"}, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad snbt", FixRequest{Kind: "Entity", SNBT: "{id:"}, http.StatusBadRequest, "INVALID_SNBT"},
		{"recursion", FixRequest{Kind: "Entity", SourceVersion: intPtr(99), SNBT: deep}, http.StatusUnprocessableEntity, "RECURSION_LIMIT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, "/fix", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if env.Success || env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want code %s", env.Error, tt.code)
			}
		})
	}
}

func TestHandleFixBodyLimit(t *testing.T) {
	s := newTestServer(t, Config{MaxBodyBytes: 64}, fixer.Config{})
	body := FixRequest{Kind: "Entity", SNBT: `{id:"` + strings.Repeat("a", 200) + `"}`}
	rec, _ := do(t, s.Handler(), http.MethodPost, "/fix", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized body status = %d, want 400", rec.Code)
	}
}

func TestHandleFixValue(t *testing.T) {
	s := newTestServer(t, Config{}, fixer.Config{})
	h := s.Handler()

	tests := []struct {
		name    string
		req     FixValueRequest
		want    string
		changed bool
	}{
		{"numeric item", FixValueRequest{ValueKind: "ItemType", Value: "383", SourceVersion: 100}, "minecraft:spawn_egg", true},
		{"renamed item", FixValueRequest{ValueKind: "item_name", Value: "minecraft:totem", SourceVersion: 800}, "minecraft:totem_of_undying", true},
		{"current item", FixValueRequest{ValueKind: "ItemType", Value: "minecraft:totem", SourceVersion: 820}, "minecraft:totem", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, "/fix/value", tt.req)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %+v", rec.Code, env.Error)
			}
			got := decodeData[FixValueResult](t, env)
			if got.Value != tt.want || got.Changed != tt.changed {
				t.Errorf("result = %+v, want %q changed %v", got, tt.want, tt.changed)
			}
		})
	}

	rec, _ := do(t, h, http.MethodPost, "/fix/value", FixValueRequest{ValueKind: "Colour", Value: "red"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown value kind status = %d, want 400", rec.Code)
	}
}

func TestHandleJournal(t *testing.T) {
	s := newTestServer(t, Config{}, fixer.Config{})
	h := s.Handler()

	do(t, h, http.MethodPost, "/fix", FixRequest{Kind: "Entity", SourceVersion: intPtr(100), SNBT: `{id:"EntityHorse",Type:1}`})
	do(t, h, http.MethodPost, "/fix", FixRequest{Kind: "ItemInstance", SourceVersion: intPtr(100), SNBT: `{id:"minecraft:stone"}`})

	tests := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"?kind=Entity", 1},
		{"?limit=1", 1},
		{"?failed=true", 0},
	}
	for _, tt := range tests {
		t.Run("journal"+tt.query, func(t *testing.T) {
			rec, env := do(t, h, http.MethodGet, "/journal"+tt.query, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			entries := decodeData[[]journal.Entry](t, env)
			if len(entries) != tt.want {
				t.Errorf("entries = %d, want %d", len(entries), tt.want)
			}
		})
	}

	rec, _ := do(t, h, http.MethodGet, "/journal?limit=x", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestHandleJournalDisabled(t *testing.T) {
	engine, err := fixer.New(fixer.Config{})
	if err != nil {
		t.Fatalf("fixer.New() error = %v", err)
	}
	s, err := New(Config{}, Deps{Engine: engine})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	rec, env := do(t, s.Handler(), http.MethodGet, "/journal", nil)
	if rec.Code != http.StatusNotFound || env.Error.Code != "JOURNAL_DISABLED" {
		t.Errorf("GET /journal = %d, %+v", rec.Code, env.Error)
	}
	rec, _ = do(t, s.Handler(), http.MethodPost, "/fix", FixRequest{Kind: "Entity", SourceVersion: intPtr(100), SNBT: `{id:"Pig"}`})
	if rec.Code != http.StatusOK {
		t.Errorf("POST /fix without cache or journal = %d", rec.Code)
	}
}
