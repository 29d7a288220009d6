package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/FocuswithJustin/legacyfix/core/cache"
	"github.com/FocuswithJustin/legacyfix/core/errors"
	"github.com/FocuswithJustin/legacyfix/core/fixer"
	"github.com/FocuswithJustin/legacyfix/core/journal"
	"github.com/FocuswithJustin/legacyfix/core/nbt"
	"github.com/FocuswithJustin/legacyfix/internal/logging"
)

// Version is reported by / and /health.
var Version = "dev"

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Uptime        string `json:"uptime"`
	TargetVersion int    `json:"target_version"`
	LegacyCutoff  int    `json:"legacy_cutoff"`
	Jobs          int    `json:"jobs"`
	Clients       int          `json:"clients"`
	CacheEntries  int          `json:"cache_entries"`
	Cache         *cache.Stats `json:"cache,omitempty"`
}

// KindInfo describes a document or value kind.
type KindInfo struct {
	Name       string `json:"name"`
	Token      string `json:"token"`
	Converters []int  `json:"converter_versions,omitempty"`
}

// KindsInfo is the /kinds response.
type KindsInfo struct {
	Documents []KindInfo `json:"documents"`
	Values    []KindInfo `json:"values"`
}

// TableEntry is one key/value pair of a legacy table.
type TableEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FixRequest is the body of POST /fix.
type FixRequest struct {
	Kind          string `json:"kind"`
	SourceVersion *int   `json:"source_version"`
	TargetVersion int    `json:"target_version,omitempty"`
	SNBT          string `json:"snbt"`
}

// FixResult is the response of POST /fix.
type FixResult struct {
	SNBT    string `json:"snbt"`
	Changed bool   `json:"changed"`
	Digest  string `json:"digest"`
	Cached  bool   `json:"cached"`
}

// FixValueRequest is the body of POST /fix/value.
type FixValueRequest struct {
	ValueKind     string `json:"value_kind"`
	Value         string `json:"value"`
	SourceVersion int    `json:"source_version"`
	TargetVersion int    `json:"target_version,omitempty"`
}

// FixValueResult is the response of POST /fix/value.
type FixValueResult struct {
	Value   string `json:"value"`
	Changed bool   `json:"changed"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"name":    "legacyfix API",
		"version": Version,
		"endpoints": []string{
			"GET /health",
			"GET /kinds",
			"GET /tables",
			"GET /tables/{name}",
			"POST /fix",
			"POST /fix/value",
			"GET /journal",
			"POST /jobs",
			"GET /jobs",
			"GET /jobs/{id}",
			"DELETE /jobs/{id}",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := HealthInfo{
		Status:        "healthy",
		Version:       Version,
		Uptime:        time.Since(s.started).Round(time.Second).String(),
		TargetVersion: s.engine.TargetVersion(),
		LegacyCutoff:  s.engine.LegacyCutoff(),
		Jobs:          s.jobs.Len(),
		Clients:       s.hub.Clients(),
	}
	if s.cache != nil {
		stats := s.cache.Stats()
		info.CacheEntries = stats.Size
		info.Cache = &stats
	}
	respond(w, http.StatusOK, info)
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	var info KindsInfo
	for _, k := range fixer.Kinds() {
		info.Documents = append(info.Documents, KindInfo{
			Name:       k.String(),
			Token:      string(k.TypeToken()),
			Converters: s.engine.ConverterVersions(k),
		})
	}
	for _, k := range fixer.ValueKinds() {
		info.Values = append(info.Values, KindInfo{Name: k.String(), Token: string(k.TypeToken())})
	}
	respond(w, http.StatusOK, info)
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	tables := s.engine.Tables().Describe()
	respondList(w, tables, len(tables))
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.Tables().Entries(r.PathValue("name"))
	if err != nil {
		respondErr(w, err)
		return
	}
	out := make([]TableEntry, len(entries))
	for i, e := range entries {
		out[i] = TableEntry{Key: e[0], Value: e[1]}
	}
	respondList(w, out, len(out))
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	var req FixRequest
	if !s.decode(w, r, &req) {
		return
	}
	kind, err := fixer.ParseKind(req.Kind)
	if err != nil {
		respondErr(w, err)
		return
	}
	doc, err := nbt.ParseSNBT(req.SNBT)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_SNBT", err.Error())
		return
	}

	source := int(doc.GetIntOr("DataVersion", fixer.UnknownVersion))
	if req.SourceVersion != nil {
		source = *req.SourceVersion
	}
	target := req.TargetVersion
	if target == 0 {
		target = s.engine.TargetVersion()
	}

	start := time.Now()
	inDigest := journal.Digest(doc)
	key := fixer.CacheKey{Kind: kind, Source: source, Target: target, Digest: inDigest}
	if s.cache != nil {
		if out, ok := s.cache.Get(key); ok {
			outDigest := journal.Digest(out)
			respond(w, http.StatusOK, FixResult{SNBT: out.String(), Changed: outDigest != inDigest, Digest: outDigest, Cached: true})
			return
		}
	}

	out, changed, err := s.runner.Fix(r.Context(), kind, doc, source, target, "")
	if err != nil {
		logging.MigrationError(r.Context(), kind.String(), source, err)
		respondErr(w, err)
		return
	}
	logging.Migration(r.Context(), kind.String(), source, target, changed, time.Since(start))
	if s.cache != nil {
		s.cache.Put(key, out)
	}
	respond(w, http.StatusOK, FixResult{SNBT: out.String(), Changed: changed, Digest: journal.Digest(out)})
}

func (s *Server) handleFixValue(w http.ResponseWriter, r *http.Request) {
	var req FixValueRequest
	if !s.decode(w, r, &req) {
		return
	}
	kind, err := fixer.ParseValueKind(req.ValueKind)
	if err != nil {
		respondErr(w, err)
		return
	}
	target := req.TargetVersion
	if target == 0 {
		target = s.engine.TargetVersion()
	}
	out, err := s.engine.UpdateValue(kind, req.Value, req.SourceVersion, target)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, FixValueResult{Value: out, Changed: out != req.Value})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		respondError(w, http.StatusNotFound, "JOURNAL_DISABLED", "No journal is configured")
		return
	}
	q := r.URL.Query()
	f := journal.Filter{Kind: q.Get("kind"), OnlyFailed: q.Get("failed") == "true"}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "since must be an RFC 3339 time")
			return
		}
		f.Since = t
	}
	entries, err := s.journal.List(r.Context(), f)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondList(w, entries, len(entries))
}

// decode reads a JSON body into v, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.maxBody())
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return false
	}
	return true
}

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondList(w http.ResponseWriter, data any, total int) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Total: total, Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

// respondErr maps a domain error to its HTTP status.
func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, errors.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, errors.ErrUnknownMapping):
		respondError(w, http.StatusUnprocessableEntity, "UNKNOWN_MAPPING", err.Error())
	case errors.Is(err, errors.ErrRecursionLimit):
		respondError(w, http.StatusUnprocessableEntity, "RECURSION_LIMIT", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}
