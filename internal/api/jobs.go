package api

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/legacyfix/core/errors"
	"github.com/FocuswithJustin/legacyfix/core/fixer"
	"github.com/FocuswithJustin/legacyfix/core/nbt"
	"github.com/FocuswithJustin/legacyfix/internal/logging"
)

// MaxJobDocuments caps the documents accepted by one job.
const MaxJobDocuments = 10000

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobRequest is the body of POST /jobs.
type JobRequest struct {
	Kind          string   `json:"kind"`
	SourceVersion int      `json:"source_version"`
	TargetVersion int      `json:"target_version,omitempty"`
	Documents     []string `json:"documents"`
}

// JobResult is the outcome for one document of a job.
type JobResult struct {
	SNBT    string `json:"snbt,omitempty"`
	Changed bool   `json:"changed"`
	Error   string `json:"error,omitempty"`
}

// Job is an asynchronous batch migration.
type Job struct {
	ID          string      `json:"id"`
	Status      JobStatus   `json:"status"`
	Kind        string      `json:"kind"`
	Source      int         `json:"source_version"`
	Target      int         `json:"target_version"`
	Total       int         `json:"total"`
	Done        int         `json:"done"`
	Failed      int         `json:"failed"`
	Progress    int         `json:"progress"` // 0-100
	Results     []JobResult `json:"results,omitempty"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   string      `json:"created_at"`
	UpdatedAt   string      `json:"updated_at"`
	CompletedAt string      `json:"completed_at,omitempty"`

	kind       fixer.Kind
	docs       []string
	ctx        context.Context
	cancel     context.CancelFunc
	finishedAt time.Time
}

// snapshot copies the exported state so it can be encoded outside the lock.
func (j *Job) snapshot() Job {
	c := *j
	c.Results = slices.Clone(j.Results)
	c.docs = nil
	return c
}

// Retention defaults for finished jobs.
const (
	DefaultJobRetention    = time.Hour
	DefaultMaxFinishedJobs = 1000
)

// JobStore keeps jobs in memory. Finished jobs are dropped once they are
// older than the retention period, and the oldest go first when more than
// maxFinished have piled up. Pending and running jobs are never dropped.
type JobStore struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	retention   time.Duration
	maxFinished int
	now         func() time.Time
}

// NewJobStore creates an empty store. Non-positive limits take the defaults.
func NewJobStore(retention time.Duration, maxFinished int) *JobStore {
	if retention <= 0 {
		retention = DefaultJobRetention
	}
	if maxFinished <= 0 {
		maxFinished = DefaultMaxFinishedJobs
	}
	return &JobStore{
		jobs:        make(map[string]*Job),
		retention:   retention,
		maxFinished: maxFinished,
		now:         time.Now,
	}
}

// finish marks a job terminal. Callers hold the write lock.
func (s *JobStore) finish(job *Job, now time.Time) {
	if job.finishedAt.IsZero() {
		job.finishedAt = now
		job.CompletedAt = now.UTC().Format(time.RFC3339)
	}
}

// prune drops expired finished jobs, then the oldest finished ones above the
// cap. Callers hold the write lock.
func (s *JobStore) prune(now time.Time) {
	var finished []*Job
	for id, job := range s.jobs {
		if job.finishedAt.IsZero() {
			continue
		}
		if now.Sub(job.finishedAt) > s.retention {
			delete(s.jobs, id)
			continue
		}
		finished = append(finished, job)
	}
	if extra := len(finished) - s.maxFinished; extra > 0 {
		slices.SortFunc(finished, func(a, b *Job) int { return a.finishedAt.Compare(b.finishedAt) })
		for _, job := range finished[:extra] {
			delete(s.jobs, job.ID)
		}
	}
}

// Create registers a pending job for req.
func (s *JobStore) Create(kind fixer.Kind, req JobRequest, target int) Job {
	ctx, cancel := context.WithCancel(context.Background())
	created := s.now()
	now := created.UTC().Format(time.RFC3339)
	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Kind:      kind.String(),
		Source:    req.SourceVersion,
		Target:    target,
		Total:     len(req.Documents),
		Results:   make([]JobResult, len(req.Documents)),
		CreatedAt: now,
		UpdatedAt: now,
		kind:      kind,
		docs:      req.Documents,
		ctx:       ctx,
		cancel:    cancel,
	}

	s.mu.Lock()
	s.prune(created)
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job.snapshot()
}

// Get returns a copy of the job with the given id.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.snapshot(), true
}

// List returns copies of all jobs, oldest first, without per-document
// results.
func (s *JobStore) List() []Job {
	s.mu.RLock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		c := job.snapshot()
		c.Results = nil
		out = append(out, c)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b Job) int {
		if c := strings.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// update applies f to the job under the write lock and returns a copy.
func (s *JobStore) update(id string, f func(*Job)) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	f(job)
	now := s.now()
	job.UpdatedAt = now.UTC().Format(time.RFC3339)
	if job.Status.terminal() {
		s.finish(job, now)
	}
	return job.snapshot(), true
}

// Cancel stops a pending or running job.
func (s *JobStore) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return errors.NewNotFound("job", id)
	}
	if job.Status.terminal() {
		return errors.NewValidation("status", "job cannot be cancelled (status: "+string(job.Status)+")")
	}
	job.cancel()
	now := s.now()
	job.Status = JobStatusCancelled
	job.UpdatedAt = now.UTC().Format(time.RFC3339)
	s.finish(job, now)
	return nil
}

// CancelAll cancels every job that has not finished.
func (s *JobStore) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, job := range s.jobs {
		job.cancel()
		if !job.Status.terminal() {
			job.Status = JobStatusCancelled
			s.finish(job, now)
		}
	}
}

// runJob migrates the job's documents one by one, broadcasting progress
// after each.
func (s *Server) runJob(id string) {
	job, ok := s.jobs.update(id, func(j *Job) {
		if j.Status == JobStatusPending {
			j.Status = JobStatusRunning
		}
	})
	if !ok || job.Status != JobStatusRunning {
		return
	}
	logging.JobEvent(id, string(JobStatusRunning), "documents", job.Total)

	s.jobs.mu.RLock()
	stored, ok := s.jobs.jobs[id]
	s.jobs.mu.RUnlock()
	if !ok {
		return
	}
	ctx, docs := stored.ctx, stored.docs

	for i, text := range docs {
		if ctx.Err() != nil {
			logging.JobEvent(id, string(JobStatusCancelled), "done", i)
			s.hub.Broadcast(ProgressMessage{Type: "error", JobID: id, Done: i, Total: job.Total, Message: "job cancelled"})
			return
		}

		res := s.fixDocument(ctx, job, text)
		snap, _ := s.jobs.update(id, func(j *Job) {
			j.Results[i] = res
			j.Done = i + 1
			if res.Error != "" {
				j.Failed++
			}
			j.Progress = j.Done * 100 / max(j.Total, 1)
		})
		s.hub.Broadcast(ProgressMessage{
			Type:     "progress",
			JobID:    id,
			Done:     snap.Done,
			Total:    snap.Total,
			Progress: snap.Progress,
		})
	}

	final, _ := s.jobs.update(id, func(j *Job) {
		if j.Status != JobStatusRunning {
			return
		}
		j.Status = JobStatusCompleted
		j.Progress = 100
		if j.Total > 0 && j.Failed == j.Total {
			j.Status = JobStatusFailed
			j.Error = "every document failed"
		}
	})
	logging.JobEvent(id, string(final.Status), "done", final.Done, "failed", final.Failed)
	s.hub.Broadcast(ProgressMessage{
		Type:     "complete",
		JobID:    id,
		Done:     final.Done,
		Total:    final.Total,
		Progress: 100,
		Data:     map[string]any{"status": final.Status, "failed": final.Failed},
	})
}

func (s *Server) fixDocument(ctx context.Context, job Job, text string) JobResult {
	doc, err := nbt.ParseSNBT(text)
	if err != nil {
		return JobResult{Error: err.Error()}
	}
	out, changed, err := s.runner.Fix(ctx, job.kind, doc, job.Source, job.Target, "job:"+job.ID)
	if err != nil {
		return JobResult{Error: err.Error()}
	}
	return JobResult{SNBT: out.String(), Changed: changed}
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if !s.decode(w, r, &req) {
		return
	}
	kind, err := fixer.ParseKind(req.Kind)
	if err != nil {
		respondErr(w, err)
		return
	}
	if len(req.Documents) == 0 {
		respondError(w, http.StatusBadRequest, "MISSING_PARAMS", "documents are required")
		return
	}
	if len(req.Documents) > MaxJobDocuments {
		respondError(w, http.StatusBadRequest, "TOO_MANY_DOCUMENTS", "too many documents in one job")
		return
	}
	target := req.TargetVersion
	if target == 0 {
		target = s.engine.TargetVersion()
	}

	job := s.jobs.Create(kind, req, target)
	logging.JobEvent(job.ID, string(JobStatusPending), "documents", job.Total)
	go s.runJob(job.ID)
	respond(w, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobs.List()
	respondList(w, jobs, len(jobs))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
		return
	}
	respond(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.jobs.Cancel(id); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		respondError(w, http.StatusConflict, "CANCEL_FAILED", err.Error())
		return
	}
	logging.JobEvent(id, string(JobStatusCancelled))
	respond(w, http.StatusOK, map[string]string{"message": "Job cancelled"})
}
