package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a conversion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusFetching   JobStatus = "fetching"
	StatusParsing    JobStatus = "parsing"
	StatusStoring    JobStatus = "storing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Final reports whether no further transitions will happen.
func (s JobStatus) Final() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartial, StatusDupSkipped:
		return true
	}
	return false
}

// Hints are the optional parse hints applied to every source of a job.
type Hints struct {
	Section   string `json:"section,omitempty"`
	StartPage string `json:"start_page,omitempty"`
	PageInfo  string `json:"page_info,omitempty"`
}

// Job tracks the state of a batch conversion.
type Job struct {
	mu sync.Mutex

	ID      string   `json:"job_id"`
	Sources []string `json:"sources"`
	Hints   Hints    `json:"hints"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress   Progress `json:"progress"`
	ChapterIDs []uint   `json:"chapter_ids"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalSources     int      `json:"total_sources"`
	SourcesProcessed int      `json:"sources_processed"`
	SourcesSkipped   int      `json:"sources_skipped"`
	RubricsStored    int      `json:"rubrics_stored"`
	RemediesStored   int      `json:"remedies_stored"`
	Errors           []string `json:"errors"`
}

// NewJob creates a queued job for the given sources.
func NewJob(sources []string, hints Hints) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Sources:   sources,
		Hints:     hints,
		Status:    StatusQueued,
		Phase:     "queued",
		Progress:  Progress{TotalSources: len(sources)},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// IncrProcessed atomically increments sources processed.
func (j *Job) IncrProcessed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.SourcesProcessed++
	j.UpdatedAt = time.Now()
}

// MarkSkipped records a source skipped as a duplicate.
func (j *Job) MarkSkipped() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.SourcesSkipped++
	j.UpdatedAt = time.Now()
}

// AddStored records a stored chapter and its record counts.
func (j *Job) AddStored(chapterID uint, rubrics, remedies int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ChapterIDs = append(j.ChapterIDs, chapterID)
	j.Progress.RubricsStored += rubrics
	j.Progress.RemediesStored += remedies
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID         string    `json:"job_id"`
	Sources    []string  `json:"sources"`
	Hints      Hints     `json:"hints"`
	Status     JobStatus `json:"status"`
	Phase      string    `json:"phase"`
	Progress   Progress  `json:"progress"`
	ChapterIDs []uint    `json:"chapter_ids"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	ids := append([]uint{}, j.ChapterIDs...)
	progress := j.Progress
	progress.Errors = errs
	return JobSnapshot{
		ID:         j.ID,
		Sources:    append([]string(nil), j.Sources...),
		Hints:      j.Hints,
		Status:     j.Status,
		Phase:      j.Phase,
		Progress:   progress,
		ChapterIDs: ids,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
