package runner

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// JobState describes where a job is in its lifecycle.
type JobState string

const (
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// PipelineResult is the outcome of a direct-runner job: its terminal state
// plus the decoded elements of every leaf collection.
type PipelineResult struct {
	JobID string
	State JobState
	Err   error

	outputs map[string][]interface{}
}

// Elements returns the decoded elements of a leaf collection.
func (r *PipelineResult) Elements(collectionID string) ([]interface{}, error) {
	elements, ok := r.outputs[collectionID]
	if !ok {
		return nil, fmt.Errorf("collection %s was not materialized as a leaf", collectionID)
	}
	return elements, nil
}

// Leaves lists the materialized leaf collection ids, sorted.
func (r *PipelineResult) Leaves() []string {
	ids := make([]string, 0, len(r.outputs))
	for id := range r.outputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// JobRecord is the bookkeeping entry for one job.
type JobRecord struct {
	ID         string    `json:"id"`
	State      JobState  `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// JobStore keeps records of past and running jobs for the API surface.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*JobRecord
}

// NewJobStore creates an empty store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: map[string]*JobRecord{}}
}

func (s *JobStore) start(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = &JobRecord{ID: id, State: JobRunning, StartedAt: time.Now().UTC()}
}

func (s *JobStore) finish(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.jobs[id]
	if !ok {
		return
	}
	record.FinishedAt = time.Now().UTC()
	if err != nil {
		record.State = JobFailed
		record.Error = err.Error()
	} else {
		record.State = JobDone
	}
}

// Get returns a job record by id.
func (s *JobStore) Get(id string) (JobRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.jobs[id]
	if !ok {
		return JobRecord{}, false
	}
	return *record, true
}

// Since lists jobs started at or after the given time, newest first.
func (s *JobStore) Since(t time.Time) []JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []JobRecord
	for _, record := range s.jobs {
		if !record.StartedAt.Before(t) {
			records = append(records, *record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StartedAt.After(records[j].StartedAt) })
	return records
}
