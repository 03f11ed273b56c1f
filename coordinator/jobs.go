// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coordinator

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
)

var (
	jobPrefix = []byte("dj:")

	ErrJobNotFound = errors.New("decryption job not found")
)

// jobKey identifies one decryption job: one article under one content seal.
type jobKey struct {
	ArticleID ids.ID
	SealID    ids.ID
}

func (k jobKey) String() string {
	return k.ArticleID.String() + ":" + k.SealID.String()
}

func (k jobKey) bytes() []byte {
	b := make([]byte, 0, len(k.ArticleID)+len(k.SealID))
	b = append(b, k.ArticleID[:]...)
	return append(b, k.SealID[:]...)
}

// JobState tracks one decryption job's lifecycle.
type JobState uint8

const (
	JobPending JobState = iota
	JobInFlight
	JobDone
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobInFlight:
		return "in-flight"
	case JobDone:
		return "done"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job is the persisted record of one decryption attempt lifecycle.
type Job struct {
	ArticleID   ids.ID   `json:"articleID"`
	SealID      ids.ID   `json:"sealID"`
	State       JobState `json:"state"`
	CreatedAt   int64    `json:"createdAt"`
	CompletedAt int64    `json:"completedAt,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// jobRegistry persists decryption-job lifecycles. The in-flight guard itself
// is the coordinator's in-memory set; the registry is the durable record.
type jobRegistry struct {
	db database.Database
	mu sync.RWMutex
}

func newJobRegistry(db database.Database) *jobRegistry {
	return &jobRegistry{db: db}
}

// Create stores a new pending job for key.
func (r *jobRegistry) Create(key jobKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := Job{
		ArticleID: key.ArticleID,
		SealID:    key.SealID,
		State:     JobPending,
		CreatedAt: time.Now().Unix(),
	}
	return r.putLocked(key, &job)
}

// SetState advances the job for key, recording the completion time for
// terminal states and errMsg for failures.
func (r *jobRegistry) SetState(key jobKey, state JobState, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.getLocked(key)
	if err != nil {
		return err
	}

	job.State = state
	if state == JobDone || state == JobFailed {
		job.CompletedAt = time.Now().Unix()
	}
	job.Error = errMsg
	return r.putLocked(key, job)
}

// Get retrieves the job for key.
func (r *jobRegistry) Get(key jobKey) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(key)
}

func (r *jobRegistry) getLocked(key jobKey) (*Job, error) {
	data, err := r.db.Get(append(jobPrefix, key.bytes()...))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

func (r *jobRegistry) putLocked(key jobKey, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return r.db.Put(append(jobPrefix, key.bytes()...), data)
}
