// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// JOB STATE
// =============================================================================

// State is the stage an export job is in.
type State string

const (
	// StateRequested is the initial state of an accepted request
	StateRequested State = "requested"

	// StateSnapshotting reads the active tree from the repository
	StateSnapshotting State = "snapshotting"

	// StateMediaCopying copies referenced media into the working directory
	StateMediaCopying State = "media_copying"

	// StateRendering writes the mirror files and the static view
	StateRendering State = "rendering"

	// StateArchiving packs the working directory and hands it to the deliverer
	StateArchiving State = "archiving"

	// StateDelivered means the deliverer confirmed receipt
	StateDelivered State = "delivered"

	// StateFailed means the job stopped early; see the job error
	StateFailed State = "failed"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateDelivered || s == StateFailed
}

// pipelineOrder is the only forward path through the states.
var pipelineOrder = []State{
	StateRequested,
	StateSnapshotting,
	StateMediaCopying,
	StateRendering,
	StateArchiving,
	StateDelivered,
}

// validTransition allows the next forward step, or Failed from any
// non-terminal state.
func validTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for i := 0; i < len(pipelineOrder)-1; i++ {
		if pipelineOrder[i] == from {
			return pipelineOrder[i+1] == to
		}
	}
	return false
}

// =============================================================================
// JOB
// =============================================================================

// JobStatus is a point-in-time copy of a job.
type JobStatus struct {
	ID          string    `json:"id"`
	RequesterID int64     `json:"requester_id"`
	State       State     `json:"state"`
	Error       string    `json:"error,omitempty"`
	MediaCount  int       `json:"media_count"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// job is the mutable record behind a JobStatus.
type job struct {
	mu     sync.RWMutex
	status JobStatus
	cancel context.CancelFunc
	subs   []chan JobStatus
}

func newJob(requesterID int64, cancel context.CancelFunc, now time.Time) *job {
	return &job{
		status: JobStatus{
			ID:          uuid.New().String(),
			RequesterID: requesterID,
			State:       StateRequested,
			StartedAt:   now,
			UpdatedAt:   now,
		},
		cancel: cancel,
	}
}

// transition moves the job to state, rejecting anything off the pipeline path.
func (j *job) transition(to State, now time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !validTransition(j.status.State, to) {
		return fmt.Errorf("invalid job transition from %s to %s", j.status.State, to)
	}
	j.status.State = to
	j.status.UpdatedAt = now
	j.publishLocked()
	return nil
}

// fail records err and moves the job to Failed. A terminal job is left alone.
func (j *job) fail(err error, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.State.IsTerminal() {
		return
	}
	j.status.State = StateFailed
	j.status.UpdatedAt = now
	if err != nil {
		j.status.Error = err.Error()
	}
	j.publishLocked()
}

func (j *job) setMediaCount(n int) {
	j.mu.Lock()
	j.status.MediaCount = n
	j.mu.Unlock()
}

func (j *job) snapshot() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

func (j *job) id() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status.ID
}

// subscribe returns a channel that receives the current status and every
// later change, and is closed once the job is terminal.
func (j *job) subscribe() (<-chan JobStatus, func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	// Buffered for every state a job can pass through
	ch := make(chan JobStatus, len(pipelineOrder)+1)
	ch <- j.status
	if j.status.State.IsTerminal() {
		close(ch)
		return ch, func() {}
	}
	j.subs = append(j.subs, ch)

	unsubscribe := func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		for i, s := range j.subs {
			if s == ch {
				j.subs = append(j.subs[:i], j.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// publishLocked fans the status out to subscribers (must be called with lock held).
func (j *job) publishLocked() {
	for _, ch := range j.subs {
		select {
		case ch <- j.status:
		default:
			// Subscriber is not draining; it will still see the final state
		}
	}
	if j.status.State.IsTerminal() {
		for _, ch := range j.subs {
			close(ch)
		}
		j.subs = nil
	}
}

// =============================================================================
// REGISTRY
// =============================================================================

// registry tracks in-flight jobs by requester and a bounded history by id.
type registry struct {
	mu         sync.Mutex
	inFlight   map[int64]*job
	byID       map[string]*job
	history    []*job
	maxHistory int
}

func newRegistry(maxHistory int) *registry {
	return &registry{
		inFlight:   make(map[int64]*job),
		byID:       make(map[string]*job),
		maxHistory: maxHistory,
	}
}

// begin registers a new job for requesterID, or returns ErrExportInProgress.
func (r *registry) begin(requesterID int64, cancel context.CancelFunc, now time.Time) (*job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if running, ok := r.inFlight[requesterID]; ok {
		return nil, fmt.Errorf("%w: job %s", ErrExportInProgress, running.id())
	}
	j := newJob(requesterID, cancel, now)
	r.inFlight[requesterID] = j
	r.byID[j.id()] = j
	return j, nil
}

// abandon forgets a job that never started.
func (r *registry) abandon(j *job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := j.snapshot()
	delete(r.inFlight, st.RequesterID)
	delete(r.byID, st.ID)
}

// finish releases the requester slot and moves the job into history.
func (r *registry) finish(j *job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := j.snapshot()
	if r.inFlight[st.RequesterID] == j {
		delete(r.inFlight, st.RequesterID)
	}
	r.history = append(r.history, j)
	r.cleanupLocked()
}

// cleanupLocked drops the oldest finished jobs beyond maxHistory.
// Must be called with lock held.
func (r *registry) cleanupLocked() {
	if r.maxHistory <= 0 || len(r.history) <= r.maxHistory {
		return
	}
	drop := len(r.history) - r.maxHistory
	for _, old := range r.history[:drop] {
		delete(r.byID, old.id())
	}
	r.history = append([]*job(nil), r.history[drop:]...)
}

// cancel cancels the in-flight job of requesterID.
func (r *registry) cancel(requesterID int64) bool {
	r.mu.Lock()
	j, ok := r.inFlight[requesterID]
	r.mu.Unlock()

	if !ok || j.cancel == nil {
		return false
	}
	j.cancel()
	return true
}

func (r *registry) get(id string) (*job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.byID[id]
	return j, ok
}

func (r *registry) running(requesterID int64) (*job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.inFlight[requesterID]
	return j, ok
}
