package server

import (
	"sync"

	"github.com/babelcloud/vidcap/internal/capture/pipeline"
)

// finishedHistory caps how many completed job ids are remembered so that
// late progress watchers get a definite answer instead of a silent hang.
const finishedHistory = 256

// jobRegistry hands out one progress broadcaster per job id. Watchers may
// attach before the capture request arrives; the broadcaster is created by
// whichever side asks for it first.
type jobRegistry struct {
	mu       sync.Mutex
	jobs     map[string]*pipeline.ProgressBroadcaster
	finished map[string]struct{}
	order    []string
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{
		jobs:     make(map[string]*pipeline.ProgressBroadcaster),
		finished: make(map[string]struct{}),
	}
}

// broadcaster returns the job's broadcaster for the capture side, creating
// it on first use. Reusing a finished id starts a fresh job.
func (r *jobRegistry) broadcaster(id string) *pipeline.ProgressBroadcaster {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.finished, id)
	b, ok := r.jobs[id]
	if !ok {
		b = pipeline.NewProgressBroadcaster()
		r.jobs[id] = b
	}
	return b
}

// watch returns the broadcaster for a live or not-yet-started job. It
// reports false when the job already finished.
func (r *jobRegistry) watch(id string) (*pipeline.ProgressBroadcaster, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, done := r.finished[id]; done {
		return nil, false
	}
	b, ok := r.jobs[id]
	if !ok {
		b = pipeline.NewProgressBroadcaster()
		r.jobs[id] = b
	}
	return b, true
}

// finish closes the job's broadcaster so attached watchers see
// end-of-stream, and records the id so late watchers are turned away.
func (r *jobRegistry) finish(id string) {
	r.mu.Lock()
	b, ok := r.jobs[id]
	delete(r.jobs, id)
	if _, dup := r.finished[id]; !dup {
		r.finished[id] = struct{}{}
		r.order = append(r.order, id)
		if len(r.order) > finishedHistory {
			delete(r.finished, r.order[0])
			r.order = r.order[1:]
		}
	}
	r.mu.Unlock()

	if ok {
		b.Close()
	}
}

func (r *jobRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, b := range r.jobs {
		b.Close()
		delete(r.jobs, id)
	}
}
