package cron

import (
	"context"
	"time"
)

// Job is one unit of scheduled work run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduled jobs run at most once per Every instead of on every tick.
type Scheduled interface {
	Every() time.Duration
}

type entry struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

func (e *entry) due(now time.Time) bool {
	return e.lastRun.IsZero() || now.Sub(e.lastRun) >= e.every
}

// Registry holds jobs in run order along with their cadence bookkeeping.
type Registry struct {
	entries []*entry
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	e := &entry{job: job}
	if s, ok := job.(Scheduled); ok {
		e.every = s.Every()
	}
	r.entries = append(r.entries, e)
}

func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.entries))
	for _, e := range r.entries {
		jobs = append(jobs, e.job)
	}
	return jobs
}
