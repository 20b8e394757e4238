package cron

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Job is one unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// TimeoutJob is a Job that bounds its own run time.
type TimeoutJob interface {
	Job
	Timeout() time.Duration
}

// Registry holds jobs in registration order under unique names.
type Registry struct {
	order  []string
	byName map[string]Job
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Job)}
}

// Register adds job. Blank and duplicate names are rejected.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("cron: nil job")
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron: job %T has no name", job)
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("cron: job %q registered twice", name)
	}
	r.byName[name] = job
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the job registered under name.
func (r *Registry) Lookup(name string) (Job, bool) {
	job, ok := r.byName[strings.TrimSpace(name)]
	return job, ok
}

// Names lists registered jobs in run order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Jobs returns a copy of the jobs in run order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.order))
	for _, name := range r.order {
		jobs = append(jobs, r.byName[name])
	}
	return jobs
}
