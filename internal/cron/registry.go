package cron

import "context"

// Job represents a scheduled task that runs inside the cron worker. Run
// returns the number of rows the job touched.
type Job interface {
	Name() string
	Run(ctx context.Context) (int, error)
}

// Registry tracks registered cron jobs.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry preloaded with the provided jobs.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job to the registry. Nil jobs are ignored so disabled
// features can be passed through unconditionally.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Names lists the registered job names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}
