package microtask

// Func is the body of a background job
// A returned error or a panic is isolated by the runner and logged under the job name
type Func func(args ...any) error

// Job is a named, identity-comparable callback
// Create each job once and reuse the pointer: EnqueueOnce and Dequeue match by identity
type Job struct {
	name string
	fn   Func
}

// NewJob wraps fn under a stable name used for logs and histograms
func NewJob(name string, fn Func) *Job {
	if name == "" || fn == nil {
		panic("microtask: job requires a name and a function")
	}
	return &Job{name: name, fn: fn}
}

// Name returns the job's diagnostic name
func (j *Job) Name() string {
	return j.name
}
