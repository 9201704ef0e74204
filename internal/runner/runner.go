// Package runner serializes pipeline runs started by the scheduler and the
// HTTP trigger. At most one run is in flight per process.
package runner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrBusy is returned when a run is requested while another is in flight.
var ErrBusy = eris.New("runner: another run is in progress")

// Job is one pipeline run.
type Job func(ctx context.Context) error

// Status is the outcome of a job's most recent run.
type Status struct {
	Job        string    `json:"job"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// Runner holds the run lock and remembers the last outcome of each job.
type Runner struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	logger *zap.Logger

	stateMu sync.Mutex
	current string
	last    map[string]Status
}

// New creates a Runner.
func New(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.L()
	}
	return &Runner{logger: logger.Named("runner"), last: map[string]Status{}}
}

func (r *Runner) acquire(name string) error {
	if !r.mu.TryLock() {
		r.logger.Warn("run rejected, another run is in progress",
			zap.String("job", name), zap.String("running", r.Current()))
		return eris.Wrapf(ErrBusy, "%s", name)
	}
	r.setCurrent(name)
	return nil
}

// TryRun runs job under name if nothing else is running and returns ErrBusy
// otherwise. It blocks until the job finishes.
func (r *Runner) TryRun(ctx context.Context, name string, job Job) error {
	if err := r.acquire(name); err != nil {
		return err
	}
	return r.run(ctx, name, job)
}

// Start is TryRun without waiting: the lock is taken before Start returns
// and the job runs in its own goroutine.
func (r *Runner) Start(ctx context.Context, name string, job Job) error {
	if err := r.acquire(name); err != nil {
		return err
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx, name, job) //nolint:errcheck
	}()
	return nil
}

// Wait blocks until every job launched by Start has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// run executes a job whose lock is already held and releases it.
func (r *Runner) run(ctx context.Context, name string, job Job) error {
	defer r.mu.Unlock()
	defer r.setCurrent("")

	st := Status{Job: name, StartedAt: time.Now()}
	err := job(ctx)
	st.FinishedAt = time.Now()

	if err != nil {
		st.Error = err.Error()
		r.logger.Error("run failed", zap.String("job", name), zap.Error(err))
	} else {
		r.logger.Info("run finished", zap.String("job", name),
			zap.Duration("took", st.FinishedAt.Sub(st.StartedAt)))
	}

	r.stateMu.Lock()
	r.last[name] = st
	r.stateMu.Unlock()
	return err
}

func (r *Runner) setCurrent(name string) {
	r.stateMu.Lock()
	r.current = name
	r.stateMu.Unlock()
}

// Current returns the job that is running, or "".
func (r *Runner) Current() string {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.current
}

// Last returns the most recent status of every job that has run, by name.
func (r *Runner) Last() []Status {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	out := make([]Status, 0, len(r.last))
	for _, s := range r.last {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}
