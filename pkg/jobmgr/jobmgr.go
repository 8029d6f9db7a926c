// Package jobmgr runs goroutines under supervision: every job gets a context
// derived from the manager, panics are recovered and reported, and Shutdown
// cancels everything and waits for it to finish.
//
//	jm := jobmgr.NewManager(ctx, func(s jobmgr.Status) {
//	    log.Println("JOB:", s)
//	})
//	jm.Go("voice-state", func(ctx context.Context) error { return nil })
//	_ = jm.StartAsync("reconcile", loop)
//	jm.Shutdown()
package jobmgr

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
)

// State is a job lifecycle phase.
type State string

const (
	StateRunning State = "running"
	StateDone    State = "done"
	StateError   State = "error"
	StatePanic   State = "panic"
)

// Status is a lifecycle event delivered to the Reporter.
type Status struct {
	Job   string
	State State
	Err   error
	Stack []byte // set for StatePanic
}

func (s Status) String() string {
	if s.Err != nil {
		return fmt.Sprintf("%s:%s:%v", s.State, s.Job, s.Err)
	}
	return fmt.Sprintf("%s:%s", s.State, s.Job)
}

// Reporter receives lifecycle events for jobs. It may be called from many
// goroutines at once.
type Reporter func(Status)

// Manager supervises transient tasks (Go) and named long-running jobs
// (StartAsync). It is safe for concurrent use.
type Manager struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	jobs     map[string]context.CancelFunc
	reporter Reporter
}

// NewManager creates a Manager whose jobs are cancelled with parent.
// The reporter may be nil.
func NewManager(parent context.Context, reporter Reporter) *Manager {
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]context.CancelFunc),
		reporter: reporter,
	}
}

// Go runs fn in a new goroutine. Any number of tasks may share a name.
// Errors and panics are reported, never propagated.
func (m *Manager) Go(name string, fn func(ctx context.Context) error) {
	if m.ctx.Err() != nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(m.ctx, name, fn, false)
	}()
}

// StartAsync runs a named job in a separate goroutine. If a job with the same
// name is already running, an error is returned. Jobs are removed once they
// return.
func (m *Manager) StartAsync(name string, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[name]; exists {
		return fmt.Errorf("job '%s' is already running", name)
	}
	if err := m.ctx.Err(); err != nil {
		return fmt.Errorf("job manager stopped: %w", err)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.jobs[name] = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.jobs, name)
			m.mu.Unlock()
			cancel()
		}()
		m.run(ctx, name, fn, true)
	}()
	return nil
}

func (m *Manager) run(ctx context.Context, name string, fn func(ctx context.Context) error, announce bool) {
	defer func() {
		if r := recover(); r != nil {
			m.report(Status{Job: name, State: StatePanic, Err: fmt.Errorf("panic: %v", r), Stack: debug.Stack()})
		}
	}()

	if announce {
		m.report(Status{Job: name, State: StateRunning})
	}
	if err := fn(ctx); err != nil {
		m.report(Status{Job: name, State: StateError, Err: err})
		return
	}
	if announce {
		m.report(Status{Job: name, State: StateDone})
	}
}

// Stop cancels a running named job.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cancel, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("job '%s' not running", name)
	}
	cancel()
	return nil
}

// List returns the names of active named jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Summary returns a human-readable list of active named jobs.
func (m *Manager) Summary() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return fmt.Sprintf("Running jobs: %s", strings.Join(active, ", "))
}

// Wait blocks until every job has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown cancels all jobs and waits for them.
func (m *Manager) Shutdown() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) report(s Status) {
	if m.reporter != nil {
		m.reporter(s)
	}
}
