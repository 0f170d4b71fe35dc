// Package jobs runs segment productions on a fixed set of workers so that a
// seek never fans out more provider calls than the pool allows.
package jobs

import (
	"sync"
	"sync/atomic"

	"github.com/MimeLyc/syncdub/pkg/log"
)

// Stats counts the tasks seen by a pool.
type Stats struct {
	Workers   int   `json:"workers"`
	Pending   int   `json:"pending"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
}

// Pool is a dubbing.Executor backed by workerCount goroutines. Go never
// blocks and never runs the task on the caller's goroutine.
type Pool struct {
	workerCount int

	tasks    chan func()
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
	backlog int

	earlyWarn sync.Once
	running   atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
}

func NewPool(workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		workerCount: workerCount,
		tasks:       make(chan func(), 1024),
		stopCh:      make(chan struct{}),
	}
}

func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for range p.workerCount {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop waits for running tasks and drops the queued ones. Tasks submitted
// afterwards are rejected.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		close(p.stopCh)
		p.wg.Wait()
		st := p.Stats()
		log.Info("Worker pool stopped: %d completed, %d dropped", st.Completed, st.Pending)
	})
}

// Go queues f. Before Start the task waits for the workers; after Stop it
// is rejected and never runs.
func (p *Pool) Go(f func()) {
	p.mu.Lock()
	started, stopped := p.started, p.stopped
	p.mu.Unlock()
	if stopped {
		p.rejected.Add(1)
		log.Warn("Worker pool stopped, rejecting task")
		return
	}
	if !started {
		p.earlyWarn.Do(func() {
			log.Warn("Worker pool not started, tasks wait until Start")
		})
	}

	select {
	case p.tasks <- f:
	default:
		// full queue: hand off without blocking the caller, which may hold the session lock
		p.mu.Lock()
		p.backlog++
		p.mu.Unlock()
		go func() {
			select {
			case p.tasks <- f:
			case <-p.stopCh:
			}
			p.mu.Lock()
			p.backlog--
			p.mu.Unlock()
		}()
	}
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	backlog := p.backlog
	p.mu.Unlock()
	return Stats{
		Workers:   p.workerCount,
		Pending:   len(p.tasks) + backlog,
		Running:   p.running.Load(),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case f := <-p.tasks:
			p.run(f)
		}
	}
}

func (p *Pool) run(f func()) {
	p.running.Add(1)
	defer func() {
		p.running.Add(-1)
		p.completed.Add(1)
		if r := recover(); r != nil {
			log.Error("Worker task panicked: %v", r)
		}
	}()
	f()
}
