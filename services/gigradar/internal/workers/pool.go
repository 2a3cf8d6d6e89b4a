package workers

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type Task func(ctx context.Context)

// Pool runs chat event handlers off the gateway goroutine with a fixed
// number of workers.
type Pool struct {
	tasks  chan namedTask
	logger *zap.Logger
	wg     sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	dropped int32
}

type namedTask struct {
	name string
	fn   Task
}

func NewPool(ctx context.Context, workers, queue int, logger *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	p := &Pool{
		tasks:  make(chan namedTask, queue),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for t := range p.tasks {
				p.run(ctx, t)
			}
		}()
	}
	return p
}

func (p *Pool) run(ctx context.Context, t namedTask) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", zap.String("task", t.name), zap.Any("panic", r))
		}
	}()
	t.fn(ctx)
}

// Submit queues fn and reports false when the queue is full or the pool is
// closed.
func (p *Pool) Submit(name string, fn Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- namedTask{name: name, fn: fn}:
		return true
	default:
		atomic.AddInt32(&p.dropped, 1)
		p.logger.Warn("worker queue full, dropping task", zap.String("task", name))
		return false
	}
}

func (p *Pool) Dropped() int {
	return int(atomic.LoadInt32(&p.dropped))
}

// Close stops accepting work and waits for queued tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
