package server

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/chazu/tinyscript/engine"
)

// ErrWorkerStopped is returned for work submitted after Stop.
var ErrWorkerStopped = errors.New("engine worker stopped")

// job is one unit of work for the engine goroutine. When fresh is set the
// engine is reset first, so the job sees no variables from earlier jobs.
type job struct {
	fn    func(*engine.Engine) (interface{}, error)
	fresh bool
	reply chan outcome
}

type outcome struct {
	value interface{}
	err   error
}

// EngineWorker owns an engine and runs every job against it on a single
// goroutine. Document analysis always starts from a reset engine.
type EngineWorker struct {
	engine *engine.Engine
	jobs   chan job
	quit   chan struct{}
	once   sync.Once
}

// NewEngineWorker starts a worker goroutine for e.
func NewEngineWorker(e *engine.Engine) *EngineWorker {
	w := &EngineWorker{
		engine: e,
		jobs:   make(chan job, 64),
		quit:   make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *EngineWorker) loop() {
	for {
		select {
		case j := <-w.jobs:
			j.reply <- w.run(j)
		case <-w.quit:
			return
		}
	}
}

// run executes j, turning a panic in the compiler or machine into an error.
func (w *EngineWorker) run(j job) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{err: errors.Errorf("%v", r)}
		}
	}()
	if j.fresh {
		w.engine.Reset()
	}
	v, err := j.fn(w.engine)
	return outcome{value: v, err: err}
}

func (w *EngineWorker) submit(fn func(*engine.Engine) (interface{}, error), fresh bool) (interface{}, error) {
	j := job{fn: fn, fresh: fresh, reply: make(chan outcome, 1)}
	select {
	case w.jobs <- j:
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
	select {
	case out := <-j.reply:
		return out.value, out.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Analyze compiles text as a script on a reset engine and returns the
// result. The analysis shares nothing with the engine afterwards, so
// callers may inspect it on their own goroutine.
func (w *EngineWorker) Analyze(text string) (*analysis, error) {
	v, err := w.submit(func(e *engine.Engine) (interface{}, error) {
		return analyze(e, text), nil
	}, true)
	if err != nil {
		return nil, err
	}
	return v.(*analysis), nil
}

// Stop shuts the worker down. Pending and later calls return
// ErrWorkerStopped. Stop may be called more than once.
func (w *EngineWorker) Stop() {
	w.once.Do(func() { close(w.quit) })
}
