package plugin

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Dispatcher runs every plugin that handles a request's action in the
// background. Failures are logged and never reach the caller.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	logger   *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	launched int
	failed   int
}

// NewDispatcher creates a Dispatcher over the plugins known to manager.
func NewDispatcher(manager *Manager, executor *Executor, logger *zap.SugaredLogger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		manager:  manager,
		executor: executor,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Dispatch starts one goroutine per plugin handling req.Action and returns
// how many were started.
func (d *Dispatcher) Dispatch(req *Request) int {
	plugins := d.manager.ForAction(req.Action)
	for _, p := range plugins {
		d.wg.Add(1)
		go d.run(p, req)
	}

	d.mu.Lock()
	d.launched += len(plugins)
	d.mu.Unlock()

	return len(plugins)
}

func (d *Dispatcher) run(p *Plugin, req *Request) {
	defer d.wg.Done()

	log := d.logger.With("plugin", p.Manifest.Name, "action", req.Action)
	resp, err := d.executor.Execute(d.ctx, p, req)
	switch {
	case err != nil:
		log.Warnw("plugin failed", "error", err)
	case !resp.Success:
		log.Warnw("plugin reported failure", "error", resp.Error)
	default:
		log.Debugw("plugin succeeded")
		return
	}

	d.mu.Lock()
	d.failed++
	d.mu.Unlock()
}

// Wait blocks until every dispatched plugin has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close cancels running plugins and waits for them to exit.
func (d *Dispatcher) Close() error {
	d.cancel()
	d.wg.Wait()
	return nil
}

// Counts returns how many plugin runs were started and how many failed.
func (d *Dispatcher) Counts() (launched, failed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.launched, d.failed
}
