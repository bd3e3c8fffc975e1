package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/scriptc/cache"
	"github.com/chazu/scriptc/compiler"
	"github.com/chazu/scriptc/pkg/bytecode"
)

// CompileEnv is the state shared by every compile the worker runs.
type CompileEnv struct {
	Options compiler.Options // defaults for requests
	Pages   *compiler.PagePool
	Cache   *cache.Cache // optional
}

var errWorkerStopped = errors.New("compile worker stopped")

// compileRequest represents a unit of work to be executed on the worker goroutine.
type compileRequest struct {
	fn   func(*CompileEnv) any
	done chan compileResult
}

// compileResult holds the return value from a worker operation.
type compileResult struct {
	value any
	err   error
}

// CompileWorker serializes compiles through a single goroutine, so one
// page pool serves every request and a runaway compile cannot take down
// the process.
type CompileWorker struct {
	env      *CompileEnv
	requests chan compileRequest
	quit     chan struct{}
	stop     sync.Once
}

// NewCompileWorker creates a CompileWorker and starts the processing goroutine.
func NewCompileWorker(env *CompileEnv) *CompileWorker {
	if env.Pages == nil {
		env.Pages = compiler.NewPagePool()
	}
	w := &CompileWorker{
		env:      env,
		requests: make(chan compileRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *CompileWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			result := w.execute(req.fn)
			req.done <- result
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func (w *CompileWorker) execute(fn func(*CompileEnv) any) compileResult {
	var result compileResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("compile panicked: %v", r)
				result.err = fmt.Errorf("internal compiler failure: %v", r)
			}
		}()
		result.value = fn(w.env)
	}()
	return result
}

// Do submits fn for execution on the worker goroutine and blocks until it
// completes or ctx is done. Panics in fn are returned as errors.
func (w *CompileWorker) Do(ctx context.Context, fn func(*CompileEnv) any) (any, error) {
	select {
	case <-w.quit:
		return nil, errWorkerStopped
	default:
	}
	req := compileRequest{
		fn:   fn,
		done: make(chan compileResult, 1),
	}
	select {
	case w.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.quit:
		return nil, errWorkerStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.quit:
		return nil, errWorkerStopped
	}
}

// CompileOutcome is the result of one compile request.
type CompileOutcome struct {
	Code   *bytecode.CompiledCode
	Err    error // compile error, a *compiler.Error
	Cached bool
}

// Compile compiles source as a script on the worker. A non-empty name
// compiles source as a function body with the given parameters instead.
func (w *CompileWorker) Compile(ctx context.Context, source, params, name string, opts compiler.Options) (CompileOutcome, error) {
	v, err := w.Do(ctx, func(env *CompileEnv) any {
		opts.Pages = env.Pages
		var out CompileOutcome
		switch {
		case env.Cache != nil && name != "":
			out.Code, out.Cached, out.Err = env.Cache.CompileFunction(params, source, name, opts)
		case env.Cache != nil:
			out.Code, out.Cached, out.Err = env.Cache.Compile(source, opts)
		case name != "":
			out.Code, out.Err = compiler.CompileFunction(params, source, name, opts)
		default:
			out.Code, out.Err = compiler.Compile(source, opts)
		}
		return out
	})
	if err != nil {
		return CompileOutcome{}, err
	}
	return v.(CompileOutcome), nil
}

// Options returns the default compile options.
func (w *CompileWorker) Options() compiler.Options {
	return w.env.Options
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *CompileWorker) Stop() {
	w.stop.Do(func() { close(w.quit) })
}
