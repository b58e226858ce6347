// Package loader resolves content references into scene nodes off the engine loop.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scenewalk/scenewalk/internal/queue"
	"github.com/scenewalk/scenewalk/internal/scene"
)

// ErrClosed is reported for requests made after Close.
var ErrClosed = errors.New("loader closed")

// Kind says where a loaded asset goes.
type Kind int

const (
	KindPart Kind = iota
	KindStatic
	KindOccluder
)

func (k Kind) String() string {
	switch k {
	case KindPart:
		return "part"
	case KindStatic:
		return "static"
	case KindOccluder:
		return "occluder"
	default:
		return "unknown"
	}
}

// Request addresses one asset within the tour.
type Request struct {
	Target int
	Slot   int
	Part   int
	Kind   Kind
	Ref    string
}

// Result is delivered once per request.
type Result struct {
	Request
	Asset   *scene.Asset
	Err     error
	Elapsed time.Duration
}

// Source loads one reference. Implementations must honor ctx cancellation.
type Source interface {
	Load(ctx context.Context, ref string) (*scene.Asset, error)
}

// Pool runs loads on a fixed number of workers and hands results to a sink.
// Request never blocks, so it is safe to call from the engine loop.
type Pool struct {
	src     Source
	workers int
	sink    func(Result)
	log     *slog.Logger

	backlog *queue.Queue[Request]
	work    chan Request
	closed  atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates a stopped pool.
func NewPool(src Source, workers int, sink func(Result), log *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		src:     src,
		workers: workers,
		sink:    sink,
		log:     log,
		backlog: queue.New[Request](),
		work:    make(chan Request),
	}
}

// Start launches the feeder and workers. They stop when ctx ends or Close is called.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.feed(ctx)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
	p.log.Debug("loader started", "workers", p.workers)
}

// Request queues a load.
func (p *Pool) Request(req Request) {
	if p.closed.Load() {
		p.sink(Result{Request: req, Err: ErrClosed})
		return
	}
	p.backlog.Push(req)
}

// Pending returns how many requests wait for a worker.
func (p *Pool) Pending() int {
	return p.backlog.Len()
}

// Close stops the workers and waits for them. Queued requests are dropped.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	if n := p.backlog.Len(); n > 0 {
		p.log.Warn("loader closed with pending requests", "pending", n)
	}
}

func (p *Pool) feed(ctx context.Context) {
	defer p.wg.Done()
	for {
		req, ok := p.backlog.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-p.backlog.Ready():
				continue
			}
		}
		select {
		case <-ctx.Done():
			return
		case p.work <- req:
		}
	}
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-p.work:
			start := time.Now()
			asset, err := p.src.Load(ctx, req.Ref)
			res := Result{Request: req, Asset: asset, Err: err, Elapsed: time.Since(start)}
			if err != nil {
				p.log.Warn("asset load failed", "ref", req.Ref, "kind", req.Kind, "error", err)
			} else {
				p.log.Debug("asset loaded", "ref", req.Ref, "kind", req.Kind, "elapsed", res.Elapsed)
			}
			p.sink(res)
		}
	}
}
