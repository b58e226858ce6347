package loader

import (
	"context"
	"time"
)

// Inline loads on the caller's goroutine and hands the result straight to the sink.
// Scripted runs use it so load completions land in a fixed order.
type Inline struct {
	Source Source
	Sink   func(Result)
}

// Request implements coordinator.Loader.
func (l *Inline) Request(req Request) {
	start := time.Now()
	asset, err := l.Source.Load(context.Background(), req.Ref)
	l.Sink(Result{Request: req, Asset: asset, Err: err, Elapsed: time.Since(start)})
}
