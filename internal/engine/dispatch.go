package engine

import (
	"fmt"
	"strconv"

	"github.com/scenewalk/scenewalk/internal/dispatcher"
	"github.com/scenewalk/scenewalk/internal/loader"
)

// RegisterHandlers registers all event handlers with the dispatcher.
func (e *Engine) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Tracking
	d.Register(CmdFound, e.handleFound, dispatcher.Logged())
	d.Register(CmdLost, e.handleLost, dispatcher.Logged())

	// Load results must never be dropped or the sequence waits forever
	d.Register(CmdLoaded, e.handleLoaded, dispatcher.Blocking(), dispatcher.Logged())

	// Navigation
	d.Register(CmdNext, e.handleNext, dispatcher.Logged())
	d.Register(CmdPrev, e.handlePrev, dispatcher.Logged())
	d.Register(CmdReplay, e.handleReplay, dispatcher.Logged())
}

func (e *Engine) handleFound(ev dispatcher.Event) (any, error) {
	id, err := targetArg(ev)
	if err != nil {
		return nil, err
	}
	return nil, e.deps.Coordinator.Found(id)
}

func (e *Engine) handleLost(ev dispatcher.Event) (any, error) {
	id, err := targetArg(ev)
	if err != nil {
		return nil, err
	}
	return nil, e.deps.Coordinator.Lost(id)
}

func (e *Engine) handleLoaded(ev dispatcher.Event) (any, error) {
	res, ok := ev.Payload.(loader.Result)
	if !ok {
		return nil, fmt.Errorf("load event carries %T, want loader.Result", ev.Payload)
	}
	return nil, e.deps.Coordinator.Loaded(res)
}

func (e *Engine) handleNext(dispatcher.Event) (any, error) {
	return e.deps.Coordinator.Next(), nil
}

func (e *Engine) handlePrev(dispatcher.Event) (any, error) {
	return e.deps.Coordinator.Prev(), nil
}

func (e *Engine) handleReplay(dispatcher.Event) (any, error) {
	return e.deps.Coordinator.Replay(), nil
}

func targetArg(ev dispatcher.Event) (int, error) {
	if len(ev.Args) != 1 {
		return 0, fmt.Errorf("%s: expected 1 arg, got %d", ev.Command, len(ev.Args))
	}
	id, err := strconv.Atoi(ev.Args[0])
	if err != nil {
		return 0, fmt.Errorf("%s: bad target id %q: %w", ev.Command, ev.Args[0], err)
	}
	return id, nil
}
