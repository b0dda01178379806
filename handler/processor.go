package handler

import (
	"context"
	"sync"

	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/event"
)

// Processor is one step of a handler's sub-chain
type Processor interface {
	Process(ctx context.Context, evt *event.Event) (*event.Event, error)
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(ctx context.Context, evt *event.Event) (*event.Event, error)

// Process implements Processor
func (f ProcessorFunc) Process(ctx context.Context, evt *event.Event) (*event.Event, error) {
	return f(ctx, evt)
}

// AsyncProcessor completes by calling done, possibly from another goroutine.
// Routing of the handler is suspended until done is called exactly once.
type AsyncProcessor interface {
	ProcessAsync(ctx context.Context, evt *event.Event, done func(*event.Event, error))
}

// AsyncProcessorFunc adapts a function to AsyncProcessor. Its Process method
// blocks until the function calls done.
type AsyncProcessorFunc func(ctx context.Context, evt *event.Event, done func(*event.Event, error))

// ProcessAsync implements AsyncProcessor
func (f AsyncProcessorFunc) ProcessAsync(ctx context.Context, evt *event.Event, done func(*event.Event, error)) {
	f(ctx, evt, done)
}

// Process implements Processor
func (f AsyncProcessorFunc) Process(ctx context.Context, evt *event.Event) (*event.Event, error) {
	type result struct {
		evt *event.Event
		err error
	}
	ch := make(chan result, 1)
	f(ctx, evt, func(out *event.Event, err error) { ch <- result{out, err} })
	select {
	case r := <-ch:
		return r.evt, r.err
	case <-ctx.Done():
		return evt, ctx.Err()
	}
}

// runProcessors runs procs in order starting at index from and reports the
// final event to done. A nil result keeps the previous event.
func runProcessors(ctx context.Context, procs []Processor, from int, evt *event.Event, done func(*event.Event, error)) {
	for i := from; i < len(procs); i++ {
		if err := ctx.Err(); err != nil {
			done(evt, err)
			return
		}

		if async, ok := procs[i].(AsyncProcessor); ok {
			next, current := i+1, evt
			var once sync.Once
			async.ProcessAsync(ctx, evt, func(out *event.Event, err error) {
				once.Do(func() {
					if out == nil {
						out = current
					}
					if err != nil {
						done(out, err)
						return
					}
					runProcessors(ctx, procs, next, out, done)
				})
			})
			return
		}

		out, err := process(ctx, procs[i], evt)
		if out != nil {
			evt = out
		}
		if err != nil {
			done(evt, err)
			return
		}
	}
	done(evt, nil)
}

func process(ctx context.Context, p Processor, evt *event.Event) (out *event.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &errors.PanicError{Value: r}
		}
	}()
	return p.Process(ctx, evt)
}
