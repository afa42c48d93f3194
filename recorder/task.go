package recorder

import (
	"context"

	"murmur/errs"
)

// Task is a joinable background job producing a transcript. It mirrors the
// recorder's single-session invariant: the Service holds at most one.
type Task struct {
	done chan struct{}
	text string
	err  error
}

// Go runs fn in the background. A panic inside fn becomes an internal error
// rather than taking down the process.
func Go(fn func() (string, error)) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.err = errs.Newf(errs.CodeInternal, "streaming session panic: %v", r)
			}
			close(t.done)
		}()
		t.text, t.err = fn()
	}()
	return t
}

func (t *Task) Join(ctx context.Context) (string, error) {
	select {
	case <-t.done:
		return t.text, t.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *Task) Done() <-chan struct{} { return t.done }
