package errgroupx

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// Group wraps errgroup.Group so that its context is always canceled once the group is done with,
// whether or not a member failed.
type Group struct {
	inner   *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	recover bool
}

// WithContext creates a Group whose context is a child of ctx.
func WithContext(ctx context.Context) *Group {
	parent, cancel := context.WithCancel(ctx)
	g, groupCtx := errgroup.WithContext(parent)
	return &Group{inner: g, ctx: groupCtx, cancel: cancel}
}

// WithRecover turns panics in members into errors returned by Wait.
func (g *Group) WithRecover() *Group {
	g.recover = true
	return g
}

// Context is canceled when any member fails or the group is canceled.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Go runs f as a member of the group. A non-nil error cancels the group's context.
func (g *Group) Go(f func(ctx context.Context) error) {
	g.inner.Go(func() (err error) {
		defer func() {
			if !g.recover {
				return
			}
			if rec := recover(); rec != nil {
				err = fmt.Errorf("%s\n%s", rec, debug.Stack())
			}
		}()
		return f(g.ctx)
	})
}

// Wait blocks until every member returns and reports the first error.
func (g *Group) Wait() error {
	defer g.cancel()
	return g.inner.Wait()
}

// Cancel cancels the group without waiting for it.
func (g *Group) Cancel() {
	g.cancel()
}

// Close cancels the group and waits for it.
func (g *Group) Close() error {
	g.cancel()
	return g.Wait()
}
