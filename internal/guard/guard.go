package guard

import (
	"context"

	"github.com/elys-network/stablevault/internal/types"
)

// Guard serializes entry points. The context returned by Enter is marked, so a collaborator that
// calls back into the guarded component with it is rejected instead of deadlocking.
type Guard struct {
	ch chan struct{}
}

func New() *Guard {
	return &Guard{ch: make(chan struct{}, 1)}
}

// Enter blocks until the guard is free or ctx is done. The returned release func is always
// safe to call, including after an error.
func (g *Guard) Enter(ctx context.Context) (context.Context, func(), error) {
	if ctx.Value(g) != nil {
		return ctx, func() {}, types.ErrReentrantCall
	}
	select {
	case g.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx, func() {}, ctx.Err()
	}
	return context.WithValue(ctx, g, true), func() { <-g.ch }, nil
}

// Held reports whether ctx was issued by Enter on g.
func (g *Guard) Held(ctx context.Context) bool {
	return ctx.Value(g) != nil
}
