package poller

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Group runs one Loop per symbol.
type Group struct {
	loops []*Loop
}

// NewGroup creates a Group over loops.
func NewGroup(loops ...*Loop) *Group {
	return &Group{loops: loops}
}

// Loops returns the managed loops.
func (g *Group) Loops() []*Loop {
	return g.loops
}

// Run runs every loop until ctx is cancelled. If any loop fails to open its
// source, the others are cancelled and the first error is returned.
func (g *Group) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, l := range g.loops {
		eg.Go(func() error {
			return l.Run(ctx)
		})
	}
	return eg.Wait()
}

// LoopStatus is the externally visible state of one loop.
type LoopStatus struct {
	Symbol string
	Cycles int64
	Last   CycleReport
}

// Status returns the last report of every loop, sorted by symbol.
func (g *Group) Status() []LoopStatus {
	out := make([]LoopStatus, 0, len(g.loops))
	for _, l := range g.loops {
		last, cycles := l.LastReport()
		out = append(out, LoopStatus{Symbol: l.Symbol(), Cycles: cycles, Last: last})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
