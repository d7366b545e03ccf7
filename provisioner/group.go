package provisioner

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// group runs independent calls concurrently and joins them all-or-nothing.
// Members are not cancelled when a sibling fails: every member is awaited and
// the first error is returned.
type group struct {
	step Step
	g    errgroup.Group
}

func newGroup(step Step) *group {
	return &group{step: step}
}

// Go starts fn; name identifies the member in the returned error.
func (g *group) Go(name string, fn func() error) {
	g.g.Go(func() error {
		if err := fn(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
}

// Wait blocks until every member has returned. Groups without a step leave
// member errors unprefixed.
func (g *group) Wait() error {
	err := g.g.Wait()
	if err != nil && g.step != "" {
		return fmt.Errorf("step %s: %w", g.step, err)
	}
	return err
}
