package segmentation

import (
	"fmt"
	"sort"

	"surefit/pkg/volume"
)

// arena owns the named intermediate grids of one run. Every grid a stage
// hands to a later stage goes through keep, so the run's memory is bounded
// by limit and released in one place.
type arena struct {
	limit int64
	used  int64
	grids map[string]*volume.Grid
}

func newArena(limit int64) *arena {
	return &arena{limit: limit, grids: make(map[string]*volume.Grid)}
}

// keep stores g under name, replacing any grid already stored there
func (a *arena) keep(name string, g *volume.Grid) error {
	if g == nil {
		return fmt.Errorf("no grid to keep as %s", name)
	}
	size := g.SizeBytes()
	var prev int64
	if old, ok := a.grids[name]; ok {
		prev = old.SizeBytes()
	}
	if a.limit > 0 && a.used-prev+size > a.limit {
		return fmt.Errorf("%w: keeping %s needs %d bytes, %d of %d in use",
			ErrResourceExhausted, name, size, a.used, a.limit)
	}
	a.grids[name] = g
	a.used += size - prev
	return nil
}

// get returns the grid stored under name, or nil
func (a *arena) get(name string) *volume.Grid {
	return a.grids[name]
}

// release drops the named grids
func (a *arena) release(names ...string) {
	for _, name := range names {
		if g, ok := a.grids[name]; ok {
			a.used -= g.SizeBytes()
			delete(a.grids, name)
		}
	}
}

// reset drops every grid
func (a *arena) reset() {
	a.grids = make(map[string]*volume.Grid)
	a.used = 0
}

// names lists the stored grids in sorted order
func (a *arena) names() []string {
	out := make([]string, 0, len(a.grids))
	for name := range a.grids {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
