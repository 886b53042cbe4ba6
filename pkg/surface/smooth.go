package surface

import (
	"runtime"
	"sync"

	"github.com/golang/geo/r3"
)

// SmoothParams controls Laplacian smoothing
type SmoothParams struct {
	// Strength is the fraction of the way each vertex moves towards the mean
	// of its neighbours per iteration, in (0, 1]
	Strength float64

	// Iterations is the number of smoothing passes
	Iterations int

	// NumWorkers is the number of goroutines sharing each pass. Values below
	// one use every CPU.
	NumWorkers int
}

// Smooth returns a smoothed copy of coords. Each pass reads the previous
// pass only, so the vertex range can be split among workers.
func Smooth(topo *Topology, coords Coordinates, p SmoothParams) Coordinates {
	cur := coords.Clone()
	if p.Iterations <= 0 || p.Strength <= 0 || len(coords) == 0 {
		return cur
	}
	strength := min(p.Strength, 1)
	numWorkers := p.NumWorkers
	if numWorkers < 1 {
		numWorkers = runtime.NumCPU()
	}

	neighbors := topo.Neighbors()
	next := make(Coordinates, len(cur))
	n := len(cur)
	perWorker := (n + numWorkers - 1) / numWorkers

	for it := 0; it < p.Iterations; it++ {
		var wg sync.WaitGroup
		for w := 0; w < numWorkers; w++ {
			start := w * perWorker
			end := min(start+perWorker, n)
			if start >= end {
				continue
			}
			wg.Add(1)
			go func(start, end int) {
				defer wg.Done()
				for v := start; v < end; v++ {
					nb := neighbors[v]
					if len(nb) == 0 {
						next[v] = cur[v]
						continue
					}
					var sum r3.Vector
					for _, u := range nb {
						sum = sum.Add(cur[u])
					}
					mean := sum.Mul(1 / float64(len(nb)))
					next[v] = cur[v].Add(mean.Sub(cur[v]).Mul(strength))
				}
			}(start, end)
		}
		wg.Wait()
		cur, next = next, cur
	}
	return cur
}
