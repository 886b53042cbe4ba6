// Package correction repairs topological defects of a binary segmentation
// before surface reconstruction.
package correction

import (
	"fmt"
	"strings"
)

// Method selects which correctors run and in which order
type Method int

const (
	// None leaves the segmentation as is and only reports its topology
	None Method = iota
	// Graph runs the slice-graph corrector
	Graph
	// SureFit runs the morphological residue corrector
	SureFit
	// SureFitThenGraph runs SureFit and then Graph
	SureFitThenGraph
	// GraphThenSureFit runs Graph and then SureFit
	GraphThenSureFit
)

var methodNames = map[Method]string{
	None:             "none",
	Graph:            "graph",
	SureFit:          "surefit",
	SureFitThenGraph: "surefit-then-graph",
	GraphThenSureFit: "graph-then-surefit",
}

func (m Method) String() string {
	if n, ok := methodNames[m]; ok {
		return n
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// Valid reports whether m names a known method
func (m Method) Valid() bool {
	_, ok := methodNames[m]
	return ok
}

// ParseMethod converts a configuration name into a Method
func ParseMethod(name string) (Method, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer("_", "-", " ", "-").Replace(n)
	if n == "" {
		return None, nil
	}
	for m, s := range methodNames {
		if s == n {
			return m, nil
		}
	}
	return None, fmt.Errorf("unknown error correction method %q", name)
}

// MarshalText implements encoding.TextMarshaler so methods read naturally in
// configuration files and reports
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// corrector is one correction algorithm
type corrector interface {
	name() string
	correct(c *run) error
}

// steps is the single dispatch table from method to correctors
func (m Method) steps() ([]corrector, error) {
	switch m {
	case None:
		return nil, nil
	case Graph:
		return []corrector{graphCorrector{}}, nil
	case SureFit:
		return []corrector{sureFitCorrector{}}, nil
	case SureFitThenGraph:
		return []corrector{sureFitCorrector{}, graphCorrector{}}, nil
	case GraphThenSureFit:
		return []corrector{graphCorrector{}, sureFitCorrector{}}, nil
	}
	return nil, fmt.Errorf("unknown error correction method %d", int(m))
}
