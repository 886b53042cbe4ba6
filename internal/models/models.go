package models

import (
	"fmt"
	"strings"
)

// Structure identifies which part of the brain a volume covers
type Structure int

const (
	StructureUnknown Structure = iota
	StructureLeft
	StructureRight
	StructureBoth
)

// String returns the configuration name of the structure
func (s Structure) String() string {
	switch s {
	case StructureLeft:
		return "left"
	case StructureRight:
		return "right"
	case StructureBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseStructure converts a configuration name into a Structure
func ParseStructure(name string) (Structure, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "left", "cortex_left", "l":
		return StructureLeft, nil
	case "right", "cortex_right", "r":
		return StructureRight, nil
	case "both", "cerebrum":
		return StructureBoth, nil
	case "", "unknown":
		return StructureUnknown, nil
	}
	return StructureUnknown, fmt.Errorf("unknown structure %q", name)
}

// Hem is 1 for the right hemisphere and 0 otherwise. AC-relative limits are
// mirrored with it.
func (s Structure) Hem() int {
	if s == StructureRight {
		return 1
	}
	return 0
}

// Face is one of the six faces of a voxel grid
type Face int

const (
	FaceNegX Face = iota
	FacePosX
	FaceNegY
	FacePosY
	FaceNegZ
	FacePosZ
)

// Axis returns the grid axis (0, 1 or 2) the face is perpendicular to
func (f Face) Axis() int { return int(f) / 2 }

// Positive reports whether the face lies at the high end of its axis
func (f Face) Positive() bool { return int(f)%2 == 1 }

func (f Face) String() string {
	return [...]string{"negX", "posX", "negY", "posY", "negZ", "posZ"}[f]
}

// PaddingSpec describes the partial-hemisphere padding. Amounts are in voxels
// and only take effect on faces marked as cut.
type PaddingSpec struct {
	// Amount is the padding depth per face, indexed by Face
	Amount [6]int

	// Cut marks the faces along which the hemisphere was cut
	Cut [6]bool

	// Erode shrinks each successive padding layer so the cap is rounded
	Erode bool
}

// Effective returns the padding amount that applies to a face
func (p PaddingSpec) Effective(f Face) int {
	if !p.Cut[f] || p.Amount[f] < 0 {
		return 0
	}
	return p.Amount[f]
}

// Active reports whether any cut face carries padding
func (p PaddingSpec) Active() bool {
	for f := FaceNegX; f <= FacePosZ; f++ {
		if p.Effective(f) > 0 {
			return true
		}
	}
	return false
}

// Validate checks the amounts against the grid dimensions
func (p PaddingSpec) Validate(dims [3]int) error {
	for f := FaceNegX; f <= FacePosZ; f++ {
		if p.Amount[f] < 0 {
			return fmt.Errorf("padding on %s is negative (%d)", f, p.Amount[f])
		}
		if p.Effective(f) >= dims[f.Axis()] {
			return fmt.Errorf("padding on %s (%d) does not fit dimension %d", f, p.Amount[f], dims[f.Axis()])
		}
	}
	return nil
}

// PeakIntensities holds the modal gray and white matter intensities of the
// anatomy histogram, in the 0-255 range.
type PeakIntensities struct {
	Gray  float64
	White float64
}

// Valid reports whether the peaks satisfy White > Gray > 0
func (p PeakIntensities) Valid() bool {
	return p.Gray > 0 && p.White > p.Gray
}

// Zero reports whether no peaks were supplied
func (p PeakIntensities) Zero() bool {
	return p.Gray == 0 && p.White == 0
}

// Classification is the peak/low/high/signum quadruple used to turn an
// intensity into a tissue-class membership.
type Classification struct {
	Peak   float64
	Low    float64
	High   float64
	Signum float64
}

// Thresholds are the intensity parameters derived from the peaks
type Thresholds struct {
	// WhiteMatter separates white matter from gray matter
	WhiteMatter float64

	// InnerBoundary classifies the white/gray transition
	InnerBoundary Classification

	// GrayMatter classifies cortical gray matter
	GrayMatter Classification

	// CSF is the upper intensity of cerebrospinal fluid
	CSF float64

	// OuterBoundary classifies the gray/CSF transition
	OuterBoundary Classification
}

// DeriveThresholds computes the thresholds from the peaks. A positive
// midThreshOverride replaces the white matter threshold.
func DeriveThresholds(p PeakIntensities, midThreshOverride float64) Thresholds {
	t := Thresholds{}
	t.WhiteMatter = (p.White + p.Gray) * 0.5
	if midThreshOverride > 0 {
		t.WhiteMatter = midThreshOverride
	}

	t.InnerBoundary = Classification{
		Peak:   (p.White + p.Gray) / 2.0,
		Low:    p.Gray,
		High:   p.White,
		Signum: 2.0,
	}
	t.GrayMatter = Classification{
		Peak:   p.Gray,
		Low:    p.Gray / 2.0,
		High:   t.InnerBoundary.Peak,
		Signum: 1.3,
	}
	t.CSF = p.Gray / 2.0
	t.OuterBoundary = Classification{
		Peak:   p.Gray / 2.0,
		Low:    t.CSF * 0.5,
		High:   p.Gray,
		Signum: 2.0,
	}
	return t
}
