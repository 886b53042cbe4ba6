package segmentation

import (
	"errors"
	"fmt"

	"surefit/pkg/volume"
)

var (
	// ErrPrecondition is returned when an input violates what a stage needs:
	// mismatched grids, invalid peaks, a missing AC, an unknown structure
	ErrPrecondition = errors.New("precondition failed")

	// ErrResourceExhausted is returned when an intermediate grid does not fit
	// the memory limit of the run
	ErrResourceExhausted = errors.New("resource exhausted")
)

// Stage names one step of the pipeline
type Stage string

const (
	StageSetup             Stage = "setup"
	StageDisconnectEye     Stage = "disconnectEye"
	StageDisconnectHind    Stage = "disconnectHindbrain"
	StageCutCorpusCallosum Stage = "cutCorpusCallosum"
	StageMask              Stage = "applyMask"
	StageInnerBoundary     Stage = "innerBoundary"
	StageOuterBoundary     Stage = "outerBoundary"
	StageSegmentation      Stage = "segmentation"
	StageFillVentricles    Stage = "fillVentricles"
	StagePadding           Stage = "padCutFaces"
	StageErrorCorrection   Stage = "errorCorrection"
	StageSurface           Stage = "surface"
	StageCorrectSurface    Stage = "topologicallyCorrectSurface"
	StageInflate           Stage = "inflatedSurface"
)

// StageError reports which stage failed and why
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// stageErr wraps err for stage, translating the volume sentinels into the
// pipeline taxonomy
func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, volume.ErrDimensionMismatch), errors.Is(err, volume.ErrInvalidGeometry):
		if !errors.Is(err, ErrPrecondition) {
			err = fmt.Errorf("%w: %w", ErrPrecondition, err)
		}
	case errors.Is(err, volume.ErrResourceExhausted):
		if !errors.Is(err, ErrResourceExhausted) {
			err = fmt.Errorf("%w: %w", ErrResourceExhausted, err)
		}
	}
	return &StageError{Stage: stage, Err: err}
}

// preconditionf builds an ErrPrecondition with a message
func preconditionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}
