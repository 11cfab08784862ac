package optimization

import (
	apperrors "github.com/copyleftdev/irtune/internal/errors"
)

const component = "optimization"

// stageFailed wraps a generation error into the single error an aborted
// run surfaces.
func stageFailed(stage Stage, err error) error {
	if !apperrors.Is(err, apperrors.GenerationFailure) {
		err = apperrors.Wrap(apperrors.GenerationFailure, err, "")
	}
	return apperrors.Wrap(apperrors.OptimizationFailed, err, "stage "+stage.String()).
		WithComponent(component).
		WithOperation("Run")
}
