package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/panostitch/internal/common"
	"github.com/MeKo-Tech/panostitch/internal/params"
	"github.com/MeKo-Tech/panostitch/internal/utils"
)

// Stage names a step of the stitching pipeline.
type Stage string

const (
	StageLoad    Stage = "load"
	StageCompose Stage = "compose"
	StageProject Stage = "project"
	StageEmit    Stage = "emit"
)

// StageError wraps the failure that aborted a run with the stage, camera and
// file it happened in.
type StageError struct {
	Stage  Stage
	Camera int // -1 when the failure is not tied to one camera
	Path   string
	Err    error
}

func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s stage failed", e.Stage)
	if e.Camera >= 0 {
		fmt.Fprintf(&b, " for camera %d", e.Camera)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *StageError) Unwrap() error { return e.Err }

// newStageError wraps err, taking the file path from the typed input errors
// when the caller does not know it.
func newStageError(stage Stage, camera int, path string, err error) *StageError {
	if path == "" {
		path = errorPath(err)
	}
	return &StageError{Stage: stage, Camera: camera, Path: path, Err: err}
}

func errorPath(err error) string {
	var missing *common.MissingInputError
	if errors.As(err, &missing) {
		return missing.Path
	}
	var format *params.ParameterFormatError
	if errors.As(err, &format) {
		return format.Path
	}
	var dims *utils.DimensionMismatchError
	if errors.As(err, &dims) {
		return dims.Path
	}
	var img *utils.ImageProcessingError
	if errors.As(err, &img) {
		return img.Path
	}
	return ""
}
