package common

import "fmt"

// MissingInputError reports an image or parameter file that could not be read.
type MissingInputError struct {
	Kind string // "image", "intrinsic", "rotation", "translation"
	Path string
	Err  error
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing %s input %s: %v", e.Kind, e.Path, e.Err)
}

func (e *MissingInputError) Unwrap() error { return e.Err }
