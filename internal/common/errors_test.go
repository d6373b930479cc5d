package common

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMissingInputError(t *testing.T) {
	err := &MissingInputError{Kind: "rotation", Path: "R1.txt", Err: fs.ErrNotExist}

	assert.Contains(t, err.Error(), "rotation")
	assert.Contains(t, err.Error(), "R1.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	wrapped := fmt.Errorf("load: %w", err)
	var target *MissingInputError
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "R1.txt", target.Path)
}
