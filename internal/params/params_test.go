package params

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/panostitch/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestParseIntrinsic(t *testing.T) {
	in := "800 0 320\n0 810 240\n0 0 1\n"
	m, err := Parse(strings.NewReader(in), "K.txt", 3, 3)
	require.NoError(t, err)

	assert.InDelta(t, 800, m.At(0, 0), 1e-12)
	assert.InDelta(t, 810, m.At(1, 1), 1e-12)
	assert.InDelta(t, 320, m.At(0, 2), 1e-12)
	assert.InDelta(t, 240, m.At(1, 2), 1e-12)
}

func TestParseSkipsCommentsAndIrregularWhitespace(t *testing.T) {
	in := "#Intrinsic matrix\n 1 2\t3 4\n\n5 6 7 8 9 \n"
	m, err := Parse(strings.NewReader(in), "K.txt", 3, 3)
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, mat.NewDense(3, 3, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9})))
}

func TestParseTokenCount(t *testing.T) {
	tests := []struct {
		name string
		in   string
		got  int
	}{
		{"too few", "1 0 0 0 1 0 0 0", 8},
		{"too many", "1 0 0 0 1 0 0 0 1 7", 10},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in), "R1.txt", 3, 3)
			var perr *ParameterFormatError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, 9, perr.Want)
			assert.Equal(t, tt.got, perr.Got)
			assert.Equal(t, "R1.txt", perr.Path)
		})
	}
}

func TestParseInvalidToken(t *testing.T) {
	_, err := Parse(strings.NewReader("1 0 0 0 x 0 0 0 1"), "R.txt", 3, 3)
	var perr *ParameterFormatError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "x", perr.Token)
	assert.Contains(t, err.Error(), `"x"`)
}

func TestReadMatrixMissingFile(t *testing.T) {
	_, err := LoadRotation(filepath.Join(t.TempDir(), "nope.txt"))
	var missing *common.MissingInputError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "rotation", missing.Kind)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteThenLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.txt")
	v := mat.NewDense(3, 1, []float64{0.5, -1.25, 3})

	require.NoError(t, WriteMatrix(path, v, "Translation vectors_0"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "#Translation vectors_0\n"))

	got, err := LoadTranslation(path)
	require.NoError(t, err)
	assert.True(t, mat.Equal(v, got))
}

func TestLoadIntrinsicFormatErrorKeepsType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "K1.txt")
	require.NoError(t, os.WriteFile(path, []byte("1 2 3"), 0o600))

	_, err := LoadIntrinsic(path)
	var perr *ParameterFormatError
	assert.True(t, errors.As(err, &perr))
	var missing *common.MissingInputError
	assert.False(t, errors.As(err, &missing))
}
