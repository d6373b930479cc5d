// Package params reads and writes the plain-text camera parameter files
// produced by the calibration tools: whitespace separated reals in
// row-major order, with optional "#label" comment lines.
package params

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/panostitch/internal/common"
	"gonum.org/v1/gonum/mat"
)

// ParameterFormatError reports a parameter file whose contents do not match
// the expected matrix shape.
type ParameterFormatError struct {
	Path  string
	Want  int
	Got   int
	Token string // offending token when a value failed to parse
}

func (e *ParameterFormatError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("parameter file %s: invalid number %q", e.Path, e.Token)
	}
	return fmt.Sprintf("parameter file %s: expected %d values, got %d", e.Path, e.Want, e.Got)
}

// Parse reads a rows x cols matrix from r. name is only used in errors.
func Parse(r io.Reader, name string, rows, cols int) (*mat.Dense, error) {
	want := rows * cols
	values := make([]float64, 0, want)
	got := 0

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, tok := range strings.Fields(line) {
			got++
			if got > want {
				continue
			}
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, &ParameterFormatError{Path: name, Want: want, Got: got, Token: tok}
			}
			values = append(values, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if got != want {
		return nil, &ParameterFormatError{Path: name, Want: want, Got: got}
	}
	return mat.NewDense(rows, cols, values), nil
}

// ReadMatrix reads a rows x cols matrix from the file at path.
func ReadMatrix(path, kind string, rows, cols int) (*mat.Dense, error) {
	f, err := os.Open(path) //nolint:gosec // G304: parameter paths come from the rig configuration
	if err != nil {
		return nil, &common.MissingInputError{Kind: kind, Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	m, err := Parse(f, path, rows, cols)
	if err != nil {
		var perr *ParameterFormatError
		if errors.As(err, &perr) {
			return nil, err
		}
		return nil, &common.MissingInputError{Kind: kind, Path: path, Err: err}
	}
	return m, nil
}

// LoadIntrinsic reads a 3x3 intrinsic (camera) matrix.
func LoadIntrinsic(path string) (*mat.Dense, error) {
	return ReadMatrix(path, "intrinsic", 3, 3)
}

// LoadRotation reads a 3x3 relative rotation matrix.
func LoadRotation(path string) (*mat.Dense, error) {
	return ReadMatrix(path, "rotation", 3, 3)
}

// LoadTranslation reads a 3x1 relative translation vector.
func LoadTranslation(path string) (*mat.Dense, error) {
	return ReadMatrix(path, "translation", 3, 1)
}

// Write renders m in the parameter file format. A non-empty label is
// written as a leading "#label" line.
func Write(w io.Writer, m mat.Matrix, label string) error {
	bw := bufio.NewWriter(w)
	if label != "" {
		if _, err := fmt.Fprintf(bw, "#%s\n", label); err != nil {
			return err
		}
	}
	rows, cols := m.Dims()
	for i := range rows {
		for j := range cols {
			if j > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(strconv.FormatFloat(m.At(i, j), 'g', -1, 64)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteMatrix writes m to the file at path, replacing any existing file.
func WriteMatrix(path string, m mat.Matrix, label string) error {
	f, err := os.Create(path) //nolint:gosec // G304: caller chooses the output path
	if err != nil {
		return err
	}
	if err := Write(f, m, label); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
