package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/MeKo-Tech/panostitch/internal/common"
	"github.com/MeKo-Tech/panostitch/internal/compositor"
	"github.com/MeKo-Tech/panostitch/internal/rig"
	"github.com/MeKo-Tech/panostitch/internal/rotation"
)

// CameraSummary describes one camera of a rig.
type CameraSummary struct {
	Index   int     `json:"index"`
	Image   string  `json:"image"`
	Type    string  `json:"type"`
	Focal   float64 `json:"focal_length"`
	Scale   float64 `json:"focal_scale"`
	YawDeg  float64 `json:"yaw_deg"`
	Dropped int64   `json:"dropped_pixels,omitempty"`
}

// Result summarises a finished run.
type Result struct {
	Output       string          `json:"output"`
	Width        int             `json:"width"`
	Height       int             `json:"height"`
	CanvasWidth  int             `json:"canvas_width"`
	CanvasHeight int             `json:"canvas_height"`
	OffsetX      int             `json:"tr_x"`
	OffsetY      int             `json:"tr_y"`
	Written      int64           `json:"pixels_written"`
	Dropped      int64           `json:"pixels_dropped"`
	Cameras      []CameraSummary `json:"cameras"`
	Timings      []common.Lap    `json:"timings"`
}

// RigReport describes a rig without compositing it.
type RigReport struct {
	Cameras      []CameraSummary `json:"cameras"`
	RelativeYaws []float64       `json:"relative_yaws_deg"`
	Radius       float64         `json:"cylinder_radius"`
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func summarize(r *rig.Rig, chain rotation.Chain) ([]CameraSummary, error) {
	focals, err := r.FocalLengths()
	if err != nil {
		return nil, err
	}
	scales, err := r.ScaleTable()
	if err != nil {
		return nil, err
	}
	out := make([]CameraSummary, len(r.Cameras))
	for i, c := range r.Cameras {
		out[i] = CameraSummary{
			Index:  i,
			Image:  c.Image,
			Type:   c.Type,
			Focal:  focals[c.Type],
			Scale:  scales[c.Type],
			YawDeg: degrees(chain.Yaw(i)),
		}
	}
	return out, nil
}

func newResult(output string, in *Input, chain rotation.Chain, canvas *compositor.Canvas, stats compositor.Stats, bounds image.Rectangle) *Result {
	trX, trY := canvas.Offset()
	res := &Result{
		Output:       output,
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		CanvasWidth:  canvas.Bounds().Dx(),
		CanvasHeight: canvas.Bounds().Dy(),
		OffsetX:      trX,
		OffsetY:      trY,
		Written:      stats.Written,
		Dropped:      stats.TotalDropped(),
	}
	// focal lengths were validated by the projector already
	cams, _ := summarize(in.Rig, chain)
	for i := range cams {
		cams[i].Dropped = stats.Dropped[i]
	}
	res.Cameras = cams
	return res
}

// DescribeRig loads the parameter files of spec and reports the per-camera
// geometry. Images are not read.
func DescribeRig(spec rig.Spec) (*RigReport, error) {
	r, err := rig.Load(spec)
	if err != nil {
		return nil, newStageError(StageLoad, -1, "", err)
	}
	chain, err := rotation.Compose(r.Rotations, len(r.Cameras))
	if err != nil {
		return nil, newStageError(StageCompose, -1, "", err)
	}
	cams, err := summarize(r, chain)
	if err != nil {
		return nil, newStageError(StageProject, -1, "", err)
	}
	radius, err := r.MaxFocalLength()
	if err != nil {
		return nil, newStageError(StageProject, -1, "", err)
	}

	report := &RigReport{Cameras: cams, Radius: radius}
	for _, rel := range r.Rotations {
		// Compose already rejected degenerate matrices
		yaw, _ := rotation.ExtractYaw(rel)
		report.RelativeYaws = append(report.RelativeYaws, degrees(yaw))
	}
	return report, nil
}

// ToJSON serializes v (a *Result or *RigReport) to pretty JSON.
func ToJSON(v any) (string, error) {
	if v == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteRigTable prints the report as an aligned text table.
func WriteRigTable(w io.Writer, report *RigReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CAMERA\tTYPE\tFOCAL\tSCALE\tYAW(deg)\tIMAGE")
	for _, c := range report.Cameras {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%.3f\t%.4f\t%.3f\t%s\n", c.Index, c.Type, c.Focal, c.Scale, c.YawDeg, c.Image)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	yaws := make([]string, len(report.RelativeYaws))
	for i, y := range report.RelativeYaws {
		yaws[i] = fmt.Sprintf("%.3f", y)
	}
	_, err := fmt.Fprintf(w, "cylinder radius: %.3f\nrelative yaws (deg): [%s]\n", report.Radius, strings.Join(yaws, " "))
	return err
}

// Summary renders a one-line description of a run.
func Summary(res *Result) string {
	return fmt.Sprintf("wrote %s (%dx%d) from %d cameras: %d pixels written, %d dropped",
		res.Output, res.Width, res.Height, len(res.Cameras), res.Written, res.Dropped)
}
