package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/panostitch/internal/common"
	"github.com/MeKo-Tech/panostitch/internal/compositor"
	"github.com/MeKo-Tech/panostitch/internal/projection"
	"github.com/MeKo-Tech/panostitch/internal/rig"
	"github.com/MeKo-Tech/panostitch/internal/rotation"
	"github.com/MeKo-Tech/panostitch/internal/utils"
)

// Stitcher runs stitching jobs for one configuration. It holds no per-run
// state; each stage takes the previous stage's output explicitly.
type Stitcher struct {
	cfg      Config
	progress ProgressCallback
	metrics  *Metrics
}

// Input is the output of the load stage.
type Input struct {
	Rig    *rig.Rig
	Images []*image.NRGBA
	Meta   []utils.ImageMetadata
}

// Config returns the stitcher configuration.
func (s *Stitcher) Config() Config { return s.cfg }

// Metrics returns the metrics collected across the stitcher's runs.
func (s *Stitcher) Metrics() *Metrics { return s.metrics }

// Load reads the rig parameter files and every camera image.
func (s *Stitcher) Load(ctx context.Context) (*Input, error) {
	r, err := rig.Load(s.cfg.Rig)
	if err != nil {
		return nil, newStageError(StageLoad, -1, s.intrinsicPath(err), err)
	}

	in := &Input{
		Rig:    r,
		Images: make([]*image.NRGBA, 0, len(r.Cameras)),
		Meta:   make([]utils.ImageMetadata, 0, len(r.Cameras)),
	}
	for i, cam := range r.Cameras {
		if err := ctx.Err(); err != nil {
			return nil, newStageError(StageLoad, i, cam.Image, err)
		}
		img, meta, err := utils.LoadImage(cam.Image)
		if err != nil {
			return nil, newStageError(StageLoad, i, cam.Image, err)
		}
		if i > 0 {
			if err := utils.ValidateDimensions(meta, in.Meta[0]); err != nil {
				return nil, newStageError(StageLoad, i, cam.Image, err)
			}
		}
		slog.Debug("Loaded camera image", "camera", i, "path", cam.Image, "format", meta.Format,
			"width", meta.Width, "height", meta.Height)
		in.Images = append(in.Images, img)
		in.Meta = append(in.Meta, meta)
	}

	slog.Info("Loaded rig", "cameras", len(r.Cameras), "types", len(r.Types),
		"width", in.Meta[0].Width, "height", in.Meta[0].Height)
	return in, nil
}

// Compose builds the per-camera rotation chain of the loaded rig.
func (s *Stitcher) Compose(in *Input) (rotation.Chain, error) {
	chain, err := rotation.Compose(in.Rig.Rotations, len(in.Rig.Cameras))
	if err != nil {
		var derr *rotation.DegenerateRotationError
		if errors.As(err, &derr) && derr.Index < len(s.cfg.Rig.Rotations) {
			return nil, newStageError(StageCompose, derr.Index/2+1, s.cfg.Rig.Resolve(s.cfg.Rig.Rotations[derr.Index]), err)
		}
		return nil, newStageError(StageCompose, -1, "", err)
	}
	for i := range chain.Len() {
		slog.Debug("Composed camera rotation", "camera", i, "yaw", chain.Yaw(i))
	}
	return chain, nil
}

// Composite projects every camera onto a new canvas.
func (s *Stitcher) Composite(ctx context.Context, in *Input, chain rotation.Chain) (*compositor.Canvas, compositor.Stats, error) {
	proj, err := projection.FromRig(in.Rig, chain)
	if err != nil {
		return nil, compositor.Stats{}, newStageError(StageProject, -1, s.intrinsicPath(err), err)
	}

	cfg := s.cfg.Compositor
	cfg.Progress = s.progress.OnProgress
	comp, err := compositor.New(proj, cfg)
	if err != nil {
		return nil, compositor.Stats{}, newStageError(StageProject, -1, "", err)
	}

	s.progress.OnStart(len(in.Images))
	canvas, stats, err := comp.Composite(ctx, in.Images)
	if err != nil {
		return nil, compositor.Stats{}, newStageError(StageProject, -1, "", err)
	}

	trX, trY := canvas.Offset()
	slog.Info("Composited cameras", "cameras", len(in.Images), "written", stats.Written,
		"skipped", stats.Skipped, "dropped", stats.TotalDropped(), "tr_x", trX, "tr_y", trY)
	return canvas, stats, nil
}

// Emit writes the canvas to the configured output and returns the bounds of
// the written image.
func (s *Stitcher) Emit(canvas *compositor.Canvas) (image.Rectangle, error) {
	content := canvas.ContentBounds()
	img := canvas.Flatten()
	if s.cfg.Output.Crop {
		img = utils.CropToContent(img, content)
	}
	if err := utils.SaveImage(img, s.cfg.Output.Path, s.cfg.Output.Quality); err != nil {
		return image.Rectangle{}, newStageError(StageEmit, -1, s.cfg.Output.Path, err)
	}
	slog.Info("Wrote panorama", "path", s.cfg.Output.Path, "width", img.Rect.Dx(), "height", img.Rect.Dy())
	return img.Rect, nil
}

// Run executes Load, Compose, Composite and Emit. Any failure aborts the run
// and is returned as a *StageError; no partial output is written.
func (s *Stitcher) Run(ctx context.Context) (*Result, error) {
	timer := common.NewTimer()
	res, err := s.run(ctx, timer)

	s.metrics.ObserveRun(err)
	if err != nil {
		var serr *StageError
		camera := -1
		if errors.As(err, &serr) {
			camera = serr.Camera
		}
		s.progress.OnError(camera, err)
	}
	if s.cfg.MetricsTextfile != "" {
		if werr := s.metrics.WriteTextfile(s.cfg.MetricsTextfile); werr != nil {
			slog.Warn("Failed to write metrics textfile", "path", s.cfg.MetricsTextfile, "error", werr)
		}
	}
	if err != nil {
		return nil, err
	}

	res.Timings = timer.Laps()
	slog.Info("Stitching finished", "output", res.Output, "timings", timer.String())
	return res, nil
}

func (s *Stitcher) run(ctx context.Context, timer *common.Timer) (*Result, error) {
	in, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveStage(StageLoad, timer.Lap(string(StageLoad)))

	chain, err := s.Compose(in)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveStage(StageCompose, timer.Lap(string(StageCompose)))

	canvas, stats, err := s.Composite(ctx, in, chain)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveStage(StageProject, timer.Lap(string(StageProject)))
	s.metrics.ObserveComposite(stats)

	if err := ctx.Err(); err != nil {
		return nil, newStageError(StageEmit, -1, s.cfg.Output.Path, err)
	}
	bounds, err := s.Emit(canvas)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveStage(StageEmit, timer.Lap(string(StageEmit)))
	s.progress.OnComplete()

	return newResult(s.cfg.Output.Path, in, chain, canvas, stats, bounds), nil
}

// intrinsicPath maps an invalid focal length back to the intrinsic file of
// the offending camera type.
func (s *Stitcher) intrinsicPath(err error) string {
	var ferr *rig.InvalidFocalLengthError
	if !errors.As(err, &ferr) {
		return ""
	}
	for _, t := range s.cfg.Rig.Types {
		if t.Name == ferr.Type {
			return s.cfg.Rig.Resolve(t.Intrinsic)
		}
	}
	return ""
}
