package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"

	"github.com/MeKo-Tech/panostitch/internal/mempool"
	"golang.org/x/sync/errgroup"
)

// Projector maps source pixels of a camera to unanchored canvas positions.
type Projector interface {
	Cameras() int
	Scale(cam int) float64
	Project(cam, x, y int) (int, int)
}

// Config holds compositor settings.
type Config struct {
	Workers  int         // 1 = sequential, 0 = runtime.NumCPU()
	Policy   WritePolicy // cell ownership at overlaps
	Progress func(done, total int)
}

// DefaultConfig returns the sequential last-writer configuration.
func DefaultConfig() Config {
	return Config{Workers: 1, Policy: LastWriter}
}

// Stats summarises one composite.
type Stats struct {
	Written int64   // cells changed
	Skipped int64   // in-canvas writes refused by the policy
	Dropped []int64 // out-of-canvas pixels per camera
}

// TotalDropped returns the number of dropped pixels across all cameras.
func (s Stats) TotalDropped() int64 {
	var n int64
	for _, d := range s.Dropped {
		n += d
	}
	return n
}

// Compositor projects every camera of a rig onto one canvas.
type Compositor struct {
	proj Projector
	cfg  Config
}

// New returns a compositor for proj.
func New(proj Projector, cfg Config) (*Compositor, error) {
	if proj == nil {
		return nil, errors.New("compositor needs a projector")
	}
	p, err := ParsePolicy(string(cfg.Policy))
	if err != nil {
		return nil, err
	}
	cfg.Policy = p
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Compositor{proj: proj, cfg: cfg}, nil
}

// Composite projects images (one per camera, in camera order, all the same
// size) onto a fresh canvas. Pixels landing outside the canvas are dropped
// and counted. The result does not depend on the number of workers.
func (c *Compositor) Composite(ctx context.Context, images []*image.NRGBA) (*Canvas, Stats, error) {
	n := c.proj.Cameras()
	if len(images) != n {
		return nil, Stats{}, fmt.Errorf("got %d images for %d cameras", len(images), n)
	}
	w, h := images[0].Rect.Dx(), images[0].Rect.Dy()
	for i, img := range images {
		if img.Rect.Dx() != w || img.Rect.Dy() != h {
			return nil, Stats{}, fmt.Errorf("camera %d: image is %dx%d, want %dx%d", i, img.Rect.Dx(), img.Rect.Dy(), w, h)
		}
	}

	canvas, err := NewCanvas(w, h, c.proj.Scale(0), c.cfg.Policy)
	if err != nil {
		return nil, Stats{}, err
	}

	// The anchor must be known before any write.
	x0, _ := c.proj.Project(0, 0, 0)
	canvas.Anchor(x0)
	trX, trY := canvas.Offset()
	slog.Debug("Canvas anchored", "width", 2*w, "height", 2*h, "tr_x", trX, "tr_y", trY)

	stats := Stats{Dropped: make([]int64, n)}
	if c.cfg.Workers == 1 || n == 1 {
		err = c.sequential(ctx, canvas, images, &stats)
	} else {
		err = c.parallel(ctx, canvas, images, &stats)
	}
	if err != nil {
		return nil, Stats{}, err
	}
	return canvas, stats, nil
}

func (c *Compositor) sequential(ctx context.Context, canvas *Canvas, images []*image.NRGBA, stats *Stats) error {
	for cam, img := range images {
		if err := ctx.Err(); err != nil {
			return err
		}
		w, h := img.Rect.Dx(), img.Rect.Dy()
		for y := range h {
			row := img.Pix[y*img.Stride:]
			for x := range w {
				nx, ny := c.proj.Project(cam, x, y)
				ok, err := canvas.Write(cam, nx, ny, row[x*4:x*4+4])
				if err != nil {
					if stats.Dropped[cam] == 0 {
						slog.Debug("Dropping out-of-canvas pixels", "camera", cam, "error", err)
					}
					stats.Dropped[cam]++
					continue
				}
				if ok {
					stats.Written++
				} else {
					stats.Skipped++
				}
			}
		}
		c.progress(cam+1, len(images))
	}
	return nil
}

// parallel projects each camera into a fragment of canvas indices
// concurrently, then applies the fragments in camera order.
func (c *Compositor) parallel(ctx context.Context, canvas *Canvas, images []*image.NRGBA, stats *Stats) error {
	fragments := make([][]int, len(images))
	defer func() {
		for _, frag := range fragments {
			mempool.PutInts(frag)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for cam, img := range images {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w, h := img.Rect.Dx(), img.Rect.Dy()
			frag := mempool.GetInts(w * h)
			var dropped int64
			for y := range h {
				for x := range w {
					nx, ny := c.proj.Project(cam, x, y)
					t := canvas.target(nx, ny)
					if t < 0 {
						if dropped == 0 {
							_, err := canvas.Write(cam, nx, ny, nil)
							slog.Debug("Dropping out-of-canvas pixels", "camera", cam, "error", err)
						}
						dropped++
					}
					frag[y*w+x] = t
				}
			}
			fragments[cam] = frag
			stats.Dropped[cam] = dropped
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for cam, img := range images {
		w := img.Rect.Dx()
		for i, t := range fragments[cam] {
			if t < 0 {
				continue
			}
			y, x := i/w, i%w
			off := y*img.Stride + x*4
			if canvas.put(t, img.Pix[off:off+4]) {
				stats.Written++
			} else {
				stats.Skipped++
			}
		}
		mempool.PutInts(fragments[cam])
		fragments[cam] = nil
		c.progress(cam+1, len(images))
	}
	return nil
}

func (c *Compositor) progress(done, total int) {
	if c.cfg.Progress != nil {
		c.cfg.Progress(done, total)
	}
}
