// Package pipeline runs a stitching job: it loads the rig and its images,
// composes the rotation chain, composites the cameras onto the cylinder and
// writes the panorama.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/panostitch/internal/compositor"
	"github.com/MeKo-Tech/panostitch/internal/rig"
	"github.com/MeKo-Tech/panostitch/internal/utils"
)

// OutputConfig controls how the canvas is written.
type OutputConfig struct {
	Path    string // the extension picks the format
	Quality int    // JPEG quality, 1..100
	Crop    bool   // trim the unwritten border of the canvas
}

// Config holds everything a Stitcher needs.
type Config struct {
	Rig             rig.Spec
	Output          OutputConfig
	Compositor      compositor.Config
	MetricsTextfile string // written after every run when set
}

// DefaultConfig returns a config with default output and compositor settings
// and an empty rig.
func DefaultConfig() Config {
	return Config{
		Rig:        rig.Spec{InvertRotations: true, ScaleMode: rig.ScaleGlobal},
		Output:     OutputConfig{Path: "panorama.jpg", Quality: 95},
		Compositor: compositor.DefaultConfig(),
	}
}

// Validate checks the parts of the config that do not need file access.
func (c Config) Validate() error {
	if len(c.Rig.Cameras) == 0 {
		return errors.New("rig has no cameras")
	}
	if c.Output.Path == "" {
		return errors.New("output path is required")
	}
	if !utils.IsSupportedImage(c.Output.Path) {
		return fmt.Errorf("unsupported output format: %s", c.Output.Path)
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output quality must be within 1..100, got %d", c.Output.Quality)
	}
	if c.Compositor.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Compositor.Workers)
	}
	if _, err := compositor.ParsePolicy(string(c.Compositor.Policy)); err != nil {
		return err
	}
	return nil
}

// Builder constructs a Stitcher with fluent configuration.
type Builder struct {
	cfg      Config
	progress ProgressCallback
}

// NewBuilder creates a new builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithRig sets the rig description.
func (b *Builder) WithRig(spec rig.Spec) *Builder {
	b.cfg.Rig = spec
	return b
}

// WithOutput sets the output path.
func (b *Builder) WithOutput(path string) *Builder {
	if path != "" {
		b.cfg.Output.Path = path
	}
	return b
}

// WithQuality sets the JPEG quality.
func (b *Builder) WithQuality(q int) *Builder {
	b.cfg.Output.Quality = q
	return b
}

// WithCrop toggles trimming of the unwritten canvas border.
func (b *Builder) WithCrop(crop bool) *Builder {
	b.cfg.Output.Crop = crop
	return b
}

// WithWorkers sets the number of compositing workers.
func (b *Builder) WithWorkers(n int) *Builder {
	b.cfg.Compositor.Workers = n
	return b
}

// WithWritePolicy sets the canvas write policy.
func (b *Builder) WithWritePolicy(p compositor.WritePolicy) *Builder {
	b.cfg.Compositor.Policy = p
	return b
}

// WithMetricsTextfile sets the path the run metrics are written to.
func (b *Builder) WithMetricsTextfile(path string) *Builder {
	b.cfg.MetricsTextfile = path
	return b
}

// WithProgress sets the progress reporter.
func (b *Builder) WithProgress(cb ProgressCallback) *Builder {
	b.progress = cb
	return b
}

// Config returns the current configuration.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and returns a Stitcher.
func (b *Builder) Build() (*Stitcher, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	progress := b.progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	return &Stitcher{cfg: b.cfg, progress: progress, metrics: NewMetrics()}, nil
}
