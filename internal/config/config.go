package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/MeKo-Tech/panostitch/internal/compositor"
	"github.com/MeKo-Tech/panostitch/internal/pipeline"
	"github.com/MeKo-Tech/panostitch/internal/rig"
	"github.com/MeKo-Tech/panostitch/internal/utils"
	"gopkg.in/yaml.v3"
)

// DefaultConfig returns a configuration with sensible defaults. The rig
// defaults to the numbered stitch1.jpg / K1.txt / R1.txt layout.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Rig: RigConfig{
			InvertRotations: true,
			ScaleMode:       string(rig.ScaleGlobal),
			Pattern: PatternConfig{
				Cameras:   0,
				ImageBase: "stitch",
				ImageExt:  "jpg",
				ParamsDir: ".",
				OddCamera: 0,
			},
		},
		Output: OutputConfig{
			File:    "panorama.jpg",
			Quality: 95,
			Crop:    false,
		},
		Compositor: CompositorConfig{
			Workers:     1,
			WritePolicy: string(compositor.LastWriter),
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Output.File == "" {
		return errors.New("output file is required")
	}
	if !utils.IsSupportedImage(c.Output.File) {
		return fmt.Errorf("invalid output file: %s (must end in one of: %s)",
			c.Output.File, strings.Join(utils.SupportedImageExtensions, ", "))
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("invalid output quality: %d (must be between 1 and 100)", c.Output.Quality)
	}

	if c.Compositor.Workers < 0 {
		return fmt.Errorf("invalid compositor workers: %d (must not be negative)", c.Compositor.Workers)
	}
	if _, err := compositor.ParsePolicy(c.Compositor.WritePolicy); err != nil {
		return fmt.Errorf("invalid compositor write policy: %w", err)
	}

	validScaleModes := []string{"", string(rig.ScaleGlobal), string(rig.ScalePerType)}
	if !slices.Contains(validScaleModes, c.Rig.ScaleMode) {
		return fmt.Errorf("invalid scale mode: %s (must be %s or %s)", c.Rig.ScaleMode, rig.ScaleGlobal, rig.ScalePerType)
	}
	if c.Rig.Pattern.Cameras < 0 {
		return fmt.Errorf("invalid pattern camera count: %d", c.Rig.Pattern.Cameras)
	}
	if c.Rig.Pattern.Cameras > 0 && len(c.Rig.Cameras) > 0 {
		return errors.New("rig: use either a camera pattern or an explicit camera list, not both")
	}
	return nil
}

// HasRig reports whether the configuration describes any cameras.
func (c *Config) HasRig() bool {
	return c.Rig.Pattern.Cameras > 0 || len(c.Rig.Cameras) > 0
}

// ToRigSpec converts the rig section into a rig spec.
func (c *Config) ToRigSpec() (rig.Spec, error) {
	r := c.Rig
	if !c.HasRig() {
		return rig.Spec{}, errors.New("no rig configured: set rig.cameras or rig.pattern.cameras")
	}

	var spec rig.Spec
	if r.Pattern.Cameras > 0 {
		s, err := rig.Pattern{
			Dir:       r.BaseDir,
			Cameras:   r.Pattern.Cameras,
			ImageBase: r.Pattern.ImageBase,
			ImageExt:  r.Pattern.ImageExt,
			ParamsDir: r.Pattern.ParamsDir,
			OddCamera: r.Pattern.OddCamera,
			Invert:    r.InvertRotations,
		}.Spec()
		if err != nil {
			return rig.Spec{}, err
		}
		spec = s
	} else {
		spec = rig.Spec{BaseDir: r.BaseDir, InvertRotations: r.InvertRotations}
		for _, t := range r.Types {
			spec.Types = append(spec.Types, rig.TypeSpec{Name: t.Name, Intrinsic: t.Intrinsic})
		}
		for _, cam := range r.Cameras {
			spec.Cameras = append(spec.Cameras, rig.CameraSpec{Image: cam.Image, Type: cam.Type})
		}
		spec.Rotations = slices.Clone(r.Rotations)
		spec.Translations = slices.Clone(r.Translations)
	}

	spec.ScaleType = r.ScaleType
	spec.ScaleMode = rig.ScaleMode(r.ScaleMode)
	if spec.ScaleMode == "" {
		spec.ScaleMode = rig.ScaleGlobal
	}
	return spec, nil
}

// ToPipelineConfig converts the config to the pipeline configuration.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	spec, err := c.ToRigSpec()
	if err != nil {
		return pipeline.Config{}, err
	}
	policy, err := compositor.ParsePolicy(c.Compositor.WritePolicy)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Rig: spec,
		Output: pipeline.OutputConfig{
			Path:    c.Output.File,
			Quality: c.Output.Quality,
			Crop:    c.Output.Crop,
		},
		Compositor: compositor.Config{
			Workers: c.Compositor.Workers,
			Policy:  policy,
		},
		MetricsTextfile: c.Metrics.Textfile,
	}, nil
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteFile writes the configuration as YAML to path. An existing file is
// only replaced when force is set.
func (c *Config) WriteFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}
	data, err := c.YAML()
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("error writing config file %s: %w", path, err)
	}
	return nil
}
