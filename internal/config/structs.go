//nolint:lll
package config

// Config represents the complete configuration of panostitch. It is loaded
// from a configuration file, PANOSTITCH_ environment variables and
// command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Camera rig
	Rig RigConfig `mapstructure:"rig" yaml:"rig" json:"rig"`

	// Output image
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Canvas compositing
	Compositor CompositorConfig `mapstructure:"compositor" yaml:"compositor" json:"compositor"`

	// Run metrics
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// RigConfig describes the cameras, either as explicit lists or as a
// numbered file pattern.
type RigConfig struct {
	BaseDir         string         `mapstructure:"base_dir" yaml:"base_dir,omitempty" json:"base_dir,omitempty"`
	Types           []TypeConfig   `mapstructure:"types" yaml:"types,omitempty" json:"types,omitempty"`
	Cameras         []CameraConfig `mapstructure:"cameras" yaml:"cameras,omitempty" json:"cameras,omitempty"`
	Rotations       []string       `mapstructure:"rotations" yaml:"rotations,omitempty" json:"rotations,omitempty"`
	Translations    []string       `mapstructure:"translations" yaml:"translations,omitempty" json:"translations,omitempty"`
	InvertRotations bool           `mapstructure:"invert_rotations" yaml:"invert_rotations" json:"invert_rotations"`
	ScaleType       string         `mapstructure:"scale_type" yaml:"scale_type,omitempty" json:"scale_type,omitempty"`
	ScaleMode       string         `mapstructure:"scale_mode" yaml:"scale_mode" json:"scale_mode"`
	Pattern         PatternConfig  `mapstructure:"pattern" yaml:"pattern" json:"pattern"`
}

// TypeConfig names a camera type and its intrinsic parameter file.
type TypeConfig struct {
	Name      string `mapstructure:"name" yaml:"name" json:"name"`
	Intrinsic string `mapstructure:"intrinsic" yaml:"intrinsic" json:"intrinsic"`
}

// CameraConfig names a camera image and its type.
type CameraConfig struct {
	Image string `mapstructure:"image" yaml:"image" json:"image"`
	Type  string `mapstructure:"type" yaml:"type" json:"type"`
}

// PatternConfig builds the rig from numbered files when Cameras > 0.
type PatternConfig struct {
	Cameras   int    `mapstructure:"cameras" yaml:"cameras" json:"cameras"`
	ImageBase string `mapstructure:"image_base" yaml:"image_base" json:"image_base"`
	ImageExt  string `mapstructure:"image_ext" yaml:"image_ext" json:"image_ext"`
	ParamsDir string `mapstructure:"params_dir" yaml:"params_dir" json:"params_dir"`
	OddCamera int    `mapstructure:"odd_camera" yaml:"odd_camera" json:"odd_camera"`
}

// OutputConfig contains output image settings.
type OutputConfig struct {
	File    string `mapstructure:"file" yaml:"file" json:"file"`
	Quality int    `mapstructure:"quality" yaml:"quality" json:"quality"`
	Crop    bool   `mapstructure:"crop" yaml:"crop" json:"crop"`
}

// CompositorConfig contains canvas compositing settings.
type CompositorConfig struct {
	Workers     int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	WritePolicy string `mapstructure:"write_policy" yaml:"write_policy" json:"write_policy"`
}

// MetricsConfig contains metrics export settings.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile" json:"textfile"`
}
