package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "panostitch"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "PANOSTITCH"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance, so flags bound
// with viper.BindPFlag take part in the resolution.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on a caller-owned viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load searches the standard paths for a configuration file, merges it with
// environment variables and defaults, and validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithoutValidation is Load without the final validation.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.LoadWithFileWithoutValidation("")
}

// LoadWithFile loads configuration from a specific file path. An empty path
// searches the standard locations.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation loads configuration from a specific file path without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing file is fine when searching; defaults and env vars apply.
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Relative rig paths are relative to the config file.
	if config.Rig.BaseDir == "" {
		if used := l.v.ConfigFileUsed(); used != "" {
			config.Rig.BaseDir = filepath.Dir(used)
		}
	}
	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) any {
	return l.v.Get(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	// rig.pattern.cameras -> PANOSTITCH_RIG_PATTERN_CAMERAS
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all scalar configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	l.v.SetDefault("rig.base_dir", defaults.Rig.BaseDir)
	l.v.SetDefault("rig.invert_rotations", defaults.Rig.InvertRotations)
	l.v.SetDefault("rig.scale_type", defaults.Rig.ScaleType)
	l.v.SetDefault("rig.scale_mode", defaults.Rig.ScaleMode)
	l.v.SetDefault("rig.pattern.cameras", defaults.Rig.Pattern.Cameras)
	l.v.SetDefault("rig.pattern.image_base", defaults.Rig.Pattern.ImageBase)
	l.v.SetDefault("rig.pattern.image_ext", defaults.Rig.Pattern.ImageExt)
	l.v.SetDefault("rig.pattern.params_dir", defaults.Rig.Pattern.ParamsDir)
	l.v.SetDefault("rig.pattern.odd_camera", defaults.Rig.Pattern.OddCamera)

	l.v.SetDefault("output.file", defaults.Output.File)
	l.v.SetDefault("output.quality", defaults.Output.Quality)
	l.v.SetDefault("output.crop", defaults.Output.Crop)

	l.v.SetDefault("compositor.workers", defaults.Compositor.Workers)
	l.v.SetDefault("compositor.write_policy", defaults.Compositor.WritePolicy)

	l.v.SetDefault("metrics.textfile", defaults.Metrics.Textfile)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "panostitch"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "panostitch"))
	}

	paths = append(paths, "/etc/panostitch")

	return paths
}
