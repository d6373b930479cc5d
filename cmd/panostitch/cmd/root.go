package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/panostitch/internal/config"
	"github.com/MeKo-Tech/panostitch/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// skipConfigAnnotation marks commands that run without loading the configuration.
const skipConfigAnnotation = "panostitch/skip-config"

// flagBinding maps a command-line flag to a configuration key.
type flagBinding struct {
	key  string
	flag string
}

// app holds the state shared by one command tree. Every tree owns its viper
// instance so repeated executions in one process do not leak flag values.
type app struct {
	v        *viper.Viper
	loader   *config.Loader
	cfgFile  string
	cfg      *config.Config
	bindings map[*cobra.Command][]flagBinding
}

// NewRootCommand builds the panostitch command tree.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	a := &app{
		v:        v,
		loader:   config.NewLoaderWithViper(v),
		bindings: make(map[*cobra.Command][]flagBinding),
	}

	rootCmd := &cobra.Command{
		Use:   "panostitch",
		Short: "Cylindrical panorama stitching for calibrated camera rigs",
		Long: `panostitch composes the images of a calibrated multi-camera rig into a
single cylindrical panorama.

Each camera needs an image and a camera type with an intrinsic matrix.
Consecutive cameras are linked by relative rotation files; their yaw
components are chained to place every camera on a shared cylinder.

Examples:
  panostitch stitch --cameras 3 --base-dir ./rig
  panostitch stitch --config rig.yaml --output pano.png --crop
  panostitch rig --cameras 3 --base-dir ./rig --format json
  panostitch config init`,
		Version:      version.String(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: a.preRun,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/panostitch, /etc/panostitch)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	a.bind(rootCmd, flagBinding{"verbose", "verbose"}, flagBinding{"log_level", "log-level"})

	rootCmd.AddCommand(a.newStitchCommand(), a.newRigCommand(), a.newConfigCommand())
	return rootCmd
}

// Execute runs the command tree and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// bind records flag bindings for cmd. They are applied to viper only when
// cmd executes, so sibling commands may share configuration keys.
func (a *app) bind(cmd *cobra.Command, bindings ...flagBinding) {
	a.bindings[cmd] = append(a.bindings[cmd], bindings...)
}

func (a *app) applyBindings(cmd *cobra.Command) error {
	for c := cmd; c != nil; c = c.Parent() {
		for _, b := range a.bindings[c] {
			flag := cmd.Flags().Lookup(b.flag)
			if flag == nil {
				return fmt.Errorf("flag %s is not defined on %s", b.flag, cmd.Name())
			}
			if err := a.v.BindPFlag(b.key, flag); err != nil {
				return fmt.Errorf("failed to bind flag %s: %w", b.flag, err)
			}
		}
	}
	return nil
}

// preRun loads the configuration and installs the structured logger.
func (a *app) preRun(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipConfigAnnotation] != "" {
		return nil
	}
	if err := a.applyBindings(cmd); err != nil {
		return err
	}

	cfg, err := a.loader.LoadWithFile(a.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	a.cfg = cfg

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel(cfg),
	}))
	slog.SetDefault(logger)
	slog.Debug("configuration loaded", "file", a.loader.GetConfigFileUsed(), "rig_base_dir", cfg.Rig.BaseDir)
	return nil
}

// logLevel maps the configured level to slog, with --verbose taking precedence.
func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
