package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/MeKo-Tech/panostitch/internal/pipeline"
	"github.com/spf13/cobra"
)

const (
	outputFormatText = "text"
	outputFormatJSON = "json"
)

var validFormats = []string{outputFormatText, outputFormatJSON}

func validateFormat(format string) error {
	if !slices.Contains(validFormats, format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", format, strings.Join(validFormats, ", "))
	}
	return nil
}

var errNoRig = errors.New("no cameras configured: pass --cameras or list rig.cameras in the config file")

// addRigFlags defines the flags describing the camera rig.
func addRigFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("cameras", "n", 0, "number of cameras in a numbered rig layout")
	cmd.Flags().String("base-dir", "", "directory holding images and parameter files (default: config file directory)")
	cmd.Flags().String("image-base", "stitch", "image base name, camera i reads <base><i>.<ext>")
	cmd.Flags().String("image-ext", "jpg", "image file extension")
	cmd.Flags().String("params-dir", ".", "parameter directory relative to --base-dir")
	cmd.Flags().Int("odd-camera", 0, "1-based camera using the second lens type K2.txt (0: none)")
	cmd.Flags().Bool("invert-rotations", true, "invert each rotation file before use")
	cmd.Flags().String("scale-mode", "global", "focal scale mode: global or per_type")
	cmd.Flags().String("scale-type", "", "camera type whose focal length is the scale reference (default: last camera type)")
}

func rigFlagBindings() []flagBinding {
	return []flagBinding{
		{"rig.pattern.cameras", "cameras"},
		{"rig.base_dir", "base-dir"},
		{"rig.pattern.image_base", "image-base"},
		{"rig.pattern.image_ext", "image-ext"},
		{"rig.pattern.params_dir", "params-dir"},
		{"rig.pattern.odd_camera", "odd-camera"},
		{"rig.invert_rotations", "invert-rotations"},
		{"rig.scale_mode", "scale-mode"},
		{"rig.scale_type", "scale-type"},
	}
}

func (a *app) newStitchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stitch",
		Short: "Stitch the rig images into a cylindrical panorama",
		Long: `Load the rig images and calibration, place every camera on a shared
cylinder and write the composed panorama.

Supported image formats: JPEG, PNG, BMP, TIFF

Examples:
  panostitch stitch --cameras 3 --base-dir ./rig
  panostitch stitch --cameras 5 --odd-camera 3 --output pano.png --crop
  panostitch stitch --config rig.yaml --workers 0 --format json`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         a.runStitch,
	}

	addRigFlags(cmd)
	cmd.Flags().StringP("output", "o", "panorama.jpg", "output image, the extension picks the format")
	cmd.Flags().IntP("quality", "q", 95, "JPEG output quality (1-100)")
	cmd.Flags().Bool("crop", false, "crop the panorama to the written area")
	cmd.Flags().IntP("workers", "w", 1, "parallel projection workers (0: one per CPU)")
	cmd.Flags().String("write-policy", "last_writer", "overlap policy: last_writer or first_writer")
	cmd.Flags().String("metrics-textfile", "", "write Prometheus metrics in textfile format after the run")
	cmd.Flags().StringP("format", "f", outputFormatText, "result format (text, json)")
	cmd.Flags().Bool("progress", false, "show a progress bar on stderr")

	a.bind(cmd, rigFlagBindings()...)
	a.bind(cmd,
		flagBinding{"output.file", "output"},
		flagBinding{"output.quality", "quality"},
		flagBinding{"output.crop", "crop"},
		flagBinding{"compositor.workers", "workers"},
		flagBinding{"compositor.write_policy", "write-policy"},
		flagBinding{"metrics.textfile", "metrics-textfile"},
	)
	return cmd
}

func (a *app) runStitch(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := validateFormat(format); err != nil {
		return err
	}
	showProgress, _ := cmd.Flags().GetBool("progress")

	cfg := a.cfg
	if !cfg.HasRig() {
		return errNoRig
	}
	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		return err
	}

	callbacks := []pipeline.ProgressCallback{pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug)}
	if showProgress {
		callbacks = append(callbacks, pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Stitching "))
	}
	stitcher, err := pipeline.NewBuilder().
		WithConfig(pc).
		WithProgress(pipeline.NewMultiProgressCallback(callbacks...)).
		Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("stitching panorama", "cameras", len(pc.Rig.Cameras), "output", pc.Output.Path,
		"workers", pc.Compositor.Workers, "write_policy", pc.Compositor.Policy)
	res, err := stitcher.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == outputFormatJSON {
		s, err := pipeline.ToJSON(res)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, s)
		return err
	}
	if _, err := fmt.Fprintln(out, pipeline.Summary(res)); err != nil {
		return fmt.Errorf("failed to write to stdout: %w", err)
	}
	for _, lap := range res.Timings {
		if _, err := fmt.Fprintf(out, "  %-8s %v\n", lap.Stage, lap.Duration); err != nil {
			return fmt.Errorf("failed to write to stdout: %w", err)
		}
	}
	return nil
}
