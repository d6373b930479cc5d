package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/panostitch/internal/config"
	"github.com/MeKo-Tech/panostitch/internal/pipeline"
	"github.com/MeKo-Tech/panostitch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configWith(level string, verbose bool) *config.Config {
	cfg := config.DefaultConfig()
	cfg.LogLevel = level
	cfg.Verbose = verbose
	return &cfg
}

func TestStitchCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	stitch, _, err := cmd.Find([]string{"stitch"})
	require.NoError(t, err)

	for _, name := range []string{
		"cameras", "base-dir", "image-base", "image-ext", "params-dir", "odd-camera",
		"invert-rotations", "scale-mode", "scale-type", "output", "quality", "crop",
		"workers", "write-policy", "metrics-textfile", "format", "progress",
	} {
		assert.NotNil(t, stitch.Flags().Lookup(name), "missing flag %s", name)
	}

	// the scale table falls back to the last listed camera type
	for _, path := range []string{"stitch", "rig"} {
		sub, _, err := cmd.Find([]string{path})
		require.NoError(t, err)
		assert.Contains(t, sub.Flags().Lookup("scale-type").Usage, "default: last camera type")
	}
}

func TestStitchCommand(t *testing.T) {
	work := isolate(t)
	rigDir := writePatternRig(t)

	output, err := executeCommand(t, "stitch", "--cameras", "3", "--base-dir", rigDir,
		"--image-ext", "png", "--output", "pano.png")
	require.NoError(t, err, output)
	assert.Contains(t, output, "wrote pano.png (80x60) from 3 cameras")
	assert.Contains(t, output, "project")

	img := testutil.LoadImage(t, filepath.Join(work, "pano.png"))
	assert.Equal(t, 80, img.Bounds().Dx())
	assert.Equal(t, 60, img.Bounds().Dy())
}

func TestStitchCommandJSONAndCrop(t *testing.T) {
	isolate(t)
	rigDir := writePatternRig(t)
	out := filepath.Join(t.TempDir(), "nested", "pano.png")

	output, err := executeCommand(t, "stitch", "-n", "3", "--base-dir", rigDir, "--image-ext", "png",
		"-o", out, "--crop", "--workers", "2", "--format", "json", "--log-level", "error")
	require.NoError(t, err, output)

	var res pipeline.Result
	require.NoError(t, json.Unmarshal([]byte(output), &res))
	assert.Equal(t, out, res.Output)
	assert.Len(t, res.Cameras, 3)
	assert.Equal(t, 80, res.CanvasWidth)
	assert.Less(t, res.Width, res.CanvasWidth)
	assert.InDelta(t, 34.3775, res.Cameras[2].YawDeg, 0.01)

	_, err = os.Stat(out)
	assert.NoError(t, err)
}

func TestStitchCommandWithConfigFile(t *testing.T) {
	isolate(t)
	rigDir := writePatternRig(t)
	out := filepath.Join(t.TempDir(), "pano.png")

	cfg := config.DefaultConfig()
	cfg.Rig.Types = []config.TypeConfig{{Name: "normal", Intrinsic: "K1.txt"}}
	for i := 1; i <= 3; i++ {
		cfg.Rig.Cameras = append(cfg.Rig.Cameras, config.CameraConfig{Image: "stitch" + string(rune('0'+i)) + ".png", Type: "normal"})
	}
	cfg.Rig.Rotations = []string{"R1.txt", "R2.txt", "R3.txt", "R4.txt"}
	cfg.Output.File = out
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "stitch.prom")
	cfgPath := filepath.Join(rigDir, "rig.yaml")
	require.NoError(t, cfg.WriteFile(cfgPath, false))

	output, err := executeCommand(t, "stitch", "--config", cfgPath, "--write-policy", "first_writer")
	require.NoError(t, err, output)
	assert.Contains(t, output, "from 3 cameras")

	metrics, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `panostitch_runs_total{status="success"} 1`)
}

func TestStitchCommandProgress(t *testing.T) {
	isolate(t)
	rigDir := writePatternRig(t)

	output, err := executeCommand(t, "stitch", "-n", "3", "--base-dir", rigDir, "--image-ext", "png",
		"-o", filepath.Join(t.TempDir(), "p.jpg"), "--progress")
	require.NoError(t, err, output)
	assert.Contains(t, output, "Stitching ")
	assert.Contains(t, output, "3/3")
}

func TestStitchCommandFailures(t *testing.T) {
	tests := []struct {
		name   string
		args   func(rigDir string) []string
		env    map[string]string
		errMsg string
	}{
		{
			name:   "no rig",
			args:   func(string) []string { return []string{"stitch"} },
			errMsg: "no cameras configured",
		},
		{
			name:   "invalid format",
			args:   func(d string) []string { return []string{"stitch", "-n", "3", "--base-dir", d, "--format", "xml"} },
			errMsg: "invalid output format",
		},
		{
			name:   "missing images",
			args:   func(d string) []string { return []string{"stitch", "-n", "3", "--base-dir", d} },
			errMsg: "load stage failed for camera 0",
		},
		{
			name:   "invalid write policy",
			args:   func(d string) []string { return []string{"stitch", "-n", "3", "--base-dir", d, "--write-policy", "blend"} },
			errMsg: "invalid compositor write policy",
		},
		{
			name:   "odd camera out of range",
			args:   func(d string) []string { return []string{"stitch", "-n", "3", "--base-dir", d, "--image-ext", "png", "--odd-camera", "4"} },
			errMsg: "odd camera 4",
		},
		{
			name:   "environment override",
			args:   func(d string) []string { return []string{"stitch", "-n", "3", "--base-dir", d, "--image-ext", "png"} },
			env:    map[string]string{"PANOSTITCH_OUTPUT_QUALITY": "0"},
			errMsg: "invalid output quality",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			rigDir := writePatternRig(t)

			output, err := executeCommand(t, tt.args(rigDir)...)
			require.Error(t, err, output)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestStitchCommandStageError(t *testing.T) {
	isolate(t)
	rigDir := writePatternRig(t)
	require.NoError(t, os.Remove(filepath.Join(rigDir, "R3.txt")))

	root := NewRootCommand()
	root.SetArgs([]string{"stitch", "-n", "3", "--base-dir", rigDir, "--image-ext", "png"})
	root.SetOut(new(strings.Builder))
	root.SetErr(new(strings.Builder))
	err := root.Execute()

	var stageErr *pipeline.StageError
	require.True(t, errors.As(err, &stageErr), "got %v", err)
	assert.Equal(t, pipeline.StageLoad, stageErr.Stage)
	assert.Equal(t, filepath.Join(rigDir, "R3.txt"), stageErr.Path)
}
