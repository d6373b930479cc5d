package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/panostitch/cmd/panostitch/cmd"
	"github.com/MeKo-Tech/panostitch/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
)

// rigYaws repeats the relative yaw pair (0, -0.3) so consecutive cameras sit
// 0.3 rad apart on the cylinder.
func rigYaws(cameras int) []float64 {
	yaws := make([]float64, 0, 2*(cameras-1))
	for range cameras - 1 {
		yaws = append(yaws, 0, -0.3)
	}
	return yaws
}

func (testCtx *TestContext) aCalibratedRigOfCameras(cameras int) error {
	return testCtx.writeRig(cameras, -1)
}

func (testCtx *TestContext) aCalibratedRigWithSecondLens(cameras, odd int) error {
	return testCtx.writeRig(cameras, odd-1)
}

func (testCtx *TestContext) writeRig(cameras, fisheye int) error {
	if err := os.MkdirAll(testCtx.RigDir, 0o750); err != nil {
		return fmt.Errorf("failed to create rig directory: %w", err)
	}
	opts := testutil.DefaultRigOptions()
	opts.Cameras = cameras
	opts.ImageBase = "stitch"
	opts.Yaws = rigYaws(cameras)
	opts.Invert = true
	opts.FisheyeCamera = fisheye
	opts.FisheyeFocal = 40
	_, err := testutil.WriteRigFiles(testCtx.RigDir, opts)
	return err
}

func (testCtx *TestContext) theRigFileIsRemoved(name string) error {
	return os.Remove(filepath.Join(testCtx.RigDir, name))
}

func (testCtx *TestContext) theRigFileContains(name, content string) error {
	return os.WriteFile(filepath.Join(testCtx.RigDir, name), []byte(content+"\n"), 0o600)
}

func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	return testCtx.SetEnv(name, testCtx.substitute(value))
}

// iRunCommand executes the CLI in-process and stores the result.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substitute(command)
	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] != "panostitch" {
		return fmt.Errorf("unknown program %q", parts[0])
	}

	var stdout, stderr bytes.Buffer
	root := cmd.NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(parts[1:])

	err := root.Execute()
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)
	testCtx.LastExitCode = 0
	if err != nil {
		testCtx.LastExitCode = 1
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s%s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	all := testCtx.LastOutput + testCtx.LastStderr
	if !strings.Contains(all, testCtx.substitute(expectedText)) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, all)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", errorText)
	}
	full := testCtx.LastStderr + " " + testCtx.LastError.Error()
	if !strings.Contains(strings.ToLower(full), strings.ToLower(testCtx.substitute(errorText))) {
		return fmt.Errorf("error does not contain '%s'\nActual error: %s", errorText, full)
	}
	return nil
}

func (testCtx *TestContext) lastJSON() (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(testCtx.LastOutput)), &data); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return data, nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	_, err := testCtx.lastJSON()
	return err
}

func (testCtx *TestContext) theJSONFieldShouldBe(field string, want float64) error {
	data, err := testCtx.lastJSON()
	if err != nil {
		return err
	}
	v, ok := data[field].(float64)
	if !ok {
		return fmt.Errorf("field %q missing or not a number in %v", field, data)
	}
	if v != want {
		return fmt.Errorf("field %q is %v, want %v", field, v, want)
	}
	return nil
}

func (testCtx *TestContext) theJSONShouldListCameras(want int) error {
	data, err := testCtx.lastJSON()
	if err != nil {
		return err
	}
	cams, ok := data["cameras"].([]any)
	if !ok {
		return fmt.Errorf("field \"cameras\" missing in %v", data)
	}
	if len(cams) != want {
		return fmt.Errorf("got %d cameras, want %d", len(cams), want)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(testCtx.path(name)); err != nil {
		return fmt.Errorf("expected file %s: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	if _, err := os.Stat(testCtx.path(name)); !os.IsNotExist(err) {
		return fmt.Errorf("file %s should not exist", name)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(name, expected string) error {
	data, err := os.ReadFile(testCtx.path(name))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain '%s'\nContent: %s", name, expected, data)
	}
	return nil
}

func (testCtx *TestContext) theImageShouldBe(name string, w, h int) error {
	img, err := imaging.Open(testCtx.path(name))
	if err != nil {
		return fmt.Errorf("failed to open image %s: %w", name, err)
	}
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		return fmt.Errorf("image %s is %dx%d, want %dx%d", name, b.Dx(), b.Dy(), w, h)
	}
	return nil
}

func (testCtx *TestContext) theImageShouldBeNarrowerThan(name string, w int) error {
	img, err := imaging.Open(testCtx.path(name))
	if err != nil {
		return fmt.Errorf("failed to open image %s: %w", name, err)
	}
	if got := img.Bounds().Dx(); got >= w {
		return fmt.Errorf("image %s is %d pixels wide, want fewer than %d", name, got, w)
	}
	return nil
}

// RegisterSteps registers every step definition with the scenario.
func (testCtx *TestContext) RegisterSteps(sc *godog.ScenarioContext) {
	// Rig setup
	sc.Step(`^a calibrated rig of (\d+) cameras$`, testCtx.aCalibratedRigOfCameras)
	sc.Step(`^a calibrated rig of (\d+) cameras where camera (\d+) uses the second lens$`, testCtx.aCalibratedRigWithSecondLens)
	sc.Step(`^the rig file "([^"]*)" is removed$`, testCtx.theRigFileIsRemoved)
	sc.Step(`^the rig file "([^"]*)" contains "([^"]*)"$`, testCtx.theRigFileContains)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)

	// Execution
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	// Output
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON field "([^"]*)" should be (-?\d+(?:\.\d+)?)$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the JSON should list (\d+) cameras$`, testCtx.theJSONShouldListCameras)

	// Files
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+) pixels$`, testCtx.theImageShouldBe)
	sc.Step(`^the image "([^"]*)" should be narrower than (\d+) pixels$`, testCtx.theImageShouldBeNarrowerThan)
}
