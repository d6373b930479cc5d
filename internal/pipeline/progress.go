package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives per-camera progress of a stitching run.
type ProgressCallback interface {
	// OnStart is called before the first camera is composited.
	OnStart(total int)

	// OnProgress is called after each composited camera.
	OnProgress(current, total int)

	// OnComplete is called when the run has finished successfully.
	OnComplete()

	// OnError is called when the run aborts; camera is -1 when the failure
	// is not tied to a camera.
	OnError(camera int, err error)
}

// NoOpProgressCallback implements ProgressCallback but does nothing.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(total int)             {}
func (NoOpProgressCallback) OnProgress(current, total int) {}
func (NoOpProgressCallback) OnComplete()                   {}
func (NoOpProgressCallback) OnError(camera int, err error) {}

// ConsoleProgressCallback draws a progress bar on a terminal.
type ConsoleProgressCallback struct {
	writer         io.Writer
	prefix         string
	width          int
	lastUpdate     time.Time
	updateInterval time.Duration
	mutex          sync.Mutex
	startTime      time.Time
}

// NewConsoleProgressCallback creates a console progress reporter writing to
// writer, or stderr when writer is nil.
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         writer,
		prefix:         prefix,
		width:          30,
		updateInterval: 100 * time.Millisecond,
	}
}

// WithWidth sets the progress bar width.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = width
	return c
}

// WithUpdateInterval sets how frequently the progress bar updates.
func (c *ConsoleProgressCallback) WithUpdateInterval(interval time.Duration) *ConsoleProgressCallback {
	c.updateInterval = interval
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	_, _ = fmt.Fprintf(c.writer, "%s0/%d cameras\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && current < total {
		return
	}
	c.lastUpdate = now
	if total == 0 {
		return
	}

	filled := c.width * current / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	_, _ = fmt.Fprintf(c.writer, "\r%s[%s] %d/%d cameras", c.prefix, bar, current, total)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sCompleted in %v\n", c.prefix, time.Since(c.startTime).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) OnError(camera int, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if camera < 0 {
		_, _ = fmt.Fprintf(c.writer, "\n%sError: %v\n", c.prefix, err)
		return
	}
	_, _ = fmt.Fprintf(c.writer, "\n%sError at camera %d: %v\n", c.prefix, camera, err)
}

// LogProgressCallback reports progress through slog.
type LogProgressCallback struct {
	logger    *slog.Logger
	level     slog.Level
	startTime time.Time
}

// NewLogProgressCallback creates a log based progress reporter. A nil logger
// means slog.Default().
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level}
}

func (l *LogProgressCallback) OnStart(total int) {
	l.startTime = time.Now()
	l.logger.Log(nil, l.level, "Compositing started", "cameras", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	l.logger.Log(nil, l.level, "Camera composited",
		"current", current,
		"total", total,
		"elapsed", time.Since(l.startTime).Round(time.Millisecond),
	)
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Log(nil, l.level, "Compositing completed", "elapsed", time.Since(l.startTime).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnError(camera int, err error) {
	l.logger.Log(nil, slog.LevelError, "Stitching failed", "camera", camera, "error", err)
}

// MultiProgressCallback fans progress out to several callbacks.
type MultiProgressCallback struct {
	callbacks []ProgressCallback
}

// NewMultiProgressCallback creates a progress callback that reports to all callbacks.
func NewMultiProgressCallback(callbacks ...ProgressCallback) *MultiProgressCallback {
	return &MultiProgressCallback{callbacks: callbacks}
}

func (m *MultiProgressCallback) OnStart(total int) {
	for _, cb := range m.callbacks {
		cb.OnStart(total)
	}
}

func (m *MultiProgressCallback) OnProgress(current, total int) {
	for _, cb := range m.callbacks {
		cb.OnProgress(current, total)
	}
}

func (m *MultiProgressCallback) OnComplete() {
	for _, cb := range m.callbacks {
		cb.OnComplete()
	}
}

func (m *MultiProgressCallback) OnError(camera int, err error) {
	for _, cb := range m.callbacks {
		cb.OnError(camera, err)
	}
}
