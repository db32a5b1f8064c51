package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/vidstitch/api/internal/config"
)

// EventKind tags the variants of the engine event stream.
type EventKind uint8

const (
	EventStarted EventKind = iota
	EventProgress
	EventCompleted
	EventFailed
)

// Event is one engine lifecycle notification. A run emits Started with the
// resolved command, any number of Progress updates, then exactly one of
// Completed or Failed before the stream closes.
type Event struct {
	Kind    EventKind
	Percent int    // EventProgress
	Detail  string // EventFailed
	Command string // EventStarted
}

// Runner abstracts the composition engine so orchestration can be tested
// without spawning processes.
type Runner interface {
	Run(ctx context.Context, inputA, inputB string, spec *GraphSpec, outputPath string) <-chan Event
}

// Event channel capacity. Terminal events are always delivered; progress
// sends are dropped when the consumer lags, since progress is telemetry.
const eventBuffer = 16

// FFmpeg invokes ffmpeg as the external composition engine. A failed run
// is final: the adapter never retries.
type FFmpeg struct {
	binPath   string
	probePath string
}

func NewFFmpeg(cfg *config.FFmpegConfig) *FFmpeg {
	return &FFmpeg{
		binPath:   cfg.BinaryPath,
		probePath: cfg.ProbePath,
	}
}

// Run starts the engine for one composition and returns its event stream.
// The stream is closed after the terminal event.
func (f *FFmpeg) Run(ctx context.Context, inputA, inputB string, spec *GraphSpec, outputPath string) <-chan Event {
	events := make(chan Event, eventBuffer)
	go f.run(ctx, inputA, inputB, spec, outputPath, events)
	return events
}

func (f *FFmpeg) run(ctx context.Context, inputA, inputB string, spec *GraphSpec, outputPath string, events chan<- Event) {
	defer close(events)

	// The orchestrator already resolved both inputs; this guards the
	// window between accept and engine start.
	for _, path := range []string{inputA, inputB} {
		if _, err := os.Stat(path); err != nil {
			events <- Event{Kind: EventFailed, Detail: "input file not found: " + filepath.Base(path)}
			return
		}
	}

	args := buildArgs(inputA, inputB, spec, outputPath)
	events <- Event{Kind: EventStarted, Command: f.binPath + " " + strings.Join(args, " ")}

	total := f.expectedDuration(ctx, inputA, inputB, spec)

	cmd := exec.CommandContext(ctx, f.binPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		events <- Event{Kind: EventFailed, Detail: fmt.Sprintf("engine start: %v", err)}
		return
	}
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		events <- Event{Kind: EventFailed, Detail: fmt.Sprintf("engine start: %v", err)}
		return
	}

	forwardProgress(stdout, total, events)

	if err := cmd.Wait(); err != nil {
		events <- Event{Kind: EventFailed, Detail: failDetail(err, stderr.lastLine())}
		return
	}

	events <- Event{Kind: EventCompleted}
}

// buildArgs assembles the full engine invocation from the graph spec: both
// inputs, the filter graph, stream mapping and the fixed encoding policy.
func buildArgs(inputA, inputB string, spec *GraphSpec, outputPath string) []string {
	enc := spec.Encoding
	return []string{
		"-hide_banner",
		"-nostats",
		"-progress", "pipe:1",
		"-i", inputA,
		"-i", inputB,
		"-filter_complex", spec.FilterComplex,
		"-map", spec.VideoLabel,
		"-map", spec.AudioLabel,
		"-c:v", enc.VideoCodec,
		"-crf", enc.CRF,
		"-preset", enc.Preset,
		"-maxrate", enc.MaxRate,
		"-bufsize", enc.BufSize,
		"-c:a", enc.AudioCodec,
		"-b:a", enc.AudioBitrate,
		"-movflags", enc.MovFlags,
		"-y",
		outputPath,
	}
}

// forwardProgress reads the engine's key=value progress feed and emits
// percent updates. The pipe must be drained even when no total duration is
// known, or the engine blocks on a full pipe.
func forwardProgress(r io.Reader, totalSeconds float64, events chan<- Event) {
	if totalSeconds <= 0 {
		_, _ = io.Copy(io.Discard, r)
		return
	}

	totalUs := totalSeconds * 1e6
	last := -1

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		us, ok := parseOutTime(scanner.Text())
		if !ok {
			continue
		}

		percent := int(float64(us) / totalUs * 100)
		if percent > 99 {
			percent = 99 // 100 is reserved for the completion transition
		}
		if percent <= last {
			continue
		}
		last = percent

		select {
		case events <- Event{Kind: EventProgress, Percent: percent}:
		default:
			// Progress is lossy telemetry; never stall the pipe for it.
		}
	}
}

// parseOutTime extracts the encoded timestamp in microseconds from one
// progress line. ffmpeg reports it as out_time_us and, in the same unit
// under a misleading name, as out_time_ms on older builds.
func parseOutTime(line string) (int64, bool) {
	val, ok := strings.CutPrefix(line, "out_time_us=")
	if !ok {
		val, ok = strings.CutPrefix(line, "out_time_ms=")
	}
	if !ok {
		return 0, false
	}

	us, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	return us, true
}

func failDetail(waitErr error, stderrLine string) string {
	detail := fmt.Sprintf("engine error: %v", waitErr)

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		detail = fmt.Sprintf("engine exit code %d", exitErr.ExitCode())
	}
	if stderrLine != "" {
		detail += ": " + stderrLine
	}
	return detail
}

// tailBuffer keeps the last chunk of engine stderr for failure details.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) lastLine() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	lines := strings.Split(strings.TrimSpace(string(b.buf)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
