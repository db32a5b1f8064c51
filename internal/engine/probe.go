package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/vidstitch/api/internal/model"
)

// probeFormat mirrors the slice of ffprobe's JSON output we care about.
type probeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// probeDuration asks ffprobe for a file's duration in seconds.
func (f *FFmpeg) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.probePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", filepath.Base(path), err)
	}

	var info probeFormat
	if err := json.Unmarshal(out, &info); err != nil {
		return 0, fmt.Errorf("probe %s: %w", filepath.Base(path), err)
	}

	dur, err := strconv.ParseFloat(info.Format.Duration, 64)
	if err != nil || dur <= 0 {
		return 0, fmt.Errorf("probe %s: no duration", filepath.Base(path))
	}
	return dur, nil
}

// expectedDuration estimates the output duration so engine timestamps can
// be turned into a percentage. Sequential output runs A then B; the
// spatial layouts end per the audio mix policy. A failed probe returns 0,
// which disables progress reporting without failing the job.
func (f *FFmpeg) expectedDuration(ctx context.Context, inputA, inputB string, spec *GraphSpec) float64 {
	durA, errA := f.probeDuration(ctx, inputA)
	durB, errB := f.probeDuration(ctx, inputB)
	if errA != nil || errB != nil {
		return 0
	}

	switch {
	case spec.Layout == model.LayoutSequential:
		return durA + durB
	case spec.Mix == model.AudioMixShortest:
		return math.Min(durA, durB)
	default:
		return math.Max(durA, durB)
	}
}
