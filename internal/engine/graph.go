// Package engine translates composition requests into the parameter set
// consumed by the external processing engine, and runs that engine as a
// subordinate process reporting its lifecycle as an event stream.
package engine

import (
	"errors"
	"fmt"

	"github.com/vidstitch/api/internal/model"
)

// Target canvas. Layout cells are derived from it.
const (
	canvasWidth  = 1280
	canvasHeight = 720
)

// Output encoding policy. Fixed so output size and quality stay
// predictable; never caller-configurable.
const (
	videoCodec   = "libx264"
	videoCRF     = "23"
	videoPreset  = "medium"
	videoMaxRate = "4M"
	videoBufSize = "8M"
	audioCodec   = "aac"
	audioBitrate = "128k"
	movFlags     = "+faststart"
)

// ErrInvalidDimensions rejects structurally invalid per-input overrides.
var ErrInvalidDimensions = errors.New("invalid dimensions")

// GraphSpec is the deterministic description of one composition: the
// filter graph combining both inputs, the output stream labels and the
// fixed encoding policy. Building it does no I/O; the same request always
// yields the same spec.
type GraphSpec struct {
	Layout        model.Layout
	Mix           model.AudioMixPolicy
	FilterComplex string
	VideoLabel    string
	AudioLabel    string
	Encoding      Encoding
}

// Encoding carries the fixed output encoding parameters.
type Encoding struct {
	VideoCodec   string
	CRF          string
	Preset       string
	MaxRate      string
	BufSize      string
	AudioCodec   string
	AudioBitrate string
	MovFlags     string
}

func defaultEncoding() Encoding {
	return Encoding{
		VideoCodec:   videoCodec,
		CRF:          videoCRF,
		Preset:       videoPreset,
		MaxRate:      videoMaxRate,
		BufSize:      videoBufSize,
		AudioCodec:   audioCodec,
		AudioBitrate: audioBitrate,
		MovFlags:     movFlags,
	}
}

// BuildGraph maps (layout, per-input overrides, audio mix policy) to a
// GraphSpec.
//
//   - side_by_side: each input scaled to half the canvas width at full
//     height, stacked horizontally, audio tracks mixed per policy.
//   - stacked: each input scaled to full width at half height, stacked
//     vertically, audio mixed identically.
//   - sequential: A then B concatenated on the timeline; no scaling unless
//     an override asks for it, and no mixing since the tracks play in order.
//
// Overrides replace the layout's cell size for that input. The only
// failure is a negative override dimension.
func BuildGraph(layout model.Layout, overrides map[string]model.InputSettings, mix model.AudioMixPolicy) (*GraphSpec, error) {
	if err := validateOverrides(overrides); err != nil {
		return nil, err
	}

	spec := &GraphSpec{
		Layout:     layout,
		Mix:        mix,
		VideoLabel: "[v]",
		AudioLabel: "[a]",
		Encoding:   defaultEncoding(),
	}

	switch layout {
	case model.LayoutSideBySide:
		spec.FilterComplex = stackFilter(overrides, mix, canvasWidth/2, canvasHeight, "hstack")
	case model.LayoutStacked:
		spec.FilterComplex = stackFilter(overrides, mix, canvasWidth, canvasHeight/2, "vstack")
	default:
		spec.FilterComplex = concatFilter(overrides)
	}

	return spec, nil
}

func validateOverrides(overrides map[string]model.InputSettings) error {
	for _, key := range []string{model.SettingsKeyInputA, model.SettingsKeyInputB} {
		s, ok := overrides[key]
		if !ok {
			continue
		}
		if s.Width < 0 || s.Height < 0 {
			return fmt.Errorf("%w: %s %dx%d", ErrInvalidDimensions, key, s.Width, s.Height)
		}
	}
	return nil
}

// cellSize returns the target dimensions for one input: the explicit
// override when set, the layout cell otherwise.
func cellSize(overrides map[string]model.InputSettings, key string, defW, defH int) (int, int) {
	if s, ok := overrides[key]; ok && s.Width > 0 && s.Height > 0 {
		return s.Width, s.Height
	}
	return defW, defH
}

// stackFilter builds the spatial layouts: scale both inputs to their cells,
// combine with hstack/vstack, mix the audio tracks.
func stackFilter(overrides map[string]model.InputSettings, mix model.AudioMixPolicy, cellW, cellH int, stack string) string {
	wA, hA := cellSize(overrides, model.SettingsKeyInputA, cellW, cellH)
	wB, hB := cellSize(overrides, model.SettingsKeyInputB, cellW, cellH)

	return fmt.Sprintf(
		"[0:v]scale=%d:%d,setsar=1[va];[1:v]scale=%d:%d,setsar=1[vb];"+
			"[va][vb]%s=inputs=2[v];"+
			"[0:a][1:a]amix=inputs=2:duration=%s[a]",
		wA, hA, wB, hB, stack, mix,
	)
}

// concatFilter builds the sequential layout: A's streams then B's streams
// in timeline order. Scale steps appear only for explicit overrides.
func concatFilter(overrides map[string]model.InputSettings) string {
	var prefix string
	vA, vB := "[0:v]", "[1:v]"

	if w, h := cellSize(overrides, model.SettingsKeyInputA, 0, 0); w > 0 {
		prefix += fmt.Sprintf("[0:v]scale=%d:%d,setsar=1[va];", w, h)
		vA = "[va]"
	}
	if w, h := cellSize(overrides, model.SettingsKeyInputB, 0, 0); w > 0 {
		prefix += fmt.Sprintf("[1:v]scale=%d:%d,setsar=1[vb];", w, h)
		vB = "[vb]"
	}

	return prefix + vA + "[0:a]" + vB + "[1:a]" + "concat=n=2:v=1:a=1[v][a]"
}
