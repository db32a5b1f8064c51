package model

import "strings"

// Job status
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether a status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Layout describes how two inputs are combined into one output.
type Layout string

const (
	LayoutSideBySide Layout = "side_by_side"
	LayoutStacked    Layout = "stacked"
	LayoutSequential Layout = "sequential"
)

// ParseLayout maps a caller-supplied layout string to a Layout. Matching is
// case-insensitive and ignores separators ("SideBySide", "side-by-side" and
// "side_by_side" are equivalent). Unrecognized or empty values resolve to
// LayoutSequential; callers can rely on this fallback.
func ParseLayout(s string) Layout {
	norm := strings.ToLower(s)
	norm = strings.ReplaceAll(norm, "_", "")
	norm = strings.ReplaceAll(norm, "-", "")
	switch norm {
	case "sidebyside":
		return LayoutSideBySide
	case "stacked":
		return LayoutStacked
	default:
		return LayoutSequential
	}
}

// AudioMixPolicy selects the output duration when two audio tracks are
// mixed: truncate to the shorter input or pad to the longer one.
type AudioMixPolicy string

const (
	AudioMixShortest AudioMixPolicy = "shortest"
	AudioMixLongest  AudioMixPolicy = "longest"
)

// ParseAudioMixPolicy maps a caller-supplied policy string, defaulting to
// AudioMixLongest when empty. Unknown values are rejected by request
// validation before this is called.
func ParseAudioMixPolicy(s string) AudioMixPolicy {
	if strings.EqualFold(s, string(AudioMixShortest)) {
		return AudioMixShortest
	}
	return AudioMixLongest
}
