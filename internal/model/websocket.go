package model

// Message types carried on the job update stream.
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSErrorCodeEngineFailure is the error code reported when the
// composition engine fails a job.
const WSErrorCodeEngineFailure = "ENGINE_FAILURE"

// WSMessage is the envelope clients send and the minimal frame the
// server answers pings with.
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage reports how far a running job has advanced.
type WSProgressMessage struct {
	Type     string    `json:"type"`
	JobID    string    `json:"jobId"`
	Progress int       `json:"progress"`
	Status   JobStatus `json:"status"`
}

// WSCompleteMessage announces a finished job and where to fetch it.
type WSCompleteMessage struct {
	Type   string        `json:"type"`
	JobID  string        `json:"jobId"`
	Result ComposeResult `json:"result"`
}

// WSErrorMessage announces a failed job.
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError carries the failure code and engine detail.
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
