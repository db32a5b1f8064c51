package model

import "time"

// UploadResponse represents the descriptor returned for a stored upload.
// The ID is the opaque token callers pass as inputA/inputB when composing.
type UploadResponse struct {
	ID        string    `json:"id"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}
