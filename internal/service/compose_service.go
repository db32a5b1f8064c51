package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/vidstitch/api/internal/engine"
	"github.com/vidstitch/api/internal/model"
	"github.com/vidstitch/api/internal/store"
)

// ComposeLauncher runs the engine for an accepted job and applies its
// events to the job record. The worker package provides the production
// implementation.
type ComposeLauncher interface {
	Process(ctx context.Context, jobID, inputA, inputB string, spec *engine.GraphSpec, outputPath string)
}

// ComposeService orchestrates composition jobs: it validates requests,
// records job state and hands accepted jobs to the launcher.
type ComposeService struct {
	jobStore  store.JobStore
	uploads   *UploadService
	launcher  ComposeLauncher
	outputDir string
}

// NewComposeService creates a new compose service
func NewComposeService(jobStore store.JobStore, uploads *UploadService, launcher ComposeLauncher, outputDir string) *ComposeService {
	return &ComposeService{
		jobStore:  jobStore,
		uploads:   uploads,
		launcher:  launcher,
		outputDir: outputDir,
	}
}

// StartCompose accepts a composition request and returns the new job id
// without waiting for the engine. Inputs are resolved and the filter
// graph is built up front, so bad requests fail before a job exists.
func (s *ComposeService) StartCompose(req *model.ComposeRequest) (*model.ComposeStartResponse, error) {
	if req.InputA == "" || req.InputB == "" {
		return nil, ErrMissingInput
	}

	pathA, err := s.uploads.Resolve(req.InputA)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, req.InputA)
	}
	pathB, err := s.uploads.Resolve(req.InputB)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, req.InputB)
	}

	spec, err := engine.BuildGraph(
		model.ParseLayout(req.Layout),
		req.PerInputSettings,
		model.ParseAudioMixPolicy(req.AudioMixPolicy),
	)
	if err != nil {
		return nil, err
	}

	jobID := uuid.New().String()
	now := time.Now()
	job := &model.Job{
		ID:         jobID,
		Status:     model.JobStatusProcessing,
		Progress:   0,
		CreatedAt:  now,
		InputPaths: []string{pathA, pathB},
	}
	if err := s.jobStore.Insert(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	outputPath := filepath.Join(s.outputDir, jobID+".mp4")

	// The engine run outlives the request, so it gets its own context.
	go s.launcher.Process(context.Background(), jobID, pathA, pathB, spec, outputPath)

	log.Printf("Compose job %s accepted (%s, %s)", jobID, spec.Layout, spec.Mix)

	return &model.ComposeStartResponse{
		JobID:     jobID,
		Status:    job.Status,
		CreatedAt: now,
	}, nil
}

// GetStatus returns the visible snapshot of a job
func (s *ComposeService) GetStatus(jobID string) (*model.ComposeStatusResponse, error) {
	job, ok := s.jobStore.Get(jobID)
	if !ok {
		return nil, ErrJobNotFound
	}

	resp := &model.ComposeStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
		FailedAt:    job.FailedAt,
	}
	if job.Status == model.JobStatusCompleted {
		resp.OutputURL = model.ComposeDownloadURL(job.ID)
	}
	return resp, nil
}

// StatusFrame renders a job's current state as the first frame a new
// websocket subscriber receives. Terminal jobs yield their final
// complete or error frame, so late subscribers still observe the
// outcome.
func (s *ComposeService) StatusFrame(jobID string) ([]byte, bool) {
	job, ok := s.jobStore.Get(jobID)
	if !ok {
		return nil, false
	}

	var msg interface{}
	switch job.Status {
	case model.JobStatusCompleted:
		msg = model.WSCompleteMessage{
			Type:  model.WSMessageTypeComplete,
			JobID: job.ID,
			Result: model.ComposeResult{
				JobID:     job.ID,
				OutputURL: model.ComposeDownloadURL(job.ID),
			},
		}
	case model.JobStatusFailed:
		detail := "unknown failure"
		if job.Error != nil {
			detail = *job.Error
		}
		msg = model.WSErrorMessage{
			Type:  model.WSMessageTypeError,
			JobID: job.ID,
			Error: model.WSError{
				Code:    model.WSErrorCodeEngineFailure,
				Message: detail,
			},
		}
	default:
		msg = model.WSProgressMessage{
			Type:     model.WSMessageTypeProgress,
			JobID:    job.ID,
			Progress: job.Progress,
			Status:   job.Status,
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, false
	}
	return payload, true
}

// OutputPath returns the path of a completed job's result file. Failed
// jobs surface their engine detail; jobs still processing are refused.
func (s *ComposeService) OutputPath(jobID string) (string, error) {
	job, ok := s.jobStore.Get(jobID)
	if !ok {
		return "", ErrJobNotFound
	}

	switch job.Status {
	case model.JobStatusCompleted:
		return job.OutputPath, nil
	case model.JobStatusFailed:
		detail := "unknown failure"
		if job.Error != nil {
			detail = *job.Error
		}
		return "", fmt.Errorf("%w: %s", ErrJobFailed, detail)
	default:
		return "", ErrJobNotCompleted
	}
}
