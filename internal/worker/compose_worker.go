package worker

import (
	"context"
	"log"
	"time"

	"github.com/vidstitch/api/internal/engine"
	"github.com/vidstitch/api/internal/model"
	"github.com/vidstitch/api/internal/store"
	"github.com/vidstitch/api/internal/websocket"
)

// ComposeWorker drives one composition job: it consumes the engine's event
// stream and applies the resulting state transitions to the job record.
type ComposeWorker struct {
	runner   engine.Runner
	jobStore store.JobStore
	hub      *websocket.Hub
}

// NewComposeWorker creates a new compose worker
func NewComposeWorker(runner engine.Runner, jobStore store.JobStore, hub *websocket.Hub) *ComposeWorker {
	return &ComposeWorker{
		runner:   runner,
		jobStore: jobStore,
		hub:      hub,
	}
}

// Process runs the engine for jobID and consumes its events until the
// stream closes. It is the only goroutine that moves the job forward, so
// transitions stay ordered: progress never regresses and the first
// terminal event wins.
func (w *ComposeWorker) Process(ctx context.Context, jobID, inputA, inputB string, spec *engine.GraphSpec, outputPath string) {
	log.Printf("Starting compose job: %s", jobID)

	for ev := range w.runner.Run(ctx, inputA, inputB, spec, outputPath) {
		switch ev.Kind {
		case engine.EventStarted:
			log.Printf("Compose job %s engine: %s", jobID, ev.Command)
		case engine.EventProgress:
			w.updateProgress(jobID, ev.Percent)
		case engine.EventCompleted:
			w.completeJob(jobID, outputPath)
		case engine.EventFailed:
			w.failJob(jobID, ev.Detail)
		}
	}
}

func (w *ComposeWorker) updateProgress(jobID string, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	advanced := false
	job, ok := w.jobStore.Update(jobID, func(j *model.Job) {
		if j.Status.Terminal() || percent <= j.Progress {
			return
		}
		j.Progress = percent
		advanced = true
	})
	if !ok {
		log.Printf("Progress for unknown job %s dropped", jobID)
		return
	}
	if advanced {
		w.hub.BroadcastProgress(jobID, job.Progress, job.Status)
	}
}

func (w *ComposeWorker) completeJob(jobID, outputPath string) {
	applied := false
	_, ok := w.jobStore.Update(jobID, func(j *model.Job) {
		if j.Status.Terminal() {
			return
		}
		now := time.Now()
		j.Status = model.JobStatusCompleted
		j.Progress = 100
		j.CompletedAt = &now
		j.OutputPath = outputPath
		applied = true
	})
	if !ok || !applied {
		log.Printf("Completion for job %s dropped", jobID)
		return
	}

	w.hub.BroadcastComplete(jobID, model.ComposeResult{
		JobID:     jobID,
		OutputURL: model.ComposeDownloadURL(jobID),
	})
	log.Printf("Compose job %s completed", jobID)
}

func (w *ComposeWorker) failJob(jobID, detail string) {
	applied := false
	_, ok := w.jobStore.Update(jobID, func(j *model.Job) {
		if j.Status.Terminal() {
			return
		}
		now := time.Now()
		j.Status = model.JobStatusFailed
		j.FailedAt = &now
		j.Error = &detail
		applied = true
	})
	if !ok || !applied {
		log.Printf("Failure for job %s dropped", jobID)
		return
	}

	w.hub.BroadcastError(jobID, model.WSErrorCodeEngineFailure, detail)
	log.Printf("Compose job %s failed: %s", jobID, detail)
}
