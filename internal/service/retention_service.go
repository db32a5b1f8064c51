package service

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/vidstitch/api/internal/config"
	"github.com/vidstitch/api/internal/model"
	"github.com/vidstitch/api/internal/store"
)

// RetentionService reaps aged jobs and their files on a recurring sweep.
// Two horizons apply: inputs of finished jobs are removed shortly after
// the terminal transition, and whole jobs (record plus output) are
// removed once the retention window passes. A directory scan backstops
// both so files orphaned by a restart still age out.
type RetentionService struct {
	jobStore  store.JobStore
	cfg       *config.RetentionConfig
	uploadDir string
	outputDir string
}

// NewRetentionService creates a new retention service
func NewRetentionService(jobStore store.JobStore, cfg *config.RetentionConfig, uploadDir, outputDir string) *RetentionService {
	return &RetentionService{
		jobStore:  jobStore,
		cfg:       cfg,
		uploadDir: uploadDir,
		outputDir: outputDir,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (r *RetentionService) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	log.Printf("Retention sweep every %s, window %s", r.cfg.SweepInterval, r.cfg.Window)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(time.Now())
		}
	}
}

// Sweep performs one retention pass. Every step is best effort: a file
// that cannot be removed now is retried on the next sweep.
func (r *RetentionService) Sweep(now time.Time) {
	r.sweepJobs(now)
	r.sweepDir(r.uploadDir, now)
	r.sweepDir(r.outputDir, now)
}

func (r *RetentionService) sweepJobs(now time.Time) {
	for _, job := range r.jobStore.List() {
		// Stuck jobs have no terminal time; age them by creation so
		// they cannot survive forever.
		refTime := job.CreatedAt
		if t := job.TerminalAt(); !t.IsZero() {
			refTime = t
		}

		if now.Sub(refTime) >= r.cfg.Window {
			r.reapJob(job)
			continue
		}

		if t := job.TerminalAt(); !t.IsZero() && now.Sub(t) >= r.cfg.InputCleanupDelay {
			r.cleanupInputs(job)
		}
	}
}

// reapJob removes a job's files and then its record.
func (r *RetentionService) reapJob(job *model.Job) {
	if job.OutputPath != "" {
		removeFile(job.OutputPath)
	}
	for _, path := range job.InputPaths {
		removeFile(path)
	}

	r.jobStore.Delete(job.ID)
	log.Printf("Retention reaped job %s (%s)", job.ID, job.Status)
}

// cleanupInputs deletes the source files of a finished job while keeping
// the record and output available until the window closes.
func (r *RetentionService) cleanupInputs(job *model.Job) {
	if len(job.InputPaths) == 0 {
		return
	}

	allGone := true
	for _, path := range job.InputPaths {
		if !removeFile(path) {
			allGone = false
		}
	}
	if !allGone {
		return
	}

	r.jobStore.Update(job.ID, func(j *model.Job) {
		j.InputPaths = nil
	})
	log.Printf("Retention cleaned inputs of job %s", job.ID)
}

// sweepDir removes files older than the window regardless of job
// records. In-memory job state dies with the process; this keeps disk
// usage bounded across restarts.
func (r *RetentionService) sweepDir(dir string, now time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("Retention scan of %s failed: %v", dir, err)
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) >= r.cfg.Window {
			removeFile(filepath.Join(dir, entry.Name()))
		}
	}
}

// removeFile deletes a file, treating "already gone" as success.
func removeFile(path string) bool {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Retention failed to remove %s: %v", path, err)
		return false
	}
	return true
}
