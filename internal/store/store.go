// Package store holds job records for the lifetime of the process. The
// orchestrator owns a JobStore; handlers and the retention sweep reach the
// table only through it.
package store

import "github.com/vidstitch/api/internal/model"

// JobStore is the injectable job table. Implementations must be safe for
// concurrent use: inserts from request handling, updates from worker
// goroutines, reads from status queries and deletes from the retention
// sweep all overlap. Returned jobs are snapshots; mutating them does not
// touch the stored record.
type JobStore interface {
	// Insert adds a new job. It fails if the id is already present.
	Insert(job *model.Job) error

	// Get returns a snapshot of the job, or false if absent.
	Get(id string) (*model.Job, bool)

	// Update applies fn to the stored record atomically and returns a
	// snapshot of the result, or false if the job is absent. Readers never
	// observe a partially-applied fn.
	Update(id string, fn func(*model.Job)) (*model.Job, bool)

	// Delete removes the job record. Deleting an absent id is a no-op.
	Delete(id string)

	// List returns snapshots of every job, in no particular order.
	List() []*model.Job
}
