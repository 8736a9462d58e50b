package port

import "context"

// Reservation is a claimed slot in a job pool. Exactly one of Run or Cancel
// must be called on it.
type Reservation interface {
	// Run hands the job to the pool. It never blocks.
	Run(job func(ctx context.Context))

	// Cancel returns the slot unused
	Cancel()
}

// JobPool runs audit pipelines with bounded concurrency
type JobPool interface {
	// Reserve claims a slot without blocking. ok is false when the pool is
	// full or stopped.
	Reserve() (r Reservation, ok bool)
}
