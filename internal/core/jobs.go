package core

import (
	"context"
)

// JobDispatcher defines the contract for a system that can accept and queue
// background jobs for asynchronous processing. This interface decouples the
// event source (the webhook handler) from the job execution mechanism.
type JobDispatcher interface {
	// Dispatch accepts a MergeRequestEvent and queues it for processing.
	// It returns an error if the job cannot be queued, for example, if the
	// queue is full, providing a mechanism for backpressure.
	Dispatch(ctx context.Context, event *MergeRequestEvent) error

	// Stop shuts the dispatcher down, draining queued events and waiting
	// for in-flight jobs to finish.
	Stop()
}

// Job represents a single, executable unit of work that can be processed by
// the application's job dispatcher. Each job is triggered by a
// MergeRequestEvent and performs a specific task, such as a code review.
type Job interface {
	// Run executes the job's logic. Ordinary rejections (ineligible project,
	// closed merge request, uninvolved bot) are logged and absorbed; the
	// returned error is reserved for unexpected failures.
	Run(ctx context.Context, event *MergeRequestEvent) error
}
