// Package review implements the merge request review workflow: deciding
// which changed files to review, running the per-file LLM pipeline with
// bounded concurrency, and aggregating verdicts into an approval decision.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/sevigo/merge-warden/internal/core"
	"github.com/sevigo/merge-warden/internal/gitlab"
	"github.com/sevigo/merge-warden/internal/i18n"
	"github.com/sevigo/merge-warden/internal/llm"
	"github.com/sevigo/merge-warden/internal/storage"
)

const (
	// maxConcurrentReviews bounds the number of files reviewed in parallel
	// for a single merge request.
	maxConcurrentReviews = 10

	// maxReviewableFiles caps how many eligible files a single run accepts.
	// Larger merge requests get a notice comment and no per-file reviews.
	maxReviewableFiles = 20
)

// Coordinator drives a full review of one merge request.
type Coordinator struct {
	host     gitlab.Client
	chat     llm.ChatService
	store    storage.Store
	renderer *llm.Renderer
	tr       *i18n.Translator
	logger   *slog.Logger
}

func NewCoordinator(host gitlab.Client, chat llm.ChatService, store storage.Store, renderer *llm.Renderer, tr *i18n.Translator, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		host:     host,
		chat:     chat,
		store:    store,
		renderer: renderer,
		tr:       tr,
		logger:   logger,
	}
}

type fileResult struct {
	path     string
	approved bool
	err      error
}

// Run reviews every eligible changed file of the merge request and approves
// the merge request when all of them pass. A change set over the file ceiling
// gets a notice comment and no reviews. Files whose pipeline fails with an
// unexpected error are excluded from the approval tally. Any top-level
// failure marks the stored review rejected before returning.
func (c *Coordinator) Run(ctx context.Context, projectID, mrIID int, refs gitlab.DiffRefs) error {
	if _, err := c.store.UpsertReview(ctx, projectID, mrIID, core.StatusPending); err != nil {
		return err
	}

	if err := c.run(ctx, projectID, mrIID, refs); err != nil {
		c.markRejected(ctx, projectID, mrIID)
		return err
	}
	return nil
}

func (c *Coordinator) run(ctx context.Context, projectID, mrIID int, refs gitlab.DiffRefs) error {
	changeSet, err := c.host.ListChanges(ctx, projectID, mrIID, refs)
	if err != nil {
		return err
	}

	eligible := make([]core.FileChange, 0, len(changeSet.Changes))
	for _, change := range changeSet.Changes {
		if ShouldReview(change) {
			eligible = append(eligible, change)
		}
	}

	if len(eligible) == 0 {
		c.logger.Info("no reviewable files in merge request",
			"project_id", projectID, "mr_iid", mrIID, "total_changes", len(changeSet.Changes))
		return nil
	}

	if len(eligible) > maxReviewableFiles {
		// Oversized merge requests get the notice comment and nothing else;
		// no file is reviewed until the author splits the change.
		return c.postLimitNotice(ctx, projectID, mrIID, len(eligible))
	}

	c.logger.Info("starting file reviews",
		"project_id", projectID, "mr_iid", mrIID, "files", len(eligible))

	results := c.reviewFiles(ctx, projectID, mrIID, changeSet.DiffRefs, eligible)

	var approved, failed int
	for _, res := range results {
		switch {
		case res.err != nil:
			failed++
			c.logger.Error("file review failed",
				"project_id", projectID, "mr_iid", mrIID, "file", res.path, "error", res.err)
		case res.approved:
			approved++
		}
	}

	totalReviewed := len(results) - failed
	c.logger.Info("file reviews finished",
		"project_id", projectID, "mr_iid", mrIID,
		"reviewed", totalReviewed, "approved", approved, "failed", failed)

	if totalReviewed > 0 && approved == totalReviewed {
		if err := c.host.ApproveMergeRequest(ctx, projectID, mrIID); err != nil {
			return fmt.Errorf("failed to approve merge request %d!%d: %w", projectID, mrIID, err)
		}
		if _, err := c.store.UpsertReview(ctx, projectID, mrIID, core.StatusApproved); err != nil {
			return err
		}
		c.logger.Info("merge request approved", "project_id", projectID, "mr_iid", mrIID)
	}
	return nil
}

// reviewFiles runs the per-file pipeline for each change with at most
// maxConcurrentReviews in flight. A panic in one pipeline is converted into
// a failed result and never takes down the run.
func (c *Coordinator) reviewFiles(ctx context.Context, projectID, mrIID int, refs gitlab.DiffRefs, changes []core.FileChange) []fileResult {
	sem := semaphore.NewWeighted(maxConcurrentReviews)
	results := make([]fileResult, len(changes))

	var wg sync.WaitGroup
	for i, change := range changes {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = fileResult{path: change.Path(), err: err}
			continue
		}

		wg.Add(1)
		go func(i int, change core.FileChange) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					results[i] = fileResult{
						path: change.Path(),
						err:  fmt.Errorf("panic during file review: %v", r),
					}
				}
			}()

			approved, err := c.reviewFile(ctx, projectID, mrIID, refs, change)
			results[i] = fileResult{path: change.Path(), approved: approved, err: err}
		}(i, change)
	}
	wg.Wait()

	return results
}

func (c *Coordinator) postLimitNotice(ctx context.Context, projectID, mrIID, fileCount int) error {
	notice, err := c.renderer.LimitNotice(fileCount, maxReviewableFiles)
	if err != nil {
		return err
	}
	if err := c.host.CreateComment(ctx, projectID, mrIID, notice); err != nil {
		return fmt.Errorf("failed to post file limit notice on %d!%d: %w", projectID, mrIID, err)
	}
	c.logger.Warn("merge request exceeds reviewable file limit",
		"project_id", projectID, "mr_iid", mrIID, "files", fileCount, "limit", maxReviewableFiles)
	return nil
}

func (c *Coordinator) markRejected(ctx context.Context, projectID, mrIID int) {
	if _, err := c.store.UpsertReview(ctx, projectID, mrIID, core.StatusRejected); err != nil {
		c.logger.Error("failed to mark review rejected",
			"project_id", projectID, "mr_iid", mrIID, "error", err)
	}
}
