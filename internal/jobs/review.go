package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sevigo/merge-warden/internal/core"
	"github.com/sevigo/merge-warden/internal/gitlab"
)

// Reviewer runs the full review of one merge request. Satisfied by
// review.Coordinator.
type Reviewer interface {
	Run(ctx context.Context, projectID, mrIID int, refs gitlab.DiffRefs) error
}

// ReviewJob decides whether a merge request event warrants a review and, when
// it does, hands the merge request to the coordinator. Ordinary rejections are
// logged and absorbed; the returned error is reserved for unexpected failures.
type ReviewJob struct {
	host        gitlab.Client
	coordinator Reviewer
	botUser     *gitlab.User
	logger      *slog.Logger
}

func NewReviewJob(host gitlab.Client, coordinator Reviewer, botUser *gitlab.User, logger *slog.Logger) core.Job {
	return &ReviewJob{
		host:        host,
		coordinator: coordinator,
		botUser:     botUser,
		logger:      logger,
	}
}

// Run applies the eligibility gates in order of increasing cost and starts the
// review when all of them pass.
func (j *ReviewJob) Run(ctx context.Context, event *core.MergeRequestEvent) error {
	log := j.logger.With("project", event.ProjectPath, "mr_iid", event.MergeRequestIID)

	if !event.TriggersReview() {
		log.Info("ignoring merge request action", "action", event.Action)
		return nil
	}

	if !event.HasReviewer(j.botUser.ID) {
		log.Info("bot is not a reviewer on this merge request", "bot", j.botUser.Username)
		return nil
	}

	if _, err := j.host.GetProject(ctx, event.ProjectID); err != nil {
		if errors.Is(err, gitlab.ErrNotAccessible) {
			log.Info("project not accessible, skipping review")
			return nil
		}
		return err
	}

	mr, err := j.host.GetMergeRequest(ctx, event.ProjectID, event.MergeRequestIID)
	if err != nil {
		if errors.Is(err, gitlab.ErrNotAccessible) {
			log.Info("merge request not accessible, skipping review")
			return nil
		}
		return err
	}
	if !mr.Open() {
		log.Info("merge request is not open", "state", mr.State)
		return nil
	}

	// The approval probe fails open: when the host cannot answer, reviewing
	// an already approved merge request is the cheaper mistake.
	approved, err := j.host.IsApproved(ctx, event.ProjectID, event.MergeRequestIID)
	if err != nil {
		log.Warn("could not determine approval state, continuing with review", "error", err)
	} else if approved {
		log.Info("merge request is already approved, skipping review")
		return nil
	}

	log.Info("starting merge request review", "action", event.Action, "title", mr.Title)
	return j.coordinator.Run(ctx, event.ProjectID, event.MergeRequestIID, mr.DiffRefs)
}
