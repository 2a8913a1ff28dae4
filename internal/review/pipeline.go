package review

import (
	"context"
	"fmt"

	"github.com/sevigo/merge-warden/internal/core"
	"github.com/sevigo/merge-warden/internal/gitlab"
	"github.com/sevigo/merge-warden/internal/llm"
)

// reviewFile runs the full pipeline for one changed file: obtain a verdict
// from the LLM, publish it as a file-anchored discussion (or a follow-up note
// on the existing one), and persist the verdict and conversation turns.
//
// The returned error is reserved for unexpected host or storage failures. An
// LLM failure is absorbed into a rejecting fallback verdict so the file still
// gets a discussion and counts against approval.
func (c *Coordinator) reviewFile(ctx context.Context, projectID, mrIID int, refs gitlab.DiffRefs, change core.FileChange) (bool, error) {
	path := change.Path()

	discussionID, found, err := c.store.GetDiscussionID(ctx, projectID, mrIID, path)
	if err != nil {
		return false, err
	}
	if found {
		return c.updateDiscussion(ctx, projectID, mrIID, discussionID, change)
	}
	return c.createDiscussion(ctx, projectID, mrIID, refs, change)
}

// createDiscussion handles a file seen for the first time in this merge
// request: fresh conversation, new file-anchored discussion on the host, new
// discussion row locally.
func (c *Coordinator) createDiscussion(ctx context.Context, projectID, mrIID int, refs gitlab.DiffRefs, change core.FileChange) (bool, error) {
	path := change.Path()

	systemPrompt, err := c.renderer.SystemPrompt()
	if err != nil {
		return false, err
	}
	userPrompt, err := c.renderer.UserPrompt(change)
	if err != nil {
		return false, err
	}

	verdict := c.obtainVerdict(ctx, path, []core.ChatMessage{
		{Role: core.RoleSystem, Content: systemPrompt},
		{Role: core.RoleUser, Content: userPrompt},
	})

	body, err := c.renderer.Comment(verdict)
	if err != nil {
		return false, err
	}

	pos := gitlab.FilePosition{
		DiffRefs: refs,
		OldPath:  change.OldPath,
		NewPath:  change.NewPath,
	}
	discussionID, err := c.host.CreateDiscussion(ctx, projectID, mrIID, body, pos)
	if err != nil {
		return false, err
	}

	if _, err := c.store.CreateDiscussion(ctx, projectID, mrIID, discussionID, path); err != nil {
		return false, err
	}
	if err := c.persistTurn(ctx, discussionID, userPrompt, verdict); err != nil {
		return false, err
	}

	return c.finish(ctx, projectID, mrIID, discussionID, verdict)
}

// updateDiscussion handles a file that already has a discussion from an
// earlier run. A discussion a human has resolved is left alone and counts as
// approved without consulting the LLM.
func (c *Coordinator) updateDiscussion(ctx context.Context, projectID, mrIID int, discussionID string, change core.FileChange) (bool, error) {
	discussion, err := c.host.GetDiscussion(ctx, projectID, mrIID, discussionID)
	if err != nil {
		return false, err
	}
	if discussion.Resolved() {
		c.logger.Info("discussion already resolved, skipping re-review",
			"project_id", projectID, "mr_iid", mrIID, "file", change.Path(), "discussion_id", discussionID)
		return true, nil
	}

	history, err := c.store.GetLLMMessages(ctx, discussionID)
	if err != nil {
		return false, err
	}

	systemPrompt, err := c.renderer.SystemPrompt()
	if err != nil {
		return false, err
	}
	userPrompt, err := c.renderer.UserPrompt(change)
	if err != nil {
		return false, err
	}

	messages := make([]core.ChatMessage, 0, len(history)+2)
	messages = append(messages, core.ChatMessage{Role: core.RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, core.ChatMessage{Role: core.RoleUser, Content: userPrompt})

	verdict := c.obtainVerdict(ctx, change.Path(), messages)

	body, err := c.renderer.Comment(verdict)
	if err != nil {
		return false, err
	}
	if err := c.host.AddDiscussionNote(ctx, projectID, mrIID, discussionID, body); err != nil {
		return false, err
	}
	if err := c.persistTurn(ctx, discussionID, userPrompt, verdict); err != nil {
		return false, err
	}

	return c.finish(ctx, projectID, mrIID, discussionID, verdict)
}

// obtainVerdict asks the LLM for a verdict and substitutes a rejecting
// fallback when the service fails, so one flaky call never approves a file
// by accident.
func (c *Coordinator) obtainVerdict(ctx context.Context, path string, messages []core.ChatMessage) *core.Verdict {
	verdict, err := c.chat.Chat(ctx, messages)
	if err == nil {
		return verdict
	}

	c.logger.Error("llm review failed, recording rejecting verdict", "file", path, "error", err)
	return &core.Verdict{
		Approved:    false,
		Score:       0,
		Issues:      []string{c.tr.T("review.llm_failure_issue", map[string]any{"Error": err.Error()})},
		Suggestions: []string{c.tr.T("review.llm_failure_suggestion", nil)},
		Summary:     c.tr.T("review.llm_failure_summary", nil),
	}
}

// persistTurn records the verdict and the two conversation turns that
// produced it, user prompt first so replayed histories stay in order.
func (c *Coordinator) persistTurn(ctx context.Context, discussionID, userPrompt string, verdict *core.Verdict) error {
	if err := c.store.CreateFileRecord(ctx, discussionID, verdict, c.chat.Model()); err != nil {
		return err
	}
	if err := c.store.CreateLLMMessage(ctx, discussionID, core.RoleUser, userPrompt); err != nil {
		return err
	}
	assistant, err := llm.SerializeVerdict(verdict)
	if err != nil {
		return fmt.Errorf("failed to serialize verdict: %w", err)
	}
	return c.store.CreateLLMMessage(ctx, discussionID, core.RoleAssistant, assistant)
}

// finish resolves the discussion for an approving verdict and reports the
// file's contribution to the approval tally.
func (c *Coordinator) finish(ctx context.Context, projectID, mrIID int, discussionID string, verdict *core.Verdict) (bool, error) {
	if !verdict.Approved {
		return false, nil
	}
	if err := c.host.ResolveDiscussion(ctx, projectID, mrIID, discussionID); err != nil {
		return false, err
	}
	return true, nil
}
