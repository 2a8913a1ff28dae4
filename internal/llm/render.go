package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sevigo/merge-warden/internal/config"
	"github.com/sevigo/merge-warden/internal/core"
)

// Renderer produces the prompt and comment text for one configured locale.
type Renderer struct {
	pm     *PromptManager
	locale Locale
}

// NewRenderer binds the prompt manager to the locale from configuration.
func NewRenderer(pm *PromptManager, cfg *config.Config) *Renderer {
	return &Renderer{pm: pm, locale: Locale(cfg.Locale)}
}

// SystemPrompt returns the review instructions sent as the system turn.
func (r *Renderer) SystemPrompt() (string, error) {
	return r.pm.Render(FileSystemPrompt, r.locale, nil)
}

// UserPrompt renders the per-file user turn from the change's paths, flags,
// and diff.
func (r *Renderer) UserPrompt(change core.FileChange) (string, error) {
	return r.pm.Render(FileUserPrompt, r.locale, change)
}

// discussionData is the template payload for the posted review comment.
// Issues and suggestions arrive already formatted as numbered lists; that
// transformation happens exactly once, here.
type discussionData struct {
	Approved    bool
	Score       int
	Summary     string
	Issues      string
	Suggestions string
	Duration    float64
}

// Comment renders the human-readable discussion comment for a verdict.
func (r *Renderer) Comment(v *core.Verdict) (string, error) {
	return r.pm.Render(DiscussionComment, r.locale, discussionData{
		Approved:    v.Approved,
		Score:       v.Score,
		Summary:     v.Summary,
		Issues:      FormatNumbered(v.Issues),
		Suggestions: FormatNumbered(v.Suggestions),
		Duration:    v.Duration,
	})
}

// LimitNotice renders the batch-size notification posted when a merge request
// has too many reviewable files.
func (r *Renderer) LimitNotice(fileCount, limit int) (string, error) {
	return r.pm.Render(LimitNotice, r.locale, map[string]int{
		"FileCount": fileCount,
		"Limit":     limit,
	})
}

// FormatNumbered joins items into a 1-based numbered list, one item per line.
func FormatNumbered(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, item)
	}
	return b.String()
}

// SerializeVerdict renders a verdict as a fenced JSON block. This is the form
// persisted as the assistant conversation turn, so a later re-review replays
// the model's own answer back to it verbatim.
func SerializeVerdict(v *core.Verdict) (string, error) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize verdict: %w", err)
	}
	return "```json\n" + string(data) + "\n```", nil
}
