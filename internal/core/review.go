package core

import "time"

// ReviewStatus is the lifecycle state of a merge request review.
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "pending"
	StatusApproved ReviewStatus = "approved"
	StatusRejected ReviewStatus = "rejected"
)

// Review is one row per (project, merge request) pair. Re-processing the same
// merge request updates the status in place rather than duplicating.
type Review struct {
	ID              int64        `db:"id"`
	ProjectID       int          `db:"project_id"`
	MergeRequestIID int          `db:"merge_request_iid"`
	Status          ReviewStatus `db:"status"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

// FileRecord is an append-only snapshot of one LLM verdict for one discussion.
// Multiple records may exist per discussion, one per re-review; the most
// recent by creation time is the latest verdict.
type FileRecord struct {
	ID                 int64     `db:"id"`
	ReviewDiscussionID int64     `db:"review_discussion_id"`
	Approved           bool      `db:"approved"`
	Score              int       `db:"score"`
	Issues             []string  `db:"-"`
	Suggestions        []string  `db:"-"`
	Summary            string    `db:"summary"`
	LLMModel           string    `db:"llm_model"`
	CreatedAt          time.Time `db:"created_at"`
}

// FileChange describes one changed file in a merge request diff.
type FileChange struct {
	OldPath     string
	NewPath     string
	Diff        string
	NewFile     bool
	RenamedFile bool
	DeletedFile bool
}

// Path returns the effective path of the change: the new path when present,
// otherwise the old path.
func (c FileChange) Path() string {
	if c.NewPath != "" {
		return c.NewPath
	}
	return c.OldPath
}
