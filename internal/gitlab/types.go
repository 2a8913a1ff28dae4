// Package gitlab provides a focused client for the GitLab API operations the
// review workflow needs: projects, merge requests, file diffs, discussion
// threads, and approvals.
package gitlab

import "github.com/sevigo/merge-warden/internal/core"

// Project is the subset of a GitLab project the workflow consumes.
type Project struct {
	ID                int
	PathWithNamespace string
}

// DiffRefs anchor a file-position discussion to the commits a diff was
// computed against.
type DiffRefs struct {
	BaseSHA  string
	HeadSHA  string
	StartSHA string
}

// MergeRequest is the subset of a GitLab merge request the workflow consumes.
type MergeRequest struct {
	IID      int
	Title    string
	State    string
	DiffRefs DiffRefs
}

// Open reports whether the merge request is still in the opened state.
func (m *MergeRequest) Open() bool {
	return m.State == "opened"
}

// ChangeSet is the full changed-file listing of a merge request together with
// the diff refs new discussions must be anchored to.
type ChangeSet struct {
	DiffRefs DiffRefs
	Changes  []core.FileChange
}

// FilePosition locates a discussion on a file within a merge request diff.
type FilePosition struct {
	DiffRefs DiffRefs
	OldPath  string
	NewPath  string
}

// DiscussionNote is one note of a discussion thread.
type DiscussionNote struct {
	ID       int
	Body     string
	Resolved bool
}

// Discussion is a host-side threaded comment that can be marked resolved.
type Discussion struct {
	ID    string
	Notes []DiscussionNote
}

// Resolved reports whether any note of the discussion has been resolved.
// GitLab surfaces resolution on the notes, not on the thread object itself.
func (d *Discussion) Resolved() bool {
	for _, note := range d.Notes {
		if note.Resolved {
			return true
		}
	}
	return false
}

// User is a GitLab user account; the reviewer bot resolves to one of these.
type User struct {
	ID       int
	Username string
	Name     string
}
