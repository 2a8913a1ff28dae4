package gitlab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/sevigo/merge-warden/internal/config"
	"github.com/sevigo/merge-warden/internal/core"
)

// ErrNotAccessible marks a project or resource the token cannot see, either
// because it does not exist or because permission is missing. Callers treat
// both the same way: skip, do not retry.
var ErrNotAccessible = errors.New("resource not found or not accessible")

// Client defines the GitLab operations used by the review workflow. The
// interface keeps the workflow testable with fakes.
type Client interface {
	CurrentBotUser(ctx context.Context) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetProject(ctx context.Context, projectID int) (*Project, error)
	GetMergeRequest(ctx context.Context, projectID, mrIID int) (*MergeRequest, error)
	ListChanges(ctx context.Context, projectID, mrIID int, refs DiffRefs) (*ChangeSet, error)
	IsApproved(ctx context.Context, projectID, mrIID int) (bool, error)
	GetDiscussion(ctx context.Context, projectID, mrIID int, discussionID string) (*Discussion, error)
	CreateDiscussion(ctx context.Context, projectID, mrIID int, body string, pos FilePosition) (string, error)
	CreateComment(ctx context.Context, projectID, mrIID int, body string) error
	AddDiscussionNote(ctx context.Context, projectID, mrIID int, discussionID, body string) error
	ResolveDiscussion(ctx context.Context, projectID, mrIID int, discussionID string) error
	ApproveMergeRequest(ctx context.Context, projectID, mrIID int) error
}

type gitLabClient struct {
	client *gitlab.Client
	logger *slog.Logger
}

// NewClient builds a Client authenticated against the configured GitLab
// instance with the bot's personal access token.
func NewClient(cfg *config.Config, logger *slog.Logger) (Client, error) {
	c, err := gitlab.NewClient(cfg.GitLab.Token, gitlab.WithBaseURL(cfg.GitLab.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}
	return &gitLabClient{client: c, logger: logger}, nil
}

// CurrentBotUser resolves the account behind the configured token. The
// application calls this once at startup and treats failure as fatal.
func (g *gitLabClient) CurrentBotUser(ctx context.Context) (*User, error) {
	user, _, err := g.client.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bot user: %w", err)
	}
	return &User{ID: user.ID, Username: user.Username, Name: user.Name}, nil
}

// GetUserByUsername resolves a user account by its username. GitLab exposes
// this only as a filtered listing; an empty result maps to ErrNotAccessible.
func (g *gitLabClient) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	users, _, err := g.client.Users.ListUsers(&gitlab.ListUsersOptions{
		Username: gitlab.Ptr(username),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %q: %w", username, err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotAccessible)
	}
	u := users[0]
	return &User{ID: u.ID, Username: u.Username, Name: u.Name}, nil
}

func (g *gitLabClient) GetProject(ctx context.Context, projectID int) (*Project, error) {
	project, resp, err := g.client.Projects.GetProject(projectID, nil, gitlab.WithContext(ctx))
	if err != nil {
		if notAccessible(resp) {
			return nil, fmt.Errorf("project %d: %w", projectID, ErrNotAccessible)
		}
		return nil, fmt.Errorf("failed to get project %d: %w", projectID, err)
	}
	return &Project{ID: project.ID, PathWithNamespace: project.PathWithNamespace}, nil
}

func (g *gitLabClient) GetMergeRequest(ctx context.Context, projectID, mrIID int) (*MergeRequest, error) {
	mr, resp, err := g.client.MergeRequests.GetMergeRequest(projectID, mrIID, nil, gitlab.WithContext(ctx))
	if err != nil {
		if notAccessible(resp) {
			return nil, fmt.Errorf("merge request %d!%d: %w", projectID, mrIID, ErrNotAccessible)
		}
		return nil, fmt.Errorf("failed to get merge request %d!%d: %w", projectID, mrIID, err)
	}

	// DiffRefs is a struct value on the API type; the fields stay empty when
	// the host omits them.
	return &MergeRequest{
		IID:   mr.IID,
		Title: mr.Title,
		State: mr.State,
		DiffRefs: DiffRefs{
			BaseSHA:  mr.DiffRefs.BaseSha,
			HeadSHA:  mr.DiffRefs.HeadSha,
			StartSHA: mr.DiffRefs.StartSha,
		},
	}, nil
}

// ListChanges pages through the merge request's file diffs. The diff refs are
// taken from the merge request itself since the diffs endpoint does not
// repeat them.
func (g *gitLabClient) ListChanges(ctx context.Context, projectID, mrIID int, refs DiffRefs) (*ChangeSet, error) {
	set := &ChangeSet{DiffRefs: refs}

	opt := &gitlab.ListMergeRequestDiffsOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}
	for {
		diffs, resp, err := g.client.MergeRequests.ListMergeRequestDiffs(projectID, mrIID, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list changes for %d!%d: %w", projectID, mrIID, err)
		}
		for _, d := range diffs {
			set.Changes = append(set.Changes, core.FileChange{
				OldPath:     d.OldPath,
				NewPath:     d.NewPath,
				Diff:        d.Diff,
				NewFile:     d.NewFile,
				RenamedFile: d.RenamedFile,
				DeletedFile: d.DeletedFile,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return set, nil
}

// IsApproved queries the merge request approval state. An inaccessible
// approval endpoint is reported as an error so the caller can fail open.
func (g *gitLabClient) IsApproved(ctx context.Context, projectID, mrIID int) (bool, error) {
	approvals, _, err := g.client.MergeRequestApprovals.GetConfiguration(projectID, mrIID, gitlab.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to get approval state for %d!%d: %w", projectID, mrIID, err)
	}
	return len(approvals.ApprovedBy) > 0, nil
}

func (g *gitLabClient) GetDiscussion(ctx context.Context, projectID, mrIID int, discussionID string) (*Discussion, error) {
	discussion, _, err := g.client.Discussions.GetMergeRequestDiscussion(projectID, mrIID, discussionID, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get discussion %s on %d!%d: %w", discussionID, projectID, mrIID, err)
	}

	out := &Discussion{ID: discussion.ID}
	for _, note := range discussion.Notes {
		out.Notes = append(out.Notes, DiscussionNote{
			ID:       note.ID,
			Body:     note.Body,
			Resolved: note.Resolved,
		})
	}
	return out, nil
}

// CreateDiscussion opens a new file-anchored discussion thread and returns
// the host-assigned discussion id.
func (g *gitLabClient) CreateDiscussion(ctx context.Context, projectID, mrIID int, body string, pos FilePosition) (string, error) {
	opt := &gitlab.CreateMergeRequestDiscussionOptions{
		Body: gitlab.Ptr(body),
		Position: &gitlab.PositionOptions{
			BaseSHA:      gitlab.Ptr(pos.DiffRefs.BaseSHA),
			HeadSHA:      gitlab.Ptr(pos.DiffRefs.HeadSHA),
			StartSHA:     gitlab.Ptr(pos.DiffRefs.StartSHA),
			OldPath:      gitlab.Ptr(pos.OldPath),
			NewPath:      gitlab.Ptr(pos.NewPath),
			PositionType: gitlab.Ptr("file"),
		},
	}

	discussion, _, err := g.client.Discussions.CreateMergeRequestDiscussion(projectID, mrIID, opt, gitlab.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to create discussion on %d!%d: %w", projectID, mrIID, err)
	}
	return discussion.ID, nil
}

// CreateComment posts a plain, unanchored discussion, used for merge request
// level notifications.
func (g *gitLabClient) CreateComment(ctx context.Context, projectID, mrIID int, body string) error {
	opt := &gitlab.CreateMergeRequestDiscussionOptions{Body: gitlab.Ptr(body)}
	_, _, err := g.client.Discussions.CreateMergeRequestDiscussion(projectID, mrIID, opt, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to create comment on %d!%d: %w", projectID, mrIID, err)
	}
	return nil
}

func (g *gitLabClient) AddDiscussionNote(ctx context.Context, projectID, mrIID int, discussionID, body string) error {
	opt := &gitlab.AddMergeRequestDiscussionNoteOptions{Body: gitlab.Ptr(body)}
	_, _, err := g.client.Discussions.AddMergeRequestDiscussionNote(projectID, mrIID, discussionID, opt, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to add note to discussion %s on %d!%d: %w", discussionID, projectID, mrIID, err)
	}
	return nil
}

func (g *gitLabClient) ResolveDiscussion(ctx context.Context, projectID, mrIID int, discussionID string) error {
	opt := &gitlab.ResolveMergeRequestDiscussionOptions{Resolved: gitlab.Ptr(true)}
	_, _, err := g.client.Discussions.ResolveMergeRequestDiscussion(projectID, mrIID, discussionID, opt, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to resolve discussion %s on %d!%d: %w", discussionID, projectID, mrIID, err)
	}
	return nil
}

func (g *gitLabClient) ApproveMergeRequest(ctx context.Context, projectID, mrIID int) error {
	_, _, err := g.client.MergeRequestApprovals.ApproveMergeRequest(projectID, mrIID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to approve merge request %d!%d: %w", projectID, mrIID, err)
	}
	return nil
}

func notAccessible(resp *gitlab.Response) bool {
	return resp != nil && (resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden)
}
