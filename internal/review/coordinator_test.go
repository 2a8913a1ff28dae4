package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/merge-warden/internal/config"
	"github.com/sevigo/merge-warden/internal/core"
	"github.com/sevigo/merge-warden/internal/gitlab"
	"github.com/sevigo/merge-warden/internal/i18n"
	"github.com/sevigo/merge-warden/internal/llm"
	"github.com/sevigo/merge-warden/internal/storage"
)

type fakeHost struct {
	mu sync.Mutex

	changes       []core.FileChange
	listErr       error
	discussions   map[string]*gitlab.Discussion
	createDiscErr map[string]error

	createdDiscussions []string
	comments           []string
	notes              map[string][]string
	resolved           []string
	approveCalls       int
	nextDiscussionID   int
}

func newFakeHost(changes ...core.FileChange) *fakeHost {
	return &fakeHost{
		changes:       changes,
		discussions:   map[string]*gitlab.Discussion{},
		createDiscErr: map[string]error{},
		notes:         map[string][]string{},
	}
}

func (f *fakeHost) CurrentBotUser(context.Context) (*gitlab.User, error) {
	return &gitlab.User{ID: 1, Username: "merge-warden"}, nil
}

func (f *fakeHost) GetUserByUsername(_ context.Context, username string) (*gitlab.User, error) {
	return &gitlab.User{ID: 1, Username: username}, nil
}

func (f *fakeHost) GetProject(context.Context, int) (*gitlab.Project, error) {
	return &gitlab.Project{ID: 1, PathWithNamespace: "group/project"}, nil
}

func (f *fakeHost) GetMergeRequest(context.Context, int, int) (*gitlab.MergeRequest, error) {
	return &gitlab.MergeRequest{IID: 1, State: "opened"}, nil
}

func (f *fakeHost) ListChanges(_ context.Context, _, _ int, refs gitlab.DiffRefs) (*gitlab.ChangeSet, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &gitlab.ChangeSet{DiffRefs: refs, Changes: f.changes}, nil
}

func (f *fakeHost) IsApproved(context.Context, int, int) (bool, error) {
	return false, nil
}

func (f *fakeHost) GetDiscussion(_ context.Context, _, _ int, discussionID string) (*gitlab.Discussion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.discussions[discussionID]
	if !ok {
		return nil, gitlab.ErrNotAccessible
	}
	return d, nil
}

func (f *fakeHost) CreateDiscussion(_ context.Context, _, _ int, body string, pos gitlab.FilePosition) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := pos.NewPath
	if path == "" {
		path = pos.OldPath
	}
	if err := f.createDiscErr[path]; err != nil {
		return "", err
	}
	f.nextDiscussionID++
	id := fmt.Sprintf("disc-%d", f.nextDiscussionID)
	f.discussions[id] = &gitlab.Discussion{ID: id, Notes: []gitlab.DiscussionNote{{ID: 1, Body: body}}}
	f.createdDiscussions = append(f.createdDiscussions, id)
	return id, nil
}

func (f *fakeHost) CreateComment(_ context.Context, _, _ int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, body)
	return nil
}

func (f *fakeHost) AddDiscussionNote(_ context.Context, _, _ int, discussionID, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[discussionID] = append(f.notes[discussionID], body)
	return nil
}

func (f *fakeHost) ResolveDiscussion(_ context.Context, _, _ int, discussionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, discussionID)
	return nil
}

func (f *fakeHost) ApproveMergeRequest(context.Context, int, int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approveCalls++
	return nil
}

type fakeChat struct {
	mu    sync.Mutex
	calls [][]core.ChatMessage
	fn    func(messages []core.ChatMessage) (*core.Verdict, error)
}

func (f *fakeChat) Chat(_ context.Context, messages []core.ChatMessage) (*core.Verdict, error) {
	f.mu.Lock()
	f.calls = append(f.calls, messages)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(messages)
	}
	return &core.Verdict{Approved: true, Score: 9, Summary: "looks good"}, nil
}

func (f *fakeChat) Model() string { return "test-model" }

func (f *fakeChat) Check(context.Context) error { return nil }

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type memStore struct {
	mu          sync.Mutex
	statuses    map[string]core.ReviewStatus
	discussions map[string]string // "pid/iid/path" -> discussion id
	records     map[string][]*core.FileRecord
	messages    map[string][]core.ChatMessage
}

func newMemStore() *memStore {
	return &memStore{
		statuses:    map[string]core.ReviewStatus{},
		discussions: map[string]string{},
		records:     map[string][]*core.FileRecord{},
		messages:    map[string][]core.ChatMessage{},
	}
}

func reviewKey(projectID, mrIID int) string { return fmt.Sprintf("%d/%d", projectID, mrIID) }

func (m *memStore) UpsertReview(_ context.Context, projectID, mrIID int, status core.ReviewStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[reviewKey(projectID, mrIID)] = status
	return 1, nil
}

func (m *memStore) GetReview(_ context.Context, projectID, mrIID int) (*core.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[reviewKey(projectID, mrIID)]
	if !ok {
		return nil, nil
	}
	return &core.Review{ID: 1, ProjectID: projectID, MergeRequestIID: mrIID, Status: status}, nil
}

func (m *memStore) GetDiscussionID(_ context.Context, projectID, mrIID int, filePath string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.discussions[fmt.Sprintf("%d/%d/%s", projectID, mrIID, filePath)]
	return id, ok, nil
}

func (m *memStore) CreateDiscussion(_ context.Context, projectID, mrIID int, discussionID, filePath string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discussions[fmt.Sprintf("%d/%d/%s", projectID, mrIID, filePath)] = discussionID
	return 1, nil
}

func (m *memStore) CreateFileRecord(_ context.Context, discussionID string, verdict *core.Verdict, llmModel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[discussionID] = append(m.records[discussionID], &core.FileRecord{
		Approved:    verdict.Approved,
		Score:       verdict.Score,
		Issues:      verdict.Issues,
		Suggestions: verdict.Suggestions,
		Summary:     verdict.Summary,
		LLMModel:    llmModel,
	})
	return nil
}

func (m *memStore) GetLatestFileRecord(_ context.Context, discussionID string) (*core.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.records[discussionID]
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[len(recs)-1], nil
}

func (m *memStore) CreateLLMMessage(_ context.Context, discussionID, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[discussionID] = append(m.messages[discussionID], core.ChatMessage{Role: role, Content: content})
	return nil
}

func (m *memStore) GetLLMMessages(_ context.Context, discussionID string) ([]core.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.ChatMessage(nil), m.messages[discussionID]...), nil
}

var _ storage.Store = (*memStore)(nil)
var _ gitlab.Client = (*fakeHost)(nil)
var _ llm.ChatService = (*fakeChat)(nil)

func newTestCoordinator(t *testing.T, host *fakeHost, chat *fakeChat, store *memStore) *Coordinator {
	t.Helper()
	pm, err := llm.NewPromptManager()
	require.NoError(t, err)
	tr, err := i18n.New("en")
	require.NoError(t, err)
	renderer := llm.NewRenderer(pm, &config.Config{Locale: "en"})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCoordinator(host, chat, store, renderer, tr, logger)
}

func goChanges(n int) []core.FileChange {
	changes := make([]core.FileChange, n)
	for i := range changes {
		changes[i] = core.FileChange{
			NewPath: fmt.Sprintf("pkg/file%d.go", i),
			Diff:    "+package pkg",
		}
	}
	return changes
}

func TestRunApprovesWhenAllFilesPass(t *testing.T) {
	host := newFakeHost(goChanges(3)...)
	chat := &fakeChat{}
	store := newMemStore()
	coord := newTestCoordinator(t, host, chat, store)

	err := coord.Run(context.Background(), 42, 7, gitlab.DiffRefs{BaseSHA: "a", HeadSHA: "b", StartSHA: "a"})
	require.NoError(t, err)

	assert.Equal(t, 3, chat.callCount())
	assert.Len(t, host.createdDiscussions, 3)
	assert.Len(t, host.resolved, 3)
	assert.Equal(t, 1, host.approveCalls)
	assert.Equal(t, core.StatusApproved, store.statuses[reviewKey(42, 7)])
}

func TestRunWithNoReviewableFiles(t *testing.T) {
	host := newFakeHost(
		core.FileChange{NewPath: "docs/logo.png", Diff: "binary"},
		core.FileChange{OldPath: "old.go", DeletedFile: true},
	)
	chat := &fakeChat{}
	store := newMemStore()
	coord := newTestCoordinator(t, host, chat, store)

	err := coord.Run(context.Background(), 42, 7, gitlab.DiffRefs{})
	require.NoError(t, err)

	assert.Zero(t, chat.callCount())
	assert.Zero(t, host.approveCalls)
	assert.Equal(t, core.StatusPending, store.statuses[reviewKey(42, 7)])
}

func TestRunEnforcesFileLimit(t *testing.T) {
	host := newFakeHost(goChanges(21)...)
	chat := &fakeChat{}
	store := newMemStore()
	coord := newTestCoordinator(t, host, chat, store)

	err := coord.Run(context.Background(), 42, 7, gitlab.DiffRefs{})
	require.NoError(t, err)

	// One file over the limit: the notice is posted and no file is reviewed.
	assert.Len(t, host.comments, 1)
	assert.Zero(t, chat.callCount())
	assert.Empty(t, host.createdDiscussions)
	assert.Zero(t, host.approveCalls)
	assert.Equal(t, core.StatusPending, store.statuses[reviewKey(42, 7)])
}

func TestRunAtFileLimitPostsNoNotice(t *testing.T) {
	host := newFakeHost(goChanges(20)...)
	chat := &fakeChat{}
	store := newMemStore()
	coord := newTestCoordinator(t, host, chat, store)

	err := coord.Run(context.Background(), 42, 7, gitlab.DiffRefs{})
	require.NoError(t, err)

	assert.Empty(t, host.comments)
	assert.Equal(t, 20, chat.callCount())
}

func TestRunExcludesFailedFilesFromApproval(t *testing.T) {
	host := newFakeHost(goChanges(3)...)
	host.createDiscErr["pkg/file1.go"] = errors.New("gitlab is down")
	chat := &fakeChat{}
	store := newMemStore()
	coord := newTestCoordinator(t, host, chat, store)

	err := coord.Run(context.Background(), 42, 7, gitlab.DiffRefs{})
	require.NoError(t, err)

	// Two of three files reviewed and approved, the failed one is excluded.
	assert.Equal(t, 1, host.approveCalls)
	assert.Equal(t, core.StatusApproved, store.statuses[reviewKey(42, 7)])
}

func TestRunDoesNotApproveOnRejectingVerdict(t *testing.T) {
	host := newFakeHost(goChanges(2)...)
	chat := &fakeChat{fn: func(messages []core.ChatMessage) (*core.Verdict, error) {
		return &core.Verdict{Approved: false, Score: 4, Issues: []string{"unchecked error"}}, nil
	}}
	store := newMemStore()
	coord := newTestCoordinator(t, host, chat, store)

	err := coord.Run(context.Background(), 42, 7, gitlab.DiffRefs{})
	require.NoError(t, err)

	assert.Zero(t, host.approveCalls)
	assert.Empty(t, host.resolved)
	assert.Equal(t, core.StatusPending, store.statuses[reviewKey(42, 7)])
}

func TestRunLLMFailureRecordsRejectingVerdict(t *testing.T) {
	host := newFakeHost(goChanges(1)...)
	chat := &fakeChat{fn: func([]core.ChatMessage) (*core.Verdict, error) {
		return nil, errors.New("model unavailable")
	}}
	store := newMemStore()
	coord := newTestCoordinator(t, host, chat, store)

	err := coord.Run(context.Background(), 42, 7, gitlab.DiffRefs{})
	require.NoError(t, err)

	// Discussion is still posted, the file counts as reviewed and rejected.
	require.Len(t, host.createdDiscussions, 1)
	assert.Zero(t, host.approveCalls)
	assert.Empty(t, host.resolved)

	recs := store.records[host.createdDiscussions[0]]
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Approved)
	assert.Zero(t, recs[0].Score)
	assert.Contains(t, recs[0].Issues[0], "model unavailable")
}

func TestRunSkipsResolvedDiscussion(t *testing.T) {
	host := newFakeHost(goChanges(1)...)
	host.discussions["disc-9"] = &gitlab.Discussion{
		ID:    "disc-9",
		Notes: []gitlab.DiscussionNote{{ID: 1, Body: "earlier verdict", Resolved: true}},
	}
	chat := &fakeChat{}
	store := newMemStore()
	store.discussions["42/7/pkg/file0.go"] = "disc-9"
	coord := newTestCoordinator(t, host, chat, store)

	err := coord.Run(context.Background(), 42, 7, gitlab.DiffRefs{})
	require.NoError(t, err)

	assert.Zero(t, chat.callCount())
	assert.Equal(t, 1, host.approveCalls)
	assert.Equal(t, core.StatusApproved, store.statuses[reviewKey(42, 7)])
}

func TestRunUpdatesExistingDiscussionWithHistory(t *testing.T) {
	host := newFakeHost(goChanges(1)...)
	host.discussions["disc-3"] = &gitlab.Discussion{
		ID:    "disc-3",
		Notes: []gitlab.DiscussionNote{{ID: 1, Body: "earlier verdict"}},
	}
	chat := &fakeChat{}
	store := newMemStore()
	store.discussions["42/7/pkg/file0.go"] = "disc-3"
	store.messages["disc-3"] = []core.ChatMessage{
		{Role: core.RoleUser, Content: "first diff"},
		{Role: core.RoleAssistant, Content: "first verdict"},
	}
	coord := newTestCoordinator(t, host, chat, store)

	err := coord.Run(context.Background(), 42, 7, gitlab.DiffRefs{})
	require.NoError(t, err)

	require.Equal(t, 1, chat.callCount())
	messages := chat.calls[0]
	require.Len(t, messages, 4)
	assert.Equal(t, core.RoleSystem, messages[0].Role)
	assert.Equal(t, "first diff", messages[1].Content)
	assert.Equal(t, "first verdict", messages[2].Content)
	assert.Equal(t, core.RoleUser, messages[3].Role)

	assert.Len(t, host.notes["disc-3"], 1)
	assert.Empty(t, host.createdDiscussions)
	assert.Len(t, store.messages["disc-3"], 4)
	assert.Equal(t, 1, host.approveCalls)
}

func TestRunMarksReviewRejectedOnTopLevelFailure(t *testing.T) {
	host := newFakeHost()
	host.listErr = errors.New("cannot list changes")
	chat := &fakeChat{}
	store := newMemStore()
	coord := newTestCoordinator(t, host, chat, store)

	err := coord.Run(context.Background(), 42, 7, gitlab.DiffRefs{})
	require.Error(t, err)
	assert.Equal(t, core.StatusRejected, store.statuses[reviewKey(42, 7)])
}
