package wire

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/merge-warden/internal/config"
	"github.com/sevigo/merge-warden/internal/gitlab"
)

// identityHost stubs only the identity lookups; the embedded interface leaves
// the rest unimplemented.
type identityHost struct {
	gitlab.Client
	tokenUser  *gitlab.User
	byUsername map[string]*gitlab.User
}

func (h *identityHost) CurrentBotUser(context.Context) (*gitlab.User, error) {
	return h.tokenUser, nil
}

func (h *identityHost) GetUserByUsername(_ context.Context, username string) (*gitlab.User, error) {
	if u, ok := h.byUsername[username]; ok {
		return u, nil
	}
	return nil, gitlab.ErrNotAccessible
}

func TestProvideBotUserPrefersConfiguredUsername(t *testing.T) {
	host := &identityHost{
		tokenUser:  &gitlab.User{ID: 1, Username: "admin"},
		byUsername: map[string]*gitlab.User{"review-bot": {ID: 99, Username: "review-bot"}},
	}
	cfg := &config.Config{GitLab: config.GitLabConfig{BotUsername: "review-bot"}}

	user, err := provideBotUser(context.Background(), cfg, host)
	require.NoError(t, err)
	assert.Equal(t, 99, user.ID)
	assert.Equal(t, "review-bot", user.Username)
}

func TestProvideBotUserFallsBackToTokenAccount(t *testing.T) {
	host := &identityHost{tokenUser: &gitlab.User{ID: 1, Username: "admin"}}
	cfg := &config.Config{}

	user, err := provideBotUser(context.Background(), cfg, host)
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
}

func TestProvideBotUserUnknownUsernameFails(t *testing.T) {
	host := &identityHost{tokenUser: &gitlab.User{ID: 1, Username: "admin"}}
	cfg := &config.Config{GitLab: config.GitLabConfig{BotUsername: "nobody"}}

	_, err := provideBotUser(context.Background(), cfg, host)
	assert.Error(t, err)
}
