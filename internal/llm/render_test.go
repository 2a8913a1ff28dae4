package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/merge-warden/internal/config"
	"github.com/sevigo/merge-warden/internal/core"
)

func newTestRenderer(t *testing.T, locale string) *Renderer {
	t.Helper()
	pm, err := NewPromptManager()
	require.NoError(t, err)
	return NewRenderer(pm, &config.Config{Locale: locale})
}

func TestFormatNumbered(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		want  string
	}{
		{"empty", nil, ""},
		{"single", []string{"only"}, "1. only"},
		{"multiple", []string{"first", "second", "third"}, "1. first\n2. second\n3. third"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNumbered(tt.items))
		})
	}
}

func TestRenderer_UserPrompt(t *testing.T) {
	r := newTestRenderer(t, "en")

	prompt, err := r.UserPrompt(core.FileChange{
		OldPath: "pkg/old.go",
		NewPath: "pkg/new.go",
		Diff:    "@@ -1 +1 @@\n-a\n+b",
		NewFile: true,
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "pkg/old.go")
	assert.Contains(t, prompt, "pkg/new.go")
	assert.Contains(t, prompt, "newly added")
	assert.Contains(t, prompt, "@@ -1 +1 @@")
}

func TestRenderer_Comment(t *testing.T) {
	r := newTestRenderer(t, "en")

	comment, err := r.Comment(&core.Verdict{
		Approved:    false,
		Score:       4,
		Summary:     "needs another pass",
		Issues:      []string{"unchecked error", "data race"},
		Suggestions: []string{"add a mutex"},
		Duration:    3.2,
	})
	require.NoError(t, err)

	assert.Contains(t, comment, "Review failed")
	assert.Contains(t, comment, "1. unchecked error")
	assert.Contains(t, comment, "2. data race")
	assert.Contains(t, comment, "1. add a mutex")
	assert.Contains(t, comment, "needs another pass")
}

func TestRenderer_CommentLocaleFallback(t *testing.T) {
	// Unknown locale renders through the default templates.
	r := newTestRenderer(t, "fr")

	comment, err := r.Comment(&core.Verdict{Approved: true, Score: 9, Summary: "ok"})
	require.NoError(t, err)
	assert.Contains(t, comment, "Review passed")
}

func TestRenderer_CommentChinese(t *testing.T) {
	r := newTestRenderer(t, "zh-CN")

	comment, err := r.Comment(&core.Verdict{Approved: true, Score: 10, Summary: "很好"})
	require.NoError(t, err)
	assert.Contains(t, comment, "评审通过")
}

func TestRenderer_LimitNotice(t *testing.T) {
	r := newTestRenderer(t, "en")

	notice, err := r.LimitNotice(26, 20)
	require.NoError(t, err)

	assert.Contains(t, notice, "26")
	assert.Contains(t, notice, "20")
}

func TestSerializeVerdict(t *testing.T) {
	out, err := SerializeVerdict(&core.Verdict{Approved: true, Score: 9, Summary: "ok"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "```json\n"))
	assert.True(t, strings.HasSuffix(out, "\n```"))
	assert.Contains(t, out, `"approved": true`)
}
