package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "plain JSON object",
			raw:  `{"approved": true, "issues": [], "suggestions": [], "score": 9, "summary": "ok"}`,
		},
		{
			name: "object wrapped in markdown fence",
			raw:  "```json\n{\"approved\": false, \"score\": 3, \"summary\": \"needs work\"}\n```",
		},
		{
			name: "object surrounded by prose",
			raw:  `Here is my review: {"approved": true, "score": 8, "summary": "fine"} Hope that helps!`,
		},
		{
			name:    "no braces at all",
			raw:     "I cannot review this file.",
			wantErr: true,
		},
		{
			name:    "malformed JSON between braces",
			raw:     `{"approved": tr`,
			wantErr: true,
		},
		{
			name:    "top-level array",
			raw:     `[1, 2, 3]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := ParseVerdict(tt.raw, 1.5)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1.5, verdict.Duration)
		})
	}
}

func TestParseVerdict_Fields(t *testing.T) {
	raw := `{"approved": true, "issues": ["a", "b"], "suggestions": ["c"], "score": 7, "summary": "solid"}`

	verdict, err := ParseVerdict(raw, 2.25)
	require.NoError(t, err)

	assert.True(t, verdict.Approved)
	assert.Equal(t, []string{"a", "b"}, verdict.Issues)
	assert.Equal(t, []string{"c"}, verdict.Suggestions)
	assert.Equal(t, 7, verdict.Score)
	assert.Equal(t, "solid", verdict.Summary)
	assert.Equal(t, 2.25, verdict.Duration)
}

func TestParseVerdict_RoundTripThroughSerialization(t *testing.T) {
	raw := `{"approved": false, "issues": ["missing error check"], "suggestions": ["wrap the error"], "score": 4, "summary": "risky"}`

	first, err := ParseVerdict(raw, 1.0)
	require.NoError(t, err)

	serialized, err := SerializeVerdict(first)
	require.NoError(t, err)

	second, err := ParseVerdict(serialized, first.Duration)
	require.NoError(t, err)

	assert.Equal(t, first.Issues, second.Issues)
	assert.Equal(t, first.Suggestions, second.Suggestions)
	assert.Equal(t, first.Approved, second.Approved)
	assert.Equal(t, first.Score, second.Score)
}
