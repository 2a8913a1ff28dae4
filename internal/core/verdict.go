package core

// Chat roles understood by the LLM collaborator.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single conversation turn sent to or received from the LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Verdict is the structured outcome of one LLM review call for one file.
// Duration is stamped by the chat service with the wall-clock seconds the
// call took, including retries.
type Verdict struct {
	Approved    bool     `json:"approved"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
	Score       int      `json:"score"`
	Summary     string   `json:"summary"`
	Duration    float64  `json:"duration"`
}
