package domain

// Provider identifies one configured text-generation service.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderDeepSeek  Provider = "deepseek"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderDeepSeek:
		return true
	default:
		return false
	}
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ConversationTurn is one chronological message of a conversation. The
// gateway must never reorder turns it is given.
type ConversationTurn struct {
	Role Role   `json:"role"`
	Text string `json:"content"`
}

// ChatRequest is the uniform generation contract over all providers.
// Provider selection is explicit; there is no fallback between providers.
type ChatRequest struct {
	Messages     []ConversationTurn
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
	Provider     Provider
}

// Completion normalizes provider responses to one content string and a
// single token total regardless of the provider's own input/output split.
type Completion struct {
	Content    string `json:"content"`
	TokensUsed int    `json:"tokens_used"`
}
