package llm

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Attachment carries base64-encoded binary content (typically a PDF) for
// providers that accept documents alongside text. MIME tags the encoding.
type Attachment struct {
	MIME   string
	Base64 string
}

// Message represents a single message in a conversation. A message may carry
// an attachment in addition to its text content.
type Message struct {
	Role       Role
	Content    string
	Attachment *Attachment
}

// CompletionRequest contains the parameters for an LLM completion request.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// CompletionResponse contains the result of an LLM completion request.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}
