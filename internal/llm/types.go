package llm

import "errors"

// Turn roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	ErrRequestFailed = errors.New("API request failed")
	ErrStreamError   = errors.New("stream error")
	ErrStreamParse   = errors.New("malformed stream chunk")
	ErrEmptyResponse = errors.New("empty response")
)

// Turn is one message exchanged in the conversation. Immutable once created;
// appended to the session history only after a successful exchange.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EmbeddingItem is one unit of editor-supplied file context. Content and
// Prompt are inputs; Embedding is filled in by Embed.
type EmbeddingItem struct {
	Filename  string    `json:"filename"`
	Filetype  string    `json:"filetype"`
	Prompt    string    `json:"prompt,omitempty"`
	Content   string    `json:"content,omitempty"`
	Embedding []float64 `json:"embedding,omitempty"`
}

// Capability describes what the catalog knows about a model.
type Capability struct {
	Tokenizer      string
	MaxInputTokens int
}

// DefaultCapability is used when the catalog has no entry for a model.
var DefaultCapability = Capability{
	Tokenizer:      DefaultTokenizer,
	MaxInputTokens: 8192,
}

// Usage contains token usage reported by the API, typically in the final
// stream chunk.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request types for the completions endpoint. Streaming-only knobs are
// omitted from the non-streaming shape via omitempty.
type chatRequest struct {
	Model       string   `json:"model"`
	Messages    []Turn   `json:"messages"`
	Stream      bool     `json:"stream"`
	Intent      bool     `json:"intent,omitempty"`
	N           int      `json:"n,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Response types. A chunk may carry an incremental delta (streaming) or a
// complete message (non-streaming shape); both are handled by the consumer.
type chatChunk struct {
	Choices []chunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
	Error   *apiError     `json:"error,omitempty"`
}

type chunkChoice struct {
	Delta   *chunkContent `json:"delta,omitempty"`
	Message *chunkContent `json:"message,omitempty"`
}

type chunkContent struct {
	Content string `json:"content,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ModelInfo is one entry of the model catalog as exposed to callers.
type ModelInfo struct {
	ID             string `json:"id"`
	Tokenizer      string `json:"tokenizer"`
	MaxInputTokens int    `json:"max_input_tokens"`
}
