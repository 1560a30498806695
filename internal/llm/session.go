package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/youruser/cochat/internal/logging"
	"github.com/youruser/cochat/internal/transport"
)

var log = logging.Get()

// Transport is the narrow slice of HTTP the session consumes. onLine is
// invoked once per inbound line on streaming POSTs.
type Transport interface {
	Get(ctx context.Context, url string, headers map[string]string) (transport.Response, error)
	Post(ctx context.Context, url string, headers map[string]string, body []byte, onLine func(string)) (transport.Response, error)
}

// TokenSource supplies a bearer-capable session token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Store persists conversation history as an opaque ordered sequence.
type Store interface {
	WriteAll(dir, name string, turns []Turn) error
	ReadAll(dir, name string) ([]Turn, error)
}

// jobSlot holds at most one current job token. A chunk belonging to any
// other token must be ignored; starting a new job silently supersedes the
// previous one.
type jobSlot struct {
	mu      sync.Mutex
	current uuid.UUID
	active  bool
}

func (j *jobSlot) start() uuid.UUID {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.current = uuid.New()
	j.active = true
	return j.current
}

func (j *jobSlot) stop() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.active {
		return false
	}
	j.active = false
	j.current = uuid.Nil
	return true
}

func (j *jobSlot) isCurrent(id uuid.UUID) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.active && j.current == id
}

// finish clears the slot only if the given job still owns it.
func (j *jobSlot) finish(id uuid.UUID) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.active && j.current == id {
		j.active = false
		j.current = uuid.Nil
	}
}

func (j *jobSlot) running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.active
}

// Options configures a Session.
type Options struct {
	Auth           TokenSource
	HTTP           Transport
	Store          Store
	CompletionsURL string
	ModelsURL      string
	EmbeddingsURL  string
	DefaultModel   string
	Temperature    float64
}

// Session is the stateful controller for one rolling conversation. History
// and the cached model catalog are guarded by mu; the job slot has its own
// lock so supersession checks never contend with history access.
type Session struct {
	auth           TokenSource
	http           Transport
	store          Store
	completionsURL string
	modelsURL      string
	embeddingsURL  string
	defaultModel   string
	temperature    float64

	mu      sync.Mutex
	history []Turn
	catalog map[string]Capability

	jobs jobSlot
}

// NewSession creates a session with empty history.
func NewSession(opts Options) *Session {
	return &Session{
		auth:           opts.Auth,
		http:           opts.HTTP,
		store:          opts.Store,
		completionsURL: opts.CompletionsURL,
		modelsURL:      opts.ModelsURL,
		embeddingsURL:  opts.EmbeddingsURL,
		defaultModel:   opts.DefaultModel,
		temperature:    opts.Temperature,
	}
}

// AskOptions carries the optional inputs to one ask.
type AskOptions struct {
	Selection    string
	Embeddings   []EmbeddingItem
	Filename     string
	Filetype     string
	StartRow     int
	EndRow       int
	SystemPrompt string
	Model        string
	Temperature  *float64
	OnProgress   func(delta string)
}

// AskResult is the outcome of a successful ask.
type AskResult struct {
	Text       string
	TokensUsed int
	MaxTokens  int
}

// Ask sends one prompt through the budget planner, assembler, and streaming
// consumer. A nil result with a nil error means the call was superseded by a
// newer ask and its output discarded.
func (s *Session) Ask(ctx context.Context, prompt string, opts AskOptions) (*AskResult, error) {
	job := s.jobs.start()
	defer s.jobs.finish(job)

	token, err := s.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	model := opts.Model
	if model == "" {
		model = s.defaultModel
	}
	temperature := s.temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	capability := s.capability(ctx, token, model)
	tokenizerID := capability.Tokenizer
	if err := LoadTokenizer(tokenizerID); err != nil {
		log.Error("Tokenizer %q unavailable, falling back to %s: %v", tokenizerID, DefaultTokenizer, err)
		tokenizerID = DefaultTokenizer
		if err := LoadTokenizer(tokenizerID); err != nil {
			return nil, err
		}
	}
	count := func(text string) int { return CountTokens(tokenizerID, text) }

	selectionBlock := RenderSelection(opts.Selection, opts.Filename, opts.Filetype, opts.StartRow, opts.EndRow)
	fileBlocks := RenderFileBlocks(opts.Embeddings)

	// Plan purely, then apply the eviction to shared history as an explicit
	// step. Eviction happens before every send, even if the send fails.
	s.mu.Lock()
	plan := PlanBudget(count, s.history, prompt, opts.SystemPrompt, selectionBlock, fileBlocks, capability)
	if plan.EvictCount > 0 {
		log.Debug("Evicting %d oldest turns (history limit %d tokens)", plan.EvictCount, plan.HistoryLimit)
		s.history = s.history[plan.EvictCount:]
	}
	s.mu.Unlock()

	streaming := SupportsStreaming(model)
	messages := BuildMessages(plan.KeptHistory, prompt, plan.KeptFiles, selectionBlock, opts.SystemPrompt, streaming)
	body, err := json.Marshal(BuildRequest(model, temperature, streaming, messages))
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"Authorization": "Bearer " + token}
	log.Info("Ask: model=%s streaming=%t messages=%d required=%d reserved=%d",
		model, streaming, len(messages), plan.RequiredTokens, plan.Reserved)

	var text string
	var usage *Usage
	if streaming {
		consumer := newStreamConsumer(func() bool { return s.jobs.isCurrent(job) }, opts.OnProgress)
		resp, postErr := s.http.Post(ctx, s.completionsURL, headers, body, consumer.feed)
		if consumer.abandoned() {
			return nil, nil
		}
		if postErr != nil {
			return nil, postErr
		}
		if !resp.OK() {
			return nil, fmt.Errorf("%w: %d - %s", ErrRequestFailed, resp.Status, string(resp.Body))
		}
		text, usage, err = consumer.finish()
		if err != nil {
			return nil, err
		}
	} else {
		text, usage, err = s.askOnce(ctx, headers, body, opts.OnProgress)
		if err != nil {
			return nil, err
		}
	}

	// The job may have been superseded between stream close and now; a
	// stale call must never touch shared history.
	if !s.jobs.isCurrent(job) {
		return nil, nil
	}

	s.mu.Lock()
	s.history = append(s.history,
		Turn{Role: RoleUser, Content: prompt},
		Turn{Role: RoleAssistant, Content: text},
	)
	s.mu.Unlock()

	result := &AskResult{Text: text, MaxTokens: capability.MaxInputTokens}
	if usage != nil {
		result.TokensUsed = usage.TotalTokens
	}
	return result, nil
}

// askOnce performs a non-streaming completion for models that reject
// stream:true. The response body is a single JSON document in the same
// shape as a full-message chunk.
func (s *Session) askOnce(ctx context.Context, headers map[string]string, body []byte, onProgress func(string)) (string, *Usage, error) {
	resp, err := s.http.Post(ctx, s.completionsURL, headers, body, nil)
	if err != nil {
		return "", nil, err
	}
	if !resp.OK() {
		return "", nil, fmt.Errorf("%w: %d - %s", ErrRequestFailed, resp.Status, string(resp.Body))
	}

	var parsed chatChunk
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrStreamParse, err)
	}
	if parsed.Error != nil {
		return "", nil, fmt.Errorf("%w: %s", ErrStreamError, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil || parsed.Choices[0].Message.Content == "" {
		return "", nil, ErrEmptyResponse
	}

	text := parsed.Choices[0].Message.Content
	if onProgress != nil {
		onProgress(text)
	}
	return text, parsed.Usage, nil
}

// Stop clears the current job, if any. The in-flight request is left to
// drain on its own; its output is discarded at the next chunk boundary.
func (s *Session) Stop() bool {
	return s.jobs.stop()
}

// Running reports whether an ask is current.
func (s *Session) Running() bool {
	return s.jobs.running()
}

// Reset stops any current job, clears the conversation, and drops the
// cached model catalog. Reports whether a job was actually running.
func (s *Session) Reset() bool {
	stopped := s.jobs.stop()
	s.mu.Lock()
	s.history = nil
	s.catalog = nil
	s.mu.Unlock()
	return stopped
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Save persists the conversation under name in dir.
func (s *Session) Save(name, dir string) error {
	return s.store.WriteAll(dir, name, s.History())
}

// Load replaces the conversation with the one saved under name in dir and
// returns it.
func (s *Session) Load(name, dir string) ([]Turn, error) {
	turns, err := s.store.ReadAll(dir, name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.history = turns
	s.mu.Unlock()
	return s.History(), nil
}
