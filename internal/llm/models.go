package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Catalog wire shape from the /models endpoint.
type modelsResponse struct {
	Data []modelEntry `json:"data"`
}

type modelEntry struct {
	ID           string `json:"id"`
	Capabilities struct {
		Tokenizer string `json:"tokenizer"`
		Limits    struct {
			MaxPromptTokens int `json:"max_prompt_tokens"`
		} `json:"limits"`
	} `json:"capabilities"`
}

// fetchCatalog retrieves the model catalog. Called at most once per session
// lifetime; the session caches the result until an explicit Reset.
func (s *Session) fetchCatalog(ctx context.Context, token string) (map[string]Capability, error) {
	resp, err := s.http.Get(ctx, s.modelsURL, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: %d - %s", ErrRequestFailed, resp.Status, string(resp.Body))
	}

	var parsed modelsResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	catalog := make(map[string]Capability, len(parsed.Data))
	for _, entry := range parsed.Data {
		c := Capability{
			Tokenizer:      entry.Capabilities.Tokenizer,
			MaxInputTokens: entry.Capabilities.Limits.MaxPromptTokens,
		}
		if c.Tokenizer == "" {
			c.Tokenizer = DefaultTokenizer
		}
		if c.MaxInputTokens <= 0 {
			c.MaxInputTokens = DefaultCapability.MaxInputTokens
		}
		catalog[entry.ID] = c
	}
	log.Debug("Fetched model catalog: %d models", len(catalog))
	return catalog, nil
}

// capability resolves a model's tokenizer and input budget, fetching the
// catalog on first use. Unknown models fall back to a conservative default.
func (s *Session) capability(ctx context.Context, token, model string) Capability {
	s.mu.Lock()
	catalog := s.catalog
	s.mu.Unlock()

	if catalog == nil {
		fetched, err := s.fetchCatalog(ctx, token)
		if err != nil {
			log.Error("Model catalog fetch failed, using defaults: %v", err)
			return DefaultCapability
		}
		s.mu.Lock()
		s.catalog = fetched
		catalog = fetched
		s.mu.Unlock()
	}

	if c, ok := catalog[model]; ok {
		return c
	}
	return DefaultCapability
}

// Models lists the catalog for the editor UI, fetching it if needed.
func (s *Session) Models(ctx context.Context) ([]ModelInfo, error) {
	token, err := s.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	catalog := s.catalog
	s.mu.Unlock()

	if catalog == nil {
		catalog, err = s.fetchCatalog(ctx, token)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.catalog = catalog
		s.mu.Unlock()
	}

	infos := make([]ModelInfo, 0, len(catalog))
	for id, c := range catalog {
		infos = append(infos, ModelInfo{
			ID:             id,
			Tokenizer:      c.Tokenizer,
			MaxInputTokens: c.MaxInputTokens,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}
