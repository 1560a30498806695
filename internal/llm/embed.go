package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// DefaultEmbedChunkSize bounds how many inputs go into one embeddings call.
const DefaultEmbedChunkSize = 15

// DefaultEmbedModel is used when the caller doesn't name one.
const DefaultEmbedModel = "text-embedding-3-small"

// EmbedOptions configures an Embed call.
type EmbedOptions struct {
	Model     string
	ChunkSize int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

// Embed augments items with embedding vectors, processing them in
// fixed-size batches. The service reports an index per vector; order within
// each batch is restored from it, so input order is preserved overall.
func (s *Session) Embed(ctx context.Context, items []EmbeddingItem, opts EmbedOptions) ([]EmbeddingItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	token, err := s.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	model := opts.Model
	if model == "" {
		model = DefaultEmbedModel
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultEmbedChunkSize
	}

	headers := map[string]string{"Authorization": "Bearer " + token}

	out := make([]EmbeddingItem, len(items))
	copy(out, items)

	for start := 0; start < len(out); start += chunkSize {
		end := start + chunkSize
		if end > len(out) {
			end = len(out)
		}
		batch := out[start:end]

		inputs := make([]string, len(batch))
		for i, item := range batch {
			inputs[i] = item.Content
		}

		body, err := json.Marshal(embedRequest{Model: model, Input: inputs})
		if err != nil {
			return nil, err
		}

		resp, err := s.http.Post(ctx, s.embeddingsURL, headers, body, nil)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, fmt.Errorf("%w: %d - %s", ErrRequestFailed, resp.Status, string(resp.Body))
		}

		var parsed embedResponse
		if err := json.Unmarshal(resp.Body, &parsed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
		}
		if parsed.Error != nil {
			return nil, fmt.Errorf("%w: %s", ErrRequestFailed, parsed.Error.Message)
		}

		for _, d := range parsed.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("%w: embedding index %d out of range", ErrRequestFailed, d.Index)
			}
			batch[d.Index].Embedding = d.Embedding
		}
		log.Debug("Embedded batch %d-%d of %d", start, end, len(out))
	}

	return out, nil
}
