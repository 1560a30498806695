package llm

// TokenEstimate is a per-piece token breakdown for the editor UI. It uses
// the default tokenizer and takes no budget decisions.
type TokenEstimate struct {
	Total        int `json:"total"`
	History      int `json:"history"`
	Files        int `json:"files"`
	Selection    int `json:"selection"`
	SystemPrompt int `json:"system_prompt"`
	Prompt       int `json:"prompt"`
}

// EstimateTokens reports what the next ask would roughly cost, before any
// eviction or file filtering.
func (s *Session) EstimateTokens(prompt string, opts AskOptions) (*TokenEstimate, error) {
	if err := LoadTokenizer(DefaultTokenizer); err != nil {
		return nil, err
	}
	count := func(text string) int { return CountTokens(DefaultTokenizer, text) }

	est := &TokenEstimate{
		Prompt:       count(prompt),
		SystemPrompt: count(opts.SystemPrompt),
		Selection:    count(RenderSelection(opts.Selection, opts.Filename, opts.Filetype, opts.StartRow, opts.EndRow)),
	}

	for _, turn := range s.History() {
		est.History += count(turn.Content)
	}

	blocks := RenderFileBlocks(opts.Embeddings)
	if len(blocks) > 0 {
		est.Files = count(fileHeader)
		for _, block := range blocks {
			est.Files += count(block)
		}
	}

	est.Total = est.Prompt + est.SystemPrompt + est.Selection + est.History + est.Files
	return est, nil
}
