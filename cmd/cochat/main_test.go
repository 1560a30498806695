package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func requestFromJSON(t *testing.T, raw string) map[string]any {
	t.Helper()
	var req map[string]any
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("bad test fixture: %v", err)
	}
	return req
}

func TestAskOptionsFromRequest(t *testing.T) {
	req := requestFromJSON(t, `{
		"action": "ask",
		"content": "explain this",
		"selection": "func main() {}",
		"filename": "main.go",
		"filetype": "go",
		"start_row": 10,
		"end_row": 12,
		"model": "gpt-4o",
		"temperature": 0.5,
		"embeddings": [
			{"filename": "a.go", "filetype": "go", "content": "package a"},
			{"filename": "b.go", "filetype": "go", "content": "package b"}
		]
	}`)

	opts := askOptionsFromRequest(req)

	if opts.Selection != "func main() {}" {
		t.Errorf("Selection = %q", opts.Selection)
	}
	if opts.Filename != "main.go" || opts.Filetype != "go" {
		t.Errorf("file info = %q/%q", opts.Filename, opts.Filetype)
	}
	if opts.StartRow != 10 || opts.EndRow != 12 {
		t.Errorf("rows = %d-%d, want 10-12", opts.StartRow, opts.EndRow)
	}
	if opts.Model != "gpt-4o" {
		t.Errorf("Model = %q", opts.Model)
	}
	if opts.Temperature == nil || *opts.Temperature != 0.5 {
		t.Errorf("Temperature = %v, want 0.5", opts.Temperature)
	}
	if len(opts.Embeddings) != 2 {
		t.Fatalf("got %d embedding items, want 2", len(opts.Embeddings))
	}
	if opts.Embeddings[1].Filename != "b.go" {
		t.Errorf("embeddings[1].Filename = %q", opts.Embeddings[1].Filename)
	}
	if opts.SystemPrompt != defaultSystemPrompt {
		t.Error("expected embedded default system prompt")
	}
}

func TestAskOptionsSystemPromptOverride(t *testing.T) {
	req := requestFromJSON(t, `{"content": "hi", "system_prompt": "You are terse."}`)
	opts := askOptionsFromRequest(req)
	if opts.SystemPrompt != "You are terse." {
		t.Errorf("SystemPrompt = %q, want override", opts.SystemPrompt)
	}
}

func TestAskOptionsDefaults(t *testing.T) {
	req := requestFromJSON(t, `{"content": "hi"}`)
	opts := askOptionsFromRequest(req)

	if opts.Model != "" {
		t.Errorf("Model = %q, want empty (session default)", opts.Model)
	}
	if opts.Temperature != nil {
		t.Errorf("Temperature = %v, want nil", *opts.Temperature)
	}
	if opts.Embeddings != nil {
		t.Errorf("Embeddings = %v, want nil", opts.Embeddings)
	}
}

func TestEmbeddingItemsFromRequest(t *testing.T) {
	t.Run("skips malformed entries", func(t *testing.T) {
		req := requestFromJSON(t, `{"embeddings": [
			{"filename": "a.go", "content": "package a"},
			"not an object",
			{"filename": "b.go", "content": "package b"}
		]}`)
		items := embeddingItemsFromRequest(req)
		if len(items) != 2 {
			t.Fatalf("got %d items, want 2", len(items))
		}
		if items[0].Filename != "a.go" || items[1].Filename != "b.go" {
			t.Errorf("items = %v", items)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		req := requestFromJSON(t, `{"action": "ask"}`)
		if items := embeddingItemsFromRequest(req); items != nil {
			t.Errorf("items = %v, want nil", items)
		}
	})
}

func TestVersionString(t *testing.T) {
	v := versionString()
	if v == "" {
		t.Fatal("version string is empty")
	}
	if strings.ContainsAny(v, "\n\r") {
		t.Errorf("version string contains newline: %q", v)
	}
	if !strings.HasPrefix(v, strings.TrimSpace(version)) {
		t.Errorf("version string %q does not start with embedded version", v)
	}
}
