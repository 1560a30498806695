package main

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/youruser/cochat/internal/auth"
	"github.com/youruser/cochat/internal/config"
	"github.com/youruser/cochat/internal/history"
	"github.com/youruser/cochat/internal/llm"
	"github.com/youruser/cochat/internal/logging"
	"github.com/youruser/cochat/internal/transport"
)

//go:embed system_prompt.txt
var defaultSystemPrompt string

//go:embed version.txt
var version string

// buildCommit is set via -ldflags or falls back to VCS info from debug.ReadBuildInfo.
var buildCommit string

var (
	session *llm.Session
	log     = logging.Get()

	respondMu sync.Mutex
	configMu  sync.Mutex
)

// getBuildCommit returns the short commit hash, resolving from VCS build info if needed.
func getBuildCommit() string {
	if buildCommit != "" {
		return buildCommit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
			return setting.Value[:7]
		}
	}
	return ""
}

func versionString() string {
	v := strings.TrimSpace(version)
	if commit := getBuildCommit(); commit != "" {
		return v + " (" + commit + ")"
	}
	return v
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v":
			fmt.Printf("cochat %s\n", versionString())
			return
		}
	}

	defer log.Close()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		handleRequest(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			respond("", map[string]any{
				"type":    "error",
				"message": "Request too large (max 1MB). Reduce context size or split the request.",
			})
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "stdin error: %v\n", err)
		os.Exit(1)
	}
}

// ensureSession loads config and wires the collaborators lazily on first use.
func ensureSession() error {
	configMu.Lock()
	defer configMu.Unlock()

	if session != nil {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	httpClient, err := transport.NewClient(cfg.Proxy, *cfg.Insecure, transport.DefaultTimeout)
	if err != nil {
		return err
	}

	session = llm.NewSession(llm.Options{
		Auth:           auth.New(cfg.Token, cfg.TokenURL, httpClient),
		HTTP:           httpClient,
		Store:          history.Store{},
		CompletionsURL: cfg.CompletionsURL,
		ModelsURL:      cfg.ModelsURL,
		EmbeddingsURL:  cfg.EmbeddingsURL,
		DefaultModel:   cfg.DefaultModel,
		Temperature:    *cfg.Temperature,
	})
	return nil
}

func respond(reqID string, payload map[string]any) {
	if reqID != "" {
		payload["id"] = reqID
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error("Failed to marshal response: %v", err)
		return
	}
	respondMu.Lock()
	defer respondMu.Unlock()
	os.Stdout.Write(data)
	os.Stdout.Write([]byte("\n"))
}

func errorResponse(err error) map[string]any {
	return map[string]any{"type": "error", "message": err.Error()}
}

func handleRequest(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	var req map[string]any
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		respond("", map[string]any{"type": "error", "message": "Invalid JSON request"})
		return
	}

	reqID, _ := req["id"].(string)
	action, _ := req["action"].(string)
	log.Debug("Request: action=%s id=%s", action, reqID)

	switch action {
	case "ask":
		// Asks run in their own goroutine so cancel/ask requests keep
		// flowing; a newer ask silently supersedes the running one.
		go handleAsk(reqID, req)
	case "cancel":
		respond(reqID, map[string]any{"type": "canceled", "was_running": session != nil && session.Stop()})
	case "reset":
		wasRunning := false
		if session != nil {
			wasRunning = session.Reset()
		}
		respond(reqID, map[string]any{"type": "reset", "was_running": wasRunning})
	case "running":
		respond(reqID, map[string]any{"type": "running", "running": session != nil && session.Running()})
	case "save":
		handleSave(reqID, req)
	case "load":
		handleLoad(reqID, req)
	case "models":
		handleModels(reqID)
	case "embed":
		handleEmbed(reqID, req)
	case "token_estimate":
		handleTokenEstimate(reqID, req)
	case "version":
		respond(reqID, map[string]any{"type": "version", "version": versionString()})
	default:
		respond(reqID, map[string]any{"type": "error", "message": "Unknown action: " + action})
	}
}

func askOptionsFromRequest(req map[string]any) llm.AskOptions {
	opts := llm.AskOptions{SystemPrompt: defaultSystemPrompt}

	opts.Selection, _ = req["selection"].(string)
	opts.Filename, _ = req["filename"].(string)
	opts.Filetype, _ = req["filetype"].(string)
	if v, ok := req["start_row"].(float64); ok {
		opts.StartRow = int(v)
	}
	if v, ok := req["end_row"].(float64); ok {
		opts.EndRow = int(v)
	}
	if v, ok := req["system_prompt"].(string); ok && v != "" {
		opts.SystemPrompt = v
	}
	opts.Model, _ = req["model"].(string)
	if v, ok := req["temperature"].(float64); ok {
		opts.Temperature = &v
	}
	opts.Embeddings = embeddingItemsFromRequest(req)
	return opts
}

func embeddingItemsFromRequest(req map[string]any) []llm.EmbeddingItem {
	raw, ok := req["embeddings"].([]any)
	if !ok {
		return nil
	}
	var items []llm.EmbeddingItem
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item := llm.EmbeddingItem{}
		item.Filename, _ = m["filename"].(string)
		item.Filetype, _ = m["filetype"].(string)
		item.Prompt, _ = m["prompt"].(string)
		item.Content, _ = m["content"].(string)
		items = append(items, item)
	}
	return items
}

func handleAsk(reqID string, req map[string]any) {
	content, _ := req["content"].(string)
	if content == "" {
		respond(reqID, map[string]any{"type": "error", "message": "Missing required field: content"})
		return
	}

	if err := ensureSession(); err != nil {
		respond(reqID, errorResponse(err))
		return
	}

	opts := askOptionsFromRequest(req)
	opts.OnProgress = func(delta string) {
		respond(reqID, map[string]any{"type": "chunk", "content": delta})
	}

	result, err := session.Ask(context.Background(), content, opts)
	if err != nil {
		respond(reqID, errorResponse(err))
		return
	}
	if result == nil {
		respond(reqID, map[string]any{"type": "aborted"})
		return
	}

	respond(reqID, map[string]any{
		"type":        "done",
		"content":     result.Text,
		"tokens_used": result.TokensUsed,
		"max_tokens":  result.MaxTokens,
	})
}

func handleSave(reqID string, req map[string]any) {
	name, _ := req["name"].(string)
	path, _ := req["path"].(string)
	if name == "" || path == "" {
		respond(reqID, map[string]any{"type": "error", "message": "Missing required field: name or path"})
		return
	}
	if err := ensureSession(); err != nil {
		respond(reqID, errorResponse(err))
		return
	}
	if err := session.Save(name, path); err != nil {
		respond(reqID, errorResponse(err))
		return
	}
	respond(reqID, map[string]any{"type": "saved", "name": name})
}

func handleLoad(reqID string, req map[string]any) {
	name, _ := req["name"].(string)
	path, _ := req["path"].(string)
	if name == "" || path == "" {
		respond(reqID, map[string]any{"type": "error", "message": "Missing required field: name or path"})
		return
	}
	if err := ensureSession(); err != nil {
		respond(reqID, errorResponse(err))
		return
	}
	turns, err := session.Load(name, path)
	if err != nil {
		respond(reqID, errorResponse(err))
		return
	}
	respond(reqID, map[string]any{"type": "loaded", "name": name, "history": turns})
}

func handleModels(reqID string) {
	if err := ensureSession(); err != nil {
		respond(reqID, errorResponse(err))
		return
	}
	models, err := session.Models(context.Background())
	if err != nil {
		respond(reqID, errorResponse(err))
		return
	}
	respond(reqID, map[string]any{"type": "models", "models": models})
}

func handleEmbed(reqID string, req map[string]any) {
	items := embeddingItemsFromRequest(req)
	if len(items) == 0 {
		respond(reqID, map[string]any{"type": "error", "message": "Missing or empty 'embeddings' array"})
		return
	}
	if err := ensureSession(); err != nil {
		respond(reqID, errorResponse(err))
		return
	}

	opts := llm.EmbedOptions{}
	opts.Model, _ = req["model"].(string)
	if v, ok := req["chunk_size"].(float64); ok {
		opts.ChunkSize = int(v)
	}

	embedded, err := session.Embed(context.Background(), items, opts)
	if err != nil {
		respond(reqID, errorResponse(err))
		return
	}
	respond(reqID, map[string]any{"type": "embedded", "items": embedded})
}

func handleTokenEstimate(reqID string, req map[string]any) {
	if err := ensureSession(); err != nil {
		respond(reqID, errorResponse(err))
		return
	}
	content, _ := req["content"].(string)
	estimate, err := session.EstimateTokens(content, askOptionsFromRequest(req))
	if err != nil {
		respond(reqID, errorResponse(err))
		return
	}
	respond(reqID, map[string]any{
		"type":          "token_estimate",
		"total":         estimate.Total,
		"history":       estimate.History,
		"files":         estimate.Files,
		"selection":     estimate.Selection,
		"system_prompt": estimate.SystemPrompt,
		"prompt":        estimate.Prompt,
	})
}
