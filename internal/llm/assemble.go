package llm

import (
	"fmt"
	"strings"
)

// fileHeader introduces the concatenated file blocks in the request. Its
// token cost is charged once by the planner.
const fileHeader = "The user is working with the following files:\n"

// RenderSelection renders the active editor selection as a fenced block.
// Returns "" when there is no selection.
func RenderSelection(selection, filename, filetype string, startRow, endRow int) string {
	if selection == "" {
		return ""
	}

	var b strings.Builder
	if filename != "" && startRow > 0 && endRow >= startRow {
		fmt.Fprintf(&b, "Active selection (lines %d-%d of %s):\n", startRow, endRow, filename)
	} else {
		b.WriteString("Active selection:\n")
	}
	fmt.Fprintf(&b, "```%s\n%s\n```", filetype, strings.TrimRight(selection, "\n"))
	return b.String()
}

// RenderFileBlocks groups embedding items by filename, preserving the order
// in which filenames first appear, and renders one fenced block per file.
func RenderFileBlocks(items []EmbeddingItem) []string {
	type group struct {
		filetype string
		contents []string
	}
	var order []string
	groups := map[string]*group{}

	for _, item := range items {
		if item.Content == "" {
			continue
		}
		g, ok := groups[item.Filename]
		if !ok {
			g = &group{filetype: item.Filetype}
			groups[item.Filename] = g
			order = append(order, item.Filename)
		}
		g.contents = append(g.contents, strings.TrimRight(item.Content, "\n"))
	}

	blocks := make([]string, 0, len(order))
	for _, name := range order {
		g := groups[name]
		blocks = append(blocks, fmt.Sprintf("File: %s\n```%s\n%s\n```",
			name, g.filetype, strings.Join(g.contents, "\n")))
	}
	return blocks
}

// BuildMessages produces the ordered message list for one ask: optional
// system prompt, kept history, file blocks, selection, then the new prompt,
// always last.
//
// The service attributes synthetic context (files, selection) to the system
// role on streaming requests but expects the user role on non-streaming
// ones. This is a quirk of the target protocol, not a semantic distinction.
func BuildMessages(history []Turn, prompt string, fileBlocks []string, selectionBlock, systemPrompt string, streaming bool) []Turn {
	contextRole := RoleSystem
	if !streaming {
		contextRole = RoleUser
	}

	messages := make([]Turn, 0, len(history)+4)
	if systemPrompt != "" {
		messages = append(messages, Turn{Role: RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, history...)
	if len(fileBlocks) > 0 {
		messages = append(messages, Turn{
			Role:    contextRole,
			Content: fileHeader + strings.Join(fileBlocks, "\n"),
		})
	}
	if selectionBlock != "" {
		messages = append(messages, Turn{Role: contextRole, Content: selectionBlock})
	}
	messages = append(messages, Turn{Role: RoleUser, Content: prompt})
	return messages
}

// BuildRequest wraps the message list in the wire shape the service expects
// for the given mode.
func BuildRequest(model string, temperature float64, streaming bool, messages []Turn) chatRequest {
	if !streaming {
		return chatRequest{
			Model:    model,
			Stream:   false,
			Messages: messages,
		}
	}
	return chatRequest{
		Model:       model,
		Messages:    messages,
		Stream:      true,
		Intent:      true,
		N:           1,
		TopP:        1,
		Temperature: &temperature,
	}
}

// SupportsStreaming reports whether a model accepts streamed completions.
// The o1 family rejects stream:true.
func SupportsStreaming(model string) bool {
	return !strings.HasPrefix(model, "o1")
}
