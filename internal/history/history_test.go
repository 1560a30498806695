package history

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/youruser/cochat/internal/llm"
)

func TestRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chats")
	turns := []llm.Turn{
		{Role: llm.RoleUser, Content: "how do I sort a slice?"},
		{Role: llm.RoleAssistant, Content: "Use sort.Slice."},
		{Role: llm.RoleUser, Content: "and stable?"},
	}

	var store Store
	if err := store.WriteAll(dir, "work", turns); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	loaded, err := store.ReadAll(dir, "work")
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(loaded) != len(turns) {
		t.Fatalf("len(loaded) = %d, want %d", len(loaded), len(turns))
	}
	for i := range turns {
		if loaded[i] != turns[i] {
			t.Errorf("loaded[%d] = %+v, want %+v", i, loaded[i], turns[i])
		}
	}
}

func TestReadAllMissing(t *testing.T) {
	var store Store
	_, err := store.ReadAll(t.TempDir(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestWriteAllEmptyHistory(t *testing.T) {
	dir := t.TempDir()
	var store Store

	if err := store.WriteAll(dir, "empty", nil); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	loaded, err := store.ReadAll(dir, "empty")
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("len(loaded) = %d, want 0", len(loaded))
	}
}
