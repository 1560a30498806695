package history

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/youruser/cochat/internal/llm"
)

var ErrNotFound = errors.New("history file not found")

// Store persists conversations as pretty-printed JSON files, one per name.
type Store struct{}

func filePath(dir, name string) string {
	return filepath.Join(dir, name+".json")
}

// WriteAll saves a turn sequence under name in dir, creating dir if needed.
func (Store) WriteAll(dir, name string, turns []llm.Turn) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filePath(dir, name), data, 0644)
}

// ReadAll restores the turn sequence saved under name in dir.
func (Store) ReadAll(dir, name string) ([]llm.Turn, error) {
	data, err := os.ReadFile(filePath(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var turns []llm.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}
