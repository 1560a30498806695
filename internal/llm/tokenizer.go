package llm

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// DefaultTokenizer is a reasonable approximation for models the catalog
// doesn't describe.
const DefaultTokenizer = "cl100k_base"

var (
	codecMu sync.Mutex
	codecs  = map[string]tokenizer.Codec{}
)

// LoadTokenizer makes the named encoding available for counting. It must
// succeed before CountTokens for that encoding is trustworthy.
func LoadTokenizer(id string) error {
	codecMu.Lock()
	defer codecMu.Unlock()

	if _, ok := codecs[id]; ok {
		return nil
	}

	codec, err := tokenizer.Get(tokenizer.Encoding(id))
	if err != nil {
		return fmt.Errorf("load tokenizer %q: %w", id, err)
	}
	codecs[id] = codec
	return nil
}

// CountTokens returns the token count of text under the named encoding,
// or 0 if the encoding isn't loaded or the text fails to encode.
func CountTokens(id, text string) int {
	codecMu.Lock()
	codec, ok := codecs[id]
	codecMu.Unlock()
	if !ok {
		return 0
	}

	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}
