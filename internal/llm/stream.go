package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// chunkKind tags the variants a protocol line decodes into. Each line is
// decoded exactly once, then matched by the consumer.
type chunkKind int

const (
	chunkEmpty chunkKind = iota // blank line, end sentinel, or nothing usable
	chunkDelta                  // incremental text
	chunkFull                   // complete message text (non-streaming shape)
	chunkError                  // explicit error payload
)

type streamChunk struct {
	kind  chunkKind
	text  string
	err   string
	usage *Usage
}

// decodeChunk strips the SSE framing and classifies one inbound line.
// A line that fails to parse as the expected structured form is an error.
func decodeChunk(line string) (streamChunk, error) {
	line = strings.TrimPrefix(line, "data: ")
	line = strings.TrimSpace(line)

	if line == "" || line == "[DONE]" {
		return streamChunk{kind: chunkEmpty}, nil
	}

	var parsed chatChunk
	if err := json.Unmarshal([]byte(line), &parsed); err != nil {
		return streamChunk{}, fmt.Errorf("%w: %v", ErrStreamParse, err)
	}

	if parsed.Error != nil {
		return streamChunk{kind: chunkError, err: parsed.Error.Message}, nil
	}

	chunk := streamChunk{kind: chunkEmpty, usage: parsed.Usage}
	if len(parsed.Choices) == 0 {
		return chunk, nil
	}

	choice := parsed.Choices[0]
	switch {
	case choice.Delta != nil && choice.Delta.Content != "":
		chunk.kind = chunkDelta
		chunk.text = choice.Delta.Content
	case choice.Message != nil && choice.Message.Content != "":
		chunk.kind = chunkFull
		chunk.text = choice.Message.Content
	}
	return chunk, nil
}

// Consumer states.
type streamState int

const (
	stateOpen streamState = iota
	stateAccumulating
	stateErrored
	stateAbandoned
)

// streamConsumer reduces an ordered sequence of protocol lines into the
// final completion text. It checks on every chunk whether its job is still
// the current one; a superseded stream stops accumulating immediately and
// its result is discarded without error.
type streamConsumer struct {
	state      streamState
	isCurrent  func() bool
	onProgress func(delta string)

	full      strings.Builder
	lastUsage *Usage
	termErr   error
}

func newStreamConsumer(isCurrent func() bool, onProgress func(string)) *streamConsumer {
	return &streamConsumer{
		state:      stateOpen,
		isCurrent:  isCurrent,
		onProgress: onProgress,
	}
}

// feed processes one inbound line. Terminal states swallow all further
// input; the transport is left to drain on its own.
func (c *streamConsumer) feed(line string) {
	if c.state == stateErrored || c.state == stateAbandoned {
		return
	}

	if !c.isCurrent() {
		log.Stream("abandoned", "")
		c.state = stateAbandoned
		return
	}

	chunk, err := decodeChunk(line)
	if err != nil {
		log.Error("Stream parse failure: %v", err)
		c.state = stateErrored
		c.termErr = err
		return
	}

	if chunk.usage != nil {
		c.lastUsage = chunk.usage
	}

	switch chunk.kind {
	case chunkEmpty:
		// Blank keep-alives and the end sentinel carry no transition;
		// completion is decided at stream close.
	case chunkError:
		log.Error("Stream error: %s", chunk.err)
		c.state = stateErrored
		c.termErr = fmt.Errorf("%w: %s", ErrStreamError, chunk.err)
	case chunkDelta, chunkFull:
		log.Stream("content", chunk.text)
		c.full.WriteString(chunk.text)
		if c.onProgress != nil {
			c.onProgress(chunk.text)
		}
		c.state = stateAccumulating
	}
}

// abandoned reports whether the stream was superseded mid-flight.
func (c *streamConsumer) abandoned() bool {
	return c.state == stateAbandoned
}

// finish resolves the consumer after the stream has closed. An abandoned
// stream yields no result and no error. An errored stream surfaces the
// captured error text. A clean stream with no accumulated text is an
// explicit failure rather than a silent empty success.
func (c *streamConsumer) finish() (string, *Usage, error) {
	switch c.state {
	case stateAbandoned:
		return "", nil, nil
	case stateErrored:
		return "", nil, c.termErr
	}

	text := c.full.String()
	if text == "" {
		return "", nil, ErrEmptyResponse
	}
	return text, c.lastUsage, nil
}
