// Package tokens counts model tokens for prompt-shaping plugins.
package tokens

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"elicate/internal/logger"
	"elicate/pkg/chattypes"
)

// MessageOverhead is the per-message framing cost added by chat completion APIs.
const MessageOverhead = 4

// Counter reports how many tokens a piece of text occupies.
type Counter interface {
	Count(text string) int
}

// CountMessages sums the token cost of msgs, including framing overhead.
func CountMessages(c Counter, msgs []chattypes.Message) int {
	total := 0
	for _, m := range msgs {
		total += MessageOverhead + c.Count(m.Content)
	}
	return total
}

// Estimator approximates token counts at four bytes per token. It needs no
// vocabulary data and is used when no encoding is available.
type Estimator struct{}

// Count returns the estimated token count of text.
func (Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Tiktoken counts tokens with a BPE encoding such as cl100k_base.
type Tiktoken struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding. Loading may fetch the vocabulary on
// first use, so hosts call it during startup rather than inside a hook.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Count returns the exact token count of text.
func (t *Tiktoken) Count(text string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// NewCounter returns a tiktoken counter for encoding, falling back to the
// Estimator when the encoding is empty or cannot be loaded.
func NewCounter(encoding string) Counter {
	if encoding == "" {
		return Estimator{}
	}
	t, err := NewTiktoken(encoding)
	if err != nil {
		logger.Warn("Falling back to estimated token counts", "encoding", encoding, "error", err)
		return Estimator{}
	}
	return t
}
