package chunker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer measures text length in model tokens.
type Tokenizer interface {
	Count(text string) int
}

// TiktokenTokenizer counts tokens using a tiktoken BPE encoding.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken creates a tokenizer for the given encoding name
// (e.g. "cl100k_base").
func NewTiktoken(encoding string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer encoding %q: %w", encoding, err)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (t *TiktokenTokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
