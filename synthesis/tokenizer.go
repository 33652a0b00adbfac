package synthesis

import (
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// TokenCounter estimates how many tokens a string consumes in the model's
// context window.
type TokenCounter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// heuristicCounter approximates four characters per token. Used when the
// tiktoken encoding cannot be loaded (e.g. no BPE data in an offline build).
type heuristicCounter struct{}

func (heuristicCounter) Count(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}

// NewTokenCounter returns a cl100k_base tiktoken counter, falling back to a
// character heuristic when the encoding is unavailable.
func NewTokenCounter(logger *zap.Logger) TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		if logger != nil {
			logger.Warn("tiktoken encoding unavailable, using heuristic counter", zap.Error(err))
		}
		return heuristicCounter{}
	}
	return &tiktokenCounter{enc: enc}
}
