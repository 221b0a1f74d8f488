package chat

import (
	"encoding/json"
	"errors"

	"github.com/google/generative-ai-go/genai"
)

// ErrInvalidFraction is returned by SplitAtFraction for fractions outside the
// open interval (0, 1).
var ErrInvalidFraction = errors.New("fraction must be strictly between 0 and 1")

// WeightFunc maps a history entry to its contribution toward the token
// budget.
type WeightFunc func(*genai.Content) int

// Weight is the weight function used by SplitAtFraction. The default is a
// serialized-size proxy, not a real tokenizer; it is a package variable so
// the production token counter can replace it if the two ever disagree.
var Weight WeightFunc = contentWeight

// contentWeight is the serialized size of an entry's text parts. Non-text
// parts (inline data, reference blobs) weigh nothing, but the entry still
// occupies a position in the split walk.
func contentWeight(c *genai.Content) int {
	if c == nil {
		return 0
	}
	total := 0
	for _, part := range c.Parts {
		if text, ok := part.(genai.Text); ok {
			if b, err := json.Marshal(text); err == nil {
				total += len(b)
			}
		}
	}
	return total
}

// SplitAtFraction returns the index of the first entry at which the
// cumulative weight of history[0..index] reaches fraction of the total
// weight. The compressor summarizes everything before the returned index and
// keeps the rest verbatim.
func SplitAtFraction(history []*genai.Content, fraction float64) (int, error) {
	if fraction <= 0 || fraction >= 1 {
		return 0, ErrInvalidFraction
	}
	if len(history) <= 1 {
		return 0, nil
	}

	total := 0
	weights := make([]int, len(history))
	for i, content := range history {
		weights[i] = Weight(content)
		total += weights[i]
	}

	target := fraction * float64(total)
	sum := 0
	for i, w := range weights {
		sum += w
		if float64(sum) >= target {
			return i, nil
		}
	}
	return len(history) - 1, nil
}
