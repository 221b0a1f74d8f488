package chat

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func textContent(role, text string) *genai.Content {
	return &genai.Content{Role: role, Parts: []genai.Part{genai.Text(text)}}
}

func TestSplitAtFraction_InvalidFraction(t *testing.T) {
	history := []*genai.Content{textContent("user", "hello")}

	for _, f := range []float64{0, 1, -0.5, 1.5} {
		if _, err := SplitAtFraction(history, f); !errors.Is(err, ErrInvalidFraction) {
			t.Errorf("SplitAtFraction(history, %v): expected ErrInvalidFraction, got %v", f, err)
		}
	}
}

func TestSplitAtFraction_DegenerateHistories(t *testing.T) {
	if idx, err := SplitAtFraction(nil, 0.5); err != nil || idx != 0 {
		t.Errorf("Expected (0, nil) for empty history, got (%d, %v)", idx, err)
	}

	single := []*genai.Content{textContent("user", "only entry")}
	if idx, err := SplitAtFraction(single, 0.5); err != nil || idx != 0 {
		t.Errorf("Expected (0, nil) for single entry, got (%d, %v)", idx, err)
	}
}

func TestSplitAtFraction_ThresholdProperty(t *testing.T) {
	history := []*genai.Content{
		textContent("user", strings.Repeat("a", 100)),
		textContent("model", strings.Repeat("b", 100)),
		textContent("user", strings.Repeat("c", 100)),
		textContent("model", strings.Repeat("d", 100)),
		textContent("user", strings.Repeat("e", 100)),
	}

	total := 0
	weights := make([]int, len(history))
	for i, c := range history {
		weights[i] = Weight(c)
		total += weights[i]
	}

	for _, f := range []float64{0.1, 0.3, 0.5, 0.7, 0.9, 0.999} {
		idx, err := SplitAtFraction(history, f)
		if err != nil {
			t.Fatalf("SplitAtFraction(history, %v) returned error: %v", f, err)
		}

		target := f * float64(total)
		sum := 0
		for i := 0; i <= idx; i++ {
			sum += weights[i]
		}
		if float64(sum) < target {
			t.Errorf("f=%v: cumulative weight through index %d is %d, below target %v", f, idx, sum, target)
		}
		if idx > 0 {
			if float64(sum-weights[idx]) >= target {
				t.Errorf("f=%v: index %d is not the first crossing (previous cumulative already %d)", f, idx, sum-weights[idx])
			}
		}
	}
}

func TestSplitAtFraction_ZeroWeightEntriesStillCount(t *testing.T) {
	// The blob entry contributes no weight but must still advance the index.
	history := []*genai.Content{
		textContent("user", strings.Repeat("a", 200)),
		{Role: "user", Parts: []genai.Part{genai.Blob{MIMEType: "image/png", Data: []byte{1, 2, 3}}}},
		textContent("model", strings.Repeat("b", 200)),
	}

	idx, err := SplitAtFraction(history, 0.9)
	if err != nil {
		t.Fatalf("SplitAtFraction returned error: %v", err)
	}
	if idx != 2 {
		t.Errorf("Expected index 2 (walk passes the zero-weight entry), got %d", idx)
	}
}

func TestContentWeight(t *testing.T) {
	if w := contentWeight(nil); w != 0 {
		t.Errorf("Expected 0 for nil content, got %d", w)
	}

	blobOnly := &genai.Content{Role: "user", Parts: []genai.Part{genai.Blob{MIMEType: "image/png", Data: []byte{1}}}}
	if w := contentWeight(blobOnly); w != 0 {
		t.Errorf("Expected 0 for non-text parts, got %d", w)
	}

	longer := contentWeight(textContent("user", strings.Repeat("x", 50)))
	shorter := contentWeight(textContent("user", "x"))
	if longer <= shorter {
		t.Errorf("Expected weight to grow with text size, got %d <= %d", longer, shorter)
	}
}
