package conversation

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"confab/internal/config"
	"confab/internal/extract"
	"confab/internal/provider"
)

const nextSpeakerPrompt = `Analyze *only* the content and structure of your immediately preceding response (your last turn in the conversation history). Based *strictly* on that response, determine who should logically speak next: the 'user' or the 'model' (you).

Decision rules (apply in order):
1. If you stated you would perform a next step or action immediately (e.g. "Next, I will...", "Now I'll process..."), then the 'model' should speak next.
2. If you asked the user a direct question requiring an answer, then the 'user' should speak next.
3. Otherwise, if your response was a complete thought or answer, then the 'user' should speak next.

Return ONLY a valid JSON object with these fields:
{"reasoning": "brief explanation", "next_speaker": "user"|"model"}`

// SpeakerVerdict is the oracle's decision about who should speak next. It is
// consumed immediately and never persisted.
type SpeakerVerdict struct {
	Reasoning   string `json:"reasoning"`
	NextSpeaker string `json:"next_speaker"`
}

// NextSpeakerChecker decides whether the model should continue unprompted. A
// nil verdict (with nil error) means no decision could be made and the loop
// should hand control back to the user.
type NextSpeakerChecker interface {
	Check(ctx context.Context, history []*genai.Content) (*SpeakerVerdict, error)
}

type geminiSpeakerChecker struct {
	transport provider.Transport
	cfg       *config.Config
}

// NewNextSpeakerChecker returns the default oracle, which asks the configured
// model to judge its own previous turn.
func NewNextSpeakerChecker(transport provider.Transport, cfg *config.Config) NextSpeakerChecker {
	return &geminiSpeakerChecker{transport: transport, cfg: cfg}
}

func (c *geminiSpeakerChecker) Check(ctx context.Context, history []*genai.Content) (*SpeakerVerdict, error) {
	if len(history) == 0 {
		return nil, nil
	}

	last := history[len(history)-1]
	if last.Role != "model" {
		// Nothing of the model's to judge; the user speaks next.
		return nil, nil
	}

	resp, err := c.transport.GenerateContent(ctx, c.cfg.GetModel(), history, genai.Text(nextSpeakerPrompt))
	if err != nil {
		// Oracle failures are not fatal to the loop; fall back to the user.
		log.Printf("Next-speaker check failed: %v", err)
		return nil, nil
	}

	raw, err := extract.JSON(responseText(resp))
	if err != nil {
		log.Printf("Next-speaker check returned no parseable verdict: %v", err)
		return nil, nil
	}

	var verdict SpeakerVerdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		log.Printf("Next-speaker verdict malformed: %v", err)
		return nil, nil
	}
	if verdict.NextSpeaker != "user" && verdict.NextSpeaker != "model" {
		log.Printf("Next-speaker verdict has unknown speaker %q", verdict.NextSpeaker)
		return nil, nil
	}
	return &verdict, nil
}

// responseText concatenates the text parts of every candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
	}
	return text.String()
}
