package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"confab/internal/chat"
	"confab/internal/tokens"
)

// compressionTokenThreshold is the fraction of the model's token limit at
// which compression triggers on its own.
const compressionTokenThreshold = 0.7

// compressionPreserveFraction is the portion of history weight kept verbatim
// as the recent tail. Tunable; the serialized-size split is only a proxy for
// the provider's real token accounting.
const compressionPreserveFraction = 0.3

const summaryPrompt = `Summarize the conversation so far concisely, preserving the information needed to continue it: main topics, key decisions and conclusions, important facts, file or resource names mentioned, and any pending tasks or open questions. Write the summary as a briefing for yourself.

Conversation to summarize:
%s

Provide a concise summary:`

// CompressionResult reports the token counts before and after a compression
// pass. It is only produced when compression actually occurred.
type CompressionResult struct {
	OriginalTokenCount int32
	NewTokenCount      int32
}

// TryCompress replaces the older portion of history with a model-generated
// summary when the token count nears the model's limit, or unconditionally
// when force is set. It returns nil when the history was left untouched.
//
// Both token counts are taken against whatever model is configured at that
// moment; the two counts in one pass may observe different models if the
// configuration changed in between.
func (l *Loop) TryCompress(ctx context.Context, force bool) (*CompressionResult, error) {
	session := l.Session()
	history := session.History()
	if len(history) == 0 {
		return nil, nil
	}

	original, err := l.transport.CountTokens(ctx, l.cfg.GetModel(), history)
	if err != nil {
		return nil, fmt.Errorf("failed to count history tokens: %w", err)
	}

	if !force {
		limit := tokens.Limit(l.cfg.GetModel())
		if float64(original) < compressionTokenThreshold*float64(limit) {
			return nil, nil
		}
	}

	splitIdx, err := chat.SplitAtFraction(history, 1-compressionPreserveFraction)
	if err != nil {
		return nil, err
	}
	// Never cut between a function call and its response: the kept tail must
	// start on a user turn.
	for splitIdx < len(history) && history[splitIdx].Role != "user" {
		splitIdx++
	}

	toCompress := history[:splitIdx]
	toKeep := history[splitIdx:]
	if len(toCompress) == 0 {
		return nil, nil
	}

	summary, err := l.summarize(ctx, toCompress)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize history: %w", err)
	}

	replacement := make([]*genai.Content, 0, len(toKeep)+2)
	replacement = append(replacement,
		&genai.Content{Role: "user", Parts: []genai.Part{genai.Text(summary)}},
		&genai.Content{Role: "model", Parts: []genai.Part{genai.Text("Got it. Thanks for the additional context.")}},
	)
	replacement = append(replacement, toKeep...)

	fresh := chat.NewSession(l.transport, l.cfg, replacement)
	newCount, err := l.transport.CountTokens(ctx, l.cfg.GetModel(), fresh.History())
	if err != nil {
		return nil, fmt.Errorf("failed to count compressed history tokens: %w", err)
	}

	l.replaceSession(fresh)
	return &CompressionResult{OriginalTokenCount: original, NewTokenCount: newCount}, nil
}

func (l *Loop) summarize(ctx context.Context, history []*genai.Content) (string, error) {
	var transcript strings.Builder
	for _, content := range history {
		for _, part := range content.Parts {
			if text, ok := part.(genai.Text); ok {
				fmt.Fprintf(&transcript, "[%s]: %s\n", content.Role, text)
			}
		}
	}

	prompt := fmt.Sprintf(summaryPrompt, transcript.String())
	resp, err := l.transport.GenerateContent(ctx, l.cfg.GetModel(), nil, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(responseText(resp))
	if summary == "" {
		return "", fmt.Errorf("summarization returned empty text")
	}
	return summary, nil
}
