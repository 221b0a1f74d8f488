// Package provider wraps the Gemini SDK behind the transport interface the
// conversation core is built against.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Stream yields response fragments from a streaming generation request.
// Next returns iterator.Done once the stream is exhausted.
type Stream interface {
	Next() (*genai.GenerateContentResponse, error)
}

// Transport is the provider surface the core depends on. The model is passed
// on every call so that callers can live-query configuration; implementations
// must not cache it across calls. Errors are returned verbatim.
type Transport interface {
	GenerateContent(ctx context.Context, model string, history []*genai.Content, parts ...genai.Part) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, history []*genai.Content, parts ...genai.Part) Stream
	CountTokens(ctx context.Context, model string, contents []*genai.Content) (int32, error)
	EmbedBatch(ctx context.Context, model string, texts []string) (*genai.BatchEmbedContentsResponse, error)
}

// Gemini implements Transport on top of the official Gemini client.
type Gemini struct {
	client *genai.Client
}

func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func (g *Gemini) generative(model string) *genai.GenerativeModel {
	m := g.client.GenerativeModel(model)
	m.SetTemperature(0.3)
	m.SetTopP(0.95)
	return m
}

func (g *Gemini) GenerateContent(ctx context.Context, model string, history []*genai.Content, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	cs := g.generative(model).StartChat()
	cs.History = history
	return cs.SendMessage(ctx, parts...)
}

func (g *Gemini) GenerateContentStream(ctx context.Context, model string, history []*genai.Content, parts ...genai.Part) Stream {
	cs := g.generative(model).StartChat()
	cs.History = history
	return cs.SendMessageStream(ctx, parts...)
}

// CountTokens counts the whole history by flattening it into parts. Roles do
// not affect the count.
func (g *Gemini) CountTokens(ctx context.Context, model string, contents []*genai.Content) (int32, error) {
	var parts []genai.Part
	for _, content := range contents {
		parts = append(parts, content.Parts...)
	}
	if len(parts) == 0 {
		return 0, nil
	}

	resp, err := g.generative(model).CountTokens(ctx, parts...)
	if err != nil {
		return 0, err
	}
	return resp.TotalTokens, nil
}

func (g *Gemini) EmbedBatch(ctx context.Context, model string, texts []string) (*genai.BatchEmbedContentsResponse, error) {
	em := g.client.EmbeddingModel(model)
	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}
	return em.BatchEmbedContents(ctx, batch)
}

// IsOverloaded reports whether err is a provider overload/quota signal
// (HTTP 429 or RESOURCE_EXHAUSTED).
func IsOverloaded(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
