// Package chat owns the ordered conversation history and message dispatch.
package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"

	"confab/internal/config"
	"confab/internal/provider"
)

// Session is the append-only log of conversation turns. It issues requests to
// the provider with whatever model is configured at the moment of dispatch.
// All mutating operations on one session are serialized behind its mutex; a
// session executes at most one outstanding turn at a time.
type Session struct {
	transport provider.Transport
	cfg       *config.Config

	mu       sync.Mutex
	history  []*genai.Content
	baseline []*genai.Content
}

// NewSession starts a session whose history is seeded with initial. The
// initial entries are also kept as the baseline that Reset restores.
func NewSession(transport provider.Transport, cfg *config.Config, initial []*genai.Content) *Session {
	baseline := make([]*genai.Content, len(initial))
	copy(baseline, initial)

	history := make([]*genai.Content, len(initial))
	copy(history, initial)

	return &Session{
		transport: transport,
		cfg:       cfg,
		history:   history,
		baseline:  baseline,
	}
}

// History returns a snapshot of the current history. Later appends or
// replacements do not affect the returned slice.
func (s *Session) History() []*genai.Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]*genai.Content, len(s.history))
	copy(snapshot, s.history)
	return snapshot
}

// AddHistory appends an entry without validating role alternation.
func (s *Session) AddHistory(content *genai.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, content)
}

// SetHistory replaces the history wholesale. Holders of earlier History
// snapshots are unaffected.
func (s *Session) SetHistory(history []*genai.Content) {
	replacement := make([]*genai.Content, len(history))
	copy(replacement, history)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = replacement
}

// Reset returns a brand-new session seeded with the baseline history this
// session was constructed with. The receiver should be discarded; the new
// session is a distinct identity.
func (s *Session) Reset() *Session {
	s.mu.Lock()
	baseline := make([]*genai.Content, len(s.baseline))
	copy(baseline, s.baseline)
	s.mu.Unlock()

	return NewSession(s.transport, s.cfg, baseline)
}

// SendMessage performs one blocking request/response cycle. On success the
// outgoing message and the model's reply are appended to history in that
// order; on error the history is left untouched.
func (s *Session) SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.transport.GenerateContent(ctx, s.cfg.GetModel(), s.history, parts...)
	if err != nil {
		return nil, err
	}

	s.history = append(s.history, &genai.Content{Role: "user", Parts: parts})
	if reply := responseContent(resp); reply != nil {
		s.history = append(s.history, reply)
	}
	return resp, nil
}

// SendMessageStream opens a streaming request. History is committed only when
// the returned stream reaches its end; an aborted or failed stream leaves the
// session as it was.
func (s *Session) SendMessageStream(ctx context.Context, parts ...genai.Part) *MessageStream {
	s.mu.Lock()
	history := make([]*genai.Content, len(s.history))
	copy(history, s.history)
	model := s.cfg.GetModel()
	s.mu.Unlock()

	return &MessageStream{
		inner:   s.transport.GenerateContentStream(ctx, model, history, parts...),
		session: s,
		user:    &genai.Content{Role: "user", Parts: parts},
	}
}

// MessageStream aggregates streamed fragments and commits the completed turn
// to its session. It is finite and non-restartable.
type MessageStream struct {
	inner   provider.Stream
	session *Session
	user    *genai.Content

	aggregated []genai.Part
	done       bool
}

// Next returns the next response fragment, or iterator.Done after the final
// one. Reaching iterator.Done appends the user message and the aggregated
// model reply to the session history.
func (m *MessageStream) Next() (*genai.GenerateContentResponse, error) {
	if m.done {
		return nil, iterator.Done
	}

	resp, err := m.inner.Next()
	if errors.Is(err, iterator.Done) {
		m.done = true
		m.session.commitTurn(m.user, m.aggregated)
		return nil, iterator.Done
	}
	if err != nil {
		m.done = true
		return nil, err
	}

	if fragment := responseContent(resp); fragment != nil {
		m.aggregated = append(m.aggregated, fragment.Parts...)
	}
	return resp, nil
}

func (s *Session) commitTurn(user *genai.Content, reply []genai.Part) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, user)
	if len(reply) > 0 {
		s.history = append(s.history, &genai.Content{Role: "model", Parts: reply})
	}
}

// responseContent extracts the first candidate's content, if any.
func responseContent(resp *genai.GenerateContentResponse) *genai.Content {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand.Content != nil && len(cand.Content.Parts) > 0 {
			return &genai.Content{Role: "model", Parts: cand.Content.Parts}
		}
	}
	return nil
}
