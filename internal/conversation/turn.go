// Package conversation drives multi-turn dialogue with the model: single
// turns, the autonomous continuation loop, and history compression.
package conversation

import (
	"context"
	"errors"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"confab/internal/chat"
	"confab/internal/provider"
)

type EventType int

const (
	// EventContent carries a fragment of streamed model text.
	EventContent EventType = iota
	// EventToolCallRequest reports a tool call the model wants resolved.
	EventToolCallRequest
	// EventError reports a provider failure; the turn ends after it.
	EventError
	// EventCompressed reports that history was compressed before the turn.
	EventCompressed
	// EventMaxTurns reports that the loop hit its turn ceiling. Not an error.
	EventMaxTurns
)

// ToolCallRequest identifies one tool call requested by the model and not yet
// resolved.
type ToolCallRequest struct {
	ID   string
	Name string
	Args map[string]any
}

// Event is one element of the lazy event sequence produced by a turn or by
// the conversation loop.
type Event struct {
	Type       EventType
	Content    string
	ToolCall   *ToolCallRequest
	Compressed *CompressionResult
	Err        error
}

// Turn drives exactly one request/response cycle and tracks the tool calls
// the model requested that remain unresolved.
type Turn struct {
	session  *chat.Session
	fallback *provider.FallbackManager

	mu      sync.Mutex
	pending []ToolCallRequest
	err     error
}

func NewTurn(session *chat.Session, fallback *provider.FallbackManager) *Turn {
	return &Turn{session: session, fallback: fallback}
}

// Run streams the model's response as events. The channel closes when the
// response ends, an error occurs, or ctx is canceled; no events are emitted
// after cancellation is observed, and events are never replayed.
func (t *Turn) Run(ctx context.Context, parts ...genai.Part) <-chan Event {
	events := make(chan Event, 16)

	go func() {
		defer close(events)

		stream := t.session.SendMessageStream(ctx, parts...)
		for {
			if ctx.Err() != nil {
				return
			}

			resp, err := stream.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				if provider.IsOverloaded(err) && t.fallback != nil {
					t.fallback.HandleOverload()
				}
				t.setErr(err)
				emit(ctx, events, Event{Type: EventError, Err: err})
				return
			}

			if !t.forwardFragment(ctx, events, resp) {
				return
			}
		}
	}()

	return events
}

// forwardFragment emits events for the first candidate's parts. Returns false
// once the consumer is gone or the context is canceled.
func (t *Turn) forwardFragment(ctx context.Context, events chan<- Event, resp *genai.GenerateContentResponse) bool {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			switch p := part.(type) {
			case genai.Text:
				if !emit(ctx, events, Event{Type: EventContent, Content: string(p)}) {
					return false
				}
			case genai.FunctionCall:
				req := ToolCallRequest{ID: uuid.NewString(), Name: p.Name, Args: p.Args}
				t.addPending(req)
				if !emit(ctx, events, Event{Type: EventToolCallRequest, ToolCall: &req}) {
					return false
				}
			}
		}
		return true
	}
	return true
}

// PendingToolCalls returns the tool calls requested during this turn that
// the caller has not yet resolved.
func (t *Turn) PendingToolCalls() []ToolCallRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	pending := make([]ToolCallRequest, len(t.pending))
	copy(pending, t.pending)
	return pending
}

// Err returns the provider error that ended the turn, if any.
func (t *Turn) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Turn) addPending(req ToolCallRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, req)
}

func (t *Turn) setErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

// emit delivers an event unless the context has been canceled.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- ev:
		return true
	}
}
