package conversation

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"

	"confab/internal/chat"
	"confab/internal/config"
	"confab/internal/provider"
)

// maxTurnsCeiling bounds one SendMessageStream invocation. A caller-supplied
// budget above the ceiling is clamped; the ceiling always wins.
const maxTurnsCeiling = 100

const continuePrompt = "Please continue."

// TurnRecorder persists completed model turns for later semantic recall.
type TurnRecorder interface {
	Record(ctx context.Context, id, text string, metadata map[string]string) error
}

// Loop repeatedly drives turns, consulting the next-speaker oracle after each
// one, until the oracle hands control back to the user, a tool call needs
// resolving, the turn ceiling is hit, or the caller cancels.
type Loop struct {
	cfg       *config.Config
	transport provider.Transport
	checker   NextSpeakerChecker
	fallback  *provider.FallbackManager
	recorder  TurnRecorder

	mu       sync.Mutex
	session  *chat.Session
	lastTurn *Turn
}

// Option configures optional Loop collaborators.
type Option func(*Loop)

// WithNextSpeakerChecker replaces the default oracle.
func WithNextSpeakerChecker(checker NextSpeakerChecker) Option {
	return func(l *Loop) { l.checker = checker }
}

// WithTurnRecorder enables semantic-memory recording of completed turns.
func WithTurnRecorder(recorder TurnRecorder) Option {
	return func(l *Loop) { l.recorder = recorder }
}

func NewLoop(cfg *config.Config, transport provider.Transport, opts ...Option) *Loop {
	l := &Loop{
		cfg:       cfg,
		transport: transport,
		fallback:  provider.NewFallbackManager(cfg),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.checker == nil {
		l.checker = NewNextSpeakerChecker(transport, cfg)
	}
	l.session = chat.NewSession(transport, cfg, initialHistory())
	return l
}

// initialHistory seeds every new session with the environment preamble and
// the model's acknowledgment.
func initialHistory() []*genai.Content {
	cwd, _ := os.Getwd()
	preamble := fmt.Sprintf(
		"Context for this session:\n  Today's date: %s\n  Operating system: %s\n  Working directory: %s",
		time.Now().Format("Monday, January 2, 2006"), runtime.GOOS, cwd,
	)
	return []*genai.Content{
		{Role: "user", Parts: []genai.Part{genai.Text(preamble)}},
		{Role: "model", Parts: []genai.Part{genai.Text("Got it. Thanks for the context.")}},
	}
}

// Session returns the current chat session. Compression and reset replace it
// wholesale; callers must re-fetch rather than hold the pointer.
func (l *Loop) Session() *chat.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// LastTurn returns the most recently completed (or in-flight) turn. Read it
// after the event channel from SendMessageStream has closed.
func (l *Loop) LastTurn() *Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastTurn
}

// ResetChat discards everything appended since construction and installs a
// brand-new session carrying only the baseline history.
func (l *Loop) ResetChat() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = l.session.Reset()
}

func (l *Loop) replaceSession(session *chat.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = session
}

func (l *Loop) setLastTurn(turn *Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastTurn = turn
}

// SendMessageStream submits parts as the user's message and returns the lazy
// event sequence of the resulting turns. The channel closes when control
// returns to the caller: the oracle picked the user, a tool call is pending,
// the turn ceiling was reached, an error ended the turn, or ctx was canceled.
func (l *Loop) SendMessageStream(ctx context.Context, parts ...genai.Part) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		l.run(ctx, events, parts)
	}()
	return events
}

func (l *Loop) run(ctx context.Context, events chan<- Event, parts []genai.Part) {
	maxTurns := l.cfg.MaxTurns
	if maxTurns <= 0 || maxTurns > maxTurnsCeiling {
		maxTurns = maxTurnsCeiling
	}

	next := parts
	for turnCount := 0; ; turnCount++ {
		if turnCount >= maxTurns {
			emit(ctx, events, Event{Type: EventMaxTurns})
			return
		}
		if ctx.Err() != nil {
			return
		}

		if result, err := l.TryCompress(ctx, false); err != nil {
			// Compression failure is not fatal; the turn proceeds on the
			// uncompressed history.
			log.Printf("History compression failed: %v", err)
		} else if result != nil {
			if !emit(ctx, events, Event{Type: EventCompressed, Compressed: result}) {
				return
			}
		}

		turn := NewTurn(l.Session(), l.fallback)
		l.setLastTurn(turn)

		for ev := range turn.Run(ctx, next...) {
			if !emit(ctx, events, ev) {
				return
			}
		}

		if ctx.Err() != nil || turn.Err() != nil {
			return
		}
		if len(turn.PendingToolCalls()) > 0 {
			// Tool resolution happens outside this core.
			return
		}

		l.recordTurn(ctx)

		verdict, err := l.checker.Check(ctx, l.Session().History())
		if err != nil || verdict == nil || verdict.NextSpeaker != "model" {
			return
		}
		next = []genai.Part{genai.Text(continuePrompt)}
	}
}

// recordTurn stores the model's latest reply in semantic memory, if a
// recorder is attached.
func (l *Loop) recordTurn(ctx context.Context) {
	if l.recorder == nil {
		return
	}

	history := l.Session().History()
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != "model" {
			continue
		}
		text := contentText(history[i])
		if text == "" {
			return
		}
		err := l.recorder.Record(ctx, uuid.NewString(), text, map[string]string{
			"model": l.cfg.GetModel(),
			"time":  time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			log.Printf("Failed to record turn in memory: %v", err)
		}
		return
	}
}

func contentText(content *genai.Content) string {
	var out string
	for _, part := range content.Parts {
		if text, ok := part.(genai.Text); ok {
			out += string(text)
		}
	}
	return out
}
