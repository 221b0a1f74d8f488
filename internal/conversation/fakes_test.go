package conversation

import (
	"context"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"

	"confab/internal/provider"
)

type fakeStream struct {
	resps []*genai.GenerateContentResponse
	err   error
	pos   int
}

func (f *fakeStream) Next() (*genai.GenerateContentResponse, error) {
	if f.pos >= len(f.resps) {
		if f.err != nil {
			return nil, f.err
		}
		return nil, iterator.Done
	}
	resp := f.resps[f.pos]
	f.pos++
	return resp, nil
}

type fakeTransport struct {
	mu sync.Mutex

	// streaming
	streamResps [][]*genai.GenerateContentResponse // per call; last entry repeats
	streamErr   error
	streamCalls int
	sentParts   [][]genai.Part

	// blocking generation (summaries, oracle)
	generateFn    func(model string, parts ...genai.Part) (*genai.GenerateContentResponse, error)
	generateCalls int

	// token counting
	countValues []int32 // per call; last entry repeats
	countErr    error
	countCalls  int
	countModels []string
}

func (f *fakeTransport) GenerateContent(_ context.Context, model string, history []*genai.Content, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	f.generateCalls++
	fn := f.generateFn
	f.mu.Unlock()

	if fn != nil {
		return fn(model, parts...)
	}
	return textResponse("ok"), nil
}

func (f *fakeTransport) GenerateContentStream(_ context.Context, model string, history []*genai.Content, parts ...genai.Part) provider.Stream {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := f.streamCalls
	f.streamCalls++
	f.sentParts = append(f.sentParts, parts)

	if f.streamErr != nil {
		return &fakeStream{err: f.streamErr}
	}
	if len(f.streamResps) == 0 {
		return &fakeStream{resps: []*genai.GenerateContentResponse{textResponse("ok")}}
	}
	if call >= len(f.streamResps) {
		call = len(f.streamResps) - 1
	}
	return &fakeStream{resps: f.streamResps[call]}
}

func (f *fakeTransport) CountTokens(_ context.Context, model string, contents []*genai.Content) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.countModels = append(f.countModels, model)
	call := f.countCalls
	f.countCalls++

	if f.countErr != nil {
		return 0, f.countErr
	}
	if len(f.countValues) == 0 {
		return 0, nil
	}
	if call >= len(f.countValues) {
		call = len(f.countValues) - 1
	}
	return f.countValues[call], nil
}

func (f *fakeTransport) EmbedBatch(_ context.Context, model string, texts []string) (*genai.BatchEmbedContentsResponse, error) {
	return &genai.BatchEmbedContentsResponse{}, nil
}

func (f *fakeTransport) streamCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamCalls
}

type fakeChecker struct {
	mu       sync.Mutex
	verdicts []*SpeakerVerdict // per call; last entry repeats
	calls    int
	onCheck  func(call int)
}

func (f *fakeChecker) Check(_ context.Context, _ []*genai.Content) (*SpeakerVerdict, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	hook := f.onCheck
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	if len(f.verdicts) == 0 {
		return nil, nil
	}
	if call >= len(f.verdicts) {
		call = len(f.verdicts) - 1
	}
	return f.verdicts[call], nil
}

func (f *fakeChecker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(text)}}},
		},
	}
}

func toolCallResponse(name string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []genai.Part{
				genai.FunctionCall{Name: name, Args: map[string]any{"path": "README.md"}},
			}}},
		},
	}
}

func speaker(next string) *SpeakerVerdict {
	return &SpeakerVerdict{Reasoning: "test", NextSpeaker: next}
}
