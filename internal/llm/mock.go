package llm

import (
	"context"
	"sync"
)

// MockResponse is one canned reply for MockProvider.
type MockResponse struct {
	Content string
	Err     error
}

// MockProvider replays canned responses in order and records requests.
// Once the queue is drained, Fallback is used if set.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Fallback  func(Request) (string, error)
	Calls     []Request
}

func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	next, ok := m.next(req)
	if !ok {
		if m.Fallback == nil {
			return nil, &ErrProviderUnavailable{}
		}
		next.Content, next.Err = m.Fallback(req)
	}
	if next.Err != nil {
		return nil, next.Err
	}
	return &Response{Content: []byte(next.Content), Model: "mock", StopReason: "end"}, nil
}

func (m *MockProvider) next(req Request) (MockResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if len(m.responses) == 0 {
		return MockResponse{}, false
	}
	r := m.responses[0]
	m.responses = m.responses[1:]
	return r, true
}

func (m *MockProvider) ModelID() string { return "mock" }

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
