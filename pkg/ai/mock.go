package ai

import (
	"context"
	"encoding/json"
)

// MockClient is a GraphAIClient for tests. Responses are returned in order of
// invocation; Embedding is returned for every embedding call. When Err is set
// every method fails with it.
type MockClient struct {
	Responses []string
	Embedding []float32
	Err       error

	Calls int
}

func (m *MockClient) next() string {
	if len(m.Responses) == 0 {
		return ""
	}
	idx := m.Calls
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.Calls++
	return m.Responses[idx]
}

func (m *MockClient) GenerateCompletion(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.next(), nil
}

func (m *MockClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...GenerateOption) error {
	if m.Err != nil {
		return m.Err
	}
	return json.Unmarshal([]byte(m.next()), out)
}

func (m *MockClient) GenerateChat(ctx context.Context, messages []ChatMessage, opts ...GenerateOption) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.next(), nil
}

func (m *MockClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Embedding, nil
}

func (m *MockClient) GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = m.Embedding
	}
	return out, nil
}

func (m *MockClient) GetMetrics() ModelMetrics { return ModelMetrics{} }

func (m *MockClient) ResetMetrics() {}
