package generation

import "context"

// MockGenerator is a deterministic generator for tests. When Err is set, every
// call fails with it; otherwise Answer is returned and the prompt recorded.
type MockGenerator struct {
	Answer  string
	Err     error
	Prompts []string
}

// Generate records the prompt and returns the configured answer or error.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Answer, nil
}

// Close is a no-op for MockGenerator.
func (m *MockGenerator) Close() error {
	return nil
}
