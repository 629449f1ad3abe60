package llm

import "context"

// MockProvider returns a fixed response. Test helper.
type MockProvider struct {
	Response string
	Err      error
	Calls    int
}

// NewMockProvider creates a mock provider returning the given response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Response: response}
}

// Name returns the provider identifier.
func (p *MockProvider) Name() ProviderName {
	return ProviderMock
}

// IsAvailable always returns true.
func (p *MockProvider) IsAvailable() bool {
	return true
}

// Priority returns the provider priority.
func (p *MockProvider) Priority() int {
	return PriorityMock
}

// Generate returns the canned response.
func (p *MockProvider) Generate(context.Context, GenerateRequest) (string, error) {
	p.Calls++

	if p.Err != nil {
		return "", p.Err
	}

	return p.Response, nil
}
