package ai

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider implements Provider for tests and offline runs without real
// API calls. Responses can be scripted per prompt; unscripted prompts get
// a deterministic echo.
type MockProvider struct {
	mu        sync.Mutex
	responses map[string]string
	calls     []string
}

// NewMockProvider creates a MockProvider with no scripted responses.
func NewMockProvider() *MockProvider {
	return &MockProvider{responses: map[string]string{}}
}

// Script sets the response returned for an exact prompt.
func (p *MockProvider) Script(prompt, response string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[prompt] = response
}

// Calls returns the prompts seen so far, in order.
func (p *MockProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Generate implements Provider.Generate.
func (p *MockProvider) Generate(_ context.Context, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, prompt)
	if resp, ok := p.responses[prompt]; ok {
		return resp, nil
	}
	return fmt.Sprintf("mock response for: %s", prompt), nil
}

// Name implements Provider.Name.
func (p *MockProvider) Name() string {
	return "mock"
}

// Model implements Provider.Model.
func (p *MockProvider) Model() string {
	return "mock"
}
