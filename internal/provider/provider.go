package provider

import (
	"context"
	"fmt"
)

// Provider is the abstraction over AI text-generation APIs.
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	Name() string
}

// GenerateRequest holds parameters for a single text-generation call.
type GenerateRequest struct {
	System      string  // Persona / system instructions
	Prompt      string  // The user's message text, verbatim
	Model       string  // Optional model override
	MaxTokens   int     // 0 means provider default
	Temperature float64 // 0 means provider default
}

// GenerateResponse is the parsed response from a provider.
type GenerateResponse struct {
	Text  string
	Usage Usage
}

// Usage tracks token consumption for a single call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens returns the sum of prompt and completion tokens.
func (u Usage) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}

// APIError is a non-2xx response from a provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: api error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}
