// Package llm wraps the hosted language models LinkLoom uses for seed
// planning and bio classification behind one Provider interface.
package llm

import (
	"context"
	"encoding/json"
)

// Provider generates a completion for a Request.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	ModelID() string
}

// Request describes one call.
type Request struct {
	System   string
	Messages []Message
	// Schema, when set, asks for structured output and validates the reply.
	Schema *Schema
	// JSON asks for a JSON reply without enforcing a schema.
	JSON        bool
	MaxTokens   int
	Temperature float64
}

type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserPrompt is shorthand for a single-turn request.
func UserPrompt(system, user string) Request {
	return Request{System: system, Messages: []Message{{Role: RoleUser, Content: user}}}
}

// Schema is a named JSON Schema.
type Schema struct {
	Name       string
	Definition map[string]any
}

// Response holds the model's text output and token usage.
type Response struct {
	Content    json.RawMessage
	Model      string
	StopReason string
	Usage      Usage
}

// Text returns the content as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Content)
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}
