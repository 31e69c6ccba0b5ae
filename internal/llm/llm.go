package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer returns the assistant text for an ordered conversation. Providers
// are asked for a JSON object but callers must validate what comes back.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Name() string
}

// ErrNoCredential means the selected provider has no API key configured.
var ErrNoCredential = errors.New("llm: no credential configured")
