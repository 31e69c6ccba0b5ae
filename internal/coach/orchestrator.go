package coach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"goalsectors-backend/internal/llm"
	"goalsectors-backend/internal/shared/metrics"
	"goalsectors-backend/internal/tracing"
)

const (
	DefaultProviderTimeout = 30 * time.Second
	DefaultRetryDelay      = 300 * time.Millisecond
)

const correctivePrefix = "Your JSON was invalid. Fix it to match the schema exactly. Error: "

// Completion is the outcome of obtaining a validated response for one turn.
type Completion struct {
	Raw            string
	Validation     ValidationResult
	Messages       []llm.Message
	FallbackUsed   bool
	FallbackReason string
	// Attempts counts provider calls, including transport retries.
	Attempts int
}

// Orchestrator calls the provider, validates what it returns and retries once
// with the validation error when the output is malformed. Provider failures
// are answered by Fallback and never retried against the schema.
type Orchestrator struct {
	Provider   llm.Completer
	Fallback   *Fallback
	Sink       *tracing.Sink
	Logger     *zap.Logger
	Timeout    time.Duration
	RetryDelay time.Duration
}

// Run returns an error only when ctx ends before a response is chosen.
func (o *Orchestrator) Run(ctx context.Context, traceID string, messages []llm.Message) (Completion, error) {
	c := Completion{Messages: append([]llm.Message(nil), messages...)}
	userMessage := lastUserMessage(messages)

	raw, err := o.complete(ctx, &c, userMessage)
	if err != nil {
		return Completion{}, err
	}
	o.Sink.Event(traceID, "model_response_received", map[string]any{
		"raw_response":  raw,
		"fallback_used": c.FallbackUsed,
		"attempts":      c.Attempts,
	})

	c.Raw = raw
	c.Validation = ParseAndValidate(raw)
	o.Sink.Event(traceID, "schema_validated", map[string]any{"ok": c.Validation.OK, "error": c.Validation.Error})
	if c.Validation.OK || c.FallbackUsed {
		return c, nil
	}

	metrics.IncSchemaRetry()
	o.logger().Info("coach.schema_retry", zap.String("error", c.Validation.Error))
	o.Sink.Event(traceID, "schema_retry", map[string]any{"error": c.Validation.Error})

	c.Messages = append(c.Messages,
		llm.Message{Role: llm.RoleAssistant, Content: raw},
		llm.Message{Role: llm.RoleUser, Content: correctivePrefix + c.Validation.Error},
	)
	raw, err = o.complete(ctx, &c, userMessage)
	if err != nil {
		return Completion{}, err
	}
	c.Raw = raw
	c.Validation = ParseAndValidate(raw)
	o.Sink.Event(traceID, "schema_validated", map[string]any{"ok": c.Validation.OK, "error": c.Validation.Error, "retry": true})
	return c, nil
}

// complete makes one logical provider call. A fast transient failure gets a
// single transport retry; a call that used up its whole timeout does not, so
// a hung provider reaches the fallback after one timeout.
func (o *Orchestrator) complete(ctx context.Context, c *Completion, userMessage string) (string, error) {
	if o.Provider == nil {
		return o.fallback(c, userMessage, llm.KindAuth, llm.ErrNoCredential), nil
	}

	for attempt := 1; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.timeout())
		raw, err := o.Provider.Complete(callCtx, c.Messages)
		timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
		cancel()
		c.Attempts++
		if err == nil {
			return raw, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		kind := llm.Classify(err)
		o.logger().Warn("coach.provider_failed",
			zap.String("provider", o.Provider.Name()),
			zap.String("kind", string(kind)),
			zap.Int("attempt", attempt),
			zap.Bool("timed_out", timedOut),
			zap.Error(err),
		)
		if timedOut || attempt > 1 || !llm.Retryable(err) {
			return o.fallback(c, userMessage, kind, err), nil
		}
		if o.RetryDelay > 0 {
			select {
			case <-time.After(o.RetryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
}

func (o *Orchestrator) fallback(c *Completion, userMessage string, kind llm.Kind, err error) string {
	reason := fallbackReason(kind, err)
	c.FallbackUsed = true
	c.FallbackReason = reason
	metrics.IncFallback(string(kind))
	return o.Fallback.Respond(userMessage, reason)
}

func fallbackReason(kind llm.Kind, err error) string {
	if errors.Is(err, llm.ErrNoCredential) {
		return "No API Key - add a provider API key to the environment"
	}
	var pe *llm.ProviderError
	status := 0
	if errors.As(err, &pe) {
		status = pe.Status
	}
	switch kind {
	case llm.KindAuth, llm.KindQuota:
		if status > 0 {
			return fmt.Sprintf("API Error %d: Quota/Auth", status)
		}
		return "API Error: Quota/Auth"
	case llm.KindTransient:
		return "AI provider unavailable"
	default:
		return "AI provider error"
	}
}

func (o *Orchestrator) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultProviderTimeout
	}
	return o.Timeout
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func lastUserMessage(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
