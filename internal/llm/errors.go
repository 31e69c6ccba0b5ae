package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind buckets provider failures by how the caller should react.
type Kind string

const (
	KindAuth        Kind = "auth"
	KindQuota       Kind = "quota"
	KindTransient   Kind = "transient"
	KindBadResponse Kind = "bad_response"
	KindOther       Kind = "other"
)

// ProviderError is returned by provider clients for failed calls.
type ProviderError struct {
	Provider string
	Status   int
	Kind     Kind
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s http status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// KindForStatus maps an HTTP status code to a failure kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindQuota
	case status == http.StatusRequestTimeout || status >= 500:
		return KindTransient
	default:
		return KindOther
	}
}

// Classify reports the failure kind of err. Errors that are not a
// ProviderError are classified by their network behavior and message.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var perr *ProviderError
	if errors.As(err, &perr) && perr.Kind != "" {
		return perr.Kind
	}
	if errors.Is(err, ErrNoCredential) {
		return KindAuth
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "http status 401"), strings.Contains(msg, "http status 403"):
		return KindAuth
	case strings.Contains(msg, "http status 429"):
		return KindQuota
	case strings.Contains(msg, "http status 5"), strings.Contains(msg, "server_error"):
		return KindTransient
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection closed"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "eof"):
		return KindTransient
	}
	return KindOther
}

// Retryable reports whether one more attempt against the same provider may help.
func Retryable(err error) bool {
	return Classify(err) == KindTransient
}
