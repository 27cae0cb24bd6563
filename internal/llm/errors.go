package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFatalAPI marks provider errors that will not succeed on retry, such
	// as bad credentials or exhausted credit.
	ErrFatalAPI = errors.New("fatal provider error")

	// ErrRateLimited marks throttling responses. They are retried with
	// backoff like any other transient failure.
	ErrRateLimited = errors.New("provider rate limited")
)

// Checked before throttleMarkers so that "insufficient_quota" stays fatal.
var fatalMarkers = []string{
	"credit balance",
	"insufficient_quota",
	"billing",
	"invalid api key",
	"authentication",
	"unauthorized",
	"401",
	"403",
}

var throttleMarkers = []string{
	"rate limit",
	"ratelimit",
	"too many requests",
	"429",
	"quota",
	"resource_exhausted",
	"resource has been exhausted",
	"overloaded",
}

func containsAny(msg string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// classifyProviderError tags err with ErrFatalAPI or ErrRateLimited when its
// message matches a known provider response, and returns it unchanged
// otherwise.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, fatalMarkers):
		return fmt.Errorf("%w: %w", ErrFatalAPI, err)
	case containsAny(msg, throttleMarkers):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return err
}
