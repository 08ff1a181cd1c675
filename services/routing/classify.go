package routing

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/upb/llm-router/services/providers"
	"github.com/upb/llm-router/services/strikes"
)

// maxReasonLength caps the error text stored as a strike or attempt reason
const maxReasonLength = 200

var retryAfterPattern = regexp.MustCompile(`(?i)retry.?after[:\s]+(\d+)`)

// headerCarrier is implemented by errors that keep the upstream response headers
type headerCarrier interface {
	ResponseHeaders() http.Header
}

// ClassifyFailure decides whether err means the provider is rate limited or
// out of quota, and extracts an explicit retry delay in seconds when one is present.
//
// The delay comes from a "retry after N" phrase in the message first, then from
// a Retry-After header on any error in the chain exposing ResponseHeaders.
func ClassifyFailure(err error) (bool, *int) {
	if err == nil {
		return false, nil
	}

	msg := strings.ToLower(err.Error())
	match := retryAfterPattern.FindStringSubmatch(msg)

	rateLimited := strings.Contains(msg, "429") ||
		(strings.Contains(msg, "rate") && strings.Contains(msg, "limit")) ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "insufficient") ||
		match != nil ||
		hasStatus(err, http.StatusTooManyRequests)

	if !rateLimited {
		return false, nil
	}

	if match != nil {
		if secs, ok := parseDelaySeconds(match[1]); ok {
			return true, &secs
		}
	}

	var carrier headerCarrier
	if errors.As(err, &carrier) {
		if secs, ok := parseRetryAfter(carrier.ResponseHeaders()); ok {
			return true, &secs
		}
	}

	return true, nil
}

func hasStatus(err error, status int) bool {
	var provErr *providers.ProviderError
	return errors.As(err, &provErr) && provErr.StatusCode == status
}

// parseRetryAfter accepts only the delta-seconds form of Retry-After
func parseRetryAfter(h http.Header) (int, bool) {
	if h == nil {
		return 0, false
	}
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if strings.HasPrefix(v, "-") {
		return 0, false
	}
	return parseDelaySeconds(v)
}

// parseDelaySeconds reads a non-negative decimal delay, saturating values too
// large to represent at strikes.MaxRetryAfterSeconds
func parseDelaySeconds(v string) (int, bool) {
	secs, err := strconv.Atoi(v)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return strikes.MaxRetryAfterSeconds, true
		}
		return 0, false
	}
	if secs < 0 {
		return 0, false
	}
	return min(secs, strikes.MaxRetryAfterSeconds), true
}

// failureReason renders err for storage, truncated to maxReasonLength runes
func failureReason(err error) string {
	s := err.Error()
	if utf8.RuneCountInString(s) <= maxReasonLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxReasonLength])
}
