package strikes

import (
	"time"

	"github.com/upb/llm-router/models"
)

const (
	// RollingWindow is the cooldown applied under the rolling policy
	RollingWindow = 60 * time.Second

	// MaxRetryAfterSeconds caps an upstream retry delay at one year
	MaxRetryAfterSeconds = 366 * 24 * 60 * 60
)

// ComputeRenewal returns when a strike issued at now stops blocking the provider.
//
// A positive retryAfter (seconds) wins over the policy and is capped at
// MaxRetryAfterSeconds so the renewal never lands before now. Daily strikes renew at the
// next UTC midnight strictly after now, monthly strikes on the first of the next
// month, and everything else after RollingWindow.
func ComputeRenewal(now time.Time, policy models.RenewalPolicy, retryAfter *int) time.Time {
	now = now.UTC()

	if retryAfter != nil && *retryAfter > 0 {
		secs := min(*retryAfter, MaxRetryAfterSeconds)
		return now.Add(time.Duration(secs) * time.Second)
	}

	year, month, day := now.Date()
	switch policy {
	case models.RenewalDaily:
		return time.Date(year, month, day+1, 0, 0, 0, 0, time.UTC)
	case models.RenewalMonthly:
		// time.Date normalises month 13 into January of the following year
		return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return now.Add(RollingWindow)
	}
}
