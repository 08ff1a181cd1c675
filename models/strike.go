package models

import "time"

// StrikeRecord marks a provider as rate-limited until RenewsAt
type StrikeRecord struct {
	ProviderID string    `json:"provider_id"`
	StruckAt   time.Time `json:"struck_at"`
	Reason     string    `json:"reason"`
	RenewsAt   time.Time `json:"renews_at"`
}

// ExpiredAt reports whether the strike no longer applies at the given instant.
// A strike is lifted at exactly RenewsAt.
func (s StrikeRecord) ExpiredAt(now time.Time) bool {
	return !now.Before(s.RenewsAt)
}

// StrikeStatus is a snapshot of all active strikes
type StrikeStatus struct {
	ActiveCount int                     `json:"active_strikes"`
	Records     map[string]StrikeRecord `json:"strikes"`
}
