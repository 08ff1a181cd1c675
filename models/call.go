package models

import "time"

// AttemptStatus tags why a candidate did not serve a call
type AttemptStatus string

const (
	AttemptSkipped AttemptStatus = "skipped"
	AttemptStruck  AttemptStatus = "struck"
	AttemptFailed  AttemptStatus = "failed"
)

// Attempt records what happened to one candidate during a cascade.
// RenewsAt is only set for struck candidates, RateLimited only for failed ones.
type Attempt struct {
	Provider    string        `json:"provider"`
	Status      AttemptStatus `json:"status"`
	Reason      string        `json:"reason"`
	RenewsAt    *time.Time    `json:"renews_at,omitempty"`
	RateLimited bool          `json:"rate_limited,omitempty"`
}

// Message is a single chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage holds token counters; zero when the provider did not report them
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// CallResult is the outcome of a successful routed call
type CallResult struct {
	RequestID    string `json:"request_id"`
	Text         string `json:"text"`
	ProviderID   string `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
	Usage        Usage  `json:"usage"`
}
