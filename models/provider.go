package models

// SDKKind selects the wire protocol used to talk to a provider
type SDKKind string

const (
	SDKOpenAI    SDKKind = "openai"
	SDKAnthropic SDKKind = "anthropic"
)

// RenewalPolicy decides when a strike expires when the provider did not
// send an explicit retry delay
type RenewalPolicy string

const (
	RenewalRolling RenewalPolicy = "rolling" // fixed cooldown after the failure
	RenewalDaily   RenewalPolicy = "daily"   // next midnight UTC
	RenewalMonthly RenewalPolicy = "monthly" // first day of next month, UTC
)

// ProviderDescriptor describes a single LLM API endpoint that can serve requests.
// Descriptors are loaded once at startup and never mutated afterwards.
type ProviderDescriptor struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	EnvKey       string        `json:"env_key"`
	DefaultModel string        `json:"default_model"`
	SDK          SDKKind       `json:"sdk"`
	BaseURL      string        `json:"base_url,omitempty"`
	Renewal      RenewalPolicy `json:"renewal"`
	Tier         string        `json:"tier,omitempty"`
}

// DisplayName returns the human-readable name, falling back to the ID
func (p ProviderDescriptor) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// RenewalPolicyOrDefault returns the configured renewal policy or rolling when unset
func (p ProviderDescriptor) RenewalPolicyOrDefault() RenewalPolicy {
	if p.Renewal == "" {
		return RenewalRolling
	}
	return p.Renewal
}

// Profile is a named, ordered list of provider IDs.
// The order of Providers is the cascade priority.
type Profile struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Providers   []string `json:"providers"`
}

// ProviderStatus is a diagnostic view of one profile entry
type ProviderStatus struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Model         string        `json:"model"`
	Tier          string        `json:"tier,omitempty"`
	HasCredential bool          `json:"has_credential"`
	IsAvailable   bool          `json:"is_available"`
	Strike        *StrikeRecord `json:"strike,omitempty"`
}
