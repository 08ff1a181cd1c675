package providers

import "os"

// CredentialSource resolves the API key stored under a provider's env key
type CredentialSource interface {
	Lookup(key string) (string, bool)
}

// EnvCredentials reads credentials from the process environment.
// An empty value counts as missing.
type EnvCredentials struct{}

// Lookup implements CredentialSource
func (EnvCredentials) Lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// StaticCredentials is a fixed key to credential map
type StaticCredentials map[string]string

// Lookup implements CredentialSource
func (s StaticCredentials) Lookup(key string) (string, bool) {
	v, ok := s[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
