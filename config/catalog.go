package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/upb/llm-router/models"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/providers.yml
var defaultProvidersYAML []byte

//go:embed defaults/profiles.yml
var defaultProfilesYAML []byte

// providerEntry is the YAML shape of one provider definition
type providerEntry struct {
	Name         string `yaml:"name"`
	EnvKey       string `yaml:"env_key" validate:"required"`
	SDK          string `yaml:"sdk" validate:"required,oneof=openai anthropic"`
	BaseURL      string `yaml:"base_url" validate:"omitempty,url"`
	DefaultModel string `yaml:"default_model"`
	Tier         string `yaml:"tier"`
	Renewal      string `yaml:"renewal" validate:"omitempty,oneof=rolling daily monthly"`

	// RateLimit is the nested form, rate_limit.renewal. It wins over Renewal
	// and is folded into it on merge.
	RateLimit *rateLimitEntry `yaml:"rate_limit,omitempty" validate:"-"`
}

type rateLimitEntry struct {
	Renewal string `yaml:"renewal"`
}

// profileEntry is the YAML shape of one routing profile
type profileEntry struct {
	Description string   `yaml:"description"`
	Providers   []string `yaml:"providers"`
}

type providersFile struct {
	Providers map[string]yaml.Node `yaml:"providers"`
}

type profilesFile struct {
	Profiles map[string]profileEntry `yaml:"profiles"`
}

// Catalog holds the provider descriptors and routing profiles known to the router
type Catalog struct {
	providers map[string]providerEntry
	profiles  map[string]profileEntry
}

// LoadCatalog reads the bundled defaults and layers the optional custom files on top.
// Custom providers are merged field by field; custom profiles replace whole entries.
// Paths that are empty or do not exist are ignored.
func LoadCatalog(providersPath, profilesPath string) (*Catalog, error) {
	c := &Catalog{
		providers: make(map[string]providerEntry),
		profiles:  make(map[string]profileEntry),
	}

	if err := c.mergeProviders(defaultProvidersYAML); err != nil {
		return nil, fmt.Errorf("failed to parse bundled providers: %w", err)
	}
	if err := c.mergeProfiles(defaultProfilesYAML); err != nil {
		return nil, fmt.Errorf("failed to parse bundled profiles: %w", err)
	}

	if data, err := readOptional(providersPath); err != nil {
		return nil, err
	} else if data != nil {
		if err := c.mergeProviders(data); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", providersPath, err)
		}
	}

	if data, err := readOptional(profilesPath); err != nil {
		return nil, err
	} else if data != nil {
		if err := c.mergeProfiles(data); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", profilesPath, err)
		}
	}

	return c, nil
}

// NewCatalog builds a catalog directly from descriptors and profiles
func NewCatalog(providers []models.ProviderDescriptor, profiles []models.Profile) *Catalog {
	c := &Catalog{
		providers: make(map[string]providerEntry, len(providers)),
		profiles:  make(map[string]profileEntry, len(profiles)),
	}
	for _, p := range providers {
		c.providers[p.ID] = providerEntry{
			Name:         p.Name,
			EnvKey:       p.EnvKey,
			SDK:          string(p.SDK),
			BaseURL:      p.BaseURL,
			DefaultModel: p.DefaultModel,
			Tier:         p.Tier,
			Renewal:      string(p.Renewal),
		}
	}
	for _, p := range profiles {
		c.profiles[p.Name] = profileEntry{
			Description: p.Description,
			Providers:   append([]string(nil), p.Providers...),
		}
	}
	return c
}

// Provider returns the descriptor for id
func (c *Catalog) Provider(id string) (models.ProviderDescriptor, bool) {
	e, ok := c.providers[id]
	if !ok {
		return models.ProviderDescriptor{}, false
	}
	return models.ProviderDescriptor{
		ID:           id,
		Name:         e.Name,
		EnvKey:       e.EnvKey,
		DefaultModel: e.DefaultModel,
		SDK:          models.SDKKind(e.SDK),
		BaseURL:      e.BaseURL,
		Renewal:      models.RenewalPolicy(e.Renewal),
		Tier:         e.Tier,
	}, true
}

// Profile returns the profile called name
func (c *Catalog) Profile(name string) (models.Profile, bool) {
	e, ok := c.profiles[name]
	if !ok {
		return models.Profile{}, false
	}
	return models.Profile{
		Name:        name,
		Description: e.Description,
		Providers:   append([]string(nil), e.Providers...),
	}, true
}

// ProfileNames returns all profile names in sorted order
func (c *Catalog) ProfileNames() []string {
	names := make([]string, 0, len(c.profiles))
	for name := range c.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderIDs returns all provider IDs in sorted order
func (c *Catalog) ProviderIDs() []string {
	ids := make([]string, 0, len(c.providers))
	for id := range c.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var catalogValidator = newCatalogValidator()

func newCatalogValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate reports configuration problems as human-readable warnings.
// An empty result means the catalog is consistent.
func (c *Catalog) Validate() []string {
	var warnings []string

	for _, name := range c.ProfileNames() {
		for _, pid := range c.profiles[name].Providers {
			if _, ok := c.providers[pid]; !ok {
				warnings = append(warnings,
					fmt.Sprintf("Profile '%s' references unknown provider '%s'", name, pid))
			}
		}
	}

	for _, id := range c.ProviderIDs() {
		err := catalogValidator.Struct(c.providers[id])
		if err == nil {
			continue
		}

		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			warnings = append(warnings, fmt.Sprintf("Provider '%s': %v", id, err))
			continue
		}

		for _, fe := range validationErrs {
			switch fe.Tag() {
			case "required":
				warnings = append(warnings, fmt.Sprintf("Provider '%s' missing '%s'", id, fe.Field()))
			case "oneof":
				warnings = append(warnings, fmt.Sprintf("Provider '%s' has unsupported %s '%v'", id, fe.Field(), fe.Value()))
			default:
				warnings = append(warnings, fmt.Sprintf("Provider '%s' has invalid %s '%v'", id, fe.Field(), fe.Value()))
			}
		}
	}

	return warnings
}

// mergeProviders decodes each provider node into the existing entry so only
// the fields present in data are overwritten
func (c *Catalog) mergeProviders(data []byte) error {
	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}

	for id, node := range file.Providers {
		entry := c.providers[id]
		if err := node.Decode(&entry); err != nil {
			return fmt.Errorf("provider %s: %w", id, err)
		}
		if entry.RateLimit != nil {
			if entry.RateLimit.Renewal != "" {
				entry.Renewal = entry.RateLimit.Renewal
			}
			entry.RateLimit = nil
		}
		c.providers[id] = entry
	}
	return nil
}

func (c *Catalog) mergeProfiles(data []byte) error {
	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}

	for name, entry := range file.Profiles {
		c.profiles[name] = entry
	}
	return nil
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
