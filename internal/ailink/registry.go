package ailink

import (
	"fmt"
	"strings"
	"sync"

	"github.com/feedlens/feedlens/internal/ailink/driver"
	"github.com/feedlens/feedlens/internal/ailink/driver/openai"
)

// Roles the application routes on.
const (
	RoleAnswer = "answer"
	RoleEmbed  = "embed"
)

// Registry resolves a role to a configured provider instance and caches the
// constructed drivers.
type Registry struct {
	cfg Config

	mu      sync.Mutex
	drivers map[string]driver.Driver
}

// ResolvedProvider is the outcome of routing a role.
type ResolvedProvider struct {
	ProviderID string
	Provider   ProviderInstanceConfig
	Credential CredentialConfig
	Driver     driver.Driver
	Model      string
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg}
}

// Resolve picks the provider for a role, selects a credential, builds (or
// reuses) the driver, and resolves the model name. modelOverride, when
// non-empty, wins over configured models.
func (r *Registry) Resolve(role, modelOverride string) (*ResolvedProvider, error) {
	providerID, providerCfg, err := r.resolveProvider(role)
	if err != nil {
		return nil, err
	}

	cred, err := selectCredential(providerCfg)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", providerID, err)
	}

	drv, err := r.driverFor(providerID, providerCfg, cred)
	if err != nil {
		return nil, err
	}

	model, err := resolveModel(providerCfg, role, modelOverride)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", providerID, err)
	}

	return &ResolvedProvider{
		ProviderID: providerID,
		Provider:   providerCfg,
		Credential: cred,
		Driver:     drv,
		Model:      model,
	}, nil
}

func (r *Registry) resolveProvider(role string) (string, ProviderInstanceConfig, error) {
	if r == nil {
		return "", ProviderInstanceConfig{}, fmt.Errorf("ailink registry not configured")
	}

	role = strings.TrimSpace(role)
	if role != "" {
		if providerID, ok := r.cfg.Routing[role]; ok {
			providerID = strings.TrimSpace(providerID)
			if providerID != "" {
				providerCfg, ok := r.cfg.Providers[providerID]
				if !ok {
					return "", ProviderInstanceConfig{}, fmt.Errorf("unknown provider %q for role %q", providerID, role)
				}
				if !providerCfg.Enabled {
					return "", ProviderInstanceConfig{}, fmt.Errorf("provider %q is disabled", providerID)
				}
				return providerID, providerCfg, nil
			}
		}

		for providerID, providerCfg := range r.cfg.Providers {
			if providerCfg.Enabled && containsRole(providerCfg.Roles, role) {
				return providerID, providerCfg, nil
			}
		}
	}

	if id := strings.TrimSpace(r.cfg.DefaultProvider); id != "" {
		providerCfg, ok := r.cfg.Providers[id]
		if !ok {
			return "", ProviderInstanceConfig{}, fmt.Errorf("default provider %q not configured", id)
		}
		if !providerCfg.Enabled {
			return "", ProviderInstanceConfig{}, fmt.Errorf("default provider %q is disabled", id)
		}
		return id, providerCfg, nil
	}

	// With exactly one enabled provider, routing is unambiguous.
	var onlyID string
	var onlyCfg ProviderInstanceConfig
	for providerID, providerCfg := range r.cfg.Providers {
		if !providerCfg.Enabled {
			continue
		}
		if onlyID != "" {
			return "", ProviderInstanceConfig{}, fmt.Errorf("no provider routing configured")
		}
		onlyID = providerID
		onlyCfg = providerCfg
	}
	if onlyID == "" {
		return "", ProviderInstanceConfig{}, fmt.Errorf("no enabled providers configured")
	}
	return onlyID, onlyCfg, nil
}

// selectCredential returns the highest-priority enabled credential with a key.
func selectCredential(cfg ProviderInstanceConfig) (CredentialConfig, error) {
	if len(cfg.Credentials) == 0 {
		return CredentialConfig{}, fmt.Errorf("no credentials configured")
	}

	var best *CredentialConfig
	for i := range cfg.Credentials {
		cred := &cfg.Credentials[i]
		if !cred.Enabled || strings.TrimSpace(cred.APIKey) == "" {
			continue
		}
		if best == nil || cred.Priority > best.Priority {
			best = cred
		}
	}
	if best == nil {
		// Credentials exist but none is usable; report the missing key.
		return cfg.Credentials[0], fmt.Errorf("no usable credential (missing api key?)")
	}
	return *best, nil
}

func (r *Registry) driverFor(providerID string, providerCfg ProviderInstanceConfig, cred CredentialConfig) (driver.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drivers == nil {
		r.drivers = map[string]driver.Driver{}
	}

	driverKey := providerID
	if label := strings.TrimSpace(cred.Label); label != "" {
		driverKey += ":" + label
	}
	if drv, ok := r.drivers[driverKey]; ok {
		return drv, nil
	}

	providerType := strings.ToLower(strings.TrimSpace(providerCfg.AIProvider))
	switch providerType {
	case "openai":
		client := openai.NewClient(providerCfg.BaseURL, cred.APIKey)
		client.Timeout = r.cfg.DefaultTimeout
		r.drivers[driverKey] = client
		return client, nil
	default:
		if providerType == "" {
			providerType = "(unset)"
		}
		return nil, fmt.Errorf("unsupported ai_provider %q for provider %q", providerType, providerID)
	}
}

func resolveModel(providerCfg ProviderInstanceConfig, role, override string) (string, error) {
	if model := strings.TrimSpace(override); model != "" {
		return model, nil
	}
	if providerCfg.Models != nil {
		if model := strings.TrimSpace(providerCfg.Models[role]); model != "" {
			return model, nil
		}
		if model := strings.TrimSpace(providerCfg.Models["default"]); model != "" {
			return model, nil
		}
	}
	return "", fmt.Errorf("model not configured for role %q", role)
}

func containsRole(roles []string, needle string) bool {
	for _, role := range roles {
		if strings.EqualFold(strings.TrimSpace(role), needle) {
			return true
		}
	}
	return false
}
