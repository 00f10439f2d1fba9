package llm

import (
	"context"
	"errors"
	"time"

	"github.com/nlq2sql/nlq2sql/internal/config"
	apperrors "github.com/nlq2sql/nlq2sql/internal/errors"
	"github.com/nlq2sql/nlq2sql/internal/logging"
)

// Manager handles multiple generation providers with fallback strategies.
// It also performs the nonsensical-question check, so downstream callers
// never see SQL attempted for noise input.
type Manager struct {
	providers map[string]Service
	fallback  Service
	config    ManagerConfig
}

// ManagerConfig configures the manager behavior
type ManagerConfig struct {
	DefaultProvider   string        `json:"default_provider"`
	FallbackProviders []string      `json:"fallback_providers"`
	RetryAttempts     int           `json:"retry_attempts"`
	RetryDelay        time.Duration `json:"retry_delay"`
	Timeout           time.Duration `json:"timeout"`
	EnableFallback    bool          `json:"enable_fallback"`
}

// DefaultManagerConfig returns a sensible default configuration
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		DefaultProvider:   ProviderOllama,
		FallbackProviders: []string{ProviderOpenAI, ProviderAnthropic},
		RetryAttempts:     2,
		RetryDelay:        2 * time.Second,
		Timeout:           time.Minute,
		EnableFallback:    true,
	}
}

// NewManager creates a new generation manager with the given configuration
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		providers: make(map[string]Service),
		fallback:  NewFallbackService(),
		config:    cfg,
	}
}

// NewManagerFromConfig builds a manager with an HTTP client registered for
// the configured provider.
func NewManagerFromConfig(llmCfg config.LLMConfig) (*Manager, error) {
	timeout, err := time.ParseDuration(llmCfg.Timeout)
	if err != nil {
		timeout = time.Minute
	}

	retryDelay, err := time.ParseDuration(llmCfg.RetryDelay)
	if err != nil {
		retryDelay = 2 * time.Second
	}

	manager := NewManager(ManagerConfig{
		DefaultProvider: llmCfg.Provider,
		RetryAttempts:   llmCfg.RetryAttempts,
		RetryDelay:      retryDelay,
		Timeout:         timeout,
		EnableFallback:  llmCfg.Fallback,
	})

	client := NewClient(Config{})
	if err := client.Configure(Config{
		Provider: llmCfg.Provider,
		Model:    llmCfg.Model,
		APIKey:   llmCfg.APIKey,
		BaseURL:  llmCfg.BaseURL,
	}); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeConfig, "invalid generation provider configuration")
	}

	if err := manager.RegisterProvider(llmCfg.Provider, client); err != nil {
		return nil, err
	}

	return manager, nil
}

// RegisterProvider registers a new generation provider
func (m *Manager) RegisterProvider(name string, service Service) error {
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	if service == nil {
		return errors.New("service cannot be nil")
	}

	m.providers[name] = service

	return nil
}

// Configure configures a specific provider
func (m *Manager) Configure(cfg Config) error {
	provider, exists := m.providers[cfg.Provider]
	if !exists {
		return apperrors.Newf(apperrors.ErrTypeConfig, "provider %s not registered", cfg.Provider)
	}

	return provider.Configure(cfg)
}

// GenerateSQL runs the question through the provider chain. Nonsense input
// is rejected up front; provider failures fall through the chain and, when
// enabled, land on the rule-based fallback.
func (m *Manager) GenerateSQL(ctx context.Context, req Request) (string, error) {
	if err := CheckQuestion(req.Question); err != nil {
		return "", err
	}

	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)

		defer cancel()
	}

	if m.config.DefaultProvider != "" {
		if provider, exists := m.providers[m.config.DefaultProvider]; exists {
			sql, err := m.tryProvider(ctx, provider, req)
			if err == nil {
				return sql, nil
			}

			if ctx.Err() != nil {
				return "", apperrors.Wrap(ctx.Err(), apperrors.ErrTypeTimeout, "generation request timed out")
			}

			logging.WithField("provider", m.config.DefaultProvider).
				Warnf("default provider failed: %v", err)
		}
	}

	for _, name := range m.config.FallbackProviders {
		if provider, exists := m.providers[name]; exists {
			sql, err := m.tryProvider(ctx, provider, req)
			if err == nil {
				return sql, nil
			}

			if ctx.Err() != nil {
				return "", apperrors.Wrap(ctx.Err(), apperrors.ErrTypeTimeout, "generation request timed out")
			}

			logging.WithField("provider", name).Warnf("fallback provider failed: %v", err)
		}
	}

	if m.config.EnableFallback {
		logging.Infof("using rule-based fallback for SQL generation")
		return m.fallback.GenerateSQL(ctx, req)
	}

	return "", apperrors.New(apperrors.ErrTypeGeneration,
		"all generation providers failed and fallback is disabled")
}

// tryProvider attempts one provider with bounded retries.
func (m *Manager) tryProvider(ctx context.Context, provider Service, req Request) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= m.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(m.config.RetryDelay):
			}
		}

		sql, err := provider.GenerateSQL(ctx, req)
		if err == nil {
			return sql, nil
		}

		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			break
		}
	}

	return "", apperrors.Wrapf(lastErr, apperrors.ErrTypeGeneration,
		"provider failed after %d attempts", m.config.RetryAttempts+1)
}

// GetAvailableProviders returns a list of registered provider names
func (m *Manager) GetAvailableProviders() []string {
	var providers []string
	for name := range m.providers {
		providers = append(providers, name)
	}

	return providers
}

// IsProviderRegistered checks if a provider is registered
func (m *Manager) IsProviderRegistered(name string) bool {
	_, exists := m.providers[name]
	return exists
}
