package embedding

import (
	"fmt"
	"log/slog"

	"github.com/flemzord/recall/internal/core"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
)

// Module configures the embedding provider. Without an API key the
// module registers nothing and the engine runs in lexical-only mode,
// which is a fully supported state rather than an error.
type Module struct {
	config   HTTPConfig
	provider *HTTPProvider
	logger   *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "embedding.http",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("embedding: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.APIKey == "" {
		m.logger.Info("no embedding credential configured, running lexical-only")
		return nil
	}

	m.provider = NewHTTPProvider(m.config)
	ctx.RegisterService("embedding.provider", m.provider)
	m.logger.Info("embedding provider configured",
		"base_url", m.config.BaseURL,
		"model", m.config.Model,
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.BaseURL == "" {
		return fmt.Errorf("embedding: base_url must not be empty")
	}
	return nil
}

// Provider returns the configured provider, or nil in lexical-only mode.
func (m *Module) Provider() Provider {
	if m.provider == nil {
		return nil
	}
	return m.provider
}
