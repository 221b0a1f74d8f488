package provider

import (
	"log"

	"confab/internal/config"
)

// FallbackManager switches the active model to the flash fallback when the
// provider signals overload. Call sites fetch the model from config at the
// moment of use, so an approved switch takes effect on the next request
// without re-initialization.
type FallbackManager struct {
	cfg *config.Config
}

func NewFallbackManager(cfg *config.Config) *FallbackManager {
	return &FallbackManager{cfg: cfg}
}

// HandleOverload consults the configured approval handler and, if approved,
// updates the active model. It returns the model that subsequent requests
// will use. The triggering request is never retried here.
func (m *FallbackManager) HandleOverload() string {
	current := m.cfg.GetModel()
	if current == config.FallbackModel {
		return current
	}

	handler := m.cfg.FlashFallbackHandler
	if handler == nil || !handler(current, config.FallbackModel) {
		return current
	}

	m.cfg.SetModel(config.FallbackModel)
	log.Printf("Provider overloaded; switched model %s -> %s", current, config.FallbackModel)
	return config.FallbackModel
}
