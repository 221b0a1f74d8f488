package provider

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/googleapi"

	"confab/internal/config"
)

func TestHandleOverload_ApprovedSwitch(t *testing.T) {
	cfg := config.New("test-key")

	var gotCurrent, gotFallback string
	cfg.FlashFallbackHandler = func(current, fallback string) bool {
		gotCurrent = current
		gotFallback = fallback
		return true
	}

	m := NewFallbackManager(cfg)
	result := m.HandleOverload()

	if result != config.FallbackModel {
		t.Errorf("Expected %q, got %q", config.FallbackModel, result)
	}
	if gotCurrent != config.DefaultModel {
		t.Errorf("Expected handler to see current %q, got %q", config.DefaultModel, gotCurrent)
	}
	if gotFallback != config.FallbackModel {
		t.Errorf("Expected handler to see fallback %q, got %q", config.FallbackModel, gotFallback)
	}

	// The switch must be visible to every later live query.
	if got := cfg.GetModel(); got != config.FallbackModel {
		t.Errorf("Expected active model %q, got %q", config.FallbackModel, got)
	}
}

func TestHandleOverload_Declined(t *testing.T) {
	cfg := config.New("test-key")
	cfg.FlashFallbackHandler = func(current, fallback string) bool { return false }

	m := NewFallbackManager(cfg)
	if result := m.HandleOverload(); result != config.DefaultModel {
		t.Errorf("Expected %q, got %q", config.DefaultModel, result)
	}
	if got := cfg.GetModel(); got != config.DefaultModel {
		t.Errorf("Expected active model unchanged, got %q", got)
	}
}

func TestHandleOverload_NoHandler(t *testing.T) {
	cfg := config.New("test-key")

	m := NewFallbackManager(cfg)
	if result := m.HandleOverload(); result != config.DefaultModel {
		t.Errorf("Expected %q, got %q", config.DefaultModel, result)
	}
}

func TestHandleOverload_AlreadyOnFallback(t *testing.T) {
	cfg := config.New("test-key")
	cfg.SetModel(config.FallbackModel)

	called := false
	cfg.FlashFallbackHandler = func(current, fallback string) bool {
		called = true
		return true
	}

	m := NewFallbackManager(cfg)
	if result := m.HandleOverload(); result != config.FallbackModel {
		t.Errorf("Expected %q, got %q", config.FallbackModel, result)
	}
	if called {
		t.Error("Expected handler not to be consulted when already on fallback")
	}
}

func TestIsOverloaded(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"googleapi 429", &googleapi.Error{Code: 429, Message: "quota exceeded"}, true},
		{"wrapped googleapi 429", fmt.Errorf("Gemini API error: %w", &googleapi.Error{Code: 429}), true},
		{"googleapi 500", &googleapi.Error{Code: 500, Message: "internal"}, false},
		{"resource exhausted text", errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED"), true},
		{"plain error", errors.New("connection refused"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsOverloaded(tc.err); got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}
