package tokens

import "testing"

func TestLimit(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		expected int32
	}{
		{"known pro model", "gemini-3-pro-preview", 2_097_152},
		{"known flash model", "gemini-3-flash-preview", 1_048_576},
		{"embedding model", "text-embedding-004", 2_048},
		{"unknown model falls back", "some-future-model", DefaultLimit},
		{"empty model falls back", "", DefaultLimit},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Limit(tc.model); got != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, got)
			}
		})
	}
}
