// Package tokens maps model identifiers to their context window sizes.
package tokens

// DefaultLimit is used for models not present in the table.
const DefaultLimit int32 = 1_048_576

var limits = map[string]int32{
	"gemini-3-pro-preview":   2_097_152,
	"gemini-3-flash-preview": 1_048_576,
	"gemini-1.5-pro":         2_097_152,
	"gemini-1.5-flash":       1_048_576,
	"gemini-1.5-flash-8b":    1_048_576,
	"gemini-2.0-flash":       1_048_576,
	"gemini-2.0-flash-lite":  1_048_576,
	"gemini-embedding-001":   2_048,
	"text-embedding-004":     2_048,
}

// Limit returns the token budget for the given model, falling back to
// DefaultLimit for unknown identifiers.
func Limit(model string) int32 {
	if limit, ok := limits[model]; ok {
		return limit
	}
	return DefaultLimit
}
