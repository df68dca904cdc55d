package masking

import (
	"sort"
	"strings"
)

const (
	maskToken = "****"

	// values shorter than this are hidden entirely
	minRevealLength = 12
	revealSuffix    = 4
)

var secretMarkers = []string{"secret", "password", "token", "signature", "key"}

// MaskSecret hides a credential value, keeping the last four characters of
// long identifiers so operators can tell two client IDs apart.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) < minRevealLength {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-revealSuffix:]
}

// MaskFields returns a copy of input suitable for audit metadata. Fields whose
// name marks them as secret never reveal a suffix.
func MaskFields(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		name := strings.TrimSpace(key)
		if name == "" {
			continue
		}
		masked[name] = maskValue(isSecretField(name), value)
	}

	if len(masked) == 0 {
		return nil
	}
	return masked
}

// FieldNames lists the non-empty keys of input in sorted order, for audit
// entries that only record which fields changed.
func FieldNames(input map[string]any) []string {
	names := make([]string, 0, len(input))
	for key := range input {
		if name := strings.TrimSpace(key); name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func maskValue(secret bool, value any) any {
	switch cast := value.(type) {
	case string:
		if cast == "" {
			return ""
		}
		if secret {
			return maskToken
		}
		return MaskSecret(cast)
	case map[string]any:
		return MaskFields(cast)
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, maskValue(secret, item))
		}
		return out
	default:
		return value
	}
}

func isSecretField(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range secretMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
