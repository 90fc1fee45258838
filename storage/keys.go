package storage

import (
	"fmt"
	"strings"
)

// validateKey rejects keys that cannot be mapped safely onto paths and
// object names. Keys are slash-separated segments of [A-Za-z0-9_.-].
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("invalid storage key: empty")
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("invalid storage key %q", key)
		}
		for _, r := range segment {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			case r == '_' || r == '-' || r == '.':
			default:
				return fmt.Errorf("invalid storage key %q", key)
			}
		}
	}
	return nil
}
