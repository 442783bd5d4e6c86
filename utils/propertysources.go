package utils

import "strings"

// StripSourcePrefix drops the `vault:` style origin prefix from a property source name
func StripSourcePrefix(name string) string {
	if idx := strings.Index(name, ":"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
