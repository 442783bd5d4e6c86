package utils

import (
	"strings"
)

const (
	DefaultProfileName = "default"
)

func SplitProfileNames(csv string) []string {
	return splitNonEmpty(csv)
}

// ScrubProfiles drops the implicit "default" profile, which never contributes a key of its own
func ScrubProfiles(profiles []string) []string {
	scrubbed := make([]string, 0, len(profiles))
	for _, each := range profiles {
		if each != DefaultProfileName {
			scrubbed = append(scrubbed, each)
		}
	}
	return scrubbed
}

func splitNonEmpty(csv string) []string {
	array := strings.Split(csv, ",")
	adjusted := make([]string, 0)
	for _, each := range array {
		trimmed := strings.TrimSpace(each)
		if trimmed != "" {
			adjusted = append(adjusted, trimmed)
		}
	}
	return adjusted
}
