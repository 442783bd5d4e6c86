package api

import (
	"strings"
)

// InjectedProperties are supplied by the caller. Names starting with ^ sit beneath every
// property source, all others override them.
type InjectedProperties map[string]any

const lowestPrecedencePrefix = "^"

func preprocess(key string) bool {
	return strings.HasPrefix(key, lowestPrecedencePrefix)
}

func postprocess(key string) bool {
	return !strings.HasPrefix(key, lowestPrecedencePrefix)
}
