package api

import "github.com/GlintPay/gccs-vault/environment"

// ConfigurationRequest is an environment.Request plus the output options chosen for this call
type ConfigurationRequest struct {
	environment.Request

	Resolve         bool
	Unflatten       bool
	LogResponses    bool
	PrettyPrintJson bool
}

type ResolvedConfigValues map[string]any

type ResolutionMetadata struct {
	PrecedenceDisplayMessage string
}
