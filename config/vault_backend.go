package config

import (
	"fmt"
	"strings"
)

type VaultVersion string

const (
	VaultV1 VaultVersion = "V1"
	VaultV2 VaultVersion = "V2"
)

const (
	DefaultVaultHost             = "127.0.0.1"
	DefaultVaultPort             = 8200
	DefaultVaultScheme           = "http"
	DefaultVaultBackend          = "secret"
	DefaultVaultKey              = "application"
	DefaultVaultProfileSeparator = ","
)

type VaultConfig struct {
	Disabled bool `json:"disabled"`
	Order    int  `json:"order"`

	Host    string       `json:"host"`
	Port    int          `json:"port"`
	Scheme  string       `json:"scheme"`
	Backend string       `json:"backend"`
	Version VaultVersion `json:"version"`

	// DefaultKey is shared by all applications. Set DisableDefaultKey to skip it entirely.
	DefaultKey        string `json:"defaultKey"`
	DisableDefaultKey bool   `json:"disableDefaultKey"`
	ProfileSeparator  string `json:"profileSeparator"`

	Namespace string `json:"namespace"`

	TimeoutMillis         int64 `json:"timeout"`
	HealthCheckRateMillis int64 `json:"healthCheckRate"`
}

// WithDefaults fills in anything left unset in the YAML configuration
func (vc VaultConfig) WithDefaults() VaultConfig {
	if vc.Host == "" {
		vc.Host = DefaultVaultHost
	}
	if vc.Port == 0 {
		vc.Port = DefaultVaultPort
	}
	if vc.Scheme == "" {
		vc.Scheme = DefaultVaultScheme
	}
	if vc.Backend == "" {
		vc.Backend = DefaultVaultBackend
	}
	if vc.DisableDefaultKey {
		vc.DefaultKey = ""
	} else if vc.DefaultKey == "" {
		vc.DefaultKey = DefaultVaultKey
	}
	if vc.ProfileSeparator == "" {
		vc.ProfileSeparator = DefaultVaultProfileSeparator
	}
	if vc.Version == "" {
		vc.Version = VaultV1
	}
	vc.Version = VaultVersion(strings.ToUpper(string(vc.Version)))
	return vc
}

// ConfigurationError is returned for settings that make the backend unusable, before any request is made
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid vault configuration [%s]: %s", e.Field, e.Reason)
}

func (vc VaultConfig) Validate() error {
	switch {
	case strings.TrimSpace(vc.Host) == "":
		return &ConfigurationError{Field: "host", Reason: "must not be empty"}
	case vc.Port < 1 || vc.Port > 65535:
		return &ConfigurationError{Field: "port", Reason: fmt.Sprintf("%d is outside 1-65535", vc.Port)}
	case vc.Scheme != "http" && vc.Scheme != "https":
		return &ConfigurationError{Field: "scheme", Reason: fmt.Sprintf("unsupported scheme [%s]", vc.Scheme)}
	case strings.TrimSpace(vc.Backend) == "":
		return &ConfigurationError{Field: "backend", Reason: "must not be empty"}
	case vc.ProfileSeparator == "":
		return &ConfigurationError{Field: "profileSeparator", Reason: "must not be empty"}
	case vc.Version != VaultV1 && vc.Version != VaultV2:
		return &ConfigurationError{Field: "version", Reason: fmt.Sprintf("unknown version [%s]", vc.Version)}
	}
	return nil
}

func (vc VaultConfig) Address() string {
	return fmt.Sprintf("%s://%s:%d", vc.Scheme, vc.Host, vc.Port)
}
