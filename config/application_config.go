package config

type Configuration struct {
	ApplicationConfigFileYmlPath string `env:"APP_CONFIG_FILE_YML_PATH" envDefault:"application.yml"`
}

// ApplicationConfiguration Must use full names for `sigs.k8s.io/yaml`
type ApplicationConfiguration struct {
	Server     Server
	Logging    Logging
	Prometheus Prometheus
	Vault      VaultConfig
	K8s        K8sConfig
	Defaults   Defaults
	Templates  GoTemplate
	Tracing    Tracing
}

type Defaults struct {
	ResolvePropertySources bool
	UnflattenResolved      bool
	LogResponses           bool
	PrettyPrintJson        bool
}

type Server struct {
	Port int
}

type Logging struct {
	Level string
}

type Tracing struct {
	Enabled         bool
	Endpoint        string
	SamplerFraction float64
}

type Prometheus struct {
	Path string
}
