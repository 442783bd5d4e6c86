package config

// K8sConfig controls the `${k8s/...}` placeholder source used when resolving merged properties.
type K8sConfig struct {
	Enabled          bool   `json:"enabled"`
	Kubeconfig       string `json:"kubeconfig"`       // empty = in-cluster auth
	DefaultNamespace string `json:"defaultNamespace"` // used when a placeholder omits the namespace
	CacheTTLSeconds  int    `json:"cacheTTLSeconds"`  // 0 = no caching
}
