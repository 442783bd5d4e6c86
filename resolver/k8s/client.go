package k8s

import (
	"context"
	"sync"
	"time"

	"github.com/GlintPay/gccs-vault/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

type resourceKind string

const (
	secretKind    resourceKind = "secret"
	configMapKind resourceKind = "configmap"
)

// Client reads single entries out of Secrets and ConfigMaps, optionally caching them for a while
type Client struct {
	clientset kubernetes.Interface
	cache     *resourceCache
}

type resourceCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	value     string
	found     bool
	expiresAt time.Time
}

// NewClient connects using the kubeconfig file when one is configured, else the pod's service account
func NewClient(cfg config.K8sConfig) (*Client, error) {
	restConfig, err := restConfigFor(cfg)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.Wrap(err, "kubernetes clientset")
	}

	return NewClientFor(clientset, cfg), nil
}

func NewClientFor(clientset kubernetes.Interface, cfg config.K8sConfig) *Client {
	client := &Client{clientset: clientset}

	if cfg.CacheTTLSeconds > 0 {
		client.cache = &resourceCache{
			entries: make(map[string]cacheEntry),
			ttl:     time.Duration(cfg.CacheTTLSeconds) * time.Second,
			now:     time.Now,
		}
		log.Info().Int("ttl_seconds", cfg.CacheTTLSeconds).Msg("K8s resource caching enabled")
	}
	return client
}

func restConfigFor(cfg config.K8sConfig) (*rest.Config, error) {
	if cfg.Kubeconfig != "" {
		restConfig, err := clientcmd.BuildConfigFromFlags("", cfg.Kubeconfig)
		if err != nil {
			return nil, errors.Wrapf(err, "kubeconfig %s", cfg.Kubeconfig)
		}
		log.Info().Str("kubeconfig", cfg.Kubeconfig).Msg("Using kubeconfig for K8s authentication")
		return restConfig, nil
	}

	restConfig, err := rest.InClusterConfig()
	if err != nil {
		return nil, errors.Wrap(err, "in-cluster config")
	}
	log.Info().Msg("Using in-cluster K8s authentication")
	return restConfig, nil
}

// Lookup returns one entry of a Secret or ConfigMap. A missing object or entry is not an error.
func (c *Client) Lookup(ctx context.Context, kind resourceKind, namespace, name, key string) (string, bool, error) {
	cacheKey := string(kind) + ":" + namespace + "/" + name + "/" + key

	if c.cache != nil {
		if entry, ok := c.cache.get(cacheKey); ok {
			return entry.value, entry.found, nil
		}
	}

	log.Debug().Msgf("Fetching K8s %s [%s/%s] with key [%s]...", kind, namespace, name, key)

	var value string
	var found bool
	var err error

	switch kind {
	case secretKind:
		value, found, err = c.secretValue(ctx, namespace, name, key)
	case configMapKind:
		value, found, err = c.configMapValue(ctx, namespace, name, key)
	default:
		return "", false, errors.Errorf("unknown resource kind %s", kind)
	}

	if err != nil {
		return "", false, err
	}

	if c.cache != nil {
		c.cache.set(cacheKey, value, found)
	}
	return value, found, nil
}

func (c *Client) secretValue(ctx context.Context, namespace, name, key string) (string, bool, error) {
	secret, err := c.clientset.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "secret %s/%s", namespace, name)
	}

	if data, ok := secret.Data[key]; ok {
		return string(data), true, nil
	}
	if data, ok := secret.StringData[key]; ok {
		return data, true, nil
	}
	return "", false, nil
}

func (c *Client) configMapValue(ctx context.Context, namespace, name, key string) (string, bool, error) {
	configMap, err := c.clientset.CoreV1().ConfigMaps(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "configmap %s/%s", namespace, name)
	}

	if value, ok := configMap.Data[key]; ok {
		return value, true, nil
	}
	if binData, ok := configMap.BinaryData[key]; ok {
		return string(binData), true, nil
	}
	return "", false, nil
}

func (rc *resourceCache) get(key string) (cacheEntry, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	entry, ok := rc.entries[key]
	if !ok || rc.now().After(entry.expiresAt) {
		return cacheEntry{}, false
	}
	return entry, true
}

func (rc *resourceCache) set(key, value string, found bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.entries[key] = cacheEntry{
		value:     value,
		found:     found,
		expiresAt: rc.now().Add(rc.ttl),
	}
}
