package k8s

import (
	"context"
	"strings"

	"github.com/GlintPay/gccs-vault/config"
	"github.com/pkg/errors"
)

const (
	PrefixK8sSecret      = "k8s/secret:"
	PrefixK8sConfigMap   = "k8s/configmap:"
	PrefixK8sConfigMapCM = "k8s/cm:" // shorthand for configmap
)

var prefixes = []struct {
	prefix string
	kind   resourceKind
}{
	{PrefixK8sSecret, secretKind},
	{PrefixK8sConfigMap, configMapKind},
	{PrefixK8sConfigMapCM, configMapKind},
}

// Resolver serves `${k8s/...}` property placeholders
type Resolver struct {
	client           *Client
	defaultNamespace string
}

func NewResolver(client *Client, cfg config.K8sConfig) *Resolver {
	return &Resolver{
		client:           client,
		defaultNamespace: cfg.DefaultNamespace,
	}
}

func IsK8sPlaceholder(placeholder string) bool {
	_, _, ok := splitPrefix(placeholder)
	return ok
}

func (r *Resolver) CanResolve(placeholder string) bool {
	return IsK8sPlaceholder(placeholder)
}

// Resolve fetches the value from Kubernetes. Placeholder formats:
//
//	k8s/secret:namespace/name/key
//	k8s/secret:name/key           (default namespace)
//	k8s/configmap:namespace/name/key
//	k8s/cm:name/key
func (r *Resolver) Resolve(ctx context.Context, placeholder string) (string, bool, error) {
	kind, path, ok := splitPrefix(placeholder)
	if !ok {
		return "", false, errors.Errorf("unknown k8s placeholder prefix: %s", placeholder)
	}

	namespace, name, key, err := r.parsePath(path)
	if err != nil {
		return "", false, err
	}

	return r.client.Lookup(ctx, kind, namespace, name, key)
}

func splitPrefix(placeholder string) (resourceKind, string, bool) {
	for _, each := range prefixes {
		if path, ok := strings.CutPrefix(placeholder, each.prefix); ok {
			return each.kind, path, true
		}
	}
	return "", "", false
}

func (r *Resolver) parsePath(path string) (namespace, name, key string, err error) {
	parts := strings.Split(path, "/")
	for _, each := range parts {
		if each == "" {
			return "", "", "", errors.Errorf("invalid k8s placeholder path (empty segment): %s", path)
		}
	}

	switch len(parts) {
	case 2:
		if r.defaultNamespace == "" {
			return "", "", "", errors.Errorf("no default namespace configured and placeholder missing namespace: %s", path)
		}
		return r.defaultNamespace, parts[0], parts[1], nil
	case 3:
		return parts[0], parts[1], parts[2], nil
	default:
		return "", "", "", errors.Errorf("invalid k8s placeholder path (expected 2 or 3 segments): %s", path)
	}
}
