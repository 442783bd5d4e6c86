package vault

import (
	"sync"

	"codnect.io/chrono"
	"github.com/GlintPay/gccs-vault/config"
	vault "github.com/hashicorp/vault/api"
)

// Backend reads configuration held as serialized YAML/JSON documents in a Vault KV engine.
// A single instance is shared by all requests: the caller's token travels with each read.
type Backend struct {
	Config      config.VaultConfig
	Client      *vault.Client
	EnableTrace bool

	scheduler chrono.TaskScheduler

	healthLock sync.RWMutex
	healthErr  error
}

func (s *Backend) Order() int {
	return s.Config.Order
}
