package health

import (
	"github.com/go-chi/chi/v5"
	"github.com/heptiolabs/healthcheck"
)

type opts struct {
	ChiMux          *chi.Mux
	readinessChecks map[string]healthcheck.Check
	livenessChecks  map[string]healthcheck.Check
}

type Opt func(*opts)

func WithChiMux(mux *chi.Mux) Opt {
	return func(o *opts) {
		o.ChiMux = mux
	}
}

// WithReadinessCheck takes the instance out of rotation while check fails, e.g. when Vault is sealed
func WithReadinessCheck(name string, check func() error) Opt {
	return func(o *opts) {
		if o.readinessChecks == nil {
			o.readinessChecks = map[string]healthcheck.Check{}
		}
		o.readinessChecks[name] = check
	}
}

func WithLivenessCheck(name string, check func() error) Opt {
	return func(o *opts) {
		if o.livenessChecks == nil {
			o.livenessChecks = map[string]healthcheck.Check{}
		}
		o.livenessChecks[name] = check
	}
}
