package vault

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/GlintPay/gccs-vault/backend"
	"github.com/GlintPay/gccs-vault/config"
	gotel "github.com/GlintPay/gccs-vault/otel"
	vault "github.com/hashicorp/vault/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (s *Backend) Init(ctxt context.Context, appConfig config.ApplicationConfiguration) error {
	s.Config = appConfig.Vault.WithDefaults()
	s.EnableTrace = s.EnableTrace || appConfig.Tracing.Enabled
	if err := s.Config.Validate(); err != nil {
		return errors.WithStack(err)
	}

	if s.Client == nil {
		client, err := newClient(s.Config)
		if err != nil {
			return errors.Wrap(err, "vault client")
		}
		s.Client = client
	}

	log.Info().Msgf("Reading from Vault at %s, backend [%s], API %s", s.Config.Address(), s.Config.Backend, s.Config.Version)

	if s.Config.HealthCheckRateMillis > 0 {
		return s.scheduleHealthChecks(ctxt)
	}
	return nil
}

func newClient(vc config.VaultConfig) (*vault.Client, error) {
	apiCfg := vault.DefaultConfig()
	apiCfg.Address = vc.Address()
	apiCfg.MaxRetries = 0 // a failed read fails the whole resolution

	if vc.TimeoutMillis > 0 {
		apiCfg.Timeout = time.Duration(vc.TimeoutMillis) * time.Millisecond
	}

	client, err := vault.NewClient(apiCfg)
	if err != nil {
		return nil, err
	}

	// Never fall back to a process-wide token: every read must carry the caller's
	client.ClearToken()

	if vc.Namespace != "" {
		client.SetNamespace(vc.Namespace)
	}
	return client, nil
}

// Read fetches the payload stored under one candidate key. A 404 yields backend.Absent, not an error.
func (s *Backend) Read(ctxt context.Context, key string, token string) (backend.Payload, error) {
	if token == "" {
		return backend.Absent, errors.WithStack(&backend.AuthError{Header: backend.TokenHeader})
	}

	if s.EnableTrace {
		var span trace.Span
		ctxt, span = gotel.GetTracer(ctxt).Start(ctxt, "vault-read", gotel.ClientOptions, trace.WithAttributes(attribute.String("vault.key", key)))
		defer span.End()
	}

	started := time.Now()
	payload, err := s.read(ctxt, key, token)
	observeRead(started, payload, err)
	return payload, err
}

func (s *Backend) read(ctxt context.Context, key string, token string) (backend.Payload, error) {
	req := s.Client.NewRequest(http.MethodGet, s.secretPath(key))
	req.ClientToken = token

	//nolint:staticcheck // the raw response is needed to tell a 404 apart from other failures
	resp, err := s.Client.RawRequestWithContext(ctxt, req)
	if resp != nil && resp.Response != nil {
		defer func() { _ = resp.Body.Close() }()
	}

	if err != nil {
		if statusOf(resp) == http.StatusNotFound {
			log.Debug().Msgf("No secret at [%s]", key)
			return backend.Absent, nil
		}
		return backend.Absent, errors.WithStack(&backend.TransportError{Key: key, StatusCode: statusOf(resp), Err: err})
	}

	if resp.StatusCode != http.StatusOK {
		log.Debug().Msgf("No secret body at [%s], status %d", key, resp.StatusCode)
		return backend.Absent, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return backend.Absent, errors.WithStack(&backend.TransportError{Key: key, StatusCode: resp.StatusCode, Err: err})
	}

	payload, err := Decode(body, s.Config.Version)
	if err != nil {
		return backend.Absent, errors.WithStack(&backend.TransportError{Key: key, StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed response: %w", err)})
	}
	return payload, nil
}

func (s *Backend) secretPath(key string) string {
	if s.Config.Version == config.VaultV2 {
		return fmt.Sprintf("/v1/%s/data/%s", s.Config.Backend, key)
	}
	return fmt.Sprintf("/v1/%s/%s", s.Config.Backend, key)
}

func statusOf(resp *vault.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}

func (s *Backend) Close() {
	if s.scheduler != nil {
		s.scheduler.Shutdown()
	}
}
