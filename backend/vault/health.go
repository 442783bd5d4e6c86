package vault

import (
	"context"
	"time"

	"codnect.io/chrono"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var errNotProbed = errors.New("vault health not yet checked")

func (s *Backend) scheduleHealthChecks(ctxt context.Context) error {
	s.setHealth(errNotProbed)

	s.scheduler = chrono.NewDefaultTaskScheduler()

	period := time.Duration(s.Config.HealthCheckRateMillis) * time.Millisecond
	log.Info().Msgf("Scheduling Vault health check every %v", period)

	_, err := s.scheduler.ScheduleAtFixedRate(func(_ context.Context) {
		s.setHealth(s.probe(ctxt))
	}, period)
	return err
}

func (s *Backend) probe(ctxt context.Context) error {
	resp, err := s.Client.Sys().HealthWithContext(ctxt)
	if err != nil {
		log.Warn().Err(err).Msg("Vault health check failed")
		return errors.Wrap(err, "vault health")
	}
	if !resp.Initialized {
		return errors.New("vault is not initialized")
	}
	if resp.Sealed {
		return errors.New("vault is sealed")
	}
	return nil
}

func (s *Backend) setHealth(err error) {
	s.healthLock.Lock()
	defer s.healthLock.Unlock()
	s.healthErr = err
}

// Healthy reports the result of the latest scheduled probe. Always nil when probing is disabled.
func (s *Backend) Healthy() error {
	s.healthLock.RLock()
	defer s.healthLock.RUnlock()
	return s.healthErr
}
