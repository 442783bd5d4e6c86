package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/GlintPay/gccs-vault/backend"
	"github.com/GlintPay/gccs-vault/config"
	"github.com/GlintPay/gccs-vault/environment"
	"github.com/GlintPay/gccs-vault/utils"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/riandyrn/otelchi"
	"github.com/rs/zerolog/log"
)

const (
	applicationJSON = "application/json"
)

// EnvironmentFinder is satisfied by *environment.Repository
type EnvironmentFinder interface {
	FindOne(ctxt context.Context, req environment.Request) (*environment.Environment, error)
}

type Routing struct {
	ServerName   string
	ParentRouter chi.Router

	AppConfig    config.ApplicationConfiguration
	Repository   EnvironmentFinder
	Placeholders PlaceholderSource
}

type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func (rtr *Routing) SetupFunctionalRoutes(r chi.Router) error {
	if e := rtr.enableOTelForRouter(r); e != nil {
		return e
	}

	r.Get("/{application}/{profiles}", rtr.environmentHandler(false))
	r.Get("/{application}/{profiles}/{label}", rtr.environmentHandler(false))
	r.Patch("/{application}/{profiles}", rtr.environmentHandler(true))
	r.Patch("/{application}/{profiles}/{label}", rtr.environmentHandler(true))

	return nil
}

func (rtr *Routing) environmentHandler(acceptInjections bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := rtr.newRequestFromChi(r)

		log.Info().Msgf("Requesting: [%s]/%v/[%s]", req.Application, req.Profiles, req.Label)

		env, err := rtr.Repository.FindOne(r.Context(), req.Request)
		if err != nil {
			rtr.writeError(w, err)
			return
		}

		if !req.Resolve {
			configJsonBytes, outputErr := marshalResponseJson(env, req.PrettyPrintJson)
			rtr.handleOutput(w, outputErr, configJsonBytes, req.LogResponses)
			return
		}

		injected := InjectedProperties{}
		if acceptInjections {
			if injected, err = readInjections(r.Body); err != nil {
				rtr.writeError(w, err)
				return
			}
		}

		resolver := rtr.newResolver()
		values, metadata, err := resolver.ReconcileProperties(r.Context(), env, injected)
		if err != nil {
			rtr.writeError(w, err)
			return
		}

		writeHeaders(w.Header(), req, metadata, env)

		var output any = values
		if req.Unflatten {
			output = UnflattenValues(values)
		}

		configJsonBytes, outputErr := marshalResponseJson(output, req.PrettyPrintJson)
		rtr.handleOutput(w, outputErr, configJsonBytes, req.LogResponses)
	}
}

func readInjections(body io.Reader) (InjectedProperties, error) {
	injected := InjectedProperties{}
	if body == nil {
		return injected, nil
	}

	bs, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(bs))) == 0 {
		return injected, nil
	}

	if err := json.Unmarshal(bs, &injected); err != nil {
		return nil, &badRequestError{err: errors.Wrap(err, "injected properties")}
	}
	return injected, nil
}

func marshalResponseJson(val any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(val, "", "  ")
	}
	return json.Marshal(val)
}

func writeHeaders(header http.Header, req ConfigurationRequest, metadata ResolutionMetadata, env *environment.Environment) {
	header.Set("X-Resolution-PrecedenceDisplayMessage", metadata.PrecedenceDisplayMessage)
	header.Set("X-Resolution-Name", req.Application)
	header.Set("X-Resolution-Profiles", strings.Join(req.Profiles, ","))
	header.Set("X-Resolution-Label", req.Label)
	header.Set("X-Resolution-Version", env.Version)
}

func (rtr *Routing) handleOutput(w http.ResponseWriter, err error, bytes []byte, logResponses bool) {
	if err != nil {
		rtr.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", applicationJSON)
	_, _ = w.Write(bytes)

	if logResponses {
		log.Debug().Msgf("Response: %s", string(bytes))
	}
}

func (rtr *Routing) writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", applicationJSON)
	w.WriteHeader(statusFor(err))

	info := map[string]any{"message": err.Error()}
	_ = json.NewEncoder(w).Encode(info)

	log.Error().Err(err).Stack().Msg("Response error")
}

func statusFor(err error) int {
	var authErr *backend.AuthError
	var transportErr *backend.TransportError
	var badRequest *badRequestError

	switch {
	case errors.As(err, &authErr), errors.As(err, &badRequest), errors.Is(err, environment.ErrNoApplication):
		return http.StatusBadRequest
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (rtr *Routing) newRequestFromChi(r *http.Request) ConfigurationRequest {
	queries := r.URL.Query()
	defaults := rtr.AppConfig.Defaults

	return ConfigurationRequest{
		Request: environment.Request{
			Application: chi.URLParam(r, "application"),
			Profiles:    utils.SplitProfileNames(chi.URLParam(r, "profiles")),
			Label:       chi.URLParam(r, "label"),
			AuthToken:   r.Header.Get(backend.TokenHeader),
			WatchState:  r.Header.Get(backend.StateHeader),
		},

		Resolve:         overrideBooleanDefault(queries.Get("resolve"), defaults.ResolvePropertySources),
		Unflatten:       overrideBooleanDefault(queries.Get("unflatten"), defaults.UnflattenResolved),
		LogResponses:    overrideBooleanDefault(queries.Get("logResponses"), defaults.LogResponses),
		PrettyPrintJson: overrideBooleanDefault(queries.Get("pretty"), defaults.PrettyPrintJson),
	}
}

func (rtr *Routing) enableOTelForRouter(r chi.Router) error {
	if !rtr.AppConfig.Tracing.Enabled {
		return nil
	}

	if rtr.ServerName == "" || rtr.ParentRouter == nil {
		return errors.New("OTel not configured")
	}

	r.Use(otelchi.Middleware(rtr.ServerName, otelchi.WithChiRoutes(rtr.ParentRouter)))

	log.Info().Msgf("OpenTelemetry trace is enabled")
	return nil
}

func (rtr *Routing) newResolver() Resolver {
	return Resolver{
		enableTrace:    rtr.AppConfig.Tracing.Enabled,
		placeholders:   rtr.Placeholders,
		templateConfig: rtr.AppConfig.Templates,
	}
}

func overrideBooleanDefault(queryValue string, defaultVal bool) bool {
	reqVal := strings.ToLower(queryValue)
	if reqVal == "true" {
		return true
	} else if reqVal == "false" {
		return false
	}
	return defaultVal
}
