package environment

import (
	"context"

	"github.com/GlintPay/gccs-vault/backend"
	"github.com/GlintPay/gccs-vault/config"
	"github.com/GlintPay/gccs-vault/filetypes"
	gotel "github.com/GlintPay/gccs-vault/otel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrNoApplication = errors.New("application name is required")

// Repository resolves an Environment from one backend. It holds no per-request state and may be shared.
type Repository struct {
	Backend          backend.Backend
	Watch            Watch
	DefaultKey       string
	ProfileSeparator string
	Parser           PayloadParser
	EnableTrace      bool
}

func NewRepository(b backend.Backend, vc config.VaultConfig, watch Watch, enableTrace bool) *Repository {
	vc = vc.WithDefaults()

	return &Repository{
		Backend:          b,
		Watch:            watch,
		DefaultKey:       vc.DefaultKey,
		ProfileSeparator: vc.ProfileSeparator,
		Parser:           DefaultParser,
		EnableTrace:      enableTrace,
	}
}

var sopsAware = filetypes.YamlContext{Decrypter: filetypes.SopsDecrypter{}}

// DefaultParser accepts JSON or YAML, decrypting SOPS-encrypted payloads first
func DefaultParser(data []byte) (map[string]string, error) {
	return filetypes.ToProperties(data, sopsAware)
}

// FindOne reads every candidate key in turn, most specific first. Any failure aborts the whole resolution.
func (r *Repository) FindOne(ctxt context.Context, req Request) (*Environment, error) {
	if req.Application == "" {
		return nil, ErrNoApplication
	}
	if req.AuthToken == "" {
		return nil, errors.WithStack(&backend.AuthError{Header: backend.TokenHeader})
	}

	if r.EnableTrace {
		var span trace.Span
		ctxt, span = gotel.GetTracer(ctxt).Start(ctxt, "findOne", gotel.ServerOptions, trace.WithAttributes(attribute.String("application", req.Application)))
		defer span.End()
	}

	state := r.watch().Watch(req.WatchState)

	keys := ResolveKeys(req.Application, req.Profiles, r.DefaultKey, r.ProfileSeparator)
	log.Debug().Msgf("Resolving %s/%v [%s] from keys %v", req.Application, req.Profiles, req.Label, keys)

	layers := make([]Layer, 0, len(keys))
	for _, key := range keys {
		payload, err := r.Backend.Read(ctxt, key, req.AuthToken)
		if err != nil {
			return nil, err
		}
		layers = append(layers, Layer{Key: key, Payload: payload})
	}

	return Merge(req.Application, req.Profiles, req.Label, state, layers, r.parser())
}

func (r *Repository) parser() PayloadParser {
	if r.Parser == nil {
		return DefaultParser
	}
	return r.Parser
}

func (r *Repository) watch() Watch {
	if r.Watch == nil {
		return DefaultWatch{}
	}
	return r.Watch
}
