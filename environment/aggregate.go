package environment

import (
	"github.com/GlintPay/gccs-vault/backend"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const SourcePrefix = "vault:"

// Layer is what one candidate key produced
type Layer struct {
	Key     string
	Payload backend.Payload
}

// PayloadParser turns a serialized payload into flat properties
type PayloadParser func(data []byte) (map[string]string, error)

// Merge assembles the layers, in the order given, into an Environment. Absent payloads, and payloads
// without any properties, contribute no property source.
func Merge(application string, profiles []string, label string, state *string, layers []Layer, parse PayloadParser) (*Environment, error) {
	env := &Environment{
		Name:            application,
		Profiles:        profiles,
		Label:           label,
		State:           state,
		PropertySources: make([]PropertySource, 0, len(layers)),
	}

	for _, layer := range layers {
		data, found := layer.Payload.Get()
		if !found {
			continue
		}

		properties, err := parse([]byte(data))
		if err != nil {
			return nil, errors.WithStack(&backend.ParseError{Key: layer.Key, Err: err})
		}

		if len(properties) == 0 {
			log.Debug().Msgf("No properties found at [%s]", layer.Key)
			continue
		}

		env.PropertySources = append(env.PropertySources, PropertySource{
			Name:   SourcePrefix + layer.Key,
			Source: properties,
		})
	}

	return env, nil
}
