package api

import (
	"context"
	"reflect"
	"strings"

	"github.com/GlintPay/gccs-vault/config"
	"github.com/GlintPay/gccs-vault/environment"
	gotel "github.com/GlintPay/gccs-vault/otel"
	"github.com/GlintPay/gccs-vault/utils"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/unflatten"
	"go.opentelemetry.io/otel/trace"
)

type Resolvable interface {
	ReconcileProperties(ctxt context.Context, env *environment.Environment, injections InjectedProperties) (ResolvedConfigValues, ResolutionMetadata, error)
}

type Resolver struct {
	enableTrace              bool
	placeholders             PlaceholderSource
	templateConfig           config.GoTemplate
	pointlessOverrides       []duplicate
	propertiesResolverGetter func(context.Context, ResolvedConfigValues, map[string]any) PropertiesResolvable
}

// ReconcileProperties collapses the property sources of env, most specific first, into a single set of values
func (f *Resolver) ReconcileProperties(ctxt context.Context, env *environment.Environment, injections InjectedProperties) (ResolvedConfigValues, ResolutionMetadata, error) {
	if f.enableTrace {
		var span trace.Span
		ctxt, span = gotel.GetTracer(ctxt).Start(ctxt, "reconcile", gotel.ServerOptions)
		defer span.End()
	}

	reconciled := make(ResolvedConfigValues)

	// Copy ^ ones at lowest level
	for k, v := range injections {
		if preprocess(k) {
			f.overrideValue(reconciled, k[1:], v, "preprocess")
		}
	}

	layered := lowestPrecedenceFirst(env.PropertySources)
	replacedLists := findCompletelyReplacedFlattenedLists(layered)

	for i, ps := range layered {
		for k, v := range ps.Source {
			if shouldSkipCompletelyReplacedFlattenedList(ps.Name, replacedLists[i], k) {
				continue
			}
			f.overrideValue(reconciled, k, v, ps.Name)
		}
	}

	rr := f.newPropertiesResolver(ctxt, reconciled, templatesData(env))
	if _, e := rr.resolvePlaceholdersFromTop(); e != nil {
		return reconciled, ResolutionMetadata{}, e
	}

	// Copy non-^ ones at highest level
	for k, v := range injections {
		if postprocess(k) {
			f.overrideValue(reconciled, k, v, "postprocess")
		}
	}

	if len(f.pointlessOverrides) > 0 {
		log.Info().Msgf("Unnecessary overrides were found: %v", f.pointlessOverrides)
	}

	return reconciled, ResolutionMetadata{
		PrecedenceDisplayMessage: getPropertySourceNames(env.PropertySources),
	}, nil
}

func (f *Resolver) overrideValue(reconciled ResolvedConfigValues, k string, v any, source string) {
	currValue, exists := reconciled[k]
	if !exists || currValue == nil {
		reconciled[k] = v
		return
	}

	vKind := reflect.ValueOf(v).Kind()

	// Special treatment for Maps
	if vKind == reflect.Map {
		if m, ok := currValue.(map[string]any); ok {
			if vm, ok := v.(map[string]any); ok {
				for ck, cv := range vm {
					m[ck] = cv
				}
				return
			}
		}
		reconciled[k] = v
		return
	}

	// Special treatment for Slices
	if vKind == reflect.Slice {
		// Completely replace the list, don't merge it
		reconciled[k] = v
		return
	}

	if reflect.TypeOf(currValue).Comparable() && currValue == v {
		f.pointlessOverrides = append(f.pointlessOverrides, duplicate{key: k, value: v, source: source})
		return
	}
	reconciled[k] = v
}

func (f *Resolver) newPropertiesResolver(ctxt context.Context, vals ResolvedConfigValues, data map[string]any) PropertiesResolvable {
	if f.propertiesResolverGetter == nil {
		f.propertiesResolverGetter = func(c context.Context, r ResolvedConfigValues, d map[string]any) PropertiesResolvable {
			return &PropertiesResolver{
				ctxt:           c,
				data:           r,
				external:       f.placeholders,
				templateConfig: f.templateConfig.Validate(),
				templatesData:  d,
			}
		}
	}

	return f.propertiesResolverGetter(ctxt, vals, data)
}

func templatesData(env *environment.Environment) map[string]any {
	return map[string]any{
		"Applications": []string{env.Name},
		"Profiles":     utils.ScrubProfiles(env.Profiles),
		"Label":        env.Label,
	}
}

func lowestPrecedenceFirst(sources []environment.PropertySource) []environment.PropertySource {
	reversed := make([]environment.PropertySource, len(sources))
	for i, ps := range sources {
		reversed[len(sources)-1-i] = ps
	}
	return reversed
}

func getPropertySourceNames(sources []environment.PropertySource) string {
	if len(sources) < 1 {
		return ""
	}

	s := make([]string, 0, len(sources))
	for _, ps := range sources {
		s = append(s, utils.StripSourcePrefix(ps.Name))
	}
	return strings.Join(s, " > ")
}

// UnflattenValues nests dotted property names, so that `a.b: 1` becomes `a: {b: 1}`
func UnflattenValues(values ResolvedConfigValues) map[string]any {
	return unflatten.Unflatten(values, func(k string) []string { return strings.Split(k, ".") })
}
