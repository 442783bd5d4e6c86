package api

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/GlintPay/gccs-vault/config"
	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const UnresolvedPropertyResult = ""

const maxPlaceholderDepth = 32

var placeholderRegex = regexp.MustCompile(`\$\{[^}]*}`)

// PlaceholderSource resolves placeholders that refer to something other than another property,
// e.g. `${k8s/secret:namespace/name/key}`
type PlaceholderSource interface {
	CanResolve(placeholder string) bool
	Resolve(ctx context.Context, placeholder string) (string, bool, error)
}

type PropertiesResolvable interface {
	resolvePlaceholdersFromTop() (ResolvedConfigValues, error)
}

type PropertiesResolver struct {
	ctxt     context.Context
	data     ResolvedConfigValues
	external PlaceholderSource
	messages []string

	templateConfig config.GoTemplate
	templatesData  map[string]any
}

func (pr *PropertiesResolver) resolvePlaceholdersFromTop() (ResolvedConfigValues, error) {
	if err := pr.resolvePlaceholders(pr.data); err != nil {
		return pr.data, err
	}
	return pr.data, nil
}

func (pr *PropertiesResolver) resolvePlaceholders(currentMap map[string]any) error {
	for propertyName, v := range currentMap {
		switch typedVal := v.(type) {
		case map[string]any:
			if err := pr.resolvePlaceholders(typedVal); err != nil {
				return err
			}
		case []string:
			for i, each := range typedVal {
				resolved, err := pr.resolveValue(propertyName, each)
				if err != nil {
					return err
				}
				typedVal[i] = resolved
			}
		case []any:
			for i, each := range typedVal {
				if str, ok := each.(string); ok {
					resolved, err := pr.resolveValue(propertyName, str)
					if err != nil {
						return err
					}
					typedVal[i] = resolved
				}
			}
		case string:
			resolved, err := pr.resolveValue(propertyName, typedVal)
			if err != nil {
				currentMap[propertyName] = UnresolvedPropertyResult
				return err
			}
			currentMap[propertyName] = resolved
		}
	}
	return nil
}

func (pr *PropertiesResolver) resolveValue(propertyName string, value string) (string, error) {
	resolved, err := pr.resolveString(propertyName, value, 0)
	if err != nil {
		return UnresolvedPropertyResult, err
	}
	return pr.renderTemplate(propertyName, resolved)
}

// Handles ${propertyName} and ${propertyName:defaultValueIfMissing}. Blank values don't trigger the default.
func (pr *PropertiesResolver) resolveString(propertyName string, value string, depth int) (string, error) {
	if depth > maxPlaceholderDepth {
		return UnresolvedPropertyResult, errors.Errorf("stack overflow found when resolving %s for property [%s]", value, propertyName)
	}

	var failure error

	result := placeholderRegex.ReplaceAllStringFunc(value, func(foundMatch string) string {
		if failure != nil {
			return UnresolvedPropertyResult
		}

		clause := strings.TrimSpace(foundMatch[2 : len(foundMatch)-1])
		if clause == "" {
			// ${} is not acceptable
			pr.addMessage("Missing placeholder [%s] for property [%s]", foundMatch, propertyName)
			return UnresolvedPropertyResult
		}

		if pr.external != nil && pr.external.CanResolve(clause) {
			val, found, err := pr.external.Resolve(pr.context(), clause)
			if err != nil {
				failure = errors.Wrapf(err, "resolving [%s] for property [%s]", clause, propertyName)
				return UnresolvedPropertyResult
			}
			if !found {
				pr.addMessage("Missing value for property [%s]", clause)
			}
			return val
		}

		sourceName, defaultValue, hasDefault := strings.Cut(clause, ":")

		if currVal, ok := pr.data[sourceName]; ok {
			currValStr, isString := currVal.(string)
			if !isString {
				// this value is fine, but convert to a string
				return fmt.Sprintf("%v", currVal)
			}
			if !placeholderRegex.MatchString(currValStr) {
				return currValStr
			}

			// recurse to resolve placeholder...
			resolved, err := pr.resolveString(sourceName, currValStr, depth+1)
			if err != nil {
				failure = err
				return UnresolvedPropertyResult
			}
			pr.data[sourceName] = resolved
			return resolved
		}

		if hasDefault {
			return defaultValue
		}

		pr.addMessage("Missing value for property [%s]", sourceName)
		return UnresolvedPropertyResult
	})

	if failure != nil {
		return UnresolvedPropertyResult, failure
	}
	return result, nil
}

func (pr *PropertiesResolver) renderTemplate(propertyName string, value string) (string, error) {
	delims := pr.templateConfig.Validate()
	if !strings.Contains(value, delims.LeftDelim) {
		return value, nil
	}

	tmpl, err := template.New(propertyName).
		Delims(delims.LeftDelim, delims.RightDelim).
		Funcs(templateFuncs()).
		Option("missingkey=error").
		Parse(value)
	if err != nil {
		return UnresolvedPropertyResult, errors.Wrapf(err, "template for property [%s]", propertyName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, pr.templatesData); err != nil {
		return UnresolvedPropertyResult, errors.Wrapf(err, "template for property [%s]", propertyName)
	}
	return buf.String(), nil
}

func templateFuncs() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["dashToUnderscore"] = func(s string) string {
		return strings.ReplaceAll(s, "-", "_")
	}
	return funcs
}

func (pr *PropertiesResolver) context() context.Context {
	if pr.ctxt == nil {
		return context.Background()
	}
	return pr.ctxt
}

func (pr *PropertiesResolver) addMessage(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	pr.messages = append(pr.messages, msg)
	log.Warn().Msg(msg)
}
