package test

import (
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/wolfeidau/unflatten"
)

var listEntryRegex = regexp.MustCompile(`^(.+)\[(\d+)]$`)

// MarshalFlattenedTo Marshal a map of properties to a result structure without unflattening any
// hierarchical property names, e.g. `service.host: foo` and `service.port: 123` are not combined
// under a common parent. `from` tags are required for this to work.
func MarshalFlattenedTo(v map[string]any, outputStruct any) error {
	return marshalTo(v, outputStruct)
}

// MarshalHierarchicalTo Marshal a map of properties to a result structure, restructuring
// hierarchical properties, such that `service.host: foo` and `service.port: 123` are grouped
// under a common parent, and `list[0]`, `list[1]` become a single list.
func MarshalHierarchicalTo(v map[string]any, outputStruct any) error {
	nested := unflatten.Unflatten(v, func(k string) []string { return strings.Split(k, ".") })
	return marshalTo(handleFlattenedLists(nested).(map[string]any), outputStruct)
}

// Property values arrive as strings, so lean on weak typing plus hooks for the richer types
func marshalTo(source map[string]any, outputStruct any) error {
	config := &mapstructure.DecoderConfig{
		Metadata:         nil,
		ZeroFields:       true,
		WeaklyTypedInput: true,
		TagName:          "from",
		Result:           outputStruct,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToDecimalHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}
	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}

	return decoder.Decode(source)
}

func stringToDecimalHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(decimal.Decimal{}) {
			return data, nil
		}
		return decimal.NewFromString(data.(string))
	}
}

// handleFlattenedLists regroups `name[i]` entries of every map into a `name` list
func handleFlattenedLists(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		lists := map[string]map[int]any{}
		for k, v := range typed {
			typed[k] = handleFlattenedLists(v)

			match := listEntryRegex.FindStringSubmatch(k)
			if match == nil {
				continue
			}
			idx, err := strconv.Atoi(match[2])
			if err != nil {
				continue
			}
			if lists[match[1]] == nil {
				lists[match[1]] = map[int]any{}
			}
			lists[match[1]][idx] = typed[k]
			delete(typed, k)
		}

		for name, entries := range lists {
			typed[name] = toList(entries)
		}
		return typed
	default:
		return value
	}
}

func toList(entries map[int]any) []any {
	indexes := make([]int, 0, len(entries))
	for idx := range entries {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	list := make([]any, 0, len(indexes))
	for _, idx := range indexes {
		list = append(list, entries[idx])
	}
	return list
}
