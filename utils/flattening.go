package utils

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlattenToProperties turns a parsed document into string properties, e.g.
// `site: {url: x}` becomes `site.url=x` and `currencies: [USD]` becomes `currencies[0]=USD`.
// Null values and empty collections are kept as empty strings so the name stays visible.
func FlattenToProperties(m map[string]any) map[string]string {
	r := make(map[string]string)
	for k, v := range m {
		flattenRecursive(r, k, v)
	}
	return r
}

func flattenRecursive(r map[string]string, name string, v any) {
	switch typed := v.(type) {
	case map[string]any:
		if len(typed) == 0 {
			r[name] = ""
			return
		}
		for k, child := range typed {
			flattenRecursive(r, name+"."+k, child)
		}
	case []any:
		if len(typed) == 0 {
			r[name] = ""
			return
		}
		for i, child := range typed {
			flattenRecursive(r, name+"["+strconv.Itoa(i)+"]", child)
		}
	case nil:
		r[name] = ""
	case string:
		r[name] = typed
	case json.Number:
		r[name] = typed.String()
	default:
		r[name] = fmt.Sprintf("%v", typed)
	}
}
