package api

import "fmt"

// Represent an override that has no effect, because a lower source already held the same value
type duplicate struct {
	key    string
	value  any
	source string
}

func (d duplicate) String() string {
	return fmt.Sprintf("%s: %v (%s);", d.key, d.value, d.source)
}
