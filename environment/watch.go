package environment

// Watch maps the state a client last saw onto the state returned with a fresh Environment.
// The value is opaque here, and nil means no state is tracked.
type Watch interface {
	Watch(state string) *string
}

// DefaultWatch does not track changes
type DefaultWatch struct{}

func (DefaultWatch) Watch(string) *string {
	return nil
}

type WatchFunc func(state string) *string

func (f WatchFunc) Watch(state string) *string {
	return f(state)
}
