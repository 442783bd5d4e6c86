package environment

// Request is one resolution: the token and watch state arrive out of band from the caller's transport
type Request struct {
	Application string
	Profiles    []string
	Label       string
	AuthToken   string
	WatchState  string
}

// Environment is the layered result. Earlier property sources take precedence over later ones.
type Environment struct {
	Name            string           `json:"name"`
	Profiles        []string         `json:"profiles"`
	Label           string           `json:"label"`
	Version         string           `json:"version"`
	State           *string          `json:"state"`
	PropertySources []PropertySource `json:"propertySources"`
}

type PropertySource struct {
	Name   string            `json:"name"`
	Source map[string]string `json:"source"`
}

// Get returns the effective value of a property: the first source defining it wins
func (e *Environment) Get(name string) (string, bool) {
	for _, ps := range e.PropertySources {
		if v, ok := ps.Source[name]; ok {
			return v, true
		}
	}
	return "", false
}
