package environment

import (
	"github.com/GlintPay/gccs-vault/utils"
)

// ResolveKeys lists the candidate keys for an application, most specific first, e.g. for
// application "app", profiles [prod eu], default key "application" and separator ",":
//
//	app,prod  app,eu  app  application,prod  application,eu  application
//
// Each base contributes its profile keys ahead of the bare base. Within a base, profiles keep the
// order they were requested in, so the first requested profile wins rather than the last.
// The application outranks the shared default key, which is skipped when empty or equal to the application.
func ResolveKeys(application string, profiles []string, defaultKey string, separator string) []string {
	scrubbed := utils.ScrubProfiles(profiles)

	bases := []string{application}
	if defaultKey != "" && defaultKey != application {
		bases = append(bases, defaultKey)
	}

	keys := make([]string, 0, len(bases)*(len(scrubbed)+1))
	for _, base := range bases {
		keys = addProfiles(keys, base, scrubbed, separator)
		keys = append(keys, base)
	}
	return keys
}

func addProfiles(keys []string, base string, profiles []string, separator string) []string {
	for _, profile := range profiles {
		keys = append(keys, base+separator+profile)
	}
	return keys
}
