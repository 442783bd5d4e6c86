package api

import (
	"strings"

	"github.com/GlintPay/gccs-vault/environment"
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/rs/zerolog/log"
)

func shouldSkipCompletelyReplacedFlattenedList(psName string, lists *hashset.Set, k string) bool {
	listName, ok := flattenedListName(k)
	if ok && lists.Contains(listName) {
		log.Info().Msgf("Skipping overridden list entry [%s] in source [%s]", k, psName)
		return true
	}
	return false
}

// findCompletelyReplacedFlattenedLists expects sources lowest precedence first. A list is only ever taken
// whole from the highest source defining it, so for each source it returns the lists a higher one replaces.
func findCompletelyReplacedFlattenedLists(sources []environment.PropertySource) []*hashset.Set {
	listsToRemove := make([]*hashset.Set, len(sources))
	for i, ps := range sources {
		listsToRemove[i] = findFlattenedLists(ps.Source)
	}

	listsSoFar := hashset.New()

	for i := len(sources) - 1; i >= 0; i-- { // reverse order
		for _, listName := range listsToRemove[i].Values() {
			if !listsSoFar.Contains(listName) {
				listsSoFar.Add(listName)
				listsToRemove[i].Remove(listName)
			}
		}
	}

	return listsToRemove
}

func findFlattenedLists(source map[string]string) *hashset.Set {
	listNames := hashset.New()
	for propertyName := range source {
		if listName, ok := flattenedListName(propertyName); ok {
			listNames.Add(listName)
		}
	}
	return listNames
}

// flattenedListName turns `a.b[2].c` into `a.b`
func flattenedListName(propertyName string) (string, bool) {
	idx := strings.IndexByte(propertyName, '[')
	if idx <= 0 || !strings.Contains(propertyName[idx:], "]") {
		return "", false
	}
	return propertyName[:idx], true
}
