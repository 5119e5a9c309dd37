package synthesis

import (
	"encoding/json"
	"regexp"
	"sort"
)

// eventTypePattern accepts hierarchical, full-stop delimited event types such as "invoice.paid"
var eventTypePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)*$`)

// EventTypes returns the distinct, sorted event types found in the top level "type"
// field of JSON bodies. Bodies that are not JSON objects are ignored.
func EventTypes(bodies []string) []string {
	seen := make(map[string]struct{})
	for _, body := range bodies {
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(body), &envelope); err != nil {
			continue
		}
		if !eventTypePattern.MatchString(envelope.Type) {
			continue
		}
		seen[envelope.Type] = struct{}{}
	}

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
