// Package intent defines the closed topic enumeration of the helpdesk and
// the model-backed classifier that maps an inbound message onto it.
package intent

import (
	"fmt"
	"strings"
)

// Intent is one topic of the closed helpdesk catalog. Every intent has
// exactly one handler; every intent except Other has a knowledge namespace
// per visibility.
type Intent string

const (
	AcademicAdministration Intent = "academic_administration"
	ResourceService        Intent = "resource_service"
	Support                Intent = "support"
	Other                  Intent = "other"
)

// descriptions feed the classifier prompt and the catalog listing.
var descriptions = map[Intent]string{
	AcademicAdministration: "enrollment, course registration, grades, transcripts, tuition payments and academic calendars",
	ResourceService:        "library, laboratories, campus Wi-Fi, student portals, room bookings and other campus facilities",
	Support:                "account problems, technical issues and general complaints",
	Other:                  "greetings, small talk and anything that fits no other category",
}

// All returns every intent in a stable order.
func All() []Intent {
	return []Intent{AcademicAdministration, ResourceService, Support, Other}
}

// String returns the wire identifier of the intent.
func (i Intent) String() string { return string(i) }

// Description returns the human-readable summary of the intent's scope.
func (i Intent) Description() string { return descriptions[i] }

// Catalog renders the intent list as "identifier: description" lines for
// embedding into the classifier instruction.
func Catalog() string {
	var b strings.Builder
	for _, i := range All() {
		fmt.Fprintf(&b, "- %s: %s\n", i, i.Description())
	}
	return strings.TrimRight(b.String(), "\n")
}

// Parse matches raw model output against the catalog. Matching is
// case-insensitive and ignores surrounding whitespace, quotes and
// punctuation. The second return is false when nothing matches.
func Parse(raw string) (Intent, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.Trim(cleaned, "\"'`.,:;!* \t\n")

	for _, i := range All() {
		if cleaned == string(i) {
			return i, true
		}
	}
	return Other, false
}
