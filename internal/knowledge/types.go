// Package knowledge stores embedded document chunks and serves similarity
// search, namespaced by (topic, visibility).
//
// The public namespace is disjoint from the restricted one: anonymous
// queries can never surface restricted content. A namespace is either
// absent (no documents ingested yet) or append-only.
package knowledge

import "errors"

// Visibility selects the retrieval namespace.
type Visibility string

// Namespace visibilities. Restricted is the default for authenticated
// callers; public serves anonymous callers.
const (
	VisibilityRestricted Visibility = "restricted"
	VisibilityPublic     Visibility = "public"
)

// ErrNoResults reports that the (topic, visibility) namespace holds no
// documents. This is the benign degraded case (generation proceeds
// ungrounded) and is distinct from retrieval failures.
var ErrNoResults = errors.New("no documents in namespace")

// Result is a retrieved passage with its similarity score.
type Result struct {
	Content    string
	Similarity float64
}
