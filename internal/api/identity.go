package api

import (
	"net/http"

	"github.com/ilzarachman/chatbot-helpdesk/internal/conversation"
)

// Identity headers set by the authenticating reverse proxy. The service
// trusts them as-is; session handling itself lives outside this process.
const (
	headerUserID    = "X-User-ID"
	headerUserClass = "X-User-Class"
)

// identityFrom reads the caller identity from the trusted headers. It
// returns nil when no identity headers are present (anonymous caller) and
// false when the class header carries an unknown value.
func identityFrom(r *http.Request) (*conversation.Identity, bool) {
	id := r.Header.Get(headerUserID)
	if id == "" {
		return nil, true
	}

	class := conversation.ClassStudent
	switch r.Header.Get(headerUserClass) {
	case "", "student":
	case "staff":
		class = conversation.ClassStaff
	default:
		return nil, false
	}
	return &conversation.Identity{ID: id, Class: class}, true
}

// requireIdentity resolves the caller identity or writes the failure
// response. The bool reports whether the handler may proceed.
func requireIdentity(w http.ResponseWriter, r *http.Request) (*conversation.Identity, bool) {
	identity, ok := identityFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_identity", "unknown user class")
		return nil, false
	}
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "identity headers required")
		return nil, false
	}
	return identity, true
}
