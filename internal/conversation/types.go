// Package conversation persists conversations and their transcripts.
//
// A conversation is owned by exactly one caller identity and is identified
// externally by an opaque UUID, never by its storage key. Each completed
// exchange is stored as one record holding both sides of the turn, so
// history-window reads take the last N records directly.
package conversation

import (
	"errors"
	"time"
)

// IdentityClass distinguishes the two caller classes as stored in the
// conversations table: staff = 0, student = 1.
type IdentityClass int16

// Caller identity classes.
const (
	ClassStaff   IdentityClass = 0
	ClassStudent IdentityClass = 1
)

// Identity is an already-authenticated caller, supplied by the session
// collaborator. The core trusts it as-is.
type Identity struct {
	ID    string
	Class IdentityClass
}

// HistoryTurn is one completed user+assistant exchange. The JSON tags match
// the persisted record shape: {"U": userText, "A": assistantText}.
type HistoryTurn struct {
	User      string `json:"U"`
	Assistant string `json:"A"`
}

// Conversation is the stored conversation header.
type Conversation struct {
	UID       string    `json:"uuid"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
}

// ErrNotFound reports that no conversation matches the given external id and
// owner. A stale or forged reference is a client error, not a fallback.
var ErrNotFound = errors.New("conversation not found")
