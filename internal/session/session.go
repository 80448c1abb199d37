package session

import "errors"

// Domain errors
var (
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// Tokens is the access/refresh token pair identifying an authenticated
// client. Both fields are opaque to this package.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Empty reports whether the pair carries no credentials.
func (t Tokens) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// Store is the durable slot holding the current token pair. Implementations
// must update both tokens together: a reader must never observe an access
// token from one pair and a refresh token from another.
type Store interface {
	// Save overwrites the stored pair.
	Save(tokens Tokens) error

	// Load returns the stored pair. The second return is false when no
	// pair has ever been saved, or the slot was cleared.
	Load() (Tokens, bool, error)

	// Clear removes the stored pair. Idempotent.
	Clear() error
}

// GuardedStore is implemented by stores that can refuse a Save racing a
// Clear. A caller snapshots Generation before starting slow work (a token
// refresh, typically) and hands the snapshot to SaveIfCurrent; if a Clear
// landed in between, the stale pair is discarded instead of resurrecting a
// logged-out session.
type GuardedStore interface {
	Store

	// Generation returns the current clear generation.
	Generation() uint64

	// SaveIfCurrent saves the pair only when no Clear happened since gen
	// was observed. Returns false when the write was discarded.
	SaveIfCurrent(tokens Tokens, gen uint64) (bool, error)
}
