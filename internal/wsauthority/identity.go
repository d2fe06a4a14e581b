// Package wsauthority is the single WebSocket entry surface for both
// chat-class and mission-streaming routes (spec §4.7): handshake,
// role gate, catch-up replay, steady-state relay, terminal closure.
// Grounded on the teacher's pkg/events.ConnectionManager (connection
// registry, channel subscription, catch-up-then-subscribe ordering) and
// pkg/api/handler_ws.go (Accept via github.com/coder/websocket), adapted
// from a Postgres-notify fanout to internal/eventbus's topic queues and
// generalised to enforce the handshake/role-gate contract this system
// needs that the teacher's handler does not.
package wsauthority

import "time"

// Identity is the caller's resolved identity after a successful
// handshake. Issuance and verification of the underlying credential are
// out of scope (spec Non-goals): wsauthority only consumes "given a
// valid credential, here is the caller's identity and role."
type Identity struct {
	Subject string
	Role    string
}

// IsAdmin reports whether this identity may use admin-only routes.
func (id Identity) IsAdmin() bool { return id.Role == "admin" }

// Authenticator resolves a bearer credential to an Identity.
type Authenticator interface {
	Authenticate(token string) (Identity, error)
}

// Claims is the minimal payload a Token carries. A real deployment would
// issue these as signed JWTs; this system treats issuance/verification
// as given, so Claims only needs to round-trip the subject/role/expiry
// fields the handshake checks.
type Claims struct {
	Subject   string    `json:"sub"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}
