package wsauthority

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"

	"github.com/codeready-toolchain/missionctl/internal/apperrors"
	"github.com/codeready-toolchain/missionctl/internal/config"
)

// Policy parameterises one WS route's auth/role requirements (spec §4.7).
type Policy struct {
	RequiresAdmin    bool
	ForbiddenDetails string
	RouteID          string
}

// Envelope is the wire shape for every frame this package sends, per the
// `{type, payload}` envelope format (spec §6).
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// extractToken implements the handshake's credential-extraction step:
// the subprotocol list is expected to carry ["jwt", "<token>"]; a query
// parameter is accepted only outside production (spec §4.7 step 1).
func extractToken(r *http.Request, cfg config.WSAuthConfig) (token, negotiated string) {
	protocols := websocket.Subprotocols(r)
	for i, p := range protocols {
		if p == "jwt" && i+1 < len(protocols) {
			return protocols[i+1], "jwt"
		}
	}
	if !cfg.IsProduction() {
		if tok := r.URL.Query().Get("token"); tok != "" {
			return tok, ""
		}
	}
	return "", ""
}

// Accept performs the full handshake: credential extraction,
// verification, HTTP→WS upgrade, and role gate. On failure it closes the
// connection with the appropriate code itself (4401 for auth, 4403 for a
// role mismatch) and returns a non-nil error; the caller must not use the
// returned connection in that case.
func Accept(w http.ResponseWriter, r *http.Request, auth Authenticator, policy Policy, cfg config.WSAuthConfig) (*websocket.Conn, Identity, error) {
	token, negotiated := extractToken(r, cfg)
	if token == "" {
		return rejectUnauthorized(w, r)
	}

	identity, err := auth.Authenticate(token)
	if err != nil {
		return rejectUnauthorized(w, r)
	}

	opts := &websocket.AcceptOptions{InsecureSkipVerify: true}
	if negotiated != "" {
		opts.Subprotocols = []string{negotiated}
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return nil, Identity{}, apperrors.Internal("accepting websocket", err)
	}

	if policy.RequiresAdmin && !identity.IsAdmin() {
		writeEnvelope(r.Context(), conn, Envelope{
			Type:    "error",
			Payload: map[string]any{"status_code": apperrors.KindForbidden.HTTPStatus(), "details": policy.ForbiddenDetails},
		})
		_ = conn.Close(websocket.StatusCode(apperrors.KindForbidden.WSCloseCode()), "role forbidden")
		return nil, Identity{}, apperrors.Forbidden(policy.ForbiddenDetails)
	}

	return conn, identity, nil
}

// rejectUnauthorized upgrades the connection (so a typed close code can
// be sent at all) and immediately closes it with 4401, before any data
// frame is written — satisfying the "closes with 4401 before sending any
// frame" contract (spec §8 scenario 5) without ever handing the
// connection to the caller.
func rejectUnauthorized(w http.ResponseWriter, r *http.Request) (*websocket.Conn, Identity, error) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err == nil {
		_ = conn.Close(websocket.StatusCode(apperrors.KindAuth.WSCloseCode()), "missing or invalid credential")
	}
	return nil, Identity{}, apperrors.Auth("missing or invalid credential")
}

func writeEnvelope(ctx context.Context, conn *websocket.Conn, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, body)
}

func readJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
