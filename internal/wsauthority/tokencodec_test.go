package wsauthority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenCodec_RoundTripPreservesSubject(t *testing.T) {
	codec := NewTokenCodec()

	cases := []Claims{
		{Subject: "user-1", Role: "customer"},
		{Subject: "admin-7", Role: "admin"},
		{Subject: "svc-account", Role: "admin", ExpiresAt: time.Now().Add(time.Hour)},
	}

	for _, c := range cases {
		token := codec.Encode(c)
		decoded, err := codec.Decode(token)
		require.NoError(t, err)
		require.Equal(t, c.Subject, decoded.Subject)
		require.Equal(t, c.Role, decoded.Role)
	}
}

func TestTokenCodec_DecodeRejectsMalformedToken(t *testing.T) {
	codec := NewTokenCodec()

	_, err := codec.Decode("not-valid-base64-url-!!!")
	require.Error(t, err)

	_, err = codec.Decode("")
	require.Error(t, err)
}

func TestTokenCodec_AuthenticateRejectsExpiredToken(t *testing.T) {
	codec := NewTokenCodec()
	token := codec.Encode(Claims{Subject: "user-1", Role: "customer", ExpiresAt: time.Now().Add(-time.Minute)})

	_, err := codec.Authenticate(token)
	require.Error(t, err)
}

func TestTokenCodec_AuthenticateAcceptsWellFormedToken(t *testing.T) {
	codec := NewTokenCodec()
	token := codec.Encode(Claims{Subject: "user-1", Role: "admin"})

	identity, err := codec.Authenticate(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", identity.Subject)
	require.True(t, identity.IsAdmin())
}
