package session_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"strings"
	"testing"
	"time"

	"github.com/contrastkit/contrastkit/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestMintVerify_RoundTrip(t *testing.T) {
	signer := session.NewSigner(testSecret)
	before := time.Now().Unix()

	token, exp, err := signer.Mint(session.User{ID: "u1", Email: "a@b.c", FirstName: "Ada"}, "abc")
	require.NoError(t, err)

	claims, err := signer.Verify(token)
	require.NoError(t, err)

	assert.Equal(t, "u1", claims.User.ID)
	assert.Equal(t, "a@b.c", claims.User.Email)
	assert.Equal(t, "abc", claims.Site())
	assert.Equal(t, exp, claims.Exp)
	assert.InDelta(t, before+86400, claims.Exp, 1)
}

func TestMint_Encoding(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	signer := session.NewSigner(testSecret, session.WithClock(func() time.Time { return fixed }))

	token, _, err := signer.Mint(session.User{ID: "u1"}, "")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	assert.Equal(t, "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9", parts[0])
	assert.NotContains(t, token, "=")
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")

	payload, err := session.DecodeSegment(parts[1])
	require.NoError(t, err)
	assert.Equal(t, `{"user":{"id":"u1"},"siteId":null,"exp":1700086400}`, string(payload))
}

func TestMint_KeepsHTMLCharactersLiteral(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	signer := session.NewSigner(testSecret, session.WithClock(func() time.Time { return fixed }))

	token, _, err := signer.Mint(session.User{ID: "u1", Email: "a&b@x.io", FirstName: "<Ann>"}, "abc")
	require.NoError(t, err)

	payload, err := session.DecodeSegment(strings.Split(token, ".")[1])
	require.NoError(t, err)
	assert.Equal(t, `{"user":{"id":"u1","email":"a&b@x.io","firstName":"<Ann>"},"siteId":"abc","exp":1700086400}`, string(payload))

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "<Ann>", claims.User.FirstName)
}

func TestVerify_Format(t *testing.T) {
	signer := session.NewSigner(testSecret)

	for _, token := range []string{"", "a.b", "a.b.c.d", "nodots"} {
		_, err := signer.Verify(token)
		assert.ErrorIs(t, err, session.ErrInvalidFormat, token)
	}
}

func TestVerify_TamperedSignature(t *testing.T) {
	signer := session.NewSigner(testSecret)
	token, _, err := signer.Mint(session.User{ID: "u1"}, "abc")
	require.NoError(t, err)

	last := token[len(token)-1]
	flipped := byte('A')
	if last == 'A' {
		flipped = 'B'
	}
	tampered := token[:len(token)-1] + string(flipped)

	_, err = signer.Verify(tampered)
	assert.ErrorIs(t, err, session.ErrInvalidSignature)
}

func TestVerify_WrongSecret(t *testing.T) {
	token, _, err := session.NewSigner("one").Mint(session.User{ID: "u1"}, "")
	require.NoError(t, err)

	_, err = session.NewSigner("two").Verify(token)
	assert.ErrorIs(t, err, session.ErrInvalidSignature)
}

func TestVerify_Expired(t *testing.T) {
	signer := session.NewSigner(testSecret)
	token, err := signer.Sign(&session.Claims{
		User: session.User{ID: "u1"},
		Exp:  time.Now().Add(-time.Minute).Unix(),
	})
	require.NoError(t, err)

	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, session.ErrTokenExpired)
}

func TestVerify_SignatureCheckedBeforeExpiry(t *testing.T) {
	token, err := session.NewSigner("other").Sign(&session.Claims{
		User: session.User{ID: "u1"},
		Exp:  time.Now().Add(-time.Minute).Unix(),
	})
	require.NoError(t, err)

	_, err = session.NewSigner(testSecret).Verify(token)
	assert.ErrorIs(t, err, session.ErrInvalidSignature)
}

func TestVerify_BadPayload(t *testing.T) {
	signer := session.NewSigner(testSecret)

	signingInput := session.EncodeSegment([]byte(`{"alg":"HS256","typ":"JWT"}`)) + "." +
		session.EncodeSegment([]byte(`not json`))
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(signingInput))

	_, err := signer.Verify(signingInput + "." + session.EncodeSegment(mac.Sum(nil)))
	assert.ErrorIs(t, err, session.ErrInvalidPayload)
}

func TestDecodeSegment_AcceptsPadding(t *testing.T) {
	got, err := session.DecodeSegment("YQ==")
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))

	got, err = session.DecodeSegment("YQ")
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))
}

func TestMint_ReadableByJWTLibrary(t *testing.T) {
	signer := session.NewSigner(testSecret)
	token, exp, err := signer.Mint(session.User{ID: "u1"}, "abc")
	require.NoError(t, err)

	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "abc", claims["siteId"])
	assert.EqualValues(t, exp, claims["exp"])
}

func TestFingerprint(t *testing.T) {
	assert.Len(t, session.Fingerprint("abc"), 12)
	assert.Equal(t, session.Fingerprint("abc"), session.Fingerprint("abc"))
	assert.NotEqual(t, session.Fingerprint("abc"), session.Fingerprint("abd"))
}
