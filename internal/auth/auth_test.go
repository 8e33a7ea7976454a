package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestJWTVerifierAcceptsValidToken(t *testing.T) {
	v := NewJWTVerifier(testSecret, nil, "recycletek")
	tok, err := GenerateToken(testSecret, "recycletek", "uid-1", "a@example.com", time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", id.Subject)
	assert.Equal(t, "a@example.com", id.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), id.ExpiresAt, time.Minute)
}

func TestJWTVerifierRejects(t *testing.T) {
	v := NewJWTVerifier(testSecret, nil, "recycletek")

	expired, err := GenerateToken(testSecret, "recycletek", "uid-1", "a@example.com", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := GenerateToken("other-secret", "recycletek", "uid-1", "a@example.com", time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := GenerateToken(testSecret, "someone-else", "uid-1", "a@example.com", time.Hour)
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "uid-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"expired":      expired,
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"alg none":     unsigned,
		"garbage":      "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tok)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTVerifierWithoutKeys(t *testing.T) {
	v := NewJWTVerifier("", nil, "")
	tok, err := GenerateToken(testSecret, "", "uid-1", "a@example.com", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

type countingVerifier struct {
	mu    sync.Mutex
	calls int
	id    Identity
	err   error
}

func (c *countingVerifier) Verify(_ context.Context, _ string) (Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.id, c.err
}

func TestCachingVerifier(t *testing.T) {
	now := time.Now()
	inner := &countingVerifier{id: Identity{Subject: "uid-1", Email: "a@example.com", ExpiresAt: now.Add(time.Minute)}}
	v, err := NewCachingVerifier(inner, 16, 5*time.Minute)
	require.NoError(t, err)
	v.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		id, err := v.Verify(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "uid-1", id.Subject)
	}
	assert.Equal(t, 1, inner.calls)

	// entries never outlive the token itself
	v.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachingVerifierDoesNotCacheFailures(t *testing.T) {
	inner := &countingVerifier{err: ErrInvalidToken}
	v, err := NewCachingVerifier(inner, 16, time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "bad")
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = v.Verify(context.Background(), "bad")
	require.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, 2, inner.calls)
}

type fakeIDTokens struct {
	token *fbauth.Token
	err   error
}

func (f fakeIDTokens) VerifyIDToken(context.Context, string) (*fbauth.Token, error) {
	return f.token, f.err
}

func TestFirebaseVerifier(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	v := &FirebaseVerifier{client: fakeIDTokens{token: &fbauth.Token{
		UID:     "fb-uid",
		Expires: exp,
		Claims:  map[string]interface{}{"email": "fb@example.com"},
	}}}

	id, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "fb-uid", id.Subject)
	assert.Equal(t, "fb@example.com", id.Email)
	assert.Equal(t, exp, id.ExpiresAt.Unix())

	v = &FirebaseVerifier{client: fakeIDTokens{err: errors.New("ID token has expired")}}
	_, err = v.Verify(context.Background(), "tok")
	require.ErrorIs(t, err, ErrInvalidToken)
}
