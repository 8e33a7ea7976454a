package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTVerifier accepts HS256 tokens signed with a shared secret and, when a key
// set is configured, RS256/ES256 tokens whose kid resolves in that set.
type JWTVerifier struct {
	secret []byte
	keys   jwkset.Storage
	issuer string
}

func NewJWTVerifier(secret string, keys jwkset.Storage, issuer string) *JWTVerifier {
	v := &JWTVerifier{keys: keys, issuer: issuer}
	if secret != "" {
		v.secret = []byte(secret)
	}
	return v
}

// NewJWKSStorage fetches and periodically refreshes the key set at url.
func NewJWKSStorage(url string) (jwkset.Storage, error) {
	return jwkset.NewDefaultHTTPClient([]string{url})
}

func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (Identity, error) {
	methods := v.methods()
	if len(methods) == 0 {
		return Identity{}, fmt.Errorf("%w: no signing keys configured", ErrInvalidToken)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.key(ctx, t)
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	id := Identity{Subject: claims.Subject, Email: claims.Email}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func (v *JWTVerifier) methods() []string {
	var m []string
	if v.secret != nil {
		m = append(m, jwt.SigningMethodHS256.Alg())
	}
	if v.keys != nil {
		m = append(m, jwt.SigningMethodRS256.Alg(), jwt.SigningMethodES256.Alg())
	}
	return m
}

func (v *JWTVerifier) key(ctx context.Context, t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); ok {
		if v.secret == nil {
			return nil, fmt.Errorf("no shared secret configured")
		}
		return v.secret, nil
	}
	if v.keys == nil {
		return nil, fmt.Errorf("no key set configured")
	}
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("token has no kid header")
	}
	jwk, err := v.keys.KeyRead(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("read key %q: %w", kid, err)
	}
	return jwk.Key(), nil
}

// GenerateToken signs an HS256 token for subject. Used by local tooling and tests.
func GenerateToken(secret, issuer, subject, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
