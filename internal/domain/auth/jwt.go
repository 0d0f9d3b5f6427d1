package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims is the JWT payload shape shared with the identity service.
type tokenClaims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for the given shared secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

var _ Verifier = (*JWTVerifier)(nil)

// Verify parses and validates the token, rejecting any signing method other
// than HMAC. Unknown roles are rejected rather than defaulted.
func (v *JWTVerifier) Verify(_ context.Context, token string) (*Claims, error) {
	var tc tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &tc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	role, ok := ParseRole(tc.Role)
	if !ok || tc.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &Claims{UserID: tc.UserID, Role: role}, nil
}

// IssueToken mints an HS256 token for the given identity. Token issuance
// belongs to the external identity service; this helper exists for the seed
// tool and tests.
func IssueToken(secret []byte, userID string, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(secret)
}
