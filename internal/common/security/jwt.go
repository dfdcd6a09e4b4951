package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"noticeboard/internal/common"
	"noticeboard/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers malformed, unsigned, tampered and expired tokens.
// It is always an authentication failure, never an anonymous caller.
var ErrInvalidToken = fmt.Errorf("invalid or expired token: %w", common.ErrUnauthorized)

// TokenIssuer mints and validates HS256 session tokens. Validity is purely
// signature plus the embedded expiry; no server-side session exists.
type TokenIssuer struct {
	auth *jwtauth.JWTAuth
	ttl  time.Duration
	now  func() time.Time
}

func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		auth: jwtauth.New("HS256", secret, nil),
		ttl:  ttl,
		now:  time.Now,
	}
}

// JWTAuth exposes the signer for jwtauth.Verifier.
func (t *TokenIssuer) JWTAuth() *jwtauth.JWTAuth {
	return t.auth
}

func (t *TokenIssuer) Issue(identity model.Identity) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"exp": now.Add(t.ttl).Unix(),
		"iat": now.Unix(),
	}
	switch id := identity.(type) {
	case model.StudentIdentity:
		claims["type"] = string(model.IdentityStudent)
		claims["id"] = id.ID
		claims["student_id"] = id.StudentID
	case model.AdminIdentity:
		claims["type"] = string(model.IdentityAdmin)
		claims["id"] = id.ID
		claims["username"] = id.Username
		claims["role"] = id.Role
	default:
		return "", fmt.Errorf("cannot issue token for identity %T", identity)
	}
	_, tokenString, err := t.auth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

func (t *TokenIssuer) Validate(tokenString string) (model.Identity, error) {
	token, err := jwtauth.VerifyToken(t.auth, tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, err := token.AsMap(context.Background())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return IdentityFromClaims(claims)
}

// IdentityFromClaims decodes the tagged union carried in a verified token.
func IdentityFromClaims(claims map[string]interface{}) (model.Identity, error) {
	typ, _ := claims["type"].(string)
	id, ok := claimInt64(claims["id"])
	if !ok {
		return nil, fmt.Errorf("%w: id claim is missing or not an integer", ErrInvalidToken)
	}

	switch model.IdentityType(typ) {
	case model.IdentityStudent:
		studentID, ok := claims["student_id"].(string)
		if !ok || studentID == "" {
			return nil, fmt.Errorf("%w: student_id claim is missing", ErrInvalidToken)
		}
		return model.StudentIdentity{ID: id, StudentID: studentID}, nil
	case model.IdentityAdmin:
		username, _ := claims["username"].(string)
		role, ok := claims["role"].(string)
		if !ok || role == "" {
			return nil, fmt.Errorf("%w: role claim is missing", ErrInvalidToken)
		}
		return model.AdminIdentity{ID: id, Username: username, Role: role}, nil
	default:
		return nil, fmt.Errorf("%w: unknown identity type %q", ErrInvalidToken, typ)
	}
}

func claimInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// IsNoToken reports whether a jwtauth verification error only means that the
// request carried no token at all.
func IsNoToken(err error) bool {
	return errors.Is(err, jwtauth.ErrNoTokenFound)
}
