package security

import (
	"errors"
	"testing"
	"time"

	"noticeboard/internal/common"
	"noticeboard/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), 24*time.Hour)

	t.Run("student", func(t *testing.T) {
		in := model.StudentIdentity{ID: 7, StudentID: "STU001"}
		token, err := issuer.Issue(in)
		require.NoError(t, err)

		out, err := issuer.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("admin", func(t *testing.T) {
		in := model.AdminIdentity{ID: 3, Username: "superadmin", Role: model.RoleSuperAdmin}
		token, err := issuer.Issue(in)
		require.NoError(t, err)

		out, err := issuer.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, in, out)
		assert.True(t, out.(model.AdminIdentity).IsSuperAdmin())
	})
}

func TestTokenExpired(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), 24*time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-25 * time.Hour) }

	token, err := issuer.Issue(model.StudentIdentity{ID: 1, StudentID: "STU001"})
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidToken))
	assert.True(t, errors.Is(err, common.ErrUnauthorized))
}

func TestTokenRejectsForeignSignatureAndGarbage(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), time.Hour)
	other := NewTokenIssuer([]byte("other-secret"), time.Hour)

	token, err := other.Issue(model.AdminIdentity{ID: 1, Username: "admin", Role: "cse-admin"})
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Validate("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentityFromClaims(t *testing.T) {
	_, err := IdentityFromClaims(map[string]interface{}{"type": "guest", "id": float64(1)})
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = IdentityFromClaims(map[string]interface{}{"type": "admin", "id": float64(1)})
	assert.ErrorIs(t, err, ErrInvalidToken, "admin without role")

	_, err = IdentityFromClaims(map[string]interface{}{"type": "student", "id": "1", "student_id": "STU001"})
	assert.ErrorIs(t, err, ErrInvalidToken, "string id")

	id, err := IdentityFromClaims(map[string]interface{}{"type": "student", "id": float64(9), "student_id": "STU009"})
	require.NoError(t, err)
	assert.Equal(t, model.StudentIdentity{ID: 9, StudentID: "STU009"}, id)
}

func TestIssueRejectsNilIdentity(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), time.Hour)
	_, err := issuer.Issue(nil)
	assert.Error(t, err)
}
