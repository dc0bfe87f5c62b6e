package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-stack/faculty-advisor/src/advisor/types"
)

func newService(lifetime time.Duration) *TokenService {
	return NewTokenService([]byte("test-secret"), lifetime, []string{"amrita.edu"})
}

func TestDeriveRole(t *testing.T) {
	cases := map[string]string{
		"student@amrita.edu":        RoleStudent,
		"jane.doe@amrita.edu":       RoleStudent,
		"faculty.rao@amrita.edu":    RoleFaculty,
		"prof.menon@amrita.edu":     RoleFaculty,
		"admin.ops@amrita.edu":      RoleAdmin,
		"ADMIN.root@amrita.edu":     RoleAdmin,
		"proficiency@amrita.edu":    RoleStudent,
		"admin.faculty@amrita.edu":  RoleAdmin, // admin rule wins, order matters
		"facultyx@amrita.edu":       RoleStudent,
		"prof.faculty.x@amrita.edu": RoleFaculty,
	}
	for email, want := range cases {
		assert.Equal(t, want, DeriveRole(email), email)
	}
}

func TestIssueRejectsForeignDomain(t *testing.T) {
	svc := newService(time.Hour)
	_, _, err := svc.Issue(Identity{UserID: "u1", Email: "student@gmail.com"})
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	svc := newService(time.Hour)
	token, expires, err := svc.Issue(Identity{UserID: "u1", Email: "faculty.rao@amrita.edu"})
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	identity, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
	assert.Equal(t, "faculty.rao@amrita.edu", identity.Email)
	assert.Equal(t, RoleFaculty, identity.Role)
}

func TestVerifyExpired(t *testing.T) {
	svc := newService(-time.Minute)
	token, _, err := svc.Issue(Identity{UserID: "u1", Email: "student@amrita.edu"})
	require.NoError(t, err)

	_, err = svc.Verify(token)
	require.Error(t, err)
	assert.Equal(t, types.KindSessionExpired, types.KindOf(err))
}

func TestVerifyTampered(t *testing.T) {
	svc := newService(time.Hour)
	token, _, err := svc.Issue(Identity{UserID: "u1", Email: "student@amrita.edu"})
	require.NoError(t, err)

	_, err = svc.Verify(token + "x")
	require.Error(t, err)
	assert.Equal(t, types.KindInvalidToken, types.KindOf(err))

	_, err = svc.Verify("not-a-token")
	assert.Equal(t, types.KindInvalidToken, types.KindOf(err))

	// Signed with a different secret.
	other := NewTokenService([]byte("other"), time.Hour, []string{"amrita.edu"})
	foreign, _, err := other.Issue(Identity{UserID: "u1", Email: "student@amrita.edu"})
	require.NoError(t, err)
	_, err = svc.Verify(foreign)
	assert.Equal(t, types.KindInvalidToken, types.KindOf(err))
}

func TestRefresh(t *testing.T) {
	svc := newService(time.Hour)
	token, _, err := svc.Issue(Identity{UserID: "u1", Email: "admin.ops@amrita.edu"})
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond) // ensure a later iat/exp second
	renewed, expires, err := svc.Refresh(token)
	require.NoError(t, err)
	assert.NotEqual(t, token, renewed)
	assert.True(t, expires.After(time.Now()))

	identity, err := svc.Verify(renewed)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, identity.Role)

	_, _, err = svc.Refresh("garbage")
	assert.Equal(t, types.KindInvalidToken, types.KindOf(err))
}
