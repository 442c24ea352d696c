package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

func TestTokenService_RoundTrip(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	svc := NewTokenService("test-secret", 15*time.Minute, clock)
	caller := domain.Caller{MemberID: uuid.New(), Role: domain.RoleAdmin}

	token, err := svc.Issue(caller)
	require.NoError(t, err)

	parsed, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, caller, parsed)
}

func TestTokenService_Invalid(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	svc := NewTokenService("test-secret", 15*time.Minute, clock)
	caller := domain.Caller{MemberID: uuid.New()}

	expired, err := svc.Issue(caller)
	require.NoError(t, err)
	clock.Set(clock.Now().Add(time.Hour))
	_, err = svc.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewTokenService("other-secret", time.Minute, nil).Issue(caller)
	require.NoError(t, err)
	_, err = svc.Parse(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": caller.MemberID.String(),
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Issue(domain.Caller{})
	assert.Error(t, err)
}

func TestTokenService_UnknownRoleIsMember(t *testing.T) {
	svc := NewTokenService("test-secret", time.Minute, nil)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  uuid.NewString(),
		"role": "superuser",
		"exp":  time.Now().Add(time.Minute).Unix(),
	})
	raw, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	caller, err := svc.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, caller.Role)
}
