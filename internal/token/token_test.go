package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/stretchr/testify/require"
)

func newTestManager(now time.Time) *Manager {
	m := New("secret", "content-service", 15*time.Minute)
	m.now = func() time.Time { return now }

	return m
}

func TestManager_IssueAndParse(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(now)

	raw, exp, err := m.Issue(&models.User{ID: "u1", Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, now.Add(15*time.Minute), exp)

	claims, err := m.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, models.RoleAdmin, claims.Role)
}

func TestManager_ParseExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(now)

	raw, _, err := m.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)

	m.now = func() time.Time { return now.Add(time.Hour) }

	_, err = m.Parse(raw)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestManager_ParseRejectsForeignTokens(t *testing.T) {
	now := time.Now()
	m := newTestManager(now)

	other := New("other-secret", "content-service", time.Minute)
	raw, _, err := other.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)

	_, err = m.Parse(raw)
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := New("secret", "someone-else", time.Minute)
	raw, _, err = wrongIssuer.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)

	_, err = m.Parse(raw)
	require.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Parse(none)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}
