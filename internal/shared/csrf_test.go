package shared_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisisbrief/crisisbrief/internal/shared"
	_ "github.com/crisisbrief/crisisbrief/testing"
)

func loadSession(t *testing.T, sm *shared.SessionManager) *shared.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	return sess
}

func TestEnsureTokenIsStablePerSession(t *testing.T) {
	sm := newManager(t)
	csrf := shared.NewCSRFManager("csrf-secret")
	sess := loadSession(t, sm)

	first, err := csrf.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := csrf.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestVerifyToken(t *testing.T) {
	sm := newManager(t)
	csrf := shared.NewCSRFManager("csrf-secret")
	sess := loadSession(t, sm)

	token, err := csrf.EnsureToken(context.Background(), sess)
	require.NoError(t, err)

	assert.NoError(t, csrf.VerifyToken(context.Background(), sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(context.Background(), sess, ""), shared.ErrCSRFTokenMissing)
	assert.ErrorIs(t, csrf.VerifyToken(context.Background(), sess, "forged"), shared.ErrCSRFTokenMismatch)
}

func TestVerifyTokenWithoutSessionToken(t *testing.T) {
	sm := newManager(t)
	csrf := shared.NewCSRFManager("csrf-secret")
	sess := loadSession(t, sm)

	err := csrf.VerifyToken(context.Background(), sess, "anything")
	assert.ErrorIs(t, err, shared.ErrCSRFTokenMissing)
}

func TestTokensDifferAcrossSessions(t *testing.T) {
	sm := newManager(t)
	csrf := shared.NewCSRFManager("csrf-secret")

	a, err := csrf.EnsureToken(context.Background(), loadSession(t, sm))
	require.NoError(t, err)
	b, err := csrf.EnsureToken(context.Background(), loadSession(t, sm))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
