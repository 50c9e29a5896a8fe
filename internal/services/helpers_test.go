package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/campusbank/backend/internal/ledger"
	"github.com/campusbank/backend/internal/middleware"
)

func init() {
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 1)
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 8*1024)
	viper.Set("argon2.threads", 1)
	viper.Set("argon2.key_length", 32)
	viper.Set("argon2.salt_length", 16)
}

type testEnv struct {
	store     ledger.Store
	registry  *ledger.Registry
	engine    *ledger.Engine
	projector *ledger.Projector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := ledger.NewMemStore("")
	require.NoError(t, err)
	return &testEnv{
		store:     store,
		registry:  ledger.NewRegistry(store),
		engine:    ledger.NewEngine(store),
		projector: ledger.NewProjector(store),
	}
}

// openAccount registers an account directly through the registry and returns
// its number.
func (e *testEnv) openAccount(t *testing.T, name, email, password string) string {
	t.Helper()
	hash, err := hashPassword(password)
	require.NoError(t, err)
	rec, err := e.registry.Create(context.Background(), name, email, hash)
	require.NoError(t, err)
	return rec.Account.Number
}

// authedRequest builds a request carrying the authenticated account number
// the way the auth middleware would.
func authedRequest(t *testing.T, method, target, accountNo string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if accountNo != "" {
		req = req.WithContext(context.WithValue(req.Context(), middleware.AccountNumberKey, accountNo))
	}
	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(dst))
}
