package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/core/pipeline"
)

// echoServer returns the Authorization header it received.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"auth": r.Header.Get("Authorization")})
	}))
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T, baseURL string, source TokenSourceFunc) *pipeline.Client {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = baseURL
	client, err := pipeline.New(cfg, pipeline.WithExtensions(New(source)))
	require.NoError(t, err)
	return client
}

func TestAuth_Static(t *testing.T) {
	client := newClient(t, echoServer(t).URL, Static("s3cret"))

	result, err := client.Get(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, "Bearer s3cret", result.JSON("auth").String())
}

func TestAuth_KeepsExplicitHeader(t *testing.T) {
	client := newClient(t, echoServer(t).URL, Static("s3cret"))

	result, err := client.Get(context.Background(), "/", pipeline.WithHeader("Authorization", "Basic abc"))
	require.NoError(t, err)
	assert.Equal(t, "Basic abc", result.JSON("auth").String())
}

func TestAuth_ClientCredentials(t *testing.T) {
	var tokenRequests atomic.Int32
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenRequests.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "read write", r.PostForm.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "fetched", "token_type": "bearer", "expires_in": 3600}`))
	}))
	defer tokenServer.Close()

	client := newClient(t, echoServer(t).URL, ClientCredentials(tokenServer.URL, "id", "secret", "read", "write"))

	for i := 0; i < 3; i++ {
		result, err := client.Get(context.Background(), "/")
		require.NoError(t, err)
		assert.Equal(t, "Bearer fetched", result.JSON("auth").String())
	}
	assert.Equal(t, int32(1), tokenRequests.Load(), "token is reused until it expires")

	expiry := client.Registry().Context(Name).ExtensionState().Time("expiry")
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, time.Minute)
}

func TestAuth_TokenFailureHaltsCall(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "invalid_client"}`))
	}))
	defer tokenServer.Close()

	var reached atomic.Bool
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached.Store(true)
	}))
	defer api.Close()

	client := newClient(t, api.URL, ClientCredentials(tokenServer.URL, "id", "wrong"))
	_, err := client.Get(context.Background(), "/")

	var hookErr *errs.HookExecutionError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, []string{Name}, hookErr.Extensions())
	assert.False(t, reached.Load())
}

func TestAuth_JWT(t *testing.T) {
	secret := []byte("signing-key")
	client := newClient(t, echoServer(t).URL, JWT(secret, JWTClaims{
		Issuer:   "hookline",
		Subject:  "svc-orders",
		Audience: "api",
		TTL:      time.Minute,
	}))

	result, err := client.Get(context.Background(), "/")
	require.NoError(t, err)

	header := result.JSON("auth").String()
	require.Greater(t, len(header), len("Bearer "))
	raw := header[len("Bearer "):]

	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return secret, nil })
	require.NoError(t, err)
	assert.True(t, tok.Valid)
	assert.Equal(t, "hookline", claims.Issuer)
	assert.Equal(t, "svc-orders", claims.Subject)
	assert.Equal(t, jwt.ClaimStrings{"api"}, claims.Audience)
}

func TestAuth_JWTRequiresSecret(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := pipeline.New(cfg, pipeline.WithExtensions(New(JWT(nil, JWTClaims{}))))
	assert.True(t, errs.IsKind(err, errs.KindHookExecution))
}

func TestFromConfig(t *testing.T) {
	for _, typ := range []string{"static", "client_credentials", "jwt"} {
		src, err := FromConfig(&config.AuthConfig{Type: typ})
		assert.NoError(t, err, typ)
		assert.NotNil(t, src, typ)
	}
	_, err := FromConfig(&config.AuthConfig{Type: "digest"})
	assert.Error(t, err)
}
