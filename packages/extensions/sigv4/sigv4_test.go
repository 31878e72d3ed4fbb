package sigv4

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
)

var signingTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func sign(t *testing.T, cfg *config.SigV4Config, rc *extension.RequestConfig, method, endpoint string) {
	t.Helper()
	opts := FromConfig(cfg)
	opts.Now = func() time.Time { return signingTime }
	ext := New(opts)
	ec := extension.NewContext(ext, nil, zerolog.Nop())

	err := ext.Hooks.BeforeRequest(context.Background(), extension.BeforeRequestArgs{
		Call:     extension.NewCall(),
		Method:   method,
		Endpoint: endpoint,
		Config:   rc,
	}, ec)
	require.NoError(t, err)
}

func TestSigV4_SignsRequest(t *testing.T) {
	rc := &extension.RequestConfig{BaseURL: "https://s3.us-east-1.amazonaws.com", Params: map[string]string{"list-type": "2"}}
	sign(t, &config.SigV4Config{
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
		Region:    "us-east-1",
		Service:   "s3",
	}, rc, "GET", "/bucket")

	auth := rc.Headers.Get("Authorization")
	assert.True(t, strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20240115/us-east-1/s3/aws4_request"), auth)
	assert.Contains(t, auth, "SignedHeaders=")
	assert.Contains(t, auth, "Signature=")
	assert.Equal(t, "20240115T120000Z", rc.Headers.Get("X-Amz-Date"))
	// SHA-256 of the empty payload.
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", rc.Headers.Get("X-Amz-Content-Sha256"))
	assert.False(t, rc.Headers.Has("X-Amz-Security-Token"))
}

func TestSigV4_BodyAndSessionToken(t *testing.T) {
	rc := &extension.RequestConfig{
		BaseURL: "https://dynamodb.eu-west-1.amazonaws.com",
		Body:    map[string]any{"TableName": "users"},
	}
	sign(t, &config.SigV4Config{
		AccessKey:    "AKID",
		SecretKey:    "secret",
		SessionToken: "session",
		Region:       "eu-west-1",
		Service:      "dynamodb",
	}, rc, "POST", "/")

	assert.Equal(t, []byte(`{"TableName":"users"}`), rc.Body, "body is pre-encoded")
	assert.Equal(t, "application/json", rc.Headers.Get("Content-Type"))
	assert.Equal(t, "session", rc.Headers.Get("X-Amz-Security-Token"))
	assert.Contains(t, rc.Headers.Get("Authorization"), "content-type")
}

func TestSigV4_Deterministic(t *testing.T) {
	cfg := &config.SigV4Config{AccessKey: "AKID", SecretKey: "secret", Region: "us-east-1", Service: "execute-api"}
	a := &extension.RequestConfig{BaseURL: "https://api.example.com"}
	b := &extension.RequestConfig{BaseURL: "https://api.example.com"}
	sign(t, cfg, a, "GET", "/items")
	sign(t, cfg, b, "GET", "/items")
	assert.Equal(t, a.Headers.Get("Authorization"), b.Headers.Get("Authorization"))
}

func TestSigV4_Descriptor(t *testing.T) {
	ext := New(FromConfig(&config.SigV4Config{}))
	assert.True(t, ext.Critical)
	assert.Equal(t, Priority, ext.Priority)
}
