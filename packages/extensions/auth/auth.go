// Package auth injects bearer tokens into outgoing requests.
//
// Tokens come from an oauth2.TokenSource: a static token, the OAuth2 client
// credentials grant or an HS256 JWT minted locally. Sources are wrapped with
// oauth2.ReuseTokenSource so a token is only refreshed once it expires.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
	"github.com/abdul-hamid-achik/hookline/packages/core/state"
	"github.com/abdul-hamid-achik/hookline/packages/headers"
)

const (
	Name     = "auth"
	Priority = 100

	// DefaultJWTTTL is the lifetime of minted tokens when none is configured.
	DefaultJWTTTL = 15 * time.Minute
)

// TokenSourceFunc builds the token source once the client initializes.
type TokenSourceFunc func(ctx context.Context) (oauth2.TokenSource, error)

// Static always returns token.
func Static(token string) TokenSourceFunc {
	return func(context.Context) (oauth2.TokenSource, error) {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}), nil
	}
}

// ClientCredentials fetches tokens from tokenURL with the client
// credentials grant.
func ClientCredentials(tokenURL, clientID, clientSecret string, scopes ...string) TokenSourceFunc {
	return func(ctx context.Context) (oauth2.TokenSource, error) {
		cc := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       scopes,
		}
		// The source outlives init; it must not inherit its cancellation.
		return cc.TokenSource(context.WithoutCancel(ctx)), nil
	}
}

// JWTClaims describes a minted token.
type JWTClaims struct {
	Issuer   string
	Subject  string
	Audience string
	TTL      time.Duration
}

// JWT mints HS256 tokens signed with secret.
func JWT(secret []byte, claims JWTClaims) TokenSourceFunc {
	return func(context.Context) (oauth2.TokenSource, error) {
		if len(secret) == 0 {
			return nil, fmt.Errorf("jwt secret is required")
		}
		ttl := claims.TTL
		if ttl <= 0 {
			ttl = DefaultJWTTTL
		}
		return &jwtSource{secret: secret, claims: claims, ttl: ttl, now: time.Now}, nil
	}
}

type jwtSource struct {
	secret []byte
	claims JWTClaims
	ttl    time.Duration
	now    func() time.Time
}

func (s *jwtSource) Token() (*oauth2.Token, error) {
	issued := s.now()
	expiry := issued.Add(s.ttl)

	registered := jwt.RegisteredClaims{
		Issuer:    s.claims.Issuer,
		Subject:   s.claims.Subject,
		IssuedAt:  jwt.NewNumericDate(issued),
		NotBefore: jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expiry),
	}
	if s.claims.Audience != "" {
		registered.Audience = jwt.ClaimStrings{s.claims.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, registered).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("signing jwt: %w", err)
	}
	return &oauth2.Token{AccessToken: signed, TokenType: "Bearer", Expiry: expiry}, nil
}

// FromConfig picks the token source described by cfg.
func FromConfig(cfg *config.AuthConfig) (TokenSourceFunc, error) {
	switch cfg.Type {
	case "static":
		return Static(cfg.Token), nil
	case "client_credentials":
		return ClientCredentials(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, cfg.Scopes...), nil
	case "jwt":
		return JWT([]byte(cfg.Secret), JWTClaims{
			Issuer:   cfg.Issuer,
			Subject:  cfg.Subject,
			Audience: cfg.Audience,
			TTL:      time.Duration(cfg.TTL) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported auth type %q", cfg.Type)
	}
}

// New returns a critical extension setting the Authorization header of
// every request. A request that already carries one is left alone.
func New(source TokenSourceFunc) extension.Extension {
	var ts oauth2.TokenSource

	return extension.Extension{
		Name:     Name,
		Priority: Priority,
		Critical: true,
		Hooks: extension.Hooks{
			Init: func(ctx context.Context, _ extension.InitArgs, ec *extension.Context) error {
				if ts != nil {
					return nil
				}
				src, err := source(ctx)
				if err != nil {
					return err
				}
				ts = oauth2.ReuseTokenSource(nil, src)
				return nil
			},
			BeforeRequest: func(_ context.Context, args extension.BeforeRequestArgs, ec *extension.Context) error {
				if args.Config.Headers == nil {
					args.Config.Headers = make(headers.Set)
				}
				if args.Config.Headers.Has("Authorization") {
					return nil
				}

				tok, err := ts.Token()
				if err != nil {
					return fmt.Errorf("obtaining token: %w", err)
				}
				args.Config.Headers.Put("Authorization", tok.Type()+" "+tok.AccessToken)

				if tok.Expiry.Equal(ec.ExtensionState().Time("expiry")) {
					return nil
				}
				return ec.SetState(func(prev state.Snapshot) (state.Snapshot, error) {
					return prev.With("expiry", tok.Expiry), nil
				})
			},
		},
	}
}
