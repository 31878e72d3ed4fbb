// Package sigv4 signs requests with AWS Signature Version 4.
package sigv4

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
	"github.com/abdul-hamid-achik/hookline/packages/headers"
	hlhttp "github.com/abdul-hamid-achik/hookline/packages/http"
)

const (
	Name     = "sigv4"
	Priority = 90
)

// signedHeaders are copied from the signed request back onto the call.
var signedHeaders = []string{"Authorization", "X-Amz-Date", "X-Amz-Security-Token", "X-Amz-Content-Sha256"}

// Options configures the signer.
type Options struct {
	Credentials aws.CredentialsProvider
	Region      string
	Service     string

	// Now replaces time.Now for the signing time.
	Now func() time.Time
}

// FromConfig builds Options with static credentials.
func FromConfig(cfg *config.SigV4Config) Options {
	return Options{
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
				SessionToken:    cfg.SessionToken,
				Source:          "hookline",
			}, nil
		}),
		Region:  cfg.Region,
		Service: cfg.Service,
	}
}

// New returns a critical extension signing every request in beforeRequest.
// The URL is resolved with the default URL builder and the body encoded the
// same way the pipeline will encode it, so the signature covers both.
func New(opts Options) extension.Extension {
	signer := v4.NewSigner()
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return extension.Extension{
		Name:     Name,
		Priority: Priority,
		Critical: true,
		Hooks: extension.Hooks{
			BeforeRequest: func(ctx context.Context, args extension.BeforeRequestArgs, ec *extension.Context) error {
				creds, err := opts.Credentials.Retrieve(ctx)
				if err != nil {
					return fmt.Errorf("retrieving AWS credentials: %w", err)
				}

				rc := args.Config
				target, err := hlhttp.BuildURL(rc.BaseURL, args.Endpoint, rc.Params)
				if err != nil {
					return err
				}
				body, contentType, err := hlhttp.EncodeBody(rc.Body)
				if err != nil {
					return err
				}
				// Readers are consumed by encoding; hand the pipeline the bytes.
				rc.Body = body
				if rc.Headers == nil {
					rc.Headers = make(headers.Set)
				}
				if contentType != "" && !rc.Headers.Has("Content-Type") {
					rc.Headers.Put("Content-Type", contentType)
				}

				req, err := http.NewRequestWithContext(ctx, args.Method, target, bytes.NewReader(body))
				if err != nil {
					return fmt.Errorf("building request to sign: %w", err)
				}
				for name, values := range rc.Headers {
					for _, v := range values {
						req.Header.Add(name, v)
					}
				}

				payloadHash := hashPayload(body)
				req.Header.Set("X-Amz-Content-Sha256", payloadHash)
				if err := signer.SignHTTP(ctx, creds, req, payloadHash, opts.Service, opts.Region, now()); err != nil {
					return fmt.Errorf("signing request: %w", err)
				}

				for _, name := range signedHeaders {
					if v := req.Header.Get(name); v != "" {
						rc.Headers.Put(name, v)
					}
				}
				ec.Logger().Debug().Str("call", args.Call.ID).Str("service", opts.Service).Str("region", opts.Region).Msg("request signed")
				return nil
			},
		},
	}
}

func hashPayload(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
