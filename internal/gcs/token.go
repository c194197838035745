package gcs

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/ppiankov/bucketspectre/internal/probe"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultCredentialsEnv names the variable holding the service-account key path
const DefaultCredentialsEnv = "GOOGLE_APPLICATION_CREDENTIALS"

const readOnlyScope = "https://www.googleapis.com/auth/devstorage.read_only"

// TokenFunc returns a bearer token for authenticated requests.
// Errors matching probe.ErrConfiguration mean no token can ever be produced.
type TokenFunc func(ctx context.Context) (string, error)

// ServiceAccountTokens exchanges a service-account key for access tokens.
// The key is read once; tokens are cached until they expire.
type ServiceAccountTokens struct {
	envVar  string
	timeout time.Duration

	once   sync.Once
	source oauth2.TokenSource
	err    error
}

// NewServiceAccountTokens reads the key path from envVar on first use
func NewServiceAccountTokens(envVar string, timeout time.Duration) *ServiceAccountTokens {
	if envVar == "" {
		envVar = DefaultCredentialsEnv
	}
	return &ServiceAccountTokens{envVar: envVar, timeout: timeout}
}

// Load reads and parses the key without touching the network
func (s *ServiceAccountTokens) Load(ctx context.Context) error {
	s.once.Do(func() {
		s.source, s.err = s.load(ctx)
	})
	return s.err
}

func (s *ServiceAccountTokens) load(ctx context.Context) (oauth2.TokenSource, error) {
	path := os.Getenv(s.envVar)
	if path == "" {
		return nil, fmt.Errorf("%s is not set: %w", s.envVar, probe.ErrConfiguration)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account key: %w: %w", probe.ErrConfiguration, err)
	}

	cfg, err := google.JWTConfigFromJSON(data, readOnlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w: %w", probe.ErrConfiguration, err)
	}
	if err := checkPrivateKey(cfg.PrivateKey); err != nil {
		return nil, fmt.Errorf("unusable service account key: %w: %w", probe.ErrConfiguration, err)
	}

	// The source outlives the first caller's context
	tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, &http.Client{Timeout: s.timeout})
	return oauth2.ReuseTokenSource(nil, cfg.TokenSource(tokenCtx)), nil
}

// Token implements TokenFunc
func (s *ServiceAccountTokens) Token(ctx context.Context) (string, error) {
	if err := s.Load(ctx); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tok, err := s.source.Token()
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	return tok.AccessToken, nil
}

// checkPrivateKey rejects keys the JWT signer would fail on at exchange time
func checkPrivateKey(key []byte) error {
	block, _ := pem.Decode(key)
	if block == nil {
		return errors.New("private_key is not PEM encoded")
	}
	if _, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return nil
	}
	if _, err := x509.ParsePKCS1PrivateKey(block.Bytes); err != nil {
		return fmt.Errorf("private_key is neither PKCS8 nor PKCS1: %w", err)
	}
	return nil
}
