package gcs

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/bucketspectre/internal/probe"
)

// writeServiceAccountKey writes a key file whose token_uri points at tokenURL
func writeServiceAccountKey(t *testing.T, tokenURL string) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	data, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     "test-project",
		"private_key_id": "key-1",
		"private_key":    string(keyPEM),
		"client_email":   "scanner@test-project.iam.gserviceaccount.com",
		"client_id":      "1234567890",
		"token_uri":      tokenURL,
	})
	if err != nil {
		t.Fatalf("failed to marshal key file: %v", err)
	}

	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}
	return path
}

func newTokenServer(t *testing.T, status int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse token request: %v", err)
		}
		if r.Form.Get("grant_type") != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
			t.Errorf("unexpected grant type %q", r.Form.Get("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(`{"access_token":"sa-token","token_type":"Bearer","expires_in":3600}`))
			return
		}
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestServiceAccountTokens_MissingEnv(t *testing.T) {
	t.Setenv("BUCKETSPECTRE_TEST_CREDS", "")

	tokens := NewServiceAccountTokens("BUCKETSPECTRE_TEST_CREDS", time.Second)
	_, err := tokens.Token(context.Background())
	if !errors.Is(err, probe.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestServiceAccountTokens_UnreadableFile(t *testing.T) {
	t.Setenv("BUCKETSPECTRE_TEST_CREDS", filepath.Join(t.TempDir(), "missing.json"))

	_, err := NewServiceAccountTokens("BUCKETSPECTRE_TEST_CREDS", time.Second).Token(context.Background())
	if !errors.Is(err, probe.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestServiceAccountTokens_MalformedKey(t *testing.T) {
	tests := map[string]string{
		"not json":      `{"type":`,
		"wrong type":    `{"type":"authorized_user"}`,
		"bad key block": `{"type":"service_account","client_email":"a@b","private_key":"nope"}`,
	}

	for name, content := range tests {
		path := filepath.Join(t.TempDir(), "sa.json")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write key file: %v", err)
		}
		t.Setenv("BUCKETSPECTRE_TEST_CREDS", path)

		_, err := NewServiceAccountTokens("BUCKETSPECTRE_TEST_CREDS", time.Second).Token(context.Background())
		if !errors.Is(err, probe.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestServiceAccountTokens_ExchangeAndReuse(t *testing.T) {
	server, calls := newTokenServer(t, http.StatusOK)
	t.Setenv("BUCKETSPECTRE_TEST_CREDS", writeServiceAccountKey(t, server.URL))

	tokens := NewServiceAccountTokens("BUCKETSPECTRE_TEST_CREDS", time.Second)
	for i := 0; i < 3; i++ {
		tok, err := tokens.Token(context.Background())
		if err != nil {
			t.Fatalf("Token failed: %v", err)
		}
		if tok != "sa-token" {
			t.Fatalf("expected sa-token, got %q", tok)
		}
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Fatalf("expected a single token exchange, got %d", n)
	}
}

func TestServiceAccountTokens_ExchangeFailureIsNotConfiguration(t *testing.T) {
	server, _ := newTokenServer(t, http.StatusBadRequest)
	t.Setenv("BUCKETSPECTRE_TEST_CREDS", writeServiceAccountKey(t, server.URL))

	_, err := NewServiceAccountTokens("BUCKETSPECTRE_TEST_CREDS", time.Second).Token(context.Background())
	if err == nil {
		t.Fatalf("expected exchange error")
	}
	if errors.Is(err, probe.ErrConfiguration) {
		t.Fatalf("exchange failure must not be a configuration error: %v", err)
	}
}
