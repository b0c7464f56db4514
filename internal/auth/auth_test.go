package auth

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCredentials_InlineToken(t *testing.T) {
	creds, err := LoadCredentials("  abc.def.ghi \n", "/does/not/exist")
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if creds.Token != "abc.def.ghi" {
		t.Errorf("Token = %q, want %q", creds.Token, "abc.def.ghi")
	}
}

func TestLoadCredentials_TokenFile(t *testing.T) {
	path := writeTokenFile(t, "file-token\n")

	creds, err := LoadCredentials("", path)
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if creds.Token != "file-token" {
		t.Errorf("Token = %q, want %q", creds.Token, "file-token")
	}
}

func TestLoadCredentials_Missing(t *testing.T) {
	_, err := LoadCredentials("", "")
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
}

func TestLoadToken_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty file", "   \n", "is empty"},
		{"multi line", "one\ntwo\n", "more than one line"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTokenFile(t, tt.content)
			_, err := LoadToken(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, should contain %q", err.Error(), tt.wantErr)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadToken(filepath.Join(t.TempDir(), "nope"))
		if err == nil {
			t.Fatal("expected error for missing file")
		}
		if !strings.Contains(err.Error(), "read token file") {
			t.Errorf("error = %q, should contain 'read token file'", err.Error())
		}
	})
}

func TestCredentials_Apply(t *testing.T) {
	creds := &Credentials{Token: "secret"}
	req, err := http.NewRequest(http.MethodGet, "http://localhost:8123/api", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}

	creds.Apply(req)

	if got := req.Header.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer secret")
	}
}

func TestCredentials_Redacted(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"short", "****"},
		{"eyJhbGciOiJIUzI1NiJ9.payload", "eyJh…load"},
	}

	for _, tt := range tests {
		c := &Credentials{Token: tt.token}
		if got := c.Redacted(); got != tt.want {
			t.Errorf("Redacted(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func writeTokenFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write token file: %v", err)
	}
	return path
}
