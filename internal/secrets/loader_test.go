package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  file-secret\n"), 0o600); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	secret, err := Load(Source{Name: "api key", File: path, Value: "inline"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "file-secret" {
		t.Fatalf("expected the trimmed file secret, got %q", secret)
	}
}

func TestLoadFromValue(t *testing.T) {
	secret, err := Load(Source{Name: "api key", Value: " inline-secret "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "inline-secret" {
		t.Fatalf("expected the inline secret, got %q", secret)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TEST_SECRET", "env-secret")

	secret, err := Load(Source{Name: "api key", Env: "TEST_SECRET"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "env-secret" {
		t.Fatalf("expected the env secret, got %q", secret)
	}
}

func TestLoadValueBeatsEnv(t *testing.T) {
	t.Setenv("TEST_SECRET", "env-secret")

	secret, err := Load(Source{Value: "inline", Env: "TEST_SECRET"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "inline" {
		t.Fatalf("inline value should win over env, got %q", secret)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(Source{Name: "api key", File: filepath.Join(t.TempDir(), "absent")}); err == nil {
		t.Fatalf("expected an error for a missing secret file")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("   \n"), 0o600); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	if _, err := Load(Source{Name: "api key", File: path}); err == nil {
		t.Fatalf("expected an error for an empty secret file")
	}
}

func TestLoadNothingConfigured(t *testing.T) {
	if _, err := Load(Source{Name: "api key"}); err == nil {
		t.Fatalf("expected an error when no source is set")
	}
}
