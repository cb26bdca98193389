package sha256

import (
	"os"
	"path/filepath"
	"testing"
)

const helloDigest = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func TestHasherHash(t *testing.T) {
	t.Parallel()

	got, err := New().Hash([]byte("hello world"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if got != helloDigest {
		t.Fatalf("expected %s, got %s", helloDigest, got)
	}
}

func TestHasherHashFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "call.mp3")
	if err := os.WriteFile(path, []byte("hello world"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, n, err := New().HashFile(path)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	if got != helloDigest || n != 11 {
		t.Fatalf("unexpected digest %s (%d bytes)", got, n)
	}

	if _, _, err := New().HashFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
