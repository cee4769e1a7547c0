package signing

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	archive := filepath.Join(t.TempDir(), "core-abc123.forge")
	if err := os.WriteFile(archive, []byte("archive-bytes"), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	env, err := SignFile(archive, priv, pub)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if env.Version != EnvelopeVersion {
		t.Fatalf("unexpected envelope version %q", env.Version)
	}
	if env.KeyID != KeyID(pub) {
		t.Fatalf("key id mismatch: %q", env.KeyID)
	}
	if err := VerifyFile(archive, env, pub); err != nil {
		t.Fatalf("verify with explicit key: %v", err)
	}
	if err := VerifyFile(archive, env, nil); err != nil {
		t.Fatalf("verify with embedded key: %v", err)
	}
}

func TestVerifyRejectsTamperedArchive(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	archive := filepath.Join(t.TempDir(), "core.forge")
	if err := os.WriteFile(archive, []byte("original"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	env, err := SignFile(archive, priv, pub)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := os.WriteFile(archive, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := VerifyFile(archive, env, pub); err == nil || !strings.Contains(err.Error(), "digest mismatch") {
		t.Fatalf("expected digest mismatch, got %v", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	_, otherPub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate other: %v", err)
	}
	archive := filepath.Join(t.TempDir(), "core.forge")
	if err := os.WriteFile(archive, []byte("bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	env, err := SignFile(archive, priv, pub)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := VerifyFile(archive, env, otherPub); err == nil {
		t.Fatal("expected verification failure under wrong key")
	}
}

func TestKeyPersistenceRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	dir := t.TempDir()
	privPath := filepath.Join(dir, "keys", "forge.key")
	pubPath := filepath.Join(dir, "keys", "forge.pub")
	if err := SavePrivateKey(privPath, priv); err != nil {
		t.Fatalf("save private: %v", err)
	}
	if err := SavePublicKey(pubPath, pub); err != nil {
		t.Fatalf("save public: %v", err)
	}

	loadedPriv, loadedPub, err := LoadPrivateKey(privPath)
	if err != nil {
		t.Fatalf("load private: %v", err)
	}
	if !loadedPriv.Equal(priv) || !loadedPub.Equal(pub) {
		t.Fatal("private key round trip mismatch")
	}
	fromDisk, err := LoadPublicKey(pubPath)
	if err != nil {
		t.Fatalf("load public: %v", err)
	}
	if !fromDisk.Equal(pub) {
		t.Fatal("public key round trip mismatch")
	}
}

func TestEnvelopePersistenceRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	archive := filepath.Join(t.TempDir(), "core.forge")
	if err := os.WriteFile(archive, []byte("bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	env, err := SignFile(archive, priv, pub)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sigPath := archive + ".sig"
	if err := WriteEnvelope(sigPath, env); err != nil {
		t.Fatalf("write envelope: %v", err)
	}
	loaded, err := ReadEnvelope(sigPath)
	if err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	if err := VerifyFile(archive, loaded, nil); err != nil {
		t.Fatalf("verify loaded envelope: %v", err)
	}
}

func TestVerifyRejectsMalformedEmbeddedKey(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	archive := filepath.Join(t.TempDir(), "core-abc123.forge")
	if err := os.WriteFile(archive, []byte("archive-bytes"), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	env, err := SignFile(archive, priv, pub)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// An envelope with a truncated embedded key must fail verification,
	// not crash it.
	env.PublicKey = base64.StdEncoding.EncodeToString([]byte("short"))
	err = VerifyFile(archive, env, nil)
	if err == nil {
		t.Fatal("expected error for malformed embedded key")
	}
	if !strings.Contains(err.Error(), "embedded public key") {
		t.Fatalf("unexpected error: %v", err)
	}

	env.PublicKey = "%%%not-base64%%%"
	if err := VerifyFile(archive, env, nil); err == nil {
		t.Fatal("expected error for undecodable embedded key")
	}
}
