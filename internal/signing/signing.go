// signing.go wraps detached signing and verification for .forge archives.
package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	// EnvelopeVersion identifies the signature schema used for forge archives.
	EnvelopeVersion = "forge.sig.v1"
	defaultAlgo     = "ed25519"
)

// Envelope stores the detached signature metadata for an archive.
type Envelope struct {
	Version   string    `json:"version"`
	Algorithm string    `json:"algorithm"`
	Digest    string    `json:"digest"`
	Signature string    `json:"signature"`
	PublicKey string    `json:"publicKey,omitempty"`
	KeyID     string    `json:"keyId,omitempty"`
	SignedAt  time.Time `json:"signedAt"`
}

// GenerateKeyPair returns a fresh Ed25519 keypair.
func GenerateKeyPair() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// SavePrivateKey writes the private key to disk in PKCS8/PEM form.
func SavePrivateKey(path string, key ed25519.PrivateKey) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0o600)
}

// SavePublicKey writes the public key to disk in PKIX/PEM form.
func SavePublicKey(path string, key ed25519.PublicKey) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return fmt.Errorf("marshal public key: %w", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0o644)
}

// LoadPrivateKey reads an Ed25519 private key from disk.
func LoadPrivateKey(path string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "PRIVATE KEY" {
		return nil, nil, fmt.Errorf("file %s does not contain a private key", path)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse private key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, nil, fmt.Errorf("private key %s is not Ed25519", path)
	}
	return priv, priv.Public().(ed25519.PublicKey), nil
}

// LoadPublicKey reads an Ed25519 public key from disk.
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("file %s does not contain a public key", path)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key %s is not Ed25519", path)
	}
	return pub, nil
}

// SignFile calculates the digest for path and returns a detached envelope.
func SignFile(path string, key ed25519.PrivateKey, pub ed25519.PublicKey) (Envelope, error) {
	if len(key) == 0 {
		return Envelope{}, fmt.Errorf("signing key is empty")
	}
	digest, err := fileDigest(path)
	if err != nil {
		return Envelope{}, err
	}
	sig := ed25519.Sign(key, []byte(digest))
	env := Envelope{
		Version:   EnvelopeVersion,
		Algorithm: defaultAlgo,
		Digest:    digest,
		Signature: base64.StdEncoding.EncodeToString(sig),
		SignedAt:  time.Now().UTC(),
	}
	if len(pub) > 0 {
		env.PublicKey = base64.StdEncoding.EncodeToString(pub)
		env.KeyID = KeyID(pub)
	}
	return env, nil
}

// VerifyFile checks that env matches the file at path and that the signature
// verifies under pub. When pub is nil the envelope's embedded key is used.
func VerifyFile(path string, env Envelope, pub ed25519.PublicKey) error {
	if env.Version != EnvelopeVersion {
		return fmt.Errorf("unsupported signature version %q", env.Version)
	}
	if env.Algorithm != defaultAlgo {
		return fmt.Errorf("unsupported signature algorithm %q", env.Algorithm)
	}
	digest, err := fileDigest(path)
	if err != nil {
		return err
	}
	if digest != env.Digest {
		return fmt.Errorf("archive digest mismatch: signed %s, actual %s", env.Digest, digest)
	}
	if pub == nil {
		if env.PublicKey == "" {
			return fmt.Errorf("no public key provided and envelope embeds none")
		}
		raw, err := base64.StdEncoding.DecodeString(env.PublicKey)
		if err != nil {
			return fmt.Errorf("decode embedded public key: %w", err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return fmt.Errorf("embedded public key has %d bytes, want %d", len(raw), ed25519.PublicKeySize)
		}
		pub = ed25519.PublicKey(raw)
	}
	sig, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if !ed25519.Verify(pub, []byte(env.Digest), sig) {
		return fmt.Errorf("signature does not verify")
	}
	return nil
}

// WriteEnvelope stores the envelope as JSON next to an archive.
func WriteEnvelope(path string, env Envelope) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ReadEnvelope loads a stored envelope.
func ReadEnvelope(path string) (Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope %s: %w", path, err)
	}
	return env, nil
}

// KeyID derives a short stable identifier from a public key.
func KeyID(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:8])
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
