package blind

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"lectern/api/internal/doc"
)

// Prefix marks content-addressed pseudonym ids.
const Prefix = "anon:"

// Stub derives the deterministic pseudonym for (roleName, identity) under a
// scope secret: the pair is sealed with ChaCha20-Poly1305 under a key and
// nonce derived from the secret, and the ciphertext is hashed. Identical
// inputs always produce the identical stub; without the secret the stub
// reveals nothing about the identity.
//
// A missing role name or secret is a contract violation by the caller, not
// a user-facing condition.
func Stub(roleName, identity, secret string) (string, error) {
	if roleName == "" || secret == "" {
		return "", fmt.Errorf("blind: pseudonym requires a role name and scope secret: %w", doc.ErrIntegrity)
	}

	key := derive([]byte(secret), []byte("pseudonym-key"))
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", fmt.Errorf("blind: pseudonym cipher: %w", err)
	}

	plaintext := []byte(roleName + "\x1f" + identity)
	// The nonce is keyed off the same secret, so sealing stays
	// deterministic per scope without ever reusing a nonce across
	// distinct inputs.
	nonce := derive(key, plaintext)[:chacha20poly1305.NonceSize]

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	sum := sha256.Sum256(sealed)
	return Prefix + hex.EncodeToString(sum[:]), nil
}

func derive(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}
