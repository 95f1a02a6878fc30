package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// Tokens are opaque: a random part plus an HMAC signature over it. The
// signature lets the server reject forged or truncated tokens before
// touching the database.
func mintToken(secret []byte) (string, error) {
	random := make([]byte, 32)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(random)
	sig := mac.Sum(nil)

	return base64.RawURLEncoding.EncodeToString(random) + "." +
		base64.RawURLEncoding.EncodeToString(sig), nil
}

func verifyToken(secret []byte, token string) bool {
	randomPart, sigPart, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}

	random, err := base64.RawURLEncoding.DecodeString(randomPart)
	if err != nil {
		return false
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(random)
	return hmac.Equal(sig, mac.Sum(nil))
}

// tokenHash is what gets stored; the raw token never touches the database.
func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
