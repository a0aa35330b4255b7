package gateway

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// maxAuthAttempts is how many bad signatures a connection gets before the
// server hangs up on it.
const maxAuthAttempts = 3

// AuthHandler runs the HMAC challenge-response handshake on every new
// websocket connection. The shared secret never crosses the wire; the client
// proves possession of it by signing the server's challenge.
type AuthHandler struct {
	sharedSecret string
}

func NewAuthHandler(sharedSecret string) *AuthHandler {
	return &AuthHandler{sharedSecret: sharedSecret}
}

// GenerateChallenge returns 32 random bytes, hex encoded.
func (a *AuthHandler) GenerateChallenge() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate challenge: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// VerifySignature checks an HMAC-SHA256 signature over the challenge in
// constant time.
func (a *AuthHandler) VerifySignature(challenge, signature string) bool {
	mac := hmac.New(sha256.New, []byte(a.sharedSecret))
	mac.Write([]byte(challenge))
	want := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(want), []byte(signature)) == 1
}

// HandleAuthResponse resolves a signed challenge. Challenges are single use:
// success clears the stored one so a replayed signature cannot
// re-authenticate a later session.
func (a *AuthHandler) HandleAuthResponse(client *Client, signature string) AuthResult {
	if client.Challenge == "" {
		return authFailure("no challenge outstanding")
	}

	if !a.VerifySignature(client.Challenge, signature) {
		client.AuthAttempts++
		if client.AuthAttempts >= maxAuthAttempts {
			return authFailure("too many failed attempts")
		}
		return authFailure("invalid signature")
	}

	client.Authenticated = true
	client.State = StateAuthenticated
	client.AuthAttempts = 0
	client.Challenge = ""
	return AuthResult{Event: "auth.success", Success: true}
}

func authFailure(msg string) AuthResult {
	return AuthResult{Event: "auth.failure", Message: msg}
}
